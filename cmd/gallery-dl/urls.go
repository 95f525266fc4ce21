package main

import (
	"fmt"

	"github.com/handiism/gallery-downloader/internal/source"
	"github.com/spf13/cobra"
)

func newURLsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "urls <list.json>",
		Short: "Print the URL of every file in a list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := root.loadSettings()
			if err != nil {
				return err
			}

			items, err := source.LoadFile(args[0], settings.ToPathConfig())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, url := range source.URLs(items) {
				fmt.Fprintln(out, url)
			}
			return nil
		},
	}
}
