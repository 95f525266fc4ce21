// Package tui provides a Bubble Tea terminal user interface for gallery-downloader.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/handiism/gallery-downloader/internal/config"
	"github.com/handiism/gallery-downloader/internal/download"
	"github.com/handiism/gallery-downloader/internal/ledger"
	"github.com/handiism/gallery-downloader/internal/model"
	"github.com/handiism/gallery-downloader/internal/notify"
	"github.com/handiism/gallery-downloader/internal/source"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateLoading
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   notify.Level
}

// ExecutorFactory builds the executor for a loaded list.
type ExecutorFactory func(settings *config.Settings, notifier download.Notifier) download.Executor

func httpExecutor(settings *config.Settings, notifier download.Notifier) download.Executor {
	return download.NewHTTPExecutor(settings, nil, notifier)
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []LogEntry
	items     int
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	newExecutor ExecutorFactory
	bus         *notify.Bus
	scheduler   *download.Scheduler
	snapshot    download.Snapshot

	events      chan notify.Event
	quit        chan struct{}
	quitOnce    *sync.Once
	unsubscribe func()
	listening   bool

	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model. listPath pre-fills the input; when it is
// set the list is loaded right away.
func NewModel(settings *config.Settings, listPath string) Model {
	ti := textinput.New()
	ti.Placeholder = "path/to/list.json"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60
	ti.SetValue(listPath)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:       StateInput,
		textInput:   ti,
		spinner:     sp,
		progress:    prog,
		settings:    settings,
		logs:        make([]LogEntry, 0),
		ctx:         ctx,
		cancel:      cancel,
		newExecutor: httpExecutor,
		bus:         notify.NewBus(),
		events:      make(chan notify.Event, 64),
		quit:        make(chan struct{}),
		quitOnce:    &sync.Once{},
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.textInput.Value() != "" {
		cmds = append(cmds, func() tea.Msg { return loadRequestMsg{} })
	}
	return tea.Batch(cmds...)
}

// Message types
type (
	// EventMsg carries one scheduler event.
	EventMsg struct {
		Event notify.Event
	}

	// LoadedMsg is sent when the list file has been read.
	LoadedMsg struct {
		Items []model.Artwork
		Err   error
	}

	loadRequestMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput || m.state == StateDownloading {
				m.shutdown()
				return m, tea.Quit
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				return m.startLoading()
			}

		case "q":
			if m.state != StateInput && m.state != StateLoading {
				m.shutdown()
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m = m.reset()
				return m, textinput.Blink
			}
		}

		if m.state == StateDownloading {
			return m.handleControlKey(msg)
		}

	case loadRequestMsg:
		if m.state == StateInput {
			return m.startLoading()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case LoadedMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			return m, nil
		}
		cmds = append(cmds, m.setupScheduler(msg.Items)...)

	case EventMsg:
		cmds = append(cmds, m.handleEvent(msg.Event), m.waitForEvent())

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) startLoading() (tea.Model, tea.Cmd) {
	m.state = StateLoading
	return m, tea.Batch(m.loadList(strings.TrimSpace(m.textInput.Value())), m.spinner.Tick)
}

func (m Model) handleControlKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "s":
		m.scheduler.Start()
	case "p":
		m.scheduler.Pause()
	case "x":
		m.scheduler.Stop()
	case "+", "=":
		if n := m.scheduler.Snapshot().Requested; n < m.settings.DownloadThreadMax {
			m.scheduler.ConfigureConcurrency(n + 1)
		}
	case "-":
		if n := m.scheduler.Snapshot().Requested; n > 1 {
			m.scheduler.ConfigureConcurrency(n - 1)
		}
	case "v":
		m.verbose = !m.verbose
	default:
		return m, nil
	}
	m.snapshot = m.scheduler.Snapshot()
	return m, nil
}

// setupScheduler creates the scheduler for items and starts listening for
// its events.
func (m *Model) setupScheduler(items []model.Artwork) []tea.Cmd {
	exec := m.newExecutor(m.settings, m.bus)
	opts := append(download.SettingsOptions(m.settings), download.WithContext(m.ctx))
	m.scheduler = download.NewScheduler(items, ledger.NewMemory(0), exec, m.bus, opts...)
	m.scheduler.ConfigureConcurrency(m.settings.DownloadThread)
	m.items = len(items)
	m.state = StateDownloading

	events, quit := m.events, m.quit
	m.unsubscribe = m.bus.Subscribe(func(ev notify.Event) {
		select {
		case events <- ev:
		case <-quit:
		}
	})

	m.addLog(fmt.Sprintf("Loaded %d item(s)", len(items)), notify.LevelInfo)
	if m.settings.QuietDownload {
		m.scheduler.Start()
	}
	m.snapshot = m.scheduler.Snapshot()

	if m.listening {
		return nil
	}
	m.listening = true
	return []tea.Cmd{m.waitForEvent()}
}

func (m *Model) handleEvent(ev notify.Event) tea.Cmd {
	if m.scheduler != nil {
		m.snapshot = m.scheduler.Snapshot()
	}

	if ev.Kind == notify.KindComplete {
		m.state = StateComplete
	}

	// Filter verbose messages if not in verbose mode
	if ev.Level != notify.LevelVerbose || m.verbose {
		m.addLog(ev.Message, ev.Level)
	}

	if m.snapshot.Total > 0 {
		return m.progress.SetPercent(float64(m.snapshot.Done) / float64(m.snapshot.Total))
	}
	return nil
}

func (m *Model) addLog(message string, level notify.Level) {
	m.logs = append(m.logs, LogEntry{Message: message, Level: level})
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// waitForEvent returns a command that delivers the next scheduler event.
func (m Model) waitForEvent() tea.Cmd {
	events, quit := m.events, m.quit
	return func() tea.Msg {
		select {
		case ev := <-events:
			return EventMsg{Event: ev}
		case <-quit:
			return nil
		}
	}
}

// shutdown stops the run and releases the event subscription.
func (m *Model) shutdown() {
	m.quitOnce.Do(func() {
		if m.scheduler != nil {
			m.scheduler.Stop()
		}
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		m.cancel()
		close(m.quit)
	})
}

// reset prepares the model for a new list. The previous run is stopped.
func (m Model) reset() Model {
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.state = StateInput
	m.logs = nil
	m.items = 0
	m.err = nil
	m.scheduler = nil
	m.snapshot = download.Snapshot{}
	m.textInput.SetValue("")
	m.textInput.Focus()
	return m
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("Gallery Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download artwork from a crawl result list"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateLoading:
		b.WriteString(m.viewLoading())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter list file:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.DownloadsPath)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewLoading() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Loading list..."))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[x]"
	}

	b.WriteString(statusStyle.Render(fmt.Sprintf("Status: %s", m.snapshot.Text)))
	b.WriteString("\n\n")

	var percent float64
	if m.snapshot.Total > 0 {
		percent = float64(m.snapshot.Done) / float64(m.snapshot.Total)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Files: %d/%d | Failed: %d | Threads: %d (next run: %d)",
		m.snapshot.Done,
		m.snapshot.Total,
		m.snapshot.Errors,
		m.snapshot.Concurrency,
		m.snapshot.Requested,
	)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s Verbose/debug output (v)", verboseCheck)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	box := boxStyle.Render(fmt.Sprintf(
		"Download Complete!\n\n"+
			"Files: %d\n"+
			"Path: %s",
		m.items,
		m.settings.DownloadsPath,
	))
	b.WriteString(box)
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case notify.LevelError:
			style = errorStyle
			prefix = "✗"
		case notify.LevelWarning:
			style = warningStyle
			prefix = "!"
		case notify.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case notify.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: load • esc: quit"
	case StateLoading:
		return "ctrl+c: quit"
	case StateDownloading:
		return "s: start • p: pause • x: stop • +/-: threads • v: verbose • q: quit"
	case StateComplete, StateError:
		return "r: new list • q: quit"
	}
	return ""
}

// loadList reads the list file in the background.
func (m Model) loadList(path string) tea.Cmd {
	cfg := m.settings.ToPathConfig()
	return func() tea.Msg {
		items, err := source.LoadFile(path, cfg)
		return LoadedMsg{Items: items, Err: err}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings, listPath string) error {
	m := NewModel(settings, listPath)
	defer m.bus.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.shutdown()
	} else {
		m.shutdown()
	}
	return err
}
