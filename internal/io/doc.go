// Package ioutils provides file system and image processing utilities.
//
// # File Operations
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/pictures/alice")
//
//	// Write data without leaving partial files behind
//	err = ioutils.WriteFile(ctx, "/pictures/alice/81234567_p0.png", data)
//
// # Image Processing
//
//	svc := ioutils.NewImageService()
//	resized, ext, _ := svc.ResizeImage(ctx, imageData, 2000, 2000)
//	jpeg, _ := svc.ConvertToJPEG(ctx, pngData)
package ioutils
