package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/gif" // GIF decoder registration
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration
)

const jpegQuality = 90

// ImageService re-encodes downloaded artwork.
//
// ImageService is used to:
//   - Shrink artwork to fit a maximum edge length
//   - Convert artwork to JPEG for viewers that lack WebP or APNG support
//
// Example usage:
//
//	svc := NewImageService()
//	out, ext, _ := svc.ResizeImage(ctx, pngData, 4000, 4000)
//	jpg, _ := svc.ConvertToJPEG(ctx, webpData)
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// ResizeImage scales an image down to fit within maxWidth x maxHeight,
// keeping its aspect ratio. Smaller images keep their size.
//
// Opaque images are encoded as JPEG. Images with transparency are encoded as
// PNG so the alpha channel survives. The returned extension ("jpg" or "png")
// names the format of the returned bytes.
func (s *ImageService) ResizeImage(ctx context.Context, data []byte, maxWidth, maxHeight int) ([]byte, string, error) {
	img, err := decode(ctx, data)
	if err != nil {
		return nil, "", err
	}

	bounds := img.Bounds()
	width, height := fit(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if !dst.Opaque() {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "png", nil
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "jpg", nil
}

// ConvertToJPEG converts an image (JPEG, PNG, GIF or WebP) to JPEG.
// Transparent areas are flattened onto white.
func (s *ImageService) ConvertToJPEG(ctx context.Context, data []byte) ([]byte, error) {
	img, err := decode(ctx, data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(ctx context.Context, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// fit returns the largest size within maxWidth x maxHeight that keeps the
// width:height ratio. Sizes already inside the box are returned unchanged.
func fit(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}
	ratio := float64(width) / float64(height)
	if float64(maxWidth)/float64(maxHeight) > ratio {
		return max(1, int(float64(maxHeight)*ratio)), maxHeight
	}
	return maxWidth, max(1, int(float64(maxWidth)/ratio))
}

func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst
}
