// Package media loads asset content and works with decoded images: probing
// dimensions, drawing labeled regions and saving previews.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-labeler/pkg/errdefs"
)

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	Format      string
	AspectRatio float64
}

// Probe reads the dimensions and format of encoded image data without
// decoding the pixels
func Probe(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// Fallback: explicit WebP header parse
		wcfg, werr := webp.DecodeConfig(bytes.NewReader(data))
		if werr != nil {
			return ImageInfo{}, fmt.Errorf("image: unknown or unsupported format: %w", errdefs.ErrUnsupported)
		}
		cfg, format = wcfg, "webp"
	}
	info := ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}
	if cfg.Height > 0 {
		info.AspectRatio = float64(cfg.Width) / float64(cfg.Height)
	}
	return info, nil
}

// Decode decodes image data with WebP support
func Decode(data []byte) (image.Image, string, error) {
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}
	return nil, "", fmt.Errorf("image: unknown or unsupported format: %w", errdefs.ErrUnsupported)
}

// Encode writes img in the given format (png, jpg/jpeg, webp)
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	switch strings.ToLower(format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case "jpg", "jpeg", "":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return fmt.Errorf("unsupported output format %q: %w", format, errdefs.ErrUnsupported)
	}
}

// SaveImage saves an image to path. An empty format is taken from the
// file extension.
func SaveImage(img image.Image, path, format string, quality int) error {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		return Encode(f, img, "webp", quality)
	case "png":
		return imaging.Save(img, path)
	case "jpg", "jpeg":
		if quality <= 0 || quality > 100 {
			quality = 85
		}
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("unsupported output format %q: %w", format, errdefs.ErrUnsupported)
	}
}

// Thumbnail scales img down so neither side exceeds maxDim
func Thumbnail(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDim, imaging.Lanczos)
}
