package imageutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // registers the GIF decoder
	"image/jpeg"
	"image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode
)

// DefaultMaxDimension bounds the longest side of a persisted reference image.
const DefaultMaxDimension = 512

// Downscale re-encodes an image so its longest side is at most maxDimension.
// Images already within bounds in a browser-native format are returned as-is.
// Images with possible transparency are written as PNG, everything else as JPEG.
func Downscale(data []byte, mimeType string, maxDimension int) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDimension && h <= maxDimension && format != "webp" {
		return data, mimeType, nil
	}

	dst := src
	if w > maxDimension || h > maxDimension {
		nw, nh := fit(w, h, maxDimension)
		scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, draw.Over, nil)
		dst = scaled
	}

	var buf bytes.Buffer
	outMIME := "image/jpeg"
	switch format {
	case "png", "gif", "webp":
		outMIME = "image/png"
		err = png.Encode(&buf, dst)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("width", w).
		Int("height", h).
		Int("input_bytes", len(data)).
		Int("output_bytes", buf.Len()).
		Msg("Reference image re-encoded")

	return buf.Bytes(), outMIME, nil
}

// ToPNGOrJPEG returns data in a format understood by simple consumers such as
// PDF writers (PNG, JPEG or GIF), converting anything else to PNG. The second
// return value is the short type name ("PNG", "JPG", "GIF").
func ToPNGOrJPEG(data []byte, mimeType string) ([]byte, string, error) {
	switch mimeType {
	case "image/png":
		return data, "PNG", nil
	case "image/jpeg", "image/jpg":
		return data, "JPG", nil
	case "image/gif":
		return data, "GIF", nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, "", fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), "PNG", nil
}

// fit scales (w, h) so the longest side equals max, keeping at least one pixel.
func fit(w, h, max int) (int, int) {
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}
