package imageutil

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestDataURLRoundTrip(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}
	url := EncodeDataURL("image/png", data)
	if url[:22] != "data:image/png;base64," {
		t.Fatalf("unexpected prefix: %q", url[:22])
	}

	mimeType, got, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("mime = %q", mimeType)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("data mismatch")
	}
}

func TestDecodeDataURLInvalid(t *testing.T) {
	tests := []string{
		"",
		"https://example.com/a.png",
		"data:image/png,rawbytes",
		"data:;base64,AAAA",
		"data:image/png;base64,!!!",
	}
	for _, in := range tests {
		if _, _, err := DecodeDataURL(in); !errors.Is(err, ErrInvalidDataURL) {
			t.Errorf("DecodeDataURL(%q) error = %v, want ErrInvalidDataURL", in, err)
		}
	}
}

func TestDetectMIME(t *testing.T) {
	pngData := makePNG(t, 2, 2)
	tests := []struct {
		name     string
		data     []byte
		declared string
		want     string
	}{
		{"declared image kept", pngData, "image/webp", "image/webp"},
		{"declared with params", pngData, "Image/PNG; charset=binary", "image/png"},
		{"octet stream sniffed", pngData, "application/octet-stream", "image/png"},
		{"empty sniffed", makeJPEG(t, 2, 2), "", "image/jpeg"},
		{"text sniffed", []byte("hello"), "", "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIME(tt.data, tt.declared); got != tt.want {
				t.Errorf("DetectMIME = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsImageMIME(t *testing.T) {
	for in, want := range map[string]bool{
		"image/png":  true,
		"image/":     false,
		"text/plain": false,
		"":           false,
	} {
		if got := IsImageMIME(in); got != want {
			t.Errorf("IsImageMIME(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestExtensionFor(t *testing.T) {
	for in, want := range map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/webp": ".webp",
		"video/mp4":  ".bin",
	} {
		if got := ExtensionFor(in); got != want {
			t.Errorf("ExtensionFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDownscaleSmallImageUnchanged(t *testing.T) {
	data := makePNG(t, 40, 30)
	out, mimeType, err := Downscale(data, "image/png", DefaultMaxDimension)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, data) || mimeType != "image/png" {
		t.Error("small image should be returned unchanged")
	}
}

func TestDownscaleLargeImage(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		mimeType string
		wantMIME string
		wantW    int
		wantH    int
	}{
		{"png landscape", makePNG(t, 200, 100), "image/png", "image/png", 64, 32},
		{"jpeg portrait", makeJPEG(t, 100, 200), "image/jpeg", "image/jpeg", 32, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, mimeType, err := Downscale(tt.data, tt.mimeType, 64)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mimeType != tt.wantMIME {
				t.Errorf("mime = %q, want %q", mimeType, tt.wantMIME)
			}
			cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDownscaleInvalid(t *testing.T) {
	if _, _, err := Downscale([]byte("not an image"), "image/png", 64); err == nil {
		t.Error("expected decode error")
	}
}

func TestToPNGOrJPEG(t *testing.T) {
	pngData := makePNG(t, 4, 4)

	out, typ, err := ToPNGOrJPEG(pngData, "image/png")
	if err != nil || typ != "PNG" || !bytes.Equal(out, pngData) {
		t.Errorf("png passthrough failed: typ=%q err=%v", typ, err)
	}

	// Unknown declared type is decoded and converted.
	out, typ, err = ToPNGOrJPEG(pngData, "image/x-custom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != "PNG" {
		t.Errorf("type = %q, want PNG", typ)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("output is not a png: %v", err)
	}

	if _, _, err := ToPNGOrJPEG([]byte("junk"), "image/webp"); err == nil {
		t.Error("expected error for undecodable webp")
	}
}

func TestFit(t *testing.T) {
	tests := []struct{ w, h, max, ww, wh int }{
		{1000, 500, 100, 100, 50},
		{500, 1000, 100, 50, 100},
		{1000, 1000, 100, 100, 100},
		{10000, 1, 100, 100, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.max)
		if w != tt.ww || h != tt.wh {
			t.Errorf("fit(%d,%d,%d) = %d,%d want %d,%d", tt.w, tt.h, tt.max, w, h, tt.ww, tt.wh)
		}
	}
}
