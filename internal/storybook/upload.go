package storybook

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpang/storybook-illustrator/internal/imageutil"
)

// MaxUploadBytes is the largest reference image accepted.
const MaxUploadBytes = 20 << 20

// UploadFromFile reads a reference image from disk.
func UploadFromFile(path string) (*Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxUploadBytes {
		return nil, fmt.Errorf("%s is too large (%d bytes, max %d)", path, info.Size(), MaxUploadBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &Upload{
		Filename: filepath.Base(path),
		MIMEType: imageutil.DetectMIME(data, ""),
		Data:     data,
	}, nil
}
