// Package picker opens the native file dialog used to choose reference images.
package picker

import (
	"errors"

	"github.com/ncruces/zenity"
)

// ErrCanceled is returned when the user closes the dialog without choosing.
var ErrCanceled = errors.New("file selection canceled")

// Func picks one file and returns its path.
type Func func() (string, error)

// ImagePatterns are the file patterns offered by the dialog.
var ImagePatterns = []string{"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp"}

// PickImage shows a native dialog restricted to image files.
func PickImage() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select a reference image"),
		zenity.FileFilters{
			{Name: "Images", Patterns: ImagePatterns},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrCanceled
		}
		return "", err
	}
	return path, nil
}
