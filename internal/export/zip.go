// Package export writes the current storybook as a downloadable bundle: a ZIP
// archive with a JSON manifest, page texts and illustrations, or a PDF with
// one sheet per page.
package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fpang/storybook-illustrator/internal/imageutil"
	"github.com/fpang/storybook-illustrator/internal/storybook"
	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog/log"
)

// DefaultTitle is used when no title is given.
const DefaultTitle = "My Storybook"

// Manifest is the book.json entry of a ZIP export.
type Manifest struct {
	Title      string                `json:"title"`
	ExportedAt time.Time             `json:"exportedAt"`
	Styles     []ManifestStyle       `json:"styles"`
	Characters []storybook.Character `json:"characters"`
	Pages      []ManifestPage        `json:"pages"`
}

// ManifestStyle is one selected art style.
type ManifestStyle struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ManifestPage points at the files of one page.
type ManifestPage struct {
	Number   int    `json:"number"`
	Text     string `json:"text"`
	TextFile string `json:"textFile"`
	Image    string `json:"image,omitempty"`
}

// WriteZip writes snap as a ZIP archive to w.
func WriteZip(w io.Writer, snap storybook.Snapshot, title string, now time.Time) error {
	if title == "" {
		title = DefaultTitle
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	manifest := Manifest{
		Title:      title,
		ExportedAt: now.UTC(),
		Styles:     selectedStyles(snap),
		Characters: snap.Characters,
		Pages:      make([]ManifestPage, 0, len(snap.Pages)),
	}

	for i, page := range snap.Pages {
		mp := ManifestPage{
			Number:   i + 1,
			Text:     page.Text,
			TextFile: fmt.Sprintf("page-%02d.txt", i+1),
		}
		if err := writeEntry(zw, mp.TextFile, zip.Deflate, now, []byte(page.Text)); err != nil {
			return err
		}

		if page.ImageURL != "" {
			mimeType, data, err := imageutil.DecodeDataURL(page.ImageURL)
			if err != nil {
				log.Warn().Err(err).Int("page", i+1).Msg("Skipping undecodable page image")
			} else {
				mp.Image = fmt.Sprintf("page-%02d%s", i+1, imageutil.ExtensionFor(mimeType))
				// Image formats are already compressed.
				if err := writeEntry(zw, mp.Image, zip.Store, now, data); err != nil {
					return err
				}
			}
		}
		manifest.Pages = append(manifest.Pages, mp)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeEntry(zw, "book.json", zip.Deflate, now, data); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, method uint16, modified time.Time, data []byte) error {
	f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: modified})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func selectedStyles(snap storybook.Snapshot) []ManifestStyle {
	selected := make(map[string]bool, len(snap.SelectedPresetIDs))
	for _, id := range snap.SelectedPresetIDs {
		selected[id] = true
	}
	styles := []ManifestStyle{}
	for _, p := range snap.Presets {
		if selected[p.ID] {
			styles = append(styles, ManifestStyle{Name: p.Name, Description: p.Description})
		}
	}
	return styles
}
