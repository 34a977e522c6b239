package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fpang/storybook-illustrator/internal/imageutil"
	"github.com/fpang/storybook-illustrator/internal/storybook"
	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog/log"
)

// A4 portrait in millimetres.
const (
	pageWidth  = 210.0
	margin     = 20.0
	imageWidth = pageWidth - 2*margin
)

// WritePDF writes snap as a PDF to w: a title sheet listing the characters,
// then one sheet per page with the illustration above the text.
func WritePDF(w io.Writer, snap storybook.Snapshot, title string) error {
	if title == "" {
		title = DefaultTitle
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAuthor("Storybook Illustrator", false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	// Core fonts are cp1252; the translator maps UTF-8 text onto it.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	// Story pages are numbered from the sheet after the title sheet.
	pdf.SetFooterFunc(func() {
		if pdf.PageNo() <= 1 {
			return
		}
		pdf.SetY(-margin)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 6, fmt.Sprintf("%d", pdf.PageNo()-1), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 28)
	pdf.MultiCell(0, 14, tr(title), "", "C", false)
	pdf.Ln(10)
	if len(snap.Characters) > 0 {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 8, tr("Characters"), "", "L", false)
		for _, ch := range snap.Characters {
			pdf.SetFont("Helvetica", "B", 12)
			pdf.MultiCell(0, 6, tr(ch.Name), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, tr(ch.Description), "", "L", false)
			pdf.Ln(2)
		}
	}

	for i, page := range snap.Pages {
		pdf.AddPage()
		if page.ImageURL != "" {
			if err := placeImage(pdf, fmt.Sprintf("page-%d", i+1), page.ImageURL); err != nil {
				log.Warn().Err(err).Int("page", i+1).Msg("Skipping page image in PDF")
			}
		}
		pdf.SetFont("Times", "", 14)
		pdf.MultiCell(0, 7, tr(page.Text), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func placeImage(pdf *gofpdf.Fpdf, name, dataURL string) error {
	mimeType, data, err := imageutil.DecodeDataURL(dataURL)
	if err != nil {
		return err
	}
	data, imageType, err := imageutil.ToPNGOrJPEG(data, mimeType)
	if err != nil {
		return err
	}

	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return err
	}
	if info == nil {
		return fmt.Errorf("image %s not registered", name)
	}

	height := imageWidth * info.Height() / info.Width()
	pdf.ImageOptions(name, margin, pdf.GetY(), imageWidth, height, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + height + 8)
	return nil
}
