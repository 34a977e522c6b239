package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fpang/storybook-illustrator/internal/export"
	"github.com/rs/zerolog/log"
)

// GET /api/export/book.zip[?title=...]
func (s *Server) handleExportZip(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteZip(&buf, s.studio.Snapshot(), s.exportTitle(r), s.now()); err != nil {
		log.Error().Err(err).Msg("ZIP export failed")
		httpError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeAttachment(w, "application/zip", "storybook.zip", buf.Bytes())
}

// GET /api/export/book.pdf[?title=...]
func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WritePDF(&buf, s.studio.Snapshot(), s.exportTitle(r)); err != nil {
		log.Error().Err(err).Msg("PDF export failed")
		httpError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeAttachment(w, "application/pdf", "storybook.pdf", buf.Bytes())
}

func (s *Server) exportTitle(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("title")); t != "" {
		return t
	}
	if s.title != "" {
		return s.title
	}
	return export.DefaultTitle
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
