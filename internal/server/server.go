// Package server exposes the studio over a local JSON API and serves the
// single-page front end.
package server

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/fpang/storybook-illustrator/internal/picker"
	"github.com/fpang/storybook-illustrator/internal/storybook"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"
)

//go:embed static
var staticFS embed.FS

// Options configures a Server.
type Options struct {
	// Pick opens a file dialog. Defaults to picker.PickImage.
	Pick picker.Func
	// Now is the clock used for export timestamps.
	Now func() time.Time
	// Title is the default book title used by exports.
	Title string
}

// Server holds the HTTP glue around a Studio.
type Server struct {
	studio *storybook.Studio
	pick   picker.Func
	now    func() time.Time
	title  string
}

// New creates a Server for studio.
func New(studio *storybook.Studio, opts Options) *Server {
	s := &Server{
		studio: studio,
		pick:   opts.Pick,
		now:    opts.Now,
		title:  opts.Title,
	}
	if s.pick == nil {
		s.pick = picker.PickImage
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler returns the routed handler with logging, CORS and gzip applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/state", s.handleState)

	// Presets
	mux.HandleFunc("POST /api/presets", s.handleCreatePreset)
	mux.HandleFunc("POST /api/presets/{id}/toggle", s.handleTogglePreset)
	mux.HandleFunc("DELETE /api/presets/{id}", s.handleRemovePreset)
	mux.HandleFunc("GET /api/presets/{id}/image", s.handlePresetImage)
	mux.HandleFunc("PUT /api/forms/preset", s.handleUpdatePresetForm)
	mux.HandleFunc("DELETE /api/forms/preset", s.handleResetPresetForm)
	mux.HandleFunc("POST /api/forms/preset/pick", s.handlePickPresetImage)
	mux.HandleFunc("GET "+storybook.PreviewPathPrefix+"{id}", s.handlePreview)

	// Characters
	mux.HandleFunc("POST /api/characters", s.handleAddCharacter)
	mux.HandleFunc("DELETE /api/characters/{id}", s.handleRemoveCharacter)
	mux.HandleFunc("PUT /api/forms/character", s.handleUpdateCharacterForm)

	// Pages
	mux.HandleFunc("POST /api/pages", s.handleAddPage)
	mux.HandleFunc("DELETE /api/pages/{id}", s.handleRemovePage)
	mux.HandleFunc("PUT /api/pages/{id}/text", s.handleSetPageText)
	mux.HandleFunc("POST /api/pages/{id}/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/pages/{id}/image", s.handlePageImage)

	// Export
	mux.HandleFunc("GET /api/export/book.zip", s.handleExportZip)
	mux.HandleFunc("GET /api/export/book.pdf", s.handleExportPDF)

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(staticSub))
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' blob: data:; style-src 'self' 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		fileServer.ServeHTTP(w, r)
	})

	return withLogging(withCORS(gzhttp.GzipHandler(mux)))
}

// ListenAndServe serves until ctx is canceled, then shuts down and waits for
// in-flight illustrations to settle.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting web server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.studio.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.studio.Snapshot())
}

// respondStudioError maps studio errors to HTTP statuses.
func respondStudioError(w http.ResponseWriter, err error) {
	var remoteErr *storybook.RemoteError
	switch {
	case errors.Is(err, storybook.ErrNotFound):
		httpError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storybook.ErrAnalysisInFlight), errors.Is(err, storybook.ErrGenerationInFlight):
		httpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storybook.ErrPresetNameRequired),
		errors.Is(err, storybook.ErrPresetImageRequired),
		errors.Is(err, storybook.ErrPresetImageType),
		errors.Is(err, storybook.ErrCharacterFieldsRequired):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &remoteErr):
		httpError(w, http.StatusBadGateway, remoteErr.Message)
	default:
		log.Error().Err(err).Msg("Unhandled studio error")
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}
