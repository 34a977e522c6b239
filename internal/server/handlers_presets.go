package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/fpang/storybook-illustrator/internal/picker"
	"github.com/fpang/storybook-illustrator/internal/storybook"
	"github.com/rs/zerolog/log"
)

// POST /api/presets (multipart: name, image)
//
// Fields that are absent fall back to the preset form.
func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	name, upload, hasName, err := readPresetMultipart(w, r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	var preset storybook.Preset
	if hasName && upload != nil {
		preset, err = s.studio.CreatePreset(r.Context(), name, upload)
	} else {
		s.applyPresetForm(name, hasName, upload)
		preset, err = s.studio.SubmitPresetForm(r.Context())
	}
	if err != nil {
		respondStudioError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, preset)
}

// PUT /api/forms/preset (multipart: name and/or image)
func (s *Server) handleUpdatePresetForm(w http.ResponseWriter, r *http.Request) {
	name, upload, hasName, err := readPresetMultipart(w, r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.applyPresetForm(name, hasName, upload)
	respondJSON(w, http.StatusOK, s.studio.Snapshot().PresetForm)
}

func (s *Server) applyPresetForm(name string, hasName bool, upload *storybook.Upload) {
	if hasName {
		s.studio.SetPresetFormName(name)
	}
	if upload != nil {
		s.studio.SetPresetFormFile(upload)
	}
}

// DELETE /api/forms/preset
func (s *Server) handleResetPresetForm(w http.ResponseWriter, r *http.Request) {
	s.studio.ResetPresetForm()
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/forms/preset/pick
func (s *Server) handlePickPresetImage(w http.ResponseWriter, r *http.Request) {
	path, err := s.pick()
	if err != nil {
		if errors.Is(err, picker.ErrCanceled) {
			respondJSON(w, http.StatusOK, map[string]interface{}{"canceled": true})
			return
		}
		log.Error().Err(err).Msg("File picker failed")
		httpError(w, http.StatusInternalServerError, "file picker failed")
		return
	}
	upload, err := storybook.UploadFromFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Cannot read picked file")
		httpError(w, http.StatusBadRequest, "cannot read selected file")
		return
	}
	s.studio.SetPresetFormFile(upload)
	respondJSON(w, http.StatusOK, s.studio.Snapshot().PresetForm)
}

// GET /api/previews/{id}
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, ok := s.studio.Preview(r.PathValue("id"))
	if !ok {
		httpError(w, http.StatusNotFound, "preview not found")
		return
	}
	writeImage(w, p.MIMEType, p.Data)
}

// POST /api/presets/{id}/toggle
func (s *Server) handleTogglePreset(w http.ResponseWriter, r *http.Request) {
	if !s.studio.TogglePresetSelection(r.PathValue("id")) {
		httpError(w, http.StatusNotFound, "preset not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"selectedPresetIds": s.studio.Snapshot().SelectedPresetIDs,
	})
}

// DELETE /api/presets/{id}
func (s *Server) handleRemovePreset(w http.ResponseWriter, r *http.Request) {
	if !s.studio.RemovePreset(r.Context(), r.PathValue("id")) {
		httpError(w, http.StatusNotFound, "preset not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/presets/{id}/image
func (s *Server) handlePresetImage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.studio.Preset(r.PathValue("id"))
	if !ok {
		httpError(w, http.StatusNotFound, "preset not found")
		return
	}
	writeDataURL(w, p.ImageURL)
}

// readPresetMultipart reads the optional name and image fields.
func readPresetMultipart(w http.ResponseWriter, r *http.Request) (name string, upload *storybook.Upload, hasName bool, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return "", nil, false, nil
		}
		return "", nil, false, errors.New("invalid multipart body")
	}
	if values, ok := r.MultipartForm.Value["name"]; ok && len(values) > 0 {
		name, hasName = values[0], true
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return name, nil, hasName, nil
	}
	if err != nil {
		return "", nil, false, errors.New("invalid image field")
	}
	defer file.Close()
	upload, err = readUpload(file, header)
	return name, upload, hasName, err
}

func readUpload(file multipart.File, header *multipart.FileHeader) (*storybook.Upload, error) {
	data, err := io.ReadAll(io.LimitReader(file, storybook.MaxUploadBytes+1))
	if err != nil {
		return nil, errors.New("failed to read image")
	}
	if len(data) > storybook.MaxUploadBytes {
		return nil, errors.New("image is too large")
	}
	return &storybook.Upload{
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
