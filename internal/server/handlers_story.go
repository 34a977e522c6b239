package server

import (
	"net/http"

	"github.com/fpang/storybook-illustrator/internal/storybook"
)

type characterRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// POST /api/characters {"name","description"}
//
// An empty body submits the character form.
func (s *Server) handleAddCharacter(w http.ResponseWriter, r *http.Request) {
	var req characterRequest
	empty, err := decodeJSON(w, r, &req)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var ch storybook.Character
	var ok bool
	if empty {
		ch, ok = s.studio.SubmitCharacterForm()
	} else {
		ch, ok = s.studio.AddCharacter(req.Name, req.Description)
	}
	if !ok {
		respondStudioError(w, storybook.ErrCharacterFieldsRequired)
		return
	}
	respondJSON(w, http.StatusCreated, ch)
}

// PUT /api/forms/character {"name","description"}
func (s *Server) handleUpdateCharacterForm(w http.ResponseWriter, r *http.Request) {
	var req characterRequest
	if _, err := decodeJSON(w, r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, s.studio.SetCharacterForm(req.Name, req.Description))
}

// DELETE /api/characters/{id}
func (s *Server) handleRemoveCharacter(w http.ResponseWriter, r *http.Request) {
	if !s.studio.RemoveCharacter(r.PathValue("id")) {
		httpError(w, http.StatusNotFound, "character not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/pages
func (s *Server) handleAddPage(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusCreated, s.studio.AddPage())
}

// DELETE /api/pages/{id}
func (s *Server) handleRemovePage(w http.ResponseWriter, r *http.Request) {
	if !s.studio.RemovePage(r.PathValue("id")) {
		httpError(w, http.StatusNotFound, "page not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/pages/{id}/text {"text"}
func (s *Server) handleSetPageText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if _, err := decodeJSON(w, r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	page, ok := s.studio.SetPageText(r.PathValue("id"), req.Text)
	if !ok {
		httpError(w, http.StatusNotFound, "page not found")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// POST /api/pages/{id}/generate[?wait=1]
//
// Without wait the call returns 202 with the page in its loading state and
// the result is read back through /api/state. A locally rejected page comes
// back with 200 and its error message set. With wait the request blocks until
// the illustration settles; a remote failure is reported as 502.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if r.URL.Query().Get("wait") == "1" {
		page, err := s.studio.GenerateImage(r.Context(), id)
		if err != nil {
			respondStudioError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, page)
		return
	}

	page, err := s.studio.StartGeneration(r.Context(), id)
	if err != nil {
		respondStudioError(w, err)
		return
	}
	status := http.StatusOK
	if page.IsLoading {
		status = http.StatusAccepted
	}
	respondJSON(w, status, page)
}

// GET /api/pages/{id}/image
func (s *Server) handlePageImage(w http.ResponseWriter, r *http.Request) {
	page, ok := s.studio.Page(r.PathValue("id"))
	if !ok || page.ImageURL == "" {
		httpError(w, http.StatusNotFound, "image not found")
		return
	}
	writeDataURL(w, page.ImageURL)
}
