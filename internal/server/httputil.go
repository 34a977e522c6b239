package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/fpang/storybook-illustrator/internal/imageutil"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 25 << 20
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched and
// reports empty=true.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) (empty bool, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err = json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// writeDataURL decodes a data URL and writes the raw image.
func writeDataURL(w http.ResponseWriter, dataURL string) {
	mimeType, data, err := imageutil.DecodeDataURL(dataURL)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "stored image is corrupt")
		return
	}
	writeImage(w, mimeType, data)
}

func writeImage(w http.ResponseWriter, mimeType string, data []byte) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
