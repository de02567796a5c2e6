package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mfigueredo/tokenbridge/internal/http/errors"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// decodeJSON reads the request body into dst, writing the error response
// itself on failure. Returns false when the caller should bail out.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		errors.WriteError(w, errors.ErrInvalidJSON.WithCause(err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
