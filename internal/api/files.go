package api

import (
	"bytes"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dunamismax/avifconv/internal/id"
	"github.com/dunamismax/avifconv/internal/storage"
)

// handleFile serves a previously produced output by name.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	data, err := s.files.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		s.logger.Printf("read file failed name=%s err=%v", name, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.Header().Set("Content-Type", contentTypeForName(name))
	w.Header().Set("ETag", `"`+id.Digest(data)+`"`)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

func contentTypeForName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".avif":
		return "image/avif"
	case ".webp":
		return "image/webp"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
