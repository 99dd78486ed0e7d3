package daemon

import (
	"errors"
	"net/http"
	"os"

	"studai/internal/fileutil"
	"studai/internal/storage"
)

// handleVideo serves artifacts written by the local store. http.ServeContent
// answers Range requests so players can seek.
func (s *apiServer) handleVideo(w http.ResponseWriter, r *http.Request) {
	if s.local == nil {
		s.writeError(w, http.StatusNotFound, "local artifact serving is disabled", "not_found")
		return
	}
	name := r.PathValue("name")
	path, err := fileutil.SafeJoin(s.local.Root(), name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid artifact path", "validation")
		return
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "artifact not found", "not_found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "open artifact", "")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "artifact not found", "not_found")
		return
	}
	w.Header().Set("Content-Type", storage.ContentType(path))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
