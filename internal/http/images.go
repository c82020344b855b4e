package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/robertarktes/afterschool-bookings/internal/observability"
)

// ImagesHandler serves files under dir at /images/. Missing files get a
// JSON 404 instead of the file server's plain text one.
func ImagesHandler(dir string, logger observability.Logger) http.Handler {
	files := http.StripPrefix("/images", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested := strings.TrimPrefix(r.URL.Path, "/images")
		name := path.Clean("/" + requested)

		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil || info.IsDir() {
			observability.LoggerFromContext(r.Context(), logger).WithField("path", requested).Warn("image not found")
			writeJSON(w, http.StatusNotFound, map[string]string{
				"message":       "Image not Found",
				"requestedPath": requested,
			})
			return
		}
		files.ServeHTTP(w, r)
	})
}
