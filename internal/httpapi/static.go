package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// hashedAssetPattern matches build-tool-fingerprinted filenames, e.g.
// "app-a1b2c3d4e5f6.js" or "styles.9f8e7d6c5b4a.css".
var hashedAssetPattern = regexp.MustCompile(`[.-][A-Za-z0-9]{8,}\.\w+$`)

// StaticHandler serves a built SPA: index.html (with a no-cache SPA
// fallback for unmatched non-API paths), long-cache hashed assets, and
// day-cache everything else. It is registered on "/" alongside the API
// mux patterns, so any request under /api/ that didn't match one of
// those exact patterns would otherwise reach here too; ServeHTTP answers
// those with a JSON 404 instead of the SPA shell.
type StaticHandler struct {
	root string
}

// NewStaticHandler creates a StaticHandler rooted at root.
func NewStaticHandler(root string) *StaticHandler {
	return &StaticHandler{root: root}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cleanPath := filepath.Clean("/" + r.URL.Path)

	if strings.HasPrefix(cleanPath, "/api/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	full := filepath.Join(h.root, cleanPath)

	rel, err := filepath.Rel(h.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		h.serveIndex(w, r)
		return
	}

	w.Header().Set("Cache-Control", cacheControlFor(cleanPath))
	http.ServeFile(w, r, full)
}

func (h *StaticHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(h.root, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}

func cacheControlFor(p string) string {
	if hashedAssetPattern.MatchString(p) {
		return "public, max-age=31536000, immutable"
	}
	return "public, max-age=86400"
}
