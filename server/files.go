package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-pkgz/rest"
)

var errOutsideArchive = errors.New("path is outside of the archive")

// dirEntry is one item of a directory listing
type dirEntry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"` // relative to the archive root, forward slashes
	Dir     bool      `json:"dir"`
	Size    int64     `json:"size,omitempty"`
	ModTime time.Time `json:"mod_time"`
}

// browseHandler lists a directory of the archive, directories first, then files by name
func (s *Server) browseHandler(w http.ResponseWriter, r *http.Request) {
	rel, abs, err := s.archivePath(r.PathValue("path"))
	if err != nil {
		renderError(w, r, err, statusFor(err))
		return
	}

	items, err := os.ReadDir(abs)
	if err != nil {
		renderError(w, r, fmt.Errorf("can't list %s: %w", rel, err), statusFor(err))
		return
	}

	entries := make([]dirEntry, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(item.Name(), ".") {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue // removed while listing
		}
		entries = append(entries, dirEntry{
			Name:    item.Name(),
			Path:    path.Join(rel, item.Name()),
			Dir:     item.IsDir(),
			Size:    sizeOf(info),
			ModTime: info.ModTime().UTC(),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Dir != entries[j].Dir {
			return entries[i].Dir
		}
		return entries[i].Name < entries[j].Name
	})

	rest.RenderJSON(w, map[string]any{"path": rel, "entries": entries})
}

// fileHandler serves one archived file
func (s *Server) fileHandler(w http.ResponseWriter, r *http.Request) {
	rel, abs, err := s.archivePath(r.PathValue("path"))
	if err != nil {
		renderError(w, r, err, statusFor(err))
		return
	}

	fh, err := os.Open(abs) //nolint:gosec // abs is jailed inside the archive root
	if err != nil {
		renderError(w, r, fmt.Errorf("can't open %s: %w", rel, err), statusFor(err))
		return
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		renderError(w, r, fmt.Errorf("%s is a directory", rel), http.StatusBadRequest)
		return
	}

	if strings.EqualFold(filepath.Ext(abs), ".html") {
		// archived pages are rendered sandboxed
		w.Header().Set("Content-Security-Policy", "sandbox")
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), fh)
}

// archivePath maps a request path to the archive. It rejects any path that resolves
// outside of the root, including through symlinks.
func (s *Server) archivePath(reqPath string) (rel, abs string, err error) {
	rel = strings.Trim(path.Clean("/"+reqPath), "/")
	abs = filepath.Join(s.root, filepath.FromSlash(rel))

	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return "", "", fmt.Errorf("archive root unavailable: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", "", fmt.Errorf("can't resolve %s: %w", rel, err)
	}
	inside, err := filepath.Rel(root, resolved)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", "", errOutsideArchive
	}
	return rel, resolved, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errOutsideArchive):
		return http.StatusForbidden
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func sizeOf(info fs.FileInfo) int64 {
	if info.IsDir() {
		return 0
	}
	return info.Size()
}
