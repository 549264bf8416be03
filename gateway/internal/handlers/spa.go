package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/inventra-labs/inventra/common/httputil"
)

// SPAHandler serves the built frontend. Paths that are not files get
// index.html so client-side routing works on reload.
type SPAHandler struct {
	staticPath string
	indexPath  string
	fileServer http.Handler
	available  bool
}

// NewSPAHandler serves staticPath. When the directory or its index.html is
// missing every request gets a JSON 404 instead.
func NewSPAHandler(staticPath string) *SPAHandler {
	indexPath := filepath.Join(staticPath, "index.html")
	_, err := os.Stat(indexPath)
	return &SPAHandler{
		staticPath: staticPath,
		indexPath:  indexPath,
		fileServer: http.FileServer(http.Dir(staticPath)),
		available:  staticPath != "" && err == nil,
	}
}

// Available reports whether a frontend build was found.
func (h *SPAHandler) Available() bool {
	return h.available
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.WriteNotFoundError(w, "No route matches "+r.Method+" "+r.URL.Path)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
		httputil.WriteNotFoundError(w, "No API route matches "+r.URL.Path)
		return
	}
	if !h.available {
		httputil.WriteNotFoundError(w, "The frontend is not served by this gateway")
		return
	}

	p := filepath.Join(h.staticPath, filepath.FromSlash(path.Clean("/"+r.URL.Path)))

	info, err := os.Stat(p)
	if os.IsNotExist(err) || (err == nil && info.IsDir()) {
		h.serveIndex(w, r)
		return
	} else if err != nil {
		httputil.WriteInternalError(w)
		return
	}

	h.fileServer.ServeHTTP(w, r)
}

func (h *SPAHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(h.indexPath)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	http.ServeContent(w, r, "index.html", info.ModTime(), f)
}
