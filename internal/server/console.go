package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// consoleHandler serves the embedded voice console. Paths that don't name a
// real asset fall back to index.html, so bookmarked console URLs with query
// state (token, session id) still load the app.
func consoleHandler(assets fs.FS) http.Handler {
	files := http.FileServerFS(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if name == "." {
			name = "index.html"
		}
		if _, err := fs.Stat(assets, name); err != nil {
			r.URL.Path = "/"
		}
		files.ServeHTTP(w, r)
	})
}
