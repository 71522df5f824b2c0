// Package web embeds the dev backend's host page (dist/) and serves it.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// Handler serves the host page and its assets. Unknown paths get index.html
// so the widget can be tried from any route; unknown /api/ paths stay 404.
func Handler() http.Handler {
	site, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: dist missing from embed: " + err.Error())
	}
	files := http.FileServer(http.FS(site))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}

		name := strings.TrimPrefix(r.URL.Path, "/")
		if name != "" {
			if _, err := fs.Stat(site, name); err != nil {
				r.URL.Path = "/"
			}
		}
		if r.URL.Path == "/" || name == "index.html" {
			w.Header().Set("Cache-Control", "no-store")
		}
		files.ServeHTTP(w, r)
	})
}
