package httpapi

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed static/*
var consoleFS embed.FS

// newStaticHandler serves the embedded rehearsal console. Unknown paths
// fall back to the console page so client-side routes keep working.
func newStaticHandler() http.Handler {
	sub, err := fs.Sub(consoleFS, "static")
	if err != nil {
		return http.NotFoundHandler()
	}
	files := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path != "" && path != "index.html" {
			if _, err := fs.Stat(sub, path); err != nil {
				r.URL.Path = "/"
			}
		}
		w.Header().Set("Cache-Control", "no-store")
		files.ServeHTTP(w, r)
	})
}
