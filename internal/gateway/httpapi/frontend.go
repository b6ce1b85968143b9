package httpapi

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed web
var webFS embed.FS

// dashboardHandler serves the embedded single-page dashboard.
func dashboardHandler() http.Handler {
	subFS, _ := fs.Sub(webFS, "web")
	return http.FileServer(http.FS(subFS))
}
