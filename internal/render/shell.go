// Package render builds the embed page shell served to the browser. Live
// state is injected over the page websocket; the shell itself is static.
package render

import (
	_ "embed"
	"strings"
)

//go:embed page.html
var pageTemplate string

// RenderShell returns the embed page HTML with the viewer URL substituted at
// the {{VIEWER_URL}} placeholder.
func RenderShell(viewerURL string) string {
	return strings.Replace(pageTemplate, "{{VIEWER_URL}}", viewerURL, 1)
}
