// Package templates holds the embedded HTML pages for the browser-facing
// authorization flow.
package templates

import (
	"embed"
	"html/template"
)

//go:embed pages/*.html
var pagesFS embed.FS

// Load parses the embedded pages. Pass the result to gin's SetHTMLTemplate.
func Load() *template.Template {
	return template.Must(template.ParseFS(pagesFS, "pages/*.html"))
}
