// Package web embeds the dashboard's HTML templates.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Templates parses the embedded page templates. It panics on a broken
// template since they ship with the binary.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templatesFS, "templates/*.tmpl"))
}
