package web

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates
var templatesFS embed.FS

func renderDashboard(w io.Writer) error {
	t, err := template.ParseFS(templatesFS, "templates/dashboard.html.tpl")
	if err != nil {
		return err
	}
	return t.Execute(w, nil)
}
