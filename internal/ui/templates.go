package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer serves the embedded login, consent and error pages.
type Renderer struct {
	templates *template.Template
}

func NewRenderer() (*Renderer, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}

	return &Renderer{
		templates: templates,
	}, nil
}

type LoginData struct {
	// Error is the marker from the login redirect, e.g. "invalid_user".
	Error string
}

func (r *Renderer) RenderLogin(w io.Writer, data LoginData) error {
	return r.templates.ExecuteTemplate(w, "login.html", data)
}

type ConsentData struct {
	ClientName string
}

func (r *Renderer) RenderConsent(w io.Writer, data ConsentData) error {
	return r.templates.ExecuteTemplate(w, "consent.html", data)
}

type ErrorData struct {
	Title  string
	Detail string
}

func (r *Renderer) RenderError(w io.Writer, data ErrorData) error {
	return r.templates.ExecuteTemplate(w, "error.html", data)
}
