// Package web renders the HTML pages of the site from embedded templates.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"phatsurf/internal/models"
)

//go:embed templates/*.html
var files embed.FS

// Page names.
const (
	PageIndex     = "index"
	PageRegister  = "register"
	PageLogin     = "login"
	PageDashboard = "dashboard"
)

// PageData is what every page template receives.
type PageData struct {
	Title   string
	Flashes []models.Flash
	User    *models.User
	// CSRFField is the hidden anti-forgery input for forms, empty when
	// protection is off.
	CSRFField template.HTML
}

type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	pages := map[string]*template.Template{}
	for _, name := range []string{PageIndex, PageRegister, PageLogin, PageDashboard} {
		t, err := template.ParseFS(files, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

// Render writes page with status 200. The page is rendered into a buffer
// first so a template error never produces a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, page string, data PageData) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}
