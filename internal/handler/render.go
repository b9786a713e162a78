package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/itemdesk/itemdesk/internal/model"
	"github.com/itemdesk/itemdesk/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page template names.
const (
	pageRegister = "register.html"
	pageLogin    = "login.html"
	pageItems    = "items.html"
	pageItemNew  = "item_new.html"
	pageError    = "error.html"
)

var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") },
	"isoTime":    func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}

// PageData is the view model shared by every page.
type PageData struct {
	Title   string
	User    *model.Principal
	Flashes []session.Flash
	Form    map[string]string
	Items   []*model.Item
	Message string
}

// Renderer executes the embedded page templates inside the base layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page template once at startup.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, page := range []string{pageRegister, pageLogin, pageItems, pageItemNew, pageError} {
		tmpl, err := template.New(page).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// Render writes page with the given status. The page is fully executed
// before anything is written, so a template error still yields a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("execute template %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
