package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mwierzba/autonajem/internal/model"
	webembed "github.com/mwierzba/autonajem/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"formatPrice": func(price float64) string {
			return strconv.FormatFloat(price, 'f', 2, 64) + " zł"
		},
		"sortName": func(option string) string {
			switch option {
			case "relevance":
				return "Trafność"
			case "name.asc":
				return "Nazwa rosnąco"
			case "name.desc":
				return "Nazwa malejąco"
			case "price.asc":
				return "Cena rosnąco"
			case "price.desc":
				return "Cena malejąco"
			default:
				return option
			}
		},
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"cars.html",
		"car_detail.html",
		"car_edit.html",
		"login.html",
		"register.html",
		"users.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title     string
	User      *model.User
	Error     string
	Success   string
	ShowLogin bool
	Permitted bool
	LoggedIn  bool
}
