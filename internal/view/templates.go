package view

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/worktrack/worktrack/internal/authctx"
	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title           string
	Flash           *shared.FlashMessage
	CurrentPath     string
	User            *authctx.Profile
	IsAuthenticated bool
	IsAdmin         bool
	Data            any

	csrf    *shared.CSRFManager
	storage *shared.Storage
}

// CSRFFor returns the CSRF token for a form posting to action.
func (td TemplateData) CSRFFor(action string) string {
	return td.csrf.TokenFor(td.storage, action)
}

var titleCaser = cases.Title(language.English)

// RoleLabel turns ROLE_SITE_ADMIN into "Site Admin".
func RoleLabel(role string) string {
	role = strings.TrimPrefix(strings.TrimSpace(role), "ROLE_")
	role = strings.ReplaceAll(role, "_", " ")
	return titleCaser.String(strings.ToLower(role))
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t *time.Time) string {
			if t == nil || t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"inputDate": func(t *time.Time) string {
			if t == nil || t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"roleLabel": RoleLabel,
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// Page fills the fields every page shares from the request context: the
// auth state, the CSRF seed and the pending flash.
func Page(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	ctx := r.Context()
	st := shared.StorageFromContext(ctx)
	td := TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Flash:       st.PopFlash(),
		Data:        data,
		csrf:        csrf,
		storage:     st,
	}
	if csrf != nil {
		_ = csrf.Prepare(st)
	}
	if state, err := authctx.FromContext(ctx); err == nil {
		td.User = state.User()
		td.IsAuthenticated = state.IsAuthenticated()
		td.IsAdmin = state.IsAdmin()
	}
	return td
}
