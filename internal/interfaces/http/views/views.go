// Package views renders the portal workspaces from embedded templates.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/networknext/portal/internal/application/usertool"
	"github.com/networknext/portal/internal/domain/downloads"
	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/domain/user"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names a renderable workspace.
type Page string

const (
	PageDownloads Page = "downloads.html"
	PageUserTool  Page = "user_tool.html"
)

// Messages shown by the User Tool alerts.
const (
	MessageNoInput    = "Please enter a User ID to view their sessions."
	MessageNoSessions = "There are no sessions belonging to this user."
	MessageForbidden  = "You do not have permission to view sessions for this user."
	MessageFailed     = "Failed to fetch user sessions."
)

// Layout is the data every page shares.
type Layout struct {
	Title   string
	Active  string
	Viewer  user.Capabilities
	Company string
}

// NewLayout builds the layout for viewer. A nil viewer is anonymous.
func NewLayout(title, active string, viewer *user.Profile) Layout {
	l := Layout{Title: title, Active: active, Viewer: viewer.Capabilities()}
	if viewer != nil {
		l.Company = viewer.CompanyName
	}
	return l
}

type DownloadsPage struct {
	Layout
	Catalog *downloads.Catalog
}

type UserToolPage struct {
	Layout
	UserID       string
	State        usertool.ViewState
	Sessions     []session.Entry
	ErrorMessage string
}

var funcs = template.FuncMap{
	// onclick passes the catalog's navigation side effect through as
	// JavaScript. Catalog URLs are validated not to contain quotes.
	"onclick": func(item downloads.Item) template.JS {
		return template.JS(item.OnClick())
	},
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04:05 UTC")
	},
	"rtt": func(v float32) string {
		return fmt.Sprintf("%.1f ms", v)
	},
}

// Renderer executes the page templates.
type Renderer struct {
	pages map[Page]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[Page]*template.Template)}
	for _, p := range []Page{PageDownloads, PageUserTool} {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+string(p))
		if err != nil {
			return nil, fmt.Errorf("views: failed to parse %s: %w", p, err)
		}
		r.pages[p] = t
	}
	return r, nil
}

// MustNew is New for package initialisation; the templates are embedded, so a
// parse failure is a build defect.
func MustNew() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Render writes page with the given status. The page is rendered into a
// buffer first so a template failure never leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page Page, data interface{}) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("views: unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("views: failed to render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
