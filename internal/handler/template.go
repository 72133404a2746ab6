package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dukerupert/reunite/internal/claim"
	"github.com/dukerupert/reunite/internal/listing"
	"github.com/dukerupert/reunite/internal/model"
	webembed "github.com/dukerupert/reunite/web"
)

var pages = []string{
	"home.html",
	"about.html",
	"login.html",
	"signup.html",
	"error.html",
	"confirm.html",
	"dashboard.html",
	"admin.html",
	"found.html",
	"lost.html",
	"report.html",
	"claim_new.html",
	"claims.html",
	"claim_detail.html",
	"matches.html",
	"qr_public.html",
	"qr_codes.html",
	"rewards.html",
	"chat.html",
}

// Templates holds one parsed set per page plus the shared partials.
type Templates struct {
	pages    map[string]*template.Template
	partials *template.Template
	logger   *slog.Logger
}

// FuncMap returns the template function map. assetURL prefixes relative
// photo and QR image paths returned by the API.
func FuncMap(assetURL string) template.FuncMap {
	assetURL = strings.TrimRight(assetURL, "/")
	return template.FuncMap{
		"asset": func(path string) string {
			switch {
			case path == "":
				return ""
			case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
				return path
			case strings.HasPrefix(path, "/"):
				return assetURL + path
			}
			return assetURL + "/" + path
		},
		"date": func(t model.Timestamp) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
		"datetime": func(t model.Timestamp) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006 15:04")
		},
		"title": func(s string) string {
			r, size := utf8.DecodeRuneInString(s)
			if r == utf8.RuneError {
				return s
			}
			return string(unicode.ToUpper(r)) + s[size:]
		},
		"canDelete": listing.CanDelete,
		"claimRole": func(c model.Claim, userID int64) string {
			return claim.RoleOf(c, userID).String()
		},
	}
}

// LoadTemplates parses every page together with the layout and partials.
func LoadTemplates(assetURL string, logger *slog.Logger) (*Templates, error) {
	tfs := webembed.TemplatesFS()
	funcs := FuncMap(assetURL)

	layout, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}
	partials, err := fs.ReadFile(tfs, "partials.html")
	if err != nil {
		return nil, fmt.Errorf("reading partials template: %w", err)
	}

	ts := &Templates{pages: make(map[string]*template.Template), logger: logger}

	ts.partials, err = template.New("partials").Funcs(funcs).Parse(string(partials))
	if err != nil {
		return nil, fmt.Errorf("parsing partials: %w", err)
	}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(funcs)
		for _, src := range []string{string(layout), string(partials), string(pageBytes)} {
			if tmpl, err = tmpl.Parse(src); err != nil {
				return nil, fmt.Errorf("parsing template %s: %w", page, err)
			}
		}
		ts.pages[page] = tmpl
	}

	return ts, nil
}

// Render writes a full page with the given status.
func (ts *Templates) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.pages[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	// Render into a buffer so a template error does not leave half a page.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		ts.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// RenderPartial executes one named partial into a string.
func (ts *Templates) RenderPartial(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := ts.partials.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render partial %s: %w", name, err)
	}
	return buf.String(), nil
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	User    *model.User
	Nav     string
	Error   string
	Success string
}
