package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
	"rtadmin/internal/middleware/trace"
)

const flashCookie = "rt_flash"

// flash is a one-shot notice carried across a redirect.
type flash struct {
	Kind    string
	Message string
}

// view is the data every page template receives.
type view struct {
	Title     string
	Nav       string
	Flash     *flash
	Alert     string
	// RequestID is shown beside an alert so a report can be matched to logs.
	RequestID string
	Data      any
}

// renderer holds one template set per page, each sharing the layout and
// partials, plus a base set for rendering partials alone.
type renderer struct {
	base  *template.Template
	pages map[string]*template.Template
}

func newRenderer(fsys fs.FS, storageURL string) (*renderer, error) {
	funcs := template.FuncMap{
		"ktpURL":     ktpURL(storageURL),
		"monthLabel": core.MonthLabel,
		"itemField":  itemField,
		"inc":        func(i int) int { return i + 1 },
	}

	base, err := template.New("base").Funcs(funcs).ParseFS(fsys, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/page_*.html")
	if err != nil {
		return nil, fmt.Errorf("list page templates: %w", err)
	}
	rd := &renderer{base: base, pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		t, err := template.Must(base.Clone()).ParseFS(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(path.Base(file), "page_"), ".html")
		rd.pages[name] = t
	}
	return rd, nil
}

// ktpURL joins a stored photo path onto the storage base.
func ktpURL(storageURL string) func(string) string {
	base := strings.TrimRight(storageURL, "/")
	return func(p string) string {
		p = strings.TrimLeft(strings.TrimSpace(p), "/")
		if p == "" {
			return ""
		}
		if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
			return p
		}
		return base + "/" + p
	}
}

// page renders a full page. The template is executed into a buffer first so
// a template error never leaves a half-written response.
func (rd *renderer) page(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	t, ok := rd.pages[name]
	if !ok {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Unknown page template",
			applog.FieldComponent, applog.ComponentTemplate, "template", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if v.Flash == nil {
		v.Flash = takeFlash(w, r)
	}
	if v.Alert != "" {
		v.RequestID = trace.GetRequestID(r.Context())
	}
	rd.execute(w, r, status, t, "layout", v)
}

// partial renders one named block, e.g. a table swapped in by htmx.
func (rd *renderer) partial(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	rd.execute(w, r, status, rd.base, name, data)
}

func (rd *renderer) execute(w http.ResponseWriter, r *http.Request, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.NewFields().
				WithComponent(applog.ComponentTemplate).
				WithOperation(applog.OpRender).
				WithError(err).
				ToSlice()...)
		http.Error(w, "Gagal menampilkan halaman", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirect sends a 303 to target, leaving a flash for the next page.
func redirect(w http.ResponseWriter, r *http.Request, target string, f *flash) {
	if f != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookie,
			Value:    url.QueryEscape(f.Kind + "|" + f.Message),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   60,
		})
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func takeFlash(w http.ResponseWriter, r *http.Request) *flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	kind, msg, ok := strings.Cut(raw, "|")
	if !ok || msg == "" {
		return nil
	}
	return &flash{Kind: kind, Message: msg}
}

func successFlash(msg string) *flash {
	return &flash{Kind: "success", Message: msg}
}

func errorFlash(msg string) *flash {
	return &flash{Kind: "error", Message: msg}
}
