package web

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/keepsake/internal/capsule"
	"github.com/hpungsan/keepsake/internal/errors"
)

// PreviewPageData is the template data for the capsule preview page.
type PreviewPageData struct {
	Title       string
	Version     string
	Capsule     capsule.Capsule
	Description template.HTML
	Items       []capsule.Item
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"formatTime": formatTime,
	}

	pages := map[string]string{
		"preview": "preview.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		templates[name] = template.Must(template.New(file).Funcs(funcMap).ParseFS(templateFS, file))
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// renderPage renders a named page template with HTTP 200.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	logger := zerolog.Ctx(req.Context())
	t, ok := r.templates[name]
	if !ok {
		logger.Error().Str("template", name).Msg("template not found")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		logger.Error().Err(err).Str("template", name).Msg("template execution error")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// renderError writes err as {"error":{code,message,status,details}} with the error's status.
// Errors that are not KeepsakeErrors are reported as INTERNAL.
func renderError(w http.ResponseWriter, req *http.Request, err error) {
	kErr, ok := errors.As(err)
	if !ok {
		kErr = errors.NewInternal(err)
	}

	if kErr.Status >= http.StatusInternalServerError {
		zerolog.Ctx(req.Context()).Error().
			Str("code", string(kErr.Code)).
			Interface("details", kErr.Details).
			Msg(kErr.Message)
	}

	body := map[string]any{
		"code":    string(kErr.Code),
		"message": kErr.Message,
		"status":  kErr.Status,
	}
	if len(kErr.Details) > 0 && kErr.Code != errors.ErrInternal {
		body["details"] = kErr.Details
	}
	renderJSON(w, kErr.Status, map[string]any{"error": body})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// setETag exposes a versioned record's version as a quoted entity tag.
func setETag(w http.ResponseWriter, version uint32) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatUint(uint64(version), 10)))
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a time as "2006-01-02 15:04" UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}
