package response

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/dmitrymomot/authgate/internal/handler"
)

// Template creates an HTML response using html/template with 200 OK status.
// The template is buffered before writing, so a render failure produces no
// partial output and can still be converted into an error response.
func Template(tmpl *template.Template, data any) handler.Response {
	return TemplateWithStatus(tmpl, data, http.StatusOK)
}

// TemplateWithStatus creates a buffered HTML response with custom status code.
func TemplateWithStatus(tmpl *template.Template, data any, status int) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		if tmpl == nil {
			return fmt.Errorf("template is nil")
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return err
		}

		if status == 0 {
			status = http.StatusOK
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, err := w.Write(buf.Bytes())
		return err
	}
}

// TemplateName renders a named template from a template collection
// (e.g., from ParseFiles or ParseFS).
func TemplateName(tmpl *template.Template, name string, data any) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		if tmpl == nil {
			return fmt.Errorf("template is nil")
		}

		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
			return err
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write(buf.Bytes())
		return err
	}
}
