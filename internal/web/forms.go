package web

import (
	"net/http"
	"strings"

	"github.com/slugnotes/slugnotes/internal/errs"
)

// NoteForm carries submitted note fields and per-field validation errors
// back to the form template.
type NoteForm struct {
	Title  string
	Text   string
	Slug   string
	Errors map[string]string
}

// NoteFormFromRequest reads note fields from a parsed form.
func NoteFormFromRequest(r *http.Request) NoteForm {
	return NoteForm{
		Title:  strings.TrimSpace(r.FormValue("title")),
		Text:   r.FormValue("text"),
		Slug:   strings.TrimSpace(r.FormValue("slug")),
		Errors: make(map[string]string),
	}
}

// AddError records a validation error for a field. Errors for unknown fields
// land on the form itself under the empty key.
func (f *NoteForm) AddError(field, message string) {
	if f.Errors == nil {
		f.Errors = make(map[string]string)
	}
	f.Errors[field] = message
}

// AddServiceError maps a service validation error onto the form. Returns
// false when the error is not a field-scoped validation error, in which case
// the caller should treat it as an internal failure.
func (f *NoteForm) AddServiceError(err error) bool {
	field := errs.FieldOf(err)
	if field == "" {
		return false
	}
	f.AddError(field, errs.MessageOf(err))
	return true
}

// HasErrors reports whether any field failed validation.
func (f *NoteForm) HasErrors() bool {
	return len(f.Errors) > 0
}

// AuthForm carries submitted credentials and an error message for the login
// and signup templates.
type AuthForm struct {
	Username string
	Error    string
	Next     string
}
