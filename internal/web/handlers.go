// Package web provides HTTP handlers for the web UI.
package web

import (
	"errors"
	"net/http"

	"github.com/slugnotes/slugnotes/internal/auth"
	"github.com/slugnotes/slugnotes/internal/errs"
	"github.com/slugnotes/slugnotes/internal/notes"
	"github.com/slugnotes/slugnotes/internal/obs"
	"github.com/slugnotes/slugnotes/internal/urlutil"
)

// WebHandler provides HTTP handlers for web UI pages.
type WebHandler struct {
	renderer       *Renderer
	notesService   *notes.Service
	userService    *auth.UserService
	sessionService *auth.SessionService
	baseURL        string
}

// NewWebHandler creates a new web handler.
func NewWebHandler(
	renderer *Renderer,
	notesService *notes.Service,
	userService *auth.UserService,
	sessionService *auth.SessionService,
	baseURL string,
) *WebHandler {
	return &WebHandler{
		renderer:       renderer,
		notesService:   notesService,
		userService:    userService,
		sessionService: sessionService,
		baseURL:        baseURL,
	}
}

// RegisterRoutes registers all web UI routes on the given mux.
func (h *WebHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	// Home page (public)
	mux.Handle("GET /{$}", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleHome)))

	// Auth pages (public)
	mux.HandleFunc("GET /auth/login/{$}", h.HandleLoginPage)
	mux.HandleFunc("POST /auth/login/{$}", h.HandleLogin)
	mux.HandleFunc("GET /auth/signup/{$}", h.HandleSignupPage)
	mux.HandleFunc("POST /auth/signup/{$}", h.HandleSignup)
	mux.HandleFunc("POST /auth/logout/{$}", h.HandleLogout)

	// Notes (auth required, anonymous users bounce to login with next=)
	requireAuth := func(handler http.HandlerFunc) http.Handler {
		return authMiddleware.RequireAuthWithRedirect(handler)
	}
	mux.Handle("GET /notes/{$}", requireAuth(h.HandleNotesList))
	mux.Handle("GET /notes/add/{$}", requireAuth(h.HandleAddNotePage))
	mux.Handle("POST /notes/add/{$}", requireAuth(h.HandleAddNote))
	mux.Handle("GET /notes/done/{$}", requireAuth(h.HandleDone))
	mux.Handle("GET /notes/search/{$}", requireAuth(h.HandleSearch))
	mux.Handle("GET /notes/{slug}/{$}", requireAuth(h.HandleViewNote))
	mux.Handle("GET /notes/{slug}/edit/{$}", requireAuth(h.HandleEditNotePage))
	mux.Handle("POST /notes/{slug}/edit/{$}", requireAuth(h.HandleEditNote))
	mux.Handle("GET /notes/{slug}/delete/{$}", requireAuth(h.HandleDeleteNotePage))
	mux.Handle("POST /notes/{slug}/delete/{$}", requireAuth(h.HandleDeleteNote))
}

// PageData contains common data passed to all templates.
type PageData struct {
	Title        string
	Username     string
	FlashMessage string
	FlashType    string // "success", "error", "info"
	Error        string
}

// NotesListData contains data for the notes list page.
type NotesListData struct {
	PageData
	Notes []notes.Note
	Query string
}

// NoteViewData contains data for the note detail page.
type NoteViewData struct {
	PageData
	Note *notes.Note
}

// NoteFormData contains data for the add and edit note pages.
type NoteFormData struct {
	PageData
	Form   NoteForm
	IsEdit bool
	Slug   string // Current slug when editing
}

// AuthPageData contains data for the login and signup pages.
type AuthPageData struct {
	PageData
	Form AuthForm
}

// pageData builds common template data, resolving the username when the
// request carries an authenticated session.
func (h *WebHandler) pageData(r *http.Request, title string) PageData {
	data := PageData{Title: title}
	if userID := auth.GetUserID(r.Context()); userID != "" {
		if user, err := h.userService.GetByID(r.Context(), userID); err == nil {
			data.Username = user.Username
		}
	}
	return data
}

// renderServiceError maps a service error to the right error page. Missing
// notes and notes owned by someone else both surface as 404 here.
func (h *WebHandler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(errs.CodeOf(err))
	message := errs.MessageOf(err)
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).Error("handler error", "path", r.URL.Path, "err", err)
		message = "Something went wrong"
	}
	h.renderer.RenderError(w, status, message)
}

// HandleHome handles GET / - the public landing page.
func (h *WebHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "Notes")
	if err := h.renderer.Render(w, "home.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// ============================================================================
// Auth pages
// ============================================================================

// HandleLoginPage handles GET /auth/login/ - shows the login form.
func (h *WebHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := AuthPageData{
		PageData: h.pageData(r, "Sign In"),
		Form:     AuthForm{Next: urlutil.NextOrDefault(r, "")},
	}
	if err := h.renderer.Render(w, "auth/login.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleLogin handles POST /auth/login/ - verifies credentials and starts a
// session. On success the user is returned to the page they came from via
// the validated next parameter.
func (h *WebHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	next := urlutil.NextOrDefault(r, "/notes/")

	user, err := h.userService.VerifyLogin(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			data := AuthPageData{
				PageData: h.pageData(r, "Sign In"),
				Form: AuthForm{
					Username: username,
					Error:    "Invalid username or password",
					Next:     r.FormValue("next"),
				},
			}
			if err := h.renderer.Render(w, "auth/login.html", data); err != nil {
				http.Error(w, "Failed to render page", http.StatusInternalServerError)
			}
			return
		}
		h.renderServiceError(w, r, err)
		return
	}

	h.startSession(w, r, user.ID, next)
}

// HandleSignupPage handles GET /auth/signup/ - shows the signup form.
func (h *WebHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	data := AuthPageData{PageData: h.pageData(r, "Sign Up")}
	if err := h.renderer.Render(w, "auth/signup.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleSignup handles POST /auth/signup/ - creates an account and signs in.
func (h *WebHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := h.userService.Register(r.Context(), username, password)
	if err != nil {
		message := "Failed to create account"
		switch {
		case errors.Is(err, auth.ErrAccountExists):
			message = "That username is already taken"
		case errors.Is(err, auth.ErrWeakPassword):
			message = err.Error()
		case errors.Is(err, auth.ErrInvalidUsername):
			message = err.Error()
		default:
			h.renderServiceError(w, r, err)
			return
		}
		data := AuthPageData{
			PageData: h.pageData(r, "Sign Up"),
			Form:     AuthForm{Username: username, Error: message},
		}
		if err := h.renderer.Render(w, "auth/signup.html", data); err != nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
		}
		return
	}

	h.startSession(w, r, user.ID, "/notes/")
}

// HandleLogout handles POST /auth/logout/ - ends the session.
func (h *WebHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := auth.GetFromRequest(r); err == nil {
		_ = h.sessionService.Delete(r.Context(), sessionID)
	}
	h.sessionService.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *WebHandler) startSession(w http.ResponseWriter, r *http.Request, userID, next string) {
	sessionID, err := h.sessionService.Create(r.Context(), userID)
	if err != nil {
		obs.From(r.Context()).Error("create session failed", "err", err)
		h.renderer.RenderError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	h.sessionService.SetCookie(w, sessionID)
	if next == "" {
		next = "/notes/"
	}
	http.Redirect(w, r, next, http.StatusFound)
}

// ============================================================================
// Notes pages
// ============================================================================

// HandleNotesList handles GET /notes/ - lists the signed-in user's notes,
// most recent first. Other users' notes never appear here.
func (h *WebHandler) HandleNotesList(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	list, err := h.notesService.ListFor(r.Context(), userID)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	data := NotesListData{
		PageData: h.pageData(r, "My Notes"),
		Notes:    list,
	}
	if err := h.renderer.Render(w, "notes/list.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleSearch handles GET /notes/search/ - full-text search over the
// signed-in user's notes.
func (h *WebHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	query := r.URL.Query().Get("q")

	var list []notes.Note
	if query != "" {
		var err error
		list, err = h.notesService.SearchFor(r.Context(), userID, query)
		if err != nil {
			h.renderServiceError(w, r, err)
			return
		}
	}

	data := NotesListData{
		PageData: h.pageData(r, "Search"),
		Notes:    list,
		Query:    query,
	}
	if err := h.renderer.Render(w, "notes/search.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleAddNotePage handles GET /notes/add/ - shows the new note form.
func (h *WebHandler) HandleAddNotePage(w http.ResponseWriter, r *http.Request) {
	data := NoteFormData{
		PageData: h.pageData(r, "Add Note"),
		Form:     NoteForm{Errors: map[string]string{}},
	}
	if err := h.renderer.Render(w, "notes/form.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleAddNote handles POST /notes/add/ - creates a note. A blank slug is
// derived from the title; a colliding slug re-renders the form with the
// offending value called out on the slug field.
func (h *WebHandler) HandleAddNote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	userID := auth.GetUserID(r.Context())
	form := NoteFormFromRequest(r)

	_, err := h.notesService.Create(r.Context(), userID, notes.CreateParams{
		Title: form.Title,
		Text:  form.Text,
		Slug:  form.Slug,
	})
	if err != nil {
		if form.AddServiceError(err) {
			data := NoteFormData{
				PageData: h.pageData(r, "Add Note"),
				Form:     form,
			}
			if err := h.renderer.Render(w, "notes/form.html", data); err != nil {
				http.Error(w, "Failed to render page", http.StatusInternalServerError)
			}
			return
		}
		h.renderServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, "/notes/done/", http.StatusFound)
}

// HandleDone handles GET /notes/done/ - the post-submit success page.
func (h *WebHandler) HandleDone(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "Done")
	if err := h.renderer.Render(w, "notes/done.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleViewNote handles GET /notes/{slug}/ - the note detail page.
// A note owned by someone else renders exactly like a missing one.
func (h *WebHandler) HandleViewNote(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	note, err := h.notesService.GetBySlug(r.Context(), userID, r.PathValue("slug"))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	data := NoteViewData{
		PageData: h.pageData(r, note.Title),
		Note:     note,
	}
	if err := h.renderer.Render(w, "notes/view.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleEditNotePage handles GET /notes/{slug}/edit/ - shows the edit form.
func (h *WebHandler) HandleEditNotePage(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	note, err := h.notesService.GetBySlug(r.Context(), userID, r.PathValue("slug"))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	data := NoteFormData{
		PageData: h.pageData(r, "Edit: "+note.Title),
		Form: NoteForm{
			Title:  note.Title,
			Text:   note.Text,
			Slug:   note.Slug,
			Errors: map[string]string{},
		},
		IsEdit: true,
		Slug:   note.Slug,
	}
	if err := h.renderer.Render(w, "notes/form.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleEditNote handles POST /notes/{slug}/edit/ - updates a note.
func (h *WebHandler) HandleEditNote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	userID := auth.GetUserID(r.Context())
	currentSlug := r.PathValue("slug")

	note, err := h.notesService.GetBySlug(r.Context(), userID, currentSlug)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	form := NoteFormFromRequest(r)
	_, err = h.notesService.Update(r.Context(), userID, note.ID, notes.UpdateParams{
		Title: &form.Title,
		Text:  &form.Text,
		Slug:  &form.Slug,
	})
	if err != nil {
		if form.AddServiceError(err) {
			data := NoteFormData{
				PageData: h.pageData(r, "Edit: "+note.Title),
				Form:     form,
				IsEdit:   true,
				Slug:     currentSlug,
			}
			if err := h.renderer.Render(w, "notes/form.html", data); err != nil {
				http.Error(w, "Failed to render page", http.StatusInternalServerError)
			}
			return
		}
		h.renderServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, "/notes/done/", http.StatusFound)
}

// HandleDeleteNotePage handles GET /notes/{slug}/delete/ - the delete
// confirmation page.
func (h *WebHandler) HandleDeleteNotePage(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	note, err := h.notesService.GetBySlug(r.Context(), userID, r.PathValue("slug"))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	data := NoteViewData{
		PageData: h.pageData(r, "Delete: "+note.Title),
		Note:     note,
	}
	if err := h.renderer.Render(w, "notes/delete.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleDeleteNote handles POST /notes/{slug}/delete/ - deletes a note.
func (h *WebHandler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	note, err := h.notesService.GetBySlug(r.Context(), userID, r.PathValue("slug"))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	if err := h.notesService.Delete(r.Context(), userID, note.ID); err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, "/notes/done/", http.StatusFound)
}
