// Package notes implements the note lifecycle: creation with automatic slug
// derivation, ownership-checked mutation, and author-scoped listing/search.
package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slugnotes/slugnotes/internal/db"
	"github.com/slugnotes/slugnotes/internal/errs"
	"github.com/slugnotes/slugnotes/internal/slug"
)

// Service orchestrates note operations, applying the slug generator and the
// authorization gate around store access. The service itself is stateless;
// all state lives in the store.
type Service struct {
	store *Store
	gate  Gate
}

// NewService creates a notes service over the given database.
func NewService(appDB *db.AppDB) *Service {
	return &Service{store: NewStore(appDB)}
}

// Store exposes the underlying store for tests and admin tooling.
func (s *Service) Store() *Store {
	return s.store
}

// Create creates a note owned by principalID. An empty slug is derived from
// the title; a duplicate slug surfaces as a validation error on the "slug"
// field whose message starts with the conflicting value verbatim.
func (s *Service) Create(ctx context.Context, principalID string, params CreateParams) (*Note, error) {
	if principalID == "" {
		return nil, errs.New(errs.PermissionDenied, "authentication required")
	}
	if params.Title == "" {
		return nil, errs.Field("title", "title is required")
	}

	noteSlug := params.Slug
	if noteSlug == "" {
		noteSlug = slug.Generate(params.Title)
	}
	if err := validateSlug(noteSlug); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	note := &Note{
		ID:        uuid.New().String(),
		Title:     params.Title,
		Text:      params.Text,
		Slug:      noteSlug,
		AuthorID:  principalID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Insert(ctx, note); err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			return nil, errs.Field("slug", noteSlug+DuplicateSlugWarning)
		}
		return nil, fmt.Errorf("create note: %w", err)
	}
	return note, nil
}

// GetBySlug loads a note for its detail page. Non-authors receive a
// permission error that the boundary renders exactly like "not found".
func (s *Service) GetBySlug(ctx context.Context, principalID, noteSlug string) (*Note, error) {
	note, err := s.store.GetBySlug(ctx, noteSlug)
	if errors.Is(err, ErrNoteNotFound) {
		return nil, errs.New(errs.NotFound, "note not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}

	if !s.gate.CanAccess(principalID, note, ReadDetail) {
		return nil, errs.New(errs.PermissionDenied, "note not found")
	}
	return note, nil
}

// Update applies params to the note with the given id on behalf of
// principalID. Omitted fields keep their prior values; a slug explicitly set
// to "" is regenerated from the effective title. Slug uniqueness is enforced
// exactly as on create.
func (s *Service) Update(ctx context.Context, principalID, id string, params UpdateParams) (*Note, error) {
	note, err := s.store.GetByID(ctx, id)
	if errors.Is(err, ErrNoteNotFound) {
		return nil, errs.New(errs.NotFound, "note not found")
	}
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}

	if !s.gate.CanAccess(principalID, note, Edit) {
		return nil, errs.New(errs.PermissionDenied, "note not found")
	}

	updated := *note
	if params.Title != nil {
		updated.Title = *params.Title
	}
	if params.Text != nil {
		updated.Text = *params.Text
	}
	if params.Slug != nil {
		updated.Slug = *params.Slug
		if updated.Slug == "" {
			updated.Slug = slug.Generate(updated.Title)
		}
	}

	if updated.Title == "" {
		return nil, errs.Field("title", "title is required")
	}
	if err := validateSlug(updated.Slug); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, &updated); err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			return nil, errs.Field("slug", updated.Slug+DuplicateSlugWarning)
		}
		if errors.Is(err, ErrNoteNotFound) {
			return nil, errs.New(errs.NotFound, "note not found")
		}
		return nil, fmt.Errorf("update note: %w", err)
	}
	return &updated, nil
}

// Delete removes the note with the given id on behalf of principalID,
// subject to the same ownership rules as Update.
func (s *Service) Delete(ctx context.Context, principalID, id string) error {
	note, err := s.store.GetByID(ctx, id)
	if errors.Is(err, ErrNoteNotFound) {
		return errs.New(errs.NotFound, "note not found")
	}
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	if !s.gate.CanAccess(principalID, note, Delete) {
		return errs.New(errs.PermissionDenied, "note not found")
	}

	if err := s.store.Delete(ctx, note.ID); err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			return errs.New(errs.NotFound, "note not found")
		}
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// ListFor returns all of principalID's notes, most recent first. Only the
// principal's own notes are ever returned; the scoping is part of the query.
func (s *Service) ListFor(ctx context.Context, principalID string) ([]Note, error) {
	if principalID == "" {
		return nil, errs.New(errs.PermissionDenied, "authentication required")
	}
	list, err := s.store.ListByAuthor(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return list, nil
}

// SearchFor runs a full-text search over principalID's notes.
func (s *Service) SearchFor(ctx context.Context, principalID, query string) ([]Note, error) {
	if principalID == "" {
		return nil, errs.New(errs.PermissionDenied, "authentication required")
	}
	results, err := s.store.SearchByAuthor(ctx, principalID, query)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	return results, nil
}

// validateSlug rejects slugs the schema cannot hold. An empty slug here means
// the title had no convertible characters; storing it would make every such
// title collide on "", so it is reported against the slug field instead.
func validateSlug(noteSlug string) error {
	if noteSlug == "" {
		return errs.Field("slug", "a slug could not be derived from the title; provide one explicitly")
	}
	if len(noteSlug) > MaxSlugLen {
		return errs.Field("slug", fmt.Sprintf("slug must be at most %d characters", MaxSlugLen))
	}
	return nil
}
