package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/slugnotes/slugnotes/internal/db"
)

// Store persists note records in the application database.
//
// Slug uniqueness is enforced by the UNIQUE constraint on notes.slug, so the
// check is atomic with the write: two concurrent inserts with the same slug
// cannot both succeed, and no read-then-write race exists in this layer.
type Store struct {
	db *db.AppDB
}

// NewStore creates a note store over the given database.
func NewStore(appDB *db.AppDB) *Store {
	return &Store{db: appDB}
}

// Insert persists a new note. Returns ErrDuplicateSlug if the slug is already
// taken by any note, regardless of author.
func (s *Store) Insert(ctx context.Context, note *Note) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO notes (id, title, text, slug, author_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, note.ID, note.Title, note.Text, note.Slug, note.AuthorID,
		note.CreatedAt.Unix(), note.UpdatedAt.Unix())
	if err != nil {
		if db.IsUniqueViolation(err, "notes.slug") {
			return fmt.Errorf("insert note %q: %w", note.Slug, ErrDuplicateSlug)
		}
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// GetByID retrieves a note by its identity.
func (s *Store) GetByID(ctx context.Context, id string) (*Note, error) {
	return s.getOne(ctx, `WHERE id = ?`, id)
}

// GetBySlug retrieves a note by its slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Note, error) {
	return s.getOne(ctx, `WHERE slug = ?`, slug)
}

func (s *Store) getOne(ctx context.Context, where string, arg any) (*Note, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, title, text, slug, author_id, created_at, updated_at
		FROM notes `+where, arg)

	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read note: %w", err)
	}
	return note, nil
}

// ListByAuthor returns all notes owned by the given author, most recent
// first. The scoping happens in the query itself: notes of other authors are
// never materialized, let alone filtered afterwards.
func (s *Store) ListByAuthor(ctx context.Context, authorID string) ([]Note, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, title, text, slug, author_id, created_at, updated_at
		FROM notes
		WHERE author_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, authorID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

// Update rewrites the mutable fields of an existing note. Returns
// ErrNoteNotFound if the id does not exist and ErrDuplicateSlug if the new
// slug collides with another note.
func (s *Store) Update(ctx context.Context, note *Note) error {
	res, err := s.db.DB().ExecContext(ctx, `
		UPDATE notes
		SET title = ?, text = ?, slug = ?, updated_at = ?
		WHERE id = ?
	`, note.Title, note.Text, note.Slug, note.UpdatedAt.Unix(), note.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "notes.slug") {
			return fmt.Errorf("update note %q: %w", note.Slug, ErrDuplicateSlug)
		}
		return fmt.Errorf("update note: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if affected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// Delete removes a note permanently. Returns ErrNoteNotFound if the id does
// not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.DB().ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if affected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// Count returns the total number of notes across all authors.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return count, nil
}

// SearchByAuthor performs a full-text search over the given author's notes
// using FTS5. The query is user input and is escaped before hitting MATCH.
// Results are ranked by relevance.
func (s *Store) SearchByAuthor(ctx context.Context, authorID, query string) ([]Note, error) {
	escaped := EscapeFTS5Query(query)
	if escaped == "" {
		return nil, nil
	}

	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT n.id, n.title, n.text, n.slug, n.author_id, n.created_at, n.updated_at
		FROM notes n
		JOIN fts_notes f ON n.rowid = f.rowid
		WHERE fts_notes MATCH ? AND n.author_id = ?
		ORDER BY rank
	`, escaped, authorID)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*Note, error) {
	var n Note
	var createdAt, updatedAt int64
	if err := row.Scan(&n.ID, &n.Title, &n.Text, &n.Slug, &n.AuthorID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	n.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &n, nil
}

func collectNotes(rows *sql.Rows) ([]Note, error) {
	var notes []Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}
