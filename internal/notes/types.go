package notes

import (
	"errors"
	"time"
)

// MaxSlugLen is the longest slug accepted from a form or produced by the
// generator before truncation.
const MaxSlugLen = 100

// DuplicateSlugWarning is the fixed suffix appended to the conflicting slug in
// the validation message shown on a uniqueness failure. The message always
// starts with the offending slug verbatim so the form can display exactly
// which value collided.
const DuplicateSlugWarning = " - this slug already exists, please pick a unique value!"

// Store-level error sentinels.
var (
	// ErrNoteNotFound is returned when no note matches the given id or slug.
	ErrNoteNotFound = errors.New("note not found")

	// ErrDuplicateSlug is returned when an insert or update would violate
	// the global slug uniqueness constraint.
	ErrDuplicateSlug = errors.New("slug already exists")
)

// AccessMode enumerates the gated operations on a single note.
type AccessMode int

const (
	ReadDetail AccessMode = iota
	Edit
	Delete
)

func (m AccessMode) String() string {
	switch m {
	case ReadDetail:
		return "read_detail"
	case Edit:
		return "edit"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Note is a titled text record owned by exactly one author and addressed
// externally by its unique slug.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Slug      string    `json:"slug"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateParams contains parameters for creating a note. An empty Slug means
// "derive one from the title".
type CreateParams struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Slug  string `json:"slug"`
}

// UpdateParams contains parameters for updating a note. Fields are pointers
// to distinguish "leave unchanged" from "set to empty". A Slug pointing at an
// empty string means "regenerate from the title".
type UpdateParams struct {
	Title *string `json:"title,omitempty"`
	Text  *string `json:"text,omitempty"`
	Slug  *string `json:"slug,omitempty"`
}
