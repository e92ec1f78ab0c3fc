package notes

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/slugnotes/slugnotes/internal/db"
	"github.com/slugnotes/slugnotes/internal/errs"
	"github.com/slugnotes/slugnotes/internal/slug"
	"github.com/slugnotes/slugnotes/internal/testdb"
)

var userCounter atomic.Int64

type fataler interface {
	Fatalf(format string, args ...interface{})
}

// setupService creates a notes service over a fresh in-memory database.
func setupService(t testing.TB) (*Service, *db.AppDB) {
	t.Helper()
	return createService(t)
}

func createService(t fataler) (*Service, *db.AppDB) {
	appDB, err := testdb.NewAppDBInMemory()
	if err != nil {
		t.Fatalf("failed to create in-memory database: %v", err)
	}
	return NewService(appDB), appDB
}

// createUser inserts a user row directly; the notes schema references
// users(id), so every author in a test must exist.
func createUser(t fataler, appDB *db.AppDB, username string) string {
	id := fmt.Sprintf("user-%d", userCounter.Add(1))
	_, err := appDB.DB().Exec(
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, '', ?)`,
		id, fmt.Sprintf("%s-%s", username, id), time.Now().Unix(),
	)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return id
}

func mustCount(t fataler, svc *Service) int64 {
	count, err := svc.Store().Count(context.Background())
	if err != nil {
		t.Fatalf("failed to count notes: %v", err)
	}
	return count
}

// notFoundAtBoundary asserts that err renders as 404 at the HTTP boundary.
// Both genuine not-found and non-author access must satisfy this, and must be
// indistinguishable from each other.
func notFoundAtBoundary(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := errs.HTTPStatus(errs.CodeOf(err)); got != 404 {
		t.Fatalf("boundary status = %d, want 404 (err: %v)", got, err)
	}
	if got := errs.MessageOf(err); got != "note not found" {
		t.Fatalf("boundary message = %q, want %q", got, "note not found")
	}
}

func TestCreate_ExplicitSlug(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	ctx := context.Background()

	note, err := svc.Create(ctx, author, CreateParams{
		Title: "Заголовок",
		Text:  "Текст заметки",
		Slug:  "note-slug",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if note.Slug != "note-slug" {
		t.Fatalf("slug = %q, want %q", note.Slug, "note-slug")
	}
	if note.AuthorID != author {
		t.Fatalf("author = %q, want %q", note.AuthorID, author)
	}
	if note.ID == "" {
		t.Fatal("note ID should not be empty")
	}
	if got := mustCount(t, svc); got != 1 {
		t.Fatalf("note count = %d, want 1", got)
	}

	stored, err := svc.Store().GetBySlug(ctx, "note-slug")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if stored.Title != "Заголовок" || stored.Text != "Текст заметки" {
		t.Fatalf("stored note mismatch: %+v", stored)
	}
}

func TestCreate_GeneratesSlugFromTitle(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	ctx := context.Background()

	title := `Заголовок "Пустой слаг"`
	note, err := svc.Create(ctx, author, CreateParams{Title: title, Text: "Какой-то текст"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if want := slug.Generate(title); note.Slug != want {
		t.Fatalf("slug = %q, want %q", note.Slug, want)
	}
	if got := mustCount(t, svc); got != 1 {
		t.Fatalf("note count = %d, want 1", got)
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	ctx := context.Background()

	if _, err := svc.Create(ctx, author, CreateParams{Title: "First", Slug: "note-slug"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err := svc.Create(ctx, author, CreateParams{Title: "Second", Slug: "note-slug"})
	if err == nil {
		t.Fatal("expected duplicate slug error")
	}
	if got := errs.FieldOf(err); got != "slug" {
		t.Fatalf("error field = %q, want %q", got, "slug")
	}
	msg := errs.MessageOf(err)
	if !strings.HasPrefix(msg, "note-slug") {
		t.Fatalf("message %q should start with the conflicting slug", msg)
	}
	if !strings.HasSuffix(msg, DuplicateSlugWarning) {
		t.Fatalf("message %q should end with the fixed warning suffix", msg)
	}
	if got := mustCount(t, svc); got != 1 {
		t.Fatalf("note count = %d, want 1", got)
	}
}

func TestCreate_DuplicateAcrossAuthors(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	a := createUser(t, appDB, "a")
	b := createUser(t, appDB, "b")
	ctx := context.Background()

	if _, err := svc.Create(ctx, a, CreateParams{Title: "Mine", Slug: "shared"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Slug uniqueness is global: another author cannot reuse it either.
	_, err := svc.Create(ctx, b, CreateParams{Title: "Yours", Slug: "shared"})
	if err == nil {
		t.Fatal("expected duplicate slug error across authors")
	}
	if !strings.Contains(errs.MessageOf(err), "shared") {
		t.Fatalf("message %q should contain the conflicting slug", errs.MessageOf(err))
	}
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	ctx := context.Background()

	if _, err := svc.Create(ctx, author, CreateParams{Title: ""}); errs.FieldOf(err) != "title" {
		t.Fatalf("empty title: field = %q, want title (err: %v)", errs.FieldOf(err), err)
	}

	// Title with no convertible characters cannot produce a slug.
	if _, err := svc.Create(ctx, author, CreateParams{Title: "!!!"}); errs.FieldOf(err) != "slug" {
		t.Fatalf("underivable slug: field = %q, want slug (err: %v)", errs.FieldOf(err), err)
	}

	long := strings.Repeat("x", MaxSlugLen+1)
	if _, err := svc.Create(ctx, author, CreateParams{Title: "t", Slug: long}); errs.FieldOf(err) != "slug" {
		t.Fatalf("overlong slug: field = %q, want slug (err: %v)", errs.FieldOf(err), err)
	}

	if got := mustCount(t, svc); got != 0 {
		t.Fatalf("note count = %d, want 0", got)
	}
}

func TestUpdate_MergesFields(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	ctx := context.Background()

	note, err := svc.Create(ctx, author, CreateParams{Title: "Old", Text: "old text", Slug: "old-slug"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	newTitle := "New title"
	updated, err := svc.Update(ctx, author, note.ID, UpdateParams{Title: &newTitle})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != newTitle {
		t.Fatalf("title = %q, want %q", updated.Title, newTitle)
	}

	// Omitted fields keep their prior values, and the store reflects exactly
	// the merged state.
	stored, err := svc.Store().GetByID(ctx, note.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Title != newTitle || stored.Text != "old text" || stored.Slug != "old-slug" {
		t.Fatalf("merged state mismatch: %+v", stored)
	}
	if stored.AuthorID != author {
		t.Fatalf("author changed on update: %q", stored.AuthorID)
	}
}

func TestUpdate_RegeneratesEmptySlug(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	ctx := context.Background()

	note, err := svc.Create(ctx, author, CreateParams{Title: "Original", Slug: "explicit"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	newTitle := "Новый заголовок"
	empty := ""
	updated, err := svc.Update(ctx, author, note.ID, UpdateParams{Title: &newTitle, Slug: &empty})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if want := slug.Generate(newTitle); updated.Slug != want {
		t.Fatalf("slug = %q, want %q", updated.Slug, want)
	}
}

func TestUpdate_DuplicateSlug(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	ctx := context.Background()

	if _, err := svc.Create(ctx, author, CreateParams{Title: "First", Slug: "taken"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := svc.Create(ctx, author, CreateParams{Title: "Second", Slug: "free"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	taken := "taken"
	_, err = svc.Update(ctx, author, second.ID, UpdateParams{Slug: &taken})
	if err == nil {
		t.Fatal("expected duplicate slug error")
	}
	if errs.FieldOf(err) != "slug" || !strings.Contains(errs.MessageOf(err), "taken") {
		t.Fatalf("unexpected duplicate error: %v", err)
	}

	// The note keeps its old slug.
	stored, err := svc.Store().GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Slug != "free" {
		t.Fatalf("slug = %q, want %q", stored.Slug, "free")
	}
}

func TestUpdate_SameSlugIsNotAConflict(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	ctx := context.Background()

	note, err := svc.Create(ctx, author, CreateParams{Title: "Keep", Slug: "keep-slug"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	same := "keep-slug"
	text := "new text"
	if _, err := svc.Update(ctx, author, note.ID, UpdateParams{Slug: &same, Text: &text}); err != nil {
		t.Fatalf("Update with unchanged slug failed: %v", err)
	}
}

func TestUpdate_NonAuthorLooksLikeNotFound(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	reader := createUser(t, appDB, "reader")
	ctx := context.Background()

	note, err := svc.Create(ctx, author, CreateParams{Title: "Заголовок", Text: "Текст заметки", Slug: "note-slug"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	newTitle := "Hijacked"
	_, err = svc.Update(ctx, reader, note.ID, UpdateParams{Title: &newTitle})
	notFoundAtBoundary(t, err)

	// And it must be indistinguishable from a genuinely missing note.
	_, missingErr := svc.Update(ctx, reader, "no-such-id", UpdateParams{Title: &newTitle})
	notFoundAtBoundary(t, missingErr)

	stored, err := svc.Store().GetByID(ctx, note.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Title != "Заголовок" || stored.Text != "Текст заметки" || stored.Slug != "note-slug" {
		t.Fatalf("note was modified by non-author: %+v", stored)
	}
}

func TestDelete_AuthorOnly(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	reader := createUser(t, appDB, "reader")
	ctx := context.Background()

	note, err := svc.Create(ctx, author, CreateParams{Title: "Mine", Slug: "mine"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	notFoundAtBoundary(t, svc.Delete(ctx, reader, note.ID))
	if got := mustCount(t, svc); got != 1 {
		t.Fatalf("note count after non-author delete = %d, want 1", got)
	}

	if err := svc.Delete(ctx, author, note.ID); err != nil {
		t.Fatalf("author Delete failed: %v", err)
	}
	if got := mustCount(t, svc); got != 0 {
		t.Fatalf("note count after delete = %d, want 0", got)
	}

	// Deleted is terminal: the id no longer resolves.
	notFoundAtBoundary(t, svc.Delete(ctx, author, note.ID))
}

func TestGetBySlug_NonAuthorLooksLikeNotFound(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	reader := createUser(t, appDB, "reader")
	ctx := context.Background()

	if _, err := svc.Create(ctx, author, CreateParams{Title: "Secret", Slug: "secret"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.GetBySlug(ctx, author, "secret"); err != nil {
		t.Fatalf("author GetBySlug failed: %v", err)
	}

	_, errNonAuthor := svc.GetBySlug(ctx, reader, "secret")
	notFoundAtBoundary(t, errNonAuthor)

	_, errMissing := svc.GetBySlug(ctx, reader, "does-not-exist")
	notFoundAtBoundary(t, errMissing)
}

func TestListFor_OnlyOwnNotesMostRecentFirst(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	reader := createUser(t, appDB, "reader")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := svc.Create(ctx, author, CreateParams{
			Title: fmt.Sprintf("Note %d", i),
			Slug:  fmt.Sprintf("note-%d", i),
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := svc.Create(ctx, reader, CreateParams{Title: "Other", Slug: "other"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	list, err := svc.ListFor(ctx, author)
	if err != nil {
		t.Fatalf("ListFor failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list length = %d, want 3", len(list))
	}
	for i, n := range list {
		if n.AuthorID != author {
			t.Fatalf("list contains a foreign note: %+v", n)
		}
		if want := fmt.Sprintf("note-%d", 3-i); n.Slug != want {
			t.Fatalf("list[%d].Slug = %q, want %q (most recent first)", i, n.Slug, want)
		}
	}

	readerList, err := svc.ListFor(ctx, reader)
	if err != nil {
		t.Fatalf("ListFor failed: %v", err)
	}
	for _, n := range readerList {
		if n.Slug == "note-1" || n.Slug == "note-2" || n.Slug == "note-3" {
			t.Fatalf("reader list contains author's note %q", n.Slug)
		}
	}
}

func TestSearchFor_ScopedToAuthor(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "tolstoy")
	reader := createUser(t, appDB, "reader")
	ctx := context.Background()

	if _, err := svc.Create(ctx, author, CreateParams{Title: "Gardening tips", Text: "water the tomatoes", Slug: "tips"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, reader, CreateParams{Title: "Gardening for readers", Slug: "reader-tips"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	results, err := svc.SearchFor(ctx, author, "gardening")
	if err != nil {
		t.Fatalf("SearchFor failed: %v", err)
	}
	if len(results) != 1 || results[0].Slug != "tips" {
		t.Fatalf("unexpected search results: %+v", results)
	}

	none, err := svc.SearchFor(ctx, author, "zebra")
	if err != nil {
		t.Fatalf("SearchFor failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no results, got %+v", none)
	}
}

// =============================================================================
// Property-based tests
// =============================================================================

func titleGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9 ]{1,50}`)
}

func textGenerator() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.Just(""),
		rapid.StringMatching(`[A-Za-z0-9 .,!?]{1,200}`),
	)
}

func testCreate_OmittedSlugMatchesGenerator(t *rapid.T) {
	svc, appDB := createService(t)
	author := createUser(t, appDB, "prop")

	title := titleGenerator().Draw(t, "title")
	text := textGenerator().Draw(t, "text")

	note, err := svc.Create(context.Background(), author, CreateParams{Title: title, Text: text})
	if err != nil {
		// Titles of spaces only cannot produce a slug; that rejection is
		// the documented behavior, not a failure.
		if errs.FieldOf(err) == "slug" && slug.Generate(title) == "" {
			return
		}
		t.Fatalf("Create failed for title %q: %v", title, err)
	}

	if want := slug.Generate(title); note.Slug != want {
		t.Fatalf("slug = %q, want generate(%q) = %q", note.Slug, title, want)
	}
	if note.Text != text {
		t.Fatalf("text mismatch: got %q want %q", note.Text, text)
	}
}

func TestCreate_OmittedSlugMatchesGenerator(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCreate_OmittedSlugMatchesGenerator)
}

func testDuplicateSlugAlwaysRejected(t *rapid.T) {
	svc, appDB := createService(t)
	author := createUser(t, appDB, "prop")
	ctx := context.Background()

	noteSlug := rapid.StringMatching(`[a-z0-9]{1,20}(-[a-z0-9]{1,20}){0,3}`).Draw(t, "slug")

	if _, err := svc.Create(ctx, author, CreateParams{Title: "first", Slug: noteSlug}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := svc.Create(ctx, author, CreateParams{Title: "second", Slug: noteSlug})
	if err == nil {
		t.Fatalf("duplicate slug %q was accepted", noteSlug)
	}
	if !strings.Contains(errs.MessageOf(err), noteSlug) {
		t.Fatalf("error %q does not reproduce slug %q", errs.MessageOf(err), noteSlug)
	}

	count, storeErr := svc.Store().Count(ctx)
	if storeErr != nil {
		t.Fatalf("Count failed: %v", storeErr)
	}
	if count != 1 {
		t.Fatalf("count = %d after rejected duplicate, want 1", count)
	}
}

func TestDuplicateSlugAlwaysRejected(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testDuplicateSlugAlwaysRejected)
}

func TestSearchFor_DeletedNoteLeavesNoTrace(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	first := createUser(t, appDB, "first")
	second := createUser(t, appDB, "second")
	ctx := context.Background()

	doomed, err := svc.Create(ctx, first, CreateParams{Title: "Walrus sighting", Text: "a rare walrus", Slug: "walrus-note"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Delete(ctx, first, doomed.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// A later insert may reuse the freed rowid; the index must not carry
	// the deleted note's tokens onto it.
	if _, err := svc.Create(ctx, second, CreateParams{Title: "Unrelated", Text: "nothing here", Slug: "unrelated-note"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, principal := range []string{first, second} {
		results, err := svc.SearchFor(ctx, principal, "walrus")
		if err != nil {
			t.Fatalf("SearchFor failed: %v", err)
		}
		if len(results) != 0 {
			t.Fatalf("search for deleted note's term returned %d results (slug %s)", len(results), results[0].Slug)
		}
	}
}

func TestSearchFor_UpdateReplacesIndexedText(t *testing.T) {
	t.Parallel()
	svc, appDB := setupService(t)
	author := createUser(t, appDB, "editor")
	ctx := context.Background()

	note, err := svc.Create(ctx, author, CreateParams{Title: "Draft", Text: "about penguins", Slug: "draft-note"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	newText := "about albatrosses"
	if _, err := svc.Update(ctx, author, note.ID, UpdateParams{Text: &newText}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stale, err := svc.SearchFor(ctx, author, "penguins")
	if err != nil {
		t.Fatalf("SearchFor failed: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("old text still searchable after update: %d results", len(stale))
	}
	fresh, err := svc.SearchFor(ctx, author, "albatrosses")
	if err != nil {
		t.Fatalf("SearchFor failed: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("new text not searchable after update: %d results", len(fresh))
	}
}
