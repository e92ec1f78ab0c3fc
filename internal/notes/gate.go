package notes

// Gate decides whether a principal may perform an operation on a note.
//
// The policy is ownership only: the author may read the detail page, edit,
// and delete; everyone else may do none of those. Callers must present a
// false answer as "not found", never "forbidden", so that non-authors cannot
// learn that a note exists. Listing is not gated here — ListByAuthor scopes
// the query itself.
type Gate struct{}

// CanAccess reports whether principalID may perform mode on note.
// An empty principal (anonymous) is always rejected; the auth middleware
// normally stops those requests before they reach this point.
func (Gate) CanAccess(principalID string, note *Note, mode AccessMode) bool {
	if principalID == "" || note == nil {
		return false
	}
	switch mode {
	case ReadDetail, Edit, Delete:
		return note.AuthorID == principalID
	default:
		return false
	}
}
