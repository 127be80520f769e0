// Package note defines the document store boundary the indexing subsystem
// depends on: notes with attachments, tags, and comments, owned by the
// persistent relational store. The embedding pipeline only ever flips the
// two indexing flags; everything else is read-only from here.
package note

import (
	"context"
	"errors"
	"time"
)

// ErrNoteNotFound is returned when a note does not exist or is not visible
// to the requesting owner.
var ErrNoteNotFound = errors.New("note: not found")

// Note is one unit of user content.
type Note struct {
	// ID is the note's primary key.
	ID int64

	// Content is the raw markdown body.
	Content string

	// AccountID is the owning account; all retrieval is scoped to it.
	AccountID int64

	// CreatedAt / UpdatedAt are the store's timestamps.
	CreatedAt time.Time
	UpdatedAt time.Time

	// IsRecycled marks soft-deleted notes, which are never indexed.
	IsRecycled bool

	// IsIndexed records that the note body has been embedded.
	IsIndexed bool

	// IsAttachmentsIndexed records that all attachments have been embedded.
	IsAttachmentsIndexed bool

	// Attachments are the files attached to this note.
	Attachments []Attachment
}

// Attachment is a file belonging to exactly one note.
type Attachment struct {
	// ID is the attachment's primary key.
	ID int64

	// NoteID is the owning note.
	NoteID int64

	// Path is the stored file path, resolvable via the file access boundary.
	Path string
}

// Tag is a user-defined label. Only the exclude-embedding check reads tags here.
type Tag struct {
	// ID is the tag's primary key.
	ID int64

	// Name is the tag text as it appears inline in note content (e.g. "#private").
	Name string
}

// Comment is a remark attached to a note. AI-generated comments carry a
// synthetic author name.
type Comment struct {
	// ID is the comment's primary key.
	ID int64

	// NoteID is the commented note.
	NoteID int64

	// Content is the markdown comment body.
	Content string

	// AuthorName is the display name of the author ("Blinko AI" for
	// generated comments).
	AuthorName string

	// CreatedAt is when the comment was persisted.
	CreatedAt time.Time
}

// Store is the document store contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// NoteForOwner fetches one note visible to accountID.
	// Returns ErrNoteNotFound when absent or owned by someone else.
	NoteForOwner(ctx context.Context, id, accountID int64) (*Note, error)

	// NotesForOwner fetches the subset of ids visible to accountID, with
	// attachments. Missing or foreign ids are silently omitted — this is
	// the tenant boundary for retrieval.
	NotesForOwner(ctx context.Context, ids []int64, accountID int64) ([]Note, error)

	// Note fetches a note without ownership scoping. Used by trusted
	// server-side flows (AI comment generation).
	Note(ctx context.Context, id int64) (*Note, error)

	// AllActive returns every non-recycled note with its attachments,
	// ordered by id. The rebuild coordinator walks this set.
	AllActive(ctx context.Context) ([]Note, error)

	// MarkIndexed sets the note's isIndexed flag (and isAttachmentsIndexed
	// when attachments is true) without touching any other field.
	MarkIndexed(ctx context.Context, id int64, attachments bool, updatedAt time.Time) error

	// TagByID fetches a tag, or nil when it does not exist.
	TagByID(ctx context.Context, id int64) (*Tag, error)

	// CreateNote persists a new note for accountID and returns it.
	CreateNote(ctx context.Context, accountID int64, content string) (*Note, error)

	// CreateComment persists a comment with the given author attribution.
	CreateComment(ctx context.Context, noteID int64, content, authorName string) (*Comment, error)

	// Close releases any resources held by the store.
	Close() error
}
