package note

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// Open opens (or creates) a SQLiteStore at the given path and bootstraps the
// schema. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("note: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS notes (
    id                      INTEGER PRIMARY KEY AUTOINCREMENT,
    content                 TEXT    NOT NULL,
    account_id              INTEGER NOT NULL,
    created_at              INTEGER NOT NULL,
    updated_at              INTEGER NOT NULL,
    is_recycled             INTEGER NOT NULL DEFAULT 0,
    is_indexed              INTEGER NOT NULL DEFAULT 0,
    is_attachments_indexed  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS attachments (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    note_id  INTEGER NOT NULL REFERENCES notes(id),
    path     TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS tags (
    id    INTEGER PRIMARY KEY AUTOINCREMENT,
    name  TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS comments (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    note_id      INTEGER NOT NULL REFERENCES notes(id),
    content      TEXT    NOT NULL,
    author_name  TEXT    NOT NULL,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_account ON notes (account_id);
CREATE INDEX IF NOT EXISTS idx_attachments_note ON attachments (note_id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("note: migrate: %w", err)
	}
	return nil
}

// noteColumns is the select list shared by all note queries.
const noteColumns = `id, content, account_id, created_at, updated_at, is_recycled, is_indexed, is_attachments_indexed`

// scanNote scans one note row.
func scanNote(row interface{ Scan(...any) error }) (*Note, error) {
	var n Note
	var created, updated int64
	if err := row.Scan(&n.ID, &n.Content, &n.AccountID, &created, &updated,
		&n.IsRecycled, &n.IsIndexed, &n.IsAttachmentsIndexed); err != nil {
		return nil, err
	}
	n.CreatedAt = time.Unix(created, 0)
	n.UpdatedAt = time.Unix(updated, 0)
	return &n, nil
}

// attachments loads the attachments for a set of note ids into the notes slice.
func (s *SQLiteStore) attachments(ctx context.Context, notes []Note) error {
	if len(notes) == 0 {
		return nil
	}
	byID := make(map[int64]*Note, len(notes))
	ids := make([]string, 0, len(notes))
	args := make([]any, 0, len(notes))
	for i := range notes {
		byID[notes[i].ID] = &notes[i]
		ids = append(ids, "?")
		args = append(args, notes[i].ID)
	}

	q := `SELECT id, note_id, path FROM attachments WHERE note_id IN (` + strings.Join(ids, ",") + `) ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("note: attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.NoteID, &a.Path); err != nil {
			return fmt.Errorf("note: attachments scan: %w", err)
		}
		if n, ok := byID[a.NoteID]; ok {
			n.Attachments = append(n.Attachments, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("note: attachments rows: %w", err)
	}
	return nil
}

// NoteForOwner fetches one note visible to accountID.
func (s *SQLiteStore) NoteForOwner(ctx context.Context, id, accountID int64) (*Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND account_id = ?`, id, accountID)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("note: id %d for account %d: %w", id, accountID, ErrNoteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("note: fetch %d: %w", id, err)
	}
	return n, nil
}

// NotesForOwner fetches the subset of ids visible to accountID, with attachments.
func (s *SQLiteStore) NotesForOwner(ctx context.Context, ids []int64, accountID int64) ([]Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, accountID)
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}

	q := `SELECT ` + noteColumns + ` FROM notes WHERE account_id = ? AND id IN (` +
		strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("note: fetch many: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("note: fetch many scan: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("note: fetch many rows: %w", err)
	}

	if err := s.attachments(ctx, notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// Note fetches a note without ownership scoping.
func (s *SQLiteStore) Note(ctx context.Context, id int64) (*Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("note: id %d: %w", id, ErrNoteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("note: fetch %d: %w", id, err)
	}
	return n, nil
}

// AllActive returns every non-recycled note with attachments, ordered by id.
func (s *SQLiteStore) AllActive(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE is_recycled = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("note: all active: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("note: all active scan: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("note: all active rows: %w", err)
	}

	if err := s.attachments(ctx, notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// MarkIndexed flips the indexing flags without touching any other field.
func (s *SQLiteStore) MarkIndexed(ctx context.Context, id int64, attachments bool, updatedAt time.Time) error {
	q := `UPDATE notes SET is_indexed = 1, updated_at = ? WHERE id = ?`
	if attachments {
		q = `UPDATE notes SET is_indexed = 1, is_attachments_indexed = 1, updated_at = ? WHERE id = ?`
	}
	res, err := s.db.ExecContext(ctx, q, updatedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("note: mark indexed %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("note: mark indexed %d: %w", id, ErrNoteNotFound)
	}
	return nil
}

// TagByID fetches a tag, or nil when it does not exist.
func (s *SQLiteStore) TagByID(ctx context.Context, id int64) (*Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM tags WHERE id = ?`, id).
		Scan(&t.ID, &t.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("note: tag %d: %w", id, err)
	}
	return &t, nil
}

// CreateNote persists a new note for accountID and returns it.
func (s *SQLiteStore) CreateNote(ctx context.Context, accountID int64, content string) (*Note, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (content, account_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		content, accountID, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("note: create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("note: create id: %w", err)
	}
	return &Note{
		ID:        id,
		Content:   content,
		AccountID: accountID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CreateComment persists a comment with the given author attribution.
func (s *SQLiteStore) CreateComment(ctx context.Context, noteID int64, content, authorName string) (*Comment, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (note_id, content, author_name, created_at) VALUES (?, ?, ?, ?)`,
		noteID, content, authorName, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("note: create comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("note: create comment id: %w", err)
	}
	return &Comment{
		ID:         id,
		NoteID:     noteID,
		Content:    content,
		AuthorName: authorName,
		CreatedAt:  now,
	}, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("note: close: %w", err)
	}
	return nil
}

// AddAttachment attaches a file path to a note. Exposed for rebuild tooling
// and tests; the production attachment writer lives in the file upload flow.
func (s *SQLiteStore) AddAttachment(ctx context.Context, noteID int64, path string) (*Attachment, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (note_id, path) VALUES (?, ?)`, noteID, path)
	if err != nil {
		return nil, fmt.Errorf("note: add attachment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("note: add attachment id: %w", err)
	}
	return &Attachment{ID: id, NoteID: noteID, Path: path}, nil
}

// AddTag creates a tag. Exposed for administration tooling and tests.
func (s *SQLiteStore) AddTag(ctx context.Context, name string) (*Tag, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("note: add tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("note: add tag id: %w", err)
	}
	return &Tag{ID: id, Name: name}, nil
}

// SetRecycled soft-deletes or restores a note. Exposed for tests and tooling.
func (s *SQLiteStore) SetRecycled(ctx context.Context, id int64, recycled bool) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE notes SET is_recycled = ? WHERE id = ?`, recycled, id); err != nil {
		return fmt.Errorf("note: set recycled %d: %w", id, err)
	}
	return nil
}
