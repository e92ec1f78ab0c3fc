package db

// SQL schema for the application database. A single shared SQLite file holds
// users, sessions, and notes; the UNIQUE constraint on notes.slug is the
// authoritative enforcement point for global slug uniqueness.

// Schema contains all the SQL statements for the application database.
const Schema = `
-- Users table: account records
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

-- Sessions table: stores active user sessions
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

-- Notes table: slug uniqueness is global, not per author
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    text TEXT NOT NULL DEFAULT '',
    slug TEXT NOT NULL UNIQUE,
    author_id TEXT NOT NULL REFERENCES users(id),
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_author_created ON notes(author_id, created_at DESC);

-- FTS5 virtual table for full-text search over notes
CREATE VIRTUAL TABLE IF NOT EXISTS fts_notes USING fts5(
    title,
    text,
    content='notes',
    content_rowid='rowid'
);

-- Trigger: sync FTS index on INSERT
CREATE TRIGGER IF NOT EXISTS notes_ai AFTER INSERT ON notes BEGIN
    INSERT INTO fts_notes(rowid, title, text)
    VALUES (new.rowid, new.title, new.text);
END;

-- Trigger: sync FTS index on DELETE. With an external-content table the
-- old tokens must be handed back explicitly via the 'delete' command; a
-- plain DELETE would leave them in the index and let a reused rowid match
-- the removed note's terms.
CREATE TRIGGER IF NOT EXISTS notes_ad AFTER DELETE ON notes BEGIN
    INSERT INTO fts_notes(fts_notes, rowid, title, text)
    VALUES ('delete', old.rowid, old.title, old.text);
END;

-- Trigger: sync FTS index on UPDATE, same delete-then-insert form
CREATE TRIGGER IF NOT EXISTS notes_au AFTER UPDATE ON notes BEGIN
    INSERT INTO fts_notes(fts_notes, rowid, title, text)
    VALUES ('delete', old.rowid, old.title, old.text);
    INSERT INTO fts_notes(rowid, title, text)
    VALUES (new.rowid, new.title, new.text);
END;
`
