package sqlite

// Schema DDL for the session database. Statements are idempotent so an
// existing session survives Attach.
const (
	createSession = `CREATE TABLE IF NOT EXISTS session (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	createDrafts = `CREATE TABLE IF NOT EXISTS drafts (
    position INTEGER PRIMARY KEY,
    table_name TEXT NOT NULL,
    identity TEXT,
    dirty INTEGER NOT NULL,
    deleted INTEGER NOT NULL,
    generation INTEGER NOT NULL,
    snapshot TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	idxDraftsTable = `CREATE INDEX IF NOT EXISTS idx_drafts_table ON drafts(table_name);`
)

// Keys of the session table.
const (
	keySessionID   = "session_id"
	keyActiveTable = "active_table"
	keyCreatedAt   = "created_at"
)

var schemaDDL = []string{
	createSession,
	createDrafts,
	idxDraftsTable,
}
