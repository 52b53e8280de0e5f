package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/util"
)

// Each table's unique index is the stable row identity (source file,
// record index, sub index); INSERT OR IGNORE keyed on it makes repeated
// exports of the same sources idempotent and keeps the first-written
// version of a row when two runs overlap. Column names and types below are
// a compatibility contract with downstream consumers.
const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS messages (
    session_id         TEXT NOT NULL DEFAULT '',
    project_hash       TEXT NOT NULL DEFAULT '',
    message_id         TEXT NOT NULL DEFAULT '',
    message_index      INTEGER NOT NULL DEFAULT 0,
    user_message_index INTEGER NOT NULL DEFAULT -1,
    role               TEXT NOT NULL DEFAULT '',
    timestamp          INTEGER NOT NULL DEFAULT 0,
    model              TEXT NOT NULL DEFAULT 'Unknown',
    input_tokens       INTEGER NOT NULL DEFAULT 0,
    output_tokens      INTEGER NOT NULL DEFAULT 0,
    cache_creation     INTEGER NOT NULL DEFAULT 0,
    cache_read         INTEGER NOT NULL DEFAULT 0,
    total_tokens       INTEGER NOT NULL DEFAULT 0,
    content            TEXT NOT NULL DEFAULT '',
    content_summary    TEXT NOT NULL DEFAULT '',
    thought_count      INTEGER NOT NULL DEFAULT 0,
    tool_call_count    INTEGER NOT NULL DEFAULT 0,
    source_file        TEXT NOT NULL,
    record_index       INTEGER NOT NULL DEFAULT 0,
    sub_index          INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source_file, record_index, sub_index)
);

CREATE TABLE IF NOT EXISTS logs (
    session_id   TEXT NOT NULL DEFAULT '',
    project_hash TEXT NOT NULL DEFAULT '',
    message_id   INTEGER NOT NULL DEFAULT 0,
    level        TEXT NOT NULL DEFAULT 'info',
    message      TEXT NOT NULL DEFAULT '',
    timestamp    INTEGER NOT NULL DEFAULT 0,
    fields       TEXT NOT NULL DEFAULT '',
    source_file  TEXT NOT NULL,
    record_index INTEGER NOT NULL DEFAULT 0,
    sub_index    INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source_file, record_index, sub_index)
);

CREATE TABLE IF NOT EXISTS tool_calls (
    session_id         TEXT NOT NULL DEFAULT '',
    project_hash       TEXT NOT NULL DEFAULT '',
    message_id         TEXT NOT NULL DEFAULT '',
    message_index      INTEGER NOT NULL DEFAULT 0,
    user_message_index INTEGER NOT NULL DEFAULT -1,
    call_id            TEXT NOT NULL DEFAULT '',
    name               TEXT NOT NULL DEFAULT '',
    args               TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL DEFAULT 'success',
    duration_ms        INTEGER,
    result_raw         TEXT NOT NULL DEFAULT '',
    timestamp          INTEGER NOT NULL DEFAULT 0,
    source_file        TEXT NOT NULL,
    record_index       INTEGER NOT NULL DEFAULT 0,
    sub_index          INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source_file, record_index, sub_index)
);

CREATE TABLE IF NOT EXISTS thoughts (
    session_id         TEXT NOT NULL DEFAULT '',
    project_hash       TEXT NOT NULL DEFAULT '',
    message_id         TEXT NOT NULL DEFAULT '',
    message_index      INTEGER NOT NULL DEFAULT 0,
    user_message_index INTEGER NOT NULL DEFAULT -1,
    subject            TEXT NOT NULL DEFAULT '',
    body               TEXT NOT NULL DEFAULT '',
    timestamp          INTEGER NOT NULL DEFAULT 0,
    source_file        TEXT NOT NULL,
    record_index       INTEGER NOT NULL DEFAULT 0,
    sub_index          INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source_file, record_index, sub_index)
);

CREATE TABLE IF NOT EXISTS tool_outputs (
    session_id   TEXT NOT NULL DEFAULT '',
    project_hash TEXT NOT NULL DEFAULT '',
    tool_name    TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    timestamp    INTEGER NOT NULL DEFAULT 0,
    fields       TEXT NOT NULL DEFAULT '',
    source_file  TEXT NOT NULL,
    record_index INTEGER NOT NULL DEFAULT 0,
    sub_index    INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source_file, record_index, sub_index)
);

CREATE TABLE IF NOT EXISTS security_events (
    session_id   TEXT NOT NULL DEFAULT '',
    project_hash TEXT NOT NULL DEFAULT '',
    event_type   TEXT NOT NULL DEFAULT '',
    principal    TEXT NOT NULL DEFAULT '',
    severity     TEXT NOT NULL DEFAULT '',
    rule_name    TEXT NOT NULL DEFAULT '',
    timestamp    INTEGER NOT NULL DEFAULT 0,
    fields       TEXT NOT NULL DEFAULT '',
    source_file  TEXT NOT NULL,
    record_index INTEGER NOT NULL DEFAULT 0,
    sub_index    INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source_file, record_index, sub_index)
);
`

// Stats reports the outcome of one merge: rows newly inserted vs. rows
// already present (matched on row identity and left untouched).
type Stats struct {
	Inserted int64
	Existing int64
}

func (s Stats) String() string {
	return fmt.Sprintf("inserted=%d existing=%d", s.Inserted, s.Existing)
}

// Store persists normalized tables in a sqlite database file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) a table store at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// Merge appends a batch of tables, skipping rows whose identity is already
// present. The whole batch commits in one transaction.
func (s *Store) Merge(t *model.Tables) (Stats, error) {
	var stats Stats

	tx, err := s.db.Begin()
	if err != nil {
		return stats, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	insert := func(query string, args ...any) error {
		res, err := tx.Exec(query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		stats.Inserted += n
		stats.Existing += 1 - n
		return nil
	}

	for _, r := range t.Messages {
		err := insert(`INSERT OR IGNORE INTO messages
			(session_id, project_hash, message_id, message_index, user_message_index,
			 role, timestamp, model, input_tokens, output_tokens, cache_creation,
			 cache_read, total_tokens, content, content_summary, thought_count,
			 tool_call_count, source_file, record_index, sub_index)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SessionId, r.ProjectHash, r.MessageId, r.MessageIndex, r.UserMessageIndex,
			r.Role, r.Timestamp, r.Model, r.InputTokens, r.OutputTokens, r.CacheCreation,
			r.CacheRead, r.TotalTokens, r.Content, r.ContentSummary, r.ThoughtCount,
			r.ToolCallCount, r.SourceFile, r.RecordIndex, r.SubIndex)
		if err != nil {
			return stats, fmt.Errorf("merge messages: %w", err)
		}
	}

	for _, r := range t.Logs {
		err := insert(`INSERT OR IGNORE INTO logs
			(session_id, project_hash, message_id, level, message, timestamp, fields,
			 source_file, record_index, sub_index)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SessionId, r.ProjectHash, r.MessageId, r.Level, r.Message, r.Timestamp,
			r.Fields, r.SourceFile, r.RecordIndex, r.SubIndex)
		if err != nil {
			return stats, fmt.Errorf("merge logs: %w", err)
		}
	}

	for _, r := range t.ToolCalls {
		var duration any
		if r.DurationMs != nil {
			duration = *r.DurationMs
		}
		err := insert(`INSERT OR IGNORE INTO tool_calls
			(session_id, project_hash, message_id, message_index, user_message_index,
			 call_id, name, args, status, duration_ms, result_raw, timestamp,
			 source_file, record_index, sub_index)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SessionId, r.ProjectHash, r.MessageId, r.MessageIndex, r.UserMessageIndex,
			r.CallId, r.Name, r.Args, r.Status, duration, r.ResultRaw, r.Timestamp,
			r.SourceFile, r.RecordIndex, r.SubIndex)
		if err != nil {
			return stats, fmt.Errorf("merge tool_calls: %w", err)
		}
	}

	for _, r := range t.Thoughts {
		err := insert(`INSERT OR IGNORE INTO thoughts
			(session_id, project_hash, message_id, message_index, user_message_index,
			 subject, body, timestamp, source_file, record_index, sub_index)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SessionId, r.ProjectHash, r.MessageId, r.MessageIndex, r.UserMessageIndex,
			r.Subject, r.Body, r.Timestamp, r.SourceFile, r.RecordIndex, r.SubIndex)
		if err != nil {
			return stats, fmt.Errorf("merge thoughts: %w", err)
		}
	}

	for _, r := range t.ToolOutputs {
		err := insert(`INSERT OR IGNORE INTO tool_outputs
			(session_id, project_hash, tool_name, status, summary, timestamp, fields,
			 source_file, record_index, sub_index)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SessionId, r.ProjectHash, r.ToolName, r.Status, r.Summary, r.Timestamp,
			r.Fields, r.SourceFile, r.RecordIndex, r.SubIndex)
		if err != nil {
			return stats, fmt.Errorf("merge tool_outputs: %w", err)
		}
	}

	for _, r := range t.SecurityEvents {
		err := insert(`INSERT OR IGNORE INTO security_events
			(session_id, project_hash, event_type, principal, severity, rule_name,
			 timestamp, fields, source_file, record_index, sub_index)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SessionId, r.ProjectHash, r.EventType, r.Principal, r.Severity, r.RuleName,
			r.Timestamp, r.Fields, r.SourceFile, r.RecordIndex, r.SubIndex)
		if err != nil {
			return stats, fmt.Errorf("merge security_events: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit merge: %w", err)
	}

	util.LogDebugf("Store merge into %s: %s", s.path, stats)
	return stats, nil
}
