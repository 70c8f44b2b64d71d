// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/relay/internal/store"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// Compile-time interface check.
var _ store.AttemptStore = (*AttemptStore)(nil)

// AttemptStore persists the attempt trail in a single SQLite database.
type AttemptStore struct {
	db *sql.DB
}

// NewAttemptStore opens (or creates) a SQLite database at dbPath and
// initialises the attempts table.
func NewAttemptStore(dbPath string) (*AttemptStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, relayerr.Wrap(err, relayerr.CodeStoreOpenFailure, "opening attempts db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, relayerr.Wrap(err, relayerr.CodeStoreOpenFailure, "pinging attempts db")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, relayerr.Wrap(err, relayerr.CodeStoreOpenFailure, "migrating attempts db")
	}

	return &AttemptStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS attempts (
	id            TEXT PRIMARY KEY,
	request_id    TEXT NOT NULL,
	vendor        TEXT NOT NULL,
	credential_id TEXT NOT NULL DEFAULT '',
	model         TEXT NOT NULL DEFAULT '',
	at            TEXT NOT NULL,
	success       INTEGER NOT NULL,
	latency_ms    INTEGER NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	kind          TEXT NOT NULL DEFAULT '',
	reason        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_attempts_vendor_at ON attempts(vendor, at);
CREATE INDEX IF NOT EXISTS idx_attempts_request   ON attempts(request_id);
`
	_, err := db.Exec(ddl)
	return err
}

// Append stores one attempt.
func (s *AttemptStore) Append(ctx context.Context, a Attempt) error {
	const q = `INSERT INTO attempts
		(id, request_id, vendor, credential_id, model, at, success, latency_ms, prompt_tokens, output_tokens, kind, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	success := 0
	if a.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		a.ID, a.RequestID, a.Vendor, a.CredentialID, a.Model,
		a.At.UTC().Format(time.RFC3339Nano), success,
		a.LatencyMS, a.PromptTokens, a.OutputTokens, a.Kind, a.Reason)
	if err != nil {
		return relayerr.Wrap(err, relayerr.CodeStoreDatabaseFailure, "inserting attempt")
	}
	return nil
}

// Attempt aliases store.Attempt so callers in this package read naturally.
type Attempt = store.Attempt

// ListAttempts returns attempts matching opts ordered by time ascending.
func (s *AttemptStore) ListAttempts(ctx context.Context, opts store.QueryOpts) ([]store.Attempt, error) {
	q := `SELECT id, request_id, vendor, credential_id, model, at, success, latency_ms, prompt_tokens, output_tokens, kind, reason
		FROM attempts WHERE 1=1`
	var args []any
	if opts.Vendor != "" {
		q += " AND vendor = ?"
		args = append(args, opts.Vendor)
	}
	if !opts.Since.IsZero() {
		q += " AND at >= ?"
		args = append(args, opts.Since.UTC().Format(time.RFC3339Nano))
	}
	q += " ORDER BY at ASC"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, relayerr.Wrap(err, relayerr.CodeStoreDatabaseFailure, "querying attempts")
	}
	defer func() { _ = rows.Close() }()

	var out []store.Attempt
	for rows.Next() {
		var a store.Attempt
		var at string
		var success int
		if err := rows.Scan(&a.ID, &a.RequestID, &a.Vendor, &a.CredentialID, &a.Model,
			&at, &success, &a.LatencyMS, &a.PromptTokens, &a.OutputTokens, &a.Kind, &a.Reason); err != nil {
			return nil, relayerr.Wrap(err, relayerr.CodeStoreDatabaseFailure, "scanning attempt row")
		}
		a.Success = success == 1
		if ts, err := time.Parse(time.RFC3339Nano, at); err == nil {
			a.At = ts
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, relayerr.Wrap(err, relayerr.CodeStoreDatabaseFailure, "iterating attempt rows")
	}
	return out, nil
}

// Close closes the underlying database.
func (s *AttemptStore) Close() error {
	return s.db.Close()
}
