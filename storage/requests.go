package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RequestEntry is the metadata kept for one handled connection. Request
// and reply contents are never stored.
type RequestEntry struct {
	ID            string
	RemoteAddr    string
	Model         string
	StartedAt     time.Time
	Duration      time.Duration
	RequestBytes  int
	ResponseBytes int
	ModelCalls    int
	Critiques     int
	Regenerations int
	Status        string
	Error         string
}

// RequestLog appends one row per request to a sqlite database.
type RequestLog struct {
	db *sql.DB
}

func NewRequestLog(path string) (*RequestLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Workers write concurrently; a single connection serializes them
	// instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log := &RequestLog{db: db}

	if err := log.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return log, nil
}

func (rl *RequestLog) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		remote_addr TEXT NOT NULL,
		model TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		request_bytes INTEGER NOT NULL,
		response_bytes INTEGER NOT NULL,
		model_calls INTEGER NOT NULL,
		critiques INTEGER NOT NULL,
		regenerations INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_requests_started_at ON requests(started_at);
	`

	_, err := rl.db.Exec(schema)
	return err
}

func (rl *RequestLog) Record(ctx context.Context, e RequestEntry) error {
	query := `
	INSERT INTO requests (id, remote_addr, model, started_at, duration_ms, request_bytes, response_bytes, model_calls, critiques, regenerations, status, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := rl.db.ExecContext(ctx, query,
		e.ID,
		e.RemoteAddr,
		e.Model,
		e.StartedAt.UTC(),
		e.Duration.Milliseconds(),
		e.RequestBytes,
		e.ResponseBytes,
		e.ModelCalls,
		e.Critiques,
		e.Regenerations,
		e.Status,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record request %s: %w", e.ID, err)
	}
	return nil
}

const requestColumns = `id, remote_addr, model, started_at, duration_ms, request_bytes, response_bytes, model_calls, critiques, regenerations, status, error`

// Load returns the entry with the given id, or nil if there is none.
func (rl *RequestLog) Load(ctx context.Context, id string) (*RequestEntry, error) {
	row := rl.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)

	e, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (rl *RequestLog) Recent(ctx context.Context, limit int) ([]RequestEntry, error) {
	rows, err := rl.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []RequestEntry
	for rows.Next() {
		e, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (*RequestEntry, error) {
	var (
		e          RequestEntry
		durationMS int64
		errText    sql.NullString
	)
	err := s.Scan(
		&e.ID,
		&e.RemoteAddr,
		&e.Model,
		&e.StartedAt,
		&durationMS,
		&e.RequestBytes,
		&e.ResponseBytes,
		&e.ModelCalls,
		&e.Critiques,
		&e.Regenerations,
		&e.Status,
		&errText,
	)
	if err != nil {
		return nil, err
	}
	e.Duration = time.Duration(durationMS) * time.Millisecond
	e.Error = errText.String
	return &e, nil
}

func (rl *RequestLog) Close() error {
	if rl.db != nil {
		return rl.db.Close()
	}
	return nil
}
