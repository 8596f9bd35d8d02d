// Package sqlite implements checkpoint storage on SQLite through the
// ncruces WASM driver, so the binary needs no cgo.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

const timeFormat = time.RFC3339Nano

// Store implements checkpoint storage using SQLite
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path
func New(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL lets readers proceed while a checkpoint is written
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Load retrieves the checkpoint for a thread
func (s *Store) Load(ctx context.Context, threadID string) (*types.ConversationState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM checkpoints WHERE thread_id = ?`, threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrThreadNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return types.UnmarshalCheckpoint([]byte(data))
}

// Save upserts the checkpoint in a single statement
func (s *Store) Save(ctx context.Context, state *types.ConversationState) error {
	data, err := types.MarshalCheckpoint(state)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO checkpoints (thread_id, kind, turn, state, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			kind = excluded.kind,
			turn = excluded.turn,
			state = excluded.state,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		state.ThreadID, string(state.Kind), state.Turn, string(data), state.UpdatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// RecordTurn stores a turn summary, replacing an earlier record of the same turn
func (s *Store) RecordTurn(ctx context.Context, record types.TurnRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid turn record: %w", err)
	}
	query := `
		INSERT OR REPLACE INTO turn_history (
			thread_id, turn, kind, score, evaluation_count, exit_reason, error_kind, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ThreadID,
		record.Turn,
		string(record.Kind),
		record.Score,
		record.EvaluationCount,
		record.ExitReason,
		string(record.ErrorKind),
		record.StartedAt.UTC().Format(timeFormat),
		record.CompletedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to record turn: %w", err)
	}
	return nil
}

// ListTurns returns the turn history of a thread, oldest first
func (s *Store) ListTurns(ctx context.Context, threadID string) ([]types.TurnRecord, error) {
	query := `
		SELECT thread_id, turn, kind, score, evaluation_count, exit_reason, error_kind, started_at, completed_at
		FROM turn_history
		WHERE thread_id = ?
		ORDER BY turn ASC
	`
	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turn history: %w", err)
	}
	defer rows.Close()

	var records []types.TurnRecord
	for rows.Next() {
		var (
			r                    types.TurnRecord
			kind, errKind        string
			startedAt, completed string
		)
		if err := rows.Scan(&r.ThreadID, &r.Turn, &kind, &r.Score, &r.EvaluationCount,
			&r.ExitReason, &errKind, &startedAt, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan turn record: %w", err)
		}
		r.Kind = types.ArtifactKind(kind)
		r.ErrorKind = types.ErrorKind(errKind)
		if r.StartedAt, err = time.Parse(timeFormat, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		if r.CompletedAt, err = time.Parse(timeFormat, completed); err != nil {
			return nil, fmt.Errorf("failed to parse completed_at: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turn history: %w", err)
	}
	return records, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
