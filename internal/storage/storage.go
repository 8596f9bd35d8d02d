// Package storage persists conversation checkpoints keyed by thread id.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gabormeresz/profAssistant-sub000/internal/storage/badger"
	"github.com/gabormeresz/profAssistant-sub000/internal/storage/sqlite"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// Store defines the interface for checkpoint backends. Save replaces the
// whole checkpoint atomically.
type Store interface {
	// Load returns types.ErrThreadNotFound when the thread has no checkpoint
	Load(ctx context.Context, threadID string) (*types.ConversationState, error)
	Save(ctx context.Context, state *types.ConversationState) error

	// Turn history
	RecordTurn(ctx context.Context, record types.TurnRecord) error
	ListTurns(ctx context.Context, threadID string) ([]types.TurnRecord, error)

	Close() error
}

// Backend names
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config selects and configures a backend
type Config struct {
	Backend string `yaml:"backend"`
	// Path is the database file (sqlite) or directory (badger)
	Path string `yaml:"path"`
}

// Validate checks the backend name and path
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendSQLite, BackendBadger:
		if c.Path == "" {
			return fmt.Errorf("storage path is required for backend %s", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q (must be memory, sqlite or badger)", c.Backend)
	}
}

// NewStore opens the configured backend
func NewStore(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case BackendSQLite:
		return sqlite.New(ctx, cfg.Path)
	case BackendBadger:
		bcfg := badger.DefaultConfig()
		bcfg.Path = filepath.Clean(cfg.Path)
		bcfg.Logger = logger.With(slog.String("component", "badger"))
		return badger.New(bcfg)
	default:
		return NewMemoryStore(), nil
	}
}
