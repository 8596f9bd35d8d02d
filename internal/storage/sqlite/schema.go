package sqlite

const schema = `
-- Checkpoints table: one row per thread, the full serialized state
CREATE TABLE IF NOT EXISTS checkpoints (
    thread_id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    turn INTEGER NOT NULL DEFAULT 0,
    state TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Turn history: one row per completed or failed turn
CREATE TABLE IF NOT EXISTS turn_history (
    thread_id TEXT NOT NULL,
    turn INTEGER NOT NULL,
    kind TEXT NOT NULL,
    score REAL NOT NULL DEFAULT 0,
    evaluation_count INTEGER NOT NULL DEFAULT 0,
    exit_reason TEXT NOT NULL DEFAULT '',
    error_kind TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    PRIMARY KEY (thread_id, turn)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_updated ON checkpoints(updated_at);
`
