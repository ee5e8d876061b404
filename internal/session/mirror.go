package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"intentforge/internal/logging"
	"intentforge/internal/types"
)

// Mirror is the best-effort relational copy of session state, kept for
// analytics. Upserts run asynchronously; failures are logged, never
// propagated - the kv store stays authoritative.
type Mirror struct {
	db *sql.DB
	eg errgroup.Group
}

// NewMirror opens (or creates) the sqlite analytics database at path.
func NewMirror(path string) (*Mirror, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	m := &Mirror{db: db}
	if err := m.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	m.eg.SetLimit(4)

	logging.Store("Session mirror opened at %s", path)
	return m, nil
}

func (m *Mirror) initialize() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			status TEXT NOT NULL,
			asset_type TEXT,
			turn_count INTEGER NOT NULL DEFAULT 0,
			tokens_in INTEGER NOT NULL DEFAULT 0,
			tokens_out INTEGER NOT NULL DEFAULT 0,
			grounding_calls INTEGER NOT NULL DEFAULT 0,
			prompt_versions INTEGER NOT NULL DEFAULT 0,
			revision INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize mirror schema: %w", err)
	}
	return nil
}

// UpsertAsync queues an upsert of the session's analytics row. Never blocks
// the calling turn beyond worker-pool admission.
func (m *Mirror) UpsertAsync(sess *types.Session) {
	// Copy the fields we need; the caller keeps mutating the session.
	row := struct {
		id, owner, status, assetType         string
		turns, tokIn, tokOut, grounds, pvers int
		revision                             int64
		created, updated                     interface{}
	}{
		id: sess.ID, owner: sess.OwnerID, status: string(sess.Status),
		assetType: sess.Context.AssetType, turns: sess.TurnCount,
		tokIn: sess.TokensInTotal, tokOut: sess.TokensOutTotal,
		grounds: sess.GroundingCallCount, pvers: len(sess.PromptVersions),
		revision: sess.Revision, created: sess.CreatedAt, updated: sess.UpdatedAt,
	}

	m.eg.Go(func() error {
		_, err := m.db.Exec(`
			INSERT INTO sessions (id, owner_id, status, asset_type, turn_count,
				tokens_in, tokens_out, grounding_calls, prompt_versions,
				revision, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				turn_count = excluded.turn_count,
				tokens_in = excluded.tokens_in,
				tokens_out = excluded.tokens_out,
				grounding_calls = excluded.grounding_calls,
				prompt_versions = excluded.prompt_versions,
				revision = excluded.revision,
				updated_at = excluded.updated_at
			WHERE excluded.revision >= sessions.revision`,
			row.id, row.owner, row.status, row.assetType, row.turns,
			row.tokIn, row.tokOut, row.grounds, row.pvers,
			row.revision, row.created, row.updated,
		)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("Mirror upsert failed for %s: %v", row.id, err)
		}
		return nil // mirror failures never propagate
	})
}

// Close waits for queued upserts and closes the database.
func (m *Mirror) Close() error {
	_ = m.eg.Wait()
	return m.db.Close()
}
