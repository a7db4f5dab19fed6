// internal/policy/implementation.go
package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Store reads and writes circulation settings. Reads are served from an
// in-process cache that is loaded on first miss and invalidated before a
// write reports success, so a concurrent issue/return never observes a
// snapshot older than the last committed update.
type Store struct {
	db *sqlx.DB

	mu    sync.RWMutex
	cache map[string]Setting
}

// NewStore creates a settings store with an empty cache.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) load(ctx context.Context) (map[string]Setting, error) {
	s.mu.RLock()
	cached := s.cache
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	var rows []Setting
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value, type, updated_at FROM settings`); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	settings := make(map[string]Setting, len(rows))
	for _, row := range rows {
		settings[row.Key] = row
	}

	s.mu.Lock()
	s.cache = settings
	s.mu.Unlock()

	return settings, nil
}

// Invalidate drops the cached settings so the next read hits the database.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

// Get returns a single setting and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (Setting, bool, error) {
	settings, err := s.load(ctx)
	if err != nil {
		return Setting{}, false, err
	}
	setting, ok := settings[key]
	return setting, ok, nil
}

// GetInt returns an integer setting, or def when absent.
func (s *Store) GetInt(ctx context.Context, key string, def int) (int, error) {
	setting, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return setting.Int(), nil
}

// GetFloat returns a decimal setting, or def when absent.
func (s *Store) GetFloat(ctx context.Context, key string, def float64) (float64, error) {
	setting, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return setting.Float(), nil
}

// GetBool returns a boolean setting, or def when absent.
func (s *Store) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	setting, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return setting.Bool(), nil
}

// GetString returns a string setting, or def when absent.
func (s *Store) GetString(ctx context.Context, key string, def string) (string, error) {
	setting, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return setting.Value, nil
}

// Snapshot returns the typed circulation parameters in effect right now.
func (s *Store) Snapshot(ctx context.Context) (Circulation, error) {
	settings, err := s.load(ctx)
	if err != nil {
		return Circulation{}, err
	}
	return circulationFrom(settings), nil
}

// All returns every setting ordered by key.
func (s *Store) All(ctx context.Context) ([]Setting, error) {
	settings, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	all := make([]Setting, 0, len(settings))
	for _, setting := range settings {
		all = append(all, setting)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Key < all[j].Key })

	return all, nil
}

const upsertSettingQuery = `
	INSERT INTO settings (key, value, type, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (key) DO UPDATE
	SET value = EXCLUDED.value, updated_at = now()`

// UpdateMany applies a batch of settings in one transaction; either every
// key is written or none is. Existing keys keep their declared type, new
// keys get a detected one. The cache is invalidated before returning.
func (s *Store) UpdateMany(ctx context.Context, updates map[string]string) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings update: %w", err)
	}
	defer tx.Rollback()

	for key, value := range updates {
		if _, err := tx.ExecContext(ctx, upsertSettingQuery, key, value, detectType(value)); err != nil {
			return fmt.Errorf("update setting %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings update: %w", err)
	}

	s.Invalidate()
	return nil
}
