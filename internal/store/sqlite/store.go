// Package sqlite implements durable client storage on an embedded SQLite
// database under the user's data directory.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/parishdesk/parishdesk/internal/errs"
	"github.com/parishdesk/parishdesk/internal/model"
	"github.com/parishdesk/parishdesk/internal/store"
	"github.com/parishdesk/parishdesk/migrations"
)

const (
	dbFile  = "session.db"
	keyFile = "store.key"
)

// Store is a store.Store backed by a single-file SQLite database. The user
// snapshot is sealed with a key derived from a local keyfile; everything else
// is stored as-is.
type Store struct {
	db     *sql.DB
	secret []byte
}

var _ store.Store = (*Store)(nil)

// Open creates dir if needed, opens (or creates) the database, applies the
// embedded schema migrations, and loads or generates the keyfile.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dsn := filepath.Join(dir, dbFile) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite single-writer: cap pool
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	secret, err := loadOrCreateSecret(filepath.Join(dir, keyFile))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, secret: secret}, nil
}

func loadOrCreateSecret(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil && len(b) == store.SecretLen {
		return b, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read keyfile: %w", err)
	}
	b, err = store.NewSecret()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return nil, fmt.Errorf("write keyfile: %w", err)
	}
	return b, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) set(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE
SET value = excluded.value,
    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`
	_, err := s.db.ExecContext(ctx, q, key, value)
	return err
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT value FROM kv WHERE key = ?`
	var v []byte
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *Store) delete(ctx context.Context, keys ...string) error {
	const q = `DELETE FROM kv WHERE key = ?`
	for _, k := range keys {
		if _, err := s.db.ExecContext(ctx, q, k); err != nil {
			return err
		}
	}
	return nil
}

type tokenEntry struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SaveAccessToken persists the bearer token with its expiry.
func (s *Store) SaveAccessToken(ctx context.Context, token string, expiresAt time.Time) error {
	b, err := json.Marshal(tokenEntry{AccessToken: token, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}
	return s.set(ctx, store.KeyAccessToken, b)
}

// AccessToken loads the persisted bearer token.
func (s *Store) AccessToken(ctx context.Context) (string, time.Time, error) {
	b, err := s.get(ctx, store.KeyAccessToken)
	if err != nil {
		return "", time.Time{}, err
	}
	var te tokenEntry
	if err := json.Unmarshal(b, &te); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token entry: %w", err)
	}
	return te.AccessToken, te.ExpiresAt, nil
}

// SaveUser seals and persists the full user snapshot.
func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	plain, err := json.Marshal(u)
	if err != nil {
		return err
	}
	sealed, err := store.Seal(s.secret, plain)
	if err != nil {
		return err
	}
	return s.set(ctx, store.KeyUserSnapshot, sealed)
}

// User loads and unseals the persisted snapshot. A snapshot that cannot be
// unsealed (rotated keyfile) is treated as absent.
func (s *Store) User(ctx context.Context) (*model.User, error) {
	sealed, err := s.get(ctx, store.KeyUserSnapshot)
	if err != nil {
		return nil, err
	}
	plain, err := store.Unseal(s.secret, sealed)
	if err != nil {
		return nil, errs.ErrNotFound
	}
	var u model.User
	if err := json.Unmarshal(plain, &u); err != nil {
		return nil, fmt.Errorf("decode user snapshot: %w", err)
	}
	return &u, nil
}

// SetLoginHints records the post-login success flag and redirect target.
func (s *Store) SetLoginHints(ctx context.Context, route string) error {
	if err := s.set(ctx, store.KeyLoginSuccess, []byte("true")); err != nil {
		return err
	}
	return s.set(ctx, store.KeyLoginRedirect, []byte(route))
}

// TakeLoginHints consumes the one-shot hints.
func (s *Store) TakeLoginHints(ctx context.Context) (string, bool, error) {
	route, err := s.get(ctx, store.KeyLoginRedirect)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if err := s.delete(ctx, store.KeyLoginSuccess, store.KeyLoginRedirect); err != nil {
		return "", false, err
	}
	return string(route), true, nil
}

// ClearAuth removes both token entries and the user snapshot.
func (s *Store) ClearAuth(ctx context.Context) error {
	return s.delete(ctx, store.KeyAccessToken, store.KeyRefreshToken, store.KeyUserSnapshot)
}
