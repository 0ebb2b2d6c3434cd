// Package catalog caches the discovered champion list in SQLite so resumed
// runs can resolve champion names and audio page URLs without re-scraping
// the wiki, including when it is unreachable.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"voxcrawl/internal/config"
)

// Champion is one cached catalog entry.
type Champion struct {
	ID           string
	Name         string
	AudioURL     string
	DiscoveredAt time.Time
}

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	dbPath := cfg.Catalog.Path
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the catalog database location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applyMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, migration := range migrations {
		var count int
		row := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", migration.version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, migration.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", migration.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", migration.version); err != nil {
			return fmt.Errorf("record migration %s: %w", migration.version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// Replace swaps the cached list for the provided entries in one transaction.
func (s *Store) Replace(ctx context.Context, champions []Champion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM champions"); err != nil {
		return fmt.Errorf("clear champions: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, champion := range champions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO champions (id, name, audio_url, discovered_at) VALUES (?, ?, ?, ?)`,
			champion.ID, champion.Name, champion.AudioURL, now,
		); err != nil {
			return fmt.Errorf("insert champion %s: %w", champion.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// Upsert inserts or updates a single entry.
func (s *Store) Upsert(ctx context.Context, champion Champion) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO champions (id, name, audio_url, discovered_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET name = excluded.name, audio_url = excluded.audio_url`,
		champion.ID, champion.Name, champion.AudioURL, now,
	)
	if err != nil {
		return fmt.Errorf("upsert champion %s: %w", champion.ID, err)
	}
	return nil
}

// List returns all cached entries ordered by id.
func (s *Store) List(ctx context.Context) ([]Champion, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, audio_url, discovered_at FROM champions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query champions: %w", err)
	}
	defer rows.Close()

	var champions []Champion
	for rows.Next() {
		champion, err := scanChampion(rows)
		if err != nil {
			return nil, err
		}
		champions = append(champions, champion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate champions: %w", err)
	}
	return champions, nil
}

// Lookup returns the entry with the given id, or (nil, nil) when absent.
func (s *Store) Lookup(ctx context.Context, id string) (*Champion, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, audio_url, discovered_at FROM champions WHERE id = ?", id)
	champion, err := scanChampion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &champion, nil
}

// Count returns the number of cached entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM champions").Scan(&count); err != nil {
		return 0, fmt.Errorf("count champions: %w", err)
	}
	return count, nil
}

// Clear removes all cached entries.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM champions"); err != nil {
		return fmt.Errorf("clear champions: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChampion(row rowScanner) (Champion, error) {
	var champion Champion
	var discovered string
	if err := row.Scan(&champion.ID, &champion.Name, &champion.AudioURL, &discovered); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Champion{}, err
		}
		return Champion{}, fmt.Errorf("scan champion: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, discovered); err == nil {
		champion.DiscoveredAt = parsed
	}
	return champion, nil
}
