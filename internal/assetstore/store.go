// Package assetstore persists fetched metaschema assets in a local SQLite
// database. The layout mirrors the release feed: one row per release in
// oscal_versions, one row per (version, model, kind) in oscal_support, and
// the file bytes in filecache keyed by a random UUID.
package assetstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/golangoscal/metaschema/internal/assetstore/migrations"
	"github.com/golangoscal/metaschema/internal/types"
)

// FileName is the database file created inside the store directory.
const FileName = "assets.db"

// ErrNotFound reports a missing version or asset. It is fs.ErrNotExist so
// callers can test absence uniformly across providers.
var ErrNotFound = fs.ErrNotExist

// Store is a SQLite-backed asset cache.
type Store struct {
	types.Logger
	db   *sql.DB
	path string
}

// Version describes one release of the schema feed.
type Version struct {
	Tag                   string
	Title                 string
	Released              time.Time
	GitHubLocation        string
	DocumentationLocation string
	Acquired              time.Time
	Successful            bool
}

// Asset is one support file of a release.
type Asset struct {
	Version          string
	Model            string
	Kind             string
	Filename         string
	OriginalLocation string
	Content          []byte
}

// Open opens or creates the store under dir. An empty dir selects
// <UserCacheDir>/metaschema.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locating cache directory: %w", err)
		}
		dir = filepath.Join(base, "metaschema")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		Logger: types.Logger{L: types.Component(logger, "assetstore")},
		db:     db,
		path:   dbPath,
	}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	s.Log(slog.LevelDebug, "asset store opened", slog.String("path", dbPath))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// PutVersion inserts or replaces a release record.
func (s *Store) PutVersion(ctx context.Context, v Version) error {
	acquired := v.Acquired
	if acquired.IsZero() {
		acquired = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oscal_versions (version, title, released, github_location, documentation_location, acquired, successful)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			title = excluded.title,
			released = excluded.released,
			github_location = excluded.github_location,
			documentation_location = excluded.documentation_location,
			acquired = excluded.acquired,
			successful = excluded.successful
	`, v.Tag, v.Title, formatTime(v.Released), v.GitHubLocation, v.DocumentationLocation, formatTime(acquired), v.Successful)
	if err != nil {
		return fmt.Errorf("saving version %s: %w", v.Tag, err)
	}
	return nil
}

// MarkComplete records whether every asset of a release was acquired.
func (s *Store) MarkComplete(ctx context.Context, tag string, successful bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE oscal_versions SET successful = ? WHERE version = ?", successful, tag)
	if err != nil {
		return fmt.Errorf("updating version %s: %w", tag, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("version %s: %w", tag, ErrNotFound)
	}
	return nil
}

// Versions returns all known releases, newest first.
func (s *Store) Versions(ctx context.Context) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, title, released, github_location, documentation_location, acquired, successful
		FROM oscal_versions ORDER BY released DESC, version DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Version returns one release record.
func (s *Store) Version(ctx context.Context, tag string) (Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version, title, released, github_location, documentation_location, acquired, successful
		FROM oscal_versions WHERE version = ?
	`, tag)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, fmt.Errorf("version %s: %w", tag, ErrNotFound)
	}
	return v, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (Version, error) {
	var v Version
	var released, acquired string
	if err := row.Scan(&v.Tag, &v.Title, &released, &v.GitHubLocation, &v.DocumentationLocation, &acquired, &v.Successful); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return v, err
		}
		return v, fmt.Errorf("scanning version: %w", err)
	}
	v.Released = parseTime(released)
	v.Acquired = parseTime(acquired)
	return v, nil
}

// PutAsset stores an asset, replacing any earlier copy for the same
// (version, model, kind). It returns the filecache UUID.
func (s *Store) PutAsset(ctx context.Context, a Asset) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		DELETE FROM filecache WHERE uuid IN (
			SELECT filecache_uuid FROM oscal_support WHERE version = ? AND model = ? AND type = ?
		)
	`, a.Version, a.Model, a.Kind)
	if err != nil {
		return "", fmt.Errorf("clearing previous asset: %w", err)
	}

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO filecache (uuid, filename, original_location, file_type, acquired, content)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, a.Filename, a.OriginalLocation, a.Kind, formatTime(time.Now().UTC()), a.Content)
	if err != nil {
		return "", fmt.Errorf("caching %s: %w", a.Filename, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO oscal_support (version, model, type, filecache_uuid) VALUES (?, ?, ?, ?)
	`, a.Version, a.Model, a.Kind, id)
	if err != nil {
		return "", fmt.Errorf("indexing %s: %w", a.Filename, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing asset: %w", err)
	}

	if s.TraceEnabled() {
		s.Trace("asset stored",
			slog.String("version", a.Version),
			slog.String("model", a.Model),
			slog.String("kind", a.Kind),
			slog.Int("bytes", len(a.Content)))
	}
	return id, nil
}

// Asset returns the stored bytes for (version, model, kind).
func (s *Store) Asset(ctx context.Context, version, model, kind string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT f.content FROM oscal_support s
		JOIN filecache f ON f.uuid = s.filecache_uuid
		WHERE s.version = ? AND s.model = ? AND s.type = ?
	`, version, model, kind).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s %s: %w", version, model, kind, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading asset: %w", err)
	}
	return content, nil
}

// Models lists the models with an asset of kind for version, sorted.
func (s *Store) Models(ctx context.Context, version, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT model FROM oscal_support WHERE version = ? AND type = ? ORDER BY model", version, kind)
	if err != nil {
		return nil, fmt.Errorf("querying models: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scanning model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClearVersion removes a release and all of its assets.
func (s *Store) ClearVersion(ctx context.Context, tag string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmts := []string{
		"DELETE FROM filecache WHERE uuid IN (SELECT filecache_uuid FROM oscal_support WHERE version = ?)",
		"DELETE FROM oscal_support WHERE version = ?",
		"DELETE FROM oscal_versions WHERE version = ?",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, tag); err != nil {
			return fmt.Errorf("clearing version %s: %w", tag, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing clear: %w", err)
	}
	s.Log(slog.LevelDebug, "version cleared", slog.String("version", tag))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
