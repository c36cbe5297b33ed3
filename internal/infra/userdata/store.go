// Package userdata persists user settings: manually added devices and the UI theme.
package userdata

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the settings database.
	DefaultDBPath = "data/userdata.db"

	themeKey = "theme"
)

var (
	// ErrClosed is returned when the store is used before Open or after Close
	ErrClosed = errors.New("userdata store is not open")

	// ErrInvalidTheme is returned by SetTheme for unknown values
	ErrInvalidTheme = errors.New("invalid theme")

	// ErrEmptyAddress is returned when adding a blank device address
	ErrEmptyAddress = errors.New("address is required")
)

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeSystem, ThemeLight, ThemeDark:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
}

// Store is the SQLite-backed user data store.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewStore creates a store for the database at path.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultDBPath
	}
	return &Store{path: path}
}

// Open opens the database and initializes the schema.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", s.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open userdata database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s.db = db

	if err := s.initSchema(); err != nil {
		s.db.Close()
		s.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", s.path).Msg("User data database opened")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT
	);

	CREATE TABLE IF NOT EXISTS manual_devices (
		address TEXT PRIMARY KEY,
		added_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`); err != nil {
		return err
	}

	current := s.schemaVersion()
	if current != "" && current != CurrentSchemaVersion {
		log.Info().
			Str("current", current).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating user data schema")
	}
	if current != CurrentSchemaVersion {
		return s.setMeta("schema_version", CurrentSchemaVersion)
	}
	return nil
}

func (s *Store) schemaVersion() string {
	var version string
	if err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version); err != nil {
		return ""
	}
	return version
}

func (s *Store) setMeta(key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

// ManualAddresses returns the manually added device addresses in the order they were added.
func (s *Store) ManualAddresses() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query("SELECT address FROM manual_devices ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query manual devices: %w", err)
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

// AddManualAddress stores an address. Adding a stored address is a no-op.
func (s *Store) AddManualAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrEmptyAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO manual_devices (address, added_at) VALUES (?, ?)",
		address, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("add manual device: %w", err)
	}
	return nil
}

// RemoveManualAddress deletes an address. Removing an unknown address is a no-op.
func (s *Store) RemoveManualAddress(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}

	if _, err := s.db.Exec("DELETE FROM manual_devices WHERE address = ?", strings.TrimSpace(address)); err != nil {
		return fmt.Errorf("remove manual device: %w", err)
	}
	return nil
}

// Theme returns the stored theme, ThemeSystem when none was stored.
func (s *Store) Theme() (Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return "", ErrClosed
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", themeKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ThemeSystem, nil
	}
	if err != nil {
		return "", fmt.Errorf("read theme: %w", err)
	}

	t, err := ParseTheme(value)
	if err != nil {
		log.Warn().Str("value", value).Msg("Ignoring stored theme")
		return ThemeSystem, nil
	}
	return t, nil
}

// SetTheme stores the theme preference.
func (s *Store) SetTheme(t Theme) error {
	t, err := ParseTheme(string(t))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}

	_, err = s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, themeKey, string(t))
	if err != nil {
		return fmt.Errorf("store theme: %w", err)
	}
	return nil
}
