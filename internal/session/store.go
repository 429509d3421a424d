// Package session persists the authenticated browsing session between runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrNoSession is returned by Load when no session file exists.
	ErrNoSession = errors.New("no saved session")
	// ErrCorruptSession is returned by Load when the file cannot be decoded.
	ErrCorruptSession = errors.New("saved session is corrupt")
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// Store reads and writes the storage-state snapshot at a single well-known path.
type Store struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger
}

// Summary describes a saved session without exposing its secrets.
type Summary struct {
	Path           string    `json:"path"`
	Cookies        int       `json:"cookies"`
	Origins        int       `json:"origins"`
	EarliestExpiry time.Time `json:"earliest_expiry,omitempty"`
	ModTime        time.Time `json:"mod_time"`
}

func NewStore(fs afero.Fs, path string, logger *zap.Logger) *Store {
	return &Store{
		fs:     fs,
		path:   path,
		logger: logger.Named("session_store").With(zap.String("path", path)),
	}
}

// Path returns the location of the session file.
func (s *Store) Path() string { return s.path }

// Exists reports whether a session file is present.
func (s *Store) Exists() (bool, error) {
	return afero.Exists(s.fs, s.path)
}

// Load reads and decodes the session file.
func (s *Store) Load() (*schemas.StorageState, error) {
	raw, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var state schemas.StorageState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return &state, nil
}

// Restore opens the run's page. The page starts from the saved session when
// one can be loaded and from a fresh context otherwise; problems with the
// file are logged, never returned. Errors from the browser are returned.
func (s *Store) Restore(ctx context.Context, browser schemas.Browser) (schemas.Page, error) {
	state, err := s.Load()
	switch {
	case errors.Is(err, ErrNoSession):
		s.logger.Info("No saved session; starting with a fresh context.")
		state = nil
	case err != nil:
		s.logger.Warn("Ignoring unusable session file; starting with a fresh context.", zap.Error(err))
		state = nil
	default:
		s.logger.Info("Restoring saved session.",
			zap.Int("cookies", len(state.Cookies)),
			zap.Int("origins", len(state.Origins)))
	}

	page, err := browser.NewPage(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to create browsing context: %w", err)
	}
	return page, nil
}

// Persist snapshots the page's session and replaces the saved file with it.
func (s *Store) Persist(ctx context.Context, page schemas.Page) error {
	state, err := page.StorageState(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot session: %w", err)
	}
	if err := s.Save(state); err != nil {
		return err
	}
	s.logger.Info("Session saved.", zap.Int("cookies", len(state.Cookies)), zap.Int("origins", len(state.Origins)))
	return nil
}

// Save writes state atomically: a temporary file in the same directory is
// written, then renamed over the previous snapshot.
func (s *Store) Save(state *schemas.StorageState) error {
	if state == nil {
		state = &schemas.StorageState{}
	}
	if state.Cookies == nil {
		state.Cookies = []schemas.Cookie{}
	}
	if state.Origins == nil {
		state.Origins = []schemas.OriginState{}
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, raw, filePerm); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear deletes the saved session. A missing file is not an error.
func (s *Store) Clear() error {
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	s.logger.Info("Session cleared.")
	return nil
}

// Summary reports what the saved session contains.
func (s *Store) Summary() (*Summary, error) {
	info, err := s.fs.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to stat session file: %w", err)
	}
	state, err := s.Load()
	if err != nil {
		return nil, err
	}
	return &Summary{
		Path:           s.path,
		Cookies:        len(state.Cookies),
		Origins:        len(state.Origins),
		EarliestExpiry: state.EarliestExpiry(),
		ModTime:        info.ModTime(),
	}, nil
}
