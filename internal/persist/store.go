package persist

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crossarb/paperbot/internal/domain"
)

// Config holds persistence layer parameters.
type Config struct {
	// Dir is the state directory holding all persisted files.
	Dir string
	// LockTimeout bounds advisory lock acquisition (default 10s).
	LockTimeout time.Duration
	// BackupInterval gates how often a prior version is copied to a sibling
	// .bak file before replacement (default 1h; zero disables backups).
	BackupInterval time.Duration
	// SyncDir forces a directory fsync after each atomic rename.
	SyncDir bool
}

// Store is the shared crash-safe file state store. Each named state file gets
// atomic replacement, advisory locking with bounded timeouts, fingerprint
// write skipping, and time-gated backups. Write failures are counted and
// exposed for the health surface, never swallowed.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu           sync.Mutex
	fingerprints map[string][sha256.Size]byte
	lastGood     map[string][]byte
	lastBackup   map[string]time.Time

	writeFailures atomic.Uint64
}

// New creates the store, ensuring the state directory exists.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}
	if cfg.BackupInterval < 0 {
		cfg.BackupInterval = 0
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("persist: create state dir %s: %w", cfg.Dir, err)
	}
	return &Store{
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "persist")),
		fingerprints: make(map[string][sha256.Size]byte),
		lastGood:     make(map[string][]byte),
		lastBackup:   make(map[string]time.Time),
	}, nil
}

// WriteFailures returns the cumulative count of failed physical writes, so
// "process alive but state stale" is externally detectable.
func (s *Store) WriteFailures() uint64 {
	return s.writeFailures.Load()
}

func (s *Store) path(name string) string {
	return filepath.Join(s.cfg.Dir, name)
}

func (s *Store) lockFor(name string) *FileLock {
	return NewFileLock(s.path(name)+".lock", s.cfg.LockTimeout)
}

// WriteJSON serializes v and durably replaces the named state file. When the
// serialized content is unchanged since the last successful write the
// physical write is skipped. On lock timeout the write proceeds without the
// lock rather than blocking indefinitely, flagged in the log.
func (s *Store) WriteJSON(ctx context.Context, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: marshal %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sum := sha256.Sum256(data)
	if prev, ok := s.fingerprints[name]; ok && prev == sum {
		s.logger.Debug("state unchanged, skipping write", slog.String("file", name))
		return nil
	}

	release, err := s.lockFor(name).Acquire(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrLockTimeout) {
			s.writeFailures.Add(1)
			return err
		}
		// Liveness over strict mutual exclusion: proceed unlocked.
		s.logger.Warn("lock timeout, writing unlocked",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	} else {
		defer release()
	}

	s.maybeBackup(name)

	if err := AtomicWriteFile(s.path(name), data, 0o644, s.cfg.SyncDir); err != nil {
		s.writeFailures.Add(1)
		s.logger.Error("state write failed",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.fingerprints[name] = sum
	s.lastGood[name] = data
	return nil
}

// ReadJSON loads the named state file under the advisory lock. It returns an
// error wrapping domain.ErrNotFound when the file does not exist and one
// wrapping domain.ErrLockTimeout when the lock could not be acquired in time;
// callers choose their own fallback for the latter.
func (s *Store) ReadJSON(ctx context.Context, name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := s.lockFor(name).Acquire(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrLockTimeout) {
			return err
		}
		return err
	}
	defer release()

	return s.readUnlocked(name, v)
}

// ReadJSONRelaxed loads the named state file, falling back to an unlocked
// read when the advisory lock times out. Atomic replacement guarantees the
// unlocked read still observes a complete prior version, so the result is
// stale-but-valid at worst. The fallback is logged.
func (s *Store) ReadJSONRelaxed(ctx context.Context, name string, v any) error {
	err := s.ReadJSON(ctx, name, v)
	if err == nil || !errors.Is(err, domain.ErrLockTimeout) {
		return err
	}

	s.logger.Warn("lock timeout, reading unlocked",
		slog.String("file", name),
		slog.String("error", err.Error()),
	)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readUnlocked(name, v)
}

func (s *Store) readUnlocked(name string, v any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("persist: %s: %w", name, domain.ErrNotFound)
		}
		return fmt.Errorf("persist: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("persist: unmarshal %s: %w", name, err)
	}
	return nil
}

// maybeBackup copies the current content of name to a sibling .bak file when
// the backup interval has elapsed. Backup failures are logged and do not
// block the write they precede.
func (s *Store) maybeBackup(name string) {
	if s.cfg.BackupInterval <= 0 {
		return
	}
	if time.Since(s.lastBackup[name]) < s.cfg.BackupInterval {
		return
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("backup read failed",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if err := AtomicWriteFile(s.path(name)+".bak", data, 0o644, false); err != nil {
		s.logger.Warn("backup write failed",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
		return
	}
	s.lastBackup[name] = time.Now()
}
