package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/crossarb/paperbot/internal/domain"
)

const (
	// acquirePollInterval is how often Acquire retries a held lock.
	acquirePollInterval = 50 * time.Millisecond
	// staleAfter is the age past which a lock file from a crashed holder is
	// broken and reclaimed.
	staleAfter = 30 * time.Second
)

// lockInfo is the JSON payload written into a lock file so operators (and the
// stale-lock check) can see who holds it.
type lockInfo struct {
	Token      string    `json:"token"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// FileLock is an advisory cross-process lock backed by a sibling lock file.
// It is the only coordination primitive shared with external processes (for
// example a reporting process reading the same state directory); in-process
// callers additionally serialize through the Store mutex.
type FileLock struct {
	path    string
	timeout time.Duration
}

// NewFileLock creates an advisory lock at path with the given bounded
// acquisition timeout.
func NewFileLock(path string, timeout time.Duration) *FileLock {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FileLock{path: path, timeout: timeout}
}

// Acquire attempts to take the lock, polling until the bounded timeout
// elapses. On success it returns a release function that is safe to call more
// than once. It returns an error wrapping domain.ErrLockTimeout when the lock
// could not be obtained in time; the caller decides whether to fall back
// (reads) or proceed unlocked (writes).
func (l *FileLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.New().String()
	deadline := time.Now().Add(l.timeout)

	for {
		ok, err := l.tryAcquire(token)
		if err != nil {
			return nil, err
		}
		if ok {
			released := false
			release := func() {
				if released {
					return
				}
				released = true
				// Only remove the lock if we still hold it.
				if info, err := l.read(); err == nil && info.Token == token {
					_ = os.Remove(l.path)
				}
			}
			return release, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("persist: acquire %s after %s: %w", l.path, l.timeout, domain.ErrLockTimeout)
		}

		timer := time.NewTimer(acquirePollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("persist: acquire %s: %w", l.path, ctx.Err())
		case <-timer.C:
		}
	}
}

// tryAcquire makes one attempt to create the lock file exclusively, breaking
// a stale lock left behind by a crashed holder.
func (l *FileLock) tryAcquire(token string) (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		info := lockInfo{Token: token, PID: os.Getpid(), AcquiredAt: time.Now().UTC()}
		data, _ := json.Marshal(info)
		if _, werr := f.Write(data); werr != nil {
			f.Close()
			_ = os.Remove(l.path)
			return false, fmt.Errorf("persist: write lock %s: %w", l.path, werr)
		}
		if cerr := f.Close(); cerr != nil {
			_ = os.Remove(l.path)
			return false, fmt.Errorf("persist: close lock %s: %w", l.path, cerr)
		}
		return true, nil
	}
	if !os.IsExist(err) {
		return false, fmt.Errorf("persist: create lock %s: %w", l.path, err)
	}

	// Lock exists: break it only if it is stale.
	info, rerr := l.read()
	if rerr != nil {
		// Unreadable or vanished mid-check; retry on the next poll.
		return false, nil
	}
	if time.Since(info.AcquiredAt) > staleAfter {
		_ = os.Remove(l.path)
	}
	return false, nil
}

func (l *FileLock) read() (lockInfo, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return lockInfo{}, err
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return lockInfo{}, err
	}
	return info, nil
}
