// Package session owns the durable bearer token. It is the single writer of
// the session file; every other component reads the token through the Manager.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tmarchal/taskdeck/internal/crypto"
)

// ErrNoSession is returned when no token is stored.
var ErrNoSession = errors.New("no active session")

// lockRetryInterval is how often flock retries while waiting for the file lock.
const lockRetryInterval = 50 * time.Millisecond

// Manager owns the session token, both in memory and on disk. Concurrent
// processes sharing the same session file serialize on a flock alongside it.
type Manager struct {
	path   string
	cipher *crypto.Cipher

	mu    sync.Mutex
	token string

	now func() time.Time // injectable clock for testing
}

// NewManager creates a Manager persisting to path. cipher may be nil, in which
// case the token is stored in plaintext.
func NewManager(path string, cipher *crypto.Cipher) *Manager {
	return &Manager{
		path:   path,
		cipher: cipher,
		now:    time.Now,
	}
}

// Token returns the in-memory token, or "" when unauthenticated.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Authenticated reports whether a token is held in memory.
func (m *Manager) Authenticated() bool {
	return m.Token() != ""
}

// Restore loads the token from the session file into memory. A token whose JWT
// exp claim has already passed is discarded without a network round trip.
// Returns ErrNoSession when no usable token is stored.
func (m *Manager) Restore(ctx context.Context) (string, error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("reading session file: %w", err)
	}

	token, err := m.cipher.Decrypt(string(data))
	if err != nil {
		return "", fmt.Errorf("decrypting session file: %w", err)
	}
	if token == "" {
		return "", ErrNoSession
	}

	if tokenExpired(token, m.now()) {
		_ = os.Remove(m.path)
		return "", ErrNoSession
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return token, nil
}

// Save stores the token in memory and on disk.
func (m *Manager) Save(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("refusing to save empty token")
	}

	unlock, err := m.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	body, err := m.cipher.Encrypt(token)
	if err != nil {
		return fmt.Errorf("encrypting session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	if err := os.WriteFile(m.path, []byte(body), 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Clear drops the in-memory token and removes the session file.
func (m *Manager) Clear(ctx context.Context) error {
	unlock, err := m.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// lock acquires the session file lock, returning an unlock func.
func (m *Manager) lock(ctx context.Context) (func(), error) {
	fl := flock.New(m.path + ".lock")
	// The lock file lives next to the session file; make sure the directory
	// exists before flock tries to create it.
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	ok, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("locking session file: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("session file is locked by another process")
	}
	return func() { _ = fl.Unlock() }, nil
}

// tokenExpired reports whether token is a JWT with an exp claim in the past.
// Opaque (non-JWT) tokens and JWTs without exp are never considered expired
// here; the /auth/me round trip decides for those.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
