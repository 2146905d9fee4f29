// Package auth owns the session lifecycle and the cached user directory.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tmarchal/taskdeck/internal/rest"
	"github.com/tmarchal/taskdeck/internal/session"
	"github.com/tmarchal/taskdeck/internal/wire"
)

var (
	// ErrLoginFailed is returned for every failed login. The backend's exact
	// message is logged, never surfaced, so credential probing errors stay
	// generic.
	ErrLoginFailed = errors.New("login failed: check your email and password")

	// ErrUnauthenticated is returned by operations that require a session.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrUserNotFound is returned when an email has no match in the directory.
	ErrUserNotFound = errors.New("user not found in directory")

	// ErrSelfDemotion is returned when a user tries to demote themselves.
	ErrSelfDemotion = errors.New("cannot demote your own account")

	// ErrSelfDeletion is returned when a user tries to delete themselves.
	ErrSelfDeletion = errors.New("cannot delete your own account")

	// ErrInvalidUserID is returned for non-positive user ids.
	ErrInvalidUserID = errors.New("invalid user id")
)

// MetricsRecorder is an optional interface for auth-related metrics.
type MetricsRecorder interface {
	IncForcedLogout()
	IncStoreSync(store, outcome string)
}

// Store holds the current session's user and the full user directory.
// It is safe for concurrent use.
type Store struct {
	client   *rest.Client
	sessions *session.Manager

	mu    sync.RWMutex
	user  *User
	users []User

	metrics MetricsRecorder
}

// NewStore creates an auth store over the given REST client and session manager.
func NewStore(client *rest.Client, sessions *session.Manager) *Store {
	return &Store{client: client, sessions: sessions}
}

// SetMetrics sets the optional metrics recorder.
func (s *Store) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// Init restores the persisted session, if any, and validates it against the
// backend. A missing, expired, or rejected token settles the store as
// unauthenticated; Init only fails on local I/O problems.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.sessions.Restore(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}

	var raw json.RawMessage
	if err := s.client.Get(ctx, "/auth/me", &raw); err != nil {
		slog.Warn("stored session rejected, logging out", "error", err)
		return s.forceLogout(ctx)
	}

	u, err := ParseCurrentUser(raw)
	if err != nil {
		slog.Warn("could not parse current user, logging out", "error", err)
		return s.forceLogout(ctx)
	}

	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	return nil
}

// Login authenticates with the backend and establishes a session. Any failure
// clears the session and returns ErrLoginFailed; the underlying cause is only
// logged.
func (s *Store) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}

	var raw json.RawMessage
	if err := s.client.Post(ctx, "/auth/login", body, &raw); err != nil {
		return s.failLogin(ctx, err)
	}

	token, err := ParseLoginToken(raw)
	if err != nil {
		return s.failLogin(ctx, err)
	}
	if err := s.sessions.Save(ctx, token); err != nil {
		return s.failLogin(ctx, err)
	}

	var meRaw json.RawMessage
	if err := s.client.Get(ctx, "/auth/me", &meRaw); err != nil {
		return s.failLogin(ctx, err)
	}
	u, err := ParseCurrentUser(meRaw)
	if err != nil {
		return s.failLogin(ctx, err)
	}

	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	return nil
}

func (s *Store) failLogin(ctx context.Context, cause error) error {
	slog.Warn("login failed", "error", cause)
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	if err := s.sessions.Clear(ctx); err != nil {
		slog.Error("clearing session after failed login", "error", err)
	}
	return ErrLoginFailed
}

// Register creates an account, then logs in with the same credentials.
func (s *Store) Register(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := s.client.Post(ctx, "/auth/register", body, nil); err != nil {
		return fmt.Errorf("registering: %w", err)
	}
	return s.Login(ctx, email, password)
}

// Logout clears the in-memory user and the persisted token.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	return s.sessions.Clear(ctx)
}

// forceLogout is Logout plus diagnostics, used when the backend rejects the
// token mid-session.
func (s *Store) forceLogout(ctx context.Context) error {
	if s.metrics != nil {
		s.metrics.IncForcedLogout()
	}
	return s.Logout(ctx)
}

// IsAuthenticated reports whether a user is set.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (s *Store) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Users returns a copy of the cached directory.
func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, len(s.users))
	copy(out, s.users)
	return out
}

// LoadUsers fetches the user directory. Failures degrade to an empty
// directory rather than an error so callers always have something to render;
// a token rejection additionally forces a logout.
func (s *Store) LoadUsers(ctx context.Context) []User {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/users", &raw); err != nil {
		slog.Error("loading user directory", "error", err)
		if rest.IsAuthError(err) {
			if lerr := s.forceLogout(ctx); lerr != nil {
				slog.Error("forced logout", "error", lerr)
			}
		}
		s.setUsers(nil, "error")
		return nil
	}

	users, err := ParseDirectory(raw)
	if err != nil {
		slog.Error("normalizing user directory", "error", err)
		s.setUsers(nil, "error")
		return nil
	}

	s.setUsers(users, "ok")
	return s.Users()
}

func (s *Store) setUsers(users []User, outcome string) {
	if s.metrics != nil {
		s.metrics.IncStoreSync("users", outcome)
	}
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
}

// ProfileUpdate holds optional fields for a partial profile update.
type ProfileUpdate struct {
	Name   *string `json:"name,omitempty"`
	Bio    *string `json:"bio,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// UpdateProfile updates the authenticated user's profile and patches the local
// user snapshot on success.
func (s *Store) UpdateProfile(ctx context.Context, in ProfileUpdate) error {
	if !s.IsAuthenticated() {
		return ErrUnauthenticated
	}
	if err := s.client.Put(ctx, "/profile", in, nil); err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}

	s.mu.Lock()
	if s.user != nil {
		if in.Name != nil {
			s.user.Name = *in.Name
		}
		if in.Bio != nil {
			s.user.Bio = *in.Bio
		}
		if in.Avatar != nil {
			s.user.Avatar = *in.Avatar
		}
	}
	s.mu.Unlock()
	return nil
}

// UpdatePassword changes the authenticated user's password. No local state
// changes on success.
func (s *Store) UpdatePassword(ctx context.Context, current, updated string) error {
	if !s.IsAuthenticated() {
		return ErrUnauthenticated
	}
	body := map[string]string{"currentPassword": current, "newPassword": updated}
	if err := s.client.Put(ctx, "/profile/password", body, nil); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

// PromoteToAdmin grants the ADMIN role to the user with the given email. The
// email is resolved against the cached directory, then the directory is
// reloaded.
func (s *Store) PromoteToAdmin(ctx context.Context, email string) error {
	return s.setRole(ctx, email, RoleAdmin)
}

// DemoteToMember revokes the ADMIN role from the user with the given email.
// Demoting your own account is rejected.
func (s *Store) DemoteToMember(ctx context.Context, email string) error {
	return s.setRole(ctx, email, RoleMember)
}

func (s *Store) setRole(ctx context.Context, email string, role Role) error {
	target := s.findByEmail(email)
	if target == nil {
		return ErrUserNotFound
	}

	if role == RoleMember {
		if cur := s.CurrentUser(); cur != nil && cur.ID == target.ID {
			return ErrSelfDemotion
		}
	}

	body := map[string]Role{"role": role}
	if err := s.client.Put(ctx, "/users/"+target.ID.String(), body, nil); err != nil {
		return fmt.Errorf("changing role for %s: %w", email, err)
	}

	s.LoadUsers(ctx)
	return nil
}

func (s *Store) findByEmail(email string) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.users {
		if s.users[i].Email == email {
			u := s.users[i]
			return &u
		}
	}
	return nil
}

// CreateUserInput holds the fields required to create a user.
type CreateUserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

// CreateUser creates a user, then reloads the directory so local state tracks
// the backend.
func (s *Store) CreateUser(ctx context.Context, in CreateUserInput) error {
	if err := s.client.Post(ctx, "/users", in, nil); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	s.LoadUsers(ctx)
	return nil
}

// UpdateUserInput holds optional fields for a partial user update.
type UpdateUserInput struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

// UpdateUser updates a user by id, then reloads the directory.
func (s *Store) UpdateUser(ctx context.Context, id wire.ID, in UpdateUserInput) error {
	if !id.Valid() {
		return ErrInvalidUserID
	}
	if err := s.client.Put(ctx, "/users/"+id.String(), in, nil); err != nil {
		return fmt.Errorf("updating user %s: %w", id, err)
	}
	s.LoadUsers(ctx)
	return nil
}

// DeleteUser deletes a user by id, then reloads the directory. Deleting the
// authenticated user is rejected without touching the backend.
func (s *Store) DeleteUser(ctx context.Context, id wire.ID) error {
	if !id.Valid() {
		return ErrInvalidUserID
	}
	if cur := s.CurrentUser(); cur != nil && cur.ID == id {
		return ErrSelfDeletion
	}
	if err := s.client.Delete(ctx, "/users/"+id.String(), nil); err != nil {
		return fmt.Errorf("deleting user %s: %w", id, err)
	}
	s.LoadUsers(ctx)
	return nil
}
