// Package team caches the team collection behind a read-through policy:
// repeated fetches serve from memory until a write or an explicit force
// invalidates the cache.
package team

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tmarchal/taskdeck/internal/rest"
	"github.com/tmarchal/taskdeck/internal/wire"
)

var (
	// ErrNameRequired is returned when a team is created without a name.
	ErrNameRequired = errors.New("team name is required")

	// ErrInvalidTeamID is returned for non-positive team ids.
	ErrInvalidTeamID = errors.New("invalid team id")
)

// TaskCascader clears team references held by another store when a team is
// deleted. Implemented by the task store.
type TaskCascader interface {
	ClearTeamRefs(teamID wire.ID) int
}

// MetricsRecorder is an optional interface for team store metrics.
type MetricsRecorder interface {
	IncTeamCache(outcome string)
	IncStoreSync(store, outcome string)
}

// Store holds the cached team collection. Safe for concurrent use.
type Store struct {
	client *rest.Client

	mu      sync.RWMutex
	teams   []Team
	loaded  bool
	loading bool
	lastErr error
	gen     uint64

	cascade TaskCascader
	metrics MetricsRecorder
}

// NewStore creates a team store over the given REST client.
func NewStore(client *rest.Client) *Store {
	return &Store{client: client}
}

// SetTaskCascader sets the store that receives team-deletion cascades.
func (s *Store) SetTaskCascader(c TaskCascader) {
	s.cascade = c
}

// SetMetrics sets the optional metrics recorder.
func (s *Store) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// Teams returns a copy of the cached collection.
func (s *Store) Teams() []Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTeams(s.teams)
}

// Err returns the error recorded by the last failed operation.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Loading reports whether a network operation is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Fetch returns the team collection. When the cache is already populated and
// force is false, the cached copy is returned without a network call. Fetch
// failures degrade to an empty collection with the cause recorded and logged;
// the cache is marked unloaded so the next read retries.
func (s *Store) Fetch(ctx context.Context, force bool) []Team {
	s.mu.Lock()
	if s.loaded && !force {
		cached := copyTeams(s.teams)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.IncTeamCache("hit")
		}
		return cached
	}
	s.gen++
	gen := s.gen
	s.loading = true
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncTeamCache("miss")
	}

	defer s.clearLoading()

	var raw json.RawMessage
	if err := s.client.Get(ctx, "/teams", &raw); err != nil {
		slog.Error("fetching teams", "error", err)
		s.degrade(gen, err)
		return s.Teams()
	}

	teams, err := ParseTeamList(raw)
	if err != nil {
		slog.Error("normalizing team list", "error", err)
		s.degrade(gen, err)
		return s.Teams()
	}

	s.mu.Lock()
	// A later fetch may have finished first; keep its result.
	if s.gen == gen {
		s.teams = teams
		s.loaded = true
		s.lastErr = nil
	}
	out := copyTeams(s.teams)
	s.mu.Unlock()

	s.recordSync("ok")
	return out
}

// degrade empties the collection after a failed fetch, unless a newer fetch
// already settled.
func (s *Store) degrade(gen uint64, cause error) {
	if s.metrics != nil {
		s.metrics.IncStoreSync("teams", "error")
	}
	s.mu.Lock()
	if s.gen == gen {
		s.teams = nil
		s.loaded = false
		s.lastErr = cause
	}
	s.mu.Unlock()
}

// Get fetches a single team by id. A 404 returns (nil, nil): "not found" is an
// answer, not an error. Other failures are returned.
func (s *Store) Get(ctx context.Context, id wire.ID) (*Team, error) {
	if !id.Valid() {
		return nil, ErrInvalidTeamID
	}

	var raw json.RawMessage
	if err := s.client.Get(ctx, "/teams/"+id.String(), &raw); err != nil {
		if rest.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching team %s: %w", id, err)
	}

	t, err := ParseTeam(raw)
	if err != nil {
		return nil, fmt.Errorf("normalizing team %s: %w", id, err)
	}
	return t, nil
}

// CreateTeamInput holds the fields for creating a team.
type CreateTeamInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	MemberIDs   []wire.ID `json:"memberIds"`
}

// Create creates a team, then refetches the whole collection so membership
// counts come from the backend rather than an optimistic local patch.
func (s *Store) Create(ctx context.Context, in CreateTeamInput) (*Team, error) {
	s.setLoading(true)
	defer s.clearLoading()

	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrNameRequired
	}
	if in.MemberIDs == nil {
		in.MemberIDs = []wire.ID{}
	}

	var raw json.RawMessage
	if err := s.client.Post(ctx, "/teams", in, &raw); err != nil {
		return nil, s.fail("creating team", err)
	}

	created, err := ParseTeam(raw)
	if err != nil {
		return nil, s.fail("creating team", err)
	}

	s.Fetch(ctx, true)
	if fresh := s.cached(created.ID); fresh != nil {
		return fresh, nil
	}
	return created, nil
}

// UpdateTeamInput holds optional fields for a partial team update.
type UpdateTeamInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Update updates a team, then refetches the collection.
func (s *Store) Update(ctx context.Context, id wire.ID, in UpdateTeamInput) (*Team, error) {
	s.setLoading(true)
	defer s.clearLoading()

	if !id.Valid() {
		return nil, ErrInvalidTeamID
	}
	if err := s.client.Put(ctx, "/teams/"+id.String(), in, nil); err != nil {
		return nil, s.fail("updating team", err)
	}

	s.Fetch(ctx, true)
	return s.cached(id), nil
}

// Delete removes a team, drops it from the cache, and clears the team
// reference on any cached tasks so the two stores stay consistent without a
// task refetch.
func (s *Store) Delete(ctx context.Context, id wire.ID) error {
	s.setLoading(true)
	defer s.clearLoading()

	if !id.Valid() {
		return ErrInvalidTeamID
	}
	if err := s.client.Delete(ctx, "/teams/"+id.String(), nil); err != nil {
		return s.fail("deleting team", err)
	}

	s.mu.Lock()
	kept := make([]Team, 0, len(s.teams))
	for _, t := range s.teams {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.teams = kept
	s.mu.Unlock()

	if s.cascade != nil {
		cleared := s.cascade.ClearTeamRefs(id)
		if cleared > 0 {
			slog.Info("cleared team reference on cached tasks", "team_id", id, "tasks", cleared)
		}
	}
	return nil
}

// AddMembers adds users to a team and replaces the cached entry with the
// backend's response.
func (s *Store) AddMembers(ctx context.Context, id wire.ID, userIDs []wire.ID) (*Team, error) {
	s.setLoading(true)
	defer s.clearLoading()

	if !id.Valid() {
		return nil, ErrInvalidTeamID
	}
	body := map[string][]wire.ID{"userIds": wire.IDList(userIDs).Filter()}

	var raw json.RawMessage
	if err := s.client.Post(ctx, "/teams/"+id.String()+"/members", body, &raw); err != nil {
		return nil, s.fail("adding team members", err)
	}

	t, err := ParseTeam(raw)
	if err != nil {
		return nil, s.fail("adding team members", err)
	}
	s.replace(*t)
	return t, nil
}

// RemoveMember removes a user from a team. The endpoint answers
// {"success":..., "team":{...}}; the returned team replaces the cached entry.
func (s *Store) RemoveMember(ctx context.Context, teamID, userID wire.ID) (*Team, error) {
	s.setLoading(true)
	defer s.clearLoading()

	if !teamID.Valid() {
		return nil, ErrInvalidTeamID
	}

	var resp struct {
		Success bool  `json:"success"`
		Team    *Team `json:"team"`
	}
	path := "/teams/" + teamID.String() + "/members/" + userID.String()
	if err := s.client.Delete(ctx, path, &resp); err != nil {
		return nil, s.fail("removing team member", err)
	}
	if resp.Team == nil {
		return nil, s.fail("removing team member", fmt.Errorf("response carries no team"))
	}
	s.replace(*resp.Team)
	return resp.Team, nil
}

// TeamHasMember reports whether userID is a member of teamID, loading the
// cache first if needed. Used by the task store's assignment policy.
func (s *Store) TeamHasMember(ctx context.Context, teamID, userID wire.ID) bool {
	s.Fetch(ctx, false)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.teams {
		if s.teams[i].ID == teamID {
			return s.teams[i].HasMember(userID)
		}
	}
	return false
}

func (s *Store) cached(id wire.ID) *Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.teams {
		if s.teams[i].ID == id {
			t := s.teams[i]
			t.Members = append(MemberList(nil), t.Members...)
			return &t
		}
	}
	return nil
}

func (s *Store) replace(t Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.teams {
		if s.teams[i].ID == t.ID {
			s.teams[i] = t
			return
		}
	}
	s.teams = append(s.teams, t)
}

func (s *Store) fail(op string, cause error) error {
	err := fmt.Errorf("%s: %w", op, cause)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) clearLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

func (s *Store) recordSync(outcome string) {
	if s.metrics != nil {
		s.metrics.IncStoreSync("teams", outcome)
	}
}

func copyTeams(teams []Team) []Team {
	out := make([]Team, len(teams))
	copy(out, teams)
	for i := range out {
		out[i].Members = append(MemberList(nil), out[i].Members...)
	}
	return out
}
