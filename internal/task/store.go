// Package task caches the task collection in its detailed shape and converts
// to the thin id-only shape at the write boundary.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmarchal/taskdeck/internal/rest"
	"github.com/tmarchal/taskdeck/internal/wire"
)

var (
	// ErrTitleRequired is returned when a task is created without a title.
	ErrTitleRequired = errors.New("task title is required")

	// ErrInvalidTaskID is returned for non-positive task ids.
	ErrInvalidTaskID = errors.New("invalid task id")

	// ErrTaskNotFound is returned when the target task is not in the cache.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoAssignees is returned when an assignment carries no user ids.
	ErrNoAssignees = errors.New("at least one assignee is required")

	// ErrAssigneeNotInTeam is returned when membership enforcement rejects an
	// assignee who does not belong to the task's team.
	ErrAssigneeNotInTeam = errors.New("assignee is not a member of the task's team")
)

// MembershipChecker answers team-membership questions for the assignment
// policy. Implemented by the team store.
type MembershipChecker interface {
	TeamHasMember(ctx context.Context, teamID, userID wire.ID) bool
}

// MetricsRecorder is an optional interface for task store metrics.
type MetricsRecorder interface {
	IncStoreSync(store, outcome string)
}

// Options configures a Store.
type Options struct {
	// EnforceTeamMembership rejects assignees outside the task's team.
	EnforceTeamMembership bool
}

// Store holds the cached task collection. Safe for concurrent use.
type Store struct {
	client *rest.Client
	opts   Options

	mu      sync.RWMutex
	tasks   []Task
	loading bool
	lastErr error
	gen     uint64

	members MembershipChecker
	metrics MetricsRecorder
}

// NewStore creates a task store over the given REST client.
func NewStore(client *rest.Client, opts Options) *Store {
	return &Store{client: client, opts: opts}
}

// SetMembershipChecker sets the store consulted by the assignment policy.
func (s *Store) SetMembershipChecker(m MembershipChecker) {
	s.members = m
}

// SetMetrics sets the optional metrics recorder.
func (s *Store) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// Tasks returns a copy of the cached collection.
func (s *Store) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTasks(s.tasks)
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

// Fetch replaces the whole collection from the backend. A transport failure or
// malformed envelope degrades to an empty collection with the cause recorded
// and logged; Fetch never returns an error.
func (s *Store) Fetch(ctx context.Context) []Task {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.loading = true
	s.mu.Unlock()
	defer s.clearLoading()

	var raw json.RawMessage
	if err := s.client.Get(ctx, "/tasks", &raw); err != nil {
		slog.Error("fetching tasks", "error", err)
		s.degrade(gen, err)
		return s.Tasks()
	}

	tasks, err := ParseTaskList(raw)
	if err != nil {
		slog.Error("normalizing task list", "error", err)
		s.degrade(gen, err)
		return s.Tasks()
	}

	s.mu.Lock()
	// A later fetch may have finished first; keep its result.
	if s.gen == gen {
		s.tasks = tasks
		s.lastErr = nil
	}
	out := copyTasks(s.tasks)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncStoreSync("tasks", "ok")
	}
	return out
}

// degrade empties the collection after a failed fetch, unless a newer fetch
// already settled.
func (s *Store) degrade(gen uint64, cause error) {
	if s.metrics != nil {
		s.metrics.IncStoreSync("tasks", "error")
	}
	s.mu.Lock()
	if s.gen == gen {
		s.tasks = nil
		s.lastErr = cause
	}
	s.mu.Unlock()
}

// CreateTaskInput holds the fields for creating a task.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      Status
	Priority    Priority
	DueDate     *time.Time
	TeamID      wire.ID
	AssignedTo  []wire.ID
}

// createPayload is the minimal write shape sent to POST /tasks.
type createPayload struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority,omitempty"`
	DueDate     string    `json:"dueDate,omitempty"`
	TeamID      wire.ID   `json:"teamId,omitempty"`
	AssignedTo  []wire.ID `json:"assignedTo"`
}

// Create posts a new task, appends the returned detailed task to the cache,
// and returns the thin copy. Invalid assignee ids are filtered from the
// payload; the status defaults to PENDING.
func (s *Store) Create(ctx context.Context, in CreateTaskInput) (ThinTask, error) {
	s.setLoading(true)
	defer s.clearLoading()

	if strings.TrimSpace(in.Title) == "" {
		return ThinTask{}, s.fail(ErrTitleRequired)
	}

	payload := createPayload{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		TeamID:      in.TeamID,
		AssignedTo:  wire.IDList(in.AssignedTo).Filter(),
	}
	if payload.Status == "" {
		payload.Status = StatusPending
	}
	if in.DueDate != nil {
		payload.DueDate = in.DueDate.UTC().Format(time.RFC3339)
	}

	var raw json.RawMessage
	if err := s.client.Post(ctx, "/tasks", payload, &raw); err != nil {
		return ThinTask{}, s.fail(fmt.Errorf("creating task: %w", err))
	}

	created, err := ParseTask(raw)
	if err != nil {
		return ThinTask{}, s.fail(fmt.Errorf("creating task: %w", err))
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, *created)
	s.lastErr = nil
	s.mu.Unlock()
	return created.Thin(), nil
}

// UpdateTaskInput holds optional fields for a partial task update.
type UpdateTaskInput struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	TeamID      *wire.ID   `json:"teamId,omitempty"`
}

// Update puts a partial update, replaces the cached entry by id, and returns
// the thin copy.
func (s *Store) Update(ctx context.Context, id wire.ID, in UpdateTaskInput) (ThinTask, error) {
	s.setLoading(true)
	defer s.clearLoading()

	if !id.Valid() {
		return ThinTask{}, s.fail(ErrInvalidTaskID)
	}

	var raw json.RawMessage
	if err := s.client.Put(ctx, "/tasks/"+id.String(), in, &raw); err != nil {
		return ThinTask{}, s.fail(fmt.Errorf("updating task %s: %w", id, err))
	}

	updated, err := ParseTask(raw)
	if err != nil {
		return ThinTask{}, s.fail(fmt.Errorf("updating task %s: %w", id, err))
	}

	s.replace(*updated)
	return updated.Thin(), nil
}

// Delete removes a task and drops it from the cache.
func (s *Store) Delete(ctx context.Context, id wire.ID) error {
	s.setLoading(true)
	defer s.clearLoading()

	if !id.Valid() {
		return s.fail(ErrInvalidTaskID)
	}
	if err := s.client.Delete(ctx, "/tasks/"+id.String(), nil); err != nil {
		return s.fail(fmt.Errorf("deleting task %s: %w", id, err))
	}

	s.mu.Lock()
	kept := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// Assign replaces a task's assignees. The task must already be cached, the id
// list must be non-empty, and — when membership enforcement is on and the task
// belongs to a team — every assignee must be a member of that team.
func (s *Store) Assign(ctx context.Context, id wire.ID, userIDs []wire.ID) (Task, error) {
	s.setLoading(true)
	defer s.clearLoading()

	userIDs = wire.IDList(userIDs).Filter()
	if len(userIDs) == 0 {
		return Task{}, s.fail(ErrNoAssignees)
	}

	current := s.find(id)
	if current == nil {
		return Task{}, s.fail(ErrTaskNotFound)
	}

	if s.opts.EnforceTeamMembership && s.members != nil {
		if teamID := current.EffectiveTeamID(); teamID.Valid() {
			for _, uid := range userIDs {
				if !s.members.TeamHasMember(ctx, teamID, uid) {
					return Task{}, s.fail(fmt.Errorf("%w: user %s, team %s", ErrAssigneeNotInTeam, uid, teamID))
				}
			}
		}
	}

	body := map[string][]wire.ID{"userIds": userIDs}
	var raw json.RawMessage
	if err := s.client.Put(ctx, "/tasks/"+id.String()+"/assign", body, &raw); err != nil {
		return Task{}, s.fail(fmt.Errorf("assigning task %s: %w", id, err))
	}

	updated, err := ParseTask(raw)
	if err != nil {
		return Task{}, s.fail(fmt.Errorf("assigning task %s: %w", id, err))
	}

	s.replace(*updated)
	return *updated, nil
}

// ForTeam returns the cached tasks belonging to the given team. Pure selector;
// no network call.
func (s *Store) ForTeam(teamID wire.ID) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for i := range s.tasks {
		if s.tasks[i].EffectiveTeamID() == teamID && teamID.Valid() {
			out = append(out, s.tasks[i])
		}
	}
	return copyTasks(out)
}

// ForUser returns the cached tasks assigned to the given user. Pure selector;
// no network call.
func (s *Store) ForUser(userID wire.ID) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for i := range s.tasks {
		for j := range s.tasks[i].AssignedTo {
			if s.tasks[i].AssignedTo[j].ID == userID && userID.Valid() {
				out = append(out, s.tasks[i])
				break
			}
		}
	}
	return copyTasks(out)
}

// ClearTeamRefs clears the team relation on every cached task referencing
// teamID and returns how many were touched. Called by the team store when a
// team is deleted.
func (s *Store) ClearTeamRefs(teamID wire.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := 0
	for i := range s.tasks {
		if s.tasks[i].EffectiveTeamID() == teamID {
			s.tasks[i].Team = nil
			s.tasks[i].TeamID = 0
			cleared++
		}
	}
	return cleared
}

func (s *Store) find(id wire.ID) *Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			t := s.tasks[i]
			return &t
		}
	}
	return nil
}

func (s *Store) replace(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
	for i := range s.tasks {
		if s.tasks[i].ID == t.ID {
			s.tasks[i] = t
			return
		}
	}
	s.tasks = append(s.tasks, t)
}

func (s *Store) fail(err error) error {
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

func copyTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	for i := range out {
		out[i].AssignedTo = append(AssigneeList(nil), out[i].AssignedTo...)
	}
	return out
}
