package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmarchal/taskdeck/internal/auth"
	"github.com/tmarchal/taskdeck/internal/team"
	"github.com/tmarchal/taskdeck/internal/wire"
)

// Status is a task's workflow state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusBlocked    Status = "BLOCKED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Priority is a task's priority level.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is the detailed task shape: relations embedded as full objects.
type Task struct {
	ID          wire.ID      `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      Status       `json:"status"`
	Priority    Priority     `json:"priority"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	AssignedTo  AssigneeList `json:"assignedTo"`
	TeamID      wire.ID      `json:"teamId,omitempty"`
	Team        *team.Team   `json:"team,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// EffectiveTeamID returns the task's team id whether the relation arrived
// embedded or id-only.
func (t *Task) EffectiveTeamID() wire.ID {
	if t.Team != nil && t.Team.ID.Valid() {
		return t.Team.ID
	}
	return t.TeamID
}

// Thin converts the task to its write-side shape: relations as id lists.
func (t *Task) Thin() ThinTask {
	ids := make([]wire.ID, 0, len(t.AssignedTo))
	for i := range t.AssignedTo {
		ids = append(ids, t.AssignedTo[i].ID)
	}
	return ThinTask{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		TeamID:      t.EffectiveTeamID(),
		AssignedTo:  ids,
	}
}

// ThinTask is the id-only task shape used for write payloads and returned to
// callers after mutations.
type ThinTask struct {
	ID          wire.ID    `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	TeamID      wire.ID    `json:"teamId,omitempty"`
	AssignedTo  []wire.ID  `json:"assignedTo"`
}

// AssigneeList normalizes the two assignee wire shapes: full user objects or
// bare ids (numbers or numeric strings). Id-only entries become users carrying
// only their id.
type AssigneeList []auth.User

func (l *AssigneeList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("%w: task assignees", wire.ErrUnknownEnvelope)
	}

	out := make([]auth.User, 0, len(raws))
	for _, raw := range raws {
		trimmed := string(raw)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			var u auth.User
			if err := json.Unmarshal(raw, &u); err != nil || !u.ID.Valid() {
				return fmt.Errorf("%w: task assignee entry", wire.ErrUnknownEnvelope)
			}
			out = append(out, u)
			continue
		}

		var id wire.ID
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("%w: task assignee entry", wire.ErrUnknownEnvelope)
		}
		if id.Valid() {
			out = append(out, auth.User{ID: id})
		}
	}
	*l = out
	return nil
}

// ParseTaskList unwraps the collection envelope the backend uses for
// GET /tasks: {"data":{"data":{"tasks":[...]}}}.
func ParseTaskList(data []byte) ([]Task, error) {
	var env struct {
		Data struct {
			Data struct {
				Tasks []Task `json:"tasks"`
			} `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: task list", wire.ErrUnknownEnvelope)
	}
	if env.Data.Data.Tasks == nil {
		return nil, fmt.Errorf("%w: task list", wire.ErrUnknownEnvelope)
	}
	return env.Data.Data.Tasks, nil
}

// ParseTask normalizes a single-task response: a bare object, {"task":{...}},
// or either nested under "data".
func ParseTask(data []byte) (*Task, error) {
	var env struct {
		Task *Task           `json:"task"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err == nil {
		if env.Task != nil {
			return env.Task, nil
		}
		if len(env.Data) > 0 {
			if t, err := ParseTask(env.Data); err == nil {
				return t, nil
			}
		}
	}

	var t Task
	if err := json.Unmarshal(data, &t); err == nil && t.ID.Valid() {
		return &t, nil
	}
	return nil, fmt.Errorf("%w: task", wire.ErrUnknownEnvelope)
}
