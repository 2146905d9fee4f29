package team

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmarchal/taskdeck/internal/auth"
	"github.com/tmarchal/taskdeck/internal/wire"
)

// Team is the canonical team shape with members normalized to plain users.
type Team struct {
	ID          wire.ID    `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Members     MemberList `json:"members"`
	CreatedBy   wire.ID    `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// HasMember reports whether userID appears in the team's member list.
func (t *Team) HasMember(userID wire.ID) bool {
	for i := range t.Members {
		if t.Members[i].ID == userID {
			return true
		}
	}
	return false
}

// MemberList normalizes the two member wire shapes the backend emits: a plain
// user array, or wrapper objects carrying the user under a nested "user" key
// ({"id","userId","user":{...}}).
type MemberList []auth.User

func (l *MemberList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("%w: team members", wire.ErrUnknownEnvelope)
	}

	out := make([]auth.User, 0, len(raws))
	for _, raw := range raws {
		var wrapper struct {
			ID     wire.ID    `json:"id"`
			UserID wire.ID    `json:"userId"`
			User   *auth.User `json:"user"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return fmt.Errorf("%w: team member entry", wire.ErrUnknownEnvelope)
		}
		if wrapper.User != nil {
			u := *wrapper.User
			if !u.ID.Valid() && wrapper.UserID.Valid() {
				u.ID = wrapper.UserID
			}
			out = append(out, u)
			continue
		}

		var u auth.User
		if err := json.Unmarshal(raw, &u); err != nil || !u.ID.Valid() {
			return fmt.Errorf("%w: team member entry", wire.ErrUnknownEnvelope)
		}
		out = append(out, u)
	}
	*l = out
	return nil
}

// ParseTeamList normalizes the team collection response: a bare array,
// {"teams":[...]}, {"data":[...]}, or {"data":{"teams":[...]}}.
func ParseTeamList(data []byte) ([]Team, error) {
	var teams []Team
	if err := json.Unmarshal(data, &teams); err == nil {
		return teams, nil
	}

	var env struct {
		Data  json.RawMessage `json:"data"`
		Teams []Team          `json:"teams"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: team list", wire.ErrUnknownEnvelope)
	}
	if env.Teams != nil {
		return env.Teams, nil
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &teams); err == nil {
			return teams, nil
		}
		var inner struct {
			Teams []Team `json:"teams"`
		}
		if err := json.Unmarshal(env.Data, &inner); err == nil && inner.Teams != nil {
			return inner.Teams, nil
		}
	}
	return nil, fmt.Errorf("%w: team list", wire.ErrUnknownEnvelope)
}

// ParseTeam normalizes a single-team response: a bare object, {"team":{...}},
// or either nested under "data".
func ParseTeam(data []byte) (*Team, error) {
	var env struct {
		Team *Team           `json:"team"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err == nil {
		if env.Team != nil {
			return env.Team, nil
		}
		if len(env.Data) > 0 {
			if t, err := ParseTeam(env.Data); err == nil {
				return t, nil
			}
		}
	}

	var t Team
	if err := json.Unmarshal(data, &t); err == nil && t.ID.Valid() {
		return &t, nil
	}
	return nil, fmt.Errorf("%w: team", wire.ErrUnknownEnvelope)
}
