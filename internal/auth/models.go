package auth

import (
	"encoding/json"
	"fmt"

	"github.com/tmarchal/taskdeck/internal/wire"
)

// Role is a user's global role.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// User is the canonical user shape. The authenticated user and every directory
// entry share it.
type User struct {
	ID      wire.ID   `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Role    Role      `json:"role"`
	Avatar  string    `json:"avatar,omitempty"`
	Bio     string    `json:"bio,omitempty"`
	TeamIDs []wire.ID `json:"teamIds,omitempty"`
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ParseDirectory normalizes the user directory response. The backend has been
// observed returning four envelope shapes: a bare array, {"data":[...]},
// {"users":[...]}, and {"data":{"users":[...]}}. Anything else is rejected.
func ParseDirectory(data []byte) ([]User, error) {
	var users []User
	if err := json.Unmarshal(data, &users); err == nil {
		return users, nil
	}

	var env struct {
		Data  json.RawMessage `json:"data"`
		Users []User          `json:"users"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: user directory", wire.ErrUnknownEnvelope)
	}
	if env.Users != nil {
		return env.Users, nil
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &users); err == nil {
			return users, nil
		}
		var inner struct {
			Users []User `json:"users"`
		}
		if err := json.Unmarshal(env.Data, &inner); err == nil && inner.Users != nil {
			return inner.Users, nil
		}
	}
	return nil, fmt.Errorf("%w: user directory", wire.ErrUnknownEnvelope)
}

// ParseCurrentUser normalizes the /auth/me response: either {"user":{...}} or
// a bare user object.
func ParseCurrentUser(data []byte) (*User, error) {
	var env struct {
		User *User           `json:"user"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err == nil {
		if env.User != nil {
			return env.User, nil
		}
		if len(env.Data) > 0 {
			var inner struct {
				User *User `json:"user"`
			}
			if err := json.Unmarshal(env.Data, &inner); err == nil && inner.User != nil {
				return inner.User, nil
			}
		}
	}

	var u User
	if err := json.Unmarshal(data, &u); err == nil && u.ID.Valid() {
		return &u, nil
	}
	return nil, fmt.Errorf("%w: current user", wire.ErrUnknownEnvelope)
}

// ParseLoginToken extracts the bearer token from a login response. The token
// arrives either at the top level ({"token":...}) or nested under "data".
func ParseLoginToken(data []byte) (string, error) {
	var env struct {
		Token string `json:"token"`
		Data  struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: login response", wire.ErrUnknownEnvelope)
	}
	if env.Token != "" {
		return env.Token, nil
	}
	if env.Data.Token != "" {
		return env.Data.Token, nil
	}
	return "", fmt.Errorf("%w: login response carries no token", wire.ErrUnknownEnvelope)
}
