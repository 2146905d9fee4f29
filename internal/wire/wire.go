// Package wire holds the decoding primitives shared by every entity's
// normalization boundary.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownEnvelope is returned when a response body matches none of the
// known envelope shapes for an entity.
var ErrUnknownEnvelope = errors.New("unrecognized response envelope")

// ID is a canonical numeric entity identifier. The backend is inconsistent
// about whether ids arrive as JSON numbers or numeric strings; ID accepts
// both and always marshals as a number. Zero means "unset".
type ID int64

// Valid reports whether the ID refers to an entity.
func (id ID) Valid() bool {
	return id > 0
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a decimal string into an ID. Non-numeric input is an error,
// never a guess.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return ID(n), nil
}

// UnmarshalJSON accepts a JSON number, a numeric string, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		parsed, err := ParseID(str)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s", s)
	}
	*id = ID(n)
	return nil
}

// IDList decodes a JSON array of IDs in either numeric or string form.
type IDList []ID

// Filter returns the valid (positive) ids, dropping zero and negative entries.
func (l IDList) Filter() []ID {
	out := make([]ID, 0, len(l))
	for _, id := range l {
		if id.Valid() {
			out = append(out, id)
		}
	}
	return out
}
