package app

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ---------- Server payloads ----------

// envelope wraps every server response.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

// errorText renders the error field, which the server sends either as a
// string or as an object.
func (e envelope) errorText() string {
	if len(e.Error) == 0 || string(e.Error) == "null" {
		return "unknown error"
	}
	var s string
	if err := json.Unmarshal(e.Error, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(e.Error))
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Session is the result of a successful login.
type Session struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
}

func (s *Session) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if v, ok := m["token"].(string); ok {
		s.Token = v
	}
	// user_id as number or string
	switch x := m["user_id"].(type) {
	case float64:
		s.UserID = int64(x)
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			s.UserID = n
		}
	}
	return nil
}

// RawObject is an object as listed by the server, keyed by property code.
type RawObject = map[string]any
