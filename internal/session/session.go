package session

import (
	"encoding/json"
	"time"
)

// ConnID identifies one transport connection. A participant has no identity
// beyond it; a reconnect is a new participant.
type ConnID string

// Role is the view a connection declares for itself. It is not an
// authentication mechanism.
type Role int

const (
	Audience Role = iota
	Stage
	Backstage
)

var roleNames = map[Role]string{
	Audience:  "audience",
	Stage:     "stage",
	Backstage: "backstage",
}

var roleFromName = map[string]Role{
	"audience":  Audience,
	"stage":     Stage,
	"backstage": Backstage,
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return "unknown"
}

// ParseRole maps a declared role name to a Role. Anything unrecognized is
// treated as audience.
func ParseRole(name string) Role {
	if r, ok := roleFromName[name]; ok {
		return r
	}
	return Audience
}

// Privileged reports whether the role belongs to a presenter view.
func (r Role) Privileged() bool {
	return r == Stage || r == Backstage
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}

// Participant is one audience member of a session.
type Participant struct {
	ID       ConnID    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Session is a read-only snapshot of a live session. The registry hands out
// copies; mutating one does not affect registry state.
type Session struct {
	Code         string        `json:"code"`
	HostID       ConnID        `json:"hostId"`
	CreatedAt    time.Time     `json:"createdAt"`
	Participants []Participant `json:"participants"`
}

// Clone returns a deep copy of the Session.
func (s *Session) Clone() *Session {
	c := *s
	if s.Participants != nil {
		c.Participants = make([]Participant, len(s.Participants))
		copy(c.Participants, s.Participants)
	}
	return &c
}

// Members returns every connection in the session's room, host first.
func (s *Session) Members() []ConnID {
	members := make([]ConnID, 0, len(s.Participants)+1)
	members = append(members, s.HostID)
	for _, p := range s.Participants {
		members = append(members, p.ID)
	}
	return members
}
