package session

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrInSession     = errors.New("connection already belongs to another session")
	ErrCodeExhausted = errors.New("no free session code found")
)

// maxCodeAttempts bounds the collision retry loop so a saturated code space
// fails loudly instead of spinning.
const maxCodeAttempts = 1000

type member struct {
	name     string
	seq      int
	joinedAt time.Time
}

type record struct {
	code       string
	host       ConnID
	createdAt  time.Time
	members    map[ConnID]*member
	nextNumber int
}

func (r *record) snapshot() *Session {
	s := &Session{
		Code:         r.code,
		HostID:       r.host,
		CreatedAt:    r.createdAt,
		Participants: make([]Participant, 0, len(r.members)),
	}
	ids := make([]ConnID, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.members[ids[i]].seq < r.members[ids[j]].seq })
	for _, id := range ids {
		m := r.members[id]
		s.Participants = append(s.Participants, Participant{ID: id, Name: m.name, JoinedAt: m.joinedAt})
	}
	return s
}

// Registry is the single source of truth for code to session resolution.
// It is not safe for concurrent use; the hub owns it from one goroutine.
type Registry struct {
	codes    CodeSource
	clock    clockwork.Clock
	sessions map[string]*record
	byConn   map[ConnID]string
}

func NewRegistry(codes CodeSource, clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		codes:    codes,
		clock:    clock,
		sessions: make(map[string]*record),
		byConn:   make(map[ConnID]string),
	}
}

// Create opens a new session hosted by host and returns its snapshot.
func (r *Registry) Create(host ConnID) (*Session, error) {
	if _, ok := r.byConn[host]; ok {
		return nil, ErrInSession
	}

	code, err := r.freeCode()
	if err != nil {
		return nil, err
	}

	rec := &record{
		code:       code,
		host:       host,
		createdAt:  r.clock.Now(),
		members:    make(map[ConnID]*member),
		nextNumber: 1,
	}
	r.sessions[code] = rec
	r.byConn[host] = code
	return rec.snapshot(), nil
}

func (r *Registry) freeCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := r.codes()
		if err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		code = NormalizeCode(code)
		if _, taken := r.sessions[code]; !taken && code != "" {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// Resolve looks a session up by a user-typed code.
func (r *Registry) Resolve(code string) (*Session, bool) {
	rec, ok := r.sessions[NormalizeCode(code)]
	if !ok {
		return nil, false
	}
	return rec.snapshot(), true
}

// Join adds conn to the session identified by code and returns the session
// snapshot and the participant's display name. Joining a session the
// connection already belongs to is idempotent.
func (r *Registry) Join(code string, conn ConnID) (*Session, string, error) {
	normalized := NormalizeCode(code)
	rec, ok := r.sessions[normalized]
	if !ok {
		return nil, "", ErrNotFound
	}
	if current, ok := r.byConn[conn]; ok && current != normalized {
		return nil, "", ErrInSession
	}

	if conn == rec.host {
		return rec.snapshot(), "Host", nil
	}
	if m, ok := rec.members[conn]; ok {
		return rec.snapshot(), m.name, nil
	}

	m := &member{
		name:     fmt.Sprintf("Participant %d", rec.nextNumber),
		seq:      rec.nextNumber,
		joinedAt: r.clock.Now(),
	}
	rec.nextNumber++
	rec.members[conn] = m
	r.byConn[conn] = normalized
	return rec.snapshot(), m.name, nil
}

// Leave removes conn from whatever session it belongs to. When conn hosted
// the session, the session ends: every participant is evicted and the code
// stops resolving. The boolean is false when conn was in no session.
func (r *Registry) Leave(conn ConnID) (Departure, bool) {
	code, ok := r.byConn[conn]
	if !ok {
		return Departure{}, false
	}
	delete(r.byConn, conn)

	rec, ok := r.sessions[code]
	if !ok {
		return Departure{}, false
	}

	d := Departure{Code: code, Host: rec.host}
	if conn != rec.host {
		delete(rec.members, conn)
		d.Remaining = len(rec.members)
		return d, true
	}

	d.WasHost = true
	d.Ended = true
	for _, p := range rec.snapshot().Participants {
		d.Evicted = append(d.Evicted, p.ID)
		delete(r.byConn, p.ID)
	}
	delete(r.sessions, code)
	return d, true
}

// SessionOf returns the code of the session conn belongs to, as host or
// participant.
func (r *Registry) SessionOf(conn ConnID) (string, bool) {
	code, ok := r.byConn[conn]
	return code, ok
}

// IsHost reports whether conn hosts the session identified by code.
func (r *Registry) IsHost(code string, conn ConnID) bool {
	rec, ok := r.sessions[NormalizeCode(code)]
	return ok && rec.host == conn
}

// IsMember reports whether conn is the host or a participant of code.
func (r *Registry) IsMember(code string, conn ConnID) bool {
	rec, ok := r.sessions[NormalizeCode(code)]
	if !ok {
		return false
	}
	if rec.host == conn {
		return true
	}
	_, ok = rec.members[conn]
	return ok
}

// NameOf returns the display name conn uses in the session.
func (r *Registry) NameOf(code string, conn ConnID) (string, bool) {
	rec, ok := r.sessions[NormalizeCode(code)]
	if !ok {
		return "", false
	}
	if rec.host == conn {
		return "Host", true
	}
	if m, ok := rec.members[conn]; ok {
		return m.name, true
	}
	return "", false
}

// ParticipantCount returns the number of participants in code, host excluded.
func (r *Registry) ParticipantCount(code string) int {
	rec, ok := r.sessions[NormalizeCode(code)]
	if !ok {
		return 0
	}
	return len(rec.members)
}

// Members returns the connections in the session's room, host first.
func (r *Registry) Members(code string) []ConnID {
	rec, ok := r.sessions[NormalizeCode(code)]
	if !ok {
		return nil
	}
	return rec.snapshot().Members()
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	return len(r.sessions)
}

// List returns snapshots of every open session ordered by creation time.
func (r *Registry) List() []*Session {
	result := make([]*Session, 0, len(r.sessions))
	for _, rec := range r.sessions {
		result = append(result, rec.snapshot())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Code < result[j].Code
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}
