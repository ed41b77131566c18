// Package ratelimit enforces per-participant cooldowns on reactions and
// replies.
package ratelimit

import (
	"time"

	"github.com/amplifyed/pulse/internal/session"
	"golang.org/x/time/rate"
)

// Kind is the class of action being throttled. Each kind has its own
// cooldown and its own limiter per participant.
type Kind int

const (
	Reaction Kind = iota
	Reply
)

func (k Kind) String() string {
	switch k {
	case Reaction:
		return "reaction"
	case Reply:
		return "reply"
	default:
		return "unknown"
	}
}

// Limiter allows an action when at least the kind's cooldown has passed
// since the participant's last allowed action of that kind. Denied attempts
// do not push the window back. It is not safe for concurrent use.
type Limiter struct {
	cooldowns map[Kind]time.Duration
	limiters  map[session.ConnID]map[Kind]*rate.Limiter
}

func New(cooldowns map[Kind]time.Duration) *Limiter {
	c := make(map[Kind]time.Duration, len(cooldowns))
	for k, d := range cooldowns {
		c[k] = d
	}
	return &Limiter{
		cooldowns: c,
		limiters:  make(map[session.ConnID]map[Kind]*rate.Limiter),
	}
}

// Cooldown returns the configured interval for kind. Zero means unlimited.
func (l *Limiter) Cooldown(kind Kind) time.Duration {
	return l.cooldowns[kind]
}

// Allow reports whether conn may perform kind at now and, if so, records it.
func (l *Limiter) Allow(conn session.ConnID, kind Kind, now time.Time) bool {
	cooldown := l.cooldowns[kind]
	if cooldown <= 0 {
		return true
	}

	perConn, ok := l.limiters[conn]
	if !ok {
		perConn = make(map[Kind]*rate.Limiter)
		l.limiters[conn] = perConn
	}
	lim, ok := perConn[kind]
	if !ok {
		// One token, refilled once per cooldown: a single action per window
		// with no bursting.
		lim = rate.NewLimiter(rate.Every(cooldown), 1)
		perConn[kind] = lim
	}
	return lim.AllowN(now, 1)
}

// Forget drops all state for conn. Called on disconnect.
func (l *Limiter) Forget(conn session.ConnID) {
	delete(l.limiters, conn)
}

// Tracked returns the number of connections with limiter state.
func (l *Limiter) Tracked() int {
	return len(l.limiters)
}
