// Package pulse aggregates per-participant reactions into a session's pulse.
//
// The engine keeps only the latest value per participant; it is not a time
// series. Trend lines are built by clients from repeated snapshots.
package pulse

import (
	"errors"
	"math"

	"github.com/amplifyed/pulse/internal/session"
)

// ErrInvalidValue is returned for reactions that are not finite numbers.
var ErrInvalidValue = errors.New("reaction value must be a finite number")

const (
	MinValue = -1.0
	MaxValue = 1.0
)

// Breakdown counts current reactions by sign.
type Breakdown struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Snapshot is the derived pulse of one scope at a point in time.
type Snapshot struct {
	Pulse     float64   `json:"pulse"`
	Count     int       `json:"count"`
	Breakdown Breakdown `json:"breakdown"`
}

// Engine holds the current reaction of each participant, grouped by scope
// (a session code, or "" for the board). It is not safe for concurrent use.
type Engine struct {
	scopes map[string]map[session.ConnID]float64
}

func NewEngine() *Engine {
	return &Engine{scopes: make(map[string]map[session.ConnID]float64)}
}

// Clamp limits v to [MinValue, MaxValue].
func Clamp(v float64) float64 {
	return math.Max(MinValue, math.Min(MaxValue, v))
}

// Valid reports whether v can be stored as a reaction.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Set stores the participant's reaction, overwriting any previous one. The
// caller is responsible for rate limiting.
func (e *Engine) Set(scope string, conn session.ConnID, raw float64) error {
	if !Valid(raw) {
		return ErrInvalidValue
	}
	reactions, ok := e.scopes[scope]
	if !ok {
		reactions = make(map[session.ConnID]float64)
		e.scopes[scope] = reactions
	}
	reactions[conn] = Clamp(raw)
	return nil
}

// Clear removes the participant's reaction and reports whether one existed.
// An emptied scope is pruned.
func (e *Engine) Clear(scope string, conn session.ConnID) bool {
	reactions, ok := e.scopes[scope]
	if !ok {
		return false
	}
	if _, ok := reactions[conn]; !ok {
		return false
	}
	delete(reactions, conn)
	if len(reactions) == 0 {
		delete(e.scopes, scope)
	}
	return true
}

// ClearScope drops every reaction in scope.
func (e *Engine) ClearScope(scope string) {
	delete(e.scopes, scope)
}

// Value returns the participant's current reaction, if any.
func (e *Engine) Value(scope string, conn session.ConnID) (float64, bool) {
	v, ok := e.scopes[scope][conn]
	return v, ok
}

// Snapshot computes the mean of the current reactions in scope. The pulse is
// recomputed from scratch on every call.
func (e *Engine) Snapshot(scope string) Snapshot {
	reactions := e.scopes[scope]
	if len(reactions) == 0 {
		return Snapshot{}
	}

	var snap Snapshot
	sum := 0.0
	for _, v := range reactions {
		sum += v
		switch {
		case v > 0:
			snap.Breakdown.Positive++
		case v < 0:
			snap.Breakdown.Negative++
		default:
			snap.Breakdown.Neutral++
		}
	}
	snap.Count = len(reactions)
	snap.Pulse = sum / float64(snap.Count)
	return snap
}

// Scopes returns the number of scopes holding at least one reaction.
func (e *Engine) Scopes() int {
	return len(e.scopes)
}
