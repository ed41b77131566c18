package hub

import (
	"sort"

	"github.com/amplifyed/pulse/internal/session"
)

type TargetKind int

const (
	TargetConn  TargetKind = iota // a single connection
	TargetConns                   // an explicit list, resolved when the event was produced
	TargetRoom                    // host and participants of a session
	TargetHost                    // the session host only
	TargetAll                     // every connected client
)

type Target struct {
	Kind  TargetKind
	Conn  session.ConnID
	Conns []session.ConnID
	Code  string
}

// Outbound is one event a handler wants delivered. Room, host and
// all-client targets are resolved after the handler returns, so they see
// the state the handler left behind.
type Outbound struct {
	Target  Target
	Event   string
	Payload any
}

// Transport delivers encoded events to connections. Deliver must not block;
// connections it no longer knows about are skipped.
type Transport interface {
	Deliver(conns []session.ConnID, event string, payload any)
}

func toConn(conn session.ConnID, event string, payload any) Outbound {
	return Outbound{Target: Target{Kind: TargetConn, Conn: conn}, Event: event, Payload: payload}
}

func toConns(conns []session.ConnID, event string, payload any) Outbound {
	return Outbound{Target: Target{Kind: TargetConns, Conns: conns}, Event: event, Payload: payload}
}

func toRoom(code, event string, payload any) Outbound {
	return Outbound{Target: Target{Kind: TargetRoom, Code: code}, Event: event, Payload: payload}
}

func toHost(code, event string, payload any) Outbound {
	return Outbound{Target: Target{Kind: TargetHost, Code: code}, Event: event, Payload: payload}
}

func toAll(event string, payload any) Outbound {
	return Outbound{Target: Target{Kind: TargetAll}, Event: event, Payload: payload}
}

// Recipients resolves a target against the hub's current state.
func (h *Hub) Recipients(t Target) []session.ConnID {
	switch t.Kind {
	case TargetConn:
		return []session.ConnID{t.Conn}
	case TargetConns:
		return append([]session.ConnID(nil), t.Conns...)
	case TargetRoom:
		return h.registry.Members(t.Code)
	case TargetHost:
		if s, ok := h.registry.Resolve(t.Code); ok {
			return []session.ConnID{s.HostID}
		}
		return nil
	case TargetAll:
		all := make([]session.ConnID, 0, len(h.conns))
		for id := range h.conns {
			all = append(all, id)
		}
		sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
		return all
	default:
		return nil
	}
}
