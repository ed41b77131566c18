// Package hub is the broadcast coordinator. It owns the session registry,
// pulse engine, discussion ledger and rate limiter, turns inbound client
// events into mutations on them, and emits the resulting outbound events.
//
// All state is owned by a single goroutine (Run). Transports feed it through
// Connected, Received and Disconnected; the handlers themselves never block
// and never yield, so each one is atomic with respect to the others.
package hub

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/amplifyed/pulse/internal/config"
	"github.com/amplifyed/pulse/internal/discussion"
	"github.com/amplifyed/pulse/internal/metrics"
	"github.com/amplifyed/pulse/internal/pulse"
	"github.com/amplifyed/pulse/internal/ratelimit"
	"github.com/amplifyed/pulse/internal/session"
	"github.com/jonboulle/clockwork"
)

// boardScope keys the flat, session-less pulse and question board.
const boardScope = discussion.BoardScope

const defaultQueueSize = 1024

type connState struct {
	role session.Role
}

type Options struct {
	Registry  *session.Registry
	Pulse     *pulse.Engine
	Ledger    *discussion.Ledger
	Limiter   *ratelimit.Limiter
	Clock     clockwork.Clock
	Logger    *slog.Logger
	QueueSize int
}

// OptionsFromConfig builds hub collaborators from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) Options {
	return Options{
		Registry: session.NewRegistry(session.RandomCodes(cfg.Session.CodeAlphabet, cfg.Session.CodeLength), clock),
		Pulse:    pulse.NewEngine(),
		Ledger:   discussion.NewLedger(clock),
		Limiter: ratelimit.New(map[ratelimit.Kind]time.Duration{
			ratelimit.Reaction: cfg.Limits.ReactionCooldown,
			ratelimit.Reply:    cfg.Limits.ReplyCooldown,
		}),
		Clock:  clock,
		Logger: logger,
	}
}

type Hub struct {
	registry *session.Registry
	pulse    *pulse.Engine
	ledger   *discussion.Ledger
	limiter  *ratelimit.Limiter
	clock    clockwork.Clock
	logger   *slog.Logger

	conns   map[session.ConnID]*connState
	inbox   chan inbound
	stopped chan struct{}
}

// New creates a hub. Missing collaborators are replaced with defaults.
func New(opts Options) *Hub {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil || opts.Pulse == nil || opts.Ledger == nil || opts.Limiter == nil {
		def := OptionsFromConfig(config.Default(), opts.Clock, opts.Logger)
		if opts.Registry == nil {
			opts.Registry = def.Registry
		}
		if opts.Pulse == nil {
			opts.Pulse = def.Pulse
		}
		if opts.Ledger == nil {
			opts.Ledger = def.Ledger
		}
		if opts.Limiter == nil {
			opts.Limiter = def.Limiter
		}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	return &Hub{
		registry: opts.Registry,
		pulse:    opts.Pulse,
		ledger:   opts.Ledger,
		limiter:  opts.Limiter,
		clock:    opts.Clock,
		logger:   opts.Logger,
		conns:    make(map[session.ConnID]*connState),
		inbox:    make(chan inbound, opts.QueueSize),
		stopped:  make(chan struct{}),
	}
}

// request is one inbound client event as seen by a handler.
type request struct {
	Conn  session.ConnID
	Event string
	Data  json.RawMessage
}

type handler func(h *Hub, req request) []Outbound

var handlers = map[string]handler{
	EvRegisterRole:         handleRegisterRole,
	EvHostCreateSession:    handleCreateSession,
	EvStageRequestSession:  handleCreateSession,
	EvJoinSession:          handleJoinSession,
	EvLeaveSession:         handleLeaveSession,
	EvPulseUpdate:          handleReaction,
	EvReaction:             handleReaction,
	EvNewMessage:           handleNewMessage,
	EvVote:                 handleVote,
	EvMarkAnswered:         handleMarkAnswered,
	EvSubmitQuestion:       handleSubmitQuestion,
	EvVoteQuestion:         handleVoteQuestion,
	EvAddReply:             handleAddReply,
	EvMarkQuestionAnswered: handleMarkQuestionAnswered,
}

// Dispatch runs the handler for event and returns the events to deliver.
// It must only be called from the goroutine that owns the hub (Run, or a
// test driving the hub directly).
func (h *Hub) Dispatch(conn session.ConnID, event string, data json.RawMessage) []Outbound {
	handle, ok := handlers[event]
	if !ok {
		h.logger.Debug("unknown event", "event", event, "conn", conn)
		metrics.EventsTotal.WithLabelValues("unknown", metrics.OutcomeIgnored).Inc()
		return nil
	}

	out := handle(h, request{Conn: conn, Event: event, Data: data})
	metrics.EventsTotal.WithLabelValues(event, outcomeOf(out)).Inc()
	return out
}

// OnConnect registers a new connection and returns the board snapshot it
// should start from.
func (h *Hub) OnConnect(conn session.ConnID) []Outbound {
	if _, ok := h.conns[conn]; !ok {
		h.conns[conn] = &connState{role: session.Audience}
	}

	snap := h.pulse.Snapshot(boardScope)
	return []Outbound{
		toConn(conn, EvPulseData, pulsePayload(snap)),
		toConn(conn, EvParticipantCount, CountPayload{Count: snap.Count}),
		toConn(conn, EvQuestionsUpdate, QuestionsPayload{Questions: h.ledger.Threads(boardScope)}),
	}
}

// OnDisconnect cleans up after a connection: it leaves its session (ending
// the session if it was the host), clears its board reaction and forgets its
// rate limits.
func (h *Hub) OnDisconnect(conn session.ConnID) []Outbound {
	out := h.leave(conn)
	if h.pulse.Clear(boardScope, conn) {
		out = append(out, h.pulseState(boardScope)...)
	}
	h.limiter.Forget(conn)
	delete(h.conns, conn)
	return out
}

func (h *Hub) roleOf(conn session.ConnID) session.Role {
	if st, ok := h.conns[conn]; ok {
		return st.role
	}
	return session.Audience
}

// leave removes conn from its session and reports the consequences to the
// room. A departing host ends the session for everyone.
func (h *Hub) leave(conn session.ConnID) []Outbound {
	d, ok := h.registry.Leave(conn)
	if !ok {
		return nil
	}
	log := h.logger.With("session", d.Code, "conn", conn)

	if d.Ended {
		h.pulse.ClearScope(d.Code)
		h.ledger.DropScope(d.Code)
		metrics.SessionsEnded.Inc()
		metrics.SessionsActive.Set(float64(h.registry.Count()))
		log.Info("session ended", "evicted", len(d.Evicted))

		recipients := append([]session.ConnID{d.Host}, d.Evicted...)
		return []Outbound{toConns(recipients, EvSessionEnded, nil)}
	}

	h.pulse.Clear(d.Code, conn)
	log.Info("participant left", "remaining", d.Remaining)
	out := h.pulseState(d.Code)
	return append(out, toHost(d.Code, EvParticipantLeft, CountPayload{Count: d.Remaining}))
}

func pulsePayload(snap pulse.Snapshot) PulsePayload {
	return PulsePayload{CurrentPulse: snap.Pulse, Reactions: snap.Count, Breakdown: snap.Breakdown}
}

// pulseState broadcasts the current pulse and participant count of scope.
// Sessions count their participants; the board counts active reactions.
func (h *Hub) pulseState(scope string) []Outbound {
	snap := h.pulse.Snapshot(scope)
	if scope == boardScope {
		return []Outbound{
			toAll(EvPulseData, pulsePayload(snap)),
			toAll(EvParticipantCount, CountPayload{Count: snap.Count}),
		}
	}
	return []Outbound{
		toRoom(scope, EvPulseData, pulsePayload(snap)),
		toRoom(scope, EvParticipantCount, CountPayload{Count: h.registry.ParticipantCount(scope)}),
	}
}

func outcomeOf(out []Outbound) string {
	for _, o := range out {
		switch o.Event {
		case EvSessionNotFound, EvPostNotFound:
			return metrics.OutcomeNotFound
		case EvValidationError:
			return metrics.OutcomeInvalid
		case EvReactionLimit, EvReplyLimit:
			return metrics.OutcomeRateLimited
		}
	}
	return metrics.OutcomeOK
}
