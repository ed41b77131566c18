// Package mock simulates a live audience so the server can be demoed without
// real clients. Synthetic connections go through the hub exactly like
// websocket clients do; they simply have no socket to deliver to.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/amplifyed/pulse/internal/hub"
	"github.com/amplifyed/pulse/internal/pulse"
	"github.com/amplifyed/pulse/internal/session"
	"github.com/jonboulle/clockwork"
)

// Hub is the part of the broadcast coordinator the generator drives.
type Hub interface {
	Connected(ctx context.Context, conn session.ConnID) error
	Received(ctx context.Context, conn session.ConnID, event string, data json.RawMessage) error
	SessionOf(ctx context.Context, conn session.ConnID) (string, bool, error)
	BoardInfo(ctx context.Context) (hub.BoardInfo, error)
}

var sampleQuestions = []string{
	"Can you go back to the previous slide?",
	"How does this scale past a single room?",
	"Will the slides be shared afterwards?",
	"What's next?",
	"Is there a recording?",
	"How would this work for remote attendees?",
}

var sampleComments = []string{
	"Great point about latency",
	"Loving the live demo",
	"Could you zoom in a bit?",
	"+1 to the previous question",
}

type Options struct {
	Participants int
	Interval     time.Duration
	Clock        clockwork.Clock
	Logger       *slog.Logger
	// Seed fixes the random sequence. Zero seeds from the clock.
	Seed int64
}

type Generator struct {
	hub          Hub
	clock        clockwork.Clock
	logger       *slog.Logger
	rng          *rand.Rand
	interval     time.Duration
	participants int

	host     session.ConnID
	audience []session.ConnID
	code     string
	tick     int
}

func NewGenerator(h Hub, opts Options) *Generator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = 1500 * time.Millisecond
	}
	if opts.Participants < 1 {
		opts.Participants = 1
	}
	seed := opts.Seed
	if seed == 0 {
		seed = opts.Clock.Now().UnixNano()
	}
	return &Generator{
		hub:          h,
		clock:        opts.Clock,
		logger:       opts.Logger,
		rng:          rand.New(rand.NewSource(seed)),
		interval:     opts.Interval,
		participants: opts.Participants,
		host:         "demo-host",
	}
}

// Code is the demo session's code, known once Start has returned.
func (g *Generator) Code() string {
	return g.code
}

// Start opens the demo session, joins the synthetic audience and begins
// ticking in the background until ctx is done.
func (g *Generator) Start(ctx context.Context) error {
	if err := g.hub.Connected(ctx, g.host); err != nil {
		return err
	}
	if err := g.submit(ctx, g.host, hub.EvHostCreateSession, nil); err != nil {
		return err
	}

	code, ok, err := g.hub.SessionOf(ctx, g.host)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("demo session was not created")
	}
	g.code = code

	for i := 1; i <= g.participants; i++ {
		id := session.ConnID(fmt.Sprintf("demo-%02d", i))
		if err := g.hub.Connected(ctx, id); err != nil {
			return err
		}
		if err := g.submit(ctx, id, hub.EvJoinSession, map[string]string{"code": code}); err != nil {
			return err
		}
		g.audience = append(g.audience, id)
	}
	g.logger.Info("demo audience started", "session", code, "participants", len(g.audience))

	go g.run(ctx)
	return nil
}

func (g *Generator) run(ctx context.Context) {
	ticker := g.clock.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := g.Step(ctx); err != nil {
				g.logger.Debug("demo audience stopped", "error", err)
				return
			}
		}
	}
}

// Step advances the simulation by one tick: one reaction, and now and then
// a question, a comment or a vote.
func (g *Generator) Step(ctx context.Context) error {
	g.tick++
	who := g.audience[g.rng.Intn(len(g.audience))]

	if err := g.submit(ctx, who, hub.EvPulseUpdate, map[string]float64{"value": g.mood()}); err != nil {
		return err
	}

	switch roll := g.rng.Float64(); {
	case roll < 0.08:
		text := sampleQuestions[g.rng.Intn(len(sampleQuestions))]
		return g.submit(ctx, who, hub.EvSubmitQuestion, map[string]string{"text": text})
	case roll < 0.16:
		text := sampleComments[g.rng.Intn(len(sampleComments))]
		return g.submit(ctx, who, hub.EvNewMessage, map[string]string{"sessionCode": g.code, "text": text})
	case roll < 0.40:
		return g.vote(ctx, who)
	}
	return nil
}

// mood is a slow sine drift with noise, clamped to the reaction range.
func (g *Generator) mood() float64 {
	drift := 0.6 * math.Sin(float64(g.tick)/12)
	noise := g.rng.NormFloat64() * 0.25
	return math.Round(pulse.Clamp(drift+noise)*100) / 100
}

func (g *Generator) vote(ctx context.Context, who session.ConnID) error {
	board, err := g.hub.BoardInfo(ctx)
	if err != nil {
		return err
	}
	if len(board.Questions) == 0 {
		return nil
	}
	q := board.Questions[g.rng.Intn(len(board.Questions))]
	delta := 1
	if g.rng.Float64() < 0.25 {
		delta = -1
	}
	return g.submit(ctx, who, hub.EvVoteQuestion, map[string]any{"id": q.ID, "delta": delta})
}

func (g *Generator) submit(ctx context.Context, conn session.ConnID, event string, payload any) error {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		data = encoded
	}
	return g.hub.Received(ctx, conn, event, data)
}
