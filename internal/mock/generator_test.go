package mock

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/amplifyed/pulse/internal/config"
	"github.com/amplifyed/pulse/internal/hub"
	"github.com/amplifyed/pulse/internal/logging"
	"github.com/amplifyed/pulse/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardTransport struct{}

func (discardTransport) Deliver([]session.ConnID, string, any) {}

// startHub runs a real hub for the generator to drive.
func startHub(t *testing.T, clock clockwork.Clock) *hub.Hub {
	t.Helper()
	cfg := config.Default()
	h := hub.New(hub.OptionsFromConfig(cfg, clock, logging.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx, discardTransport{})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func TestGeneratorStartsSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := startHub(t, clock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := NewGenerator(h, Options{Participants: 5, Clock: clock, Logger: logging.Discard(), Seed: 7})
	require.NoError(t, gen.Start(ctx))
	require.NotEmpty(t, gen.Code())

	info, found, err := h.SessionInfo(ctx, gen.Code())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, info.Participants)
}

func TestGeneratorStepsProduceReactions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := startHub(t, clock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := NewGenerator(h, Options{Participants: 3, Interval: time.Hour, Clock: clock, Logger: logging.Discard(), Seed: 42})
	require.NoError(t, gen.Start(ctx))

	for i := 0; i < 40; i++ {
		clock.Advance(2 * time.Second)
		require.NoError(t, gen.Step(ctx))
	}

	info, _, err := h.SessionInfo(ctx, gen.Code())
	require.NoError(t, err)
	assert.Positive(t, info.Pulse.Count)
	assert.LessOrEqual(t, info.Pulse.Count, 3)
	assert.GreaterOrEqual(t, info.Pulse.Pulse, -1.0)
	assert.LessOrEqual(t, info.Pulse.Pulse, 1.0)
}

// recordingHub captures submitted events without running a hub.
type recordingHub struct {
	mu     sync.Mutex
	events []string
	values []float64
}

func (r *recordingHub) Connected(context.Context, session.ConnID) error { return nil }

func (r *recordingHub) Received(_ context.Context, _ session.ConnID, event string, data json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if event == hub.EvPulseUpdate {
		var body struct {
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(data, &body); err == nil {
			r.values = append(r.values, body.Value)
		}
	}
	return nil
}

func (r *recordingHub) SessionOf(context.Context, session.ConnID) (string, bool, error) {
	return "DEMO42", true, nil
}

func (r *recordingHub) BoardInfo(context.Context) (hub.BoardInfo, error) {
	return hub.BoardInfo{Questions: []hub.QuestionSummary{{ID: "q1"}}}, nil
}

func (r *recordingHub) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func TestGeneratorTicksOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recordingHub{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := NewGenerator(rec, Options{Participants: 2, Interval: time.Second, Clock: clock, Logger: logging.Discard(), Seed: 1})
	require.NoError(t, gen.Start(ctx))
	assert.Equal(t, 1, rec.count(hub.EvHostCreateSession))
	assert.Equal(t, 2, rec.count(hub.EvJoinSession))

	for i := 0; i < 3; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
		want := i + 1
		require.Eventually(t, func() bool { return rec.count(hub.EvPulseUpdate) >= want }, time.Second, 5*time.Millisecond)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, v := range rec.values {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
