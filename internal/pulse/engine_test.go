package pulse

import (
	"math"
	"math/rand"
	"testing"

	"github.com/amplifyed/pulse/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEmpty(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, Snapshot{}, e.Snapshot("7K4M9P"))
}

func TestSetAndSnapshot(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Set("S", "a", 1))
	require.NoError(t, e.Set("S", "b", -1))
	require.NoError(t, e.Set("S", "c", 0))

	snap := e.Snapshot("S")
	assert.Equal(t, 3, snap.Count)
	assert.InDelta(t, 0, snap.Pulse, 1e-12)
	assert.Equal(t, Breakdown{Positive: 1, Neutral: 1, Negative: 1}, snap.Breakdown)
}

func TestSetOverwrites(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Set("S", "a", 1))
	require.NoError(t, e.Set("S", "a", 0.5))

	snap := e.Snapshot("S")
	assert.Equal(t, 1, snap.Count)
	assert.InDelta(t, 0.5, snap.Pulse, 1e-12)
}

func TestSetClamps(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Set("S", "a", 7))
	require.NoError(t, e.Set("S", "b", -3.5))

	v, ok := e.Value("S", "a")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, _ = e.Value("S", "b")
	assert.Equal(t, -1.0, v)
}

func TestSetRejectsNonFinite(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Set("S", "a", 0.25))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.ErrorIs(t, e.Set("S", "a", v), ErrInvalidValue)
	}

	got, _ := e.Value("S", "a")
	assert.Equal(t, 0.25, got, "rejected values must not overwrite the stored reaction")
}

func TestClear(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Set("S", "a", 1))
	require.NoError(t, e.Set("S", "b", -1))

	assert.True(t, e.Clear("S", "b"))
	assert.False(t, e.Clear("S", "b"))
	assert.False(t, e.Clear("other", "a"))

	snap := e.Snapshot("S")
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, 1.0, snap.Pulse)
}

func TestClearPrunesEmptyScope(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Set("S", "a", 1))
	assert.Equal(t, 1, e.Scopes())

	e.Clear("S", "a")
	assert.Equal(t, 0, e.Scopes())
}

func TestClearScope(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Set("S", "a", 1))
	require.NoError(t, e.Set("T", "a", -1))

	e.ClearScope("S")
	assert.Equal(t, Snapshot{}, e.Snapshot("S"))
	assert.Equal(t, 1, e.Snapshot("T").Count)
}

func TestScopesAreIndependent(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Set("S", "a", 1))
	require.NoError(t, e.Set("", "a", -1))

	assert.Equal(t, 1.0, e.Snapshot("S").Pulse)
	assert.Equal(t, -1.0, e.Snapshot("").Pulse)
}

// TestPulseIsMeanOfLatestValues replays random set/clear sequences and checks
// the pulse against a model of each participant's latest active value.
func TestPulseIsMeanOfLatestValues(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	participants := []session.ConnID{"a", "b", "c", "d", "e"}

	for round := 0; round < 200; round++ {
		e := NewEngine()
		model := make(map[session.ConnID]float64)

		for step := 0; step < 50; step++ {
			p := participants[rng.Intn(len(participants))]
			if rng.Intn(4) == 0 {
				e.Clear("S", p)
				delete(model, p)
			} else {
				v := rng.Float64()*4 - 2
				require.NoError(t, e.Set("S", p, v))
				model[p] = Clamp(v)
			}

			want := 0.0
			for _, v := range model {
				want += v
			}
			if len(model) > 0 {
				want /= float64(len(model))
			}

			snap := e.Snapshot("S")
			require.Equal(t, len(model), snap.Count)
			require.InDelta(t, want, snap.Pulse, 1e-9)
		}
	}
}
