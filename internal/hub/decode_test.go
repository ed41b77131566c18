package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{`0.25`, 0.25, false},
		{`-3`, -3, false},
		{`"0.5"`, 0.5, false},
		{`" 1 "`, 1, false},
		{`"abc"`, 0, true},
		{`true`, 0, true},
		{`null`, 0, true},
		{`""`, 0, true},
		{`"NaN"`, 0, true},
		{`"-Inf"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseNumber(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDirection(t *testing.T) {
	for raw, want := range map[string]int{`1`: 1, `0`: 0, `-1`: -1, `"-1"`: -1, `1.0`: 1} {
		got, err := parseDirection(json.RawMessage(raw))
		assert.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{`2`, `-2`, `0.5`, `"up"`, ``} {
		_, err := parseDirection(json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
}

func TestDecodeRejectsMissingPayload(t *testing.T) {
	var v struct{}
	assert.ErrorIs(t, decode(nil, &v), errMissingPayload)
	assert.ErrorIs(t, decode(json.RawMessage(" null "), &v), errMissingPayload)
	assert.Error(t, decode(json.RawMessage(`{`), &v))
	assert.NoError(t, decode(json.RawMessage(`{}`), &v))
}
