package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in         string
		want       Role
		privileged bool
	}{
		{"stage", Stage, true},
		{"backstage", Backstage, true},
		{"audience", Audience, false},
		{"admin", Audience, false},
		{"", Audience, false},
	}
	for _, tt := range tests {
		got := ParseRole(tt.in)
		assert.Equal(t, tt.want, got, "ParseRole(%q)", tt.in)
		assert.Equal(t, tt.privileged, got.Privileged(), "ParseRole(%q).Privileged()", tt.in)
	}
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(Backstage)
	require.NoError(t, err)
	assert.JSONEq(t, `"backstage"`, string(data))

	var r Role
	require.NoError(t, json.Unmarshal([]byte(`"stage"`), &r))
	assert.Equal(t, Stage, r)

	require.NoError(t, json.Unmarshal([]byte(`"bogus"`), &r))
	assert.Equal(t, Audience, r)

	assert.Equal(t, "unknown", Role(42).String())
}

func TestSessionCloneAndMembers(t *testing.T) {
	s := &Session{
		Code:   "7K4M9P",
		HostID: "host",
		Participants: []Participant{
			{ID: "a", Name: "Participant 1"},
			{ID: "b", Name: "Participant 2"},
		},
	}

	c := s.Clone()
	c.Participants[0].Name = "changed"
	assert.Equal(t, "Participant 1", s.Participants[0].Name)

	assert.Equal(t, []ConnID{"host", "a", "b"}, s.Members())
}
