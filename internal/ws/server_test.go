package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amplifyed/pulse/internal/config"
	"github.com/amplifyed/pulse/internal/hub"
	"github.com/amplifyed/pulse/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, mutate func(*config.ServerConfig)) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg.Server)
	}

	logger := logging.Discard()
	h := hub.New(hub.OptionsFromConfig(cfg, nil, logger))
	b := NewBroadcaster(BroadcasterOptions{
		MaxConnections: cfg.Server.MaxConnections,
		SendBuffer:     cfg.Server.SendBuffer,
		WriteTimeout:   cfg.Server.WriteTimeout,
		PingInterval:   cfg.Server.PingInterval,
		Logger:         logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx, b)
	}()

	srv := httptest.NewServer(NewServer(cfg.Server, h, b, logger).Routes())
	t.Cleanup(func() {
		b.CloseAll()
		srv.Close()
		cancel()
		<-done
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Every connection starts with the board snapshot.
	readUntil(t, conn, hub.EvQuestionsUpdate)
	return conn
}

func write(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(WSMessage{Event: event, Data: data}))
}

func readUntil(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)

		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Event == event {
			return f
		}
	}
}

func TestWebSocketSessionFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	host := dial(t, srv)
	write(t, host, hub.EvHostCreateSession, nil)
	var created hub.CodePayload
	require.NoError(t, json.Unmarshal(readUntil(t, host, hub.EvSessionCreated).Data, &created))
	require.Len(t, created.Code, config.DefaultCodeLength)

	audience := dial(t, srv)
	write(t, audience, hub.EvJoinSession, map[string]string{"code": strings.ToLower(created.Code)})
	readUntil(t, audience, hub.EvSessionJoined)

	var joined hub.CountPayload
	require.NoError(t, json.Unmarshal(readUntil(t, host, hub.EvParticipantJoined).Data, &joined))
	assert.Equal(t, 1, joined.Count)

	write(t, audience, hub.EvPulseUpdate, map[string]any{"value": 0.5})
	var pd hub.PulsePayload
	require.NoError(t, json.Unmarshal(readUntil(t, host, hub.EvPulseData).Data, &pd))
	assert.Equal(t, 0.5, pd.CurrentPulse)

	resp, err := http.Get(srv.URL + "/api/sessions/" + created.Code)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info hub.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, 1, info.Participants)
	assert.Equal(t, 1, info.Pulse.Count)

	host.Close()
	readUntil(t, audience, hub.EvSessionEnded)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	srv := newTestServer(t, nil)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))
	write(t, conn, hub.EvReaction, map[string]any{"value": -1})

	var pd hub.PulsePayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, hub.EvPulseData).Data, &pd))
	assert.Equal(t, -1.0, pd.CurrentPulse)
}

func TestConnectionLimit(t *testing.T) {
	srv := newTestServer(t, func(c *config.ServerConfig) { c.MaxConnections = 1 })
	dial(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthAndAPI(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)

	resp, err = http.Get(srv.URL + "/api/sessions/NOPE42")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/board")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var board hub.BoardInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&board))
	assert.Empty(t, board.Questions)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin header", nil, "", "pulse.example", true},
		{"same host", nil, "https://pulse.example", "pulse.example", true},
		{"localhost", nil, "http://localhost:5173", "pulse.example", true},
		{"loopback v6", nil, "http://[::1]:5173", "pulse.example", true},
		{"foreign", nil, "https://evil.example", "pulse.example", false},
		{"allow-listed", []string{"https://stage.example"}, "https://stage.example", "pulse.example", true},
		{"allow-listed host other scheme", []string{"https://stage.example"}, "http://stage.example", "pulse.example", true},
		{"not allow-listed", []string{"https://stage.example"}, "http://localhost", "pulse.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Server
			cfg.AllowedOrigins = tt.allowed
			s := NewServer(cfg, nil, nil, logging.Discard())

			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, s.checkOrigin(req))
		})
	}
}
