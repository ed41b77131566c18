package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/amplifyed/pulse/internal/metrics"
	"github.com/amplifyed/pulse/internal/session"
	"github.com/gorilla/websocket"
)

// ErrTooManyConnections is returned by AddClient at the connection limit.
var ErrTooManyConnections = errors.New("too many websocket connections")

type client struct {
	id   session.ConnID
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.b.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.b.RemoveClient(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.b.writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.b.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcaster tracks live websocket clients and delivers hub output to them.
// It implements hub.Transport.
type Broadcaster struct {
	mu           sync.RWMutex
	clients      map[session.ConnID]*client
	maxConns     int
	sendBuffer   int
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *slog.Logger
}

type BroadcasterOptions struct {
	MaxConnections int
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	Logger         *slog.Logger
}

func NewBroadcaster(opts BroadcasterOptions) *Broadcaster {
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Broadcaster{
		clients:      make(map[session.ConnID]*client),
		maxConns:     opts.MaxConnections,
		sendBuffer:   opts.SendBuffer,
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		logger:       opts.Logger,
	}
}

// AddClient registers conn under id and starts its write pump. A
// maxConns of zero means unlimited.
func (b *Broadcaster) AddClient(id session.ConnID, conn *websocket.Conn) (*client, error) {
	c := &client{
		id:   id,
		conn: conn,
		b:    b,
		send: make(chan []byte, b.sendBuffer),
	}

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		metrics.RejectedConnections.Inc()
		return nil, ErrTooManyConnections
	}
	b.clients[id] = c
	metrics.ClientsConnected.Set(float64(len(b.clients)))
	b.mu.Unlock()

	go c.writePump()
	return c, nil
}

// RemoveClient unregisters c and closes its send channel. It is safe to call
// more than once.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.clients[c.id]; ok && cur == c {
		delete(b.clients, c.id)
		close(c.send)
		metrics.ClientsConnected.Set(float64(len(b.clients)))
	}
}

// Deliver encodes the event once and queues it for every listed connection.
// A client whose buffer is full is disconnected rather than waited on.
func (b *Broadcaster) Deliver(conns []session.ConnID, event string, payload any) {
	data, err := encodeMessage(event, payload)
	if err != nil {
		b.logger.Error("encode event", "event", event, "error", err)
		return
	}

	var slow []*client
	b.mu.RLock()
	for _, id := range conns {
		c, ok := b.clients[id]
		if !ok {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("ws client too slow, disconnecting", "conn", c.id)
		metrics.DroppedClients.Inc()
		b.RemoveClient(c)
	}
}

// CloseAll disconnects every client. Used on shutdown.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clients {
		delete(b.clients, id)
		close(c.send)
	}
	metrics.ClientsConnected.Set(0)
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
