package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/sarthak03dot/Chat-App/internal/domain"
	"github.com/sarthak03dot/Chat-App/internal/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 << 10
	defaultBuffer  = 64
	closeSlowGrace = time.Second
)

// ClientOptions tunes a connection.
type ClientOptions struct {
	SendBuffer int
	// EventRate and EventBurst throttle frames that write to the store.
	// Typing signals are never throttled. Zero disables throttling.
	EventRate  float64
	EventBurst int
}

// Client is one websocket connection. Inbound frames are handled in order
// on the read goroutine; outbound frames are queued for the write goroutine.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	engine *Engine
	log    *slog.Logger

	send    chan event.Outbound
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

var _ Subscriber = (*Client)(nil)

func NewClient(conn *websocket.Conn, userID string, engine *Engine, log *slog.Logger, opts ClientOptions) *Client {
	size := opts.SendBuffer
	if size <= 0 {
		size = defaultBuffer
	}
	c := &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		engine: engine,
		send:   make(chan event.Outbound, size),
		done:   make(chan struct{}),
	}
	c.log = log.With("user", userID, "conn", c.id)
	if opts.EventRate > 0 {
		burst := opts.EventBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.EventRate), burst)
	}
	return c
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Send queues ev. A full queue means the peer cannot keep up; the frame is
// dropped and the connection closed so the client re-syncs from history.
func (c *Client) Send(ev event.Outbound) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		c.log.Warn("ws_slow_consumer")
		c.close()
		return false
	}
}

// Run registers the client with the engine and pumps frames until the
// connection ends.
func (c *Client) Run(ctx context.Context) {
	defer c.conn.Close()
	if err := c.engine.Connect(ctx, c); err != nil {
		c.log.Error("ws_connect_failed", "error", err)
		c.writeClose(websocket.CloseInternalServerErr, "could not join rooms")
		return
	}
	defer c.engine.Disconnect(c)

	go c.writePump()
	c.readPump(ctx)
	c.close()
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug("ws_read_failed", "error", err)
			}
			return
		}
		select {
		case <-c.done:
			return
		default:
		}

		in, err := event.Decode(raw)
		if err != nil {
			c.engine.Reject(c, "", err)
			continue
		}
		if c.limiter != nil && event.Persisted(in) && !c.limiter.Allow() {
			c.engine.Reject(c, in.Type(), errRateLimited)
			continue
		}
		c.engine.Handle(ctx, c, in)
	}
}

var errRateLimited = domain.Invalid("rate limit exceeded, slow down")

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Debug("ws_write_failed", "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.drain()
			c.writeClose(websocket.CloseNormalClosure, "")
			return
		}
	}
}

// drain flushes frames queued before the connection was closed.
func (c *Client) drain() {
	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(closeSlowGrace))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) writeClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
