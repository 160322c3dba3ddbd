package ws

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Client is one upgraded connection. It implements contract.Session.
//
// Outbound events are queued on a bounded channel drained by writePump, so
// Consume never blocks the fan-out. A full queue closes the connection.
type Client struct {
	id          domain.ConnectionID
	identity    domain.Identity
	connectedAt time.Time
	conn        *websocket.Conn
	log         *slog.Logger
	settings    Settings
	limiter     *rate.Limiter
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
}

var _ contract.Session = (*Client)(nil)

func newClient(id domain.ConnectionID, identity domain.Identity, conn *websocket.Conn,
	log *slog.Logger, settings Settings) *Client {
	return &Client{
		id:          id,
		identity:    identity,
		connectedAt: time.Now().UTC(),
		conn:        conn,
		log:         log.With("conn_id", id, "user_id", identity.ID),
		settings:    settings,
		limiter:     rate.NewLimiter(rate.Every(settings.RateLimitInterval/time.Duration(settings.RateLimitBurst)), settings.RateLimitBurst),
		send:        make(chan []byte, settings.SendBufferSize),
		done:        make(chan struct{}),
	}
}

func (c *Client) ID() domain.ConnectionID   { return c.id }
func (c *Client) Identity() domain.Identity { return c.identity }
func (c *Client) ConnectedAt() time.Time    { return c.connectedAt }

func (c *Client) Consume(ctx context.Context, e event.Event) error {
	payload, err := Encode(e)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.log.Warn("Send buffer full, closing slow consumer", "event", e.Name(), "buffer", cap(c.send))
		c.Close()
		return errors.ErrSlowConsumer
	}
}

// Close is idempotent. The write pump flushes what is queued and closes the socket,
// which ends the read pump and triggers the disconnect.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump runs on the handler goroutine. Intents are handled one at a time,
// in arrival order.
func (c *Client) readPump(ctx context.Context, orchestrator contract.IOrchestrator) {
	c.conn.SetReadLimit(c.settings.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait)); err != nil {
		c.log.Debug("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !c.limiter.Allow() {
			c.refuse(ctx, errors.ErrRateLimited)
			continue
		}
		cmd, err := DecodeCommand(raw)
		if err != nil {
			c.refuse(ctx, err)
			continue
		}
		orchestrator.Handle(ctx, c, cmd)
	}
}

func (c *Client) refuse(ctx context.Context, err error) {
	c.log.Debug("Inbound frame refused", "error", err)
	_ = c.Consume(ctx, event.Error{Message: errors.PublicMessage(err), Code: string(errors.CodeOf(err))})
}

func (c *Client) logReadError(err error) {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Debug("Client closed the connection")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.log.Info("Unexpected websocket close", "error", err)
	default:
		c.log.Debug("Read loop ended", "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.settings.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if !c.write(websocket.TextMessage, payload) {
				c.Close()
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever was queued before Close, such as a final error event.
func (c *Client) flush() {
	for {
		select {
		case payload := <-c.send:
			if !c.write(websocket.TextMessage, payload) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, payload []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait)); err != nil {
		c.log.Debug("Error setting write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		c.log.Debug("Write failed", "error", err)
		return false
	}
	return true
}
