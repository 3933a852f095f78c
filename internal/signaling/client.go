// Package signaling connects a mesh session to the relay: a websocket transport, a REST client
// for the room record and chat log, and an in-process transport for running against a relay
// service directly.
package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	queueSize      = 256
)

var (
	ErrClosed            = errors.New("signaling client closed")
	ErrAlreadySubscribed = errors.New("signaling client already subscribed")
)

// Client is the websocket transport to the relay.
type Client struct {
	relayURL string
	dialer   *websocket.Dialer
	log      *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	incoming chan domain.SignalMessage
	outgoing chan domain.SignalMessage
	done     chan struct{}
	stopOnce sync.Once
	closed   bool
}

func NewClient(relayURL string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		relayURL: strings.TrimRight(relayURL, "/"),
		dialer:   websocket.DefaultDialer,
		log:      log,
		outgoing: make(chan domain.SignalMessage, queueSize),
		done:     make(chan struct{}),
	}
}

// RoomURL builds the websocket endpoint for roomID and the given presence.
func RoomURL(relayURL string, roomID string, self domain.Presence) (string, error) {
	u, err := url.Parse(strings.TrimRight(relayURL, "/") + "/api/rooms/" + url.PathEscape(roomID) + "/ws")
	if err != nil {
		return "", fmt.Errorf("invalid relay url: %w", err)
	}
	q := u.Query()
	q.Set("user_id", self.UserID)
	q.Set("name", self.Nickname)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) Subscribe(ctx context.Context, roomID string, self domain.Presence) (<-chan domain.SignalMessage, error) {
	const op = "signaling.client.Subscribe"

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.conn != nil {
		return nil, ErrAlreadySubscribed
	}

	endpoint, err := RoomURL(c.relayURL, roomID, self)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", op, err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.conn = conn
	c.incoming = make(chan domain.SignalMessage, queueSize)

	go c.readPump(conn, c.incoming)
	go c.writePump(conn)

	c.log.Info("connected to relay", slog.String("room_id", roomID))
	return c.incoming, nil
}

func (c *Client) readPump(conn *websocket.Conn, incoming chan<- domain.SignalMessage) {
	defer func() {
		c.stop()
		conn.Close()
		close(incoming)
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg domain.SignalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("relay read stopped", sl.Err(err))
			}
			return
		}

		select {
		case incoming <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.stop()
		conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				c.log.Debug("relay write failed", sl.Err(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.flush(conn)
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever was queued before Close, so a trailing leave still reaches the relay.
func (c *Client) flush(conn *websocket.Conn) {
	for {
		select {
		case message := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) Send(ctx context.Context, msg domain.SignalMessage) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.stop()
	return nil
}

// stop ends both pumps. Once it runs, Send reports ErrClosed.
func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}
