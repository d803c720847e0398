// Package transport maintains the single STOMP-over-WebSocket connection
// to the real-time channel and multiplexes named subscriptions to
// callbacks.
//
// Delivery is at-least-once best effort: the channel may drop or duplicate
// frames, so subscribers must dedup. There is no automatic reconnect loop;
// reconnection is a deliberate, caller-invoked action so that retry policy
// stays with the caller.
package transport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatclient/internal/logger"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives the raw JSON body of an inbound frame on a subscribed
// destination. Bodies that are not valid JSON are dropped before reaching
// the handler.
type Handler func(payload []byte)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	ID          string
	Destination string
}

// Options configure the transport client.
type Options struct {
	URL            string
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
	SendBufferSize int

	// OnClose fires once when an established connection is lost (socket
	// close or read failure). Not called for Disconnect().
	OnClose func()
}

func (o *Options) defaults() {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 65536
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
}

type subEntry struct {
	id      string
	handler Handler
}

// Client is the transport adapter. One Client serves all conversations;
// subscriptions are additive and must be removed explicitly when a
// conversation is deactivated.
type Client struct {
	opts Options

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	subs      map[string]*subEntry
	nextSubID int
	send      chan *Frame
	done      chan struct{}
	wg        *sync.WaitGroup
	closed    bool // set by Disconnect to suppress OnClose
}

// NewClient creates a disconnected transport client.
func NewClient(opts Options) *Client {
	opts.defaults()
	return &Client{
		opts:  opts,
		state: StateDisconnected,
		subs:  make(map[string]*subEntry),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the protocol handshake has completed.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Subscriptions returns the currently subscribed destinations.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for dest := range c.subs {
		out = append(out, dest)
	}
	return out
}

// Connect establishes the socket and the protocol handshake, then invokes
// onConnected. Idempotent: a connecting or connected client no-ops.
// Failures are reported through onError, never returned or thrown.
func (c *Client) Connect(onConnected func(), onError func(error)) {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.closed = false
	c.mu.Unlock()

	go c.dial(onConnected, onError)
}

func (c *Client) dial(onConnected func(), onError func(error)) {
	fail := func(err error) {
		c.mu.Lock()
		c.state = StateDisconnected
		c.conn = nil
		c.mu.Unlock()
		logger.Errorf("transport connect: %v", err)
		if onError != nil {
			onError(err)
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.opts.URL, nil)
	if err != nil {
		fail(err)
		return
	}

	// Protocol handshake before anything else may use the socket.
	connect := newFrame(cmdConnect, map[string]string{
		hdrAcceptVersion: "1.2",
		hdrHeartBeat:     "0,0", // liveness via WS ping/pong
	}, nil)
	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, connect.Marshal()); err != nil {
		conn.Close()
		fail(fmt.Errorf("handshake write: %w", err))
		return
	}
	conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		fail(fmt.Errorf("handshake read: %w", err))
		return
	}
	frame, err := parseFrame(raw)
	if err != nil || frame == nil || frame.Command != cmdConnected {
		conn.Close()
		fail(fmt.Errorf("handshake: expected CONNECTED, got %q", raw))
		return
	}

	c.mu.Lock()
	if c.closed {
		// Disconnect raced the handshake; honor it.
		c.state = StateDisconnected
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.state = StateConnected
	c.conn = conn
	c.send = make(chan *Frame, c.opts.SendBufferSize)
	c.done = make(chan struct{})
	c.wg = &sync.WaitGroup{}
	c.wg.Add(2)
	go c.readPump(conn, c.done)
	go c.writePump(conn, c.send, c.done)
	c.mu.Unlock()

	logger.Infof("transport connected to %s", c.opts.URL)
	if onConnected != nil {
		onConnected()
	}
}

// Subscribe registers a handler for inbound frames on destination and
// returns the subscription handle, or nil if the client is not connected.
// Subscribing a destination twice replaces the handler.
func (c *Client) Subscribe(destination string, handler Handler) *Subscription {
	c.mu.Lock()
	if c.state != StateConnected || handler == nil {
		c.mu.Unlock()
		return nil
	}
	if existing, ok := c.subs[destination]; ok {
		existing.handler = handler
		c.mu.Unlock()
		return &Subscription{ID: existing.id, Destination: destination}
	}
	c.nextSubID++
	id := "sub-" + strconv.Itoa(c.nextSubID)
	c.subs[destination] = &subEntry{id: id, handler: handler}
	send := c.send
	c.mu.Unlock()

	enqueue(send, newFrame(cmdSubscribe, map[string]string{
		hdrSubscription: id,
		hdrDestination:  destination,
	}, nil))
	return &Subscription{ID: id, Destination: destination}
}

// Unsubscribe removes the handler for destination. Unknown destinations
// are a no-op.
func (c *Client) Unsubscribe(destination string) {
	c.mu.Lock()
	entry, ok := c.subs[destination]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.subs, destination)
	connected := c.state == StateConnected
	send := c.send
	c.mu.Unlock()

	if connected {
		enqueue(send, newFrame(cmdUnsubscribe, map[string]string{
			hdrSubscription: entry.id,
		}, nil))
	}
}

// Send enqueues a JSON payload for destination. Returns success of the
// enqueue, not of delivery; false when not connected.
func (c *Client) Send(destination string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("transport send marshal %s: %v", destination, err)
		return false
	}
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return false
	}
	send := c.send
	c.mu.Unlock()

	return enqueue(send, newFrame(cmdSend, map[string]string{
		hdrDestination: destination,
		hdrContentType: "application/json",
	}, body))
}

// Disconnect tears down all subscriptions and the connection. The write
// pump owns every post-handshake write, so Disconnect only signals done
// and waits; the pump performs the protocol goodbye and closes the socket.
// Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.subs = make(map[string]*subEntry)
	done := c.done
	wg := c.wg
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	if wg != nil {
		wg.Wait()
	}
	logger.Info("transport disconnected")
}

// connectionLost transitions CONNECTED -> DISCONNECTED after a socket
// failure observed by the read pump.
func (c *Client) connectionLost() {
	c.mu.Lock()
	if c.closed || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.subs = make(map[string]*subEntry)
	conn := c.conn
	done := c.done
	c.conn = nil
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.Close()
	}
	logger.Error("transport connection lost")
	if c.opts.OnClose != nil {
		c.opts.OnClose()
	}
}

func (c *Client) handlerFor(destination string) Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.subs[destination]; ok {
		return entry.handler
	}
	return nil
}

// readPump reads frames until the connection dies. Malformed frames and
// non-JSON bodies are dropped; they never crash the handler chain.
func (c *Client) readPump(conn *websocket.Conn, done chan struct{}) {
	defer c.wgDone()
	defer c.connectionLost()

	conn.SetReadLimit(c.opts.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		select {
		case <-done:
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("transport read: %v", err)
			}
			return
		}
		frame, err := parseFrame(raw)
		if err != nil {
			logger.Debugf("transport drop malformed frame: %v", err)
			continue
		}
		if frame == nil { // heart-beat
			continue
		}

		switch frame.Command {
		case cmdMessage:
			dest := frame.Headers[hdrDestination]
			handler := c.handlerFor(dest)
			if handler == nil {
				continue
			}
			if !json.Valid(frame.Body) {
				logger.Debugf("transport drop non-JSON payload on %s", dest)
				continue
			}
			handler(frame.Body)
		case cmdError:
			logger.Errorf("transport broker error: %s", frame.Headers[hdrMessage])
		default:
			logger.Debugf("transport ignore frame %s", frame.Command)
		}
	}
}

// writePump owns all writes after the handshake: queued frames plus the
// keepalive ping.
func (c *Client) writePump(conn *websocket.Conn, send chan *Frame, done chan struct{}) {
	defer c.wgDone()
	pingPeriod := c.opts.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			// Flush queued frames, then the protocol goodbye. Write errors
			// are moot here; the socket may already be dead.
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			for {
				select {
				case frame := <-send:
					conn.WriteMessage(websocket.TextMessage, frame.Marshal())
				default:
					conn.WriteMessage(websocket.TextMessage, newFrame(cmdDisconnect, nil, nil).Marshal())
					conn.WriteMessage(websocket.CloseMessage, nil)
					return
				}
			}
		case frame := <-send:
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame.Marshal()); err != nil {
				logger.Errorf("transport write: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) wgDone() {
	c.mu.Lock()
	wg := c.wg
	c.mu.Unlock()
	if wg != nil {
		wg.Done()
	}
}

// enqueue is fire-and-forget: a full buffer drops the frame rather than
// blocking the caller.
func enqueue(send chan *Frame, frame *Frame) bool {
	if send == nil {
		return false
	}
	select {
	case send <- frame:
		return true
	default:
		logger.Errorf("transport send buffer full, dropping %s frame", frame.Command)
		return false
	}
}
