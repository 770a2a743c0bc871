// Package client implements the agent side of the websocket protocol. A
// Client dials an arena server, registers with a hello frame and then
// answers action requests with decisions produced by a DecideFunc,
// typically one of the built-in bot strategies.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdem-arena/internal/game"
	"github.com/lox/holdem-arena/internal/protocol"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	helloTimeout = 10 * time.Second
	sendBuffer   = 16
)

// DecideFunc produces the decision for one turn. It runs on its own
// goroutine per request, so a slow decision never blocks the connection.
type DecideFunc func(ctx context.Context, view game.PlayerView) (game.Decision, error)

// Client is a websocket agent connected to an arena server.
type Client struct {
	url    string
	name   string
	wallet string
	token  string
	decide DecideFunc
	logger *log.Logger

	mu      sync.Mutex
	agentID string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by the client.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithWallet sets the settlement wallet address announced in the hello
// frame.
func WithWallet(address string) Option {
	return func(c *Client) {
		c.wallet = address
	}
}

// WithToken sets the auth token presented in the hello frame. Servers
// running open arenas ignore it.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the server at serverURL. The URL may use an
// http, https, ws or wss scheme; the path defaults to /ws.
func New(serverURL, name string, decide DecideFunc, opts ...Option) *Client {
	c := &Client{
		url:    serverURL,
		name:   name,
		decide: decide,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithPrefix("client")
	return c
}

// Name returns the player name the client registers under.
func (c *Client) Name() string {
	return c.name
}

// AgentID returns the id assigned by the server, or the empty string
// before registration completes.
func (c *Client) AgentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentID
}

// Run connects, registers and serves decisions until the server closes
// the connection or ctx is cancelled. Cancellation and a normal server
// close both return nil; any other connection loss is an error.
func (c *Client) Run(ctx context.Context) error {
	target, err := wsURL(c.url)
	if err != nil {
		return err
	}

	// A child context lets answer goroutines unwind as soon as Run
	// returns for any reason.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: helloTimeout}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	// Close the socket when the context ends so blocked reads return.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := c.handshake(conn); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	c.logger.Info("registered with server", "agent", c.AgentID(), "name", c.name)

	send := make(chan []byte, sendBuffer)
	go c.writePump(ctx, conn, send)

	err = c.readLoop(ctx, conn, send)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// handshake sends the hello frame and waits for the server's verdict.
func (c *Client) handshake(conn *websocket.Conn) error {
	hello := protocol.NewHello(c.name, c.wallet)
	hello.Token = c.token
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("await welcome: %w", err)
	}

	frameType, err := protocol.FrameType(data)
	if err != nil {
		return err
	}
	switch frameType {
	case protocol.TypeWelcome:
		var welcome protocol.Welcome
		if err := json.Unmarshal(data, &welcome); err != nil {
			return fmt.Errorf("parse welcome: %w", err)
		}
		c.mu.Lock()
		c.agentID = welcome.AgentID
		c.mu.Unlock()
		return nil
	case protocol.TypeError:
		var serverErr protocol.Error
		if err := json.Unmarshal(data, &serverErr); err != nil {
			return fmt.Errorf("parse rejection: %w", err)
		}
		return fmt.Errorf("registration rejected: %s", serverErr.Message)
	default:
		return fmt.Errorf("unexpected %s frame before welcome", frameType)
	}
}

// readLoop dispatches inbound frames until the connection drops. Action
// requests are answered on their own goroutines so the loop keeps
// servicing pings while a decision is being made.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, send chan<- []byte) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		frameType, err := protocol.FrameType(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		switch frameType {
		case protocol.TypeActionRequest:
			var req protocol.ActionRequest
			if err := json.Unmarshal(data, &req); err != nil {
				c.logger.Warn("dropping malformed action request", "error", err)
				continue
			}
			go c.answer(ctx, req, send)
		case protocol.TypeError:
			var serverErr protocol.Error
			if err := json.Unmarshal(data, &serverErr); err == nil {
				c.logger.Warn("server reported error", "message", serverErr.Message)
			}
		default:
			c.logger.Debug("ignoring frame", "type", frameType)
		}
	}
}

// answer runs the decide function for one request and queues the reply.
// A failed decision folds rather than letting the server time us out.
func (c *Client) answer(ctx context.Context, req protocol.ActionRequest, send chan<- []byte) {
	dec, err := c.decide(ctx, req.PlayerView)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("decide failed, folding",
			"table", req.TableID, "hand", req.HandNumber, "error", err)
		dec = game.Decision{Action: game.Fold}
	}

	frame, err := json.Marshal(protocol.NewAction(req.RequestID, dec))
	if err != nil {
		c.logger.Error("encode action", "error", err)
		return
	}
	select {
	case send <- frame:
	case <-ctx.Done():
	}
}

// writePump serialises all writes to the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// wsURL normalises a server URL to the websocket endpoint.
func wsURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q in server url", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}
