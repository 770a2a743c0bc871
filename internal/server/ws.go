package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/holdem-arena/internal/dashboard"
	"github.com/lox/holdem-arena/internal/game"
	"github.com/lox/holdem-arena/internal/protocol"
)

// Websocket timing, shared by the agent gateway and the watch stream.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleAgentSocket upgrades the connection and registers a websocket
// agent. The first client frame must be a hello; the agent then plays as
// an in-process agent whose decisions round-trip over the socket, and is
// unregistered when the socket drops.
func (s *Server) handleAgentSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	hello, err := readHello(conn)
	if err != nil {
		rejectSocket(conn, err.Error())
		return
	}

	name, wallet := hello.Name, hello.WalletAddress
	if s.auth != nil {
		identity, err := s.auth.Validate(c.Request.Context(), hello.Token)
		if err != nil {
			s.logger.Warn("agent rejected", "name", hello.Name, "error", err)
			rejectSocket(conn, err.Error())
			return
		}
		// The verified identity outranks the self-declared one.
		if identity.Name != "" {
			name = identity.Name
		}
		if identity.Wallet != "" {
			wallet = identity.Wallet
		}
	}

	ac := &agentConn{
		logger:  s.logger,
		conn:    conn,
		agentID: "ws-" + uuid.NewString(),
		timeout: s.registry.ActionTimeout(),
		send:    make(chan []byte, sendBuffer),
		closed:  make(chan struct{}),
		turns:   make(map[string]chan game.Decision),
	}
	if name == "" {
		name = ac.agentID
	}

	if _, err := s.registry.RegisterInternalAgent(ac.agentID, name, ac.decide, wallet); err != nil {
		rejectSocket(conn, err.Error())
		return
	}

	welcome, _ := json.Marshal(protocol.NewWelcome(ac.agentID))
	ac.send <- welcome

	go ac.writePump()
	go func() {
		ac.readPump()
		s.registry.UnregisterAgent(ac.agentID)
	}()

	s.logger.Info("websocket agent connected", "agent", ac.agentID, "name", name)
}

// readHello reads the opening frame. The pongWait deadline doubles as the
// hello deadline: a client that says nothing is dropped.
func readHello(conn *websocket.Conn) (protocol.Hello, error) {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return protocol.Hello{}, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.Hello{}, fmt.Errorf("read hello: %w", err)
	}
	var hello protocol.Hello
	if err := json.Unmarshal(data, &hello); err != nil {
		return protocol.Hello{}, fmt.Errorf("malformed hello: %w", err)
	}
	if hello.Type != protocol.TypeHello {
		return protocol.Hello{}, fmt.Errorf("expected hello frame, got %q", hello.Type)
	}
	return hello, nil
}

// rejectSocket sends one error frame and closes the connection.
func rejectSocket(conn *websocket.Conn, msg string) {
	frame, _ := json.Marshal(protocol.NewError(msg))
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, frame)
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
	conn.Close()
}

// agentConn is one connected websocket agent. Frames flow out through
// send; action frames are matched back to waiting decide calls by request
// id. The closed channel fans the connection's death out to the pumps and
// to any decide call in flight.
type agentConn struct {
	logger  *log.Logger
	conn    *websocket.Conn
	agentID string
	timeout time.Duration

	send   chan []byte
	closed chan struct{}
	once   sync.Once

	mu    sync.Mutex
	turns map[string]chan game.Decision
}

// decide is the registry DecideFunc for this socket. It sends one
// action_request frame and waits for the matching action frame, the
// registry's deadline, or the socket closing, whichever comes first.
func (ac *agentConn) decide(ctx context.Context, view game.PlayerView) (game.Decision, error) {
	requestID := uuid.NewString()
	result := make(chan game.Decision, 1)

	ac.mu.Lock()
	ac.turns[requestID] = result
	ac.mu.Unlock()
	defer func() {
		ac.mu.Lock()
		delete(ac.turns, requestID)
		ac.mu.Unlock()
	}()

	frame, err := json.Marshal(protocol.ActionRequest{
		Type:       protocol.TypeActionRequest,
		RequestID:  requestID,
		AgentID:    ac.agentID,
		TableID:    view.TableID,
		HandNumber: view.HandNumber,
		PlayerView: view,
		TimeoutMs:  int(ac.timeout / time.Millisecond),
	})
	if err != nil {
		return game.Decision{}, fmt.Errorf("marshal action request: %w", err)
	}
	if err := ac.enqueue(frame); err != nil {
		return game.Decision{}, err
	}

	select {
	case dec := <-result:
		return dec, nil
	case <-ac.closed:
		return game.Decision{}, fmt.Errorf("agent %s disconnected", ac.agentID)
	case <-ctx.Done():
		return game.Decision{}, ctx.Err()
	}
}

// enqueue queues a frame for the write pump. A full buffer means the
// client stopped reading, so the connection is closed rather than letting
// it stall a table.
func (ac *agentConn) enqueue(frame []byte) error {
	select {
	case <-ac.closed:
		return fmt.Errorf("agent %s disconnected", ac.agentID)
	default:
	}
	select {
	case ac.send <- frame:
		return nil
	default:
		ac.close()
		return fmt.Errorf("agent %s send buffer full", ac.agentID)
	}
}

// sendError reports a client mistake without closing the connection. Best
// effort: dropped if the buffer is full.
func (ac *agentConn) sendError(msg string) {
	frame, _ := json.Marshal(protocol.NewError(msg))
	select {
	case ac.send <- frame:
	default:
	}
}

// readPump consumes client frames until the socket drops, matching action
// frames to their waiting turns.
func (ac *agentConn) readPump() {
	defer ac.close()
	ac.conn.SetReadLimit(maxMessageSize)
	ac.conn.SetReadDeadline(time.Now().Add(pongWait))
	ac.conn.SetPongHandler(func(string) error {
		return ac.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ac.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ac.logger.Warn("websocket read failed", "agent", ac.agentID, "error", err)
			}
			return
		}

		frameType, err := protocol.FrameType(data)
		if err != nil {
			ac.sendError(err.Error())
			continue
		}
		switch frameType {
		case protocol.TypeAction:
			var act protocol.Action
			if err := json.Unmarshal(data, &act); err != nil {
				ac.sendError("malformed action: " + err.Error())
				continue
			}
			ac.resolveTurn(act)
		default:
			ac.sendError(fmt.Sprintf("unknown frame type %q", frameType))
		}
	}
}

// resolveTurn hands an action frame to the decide call waiting on its
// request id. Late answers, after a timeout or disconnect already resolved
// the turn, get an error frame.
func (ac *agentConn) resolveTurn(act protocol.Action) {
	dec, err := act.Decision()
	if err != nil {
		ac.sendError(err.Error())
		return
	}

	ac.mu.Lock()
	result, ok := ac.turns[act.RequestID]
	if ok {
		delete(ac.turns, act.RequestID)
	}
	ac.mu.Unlock()
	if !ok {
		ac.sendError(fmt.Sprintf("no turn waiting for request %q", act.RequestID))
		return
	}
	result <- dec
}

// writePump owns all writes to the socket: queued frames, pings, and the
// close frame once the connection is torn down.
func (ac *agentConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ac.conn.Close()
	}()

	for {
		select {
		case frame := <-ac.send:
			ac.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ac.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				ac.close()
				return
			}
		case <-ac.closed:
			ac.conn.SetWriteDeadline(time.Now().Add(writeWait))
			ac.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			ac.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ac.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ac.close()
				return
			}
		}
	}
}

// close marks the connection dead exactly once.
func (ac *agentConn) close() {
	ac.once.Do(func() { close(ac.closed) })
}

// handleWatchSocket streams dashboard events to a spectator. Topic query
// parameters narrow the stream; retained history is replayed first so a
// fresh dashboard paints immediately.
func (s *Server) handleWatchSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := s.arena.Dashboard().Subscribe(c.QueryArray("topic")...)

	// Client frames are discarded; a read error is the leave signal.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer func() {
			ticker.Stop()
			sub.Close()
			conn.Close()
		}()

		for _, ev := range sub.Initial {
			if writeEvent(conn, ev) != nil {
				return
			}
		}
		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if writeEvent(conn, ev) != nil {
					return
				}
			case <-gone:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
}

func writeEvent(conn *websocket.Conn, ev dashboard.Event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}
