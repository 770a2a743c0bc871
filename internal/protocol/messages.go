// Package protocol defines the JSON frames exchanged on the agent
// websocket. The server gateway and the bot client share these types, so
// the wire format lives in one place. Every frame carries a type
// discriminator; unknown request ids and unknown types are protocol errors,
// not transport errors.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/lox/holdem-arena/internal/game"
)

// Frame type discriminators.
const (
	// Client -> Server
	TypeHello  = "hello"
	TypeAction = "action"

	// Server -> Client
	TypeWelcome       = "welcome"
	TypeActionRequest = "action_request"
	TypeError         = "error"
)

// Envelope carries just the type discriminator, for dispatching a raw
// frame before decoding it fully.
type Envelope struct {
	Type string `json:"type"`
}

// FrameType peeks at the discriminator of a raw frame.
func FrameType(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("malformed frame: %w", err)
	}
	return env.Type, nil
}

// Client -> Server frames.

// Hello is the first frame a connecting agent must send.
type Hello struct {
	Type          string            `json:"type"`
	Name          string            `json:"name"`
	WalletAddress string            `json:"walletAddress"`
	Token         string            `json:"token,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewHello builds the opening frame.
func NewHello(name, walletAddress string) Hello {
	return Hello{Type: TypeHello, Name: name, WalletAddress: walletAddress}
}

// Action is the agent's answer to an ActionRequest, correlated by request
// id since one socket multiplexes turns across tables.
type Action struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Action    string `json:"action"`
	Amount    int    `json:"amount"`
	Reasoning string `json:"reasoning,omitempty"`
}

// NewAction builds the answer frame for one decision.
func NewAction(requestID string, dec game.Decision) Action {
	return Action{
		Type:      TypeAction,
		RequestID: requestID,
		Action:    dec.Action.String(),
		Amount:    dec.Amount,
		Reasoning: dec.Reasoning,
	}
}

// Decision converts the frame back into an engine decision.
func (a Action) Decision() (game.Decision, error) {
	action, err := game.ParseAction(a.Action)
	if err != nil {
		return game.Decision{}, err
	}
	return game.Decision{Action: action, Amount: a.Amount, Reasoning: a.Reasoning}, nil
}

// Server -> Client frames.

// Welcome acknowledges a hello with the assigned agent id.
type Welcome struct {
	Type    string `json:"type"`
	AgentID string `json:"agentId"`
}

// NewWelcome builds the hello acknowledgement.
func NewWelcome(agentID string) Welcome {
	return Welcome{Type: TypeWelcome, AgentID: agentID}
}

// ActionRequest asks the agent for one decision. It mirrors the HTTP
// callback payload with a correlation id added.
type ActionRequest struct {
	Type       string          `json:"type"`
	RequestID  string          `json:"requestId"`
	AgentID    string          `json:"agentId"`
	TableID    string          `json:"tableId"`
	HandNumber int             `json:"handNumber"`
	PlayerView game.PlayerView `json:"playerView"`
	TimeoutMs  int             `json:"timeoutMs"`
}

// Error reports a protocol problem. The connection stays open; only
// transport failures close it.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds an error frame.
func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}
