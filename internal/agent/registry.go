package agent

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/holdem-arena/internal/game"
)

// Default registry limits, used when a Config field is left zero.
const (
	DefaultMaxAgents         = 100
	DefaultActionTimeoutMs   = 30000
	DefaultCallbackTimeoutMs = 10000
	DefaultCallbackRetries   = 2
)

// callbackBackoff is the fixed wait between callback retry attempts.
const callbackBackoff = 2 * time.Second

// Config bounds the registry's transports.
type Config struct {
	MaxAgents         int
	ActionTimeoutMs   int
	CallbackTimeoutMs int
	CallbackRetries   int
}

func (c Config) withDefaults() Config {
	if c.MaxAgents == 0 {
		c.MaxAgents = DefaultMaxAgents
	}
	if c.ActionTimeoutMs == 0 {
		c.ActionTimeoutMs = DefaultActionTimeoutMs
	}
	if c.CallbackTimeoutMs == 0 {
		c.CallbackTimeoutMs = DefaultCallbackTimeoutMs
	}
	if c.CallbackRetries == 0 {
		c.CallbackRetries = DefaultCallbackRetries
	}
	return c
}

// Registry holds every registered agent and answers decision requests over
// three transports: in-process calls, push callbacks and pull polling. The
// registry lock is never held while waiting on an agent.
type Registry struct {
	cfg    Config
	logger *log.Logger
	clock  quartz.Clock
	push   *callbackClient

	mu       sync.Mutex
	agents   map[string]*agent
	byPlayer map[string]string
	pending  map[string]*pendingTurn
}

// Option adjusts a registry at construction time.
type Option func(*Registry)

// WithLogger injects the registry's logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock injects the clock used for turn deadlines and retry backoff.
func WithClock(clock quartz.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithHTTPClient injects the HTTP client used for push callbacks.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Registry) { r.push = &callbackClient{http: client} }
}

// NewRegistry creates an agent registry.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	r := &Registry{
		cfg:      cfg.withDefaults(),
		agents:   make(map[string]*agent),
		byPlayer: make(map[string]string),
		pending:  make(map[string]*pendingTurn),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	r.logger = r.logger.WithPrefix("registry")
	if r.clock == nil {
		r.clock = quartz.NewReal()
	}
	if r.push == nil {
		r.push = &callbackClient{http: &http.Client{}}
	}
	r.push.clock = r.clock
	r.push.logger = r.logger
	r.push.timeout = time.Duration(r.cfg.CallbackTimeoutMs) * time.Millisecond
	r.push.retries = r.cfg.CallbackRetries
	r.push.backoff = callbackBackoff
	return r
}

// RegisterAgent registers a callback- or polling-mode agent and returns its
// generated id.
func (r *Registry) RegisterAgent(reg Registration) (Info, error) {
	if reg.Mode != ModeCallback && reg.Mode != ModePolling {
		return Info{}, fmt.Errorf("unsupported mode %q: register internal agents through RegisterInternalAgent", reg.Mode)
	}
	if reg.Mode == ModeCallback && reg.CallbackURL == "" {
		return Info{}, ErrCallbackURLRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.agents) >= r.cfg.MaxAgents {
		return Info{}, fmt.Errorf("%w: %d agents registered", ErrMaxAgents, len(r.agents))
	}

	a := &agent{
		id:            uuid.NewString(),
		name:          reg.Name,
		mode:          reg.Mode,
		callbackURL:   reg.CallbackURL,
		walletAddress: reg.WalletAddress,
		metadata:      maps.Clone(reg.Metadata),
	}
	r.agents[a.id] = a
	r.logger.Info("agent registered", "agent", a.id, "name", a.name, "mode", a.mode)
	return a.info(), nil
}

// RegisterInternalAgent registers an in-process agent under a caller-chosen
// id. The decide function is invoked synchronously for each turn.
func (r *Registry) RegisterInternalAgent(id, name string, decide DecideFunc, walletAddress string) (Info, error) {
	if id == "" || decide == nil {
		return Info{}, fmt.Errorf("internal agent needs an id and a decide function")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.agents) >= r.cfg.MaxAgents {
		return Info{}, fmt.Errorf("%w: %d agents registered", ErrMaxAgents, len(r.agents))
	}
	if _, exists := r.agents[id]; exists {
		return Info{}, fmt.Errorf("agent %q already registered", id)
	}

	a := &agent{
		id:            id,
		name:          name,
		mode:          ModeInternal,
		walletAddress: walletAddress,
		decide:        decide,
	}
	r.agents[id] = a
	r.logger.Info("agent registered", "agent", id, "name", name, "mode", ModeInternal)
	return a.info(), nil
}

// UnregisterAgent removes an agent. It is idempotent; a pending turn is
// cancelled and resolves to the default action.
func (r *Registry) UnregisterAgent(id string) {
	r.mu.Lock()
	a, ok := r.agents[id]
	if ok {
		delete(r.agents, id)
		if a.playerID != "" {
			delete(r.byPlayer, a.playerID)
		}
	}
	pt := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()

	if pt != nil {
		pt.resolve(defaultDecision(pt.view, "agent unregistered"), false)
	}
	if ok {
		r.logger.Info("agent unregistered", "agent", id)
	}
}

// GetAgent returns the public snapshot of one agent.
func (r *Registry) GetAgent(id string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return a.info(), nil
}

// GetAgentByPlayerID resolves the agent seated as playerID.
func (r *Registry) GetAgentByPlayerID(playerID string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPlayer[playerID]
	if !ok {
		return Info{}, fmt.Errorf("%w: no agent for player %s", ErrUnknownAgent, playerID)
	}
	return r.agents[id].info(), nil
}

// AgentIDForPlayer reports whether playerID belongs to a registered agent.
func (r *Registry) AgentIDForPlayer(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPlayer[playerID]
	return id, ok
}

// WalletFor returns the wallet address bound to playerID. Players without a
// registered wallet (bots) return false.
func (r *Registry) WalletFor(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPlayer[playerID]
	if !ok {
		return "", false
	}
	addr := r.agents[id].walletAddress
	return addr, addr != ""
}

// ListAgents returns every registered agent sorted by name then id.
func (r *Registry) ListAgents() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.agents))
	for _, a := range r.agents {
		infos = append(infos, a.info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// SeatAgent binds an agent to the player id and table it plays as. The
// binding lasts until UnseatAgent or unregistration.
func (r *Registry) SeatAgent(agentID, playerID, tableID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	if other, taken := r.byPlayer[playerID]; taken && other != agentID {
		return fmt.Errorf("player id %s is already bound to agent %s", playerID, other)
	}
	if a.playerID != "" && a.playerID != playerID {
		delete(r.byPlayer, a.playerID)
	}
	a.playerID = playerID
	a.tableID = tableID
	r.byPlayer[playerID] = agentID
	r.logger.Debug("agent seated", "agent", agentID, "player", playerID, "table", tableID)
	return nil
}

// UnseatAgent clears an agent's seat binding.
func (r *Registry) UnseatAgent(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return
	}
	if a.playerID != "" {
		delete(r.byPlayer, a.playerID)
	}
	a.playerID = ""
	a.tableID = ""
}

// RequestDecision obtains one decision from an agent. The same contract
// covers all three transports: the returned decision is always legal for the
// view (unknown or unavailable actions are demoted through the fallback
// cascade and amounts are clamped), and the call never outlives the
// configured action timeout.
func (r *Registry) RequestDecision(ctx context.Context, agentID string, view game.PlayerView) (game.Decision, error) {
	r.mu.Lock()
	a, ok := r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		return game.Decision{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}

	if a.mode == ModeInternal {
		decide := a.decide
		r.mu.Unlock()
		return r.decideInProcess(ctx, a, decide, view), nil
	}

	timeout := time.Duration(r.cfg.ActionTimeoutMs) * time.Millisecond
	pt := newPendingTurn(agentID, view, r.clock.Now(), timeout)
	if old := r.pending[agentID]; old != nil {
		// A newer turn supersedes an unresolved one; the old waiter gets
		// the default so it cannot block forever.
		old.resolve(defaultDecision(old.view, "superseded by a new turn"), false)
	}
	r.pending[agentID] = pt
	pt.arm(r.clock, func() {
		if pt.resolve(defaultDecision(view, timeoutReasoning), true) {
			r.logger.Warn("turn timed out", "agent", agentID, "player", view.PlayerID)
		}
	})
	mode := a.mode
	callbackURL := a.callbackURL
	r.mu.Unlock()

	if mode == ModeCallback {
		go r.pushTurn(ctx, agentID, callbackURL, pt)
	}

	started := r.clock.Now()
	select {
	case <-pt.done:
	case <-ctx.Done():
		pt.resolve(defaultDecision(view, "request cancelled"), false)
	}
	<-pt.done

	// The resolved turn stays in the map until the next turn replaces it,
	// so a duplicate submission is told the turn already resolved rather
	// than that no turn exists.
	a.latency.record(r.clock.Now().Sub(started))
	dec, _ := pt.result()
	return dec, nil
}

// decideInProcess invokes an internal agent synchronously. Panics and errors
// degrade to the default action so a broken agent cannot stall its table.
func (r *Registry) decideInProcess(ctx context.Context, a *agent, decide DecideFunc, view game.PlayerView) game.Decision {
	timeout := time.Duration(r.cfg.ActionTimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := r.clock.Now()
	dec, err := func() (dec game.Decision, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("agent panicked: %v", p)
			}
		}()
		return decide(ctx, view)
	}()
	a.latency.record(r.clock.Now().Sub(started))

	if err != nil {
		r.logger.Warn("internal agent failed, using default action",
			"agent", a.id, "error", err)
		return defaultDecision(view, "agent error")
	}
	return normalizeDecision(view, dec)
}

// pushTurn runs the push protocol for one pending turn. Whoever resolves
// first wins; a response that lost to the deadline is discarded.
func (r *Registry) pushTurn(ctx context.Context, agentID, url string, pt *pendingTurn) {
	req := actionRequest{
		Type:       "action_request",
		AgentID:    agentID,
		TableID:    pt.view.TableID,
		HandNumber: pt.view.HandNumber,
		PlayerView: pt.view,
		TimeoutMs:  pt.timeoutMs,
	}

	resp, err := r.push.requestDecision(ctx, url, req)
	if err != nil {
		// The armed deadline resolves the turn with the default action.
		r.logger.Warn("callback failed", "agent", agentID, "error", err)
		return
	}
	pt.resolve(r.coerceResponse(pt.view, resp), false)
}

// PendingTurn returns the poll payload for an agent: the sanitised view and
// deadline when a turn is waiting, otherwise a waiting status.
func (r *Registry) PendingTurn(agentID string) (TurnSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return TurnSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}

	pt := r.pending[agentID]
	if pt == nil || pt.isResolved() {
		return TurnSnapshot{
			HasTurn:  false,
			Status:   "waiting",
			PlayerID: a.playerID,
			TableID:  a.tableID,
		}, nil
	}

	view := pt.view
	remaining := pt.deadline.Sub(r.clock.Now()).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	return TurnSnapshot{
		HasTurn:         true,
		PlayerView:      &view,
		TimeoutMs:       pt.timeoutMs,
		TurnStartedAtMs: pt.startedAt.UnixMilli(),
		RemainingMs:     remaining,
	}, nil
}

// SubmitDecision resolves a polling agent's pending turn. Submissions after
// the deadline or a second submission for the same turn are rejected.
func (r *Registry) SubmitDecision(agentID, action string, amount int, reasoning string) error {
	r.mu.Lock()
	_, ok := r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	pt := r.pending[agentID]
	r.mu.Unlock()

	if pt == nil {
		return ErrNoPendingTurn
	}

	dec := r.coerceResponse(pt.view, actionResponse{Action: action, Amount: amount, Reasoning: reasoning})
	if !pt.resolve(dec, false) {
		return ErrTurnResolved
	}
	return nil
}

// coerceResponse maps a wire response into a legal decision: the action
// string is parsed (unknown strings take the default action) and the result
// is normalized against the view.
func (r *Registry) coerceResponse(view game.PlayerView, resp actionResponse) game.Decision {
	action, err := game.ParseAction(resp.Action)
	if err != nil {
		return defaultDecision(view, resp.Reasoning)
	}
	return normalizeDecision(view, game.Decision{
		Action:    action,
		Amount:    resp.Amount,
		Reasoning: resp.Reasoning,
	})
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents)
}

// ActionTimeout returns the per-turn decision deadline.
func (r *Registry) ActionTimeout() time.Duration {
	return time.Duration(r.cfg.ActionTimeoutMs) * time.Millisecond
}
