package bot

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/evaluator"
	"github.com/lox/holdem-arena/internal/game"
)

// Archetype names a fixed play style.
type Archetype string

const (
	TightPassive    Archetype = "TIGHT_PASSIVE"
	TightAggressive Archetype = "TIGHT_AGGRESSIVE"
	LoosePassive    Archetype = "LOOSE_PASSIVE"
	LooseAggressive Archetype = "LOOSE_AGGRESSIVE"
	Random          Archetype = "RANDOM"
)

// Archetypes is the round-robin assignment order for arena bots.
var Archetypes = []Archetype{
	TightPassive,
	TightAggressive,
	LoosePassive,
	LooseAggressive,
	Random,
}

// ForIndex maps a bot index to its archetype.
func ForIndex(i int) Archetype {
	return Archetypes[i%len(Archetypes)]
}

// equityIterations is the Monte Carlo budget the tight archetypes spend per
// postflop decision. Kept modest so simulations stay fast.
const equityIterations = 300

// Decider plays one archetype. It satisfies the registry's DecideFunc shape
// so bots can be addressed like any other agent.
type Decider struct {
	archetype Archetype
	rng       *rand.Rand
	logger    *log.Logger
}

// Option adjusts a decider at construction time.
type Option func(*Decider)

// WithLogger injects the decider's logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Decider) { d.logger = logger }
}

// New creates a decider for the archetype. The rng drives both the weighted
// action draw and raise sizing, so a seeded rng reproduces a bot's play.
func New(archetype Archetype, rng *rand.Rand, opts ...Option) *Decider {
	d := &Decider{archetype: archetype, rng: rng}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.New(io.Discard)
	}
	d.logger = d.logger.WithPrefix("bot").With("archetype", archetype)
	return d
}

// Archetype returns the decider's play style.
func (d *Decider) Archetype() Archetype {
	return d.archetype
}

// Decide picks an action for the view: sample from the archetype's weight
// vector for the phase, demote through the fallback cascade if the draw is
// not on offer, then size any raise. Never returns an error; a view with no
// turn folds.
func (d *Decider) Decide(_ context.Context, view game.PlayerView) (game.Decision, error) {
	if len(view.ValidActions) == 0 {
		return game.Decision{Action: game.Fold, Reasoning: "no turn to act on"}, nil
	}

	var thoughts []string
	w := weightsFor(d.archetype, view.Phase)

	// Tight styles earn their name by reading the hand: strong holdings
	// shift weight toward calling and raising, weak ones toward folding.
	if d.archetype == TightPassive || d.archetype == TightAggressive {
		w = d.adjustForStrength(w, view, &thoughts)
	}

	action := d.drawAction(w, &thoughts)

	// Folding a free option is pure waste.
	if action == game.Fold && view.CallAmount == 0 && actionOffered(view.ValidActions, game.Check) {
		thoughts = append(thoughts, "nothing to call, checking instead of folding")
		action = game.Check
	}

	// When continuing costs the whole stack, a drawn call or raise means
	// committing it.
	if (action == game.Call || action == game.Raise) &&
		!actionOffered(view.ValidActions, action) &&
		actionOffered(view.ValidActions, game.AllIn) {
		thoughts = append(thoughts, "committing the stack")
		action = game.AllIn
	}

	action = cascade(action, view.ValidActions, &thoughts)

	dec := game.Decision{Action: action}
	switch action {
	case game.Call:
		dec.Amount = view.CallAmount
	case game.Raise:
		dec.Amount = d.raiseAmount(view, &thoughts)
	case game.AllIn:
		dec.Amount = view.Stack
	}
	dec.Reasoning = strings.Join(thoughts, ". ")

	d.logger.Debug("decision",
		"player", view.PlayerID,
		"phase", view.Phase,
		"action", dec.Action,
		"amount", dec.Amount)
	return dec, nil
}

// adjustForStrength scales the weight vector by how the hand actually looks:
// percentile tables preflop, sampled equity postflop.
func (d *Decider) adjustForStrength(w weights, view game.PlayerView, thoughts *[]string) weights {
	if len(view.HoleCards) != 2 {
		return w
	}

	var strength float64
	if view.Phase == game.PhasePreflop {
		strength = deck.HandPercentile(view.HoleCards)
		*thoughts = append(*thoughts, fmt.Sprintf("top %.0f%% starting hand", (1-strength)*100))
	} else {
		opponents := liveOpponents(view)
		strength = evaluator.EstimateEquity(view.HoleCards, view.CommunityCards, opponents, equityIterations, d.rng)
		*thoughts = append(*thoughts, fmt.Sprintf("equity %.0f%% against %d", strength*100, opponents))
	}

	switch {
	case strength >= 0.80:
		*thoughts = append(*thoughts, "premium holding")
		w.fold *= 0.05
		w.raise *= 3.0
		w.call *= 1.5
	case strength >= 0.60:
		*thoughts = append(*thoughts, "strong holding")
		w.fold *= 0.3
		w.raise *= 1.8
		w.call *= 1.3
	case strength >= 0.40:
		*thoughts = append(*thoughts, "playable holding")
		w.fold *= 0.8
	case strength >= 0.20:
		*thoughts = append(*thoughts, "marginal holding")
		w.fold *= 1.5
		w.raise *= 0.4
	default:
		*thoughts = append(*thoughts, "weak holding")
		w.fold *= 2.5
		w.raise *= 0.1
		w.call *= 0.4
	}

	// A profitable price to continue tempers the folds.
	if view.CallAmount > 0 && evaluator.CallIsProfitable(strength, view.CallAmount, view.PotTotal) {
		*thoughts = append(*thoughts, "getting the right price")
		w.fold *= 0.6
		w.call *= 1.4
	}
	return w
}

// drawAction samples one action from the weight vector.
func (d *Decider) drawAction(w weights, thoughts *[]string) game.Action {
	total := w.fold + w.check + w.call + w.raise
	if total <= 0 {
		return game.Check
	}

	r := d.rng.Float64() * total
	switch {
	case r < w.fold:
		*thoughts = append(*thoughts, "giving up on this one")
		return game.Fold
	case r < w.fold+w.check:
		*thoughts = append(*thoughts, "taking the free card")
		return game.Check
	case r < w.fold+w.check+w.call:
		*thoughts = append(*thoughts, "calling to continue")
		return game.Call
	default:
		*thoughts = append(*thoughts, "putting in a raise")
		return game.Raise
	}
}

// raiseAmount sizes a raise per archetype, clamped to the offered bounds.
func (d *Decider) raiseAmount(view game.PlayerView, thoughts *[]string) int {
	lo, hi := view.MinRaiseAmount, view.MaxRaiseAmount
	if hi < lo {
		hi = lo
	}

	var target int
	switch d.archetype {
	case TightPassive, LoosePassive:
		*thoughts = append(*thoughts, "minimum raise")
		target = lo
	case TightAggressive:
		// Pot-sized: raise to the current bet plus the pot.
		*thoughts = append(*thoughts, "pot-sized raise")
		target = view.CurrentBet + view.PotTotal
	case LooseAggressive:
		factor := 1.5 + d.rng.Float64()*1.5
		*thoughts = append(*thoughts, fmt.Sprintf("%.1fx pot pressure", factor))
		target = view.CurrentBet + int(factor*float64(view.PotTotal))
	default:
		target = lo + d.rng.IntN(hi-lo+1)
		*thoughts = append(*thoughts, "sizing at random")
	}

	if target < lo {
		target = lo
	}
	if target > hi {
		target = hi
	}
	return target
}

// cascade demotes an unavailable action through its substitution chain.
// FOLD terminates every chain.
func cascade(action game.Action, valid []game.ValidAction, thoughts *[]string) game.Action {
	chains := map[game.Action][]game.Action{
		game.Raise: {game.Raise, game.Call, game.Check, game.Fold},
		game.AllIn: {game.AllIn, game.Call, game.Check, game.Fold},
		game.Call:  {game.Call, game.Check, game.Fold},
		game.Check: {game.Check, game.Call, game.Fold},
		game.Fold:  {game.Fold},
	}
	for _, candidate := range chains[action] {
		if actionOffered(valid, candidate) {
			if candidate != action {
				*thoughts = append(*thoughts, fmt.Sprintf("%s not available, %s instead", action, candidate))
			}
			return candidate
		}
	}
	return game.Fold
}

func actionOffered(valid []game.ValidAction, action game.Action) bool {
	for _, va := range valid {
		if va.Action == action {
			return true
		}
	}
	return false
}

// liveOpponents counts seats still contesting the pot, capped at what the
// equity estimator supports.
func liveOpponents(view game.PlayerView) int {
	n := 0
	for _, seat := range view.Seats {
		if seat.Index == view.SeatIndex {
			continue
		}
		if seat.Status == game.SeatActive || seat.Status == game.SeatAllIn {
			n++
		}
	}
	if n < 1 {
		n = 1
	}
	if n > evaluator.MaxOpponents {
		n = evaluator.MaxOpponents
	}
	return n
}
