package agent

import (
	"github.com/lox/holdem-arena/internal/game"
)

// fallbackChains order the substitutes tried when an agent picks an action
// the table is not offering. Aggressive picks degrade through CALL, passive
// picks prefer the free option first. FOLD terminates every chain.
var fallbackChains = map[game.Action][]game.Action{
	game.Raise: {game.Raise, game.Call, game.Check, game.Fold},
	game.AllIn: {game.AllIn, game.Call, game.Check, game.Fold},
	game.Call:  {game.Call, game.Check, game.Fold},
	game.Check: {game.Check, game.Call, game.Fold},
	game.Fold:  {game.Fold},
}

func actionOffered(valid []game.ValidAction, action game.Action) bool {
	for _, va := range valid {
		if va.Action == action {
			return true
		}
	}
	return false
}

// normalizeDecision maps whatever an agent sent into a decision the table
// will accept: unavailable actions walk their fallback chain and amounts are
// clamped into the offered bounds.
func normalizeDecision(view game.PlayerView, dec game.Decision) game.Decision {
	chain, ok := fallbackChains[dec.Action]
	if !ok {
		chain = fallbackChains[game.Fold]
	}

	chosen := game.Fold
	for _, candidate := range chain {
		if actionOffered(view.ValidActions, candidate) {
			chosen = candidate
			break
		}
	}

	out := game.Decision{Action: chosen, Reasoning: dec.Reasoning}
	switch chosen {
	case game.Call:
		out.Amount = view.CallAmount
	case game.Raise:
		out.Amount = clampAmount(dec.Amount, view.MinRaiseAmount, view.MaxRaiseAmount)
	case game.AllIn:
		out.Amount = view.Stack
	}
	return out
}

// defaultDecision is what a turn resolves to when the agent never answers:
// take the free option if there is one, otherwise fold.
func defaultDecision(view game.PlayerView, reasoning string) game.Decision {
	action := game.Fold
	if actionOffered(view.ValidActions, game.Check) {
		action = game.Check
	}
	return game.Decision{Action: action, Amount: 0, Reasoning: reasoning}
}

func clampAmount(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
