package bot

import "github.com/lox/holdem-arena/internal/game"

// weights is one phase's action-weight vector. Values are relative; the draw
// normalises over the sum.
type weights struct {
	fold, check, call, raise float64
}

// phaseWeights carries a vector per betting street.
type phaseWeights struct {
	preflop, flop, turn, river weights
}

func (pw phaseWeights) forPhase(phase game.Phase) weights {
	switch phase {
	case game.PhasePreflop:
		return pw.preflop
	case game.PhaseFlop:
		return pw.flop
	case game.PhaseTurn:
		return pw.turn
	case game.PhaseRiver:
		return pw.river
	}
	return pw.flop
}

var archetypeWeights = map[Archetype]phaseWeights{
	// Waits for real hands, then plays them quietly.
	TightPassive: {
		preflop: weights{0.55, 0.15, 0.25, 0.05},
		flop:    weights{0.35, 0.30, 0.30, 0.05},
		turn:    weights{0.40, 0.30, 0.25, 0.05},
		river:   weights{0.40, 0.35, 0.22, 0.03},
	},
	// Waits for real hands and bets them hard.
	TightAggressive: {
		preflop: weights{0.50, 0.08, 0.17, 0.25},
		flop:    weights{0.30, 0.15, 0.25, 0.30},
		turn:    weights{0.30, 0.18, 0.24, 0.28},
		river:   weights{0.32, 0.20, 0.24, 0.24},
	},
	// The calling station.
	LoosePassive: {
		preflop: weights{0.08, 0.22, 0.60, 0.10},
		flop:    weights{0.08, 0.30, 0.52, 0.10},
		turn:    weights{0.10, 0.30, 0.52, 0.08},
		river:   weights{0.12, 0.34, 0.48, 0.06},
	},
	// Pressure on every street.
	LooseAggressive: {
		preflop: weights{0.05, 0.05, 0.30, 0.60},
		flop:    weights{0.08, 0.10, 0.27, 0.55},
		turn:    weights{0.10, 0.12, 0.28, 0.50},
		river:   weights{0.10, 0.15, 0.30, 0.45},
	},
	// Coin flips all the way down.
	Random: {
		preflop: weights{0.25, 0.25, 0.25, 0.25},
		flop:    weights{0.25, 0.25, 0.25, 0.25},
		turn:    weights{0.25, 0.25, 0.25, 0.25},
		river:   weights{0.25, 0.25, 0.25, 0.25},
	},
}

func weightsFor(archetype Archetype, phase game.Phase) weights {
	pw, ok := archetypeWeights[archetype]
	if !ok {
		pw = archetypeWeights[Random]
	}
	return pw.forPhase(phase)
}
