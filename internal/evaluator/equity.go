package evaluator

import (
	"context"
	rand "math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/randutil"
)

// DefaultIterations is the Monte Carlo sample count used when callers pass 0.
const DefaultIterations = 3000

// MaxOpponents bounds the multiway simulation.
const MaxOpponents = 5

// workerResult holds the tallies from one Monte Carlo worker.
type workerResult struct {
	wins         int
	ties         int
	validSamples int
}

// CardSet represents a set of cards using a bitset for fast operations.
// Each card maps to a bit: index = (rank-2)*4 + suit.
type CardSet uint64

func cardIndex(card deck.Card) int {
	return (int(card.Rank)-2)*4 + int(card.Suit)
}

// Add adds a card to the set.
func (cs *CardSet) Add(card deck.Card) {
	*cs |= 1 << cardIndex(card)
}

// Contains checks if a card is in the set.
func (cs CardSet) Contains(card deck.Card) bool {
	return cs&(1<<cardIndex(card)) != 0
}

// EstimateEquity estimates hero equity against 1-5 opponents holding random
// cards, given 0-5 known community cards. Each iteration completes the board,
// deals every opponent two cards, and scores hero against all of them: a win
// requires strictly beating every opponent; beating all but tying any counts
// as half. The return value is (wins + ties/2) / iterations.
func EstimateEquity(hole []deck.Card, board []deck.Card, opponents, iterations int, rng *rand.Rand) float64 {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if iterations >= 500 {
		return EstimateEquityParallel(hole, board, opponents, iterations, rng)
	}
	return estimateEquitySequential(hole, board, opponents, iterations, rng)
}

func estimateEquitySequential(hole []deck.Card, board []deck.Card, opponents, iterations int, rng *rand.Rand) float64 {
	available, ok := equityInputs(hole, board, opponents)
	if !ok {
		return 0.0
	}

	w := newEquityWorker(hole, board, opponents, available)
	result := w.run(iterations, rng)
	if result.validSamples == 0 {
		return 0.0
	}
	return (float64(result.wins) + float64(result.ties)/2.0) / float64(result.validSamples)
}

// EstimateEquityParallel splits the iterations across workers with
// independent rngs and merges the tallies.
func EstimateEquityParallel(hole []deck.Card, board []deck.Card, opponents, iterations int, rng *rand.Rand) float64 {
	available, ok := equityInputs(hole, board, opponents)
	if !ok {
		return 0.0
	}

	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers > iterations {
		workers = 1
	}

	perWorker := iterations / workers
	remainder := iterations % workers

	g, ctx := errgroup.WithContext(context.Background())
	results := make(chan workerResult, workers)

	for i := 0; i < workers; i++ {
		samples := perWorker
		if i < remainder {
			samples++
		}
		seed := rng.Int64()

		g.Go(func() error {
			w := newEquityWorker(hole, board, opponents, available)
			result := w.run(samples, randutil.New(seed))
			select {
			case results <- result:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	go func() {
		defer close(results)
		_ = g.Wait()
	}()

	total := workerResult{}
	for r := range results {
		total.wins += r.wins
		total.ties += r.ties
		total.validSamples += r.validSamples
	}

	if total.validSamples == 0 {
		return 0.0
	}
	return (float64(total.wins) + float64(total.ties)/2.0) / float64(total.validSamples)
}

// CallIsProfitable reports whether calling callAmount into a pot of potSize
// is +EV at the given equity: equity must exceed call / (pot + call).
func CallIsProfitable(equity float64, callAmount, potSize int) bool {
	if callAmount <= 0 {
		return true
	}
	potOdds := float64(callAmount) / float64(potSize+callAmount)
	return equity > potOdds
}

// equityInputs validates the simulation inputs and enumerates the unseen cards.
func equityInputs(hole []deck.Card, board []deck.Card, opponents int) ([]deck.Card, bool) {
	if len(hole) != 2 || len(board) > 5 {
		return nil, false
	}
	if opponents < 1 || opponents > MaxOpponents {
		return nil, false
	}

	var used CardSet
	for _, c := range hole {
		used.Add(c)
	}
	for _, c := range board {
		used.Add(c)
	}

	available := make([]deck.Card, 0, 52)
	for suit := deck.Spades; suit <= deck.Clubs; suit++ {
		for rank := deck.Two; rank <= deck.Ace; rank++ {
			card := deck.Card{Suit: suit, Rank: rank}
			if !used.Contains(card) {
				available = append(available, card)
			}
		}
	}

	if len(available) < (5-len(board))+2*opponents {
		return nil, false
	}
	return available, true
}

// equityWorker owns the per-worker scratch buffers so the hot loop is
// allocation free.
type equityWorker struct {
	hole      []deck.Card
	board     []deck.Card
	opponents int
	available []deck.Card

	scratch   []deck.Card
	heroCards []deck.Card
	oppCards  []deck.Card
}

func newEquityWorker(hole, board []deck.Card, opponents int, available []deck.Card) *equityWorker {
	return &equityWorker{
		hole:      hole,
		board:     board,
		opponents: opponents,
		available: available,
		scratch:   make([]deck.Card, len(available)),
		heroCards: make([]deck.Card, 7),
		oppCards:  make([]deck.Card, 7),
	}
}

func (w *equityWorker) run(iterations int, rng *rand.Rand) workerResult {
	var result workerResult

	boardNeeded := 5 - len(w.board)
	draw := boardNeeded + 2*w.opponents

	copy(w.heroCards[:2], w.hole)
	copy(w.heroCards[2:2+len(w.board)], w.board)
	copy(w.oppCards[2:2+len(w.board)], w.board)

	for i := 0; i < iterations; i++ {
		// Partial Fisher-Yates: the first draw entries become this
		// iteration's board completion and opponent holes.
		copy(w.scratch, w.available)
		for j := 0; j < draw; j++ {
			k := j + rng.IntN(len(w.scratch)-j)
			w.scratch[j], w.scratch[k] = w.scratch[k], w.scratch[j]
		}

		runout := w.scratch[:boardNeeded]
		copy(w.heroCards[2+len(w.board):], runout)
		copy(w.oppCards[2+len(w.board):], runout)

		heroRank := rankOf(w.heroCards)

		lost := false
		tied := false
		for opp := 0; opp < w.opponents; opp++ {
			base := boardNeeded + 2*opp
			w.oppCards[0] = w.scratch[base]
			w.oppCards[1] = w.scratch[base+1]

			switch oppRank := rankOf(w.oppCards); {
			case oppRank > heroRank:
				lost = true
			case oppRank == heroRank:
				tied = true
			}
			if lost {
				break
			}
		}

		switch {
		case lost:
		case tied:
			result.ties++
		default:
			result.wins++
		}
		result.validSamples++
	}

	return result
}
