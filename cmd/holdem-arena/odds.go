package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	rand "math/rand/v2"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/evaluator"
	"github.com/lox/holdem-arena/internal/randutil"
)

// OddsCmd estimates showdown equity for fully known hole cards, completing
// the board by Monte Carlo sampling.
type OddsCmd struct {
	Hands         []string `arg:"" required:"" help:"Hole cards per player, e.g. 'AcKd' 'QhJs'"`
	Board         string   `short:"b" help:"Known community cards, e.g. 'Td7s8h'"`
	Iterations    int      `short:"i" default:"100000" help:"Monte Carlo iterations"`
	Possibilities bool     `short:"p" help:"Show hand category frequencies"`
	Seed          *int64   `help:"Deterministic RNG seed (optional)"`
}

func (c *OddsCmd) Run() error {
	hands, err := parseHoleCards(c.Hands)
	if err != nil {
		return err
	}

	var board []deck.Card
	if c.Board != "" {
		board, err = deck.ParseCards(c.Board)
		if err != nil {
			return fmt.Errorf("parse board: %w", err)
		}
		if len(board) > 5 {
			return fmt.Errorf("board has %d cards, the maximum is 5", len(board))
		}
	}
	if err := checkDuplicates(hands, board); err != nil {
		return err
	}

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}
	rng := randutil.New(seed)

	start := time.Now()
	results, err := simulateShowdown(hands, board, c.Iterations, rng)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	printOdds(os.Stdout, results, board, c.Iterations, elapsed, c.Possibilities)
	return nil
}

// parseHoleCards parses each argument as exactly two cards.
func parseHoleCards(args []string) ([][]deck.Card, error) {
	hands := make([][]deck.Card, 0, len(args))
	for i, arg := range args {
		cards, err := deck.ParseCards(arg)
		if err != nil {
			return nil, fmt.Errorf("hand %d: %w", i+1, err)
		}
		if len(cards) != 2 {
			return nil, fmt.Errorf("hand %d: need exactly 2 cards, got %d", i+1, len(cards))
		}
		hands = append(hands, cards)
	}
	return hands, nil
}

// checkDuplicates rejects any card appearing twice across hands and board.
func checkDuplicates(hands [][]deck.Card, board []deck.Card) error {
	var seen evaluator.CardSet
	mark := func(card deck.Card) error {
		if seen.Contains(card) {
			return fmt.Errorf("duplicate card: %s", card)
		}
		seen.Add(card)
		return nil
	}

	for _, card := range board {
		if err := mark(card); err != nil {
			return err
		}
	}
	for i, hand := range hands {
		for _, card := range hand {
			if err := mark(card); err != nil {
				return fmt.Errorf("hand %d: %w", i+1, err)
			}
		}
	}
	return nil
}

// showdownResult tallies one player's Monte Carlo outcomes.
type showdownResult struct {
	Hole       []deck.Card
	Wins       int
	Ties       int
	Total      int
	Categories map[evaluator.Category]int
}

// simulateShowdown completes the board iterations times and scores every
// hand against the others. Wins are outright; a chopped pot counts as a tie
// for each player with the best hand.
func simulateShowdown(hands [][]deck.Card, board []deck.Card, iterations int, rng *rand.Rand) ([]showdownResult, error) {
	if len(hands) == 0 {
		return nil, fmt.Errorf("need at least one hand")
	}
	if iterations <= 0 {
		iterations = evaluator.DefaultIterations
	}

	results := make([]showdownResult, len(hands))
	for i := range results {
		results[i] = showdownResult{
			Hole:       hands[i],
			Total:      iterations,
			Categories: make(map[evaluator.Category]int),
		}
	}

	var used evaluator.CardSet
	for _, card := range board {
		used.Add(card)
	}
	for _, hand := range hands {
		for _, card := range hand {
			used.Add(card)
		}
	}
	available := make([]deck.Card, 0, 52)
	for suit := deck.Spades; suit <= deck.Clubs; suit++ {
		for rank := deck.Two; rank <= deck.Ace; rank++ {
			card := deck.NewCard(suit, rank)
			if !used.Contains(card) {
				available = append(available, card)
			}
		}
	}

	needed := 5 - len(board)
	if needed > len(available) {
		return nil, fmt.Errorf("not enough cards left to complete the board")
	}

	values := make([]evaluator.HandValue, len(hands))
	cards := make([]deck.Card, 7)

	for iter := 0; iter < iterations; iter++ {
		// Partial Fisher-Yates: the first needed entries complete the board.
		for j := 0; j < needed; j++ {
			k := j + rng.IntN(len(available)-j)
			available[j], available[k] = available[k], available[j]
		}
		runout := available[:needed]

		for i, hand := range hands {
			copy(cards[:2], hand)
			copy(cards[2:], board)
			copy(cards[2+len(board):], runout)

			value, err := evaluator.Evaluate(cards)
			if err != nil {
				return nil, fmt.Errorf("evaluate hand %d: %w", i+1, err)
			}
			values[i] = value
			results[i].Categories[value.Category]++
		}

		best := values[0]
		for _, v := range values[1:] {
			if evaluator.Compare(v, best) > 0 {
				best = v
			}
		}
		winners := 0
		for _, v := range values {
			if evaluator.Compare(v, best) == 0 {
				winners++
			}
		}
		for i, v := range values {
			if evaluator.Compare(v, best) != 0 {
				continue
			}
			if winners == 1 {
				results[i].Wins++
			} else {
				results[i].Ties++
			}
		}
	}

	return results, nil
}

func printOdds(out io.Writer, results []showdownResult, board []deck.Card, iterations int, elapsed time.Duration, possibilities bool) {
	if len(board) > 0 {
		fmt.Fprintf(out, "%s\n%s\n\n", headerStyle.Render("board"), formatCards(board))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n",
		headerStyle.Render("hand"),
		headerStyle.Render("win"),
		headerStyle.Render("tie"))
	for _, r := range results {
		winPct := float64(r.Wins) / float64(r.Total) * 100
		tiePct := float64(r.Ties) / float64(r.Total) * 100
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			handStyle.Render(formatCards(r.Hole)),
			winStyle.Render(fmt.Sprintf("%.1f%%", winPct)),
			tieStyle.Render(fmt.Sprintf("%.1f%%", tiePct)))
	}
	w.Flush()

	if possibilities {
		fmt.Fprintln(out)
		printPossibilities(out, results)
	}

	fmt.Fprintf(out, "\n%d iterations in %v\n", iterations, elapsed.Truncate(time.Millisecond))
}

// printPossibilities shows how often each hand lands in each category,
// strongest categories first.
func printPossibilities(out io.Writer, results []showdownResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "%s", categoryStyle.Render("hand"))
	for _, r := range results {
		fmt.Fprintf(w, "\t%s", handStyle.Render(formatCards(r.Hole)))
	}
	fmt.Fprintln(w)

	for cat := evaluator.RoyalFlush; cat >= evaluator.HighCard; cat-- {
		shown := false
		for _, r := range results {
			if r.Categories[cat] > 0 {
				shown = true
				break
			}
		}
		if !shown {
			continue
		}

		fmt.Fprintf(w, "%s", categoryStyle.Render(cat.String()))
		for _, r := range results {
			count := r.Categories[cat]
			if count == 0 {
				fmt.Fprintf(w, "\t%s", percentStyle.Render("."))
				continue
			}
			pct := float64(count) / float64(r.Total) * 100
			fmt.Fprintf(w, "\t%s", percentStyle.Render(fmt.Sprintf("%.1f%%", pct)))
		}
		fmt.Fprintln(w)
	}

	w.Flush()
}

func formatCards(cards []deck.Card) string {
	parts := make([]string, 0, len(cards))
	for _, card := range cards {
		parts = append(parts, card.String())
	}
	return strings.Join(parts, " ")
}
