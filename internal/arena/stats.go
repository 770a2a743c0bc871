package arena

import (
	"math"
	"sort"
	"sync"

	"github.com/lox/holdem-arena/internal/game"
)

// PlayerStanding is one leaderboard row.
type PlayerStanding struct {
	PlayerID  string  `json:"playerId"`
	Name      string  `json:"name"`
	Hands     int     `json:"hands"`
	Wins      int     `json:"wins"`
	WinRate   float64 `json:"winRate"`
	NetChips  int     `json:"netChips"`
	BBPerHand float64 `json:"bbPerHand"`
	BB100     float64 `json:"bb100"`
	StdDevBB  float64 `json:"stdDevBB"`
}

// Leaderboard sort keys.
const (
	SortByWinRate = "winRate"
	SortByProfit  = "profit"
	SortByHands   = "hands"
)

// Stats accumulates per-player results across hands. Net results are kept
// as running sums in big blinds so mean and variance are O(1) to read.
type Stats struct {
	mu       sync.RWMutex
	bigBlind int
	hands    int
	players  map[string]*playerTally
}

type playerTally struct {
	name   string
	hands  int
	wins   int
	net    int
	sumBB  float64
	sumBB2 float64
}

// NewStats creates a tracker normalising chip amounts by bigBlind.
func NewStats(bigBlind int) *Stats {
	if bigBlind <= 0 {
		bigBlind = game.DefaultBigBlind
	}
	return &Stats{
		bigBlind: bigBlind,
		players:  make(map[string]*playerTally),
	}
}

// RegisterPlayer names a player before any hand is recorded.
func (s *Stats) RegisterPlayer(playerID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tallyFor(playerID).name = name
}

// RecordHand folds one completed hand into the tallies. A player's net for
// the hand is winnings minus contribution.
func (s *Stats) RecordHand(result game.HandResult) {
	wonBy := make(map[string]int, len(result.Winners))
	for _, w := range result.Winners {
		wonBy[w.PlayerID] += w.Amount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hands++
	for playerID, contributed := range result.Contributions {
		tally := s.tallyFor(playerID)
		won := wonBy[playerID]
		net := won - contributed
		netBB := float64(net) / float64(s.bigBlind)

		tally.hands++
		tally.net += net
		tally.sumBB += netBB
		tally.sumBB2 += netBB * netBB
		if won > 0 {
			tally.wins++
		}
	}
}

// Hands returns the total number of recorded hands.
func (s *Stats) Hands() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hands
}

// Standing returns one player's row.
func (s *Stats) Standing(playerID string) (PlayerStanding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tally, ok := s.players[playerID]
	if !ok {
		return PlayerStanding{}, false
	}
	return s.standingLocked(playerID, tally), true
}

// Standings returns the leaderboard ordered by sortBy (winRate, profit or
// hands; winRate when empty or unknown). Ties break on hands then ID so the
// order is stable.
func (s *Stats) Standings(sortBy string) []PlayerStanding {
	s.mu.RLock()
	rows := make([]PlayerStanding, 0, len(s.players))
	for playerID, tally := range s.players {
		rows = append(rows, s.standingLocked(playerID, tally))
	}
	s.mu.RUnlock()

	less := func(i, j int) bool { return rows[i].WinRate > rows[j].WinRate }
	switch sortBy {
	case SortByProfit:
		less = func(i, j int) bool { return rows[i].NetChips > rows[j].NetChips }
	case SortByHands:
		less = func(i, j int) bool { return rows[i].Hands > rows[j].Hands }
	}
	sort.Slice(rows, func(i, j int) bool {
		if less(i, j) != less(j, i) {
			return less(i, j)
		}
		if rows[i].Hands != rows[j].Hands {
			return rows[i].Hands > rows[j].Hands
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	return rows
}

func (s *Stats) standingLocked(playerID string, tally *playerTally) PlayerStanding {
	row := PlayerStanding{
		PlayerID: playerID,
		Name:     tally.name,
		Hands:    tally.hands,
		Wins:     tally.wins,
		NetChips: tally.net,
	}
	if row.Name == "" {
		row.Name = playerID
	}
	if tally.hands > 0 {
		row.WinRate = float64(tally.wins) / float64(tally.hands)
		row.BBPerHand = tally.sumBB / float64(tally.hands)
		row.BB100 = row.BBPerHand * 100
	}
	if tally.hands >= 2 {
		n := float64(tally.hands)
		mean := tally.sumBB / n
		variance := (tally.sumBB2 - n*mean*mean) / (n - 1)
		if variance > 0 {
			row.StdDevBB = math.Sqrt(variance)
		}
	}
	return row
}

func (s *Stats) tallyFor(playerID string) *playerTally {
	tally, ok := s.players[playerID]
	if !ok {
		tally = &playerTally{}
		s.players[playerID] = tally
	}
	return tally
}
