package game

import (
	"reflect"
	"testing"
)

func TestCalculateSidePots(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		contribs []PotContribution
		want     []SidePot
	}{
		{
			name:     "no contributions",
			contribs: nil,
			want:     nil,
		},
		{
			name: "single level",
			contribs: []PotContribution{
				{PlayerID: "a", Amount: 100},
				{PlayerID: "b", Amount: 100},
			},
			want: []SidePot{
				{Amount: 200, Eligible: []string{"a", "b"}},
			},
		},
		{
			name: "three way all in at different levels",
			contribs: []PotContribution{
				{PlayerID: "a", Amount: 300},
				{PlayerID: "b", Amount: 200},
				{PlayerID: "c", Amount: 100},
			},
			want: []SidePot{
				{Amount: 300, Eligible: []string{"a", "b", "c"}},
				{Amount: 200, Eligible: []string{"a", "b"}},
				{Amount: 100, Eligible: []string{"a"}},
			},
		},
		{
			name: "uncalled excess forms a singleton pot",
			contribs: []PotContribution{
				{PlayerID: "a", Amount: 500},
				{PlayerID: "b", Amount: 300},
			},
			want: []SidePot{
				{Amount: 600, Eligible: []string{"a", "b"}},
				{Amount: 200, Eligible: []string{"a"}},
			},
		},
		{
			name: "folded seat contributes dead money below the call level",
			contribs: []PotContribution{
				{PlayerID: "a", Amount: 200},
				{PlayerID: "b", Amount: 200},
				{PlayerID: "c", Amount: 50, Folded: true},
			},
			want: []SidePot{
				{Amount: 450, Eligible: []string{"a", "b"}},
			},
		},
		{
			name: "folded seat at a shared level stays ineligible",
			contribs: []PotContribution{
				{PlayerID: "a", Amount: 300},
				{PlayerID: "b", Amount: 300},
				{PlayerID: "c", Amount: 150, Folded: true},
			},
			want: []SidePot{
				{Amount: 750, Eligible: []string{"a", "b"}},
			},
		},
		{
			name: "blinds abandoned to the big blind",
			contribs: []PotContribution{
				{PlayerID: "sb", Amount: 5, Folded: true},
				{PlayerID: "bb", Amount: 10},
			},
			want: []SidePot{
				{Amount: 15, Eligible: []string{"bb"}},
			},
		},
		{
			name: "levels without an eligible winner are dropped",
			// Unreachable from live play: a lone max contributor who folds
			// means the hand already ended by fold win, which bypasses the
			// partition entirely.
			contribs: []PotContribution{
				{PlayerID: "a", Amount: 100, Folded: true},
				{PlayerID: "b", Amount: 50},
			},
			want: []SidePot{
				{Amount: 100, Eligible: []string{"b"}},
			},
		},
		{
			name: "zero contributions are ignored",
			contribs: []PotContribution{
				{PlayerID: "a", Amount: 0},
				{PlayerID: "b", Amount: 40},
				{PlayerID: "c", Amount: 40},
			},
			want: []SidePot{
				{Amount: 80, Eligible: []string{"b", "c"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := CalculateSidePots(tt.contribs)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CalculateSidePots() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCalculateSidePotsEligibilityShrinks(t *testing.T) {
	t.Parallel()

	contribs := []PotContribution{
		{PlayerID: "a", Amount: 400},
		{PlayerID: "b", Amount: 250},
		{PlayerID: "c", Amount: 100},
		{PlayerID: "d", Amount: 60, Folded: true},
	}
	pots := CalculateSidePots(contribs)

	if got := PotTotal(pots); got != 810 {
		t.Fatalf("PotTotal = %d, want 810", got)
	}
	for i := 1; i < len(pots); i++ {
		prev := pots[i-1].Eligible
		for _, pid := range pots[i].Eligible {
			found := false
			for _, p := range prev {
				if p == pid {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("pot %d eligible %q missing from pot %d", i, pid, i-1)
			}
		}
		if len(pots[i].Eligible) >= len(prev) {
			t.Errorf("pot %d eligible set did not shrink: %v -> %v", i, prev, pots[i].Eligible)
		}
	}
}

func TestMergeAdjacentPots(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pots []SidePot
		want []SidePot
	}{
		{
			name: "consecutive identical sets merge",
			pots: []SidePot{
				{Amount: 100, Eligible: []string{"a", "b"}},
				{Amount: 50, Eligible: []string{"a", "b"}},
				{Amount: 25, Eligible: []string{"a"}},
			},
			want: []SidePot{
				{Amount: 150, Eligible: []string{"a", "b"}},
				{Amount: 25, Eligible: []string{"a"}},
			},
		},
		{
			name: "non-adjacent identical sets stay separate",
			pots: []SidePot{
				{Amount: 100, Eligible: []string{"a", "b"}},
				{Amount: 50, Eligible: []string{"a"}},
				{Amount: 25, Eligible: []string{"a", "b"}},
			},
			want: []SidePot{
				{Amount: 100, Eligible: []string{"a", "b"}},
				{Amount: 50, Eligible: []string{"a"}},
				{Amount: 25, Eligible: []string{"a", "b"}},
			},
		},
		{
			name: "single pot unchanged",
			pots: []SidePot{
				{Amount: 60, Eligible: []string{"a"}},
			},
			want: []SidePot{
				{Amount: 60, Eligible: []string{"a"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := make([]SidePot, len(tt.pots))
			for i, p := range tt.pots {
				in[i] = p.clone()
			}
			got := mergeAdjacentPots(in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("mergeAdjacentPots() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
