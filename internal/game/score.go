// internal/game/score.go
package game

import (
	"github.com/jason-s-yu/playnine/internal/models"
)

// ScoreHand totals an eight-card hand laid out as four columns of two
// (indices i and i+4). A matched column scores 0, or -10 when the pair is
// hole-in-ones; an unmatched column scores the sum of its values. Matching
// pairs across columns earn shaving strokes: two columns paired on the same
// value -10, three -15, four -20.
//
// A full eight-card hand is scored on every card's value whether or not it
// is face-up, so callers flip the hand before tallying a round. A hand of
// any other length only sums its face-up values.
func ScoreHand(hand []models.Card) int {
	if len(hand) != models.HandSize {
		total := 0
		for _, c := range hand {
			if c.FaceUp {
				total += c.Value
			}
		}
		return total
	}

	total := 0
	pairCounts := make(map[int]int)
	for col := 0; col < 4; col++ {
		top, bottom := hand[col], hand[col+4]
		if top.Value == bottom.Value {
			if top.Value == -5 {
				total += -10
			}
			pairCounts[top.Value]++
			continue
		}
		total += top.Value + bottom.Value
	}

	maxSame := 0
	for _, n := range pairCounts {
		if n > maxSame {
			maxSame = n
		}
	}
	switch {
	case maxSame >= 4:
		total += -20
	case maxSame == 3:
		total += -15
	case maxSame == 2:
		total += -10
	}
	return total
}
