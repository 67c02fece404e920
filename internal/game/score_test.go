// internal/game/score_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jason-s-yu/playnine/internal/models"
)

// hand builds a face-up hand from eight values, column c at indices c, c+4.
func hand(values ...int) []models.Card {
	cards := make([]models.Card, len(values))
	for i, v := range values {
		cards[i] = models.Card{Value: v, FaceUp: true}
	}
	return cards
}

func TestScoreHandUnmatchedColumns(t *testing.T) {
	// Columns (1,5) (2,6) (3,7) (4,8): plain sums.
	assert.Equal(t, 36, ScoreHand(hand(1, 2, 3, 4, 5, 6, 7, 8)))
}

func TestScoreHandSingleMatchedColumn(t *testing.T) {
	// Column 0 pairs 9s and cancels; the rest sum.
	assert.Equal(t, 0+2+3+4+5+6+7, ScoreHand(hand(9, 2, 3, 4, 9, 5, 6, 7)))
}

func TestScoreHandHoleInOnePair(t *testing.T) {
	// A -5 pair is worth -10, not 0.
	assert.Equal(t, -10+2+3+4+5+6+7, ScoreHand(hand(-5, 2, 3, 4, -5, 5, 6, 7)))
}

func TestScoreHandShavingStrokesTwoColumns(t *testing.T) {
	// Columns 0 and 1 both pair 3s: 0 + 0 - 10 bonus, plus the open columns.
	got := ScoreHand(hand(3, 3, 1, 2, 3, 3, 4, 6))
	assert.Equal(t, (1+4)+(2+6)-10, got)
}

func TestScoreHandShavingStrokesThreeColumns(t *testing.T) {
	got := ScoreHand(hand(7, 7, 7, 2, 7, 7, 7, 6))
	assert.Equal(t, (2+6)-15, got)
}

func TestScoreHandShavingStrokesFourColumns(t *testing.T) {
	assert.Equal(t, -20, ScoreHand(hand(7, 7, 7, 7, 7, 7, 7, 7)))
}

func TestScoreHandMixedPairValuesDoNotStack(t *testing.T) {
	// Two columns of 3s and two of 5s: the bonus keys on the largest group
	// of same-value pairs, so this is -10, not -15.
	got := ScoreHand(hand(3, 3, 5, 5, 3, 3, 5, 5))
	assert.Equal(t, -10, got)
}

func TestScoreHandTwoHoleInOnePairs(t *testing.T) {
	// Each -5 pair is -10, and they also count as a same-value pair group.
	got := ScoreHand(hand(-5, -5, 1, 2, -5, -5, 3, 4))
	assert.Equal(t, -10+-10+(1+3)+(2+4)-10, got)
}

func TestScoreHandPartialHand(t *testing.T) {
	// Defensive path: anything but a full eight sums its face-up values.
	cards := []models.Card{{Value: 5, FaceUp: true}, {Value: 7}}
	assert.Equal(t, 5, ScoreHand(cards))
}
