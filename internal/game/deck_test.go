// internal/game/deck_test.go
package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/playnine/internal/models"
)

func TestDeckSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for players := 2; players <= 6; players++ {
		deck := BuildDeck(rng, players)
		assert.Len(t, deck, 108, "2-6 players play with two packs")
	}
	for players := 7; players <= 8; players++ {
		deck := BuildDeck(rng, players)
		assert.Len(t, deck, 162, "7-8 players play with three packs")
	}
}

func TestDeckComposition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	counts := func(deck []models.Card) map[int]int {
		m := make(map[int]int)
		for _, c := range deck {
			require.False(t, c.FaceUp, "decks are dealt face-down")
			m[c.Value]++
		}
		return m
	}

	two := counts(BuildDeck(rng, 4))
	assert.Equal(t, 4, two[-5], "two packs carry four hole-in-ones")
	for v := 0; v <= 12; v++ {
		assert.Equalf(t, 8, two[v], "two packs carry eight %ds", v)
	}

	three := counts(BuildDeck(rng, 8))
	assert.Equal(t, 6, three[-5])
	for v := 0; v <= 12; v++ {
		assert.Equal(t, 12, three[v])
	}
}

func TestDeckShuffleIsSeeded(t *testing.T) {
	a := BuildDeck(rand.New(rand.NewSource(7)), 2)
	b := BuildDeck(rand.New(rand.NewSource(7)), 2)
	assert.Equal(t, a, b, "same seed, same order")

	c := BuildDeck(rand.New(rand.NewSource(8)), 2)
	assert.NotEqual(t, a, c, "different seed should permute differently")
}
