// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/playnine/internal/models"
)

// deckSpec is one pack: value -> count. Two hole-in-ones, four of everything
// else.
var deckSpec = buildDeckSpec()

func buildDeckSpec() []struct{ value, count int } {
	spec := []struct{ value, count int }{{-5, 2}}
	for v := 0; v <= 12; v++ {
		spec = append(spec, struct{ value, count int }{v, 4})
	}
	return spec
}

// BuildDeck returns a shuffled face-down deck sized for numPlayers (two
// packs through six players, three packs for seven or eight).
func BuildDeck(rng *rand.Rand, numPlayers int) []models.Card {
	packs := models.PacksFor(numPlayers)
	deck := make([]models.Card, 0, models.DeckSizeFor(numPlayers))
	for p := 0; p < packs; p++ {
		for _, s := range deckSpec {
			for i := 0; i < s.count; i++ {
				deck = append(deck, models.Card{Value: s.value})
			}
		}
	}
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
