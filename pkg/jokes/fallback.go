package jokes

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Bank holds a fixed set of clean jokes used when the AI path is down.
// Pick never fails and never returns an empty string.
type Bank struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var fallbackJokes = []string{
	"Why can't you trust an atom? Because they make up everything!",
	"What do you call a fake noodle? An impasta!",
	"Why did the coffee file a police report? It got mugged.",
	"What do you call a dog that does magic tricks? A labracadabrador.",
	"Why do programmers prefer dark mode? Because light attracts bugs.",
	"Why did the scarecrow win an award? Because he was outstanding in his field!",
	"Why did the math book look so sad? Because it had too many problems.",
	"Why couldn't the bicycle stand up by itself? It was two tired.",
	"What did the ocean say to the beach? Nothing, it just waved.",
	"Why do golfers carry two pairs of pants? In case they get a hole in one.",
}

// anchor maps topic words to a specific joke index. Checked in order;
// first match wins.
type anchor struct {
	terms []string
	joke  int
}

var anchors = []anchor{
	{terms: []string{"science", "atom", "chemistry", "physics"}, joke: 0},
	{terms: []string{"food", "noodle", "pasta"}, joke: 1},
	{terms: []string{"coffee", "drink", "tea"}, joke: 2},
	{terms: []string{"dog", "cat", "pet", "animal"}, joke: 3},
	{terms: []string{"computer", "program", "code", "software"}, joke: 4},
}

// NewBank creates a bank with a time-seeded random source.
func NewBank() *Bank {
	return NewBankWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewBankWithRand creates a bank with an explicit random source so tests
// can be deterministic.
func NewBankWithRand(rng *rand.Rand) *Bank {
	return &Bank{rng: rng}
}

// Pick returns a joke for the given keywords. Known topics map to a fixed
// joke; anything else gets a random one from the set.
func (b *Bank) Pick(keywords string) string {
	kw := strings.ToLower(strings.TrimSpace(keywords))
	if kw != "" {
		for _, a := range anchors {
			for _, term := range a.terms {
				if strings.Contains(kw, term) {
					return fallbackJokes[a.joke]
				}
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return fallbackJokes[b.rng.Intn(len(fallbackJokes))]
}

// All returns the full joke set. Used by tests for membership checks.
func All() []string {
	out := make([]string, len(fallbackJokes))
	copy(out, fallbackJokes)
	return out
}
