package bracket

import (
	"cmp"
	"fmt"
	"math/bits"
	"math/rand/v2"
	"slices"
	"sync"
)

// Seeder reorders a roster before round 1 pairing. Entries 2i and 2i+1 of
// the result meet in round 1 match i.
type Seeder interface {
	Seed(teams []Team) []Team
}

const (
	SeedingWeighted = "weighted"
	SeedingRandom   = "random"
)

func NewSeeder(strategy string) (Seeder, error) {
	switch strategy {
	case SeedingWeighted, "":
		return WeightedSeeding{}, nil
	case SeedingRandom:
		return NewRandomSeeding(nil), nil
	default:
		return nil, fmt.Errorf("unknown seeding strategy %q", strategy)
	}
}

// WeightedSeeding pairs the strongest team against the weakest, the second
// strongest against the second weakest and so on. The pairs are then laid
// out in bracket order so the top two seeds can only meet in the final.
// With an odd roster the middle team is left over and takes the bye in the
// last round 1 match.
type WeightedSeeding struct{}

func (WeightedSeeding) Seed(teams []Team) []Team {
	sorted := slices.Clone(teams)
	slices.SortStableFunc(sorted, func(a, b Team) int {
		return cmp.Compare(a.SeedWeight(), b.SeedWeight())
	})

	n := len(sorted)
	seeded := make([]Team, 0, n)
	for _, top := range pairOrder(n / 2) {
		seeded = append(seeded, sorted[top], sorted[n-1-top])
	}
	if n%2 == 1 {
		seeded = append(seeded, sorted[n/2])
	}
	return seeded
}

// RandomSeeding is an unseeded draw. Safe for concurrent use.
type RandomSeeding struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSeeding uses src for the shuffle, or a randomly seeded PCG when src is nil.
func NewRandomSeeding(src rand.Source) *RandomSeeding {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &RandomSeeding{rng: rand.New(src)}
}

func (s *RandomSeeding) Seed(teams []Team) []Team {
	shuffled := slices.Clone(teams)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Fisher-Yates
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// pairOrder returns pair ranks 0..count-1 in the order they occupy round 1
func pairOrder(count int) []int {
	order := make([]int, 0, count)
	for _, rank := range seedPositions(calcBracketSize(count)) {
		if rank < count {
			order = append(order, rank)
		}
	}
	return order
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 1 {
		return count
	}
	return 1 << bits.Len(uint(count-1))
}

// seedPositions lists seed ranks top to bottom for a full bracket, e.g.
// 0 7 3 4 1 6 2 5 for 8 slots, so that adjacent entries are round 1 opponents.
func seedPositions(bracketSize int) []int {
	if bracketSize == 0 {
		return []int{}
	}

	positions := []int{0}
	for len(positions) < bracketSize {
		currentCount := len(positions) * 2
		next := make([]int, 0, currentCount)
		for _, seed := range positions {
			next = append(next, seed, (currentCount-1)-seed)
		}
		positions = next
	}
	return positions
}
