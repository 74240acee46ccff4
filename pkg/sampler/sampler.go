// Package sampler draws disjoint random subsets from a host population.
package sampler

import (
	"math"
	"math/rand/v2"
)

// Sets is the number of disjoint subsets drawn per call
const Sets = 3

// Set holds the disjoint subsets of one draw, in draw order
type Set[T any] [Sets][]T

// First returns the first subset, the one probes target
func (s Set[T]) First() []T {
	return s[0]
}

// Len returns the total number of drawn items across all subsets
func (s Set[T]) Len() int {
	total := 0
	for _, subset := range s {
		total += len(subset)
	}
	return total
}

// Count returns the per-subset size for a population and percentage:
// max(1, floor(size * percentage)), or 0 for an empty population.
// percentage is clamped to (0, 1].
func Count(size int, percentage float64) int {
	if size <= 0 {
		return 0
	}
	if percentage > 1 {
		percentage = 1
	}
	count := 0
	if percentage > 0 {
		count = int(math.Floor(float64(size) * percentage))
	}
	return max(1, count)
}

// Sample draws three disjoint subsets of Count(len(population), percentage)
// items each, uniformly and without replacement. The second subset is drawn
// from what the first left over and the third from what both left over, so a
// subset is short or empty once the population runs out. population is never
// modified. A nil rng uses the global source.
func Sample[T any](population []T, percentage float64, rng *rand.Rand) Set[T] {
	var set Set[T]

	count := Count(len(population), percentage)
	if count == 0 {
		for i := range set {
			set[i] = []T{}
		}
		return set
	}

	if count >= len(population) {
		set[0] = append(make([]T, 0, len(population)), population...)
		set[1] = []T{}
		set[2] = []T{}
		return set
	}

	intn := rand.IntN
	if rng != nil {
		intn = rng.IntN
	}

	// Partial Fisher-Yates over indices; swapped holds only displaced slots
	// so memory stays proportional to the draw, not the population.
	swapped := make(map[int]int, Sets*count)
	at := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}

	next := 0
	for i := range set {
		remaining := len(population) - next
		size := min(count, remaining)
		subset := make([]T, 0, size)
		for range size {
			j := next + intn(len(population)-next)
			picked := at(j)
			swapped[j] = at(next)
			swapped[next] = picked
			subset = append(subset, population[picked])
			next++
		}
		set[i] = subset
	}

	return set
}
