package service

import (
	"math"
	"math/rand/v2"
)

// pcgStream is the fixed PCG increment; the request seed selects the state.
const pcgStream = 0x9e3779b97f4a7c15

// source is the single random stream of one generation run.
type source struct {
	r *rand.Rand
}

func newSource(seed uint64) *source {
	return &source{r: rand.New(rand.NewPCG(seed, pcgStream))}
}

// intRange draws uniformly from [lo, hi].
func (s *source) intRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.r.IntN(hi-lo+1)
}

func (s *source) index(n int) int {
	return s.r.IntN(n)
}

// chance returns true with probability p. Always consumes one draw.
func (s *source) chance(p float64) bool {
	return s.r.Float64() < p
}

// exp draws from an exponential distribution with the given mean, rounded to cents.
func (s *source) exp(mean float64) float64 {
	return math.Round(s.r.ExpFloat64()*mean*100) / 100
}
