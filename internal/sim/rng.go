package sim

import "math/rand"

// randPool hands out one deterministic generator per process stage.
// Partitioning keeps the draw sequence of one stage independent of how
// many samples the others consume, so a branch taken in the aeration
// stage never shifts the noise seen by the clarifier.
type randPool struct {
	seed   int64
	stages map[string]*rand.Rand
}

func newRandPool(seed int64) *randPool {
	return &randPool{seed: seed, stages: make(map[string]*rand.Rand)}
}

func (p *randPool) stage(name string) *rand.Rand {
	if rng, ok := p.stages[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.stages[name] = rng
	return rng
}

func fnv1a64(s string) int64 {
	const (
		offset = uint64(14695981039346656037)
		prime  = uint64(1099511628211)
	)
	h := offset
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return int64(h)
}

// noise returns a zero-mean gaussian sample with the given deviation.
func noise(rng *rand.Rand, dev float64) float64 {
	return rng.NormFloat64() * dev
}
