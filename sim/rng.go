package sim

import (
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two organisms with the same SimulationKey, the same registered parameter
// sets and the same sequence of Simulate calls MUST produce bit-for-bit
// identical organ trees.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemRealize is the RNG subsystem drawing organ specific
	// parameters from their random parameter sets.
	// Uses master seed directly.
	SubsystemRealize = "realize"

	// SubsystemBranching is the RNG subsystem for lateral subtype
	// selection and insertion azimuth.
	SubsystemBranching = "branching"
)

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemRealize: uses masterSeed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Every stream counts its draws so that Clone can reproduce the exact
// state of the original.
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
	sources    map[string]*replaySource
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
		sources:    make(map[string]*replaySource),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	var derivedSeed int64
	if name == SubsystemRealize {
		derivedSeed = int64(p.key)
	} else {
		derivedSeed = int64(p.key) ^ fnv1a64(name)
	}

	src := newReplaySource(derivedSeed)
	rng := rand.New(src)
	p.sources[name] = src
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// Clone returns an independent PartitionedRNG whose streams continue
// exactly where the streams of p currently stand.
func (p *PartitionedRNG) Clone() *PartitionedRNG {
	c := NewPartitionedRNG(p.key)
	for name, src := range p.sources {
		cs := src.clone()
		c.sources[name] = cs
		c.subsystems[name] = rand.New(cs)
	}
	return c
}

// replaySource wraps the standard source and counts how far it advanced.
// Int63 and Uint64 both advance the underlying generator by one step.
type replaySource struct {
	seed  int64
	src   rand.Source64
	draws uint64
}

func newReplaySource(seed int64) *replaySource {
	return &replaySource{seed: seed, src: rand.NewSource(seed).(rand.Source64)}
}

func (s *replaySource) Int63() int64 {
	s.draws++
	return s.src.Int63()
}

func (s *replaySource) Uint64() uint64 {
	s.draws++
	return s.src.Uint64()
}

func (s *replaySource) Seed(seed int64) {
	s.seed = seed
	s.draws = 0
	s.src.Seed(seed)
}

func (s *replaySource) clone() *replaySource {
	c := newReplaySource(s.seed)
	for i := uint64(0); i < s.draws; i++ {
		c.src.Uint64()
	}
	c.draws = s.draws
	return c
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
