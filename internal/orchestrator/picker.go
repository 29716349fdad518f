package orchestrator

import (
	"math/rand"
	"time"

	"github.com/randomizedcoder/go-pan/internal/collection"
)

// Picker chooses the next entry to admit.
type Picker interface {
	Next() collection.Entry
}

// SequentialPicker walks the collection in order and wraps around.
type SequentialPicker struct {
	coll *collection.Collection
	next int
}

// NewSequentialPicker creates a picker starting at the first entry.
func NewSequentialPicker(coll *collection.Collection) *SequentialPicker {
	return &SequentialPicker{coll: coll}
}

// Next returns the current entry and advances.
func (p *SequentialPicker) Next() collection.Entry {
	e := p.coll.At(p.next)
	p.next++
	if p.next >= p.coll.Len() {
		p.next = 0
	}
	return e
}

// RandomPicker draws entries uniformly at random from a seeded source so a
// run can be replayed.
type RandomPicker struct {
	coll *collection.Collection
	rng  *rand.Rand
	seed int64
}

// NewRandomPicker creates a picker seeded from the clock.
func NewRandomPicker(coll *collection.Collection) *RandomPicker {
	return NewRandomPickerWithSeed(coll, time.Now().UnixNano())
}

// NewRandomPickerWithSeed creates a picker with a specific seed for reproducibility.
func NewRandomPickerWithSeed(coll *collection.Collection, seed int64) *RandomPicker {
	return &RandomPicker{
		coll: coll,
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Next returns a uniformly chosen entry.
func (p *RandomPicker) Next() collection.Entry {
	return p.coll.At(p.rng.Intn(p.coll.Len()))
}

// Seed returns the seed the picker was created with.
func (p *RandomPicker) Seed() int64 {
	return p.seed
}

// NewPicker returns a sequential picker, or a random one seeded with seed
// (zero means clock-seeded).
func NewPicker(coll *collection.Collection, sequential bool, seed int64) Picker {
	if sequential {
		return NewSequentialPicker(coll)
	}
	if seed == 0 {
		return NewRandomPicker(coll)
	}
	return NewRandomPickerWithSeed(coll, seed)
}
