package game

import (
	"math/rand"

	"github.com/herohde/stax/pkg/grid"
)

// Bag is a 7-bag piece randomizer: pieces are dealt as shuffled permutations
// of the full shape set, so every shape appears exactly once per bag. The
// queue always holds at least one full bag, guaranteeing a non-destructive
// lookahead window for Peek.
type Bag struct {
	table *grid.Table
	rand  *rand.Rand
	queue []*grid.Shape
}

func NewBag(table *grid.Table, seed int64) *Bag {
	b := &Bag{
		table: table,
		rand:  rand.New(rand.NewSource(seed)),
	}
	b.refill()
	return b
}

// Pop removes and returns the next shape.
func (b *Bag) Pop() *grid.Shape {
	b.refill()
	ret := b.queue[0]
	b.queue = b.queue[1:]
	return ret
}

// Peek returns the shape k positions ahead without consuming it. The window
// covers at least one full bag.
func (b *Bag) Peek(k int) (*grid.Shape, bool) {
	if k < 0 || k >= b.table.NumShapes() {
		return nil, false
	}
	b.refill()
	return b.queue[k], true
}

func (b *Bag) refill() {
	for len(b.queue) <= b.table.NumShapes() {
		for _, i := range b.rand.Perm(b.table.NumShapes()) {
			b.queue = append(b.queue, b.table.Shape(i))
		}
	}
}
