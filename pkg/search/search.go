// Package search contains placement search functionality and utilities.
package search

import (
	"math"

	"github.com/herohde/stax/pkg/eval"
	"github.com/herohde/stax/pkg/grid"
)

// Stream provides the upcoming pieces beyond the block under consideration.
// Peek(0) is the piece that follows the current block. Implementations offer
// a bounded, non-destructive lookahead window.
type Stream interface {
	// Pop removes and returns the next shape.
	Pop() *grid.Shape
	// Peek returns the shape k positions ahead without consuming it, or
	// false if k is outside the lookahead window.
	Peek(k int) (*grid.Shape, bool)
}

// Picker selects the best placement for the current piece. It enumerates
// every legal (rotation, column) pair, hard-drops each candidate, and scores
// the resulting playfield with a weighted feature sum. If the stream offers a
// peek, each candidate is instead scored by the best follow-up placement of
// the next piece (max-of-max, one ply). Full rows are not cleared during
// evaluation: the features already reflect them.
//
// The picker uses the caller's grid as mutable scratch space. Every tentative
// placement is added and then subtracted, leaving the grid bit-identical on
// return, hash included. Ties break to the lowest rotation, then the lowest
// column.
type Picker struct {
	// Weights is the evaluation weight vector.
	Weights eval.Weights
	// TT, if set, caches follow-up scores keyed by grid hash and piece.
	// Meaningful only across grids sharing one zobrist table.
	TT TranspositionTable
}

// FindBest returns the best placement for the block's shape, or false if no
// legal placement exists. It is never fatal and never mutates through its
// return path.
func (p Picker) FindBest(g *grid.Grid, b grid.Block, stream Stream) (grid.Move, bool) {
	if g == nil || b.Shape == nil {
		return grid.Move{}, false
	}

	var next *grid.Shape
	if stream != nil {
		if s, ok := stream.Peek(0); ok {
			next = s
		}
	}

	var move grid.Move
	best := math.Inf(-1)
	found := false

	s := b.Shape
	for r := 0; r < s.NumRot(); r++ {
		for c := 0; c+s.Size(r).W <= g.Width(); c++ {
			cand := grid.Block{Shape: s, Rot: r, X: c, Y: g.Height() - s.MaxDim()}
			if g.Collides(cand) {
				continue // skip: no room at the top
			}
			g.Drop(&cand)
			g.BlockAdd(cand)

			var score float64
			if next != nil {
				score = p.lookahead(g, next)
			} else {
				score = eval.Extract(g).Score(p.Weights)
			}

			g.BlockRemove(cand)

			if !found || score > best {
				best = score
				move = grid.Move{Shape: s, Rot: r, Col: c}
				found = true
			}
		}
	}
	return move, found
}

// lookahead returns the best follow-up score for the next piece on the
// dirtied grid. If the next piece has no legal placement, the static score of
// the current position is used.
func (p Picker) lookahead(g *grid.Grid, next *grid.Shape) float64 {
	if p.TT != nil {
		if score, ok := p.TT.Read(g.Hash(), next.Index()); ok {
			return score
		}
	}

	best := math.Inf(-1)
	found := false

	for r := 0; r < next.NumRot(); r++ {
		for c := 0; c+next.Size(r).W <= g.Width(); c++ {
			cand := grid.Block{Shape: next, Rot: r, X: c, Y: g.Height() - next.MaxDim()}
			if g.Collides(cand) {
				continue
			}
			g.Drop(&cand)
			g.BlockAdd(cand)
			if score := eval.Extract(g).Score(p.Weights); !found || score > best {
				best = score
				found = true
			}
			g.BlockRemove(cand)
		}
	}
	if !found {
		best = eval.Extract(g).Score(p.Weights)
	}

	if p.TT != nil {
		p.TT.Write(g.Hash(), next.Index(), best)
	}
	return best
}
