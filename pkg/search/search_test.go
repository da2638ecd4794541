package search_test

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/herohde/stax/pkg/eval"
	"github.com/herohde/stax/pkg/grid"
	"github.com/herohde/stax/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedStream is a fixed upcoming-piece sequence.
type fixedStream []*grid.Shape

func (s fixedStream) Pop() *grid.Shape {
	return s[0]
}

func (s fixedStream) Peek(k int) (*grid.Shape, bool) {
	if k < 0 || k >= len(s) {
		return nil, false
	}
	return s[k], true
}

func newGrid(t *testing.T) *grid.Grid {
	t.Helper()

	g, err := grid.New(grid.NewZobristTable(10, 20, 42), 10, 20)
	require.NoError(t, err)
	return g
}

func shape(t *testing.T, letter string) *grid.Shape {
	t.Helper()

	table := grid.Shapes()
	for i := 0; i < table.NumShapes(); i++ {
		if s := table.Shape(i); s.String() == letter {
			return s
		}
	}
	t.Fatalf("unknown shape: %v", letter)
	return nil
}

// scoreOf evaluates one placement the way the picker does, restoring the grid.
func scoreOf(t *testing.T, g *grid.Grid, s *grid.Shape, rot, col int, w eval.Weights) (float64, bool) {
	t.Helper()

	b := grid.Block{Shape: s, Rot: rot, X: col, Y: g.Height() - s.MaxDim()}
	if g.Collides(b) {
		return 0, false
	}
	g.Drop(&b)
	require.True(t, g.BlockAdd(b))
	score := eval.Extract(g).Score(w)
	require.True(t, g.BlockRemove(b))
	return score, true
}

func TestFindBestFlat(t *testing.T) {
	g := newGrid(t)
	weights := eval.Weights{eval.ReliefMax: -10, eval.ReliefVar: -1}

	p := search.Picker{Weights: weights}
	move, ok := p.FindBest(g, grid.Block{Shape: shape(t, "I")}, nil)
	require.True(t, ok)

	assert.Equal(t, move.Rot, 0)
	assert.Equal(t, move.Col, 0)
}

func TestFindBestTieBreak(t *testing.T) {
	g := newGrid(t)

	// All placements score equally under zero weights: the first candidate
	// in (rotation, column) order wins.
	p := search.Picker{}
	move, ok := p.FindBest(g, grid.Block{Shape: shape(t, "T")}, nil)
	require.True(t, ok)

	assert.Equal(t, move.Rot, 0)
	assert.Equal(t, move.Col, 0)
}

func TestFindBestOptimality(t *testing.T) {
	r := rand.New(rand.NewSource(23))
	table := grid.Shapes()

	for i := 0; i < 20; i++ {
		g := newGrid(t)
		for j := 0; j < 40; j++ {
			g.AddCell(r.Intn(10), r.Intn(6))
		}

		var weights eval.Weights
		for f := range weights {
			weights[f] = r.Float64()*2 - 1
		}

		s := table.Shape(r.Intn(table.NumShapes()))
		p := search.Picker{Weights: weights}
		move, ok := p.FindBest(g, grid.Block{Shape: s}, nil)
		require.True(t, ok)

		best, ok := scoreOf(t, g, s, move.Rot, move.Col, weights)
		require.True(t, ok)

		for rot := 0; rot < s.NumRot(); rot++ {
			for col := 0; col+s.Size(rot).W <= g.Width(); col++ {
				if score, ok := scoreOf(t, g, s, rot, col, weights); ok {
					assert.LessOrEqualf(t, score, best, "placement %v/%v beats %v", rot, col, move)
				}
			}
		}
	}
}

func TestFindBestRestoresGrid(t *testing.T) {
	r := rand.New(rand.NewSource(29))
	table := grid.Shapes()

	for i := 0; i < 50; i++ {
		g := newGrid(t)
		for j := 0; j < 50; j++ {
			g.AddCell(r.Intn(10), r.Intn(8))
		}
		before := g.String()

		s := table.Shape(r.Intn(table.NumShapes()))
		next := table.Shape(r.Intn(table.NumShapes()))

		p := search.Picker{Weights: eval.DefaultWeights}
		p.FindBest(g, grid.Block{Shape: s}, fixedStream{next})

		assert.Equal(t, g.String(), before)
		require.NoError(t, g.Validate())
	}
}

func TestFindBestNone(t *testing.T) {
	g := newGrid(t)
	p := search.Picker{}

	t.Run("nil shape", func(t *testing.T) {
		_, ok := p.FindBest(g, grid.Block{}, nil)
		assert.False(t, ok)
	})

	t.Run("full grid", func(t *testing.T) {
		for x := 0; x < 10; x++ {
			for y := 17; y < 20; y++ {
				require.True(t, g.AddCell(x, y))
			}
		}
		// No room at the top for any candidate.
		_, ok := p.FindBest(g, grid.Block{Shape: shape(t, "O")}, nil)
		assert.False(t, ok)
	})
}

func TestLookahead(t *testing.T) {
	g := newGrid(t)
	weights := eval.DefaultWeights

	s := shape(t, "S")
	next := shape(t, "Z")

	p := search.Picker{Weights: weights}
	move, ok := p.FindBest(g, grid.Block{Shape: s}, fixedStream{next})
	require.True(t, ok)

	// Replaying the chosen move must leave at least one legal follow-up
	// placement of the next piece, found by hand.
	b := grid.Block{Shape: s, Rot: move.Rot, X: move.Col, Y: g.Height() - s.MaxDim()}
	g.Drop(&b)
	require.True(t, g.BlockAdd(b))

	best := math.Inf(-1)
	for rot := 0; rot < next.NumRot(); rot++ {
		for col := 0; col+next.Size(rot).W <= g.Width(); col++ {
			if score, ok := scoreOf(t, g, next, rot, col, weights); ok && score > best {
				best = score
			}
		}
	}
	require.True(t, g.BlockRemove(b))
	assert.False(t, math.IsInf(best, -1))
}

func TestTranspositionTable(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, 1<<16)

	hash := grid.ZobristHash(0x1234567890abcdef)

	_, ok := tt.Read(hash, 1)
	assert.False(t, ok)

	assert.True(t, tt.Write(hash, 1, -42.5))
	score, ok := tt.Read(hash, 1)
	require.True(t, ok)
	assert.Equal(t, score, -42.5)

	_, ok = tt.Read(hash, 2)
	assert.False(t, ok)

	assert.Positive(t, tt.Used())
	assert.Positive(t, tt.Size())
}

func TestFindBestWithTable(t *testing.T) {
	ctx := context.Background()

	g := newGrid(t)
	s := shape(t, "L")
	next := shape(t, "J")

	plain := search.Picker{Weights: eval.DefaultWeights}
	cached := search.Picker{Weights: eval.DefaultWeights, TT: search.NewTranspositionTable(ctx, 1<<16)}

	want, ok := plain.FindBest(g, grid.Block{Shape: s}, fixedStream{next})
	require.True(t, ok)

	for i := 0; i < 2; i++ {
		got, ok := cached.FindBest(g, grid.Block{Shape: s}, fixedStream{next})
		require.True(t, ok)
		assert.Equal(t, got, want)
	}
	require.NoError(t, g.Validate())
}
