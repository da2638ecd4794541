package grid_test

import (
	"math/rand"
	"testing"

	"github.com/herohde/stax/pkg/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGrid(t *testing.T, w, h int) *grid.Grid {
	t.Helper()

	g, err := grid.New(grid.NewZobristTable(w, h, 42), w, h)
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

func TestNew(t *testing.T) {
	tests := []struct {
		w, h int
	}{
		{0, 20},
		{-1, 20},
		{65, 20},
		{10, 0},
		{10, -4},
	}

	for _, tt := range tests {
		_, err := grid.New(grid.NewZobristTable(10, 20, 1), tt.w, tt.h)
		assert.Errorf(t, err, "accepted %vx%v", tt.w, tt.h)
	}

	_, err := grid.New(nil, 10, 20)
	assert.Error(t, err)
	_, err = grid.New(grid.NewZobristTable(8, 20, 1), 10, 20)
	assert.Error(t, err)
}

func TestAddRemoveCell(t *testing.T) {
	g := newGrid(t, 10, 20)

	t.Run("bounds", func(t *testing.T) {
		assert.False(t, g.AddCell(-1, 0))
		assert.False(t, g.AddCell(0, -1))
		assert.False(t, g.AddCell(10, 0))
		assert.False(t, g.AddCell(0, 20))
		assert.False(t, g.RemoveCell(0, 0)) // empty
	})

	t.Run("relief and gaps", func(t *testing.T) {
		require.True(t, g.AddCell(0, 2))
		assert.False(t, g.AddCell(0, 2)) // occupied
		assert.Equal(t, g.Relief(0), 2)
		assert.Equal(t, g.GapCount(0), 2)
		require.NoError(t, g.Validate())

		require.True(t, g.AddCell(0, 0))
		assert.Equal(t, g.Relief(0), 2)
		assert.Equal(t, g.GapCount(0), 1)
		assert.Equal(t, g.Stack(0), []int{0, 2})
		require.NoError(t, g.Validate())

		require.True(t, g.RemoveCell(0, 2))
		assert.Equal(t, g.Relief(0), 0)
		assert.Equal(t, g.GapCount(0), 0)
		require.NoError(t, g.Validate())

		require.True(t, g.RemoveCell(0, 0))
		assert.Equal(t, g.Relief(0), -1)
		assert.Equal(t, g.Hash(), grid.ZobristHash(0))
		require.NoError(t, g.Validate())
	})
}

func TestSpawnEmpty(t *testing.T) {
	g := newGrid(t, 10, 20)
	b := grid.Block{Shape: shape(t, "I")}

	require.True(t, g.Spawn(&b))
	assert.Equal(t, b.X, 3)
	assert.Equal(t, b.Y, 16)

	assert.Equal(t, g.Drop(&b), 16)
	assert.Equal(t, b.Y, 0)

	require.True(t, g.BlockAdd(b))
	for x := 0; x < 10; x++ {
		if 3 <= x && x <= 6 {
			assert.Equal(t, g.Relief(x), 0)
		} else {
			assert.Equal(t, g.Relief(x), -1)
		}
	}
	assert.Equal(t, g.RowFill(0), 4)
	assert.NotEqual(t, g.Hash(), grid.ZobristHash(0))
	require.NoError(t, g.Validate())
}

func TestFullRowClear(t *testing.T) {
	g := newGrid(t, 10, 20)
	for x := 0; x <= 5; x++ {
		require.True(t, g.AddCell(x, 0))
	}
	assert.Equal(t, g.Row(0), grid.BitRow(0b0000111111))

	b := grid.Block{Shape: shape(t, "I"), Rot: 0, X: 6, Y: 16}
	require.False(t, g.Collides(b))
	g.Drop(&b)
	require.True(t, g.BlockAdd(b))

	assert.Equal(t, g.Row(0), g.FullMask())
	assert.Equal(t, g.NumFullRows(), 1)

	assert.Equal(t, g.ClearLines(), 1)
	assert.Equal(t, g.Row(0), grid.EmptyBitRow)
	assert.Equal(t, g.TotalCleared(), 1)
	assert.Equal(t, g.Hash(), grid.ZobristHash(0))
	require.NoError(t, g.Validate())
}

func TestTetris(t *testing.T) {
	g := newGrid(t, 10, 20)
	for y := 0; y <= 3; y++ {
		for x := 0; x <= 8; x++ {
			require.True(t, g.AddCell(x, y))
		}
	}

	b := grid.Block{Shape: shape(t, "I"), Rot: 1, X: 9, Y: 16}
	require.False(t, g.Collides(b))
	assert.Equal(t, g.Drop(&b), 16)
	require.True(t, g.BlockAdd(b))

	assert.Equal(t, g.NumFullRows(), 4)
	assert.Equal(t, g.ClearLines(), 4)
	assert.Equal(t, g.LastCleared(), 4)
	assert.Equal(t, g.TotalCleared(), 4)
	assert.Equal(t, g.MaxRelief(), -1)
	assert.Equal(t, g.Hash(), grid.ZobristHash(0))
	require.NoError(t, g.Validate())
}

func TestTopOut(t *testing.T) {
	g := newGrid(t, 10, 20)
	for y := 0; y <= 18; y++ {
		for x := 0; x < 10; x++ {
			require.True(t, g.AddCell(x, y))
		}
	}

	for _, letter := range []string{"I", "J", "L", "O", "S", "T", "Z"} {
		b := grid.Block{Shape: shape(t, letter)}
		assert.Falsef(t, g.Spawn(&b), "spawned %v on full grid", letter)
	}
}

func TestHashRoundTrip(t *testing.T) {
	g := newGrid(t, 10, 20)
	before := g.String()

	b := grid.Block{Shape: shape(t, "T"), Rot: 2, X: 4, Y: 16}
	g.Drop(&b)
	require.True(t, g.BlockAdd(b))
	assert.NotEqual(t, g.Hash(), grid.ZobristHash(0))

	require.True(t, g.BlockRemove(b))
	assert.Equal(t, g.Hash(), grid.ZobristHash(0))
	assert.Equal(t, g.String(), before)
	require.NoError(t, g.Validate())
}

func TestMoveBoundaries(t *testing.T) {
	g := newGrid(t, 10, 20)
	b := grid.Block{Shape: shape(t, "I"), Rot: 0, X: 0, Y: 16}

	assert.False(t, g.Move(&b, grid.Left, 1))
	assert.Equal(t, b.X, 0)

	assert.True(t, g.Move(&b, grid.Right, 6))
	assert.Equal(t, b.X, 6)
	assert.False(t, g.Move(&b, grid.Right, 1))
	assert.Equal(t, b.X, 6)

	assert.True(t, g.Move(&b, grid.Bot, 16))
	assert.Equal(t, b.Y, 0)
	assert.False(t, g.Move(&b, grid.Bot, 1))
	assert.True(t, g.Move(&b, grid.Top, 19))
	assert.False(t, g.Move(&b, grid.Top, 1))

	assert.False(t, g.Move(&b, grid.Right, -1))
}

func TestRotate(t *testing.T) {
	g := newGrid(t, 10, 20)
	b := grid.Block{Shape: shape(t, "I")}
	require.True(t, g.Spawn(&b))

	t.Run("identity", func(t *testing.T) {
		assert.True(t, g.Rotate(&b, b.Shape.NumRot()))
		assert.Equal(t, b.Rot, 0)
	})

	t.Run("steps", func(t *testing.T) {
		assert.True(t, g.Rotate(&b, 1))
		assert.Equal(t, b.Rot, 1)
		assert.True(t, g.Rotate(&b, -1))
		assert.Equal(t, b.Rot, 0)
	})

	t.Run("blocked", func(t *testing.T) {
		// A vertical I in a one-column slot cannot rotate to horizontal.
		slot := newGrid(t, 10, 20)
		v := grid.Block{Shape: shape(t, "I"), Rot: 1, X: 0, Y: 0}
		for x := 1; x < 4; x++ {
			require.True(t, slot.AddCell(x, 0))
		}
		require.False(t, slot.Collides(v))
		assert.False(t, slot.Rotate(&v, 1))
		assert.Equal(t, v.Rot, 1)
	})
}

func TestDropProperty(t *testing.T) {
	g := newGrid(t, 10, 20)
	r := rand.New(rand.NewSource(7))
	table := grid.Shapes()

	for i := 0; i < 500; i++ {
		// Litter the lower half, then drop a random piece.
		x, y := r.Intn(10), r.Intn(8)
		g.AddCell(x, y)

		s := table.Shape(r.Intn(table.NumShapes()))
		rot := r.Intn(s.NumRot())
		b := grid.Block{Shape: s, Rot: rot, X: r.Intn(10 - s.Size(rot).W + 1), Y: 20 - s.MaxDim()}
		if g.Collides(b) {
			continue
		}

		d := g.Drop(&b)
		assert.GreaterOrEqual(t, d, 0)
		assert.False(t, g.Collides(b), "dropped block collides")

		lower := b
		lower.Y--
		assert.True(t, g.Collides(lower), "dropped block not at rest")

		require.NoError(t, g.Validate())
	}
}

func TestSidewaysOverhangDrop(t *testing.T) {
	g := newGrid(t, 10, 20)

	// Build an overhang: a roof over empty cells at column 0.
	for x := 0; x < 4; x++ {
		require.True(t, g.AddCell(x, 5))
	}

	// A horizontal I tucked under the roof is below the relief profile.
	b := grid.Block{Shape: shape(t, "I"), Rot: 0, X: 0, Y: 3}
	require.False(t, g.Collides(b))

	assert.Equal(t, g.Drop(&b), 3)
	assert.Equal(t, b.Y, 0)
	assert.False(t, g.Collides(b))
}

func TestBlockAddRemovePairs(t *testing.T) {
	g := newGrid(t, 10, 20)
	r := rand.New(rand.NewSource(11))
	table := grid.Shapes()

	for i := 0; i < 100; i++ {
		var placed []grid.Block
		for j := 0; j < 5; j++ {
			s := table.Shape(r.Intn(table.NumShapes()))
			rot := r.Intn(s.NumRot())
			b := grid.Block{Shape: s, Rot: rot, X: r.Intn(10 - s.Size(rot).W + 1), Y: 20 - s.MaxDim()}
			if g.Collides(b) {
				continue
			}
			g.Drop(&b)
			require.True(t, g.BlockAdd(b))
			placed = append(placed, b)
		}
		require.NoError(t, g.Validate())

		for j := len(placed) - 1; j >= 0; j-- {
			require.True(t, g.BlockRemove(placed[j]))
		}

		assert.Equal(t, g.Hash(), grid.ZobristHash(0))
		assert.Equal(t, g.MaxRelief(), -1)
		require.NoError(t, g.Validate())
	}
}

func TestClearLinesProperty(t *testing.T) {
	r := rand.New(rand.NewSource(13))

	for i := 0; i < 100; i++ {
		g := newGrid(t, 10, 20)

		// Fill some rows completely and sprinkle noise above.
		full := r.Intn(5)
		for y := 0; y < full; y++ {
			for x := 0; x < 10; x++ {
				g.AddCell(x, y)
			}
		}
		for j := 0; j < 30; j++ {
			g.AddCell(r.Intn(10), full+r.Intn(10))
		}

		n := g.NumFullRows()
		total := g.TotalCleared()

		cleared := g.ClearLines()
		assert.Equal(t, cleared, n)
		assert.Equal(t, g.LastCleared(), n)
		assert.Equal(t, g.TotalCleared(), total+n)
		assert.Equal(t, g.NumFullRows(), 0)
		require.NoError(t, g.Validate())
	}
}

func TestClearLinesShifts(t *testing.T) {
	g := newGrid(t, 10, 20)

	// Row 0 partial, row 1 full, row 2 partial.
	require.True(t, g.AddCell(0, 0))
	for x := 0; x < 10; x++ {
		require.True(t, g.AddCell(x, 1))
	}
	require.True(t, g.AddCell(5, 2))

	assert.Equal(t, g.ClearLines(), 1)
	assert.True(t, g.IsSet(0, 0))
	assert.True(t, g.IsSet(5, 1))
	assert.False(t, g.IsSet(5, 2))
	assert.Equal(t, g.Relief(5), 1)
	require.NoError(t, g.Validate())
}

func TestWidth64(t *testing.T) {
	g := newGrid(t, 64, 8)
	assert.Equal(t, g.FullMask(), ^grid.EmptyBitRow)

	for x := 0; x < 64; x++ {
		require.True(t, g.AddCell(x, 0))
	}
	assert.Equal(t, g.Row(0), g.FullMask())
	assert.Equal(t, g.NumFullRows(), 1)

	assert.Equal(t, g.ClearLines(), 1)
	assert.Equal(t, g.MaxRelief(), -1)
	assert.Equal(t, g.Hash(), grid.ZobristHash(0))
	require.NoError(t, g.Validate())
}

func TestReset(t *testing.T) {
	g := newGrid(t, 10, 20)
	for x := 0; x < 10; x++ {
		require.True(t, g.AddCell(x, 0))
	}
	g.ClearLines()
	require.True(t, g.AddCell(3, 0))

	g.Reset()
	assert.Equal(t, g.Hash(), grid.ZobristHash(0))
	assert.Equal(t, g.MaxRelief(), -1)
	assert.Equal(t, g.TotalCleared(), 0)
	require.NoError(t, g.Validate())
}
