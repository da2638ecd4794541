// Package game implements the AI game loop: spawn, decide, apply, clear.
package game

import (
	"context"
	"fmt"

	"github.com/herohde/stax/pkg/eval"
	"github.com/herohde/stax/pkg/grid"
	"github.com/herohde/stax/pkg/search"
	"github.com/seekerror/build"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/contextx"
)

var version = build.NewVersion(0, 3, 1)

// clearScore is the score awarded per simultaneous line clear, before the
// level multiplier.
var clearScore = [...]int{0, 40, 100, 300, 1200}

// linesPerLevel is the number of cleared lines per level advance.
const linesPerLevel = 10

// Game encapsulates one AI-played game: the playfield, the piece stream and
// the placement search. A game owns its grid exclusively. Not thread-safe.
type Game struct {
	table *grid.Table
	g     *grid.Grid
	bag   *Bag

	picker    search.Picker
	lookahead bool
	seed      int64
	w, h      int

	pieces int
	score  int
	over   bool
}

// Option is a game creation option.
type Option func(*Game)

// WithSize configures the playfield dimensions instead of the standard 10x20.
func WithSize(w, h int) Option {
	return func(g *Game) {
		g.w, g.h = w, h
	}
}

// WithSeed configures the given random seed instead of a time-derived one.
// Games with equal seeds and options play identically.
func WithSeed(seed int64) Option {
	return func(g *Game) {
		g.seed = seed
	}
}

// WithWeights configures the evaluation weight vector instead of the trained
// default.
func WithWeights(w eval.Weights) Option {
	return func(g *Game) {
		g.picker.Weights = w
	}
}

// WithLookahead enables one-piece lookahead using the bag's peek.
func WithLookahead() Option {
	return func(g *Game) {
		g.lookahead = true
	}
}

// WithTable configures the search to use the given transposition table.
func WithTable(tt search.TranspositionTable) Option {
	return func(g *Game) {
		g.picker.TT = tt
	}
}

func New(ctx context.Context, opts ...Option) (*Game, error) {
	g := &Game{
		table: grid.Shapes(),
		w:     10,
		h:     20,
		seed:  grid.EntropySeed(),
		picker: search.Picker{
			Weights: eval.DefaultWeights,
		},
	}
	for _, fn := range opts {
		fn(g)
	}

	zt := grid.NewZobristTable(g.w, g.h, g.seed)
	field, err := grid.New(zt, g.w, g.h)
	if err != nil {
		return nil, err
	}
	g.g = field
	g.bag = NewBag(g.table, g.seed)

	logw.Debugf(ctx, "Initialized game: %vx%v, seed=%v, lookahead=%v", g.w, g.h, g.seed, g.lookahead)
	return g, nil
}

// Name returns the engine name and version.
func (m *Game) Name() string {
	return fmt.Sprintf("stax %v", version)
}

// Grid returns the playfield. The caller must not mutate it.
func (m *Game) Grid() *grid.Grid {
	return m.g
}

// Bag returns the piece stream.
func (m *Game) Bag() *Bag {
	return m.bag
}

// Over returns true iff the game has topped out, no placement was found, or
// the chosen placement could not be reached from the spawn position.
func (m *Game) Over() bool {
	return m.over
}

// Level returns the current level, starting at 1.
func (m *Game) Level() int {
	return m.g.TotalCleared()/linesPerLevel + 1
}

// Stats are cumulative game statistics.
type Stats struct {
	Pieces int
	Lines  int
	Score  int
	Level  int
	// LCPP is lines cleared per piece placed, a playing-strength diagnostic.
	LCPP float64
}

func (s Stats) String() string {
	return fmt.Sprintf("{pieces=%v, lines=%v, score=%v, level=%v, lcpp=%.3f}", s.Pieces, s.Lines, s.Score, s.Level, s.LCPP)
}

func (m *Game) Stats() Stats {
	ret := Stats{
		Pieces: m.pieces,
		Lines:  m.g.TotalCleared(),
		Score:  m.score,
		Level:  m.Level(),
	}
	if m.pieces > 0 {
		ret.LCPP = float64(ret.Lines) / float64(ret.Pieces)
	}
	return ret
}

// Step plays one piece: pop it from the stream, spawn, decide the placement,
// apply it move by move, and clear any full lines. Returns the move made, or
// false if the game is over (top-out, no legal placement, or no path to the
// chosen placement).
func (m *Game) Step(ctx context.Context) (grid.Move, bool) {
	if m.over {
		return grid.Move{}, false
	}

	block := grid.Block{Shape: m.bag.Pop()}
	if !m.g.Spawn(&block) {
		m.over = true // top-out
		return grid.Move{}, false
	}

	var stream search.Stream
	if m.lookahead {
		stream = m.bag
	}
	move, ok := m.picker.FindBest(m.g, block, stream)
	if !ok {
		m.over = true
		return grid.Move{}, false
	}

	if !m.apply(&block, move) {
		logw.Warningf(ctx, "No path to %v from %v", move, block)
		m.over = true
		return grid.Move{}, false
	}
	m.pieces++

	if m.g.NumFullRows() > 0 {
		level := m.Level()
		if n := m.g.ClearLines(); n > 0 {
			m.score += clearScore[n] * level
		}
	}
	return move, true
}

// apply drives the cursor to the decided placement: rotate one validated step
// at a time, translate column by column, then hard-drop and lock.
func (m *Game) apply(block *grid.Block, move grid.Move) bool {
	for block.Rot != move.Rot {
		if !m.g.Rotate(block, 1) {
			return false
		}
	}
	for block.X != move.Col {
		dir := grid.Right
		if block.X > move.Col {
			dir = grid.Left
		}
		if !m.g.Move(block, dir, 1) {
			return false
		}
	}
	m.g.Drop(block)
	return m.g.BlockAdd(*block)
}

// Play steps the game until it ends, the piece limit is reached, or the
// context is cancelled. A maxPieces of zero means no limit.
func (m *Game) Play(ctx context.Context, maxPieces int) Stats {
	for !m.over {
		if maxPieces > 0 && m.pieces >= maxPieces {
			break
		}
		if contextx.IsCancelled(ctx) {
			break
		}
		if _, ok := m.Step(ctx); !ok {
			break
		}
	}

	stats := m.Stats()
	logw.Debugf(ctx, "Game over: %v", stats)
	return stats
}
