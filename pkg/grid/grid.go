package grid

import (
	"fmt"
	"sort"
	"strings"
)

// MaxWidth is the hard playfield width limit: each row must fit in one
// 64-bit word.
const MaxWidth = 64

// Grid is a mutable bit-packed playfield with incrementally maintained
// auxiliary statistics: per-column relief and gap counts, sorted occupancy
// stacks, per-row fill counts, the full-row index and a zobrist hash. The
// auxiliary state is consistent between public calls; mutating operations
// are O(1) or O(log H) per cell.
//
// A grid is exclusively owned by one logical game. Not thread-safe.
type Grid struct {
	w, h     int
	fullMask BitRow
	zt       *ZobristTable

	rows    []BitRow
	relief  []int   // highest occupied y per column, or -1
	gaps    []int   // empty cells strictly below relief, per column
	stacks  [][]int // ascending occupied y values per column
	rowFill []int   // occupied cells per row

	fullRows []int // unordered indices of currently-full rows
	hash     ZobristHash

	totalCleared int
	lastCleared  int
}

// New returns an empty grid of the given dimensions. The zobrist table must
// match the dimensions and be read-only for the grid's lifetime.
func New(zt *ZobristTable, w, h int) (*Grid, error) {
	if w <= 0 || w > MaxWidth {
		return nil, fmt.Errorf("invalid width: %v, must be in [1;%v]", w, MaxWidth)
	}
	if h <= 0 {
		return nil, fmt.Errorf("invalid height: %v", h)
	}
	if zt == nil || zt.Width() != w || zt.Height() != h {
		return nil, fmt.Errorf("zobrist table does not match %vx%v grid", w, h)
	}

	g := &Grid{
		w:        w,
		h:        h,
		fullMask: FullMask(w),
		zt:       zt,
		rows:     make([]BitRow, h),
		relief:   make([]int, w),
		gaps:     make([]int, w),
		stacks:   make([][]int, w),
		rowFill:  make([]int, h),
	}
	for x := 0; x < w; x++ {
		g.relief[x] = -1
		g.stacks[x] = make([]int, 0, h)
	}
	return g, nil
}

func (g *Grid) Width() int {
	return g.w
}

func (g *Grid) Height() int {
	return g.h
}

// Hash returns the zobrist hash of the occupied cells.
func (g *Grid) Hash() ZobristHash {
	return g.hash
}

// FullMask returns the full-row bit mask for the grid width.
func (g *Grid) FullMask() BitRow {
	return g.fullMask
}

// Row returns the bit mask of row y.
func (g *Grid) Row(y int) BitRow {
	return g.rows[y]
}

// RowFill returns the number of occupied cells in row y.
func (g *Grid) RowFill(y int) int {
	return g.rowFill[y]
}

// IsSet returns true iff cell (x,y) is occupied. Out-of-bounds cells are not.
func (g *Grid) IsSet(x, y int) bool {
	if x < 0 || x >= g.w || y < 0 || y >= g.h {
		return false
	}
	return g.rows[y].IsSet(x)
}

// Relief returns the highest occupied y of column x, or -1 if empty.
func (g *Grid) Relief(x int) int {
	return g.relief[x]
}

// GapCount returns the number of empty cells strictly below the relief of
// column x.
func (g *Grid) GapCount(x int) int {
	return g.gaps[x]
}

// Stack returns the ascending occupied y values of column x. The returned
// slice must not be modified.
func (g *Grid) Stack(x int) []int {
	return g.stacks[x]
}

// MaxRelief returns the highest occupied y on the grid, or -1 if empty.
func (g *Grid) MaxRelief() int {
	ret := -1
	for x := 0; x < g.w; x++ {
		if g.relief[x] > ret {
			ret = g.relief[x]
		}
	}
	return ret
}

// NumFullRows returns the number of currently-full rows.
func (g *Grid) NumFullRows() int {
	return len(g.fullRows)
}

// TotalCleared returns the running count of cleared lines.
func (g *Grid) TotalCleared() int {
	return g.totalCleared
}

// LastCleared returns the number of lines removed by the latest ClearLines.
func (g *Grid) LastCleared() int {
	return g.lastCleared
}

// AddCell occupies the cell (x,y) and updates all derived state. Returns
// false, without mutation, if the cell is out of bounds or occupied.
func (g *Grid) AddCell(x, y int) bool {
	if x < 0 || x >= g.w || y < 0 || y >= g.h || g.rows[y].IsSet(x) {
		return false
	}
	g.addCell(x, y)
	return true
}

func (g *Grid) addCell(x, y int) {
	g.rows[y] |= RowMask(x)
	g.hash ^= g.zt.Cell(x, y)

	g.rowFill[y]++
	if g.rowFill[y] == g.w {
		g.fullRows = append(g.fullRows, y)
	}

	if y > g.relief[x] {
		g.gaps[x] += y - g.relief[x] - 1
		g.relief[x] = y
		g.stacks[x] = append(g.stacks[x], y)
		return
	}

	// Below the relief: the cell fills a hole.
	g.gaps[x]--
	stack := g.stacks[x]
	i := sort.SearchInts(stack, y)
	stack = append(stack, 0)
	copy(stack[i+1:], stack[i:])
	stack[i] = y
	g.stacks[x] = stack
}

// RemoveCell empties the cell (x,y) and restores all derived state. Returns
// false, without mutation, if the cell is out of bounds or empty.
func (g *Grid) RemoveCell(x, y int) bool {
	if x < 0 || x >= g.w || y < 0 || y >= g.h || !g.rows[y].IsSet(x) {
		return false
	}
	g.removeCell(x, y)
	return true
}

func (g *Grid) removeCell(x, y int) {
	if g.rowFill[y] == g.w {
		// The row was full: drop it from the full-row index.
		for i, row := range g.fullRows {
			if row == y {
				g.fullRows[i] = g.fullRows[len(g.fullRows)-1]
				g.fullRows = g.fullRows[:len(g.fullRows)-1]
				break
			}
		}
	}

	g.rows[y] &^= RowMask(x)
	g.hash ^= g.zt.Cell(x, y)
	g.rowFill[y]--

	stack := g.stacks[x]
	if y == g.relief[x] {
		stack = stack[:len(stack)-1]
		g.stacks[x] = stack
		if len(stack) == 0 {
			g.relief[x] = -1
			g.gaps[x] = 0
			return
		}
		top := stack[len(stack)-1]
		g.gaps[x] -= y - top - 1
		g.relief[x] = top
		return
	}

	// Below the relief: the cell becomes a hole.
	g.gaps[x]++
	i := sort.SearchInts(stack, y)
	copy(stack[i:], stack[i+1:])
	g.stacks[x] = stack[:len(stack)-1]
}

// BlockAdd occupies the four cells of the block. Returns false, without
// mutation, if any target cell is out of bounds or occupied.
func (g *Grid) BlockAdd(b Block) bool {
	if g.Collides(b) {
		return false
	}
	for _, c := range b.Cells() {
		g.addCell(c.X, c.Y)
	}
	return true
}

// BlockRemove empties the four cells of the block, inverting BlockAdd.
// Returns false, without mutation, unless all four cells are occupied.
func (g *Grid) BlockRemove(b Block) bool {
	if b.Shape == nil {
		return false
	}
	cells := b.Cells()
	for _, c := range cells {
		if !g.IsSet(c.X, c.Y) {
			return false
		}
	}
	for _, c := range cells {
		g.removeCell(c.X, c.Y)
	}
	return true
}

// Collides returns true iff any of the block's cells is out of bounds or
// occupied. The bounding box provides a fast bounds reject.
func (g *Grid) Collides(b Block) bool {
	if b.Shape == nil {
		return true
	}
	wh := b.Shape.Size(b.Rot)
	if b.X < 0 || b.Y < 0 || b.X+wh.W > g.w || b.Y+wh.H > g.h {
		return true
	}
	for _, c := range b.Cells() {
		if g.rows[c.Y].IsSet(c.X) {
			return true
		}
	}
	return false
}

// Spawn places the block centered horizontally at the spawn height. Returns
// false iff the spawn position collides (top-out).
func (g *Grid) Spawn(b *Block) bool {
	if b == nil || b.Shape == nil {
		return false
	}
	b.X = (g.w - b.Shape.Size(b.Rot).W) / 2
	b.Y = g.h - b.Shape.MaxDim()
	return !g.Collides(*b)
}

// Drop lowers the block by the largest distance that keeps it non-colliding
// (hard drop) and returns that distance. The landing row follows from the
// relief profile and the rotation's bottom crust in O(width-of-piece).
func (g *Grid) Drop(b *Block) int {
	if b == nil || b.Shape == nil || g.Collides(*b) {
		return 0
	}

	d := b.Y // cannot fall below the floor
	for c, y := range b.Shape.BottomCrust(b.Rot) {
		slack := b.Y + y - (g.relief[b.X+c] + 1)
		if slack < 0 {
			// The block sits below the relief profile on some column, e.g.
			// entered sideways into an overhang. Probe cell by cell.
			return g.probeDrop(b)
		}
		if slack < d {
			d = slack
		}
	}
	b.Y -= d
	return d
}

func (g *Grid) probeDrop(b *Block) int {
	d := 0
	probe := *b
	for {
		probe.Y--
		if g.Collides(probe) {
			break
		}
		d++
	}
	b.Y -= d
	return d
}

// Move translates the block by amount cells in the given direction. The
// mutation is rolled back, returning false, if the new position collides or
// leaves bounds.
func (g *Grid) Move(b *Block, d Direction, amount int) bool {
	if b == nil || b.Shape == nil || amount < 0 {
		return false
	}

	old := *b
	switch d {
	case Left:
		b.X -= amount
	case Right:
		b.X += amount
	case Bot:
		b.Y -= amount
	case Top:
		b.Y += amount
	default:
		return false
	}

	if g.Collides(*b) {
		*b = old
		return false
	}
	return true
}

// Rotate turns the block by delta rotation steps at its current offset, with
// no wall kicks. The mutation is rolled back, returning false, if the rotated
// block collides or leaves bounds.
func (g *Grid) Rotate(b *Block, delta int) bool {
	if b == nil || b.Shape == nil {
		return false
	}

	old := b.Rot
	n := b.Shape.NumRot()
	b.Rot = ((b.Rot+delta)%n + n) % n

	if g.Collides(*b) {
		b.Rot = old
		return false
	}
	return true
}

// ClearLines removes all full rows, shifts the rows above them down and
// refills the top with empty rows, restoring every auxiliary statistic.
// Returns the number of rows cleared, in [0;4] for tetromino play.
func (g *Grid) ClearLines() int {
	n := len(g.fullRows)
	g.lastCleared = n
	if n == 0 {
		return 0
	}

	sort.Ints(g.fullRows)
	low := g.fullRows[0]
	top := g.MaxRelief()

	// Re-hash the affected band wholesale: XOR out the old rows, compact,
	// then XOR the surviving rows back in at their new positions.
	for y := low; y <= top; y++ {
		g.xorRow(y)
	}

	dst := low
	for src := low; src <= top; src++ {
		if g.rows[src] == g.fullMask {
			continue
		}
		g.rows[dst] = g.rows[src]
		dst++
	}
	for y := dst; y <= top; y++ {
		g.rows[y] = EmptyBitRow
	}

	for y := low; y < dst; y++ {
		g.xorRow(y)
	}
	for y := low; y <= top; y++ {
		g.rowFill[y] = g.rows[y].PopCount()
	}

	g.rebuildColumns(top)

	g.fullRows = g.fullRows[:0]
	g.totalCleared += n
	return n
}

func (g *Grid) xorRow(y int) {
	row := g.rows[y]
	for x := 0; x < g.w; x++ {
		if row.IsSet(x) {
			g.hash ^= g.zt.Cell(x, y)
		}
	}
}

// rebuildColumns recomputes relief, stacks and gaps from rows[0;top].
func (g *Grid) rebuildColumns(top int) {
	for x := 0; x < g.w; x++ {
		stack := g.stacks[x][:0]
		for y := 0; y <= top; y++ {
			if g.rows[y].IsSet(x) {
				stack = append(stack, y)
			}
		}
		g.stacks[x] = stack
		if len(stack) == 0 {
			g.relief[x] = -1
			g.gaps[x] = 0
			continue
		}
		g.relief[x] = stack[len(stack)-1]
		g.gaps[x] = g.relief[x] + 1 - len(stack)
	}
}

// Reset empties the grid and zeroes the line counters.
func (g *Grid) Reset() {
	for y := 0; y < g.h; y++ {
		g.rows[y] = EmptyBitRow
		g.rowFill[y] = 0
	}
	for x := 0; x < g.w; x++ {
		g.relief[x] = -1
		g.gaps[x] = 0
		g.stacks[x] = g.stacks[x][:0]
	}
	g.fullRows = g.fullRows[:0]
	g.hash = 0
	g.totalCleared = 0
	g.lastCleared = 0
}

// Validate checks every structural invariant of the derived state against
// the rows. It is intended for tests and debugging.
func (g *Grid) Validate() error {
	for x := 0; x < g.w; x++ {
		var stack []int
		for y := 0; y < g.h; y++ {
			if g.rows[y].IsSet(x) {
				stack = append(stack, y)
			}
		}

		relief := -1
		if len(stack) > 0 {
			relief = stack[len(stack)-1]
		}
		if g.relief[x] != relief {
			return fmt.Errorf("column %v: relief %v, expected %v", x, g.relief[x], relief)
		}
		if len(g.stacks[x]) != len(stack) {
			return fmt.Errorf("column %v: stack size %v, expected %v", x, len(g.stacks[x]), len(stack))
		}
		for i, y := range stack {
			if g.stacks[x][i] != y {
				return fmt.Errorf("column %v: stack[%v] = %v, expected %v", x, i, g.stacks[x][i], y)
			}
		}
		if gaps := relief + 1 - len(stack); g.gaps[x] != gaps {
			return fmt.Errorf("column %v: gaps %v, expected %v", x, g.gaps[x], gaps)
		}
	}

	full := map[int]bool{}
	for _, y := range g.fullRows {
		if full[y] {
			return fmt.Errorf("row %v: duplicate full-row entry", y)
		}
		full[y] = true
	}
	for y := 0; y < g.h; y++ {
		if g.rowFill[y] != g.rows[y].PopCount() {
			return fmt.Errorf("row %v: fill %v, expected %v", y, g.rowFill[y], g.rows[y].PopCount())
		}
		if isFull := g.rows[y] == g.fullMask; full[y] != isFull {
			return fmt.Errorf("row %v: full-row index mismatch", y)
		}
	}

	if hash := g.zt.Hash(g); g.hash != hash {
		return fmt.Errorf("hash %x, expected %x", g.hash, hash)
	}
	return nil
}

func (g *Grid) String() string {
	var sb strings.Builder
	for y := g.h - 1; y >= 0; y-- {
		sb.WriteString(g.rows[y].String(g.w))
		if y > 0 {
			sb.WriteRune('/')
		}
	}
	return fmt.Sprintf("grid{%vx%v %v hash=%x cleared=%v}", g.w, g.h, sb.String(), g.hash, g.totalCleared)
}
