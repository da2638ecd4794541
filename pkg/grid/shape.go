package grid

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Cell is a cell coordinate. For shapes it is local to the bounding box with
// (0,0) the bottom-left corner; y grows upward.
type Cell struct {
	X, Y int
}

// Dim is a bounding box size.
type Dim struct {
	W, H int
}

// Shape is a tetromino with all rotation geometry precomputed: canonical cell
// offsets, bounding boxes and bottom crusts. Shapes are immutable and safely
// shared across games.
type Shape struct {
	index  int
	letter byte

	rots   [][4]Cell // origin-normalized cells per rotation, sorted by (y,x)
	wh     []Dim     // bounding box per rotation
	crust  [][]int   // lowest occupied local y per bounding-box column
	maxDim int
}

// Index returns the shape index in its table.
func (s *Shape) Index() int {
	return s.index
}

// NumRot returns the number of distinct rotations: 1 (O), 2 (I, S, Z) or
// 4 (J, L, T) for the canonical shapes.
func (s *Shape) NumRot() int {
	return len(s.rots)
}

// Cells returns the four local cell offsets of the given rotation.
func (s *Shape) Cells(rot int) [4]Cell {
	return s.rots[rot]
}

// Size returns the bounding box of the given rotation.
func (s *Shape) Size(rot int) Dim {
	return s.wh[rot]
}

// BottomCrust returns, for each column of the rotation's bounding box, the
// lowest occupied local y. It determines the hard-drop distance in O(width).
// The returned slice must not be modified.
func (s *Shape) BottomCrust(rot int) []int {
	return s.crust[rot]
}

// MaxDim returns the largest bounding box dimension over all rotations. It
// bounds the vertical extent of any rotation and fixes the spawn height.
func (s *Shape) MaxDim() int {
	return s.maxDim
}

func (s *Shape) String() string {
	return string(s.letter)
}

// Table is an immutable set of shapes, built once at startup.
type Table struct {
	shapes []*Shape
}

// NumShapes returns the number of shapes in the table.
func (t *Table) NumShapes() int {
	return len(t.shapes)
}

// Shape returns shape i.
func (t *Table) Shape(i int) *Shape {
	return t.shapes[i]
}

// NumTetrominoes is the number of distinct tetrominoes.
const NumTetrominoes = 7

// letters names the canonical shapes in description order.
const letters = "IJLOSTZ"

// canonical is the embedded shape description: one base rotation per shape in
// the external text format of ParseShapes.
const canonical = `
####

#
###

  #
###

##
##

 ##
##

###
 #

##
 ##
`

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// Shapes returns the canonical 7-tetromino table. Built once and shared.
func Shapes() *Table {
	defaultTableOnce.Do(func() {
		t, err := ParseShapes(strings.NewReader(canonical))
		if err != nil {
			panic(fmt.Sprintf("invalid canonical shapes: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// ParseShapes reads a shape description: each shape is a block of at most 4
// lines of at most 4 characters, where '#' or '*' marks an occupied cell and
// ' ' or '.' an empty one; any other character is an error. Blank lines
// separate shapes. Exactly 7 shapes are required.
// All rotations, bounding boxes and crusts are derived from the base rotation.
func ParseShapes(r io.Reader) (*Table, error) {
	blocks, err := splitBlocks(r)
	if err != nil {
		return nil, err
	}
	if len(blocks) != NumTetrominoes {
		return nil, fmt.Errorf("invalid shape count: %v, expected %v", len(blocks), NumTetrominoes)
	}

	ret := &Table{}
	for i, block := range blocks {
		base, err := parseBlock(block)
		if err != nil {
			return nil, fmt.Errorf("invalid shape %v: %v", i, err)
		}
		s, err := newShape(i, letters[i], base)
		if err != nil {
			return nil, fmt.Errorf("invalid shape %v: %v", i, err)
		}
		ret.shapes = append(ret.shapes, s)
	}
	return ret, nil
}

func splitBlocks(r io.Reader) ([][]string, error) {
	var blocks [][]string
	var cur []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks, nil
}

// parseBlock extracts the origin-normalized cells of a base rotation.
func parseBlock(lines []string) ([4]Cell, error) {
	var none [4]Cell

	if len(lines) > 4 {
		return none, fmt.Errorf("too many lines: %v", len(lines))
	}

	var cells []Cell
	for i, line := range lines {
		if len(line) > 4 {
			return none, fmt.Errorf("line too long: %q", line)
		}
		for j, r := range line {
			switch r {
			case '#', '*':
				cells = append(cells, Cell{X: j, Y: len(lines) - 1 - i})
			case ' ', '.':
				// empty cell
			default:
				return none, fmt.Errorf("invalid character %q in %q", r, line)
			}
		}
	}
	if len(cells) != 4 {
		return none, fmt.Errorf("invalid cell count: %v, expected 4", len(cells))
	}

	var ret [4]Cell
	copy(ret[:], cells)
	return normalize(ret), nil
}

func newShape(index int, letter byte, base [4]Cell) (*Shape, error) {
	ret := &Shape{index: index, letter: letter}

	rot := base
	for i := 0; i < 4; i++ {
		if i > 0 && rot == ret.rots[0] {
			break // remaining rotations repeat
		}
		w, h := boundingBox(rot)

		crust := make([]int, w)
		for x := range crust {
			crust[x] = -1
		}
		for _, c := range rot {
			if crust[c.X] == -1 || c.Y < crust[c.X] {
				crust[c.X] = c.Y
			}
		}
		for x, y := range crust {
			if y == -1 {
				return nil, fmt.Errorf("empty column %v in rotation %v", x, i)
			}
		}

		ret.rots = append(ret.rots, rot)
		ret.wh = append(ret.wh, Dim{W: w, H: h})
		ret.crust = append(ret.crust, crust)
		if w > ret.maxDim {
			ret.maxDim = w
		}
		if h > ret.maxDim {
			ret.maxDim = h
		}

		rot = rotate(rot)
	}
	return ret, nil
}

// rotate turns the cells 90 degrees clockwise and re-normalizes.
func rotate(cells [4]Cell) [4]Cell {
	maxX := 0
	for _, c := range cells {
		if c.X > maxX {
			maxX = c.X
		}
	}

	var ret [4]Cell
	for i, c := range cells {
		ret[i] = Cell{X: c.Y, Y: maxX - c.X}
	}
	return normalize(ret)
}

// normalize translates cells so the minimum x and y are zero and sorts them
// canonically by (y, x).
func normalize(cells [4]Cell) [4]Cell {
	minX, minY := cells[0].X, cells[0].Y
	for _, c := range cells[1:] {
		if c.X < minX {
			minX = c.X
		}
		if c.Y < minY {
			minY = c.Y
		}
	}
	for i := range cells {
		cells[i].X -= minX
		cells[i].Y -= minY
	}
	sort.Slice(cells[:], func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})
	return cells
}

func boundingBox(cells [4]Cell) (int, int) {
	w, h := 0, 0
	for _, c := range cells {
		if c.X+1 > w {
			w = c.X + 1
		}
		if c.Y+1 > h {
			h = c.Y + 1
		}
	}
	return w, h
}
