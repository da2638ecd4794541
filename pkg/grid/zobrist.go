package grid

import (
	"time"
	"unsafe"
)

// ZobristHash is a playfield hash based on occupied cells. It hashes identical
// cell populations to the same value and is intended for transposition
// detection by search callers.
//
// See also: https://research.cs.wisc.edu/techreports/1970/TR88.pdf.
type ZobristHash uint64

// ZobristTable is a pseudo-randomized per-cell table for computing a playfield
// hash incrementally. Written once at creation and read-only thereafter.
type ZobristTable struct {
	w, h  int
	cells []ZobristHash // w*h, column-major
}

func NewZobristTable(w, h int, seed int64) *ZobristTable {
	ret := &ZobristTable{
		w:     w,
		h:     h,
		cells: make([]ZobristHash, w*h),
	}

	r := xorshift64{state: uint64(seed)}
	if r.state == 0 {
		r.state = 1
	}
	for i := range ret.cells {
		ret.cells[i] = ZobristHash(r.next())
	}
	return ret
}

func (z *ZobristTable) Width() int {
	return z.w
}

func (z *ZobristTable) Height() int {
	return z.h
}

// Cell returns the hash constant for the given cell.
func (z *ZobristTable) Cell(x, y int) ZobristHash {
	return z.cells[x*z.h+y]
}

// Hash computes the zobrist hash for the given grid from scratch. Mutating
// operations maintain the hash incrementally; this is the reference
// definition.
func (z *ZobristTable) Hash(g *Grid) ZobristHash {
	var hash ZobristHash
	for x := 0; x < z.w; x++ {
		for y := 0; y < z.h; y++ {
			if g.IsSet(x, y) {
				hash ^= z.Cell(x, y)
			}
		}
	}
	return hash
}

// EntropySeed returns a seed derived from wall time and program address
// entropy. Useful when no reproducible seed is required.
func EntropySeed() int64 {
	var probe int
	return time.Now().UnixNano() ^ int64(uintptr(unsafe.Pointer(&probe)))
}

// xorshift64 is an xorshift64* pseudo-random generator. The state must be
// nonzero.
type xorshift64 struct {
	state uint64
}

func (s *xorshift64) next() uint64 {
	x := s.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	s.state = x
	return x * 0x2545F4914F6CDD1D
}
