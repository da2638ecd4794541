package search

import (
	"context"
	"fmt"
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/herohde/stax/pkg/grid"
	"github.com/seekerror/logw"
)

// TranspositionTable caches follow-up scores to speed up lookahead across
// placements that transpose to the same playfield. Entries are keyed by the
// grid zobrist hash and the piece index, so a table is only meaningful for
// grids sharing one zobrist table. Must be thread-safe.
type TranspositionTable interface {
	// Read returns the cached score for the given playfield and piece, if
	// present.
	Read(hash grid.ZobristHash, shape int) (float64, bool)
	// Write stores the score, depending on table semantics and replacement
	// policy.
	Write(hash grid.ZobristHash, shape int, score float64) bool

	// Size returns the size of the table in bytes.
	Size() uint64
	// Used returns the utilization as a fraction [0;1].
	Used() float64
}

// node represents a cached score. 24 bytes.
type node struct {
	hash  grid.ZobristHash
	shape int
	score float64
}

// table is a fixed-size lossy transposition table. It uses 32 bytes/entry
// and replaces unconditionally on index collision.
type table struct {
	table []*node
	mask  uint64
	used  uint64
}

// NewTranspositionTable returns a table of at most the given byte size,
// rounded down to a power-of-two entry count.
func NewTranspositionTable(ctx context.Context, size uint64) TranspositionTable {
	n := uint64(1 << (63 - 5 - bits.LeadingZeros64(size)))

	logw.Infof(ctx, "Allocating %vkB TT with %v entries", size>>10, n)

	return &table{
		table: make([]*node, n),
		mask:  n - 1,
	}
}

func (t *table) Size() uint64 {
	return uint64(len(t.table)) << 5
}

func (t *table) Used() float64 {
	return float64(atomic.LoadUint64(&t.used)) / float64(len(t.table))
}

func (t *table) Read(hash grid.ZobristHash, shape int) (float64, bool) {
	addr := (*unsafe.Pointer)(unsafe.Pointer(&t.table[t.key(hash, shape)]))

	ptr := (*node)(atomic.LoadPointer(addr))
	if ptr != nil && ptr.hash == hash && ptr.shape == shape {
		return ptr.score, true
	}
	return 0, false
}

func (t *table) Write(hash grid.ZobristHash, shape int, score float64) bool {
	addr := (*unsafe.Pointer)(unsafe.Pointer(&t.table[t.key(hash, shape)]))

	fresh := &node{hash: hash, shape: shape, score: score}

	if old := atomic.SwapPointer(addr, unsafe.Pointer(fresh)); old == nil {
		atomic.AddUint64(&t.used, 1)
	}
	return true
}

func (t *table) key(hash grid.ZobristHash, shape int) uint64 {
	return (uint64(hash) ^ uint64(shape+1)*0x9e3779b97f4a7c15) & t.mask
}

func (t *table) String() string {
	return fmt.Sprintf("TT[%v @ %v%%]", t.Size(), int(100*t.Used()))
}

// NoTranspositionTable is a Nop implementation.
type NoTranspositionTable struct{}

func (n NoTranspositionTable) Read(hash grid.ZobristHash, shape int) (float64, bool) {
	return 0, false
}

func (n NoTranspositionTable) Write(hash grid.ZobristHash, shape int, score float64) bool {
	return false
}

func (n NoTranspositionTable) Size() uint64 {
	return 0
}

func (n NoTranspositionTable) Used() float64 {
	return 0
}
