// Package eval contains playfield evaluation logic and utilities.
package eval

import (
	"fmt"
	"strings"

	"github.com/herohde/stax/pkg/grid"
)

// Feature indexes one scalar feature of a terminal playfield state.
type Feature int

const (
	// ReliefMax is the maximum column height.
	ReliefMax Feature = iota
	// ReliefAvg is the mean column height.
	ReliefAvg
	// ReliefVar is the surface roughness: the sum of absolute height
	// differences between adjacent columns.
	ReliefVar
	// Gaps is the total number of buried holes.
	Gaps
	// Obs is the number of obstructed cells: occupied cells with at least
	// one empty cell below them in the same column.
	Obs
	// Discont is the number of occupied-to-empty transitions within rows.
	Discont
	// Crevices is the number of deep wells: columns whose both neighbors,
	// with grid edges counted as full height, are at least 3 higher.
	Crevices

	NumFeatures
)

// creviceDepth is the minimum height difference on both sides for a column
// to count as a deep well.
const creviceDepth = 3

func (f Feature) String() string {
	switch f {
	case ReliefMax:
		return "RELIEF_MAX"
	case ReliefAvg:
		return "RELIEF_AVG"
	case ReliefVar:
		return "RELIEF_VAR"
	case Gaps:
		return "GAPS"
	case Obs:
		return "OBS"
	case Discont:
		return "DISCONT"
	case Crevices:
		return "CREVICES"
	default:
		return "?"
	}
}

// Vector is an extracted feature vector.
type Vector [NumFeatures]float64

func (v Vector) String() string {
	var parts []string
	for f := Feature(0); f < NumFeatures; f++ {
		parts = append(parts, fmt.Sprintf("%v=%.1f", f, v[f]))
	}
	return fmt.Sprintf("[%v]", strings.Join(parts, ", "))
}

// Score returns the weighted evaluation of the vector.
func (v Vector) Score(w Weights) float64 {
	var ret float64
	for f := Feature(0); f < NumFeatures; f++ {
		ret += w[f] * v[f]
	}
	return ret
}

// Extract computes the feature vector of a terminal (post-placement) grid.
// All features derive from the incrementally maintained relief, gap and stack
// statistics in O(W), except Discont which scans the rows up to the relief.
func Extract(g *grid.Grid) Vector {
	var v Vector

	w := g.Width()
	h := g.Height()

	prev := g.Relief(0) + 1
	for x := 0; x < w; x++ {
		height := g.Relief(x) + 1

		if float64(height) > v[ReliefMax] {
			v[ReliefMax] = float64(height)
		}
		v[ReliefAvg] += float64(height)
		if x > 0 {
			v[ReliefVar] += float64(abs(height - prev))
		}
		prev = height

		v[Gaps] += float64(g.GapCount(x))

		// An occupied cell y has an empty cell below it iff the number of
		// occupied cells below it, its stack position, is less than y.
		for i, y := range g.Stack(x) {
			if i < y {
				v[Obs]++
			}
		}

		left, right := h, h
		if x > 0 {
			left = g.Relief(x-1) + 1
		}
		if x < w-1 {
			right = g.Relief(x+1) + 1
		}
		if left >= height+creviceDepth && right >= height+creviceDepth {
			v[Crevices]++
		}
	}
	v[ReliefAvg] /= float64(w)

	top := g.MaxRelief()
	for y := 0; y <= top; y++ {
		v[Discont] += float64(g.Row(y).Discontinuities(w))
	}

	return v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
