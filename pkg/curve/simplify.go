package curve

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/bladesmith/pkg/kernel"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Tolerance fractions of the perimeter at detail 0 and detail 1.
const (
	coarseFraction = 0.02
	fineFraction   = 0.0005
)

// Epsilon returns the simplification tolerance for a loop of the given
// perimeter. Detail 0 keeps only the coarse shape, detail 1 keeps nearly
// every traced corner; the tolerance falls geometrically in between.
func Epsilon(detail, perimeter float64) float64 {
	return coarseFraction * math.Pow(fineFraction/coarseFraction, detail) * perimeter
}

// Simplify reduces a closed loop with Douglas-Peucker. Points whose
// deviation from the chord between their kept neighbours is at most
// Epsilon(detail, perimeter) are removed. The result always keeps at least
// three points, and for a fixed input its length never decreases as detail
// increases.
func Simplify(points []v2.Vec, detail float64) ([]v2.Vec, error) {
	if math.IsNaN(detail) || detail < 0 || detail > 1 {
		return nil, &kernel.InvalidParameterError{Field: "detailLevel", Value: detail, Reason: "must be within [0, 1]"}
	}
	p := Dedupe(points, 0)
	if len(p) < 3 {
		return nil, &kernel.InvalidGeometryError{Reason: fmt.Sprintf("outline has %d distinct points, need 3", len(p))}
	}
	perimeter := Perimeter(p)
	eps := Epsilon(detail, perimeter)

	// Split the loop at the point farthest from p[0] so both halves are
	// open polylines with well-defined chords.
	far := 0
	var best float64
	for i, v := range p {
		if d := v.Sub(p[0]).Length(); d > best {
			best, far = d, i
		}
	}
	if far == 0 {
		return nil, &kernel.InvalidGeometryError{Reason: "outline collapses to a single point"}
	}

	keep := make([]bool, len(p))
	keep[0], keep[far] = true, true
	closed := append(append([]v2.Vec{}, p...), p[0])
	douglasPeucker(closed, 0, far, eps, keep)
	douglasPeucker(closed, far, len(p), eps, keep)

	out := make([]v2.Vec, 0, len(p))
	for i, k := range keep {
		if k {
			out = append(out, p[i])
		}
	}
	if len(out) < 3 {
		third := farthestFromChord(p, far)
		if third == 0 || third == far {
			return nil, &kernel.InvalidGeometryError{Reason: "outline is degenerate"}
		}
		idx := []int{0, far, third}
		sort.Ints(idx)
		out = []v2.Vec{p[idx[0]], p[idx[1]], p[idx[2]]}
	}
	return out, nil
}

// douglasPeucker marks the points of pts[lo:hi+1] to keep. pts[hi] may be
// the repeated first point of a closed loop; keep has len(pts)-1 entries.
func douglasPeucker(pts []v2.Vec, lo, hi int, eps float64, keep []bool) {
	if hi-lo < 2 {
		return
	}
	idx := -1
	var dmax float64
	for i := lo + 1; i < hi; i++ {
		if d := pointSegmentDistance(pts[i], pts[lo], pts[hi]); d > dmax {
			dmax, idx = d, i
		}
	}
	if idx < 0 || dmax <= eps {
		return
	}
	keep[idx] = true
	douglasPeucker(pts, lo, idx, eps, keep)
	douglasPeucker(pts, idx, hi, eps, keep)
}

// farthestFromChord returns the index farthest from the line p[0]-p[far].
func farthestFromChord(p []v2.Vec, far int) int {
	idx := 0
	var best float64
	for i, v := range p {
		if d := pointSegmentDistance(v, p[0], p[far]); d > best {
			best, idx = d, i
		}
	}
	return idx
}
