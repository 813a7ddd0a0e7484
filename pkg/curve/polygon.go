// Package curve cleans up traced outlines before extrusion: closed-loop
// simplification, corner-cutting smoothing and the small polygon predicates
// the extruder relies on. Polygons are closed implicitly; the first point is
// never repeated at the end.
package curve

import (
	"math"
	"sort"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// EpsArea is the smallest enclosed area, in square model units, that a
// polygon may have and still be extruded.
const EpsArea = 1e-6

// Area returns the signed area. Counter-clockwise loops are positive.
func Area(p []v2.Vec) float64 {
	var a float64
	for i := range p {
		j := (i + 1) % len(p)
		a += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return a / 2
}

// Perimeter returns the length of the closed loop.
func Perimeter(p []v2.Vec) float64 {
	var l float64
	for i := range p {
		l += p[(i+1)%len(p)].Sub(p[i]).Length()
	}
	return l
}

// EnsureCCW returns p, or a reversed copy of p when it winds clockwise.
func EnsureCCW(p []v2.Vec) []v2.Vec {
	if Area(p) >= 0 {
		return p
	}
	return Reverse(p)
}

// Reverse returns a copy of p in reverse order.
func Reverse(p []v2.Vec) []v2.Vec {
	out := make([]v2.Vec, len(p))
	for i, v := range p {
		out[len(p)-1-i] = v
	}
	return out
}

// Dedupe drops consecutive points closer than tol, including the wrap from
// the last point back to the first.
func Dedupe(p []v2.Vec, tol float64) []v2.Vec {
	out := make([]v2.Vec, 0, len(p))
	for _, v := range p {
		if len(out) > 0 && v.Sub(out[len(out)-1]).Length() <= tol {
			continue
		}
		out = append(out, v)
	}
	for len(out) > 1 && out[len(out)-1].Sub(out[0]).Length() <= tol {
		out = out[:len(out)-1]
	}
	return out
}

// PruneCollinear removes points that deviate from the line through their
// neighbours by at most tol. Duplicates are dropped first.
func PruneCollinear(p []v2.Vec, tol float64) []v2.Vec {
	out := Dedupe(p, tol)
	for changed := true; changed && len(out) > 3; {
		changed = false
		for i := 0; i < len(out) && len(out) > 3; i++ {
			prev, next := out[(i+len(out)-1)%len(out)], out[(i+1)%len(out)]
			if pointSegmentDistance(out[i], prev, next) <= tol {
				out = append(out[:i], out[i+1:]...)
				changed = true
				i--
			}
		}
	}
	return out
}

// Contains reports whether q lies inside p using the even-odd rule.
func Contains(p []v2.Vec, q v2.Vec) bool {
	in := false
	for i, j := 0, len(p)-1; i < len(p); j, i = i, i+1 {
		a, b := p[i], p[j]
		if (a.Y > q.Y) != (b.Y > q.Y) {
			x := a.X + (q.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if q.X < x {
				in = !in
			}
		}
	}
	return in
}

// IsSimple reports whether the closed loop has no self-intersections.
// Segments are swept in order of their minimum x so that only segments
// with overlapping x ranges are compared.
func IsSimple(p []v2.Vec) bool {
	n := len(p)
	if n < 3 {
		return false
	}
	type segment struct {
		i          int
		minX, maxX float64
	}
	segs := make([]segment, n)
	for i := range p {
		a, b := p[i], p[(i+1)%n]
		segs[i] = segment{i: i, minX: math.Min(a.X, b.X), maxX: math.Max(a.X, b.X)}
	}
	sort.Slice(segs, func(a, b int) bool { return segs[a].minX < segs[b].minX })

	for x := range segs {
		s := segs[x]
		for y := x + 1; y < n && segs[y].minX <= s.maxX; y++ {
			o := segs[y]
			if adjacent(s.i, o.i, n) {
				if n == 3 {
					continue
				}
				// Adjacent edges may only share their common vertex.
				if overlapAdjacent(p, s.i, o.i) {
					return false
				}
				continue
			}
			if segmentsIntersect(p[s.i], p[(s.i+1)%n], p[o.i], p[(o.i+1)%n]) {
				return false
			}
		}
	}
	return true
}

func adjacent(i, j, n int) bool {
	return (i+1)%n == j || (j+1)%n == i
}

// overlapAdjacent reports whether two consecutive edges fold back onto
// each other.
func overlapAdjacent(p []v2.Vec, i, j int) bool {
	n := len(p)
	if (j+1)%n == i {
		i, j = j, i
	}
	a, b, c := p[i], p[(i+1)%n], p[(j+1)%n]
	if math.Abs(cross(b.Sub(a), c.Sub(b))) > 1e-12*(b.Sub(a).Length()+c.Sub(b).Length()) {
		return false
	}
	return b.Sub(a).Dot(c.Sub(b)) < 0
}

func cross(a, b v2.Vec) float64 {
	return a.X*b.Y - a.Y*b.X
}

func orient(a, b, c v2.Vec) float64 {
	return cross(b.Sub(a), c.Sub(a))
}

func onSegment(a, b, q v2.Vec) bool {
	return q.X >= math.Min(a.X, b.X) && q.X <= math.Max(a.X, b.X) &&
		q.Y >= math.Min(a.Y, b.Y) && q.Y <= math.Max(a.Y, b.Y)
}

func segmentsIntersect(a, b, c, d v2.Vec) bool {
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(c, d, a):
		return true
	case d2 == 0 && onSegment(c, d, b):
		return true
	case d3 == 0 && onSegment(a, b, c):
		return true
	case d4 == 0 && onSegment(a, b, d):
		return true
	}
	return false
}

// pointSegmentDistance returns the distance from q to the segment ab.
func pointSegmentDistance(q, a, b v2.Vec) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return q.Sub(a).Length()
	}
	t := q.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return q.Sub(a.Add(ab.MulScalar(t))).Length()
}
