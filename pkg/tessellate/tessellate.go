// Package tessellate triangulates planar regions bounded by closed
// contours. Regions follow the even-odd rule, so a contour nested inside
// another is a hole, a contour inside that hole is an island, and so on.
// Triangle indices refer to the contours' points in input order, which lets
// the extruder share cap vertices with its side walls.
package tessellate

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/bladesmith/pkg/curve"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// region is one outer contour plus the holes directly inside it.
type region struct {
	outer int
	holes []int
}

// Fill triangulates the even-odd interior of the contours. Each returned
// triangle is counter-clockwise and indexes the concatenation of all
// contour points in input order.
func Fill(contours [][]v2.Vec) ([][3]int, error) {
	pts, offsets := flatten(contours)
	regions, err := nest(contours)
	if err != nil {
		return nil, err
	}

	var tris [][3]int
	for _, r := range regions {
		ring := loop(contours, offsets, r.outer, true)
		holes := make([][]int, len(r.holes))
		for i, h := range r.holes {
			holes[i] = loop(contours, offsets, h, false)
		}
		ring, err = bridgeHoles(pts, ring, holes)
		if err != nil {
			return nil, fmt.Errorf("tessellate: contour %d: %w", r.outer, err)
		}
		tris = append(tris, clipEars(pts, ring)...)
	}
	return tris, nil
}

func flatten(contours [][]v2.Vec) ([]v2.Vec, []int) {
	var pts []v2.Vec
	offsets := make([]int, len(contours))
	for i, c := range contours {
		offsets[i] = len(pts)
		pts = append(pts, c...)
	}
	return pts, offsets
}

// loop returns the global indices of contour c, ordered counter-clockwise
// for outers and clockwise for holes.
func loop(contours [][]v2.Vec, offsets []int, c int, ccw bool) []int {
	n := len(contours[c])
	idx := make([]int, n)
	for i := range idx {
		idx[i] = offsets[c] + i
	}
	if (curve.Area(contours[c]) > 0) != ccw {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			idx[i], idx[j] = idx[j], idx[i]
		}
	}
	return idx
}

// Orient returns copies of the contours wound so that the even-odd
// interior lies on their left: outers counter-clockwise, holes clockwise.
// Contours that cannot be nested are returned unchanged.
func Orient(contours [][]v2.Vec) [][]v2.Vec {
	depth, _, err := depths(contours)
	out := make([][]v2.Vec, len(contours))
	for i, c := range contours {
		out[i] = c
		if err != nil {
			continue
		}
		if ccw := depth[i]%2 == 0; (curve.Area(c) > 0) != ccw {
			out[i] = curve.Reverse(c)
		}
	}
	return out
}

// depths returns each contour's containment depth and its innermost
// enclosing contour, or -1 at depth 0.
func depths(contours [][]v2.Vec) ([]int, []int, error) {
	n := len(contours)
	area := make([]float64, n)
	for i, c := range contours {
		if len(c) < 3 {
			return nil, nil, fmt.Errorf("tessellate: contour %d has %d points", i, len(c))
		}
		area[i] = math.Abs(curve.Area(c))
	}
	depth := make([]int, n)
	parent := make([]int, n)
	for i := range contours {
		parent[i] = -1
		probe := interiorProbe(contours[i])
		for j := range contours {
			if i == j || area[j] <= area[i] {
				continue
			}
			if curve.Contains(contours[j], probe) {
				depth[i]++
				if parent[i] < 0 || area[j] < area[parent[i]] {
					parent[i] = j
				}
			}
		}
	}
	return depth, parent, nil
}

// nest groups contours into regions by containment depth.
func nest(contours [][]v2.Vec) ([]region, error) {
	depth, parent, err := depths(contours)
	if err != nil {
		return nil, err
	}

	var regions []region
	byOuter := make(map[int]int)
	order := make([]int, len(contours))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return depth[order[a]] < depth[order[b]] })
	for _, i := range order {
		if depth[i]%2 == 0 {
			byOuter[i] = len(regions)
			regions = append(regions, region{outer: i})
			continue
		}
		r, ok := byOuter[parent[i]]
		if !ok {
			return nil, fmt.Errorf("tessellate: hole %d has no enclosing contour", i)
		}
		regions[r].holes = append(regions[r].holes, i)
	}
	return regions, nil
}

// interiorProbe returns a point just inside the first edge of c, so that
// containment tests are not decided by a shared boundary vertex.
func interiorProbe(c []v2.Vec) v2.Vec {
	a, b := c[0], c[1]
	mid := a.Add(b).MulScalar(0.5)
	d := b.Sub(a)
	l := d.Length()
	if l == 0 {
		return mid
	}
	// Inward normal of a counter-clockwise edge is (-dy, dx).
	nrm := v2.Vec{X: -d.Y / l, Y: d.X / l}
	if curve.Area(c) < 0 {
		nrm = nrm.MulScalar(-1)
	}
	return mid.Add(nrm.MulScalar(l * 1e-6))
}

// bridgeHoles splices each clockwise hole into the counter-clockwise ring
// through a pair of coincident bridge edges, rightmost hole first.
func bridgeHoles(pts []v2.Vec, ring []int, holes [][]int) ([]int, error) {
	rightmost := func(h []int) int {
		best := 0
		for i, idx := range h {
			if pts[idx].X > pts[h[best]].X {
				best = i
			}
		}
		return best
	}
	sort.Slice(holes, func(a, b int) bool {
		return pts[holes[a][rightmost(holes[a])]].X > pts[holes[b][rightmost(holes[b])]].X
	})

	for _, h := range holes {
		mi := rightmost(h)
		m := pts[h[mi]]
		pos, err := visibleVertex(pts, ring, m)
		if err != nil {
			return nil, err
		}
		merged := make([]int, 0, len(ring)+len(h)+2)
		merged = append(merged, ring[:pos+1]...)
		for k := 0; k <= len(h); k++ {
			merged = append(merged, h[(mi+k)%len(h)])
		}
		merged = append(merged, ring[pos])
		merged = append(merged, ring[pos+1:]...)
		ring = merged
	}
	return ring, nil
}

// visibleVertex finds the ring position of a vertex that can be joined to
// m by a segment crossing no ring edge.
func visibleVertex(pts []v2.Vec, ring []int, m v2.Vec) (int, error) {
	n := len(ring)
	hitX := math.Inf(1)
	hitPos := -1
	for i := 0; i < n; i++ {
		a, b := pts[ring[i]], pts[ring[(i+1)%n]]
		if a.Y == b.Y || math.Min(a.Y, b.Y) > m.Y || math.Max(a.Y, b.Y) < m.Y {
			continue
		}
		x := a.X + (m.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		if x < m.X || x >= hitX {
			continue
		}
		hitX = x
		if a.X > b.X {
			hitPos = i
		} else {
			hitPos = (i + 1) % n
		}
	}
	if hitPos < 0 {
		return 0, fmt.Errorf("hole is not enclosed by its outer contour")
	}

	hit := v2.Vec{X: hitX, Y: m.Y}
	p := pts[ring[hitPos]]
	if p == hit {
		return hitPos, nil
	}

	// A reflex vertex inside triangle (m, hit, p) would block the bridge;
	// take the one making the smallest angle with the ray.
	best := hitPos
	bestCos := p.Sub(m).X / p.Sub(m).Length()
	for i := 0; i < n; i++ {
		q := pts[ring[i]]
		if i == hitPos || q == p {
			continue
		}
		prev, next := pts[ring[(i+n-1)%n]], pts[ring[(i+1)%n]]
		if cross(q.Sub(prev), next.Sub(q)) > 0 {
			continue
		}
		if !inTriangle(q, m, hit, p) {
			continue
		}
		d := q.Sub(m)
		l := d.Length()
		if l == 0 {
			continue
		}
		if c := d.X / l; c > bestCos || (c == bestCos && l < pts[ring[best]].Sub(m).Length()) {
			best, bestCos = i, c
		}
	}
	return best, nil
}

// clipEars triangulates a counter-clockwise ring that may contain bridge
// vertices twice.
func clipEars(pts []v2.Vec, ring []int) [][3]int {
	ring = append([]int(nil), ring...)
	tris := make([][3]int, 0, len(ring))
	i := 0
	for len(ring) > 3 {
		n := len(ring)
		clipped := false
		for tries := 0; tries < n; tries++ {
			k := (i + tries) % n
			if isEar(pts, ring, k) {
				tris = append(tris, corner(ring, k))
				ring = append(ring[:k], ring[k+1:]...)
				i = k % len(ring)
				clipped = true
				break
			}
		}
		if clipped {
			continue
		}
		// Numerically stuck: cut the most convex corner and keep going so
		// every ring edge still ends up in exactly one triangle.
		k := mostConvex(pts, ring)
		tris = append(tris, corner(ring, k))
		ring = append(ring[:k], ring[k+1:]...)
		i = k % len(ring)
	}
	return append(tris, [3]int{ring[0], ring[1], ring[2]})
}

func corner(ring []int, k int) [3]int {
	n := len(ring)
	return [3]int{ring[(k+n-1)%n], ring[k], ring[(k+1)%n]}
}

func isEar(pts []v2.Vec, ring []int, k int) bool {
	n := len(ring)
	t := corner(ring, k)
	a, b, c := pts[t[0]], pts[t[1]], pts[t[2]]
	if cross(b.Sub(a), c.Sub(b)) <= 0 {
		return false
	}
	for j := 0; j < n; j++ {
		idx := ring[j]
		if idx == t[0] || idx == t[1] || idx == t[2] {
			continue
		}
		q := pts[idx]
		if q == a || q == b || q == c {
			continue
		}
		if inTriangle(q, a, b, c) {
			return false
		}
	}
	return true
}

func mostConvex(pts []v2.Vec, ring []int) int {
	best, bestCross := 0, math.Inf(-1)
	for k := range ring {
		t := corner(ring, k)
		a, b, c := pts[t[0]], pts[t[1]], pts[t[2]]
		if x := cross(b.Sub(a), c.Sub(b)); x > bestCross {
			best, bestCross = k, x
		}
	}
	return best
}

func cross(a, b v2.Vec) float64 {
	return a.X*b.Y - a.Y*b.X
}

// inTriangle reports whether q lies inside or on the triangle abc, in
// either winding.
func inTriangle(q, a, b, c v2.Vec) bool {
	d1 := cross(b.Sub(a), q.Sub(a))
	d2 := cross(c.Sub(b), q.Sub(b))
	d3 := cross(a.Sub(c), q.Sub(c))
	neg := d1 < 0 || d2 < 0 || d3 < 0
	pos := d1 > 0 || d2 > 0 || d3 > 0
	return !(neg && pos)
}
