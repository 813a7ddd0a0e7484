// Package spatial indexes mesh face centres in an R-tree for radius and
// nearest-neighbour queries. An Index is read-only once built and may be
// queried from many goroutines at once.
package spatial

import (
	"sort"

	"github.com/chazu/bladesmith/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"
)

// R-tree fan-out. Bulk loading packs nodes close to maxChildren.
const (
	minChildren = 25
	maxChildren = 50
	// pointTol is the half-width of the box stored for each centre.
	pointTol = 1e-9
)

// entry is one face centre stored in the tree.
type entry struct {
	face   int
	center v3.Vec
	bounds rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect {
	return e.bounds
}

// Index is an R-tree over the face centres of one mesh.
type Index struct {
	tree    *rtreego.Rtree
	centers []v3.Vec
}

// Neighbor is a face found by a query together with its centre distance.
type Neighbor struct {
	Face     int
	Distance float64
}

func point(v v3.Vec) rtreego.Point {
	return rtreego.Point{v.X, v.Y, v.Z}
}

// Build bulk-loads an index over every face centre of s.
func Build(s kernel.Surface) *Index {
	n := s.FaceCount()
	ix := &Index{centers: make([]v3.Vec, n)}
	objs := make([]rtreego.Spatial, n)
	for i := 0; i < n; i++ {
		c := s.FaceCenter(i)
		ix.centers[i] = c
		objs[i] = &entry{face: i, center: c, bounds: point(c).ToRect(pointTol)}
	}
	ix.tree = rtreego.NewTree(3, minChildren, maxChildren, objs...)
	return ix
}

// Len returns the number of indexed faces.
func (ix *Index) Len() int {
	return len(ix.centers)
}

// Center returns the indexed centre of a face.
func (ix *Index) Center(face int) v3.Vec {
	return ix.centers[face]
}

// Nearest returns up to k faces whose centres are closest to p, sorted by
// distance. k <= 0 means no count limit. When maxDist > 0 only centres
// within maxDist are considered. accept, when non-nil, is applied while the
// tree is searched, so rejected faces never take one of the k slots.
func (ix *Index) Nearest(p v3.Vec, k int, maxDist float64, accept func(face int) bool) []Neighbor {
	if ix.Len() == 0 {
		return nil
	}
	if maxDist <= 0 {
		return ix.knn(p, k, accept)
	}

	filter := func(_ []rtreego.Spatial, obj rtreego.Spatial) (bool, bool) {
		e := obj.(*entry)
		if e.center.Sub(p).Length() > maxDist {
			return true, false
		}
		return accept != nil && !accept(e.face), false
	}
	hits := ix.tree.SearchIntersect(point(p).ToRect(maxDist), filter)
	out := make([]Neighbor, len(hits))
	for i, h := range hits {
		e := h.(*entry)
		out[i] = Neighbor{Face: e.face, Distance: e.center.Sub(p).Length()}
	}
	sortNeighbors(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// knn is the unbounded query, answered by the tree's branch-and-bound
// nearest neighbour search.
func (ix *Index) knn(p v3.Vec, k int, accept func(face int) bool) []Neighbor {
	if k <= 0 || k > ix.Len() {
		k = ix.Len()
	}
	var filters []rtreego.Filter
	if accept != nil {
		filters = append(filters, func(_ []rtreego.Spatial, obj rtreego.Spatial) (bool, bool) {
			return !accept(obj.(*entry).face), false
		})
	}
	hits := ix.tree.NearestNeighbors(k, point(p), filters...)
	out := make([]Neighbor, 0, len(hits))
	for _, h := range hits {
		if h == nil {
			continue
		}
		e := h.(*entry)
		out = append(out, Neighbor{Face: e.face, Distance: e.center.Sub(p).Length()})
	}
	sortNeighbors(out)
	return out
}

// sortNeighbors orders by distance, breaking ties by face index so results
// are deterministic.
func sortNeighbors(n []Neighbor) {
	sort.Slice(n, func(a, b int) bool {
		if n[a].Distance != n[b].Distance {
			return n[a].Distance < n[b].Distance
		}
		return n[a].Face < n[b].Face
	})
}
