// Package walls finds thin walls in a triangle mesh and thickens them.
//
// A wall pair is two faces that look at each other from opposite sides of a
// thin solid region. Detection prunes candidates with a spatial index, so a
// mesh of n faces is scanned in O(n log n) rather than comparing every pair.
package walls

import (
	"math"
	"runtime"
	"sort"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/bladesmith/pkg/kernel"
	"github.com/chazu/bladesmith/pkg/spatial"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Detection defaults.
const (
	DefaultNeighbors = 10
	// DefaultOpposition is the largest normal dot product for two faces to
	// count as facing each other.
	DefaultOpposition = -0.8
	// chunkSize is the number of faces scanned per goroutine.
	chunkSize = 2048
)

// Pair is two faces on opposite sides of a wall.
type Pair struct {
	FaceA     int     `json:"faceA"`
	FaceB     int     `json:"faceB"`
	Thickness float64 `json:"thickness"`
	Midpoint  v3.Vec  `json:"midpoint"`
}

// Options tune detection. Zero values select the defaults.
type Options struct {
	Neighbors  int
	Opposition float64
	Workers    int
}

func (o Options) withDefaults() Options {
	if o.Neighbors <= 0 {
		o.Neighbors = DefaultNeighbors
	}
	if o.Opposition >= 0 || o.Opposition < -1 {
		o.Opposition = DefaultOpposition
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Detect returns the wall pairs of s thinner than threshold. For every face
// it looks at the Neighbors nearest face centres within 2*threshold; a
// candidate qualifies when its normal opposes the face's normal and it lies
// behind the face. The nearest qualifying candidate forms the pair and the
// distance between the two centres is the measured thickness. Pairs
// measuring more than threshold are dropped. Each unordered pair is reported
// once, ordered by FaceA. ix must index s; nil builds one.
func Detect(s kernel.Surface, ix *spatial.Index, threshold float64, opts Options) ([]Pair, error) {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return nil, &kernel.InvalidParameterError{Field: "wallThicknessThreshold", Value: threshold, Reason: "must be > 0"}
	}
	opts = opts.withDefaults()
	if ix == nil {
		ix = spatial.Build(s)
	}

	n := s.FaceCount()
	normals := make([]v3.Vec, n)
	for i := range normals {
		normals[i] = s.FaceNormal(i)
	}

	// partner[i] is the face paired with i, or -1. Goroutines write disjoint
	// ranges, so no locking is needed.
	partner := make([]int, n)
	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for first := 0; first < n; first += chunkSize {
		start, end := first, min(first+chunkSize, n)
		g.Go(func() error {
			for a := start; a < end; a++ {
				partner[a] = opposite(ix, normals, a, threshold, opts)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[[2]int]bool)
	var pairs []Pair
	for a, b := range partner {
		if b < 0 {
			continue
		}
		key := [2]int{min(a, b), max(a, b)}
		if seen[key] {
			continue
		}
		seen[key] = true
		ca, cb := ix.Center(key[0]), ix.Center(key[1])
		pairs = append(pairs, Pair{
			FaceA:     key[0],
			FaceB:     key[1],
			Thickness: cb.Sub(ca).Length(),
			Midpoint:  ca.Add(cb).MulScalar(0.5),
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].FaceA != pairs[j].FaceA {
			return pairs[i].FaceA < pairs[j].FaceA
		}
		return pairs[i].FaceB < pairs[j].FaceB
	})
	return pairs, nil
}

// opposite returns the face across the wall from face a, or -1.
func opposite(ix *spatial.Index, normals []v3.Vec, a int, threshold float64, opts Options) int {
	na := normals[a]
	if na == (v3.Vec{}) {
		return -1
	}
	ca := ix.Center(a)
	accept := func(b int) bool {
		if b == a || normals[b].Dot(na) >= opts.Opposition {
			return false
		}
		return ix.Center(b).Sub(ca).Dot(na) < 0
	}
	nbrs := ix.Nearest(ca, opts.Neighbors, 2*threshold, accept)
	if len(nbrs) == 0 || nbrs[0].Distance > threshold {
		return -1
	}
	return nbrs[0].Face
}

// Faces returns every face that takes part in a pair, ascending.
func Faces(pairs []Pair) []int {
	faces := lo.Uniq(lo.FlatMap(pairs, func(p Pair, _ int) []int {
		return []int{p.FaceA, p.FaceB}
	}))
	sort.Ints(faces)
	return faces
}

// Thickness maps each paired face to the thinnest measurement it is part of.
func Thickness(pairs []Pair) map[int]float64 {
	out := make(map[int]float64, 2*len(pairs))
	for _, p := range pairs {
		for _, f := range []int{p.FaceA, p.FaceB} {
			if t, ok := out[f]; !ok || p.Thickness < t {
				out[f] = p.Thickness
			}
		}
	}
	return out
}

// Thinnest returns the smallest measured thickness, or 0 with no pairs.
func Thinnest(pairs []Pair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	return lo.MinBy(pairs, func(a, b Pair) bool { return a.Thickness < b.Thickness }).Thickness
}
