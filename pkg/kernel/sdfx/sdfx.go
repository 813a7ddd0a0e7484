// Package sdfx bridges kernel meshes and the github.com/deadsy/sdfx
// signed distance field library. A Grid holds a sampled distance field that
// satisfies sdf.SDF3, and ToMesh reconstructs an indexed kernel.Mesh from
// any SDF3 using sdfx's uniform marching cubes.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/bladesmith/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ sdf.SDF3 = (*Grid)(nil)

// DefaultMeshCells controls marching cubes resolution when the caller does
// not pick one.
const DefaultMeshCells = 200

// Grid is a signed distance field sampled at voxel centres. Negative values
// are inside. Sample (i, j, k) sits at Origin + (i+0.5, j+0.5, k+0.5)*Pitch.
type Grid struct {
	Origin v3.Vec
	Pitch  float64
	N      [3]int
	Values []float32
}

// NewGrid allocates a grid with every sample set to +Inf (empty space).
func NewGrid(origin v3.Vec, pitch float64, n [3]int) *Grid {
	g := &Grid{
		Origin: origin,
		Pitch:  pitch,
		N:      n,
		Values: make([]float32, n[0]*n[1]*n[2]),
	}
	inf := float32(math.Inf(1))
	for i := range g.Values {
		g.Values[i] = inf
	}
	return g
}

// Index returns the flat offset of sample (i, j, k). X varies fastest.
func (g *Grid) Index(i, j, k int) int {
	return (k*g.N[1]+j)*g.N[0] + i
}

// At returns the sample at (i, j, k).
func (g *Grid) At(i, j, k int) float64 {
	return float64(g.Values[g.Index(i, j, k)])
}

// Center returns the model-space position of sample (i, j, k).
func (g *Grid) Center(i, j, k int) v3.Vec {
	return v3.Vec{
		X: g.Origin.X + (float64(i)+0.5)*g.Pitch,
		Y: g.Origin.Y + (float64(j)+0.5)*g.Pitch,
		Z: g.Origin.Z + (float64(k)+0.5)*g.Pitch,
	}
}

// BoundingBox returns the extent covered by the grid cells.
func (g *Grid) BoundingBox() sdf.Box3 {
	return sdf.Box3{
		Min: g.Origin,
		Max: g.Origin.Add(v3.Vec{
			X: float64(g.N[0]) * g.Pitch,
			Y: float64(g.N[1]) * g.Pitch,
			Z: float64(g.N[2]) * g.Pitch,
		}),
	}
}

// Evaluate trilinearly interpolates the field at p. Points beyond the
// outermost sample centres are clamped onto the grid and the clamp distance
// is added, so the field keeps growing outside the grid.
func (g *Grid) Evaluate(p v3.Vec) float64 {
	coord := [3]float64{
		(p.X-g.Origin.X)/g.Pitch - 0.5,
		(p.Y-g.Origin.Y)/g.Pitch - 0.5,
		(p.Z-g.Origin.Z)/g.Pitch - 0.5,
	}
	var base [3]int
	var frac [3]float64
	var outside float64
	for a := 0; a < 3; a++ {
		c := coord[a]
		hi := float64(g.N[a] - 1)
		if c < 0 {
			outside += c * c
			c = 0
		} else if c > hi {
			outside += (c - hi) * (c - hi)
			c = hi
		}
		b := int(math.Floor(c))
		if b >= g.N[a]-1 {
			b = g.N[a] - 2
		}
		if b < 0 {
			b = 0
		}
		base[a] = b
		frac[a] = c - float64(b)
		if g.N[a] == 1 {
			frac[a] = 0
		}
	}

	sample := func(di, dj, dk int) float64 {
		i, j, k := base[0]+di, base[1]+dj, base[2]+dk
		if i >= g.N[0] {
			i = g.N[0] - 1
		}
		if j >= g.N[1] {
			j = g.N[1] - 1
		}
		if k >= g.N[2] {
			k = g.N[2] - 1
		}
		return g.At(i, j, k)
	}
	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }

	c00 := lerp(sample(0, 0, 0), sample(1, 0, 0), frac[0])
	c10 := lerp(sample(0, 1, 0), sample(1, 1, 0), frac[0])
	c01 := lerp(sample(0, 0, 1), sample(1, 0, 1), frac[0])
	c11 := lerp(sample(0, 1, 1), sample(1, 1, 1), frac[0])
	v := lerp(lerp(c00, c10, frac[1]), lerp(c01, c11, frac[1]), frac[2])
	return v + math.Sqrt(outside)*g.Pitch
}

// ToMesh converts a solid to a welded triangle mesh using marching cubes.
// cells is the number of cells along the longest bounding box side; values
// below 1 select DefaultMeshCells. The mesh is oriented so that its signed
// volume is positive. A panic inside sdfx is returned as an error.
func ToMesh(s sdf.SDF3, cells int) (m *kernel.Mesh, err error) {
	if cells < 1 {
		cells = DefaultMeshCells
	}
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("sdfx: marching cubes: %v", r)
		}
	}()

	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(s, renderer)

	soup := make([][3]v3.Vec, 0, len(triangles))
	for _, tri := range triangles {
		soup = append(soup, [3]v3.Vec{tri[0], tri[1], tri[2]})
	}

	bb := s.BoundingBox()
	tol := bb.Max.Sub(bb.Min).Length() * 1e-9
	m = kernel.Weld(soup, tol)
	if m.IsEmpty() {
		return nil, fmt.Errorf("sdfx: marching cubes produced no surface")
	}
	if m.Volume() < 0 {
		m = m.Flipped()
	}
	return m, nil
}
