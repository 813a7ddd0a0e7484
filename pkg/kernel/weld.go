package kernel

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultWeldTolerance merges vertices closer than one micrometre.
const DefaultWeldTolerance = 1e-6

// Weld builds an indexed mesh from a triangle soup, merging vertices that
// fall in the same tolerance cell. Triangles that collapse after merging
// are dropped.
func Weld(triangles [][3]v3.Vec, tol float64) *Mesh {
	if tol <= 0 {
		tol = DefaultWeldTolerance
	}
	type cell struct{ x, y, z int64 }
	quant := func(v v3.Vec) cell {
		return cell{
			int64(math.Round(v.X / tol)),
			int64(math.Round(v.Y / tol)),
			int64(math.Round(v.Z / tol)),
		}
	}

	index := make(map[cell]int, len(triangles)*3/2)
	m := &Mesh{
		Vertices: make([]v3.Vec, 0, len(triangles)/2+3),
		Faces:    make([][3]int, 0, len(triangles)),
	}
	lookup := func(v v3.Vec) int {
		k := quant(v)
		if i, ok := index[k]; ok {
			return i
		}
		i := len(m.Vertices)
		m.Vertices = append(m.Vertices, v)
		index[k] = i
		return i
	}

	for _, t := range triangles {
		f := [3]int{lookup(t[0]), lookup(t[1]), lookup(t[2])}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		m.Faces = append(m.Faces, f)
	}
	return m
}

// Triangles expands the mesh into a triangle soup.
func (m *Mesh) Triangles() [][3]v3.Vec {
	out := make([][3]v3.Vec, len(m.Faces))
	for i, f := range m.Faces {
		out[i] = [3]v3.Vec{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
	}
	return out
}
