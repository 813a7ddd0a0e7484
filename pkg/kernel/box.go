package kernel

import v3 "github.com/deadsy/sdfx/vec/v3"

// Box returns a watertight box mesh with its minimum corner at the origin,
// so that translations place the box corner intuitively. Each face is split
// into a grid of div[axis] cells along the two in-plane axes; div values
// below 1 are treated as 1. Faces are wound counter-clockwise when viewed
// from outside.
func Box(size v3.Vec, div [3]int) *Mesh {
	for i := range div {
		if div[i] < 1 {
			div[i] = 1
		}
	}
	dims := [3]float64{size.X, size.Y, size.Z}

	m := &Mesh{}
	index := make(map[[3]int]int)
	vertex := func(g [3]int) int {
		if i, ok := index[g]; ok {
			return i
		}
		i := len(m.Vertices)
		m.Vertices = append(m.Vertices, v3.Vec{
			X: dims[0] * float64(g[0]) / float64(div[0]),
			Y: dims[1] * float64(g[1]) / float64(div[1]),
			Z: dims[2] * float64(g[2]) / float64(div[2]),
		})
		index[g] = i
		return i
	}

	for axis := 0; axis < 3; axis++ {
		u, v := (axis+1)%3, (axis+2)%3
		for side := 0; side < 2; side++ {
			for i := 0; i < div[u]; i++ {
				for j := 0; j < div[v]; j++ {
					corner := func(di, dj int) int {
						var g [3]int
						g[axis] = side * div[axis]
						g[u] = i + di
						g[v] = j + dj
						return vertex(g)
					}
					p00, p10, p11, p01 := corner(0, 0), corner(1, 0), corner(1, 1), corner(0, 1)
					if side == 1 {
						m.Faces = append(m.Faces, [3]int{p00, p10, p11}, [3]int{p00, p11, p01})
					} else {
						m.Faces = append(m.Faces, [3]int{p00, p11, p10}, [3]int{p00, p01, p11})
					}
				}
			}
		}
	}
	return m
}

// Translate returns a copy of the mesh moved by d.
func (m *Mesh) Translate(d v3.Vec) *Mesh {
	out := m.Clone()
	for i, v := range out.Vertices {
		out.Vertices[i] = v.Add(d)
	}
	return out
}
