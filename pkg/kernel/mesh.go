package kernel

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is an indexed triangle mesh. A Mesh is the sole owner of its vertex
// and face slices; use Clone before handing a copy to code that edits it.
type Mesh struct {
	Vertices []v3.Vec `json:"vertices"`
	Faces    [][3]int `json:"faces"`
}

// NewMesh returns a mesh that owns copies of the given buffers.
func NewMesh(vertices []v3.Vec, faces [][3]int) *Mesh {
	m := &Mesh{
		Vertices: make([]v3.Vec, len(vertices)),
		Faces:    make([][3]int, len(faces)),
	}
	copy(m.Vertices, vertices)
	copy(m.Faces, faces)
	return m
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	return NewMesh(m.Vertices, m.Faces)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int {
	return len(m.Faces)
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Faces) == 0
}

// Vertex returns the position of vertex i.
func (m *Mesh) Vertex(i int) v3.Vec {
	return m.Vertices[i]
}

// Face returns the vertex indices of triangle i.
func (m *Mesh) Face(i int) [3]int {
	return m.Faces[i]
}

// Validate checks that every face references existing, distinct vertices.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return &InvalidGeometryError{
					Reason: fmt.Sprintf("face %d references vertex %d, mesh has %d vertices", i, idx, n),
				}
			}
		}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			return &InvalidGeometryError{
				Reason: fmt.Sprintf("face %d repeats a vertex index: %v", i, f),
			}
		}
	}
	for i, v := range m.Vertices {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) ||
			math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0) {
			return &InvalidGeometryError{Reason: fmt.Sprintf("vertex %d is not finite", i)}
		}
	}
	return nil
}

// faceCross returns the unnormalised normal of face i. Its length is twice
// the triangle area.
func (m *Mesh) faceCross(i int) v3.Vec {
	f := m.Faces[i]
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	return b.Sub(a).Cross(c.Sub(a))
}

// FaceNormal returns the unit normal of face i, or the zero vector when the
// face is degenerate.
func (m *Mesh) FaceNormal(i int) v3.Vec {
	n := m.faceCross(i)
	l := n.Length()
	if l < 1e-300 {
		return v3.Vec{}
	}
	return n.DivScalar(l)
}

// FaceArea returns the area of face i.
func (m *Mesh) FaceArea(i int) float64 {
	return m.faceCross(i).Length() / 2
}

// FaceCenter returns the centroid of face i.
func (m *Mesh) FaceCenter(i int) v3.Vec {
	f := m.Faces[i]
	return m.Vertices[f[0]].Add(m.Vertices[f[1]]).Add(m.Vertices[f[2]]).DivScalar(3)
}

// VertexNormals returns area-weighted unit normals for every vertex.
// Vertices not referenced by any face get the zero vector.
func (m *Mesh) VertexNormals() []v3.Vec {
	normals := make([]v3.Vec, len(m.Vertices))
	for i, f := range m.Faces {
		// The cross product length is proportional to face area.
		n := m.faceCross(i)
		for _, idx := range f {
			normals[idx] = normals[idx].Add(n)
		}
	}
	for i, n := range normals {
		if l := n.Length(); l > 1e-300 {
			normals[i] = n.DivScalar(l)
		}
	}
	return normals
}

// BoundingBox returns the axis-aligned bounding box of all vertices.
// An empty mesh yields a zero box.
func (m *Mesh) BoundingBox() sdf.Box3 {
	if len(m.Vertices) == 0 {
		return sdf.Box3{}
	}
	lo, hi := m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		lo = lo.Min(v)
		hi = hi.Max(v)
	}
	return sdf.Box3{Min: lo, Max: hi}
}

// Volume returns the signed enclosed volume. It is positive for a closed
// mesh with outward-facing normals.
func (m *Mesh) Volume() float64 {
	var vol float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		vol += a.Dot(b.Cross(c))
	}
	return vol / 6
}

// edgeKey is a directed edge between two vertex indices.
type edgeKey struct{ a, b int }

// IsWatertight reports whether every directed edge occurs exactly once and
// is matched by its reverse in exactly one other face.
func (m *Mesh) IsWatertight() bool {
	if len(m.Faces) == 0 {
		return false
	}
	directed := make(map[edgeKey]int, len(m.Faces)*3)
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			e := edgeKey{f[j], f[(j+1)%3]}
			directed[e]++
			if directed[e] > 1 {
				return false
			}
		}
	}
	for e := range directed {
		if directed[edgeKey{e.b, e.a}] != 1 {
			return false
		}
	}
	return true
}

// BoundaryEdgeCount returns the number of directed edges that have no
// reverse partner. A watertight mesh has none.
func (m *Mesh) BoundaryEdgeCount() int {
	directed := make(map[edgeKey]struct{}, len(m.Faces)*3)
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			directed[edgeKey{f[j], f[(j+1)%3]}] = struct{}{}
		}
	}
	open := 0
	for e := range directed {
		if _, ok := directed[edgeKey{e.b, e.a}]; !ok {
			open++
		}
	}
	return open
}

// Flipped returns a copy of the mesh with every face's winding reversed.
func (m *Mesh) Flipped() *Mesh {
	out := m.Clone()
	for i, f := range out.Faces {
		out.Faces[i] = [3]int{f[0], f[2], f[1]}
	}
	return out
}

// Append returns a new mesh holding the geometry of m followed by other.
// Face indices of other are shifted; no vertices are merged.
func (m *Mesh) Append(other *Mesh) *Mesh {
	out := &Mesh{
		Vertices: make([]v3.Vec, 0, len(m.Vertices)+len(other.Vertices)),
		Faces:    make([][3]int, 0, len(m.Faces)+len(other.Faces)),
	}
	out.Vertices = append(out.Vertices, m.Vertices...)
	out.Vertices = append(out.Vertices, other.Vertices...)
	out.Faces = append(out.Faces, m.Faces...)
	base := len(m.Vertices)
	for _, f := range other.Faces {
		out.Faces = append(out.Faces, [3]int{f[0] + base, f[1] + base, f[2] + base})
	}
	return out
}
