// Package kernel defines the triangle mesh data model shared by every
// pipeline stage, together with the engine's error taxonomy. Meshes are
// owned values: operations in the other packages read a Surface and
// return a fresh Mesh rather than mutating their input.
package kernel

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Surface is the read-only view of a triangle mesh.
// Spatial indexes and adjacency graphs are built against this interface so
// they never gain write access to the caller's buffers.
type Surface interface {
	// VertexCount returns the number of vertices.
	VertexCount() int
	// FaceCount returns the number of triangles.
	FaceCount() int
	// Vertex returns the position of vertex i.
	Vertex(i int) v3.Vec
	// Face returns the vertex indices of triangle i.
	Face(i int) [3]int
	// FaceNormal returns the unit normal of triangle i (zero if degenerate).
	FaceNormal(i int) v3.Vec
	// FaceCenter returns the centroid of triangle i.
	FaceCenter(i int) v3.Vec
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() sdf.Box3
	// IsWatertight reports whether every edge is shared by exactly two
	// consistently wound faces.
	IsWatertight() bool
}

// Compile-time interface check.
var _ Surface = (*Mesh)(nil)
