// Package offset grows or shrinks a closed triangle mesh by a fixed
// distance. Small distances move vertices along their normals; larger ones
// rebuild the surface from a voxel distance field so that corners round
// off correctly and thin features merge or vanish as they should.
package offset

import (
	"errors"
	"math"

	"github.com/chazu/bladesmith/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Strategy names how an offset was computed.
type Strategy string

const (
	StrategyDirect Strategy = "direct"
	StrategyVoxel  Strategy = "voxel"
)

const (
	// DirectLimit is the largest |distance| handled by vertex displacement.
	DirectLimit = 0.5
	// DefaultMemoryBudget caps the voxel working set at 512 MiB.
	DefaultMemoryBudget int64 = 512 << 20
	// stepsPerDistance sets the voxel pitch to |distance|/3.
	stepsPerDistance = 3
)

// Options configure an offset. Zero values select the defaults.
type Options struct {
	// MemoryBudget is the most bytes the voxel strategy may allocate.
	MemoryBudget int64
	// Pitch overrides the voxel edge length.
	Pitch float64
	// Workers bounds the goroutines used by the distance transform.
	Workers int
}

func (o Options) budget() int64 {
	if o.MemoryBudget <= 0 {
		return DefaultMemoryBudget
	}
	return o.MemoryBudget
}

// Result is an offset mesh and how it was produced.
type Result struct {
	Mesh     *kernel.Mesh
	Strategy Strategy
	// Fallback is set when direct displacement turned faces over and the
	// voxel strategy was used instead, at the finest pitch between
	// |distance|/3 and DirectLimit/3 that fits the memory budget.
	Fallback bool
	// Pitch is the voxel edge length, zero for direct results.
	Pitch float64
}

// Offset moves the surface of m by distance: outward when positive, inward
// when negative. m must be a closed mesh; it is not modified.
func Offset(m *kernel.Mesh, distance float64, opts Options) (*Result, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance == 0 {
		return nil, &kernel.InvalidParameterError{Field: "offsetDistance", Value: distance, Reason: "must be finite and non-zero"}
	}
	if m == nil || m.IsEmpty() {
		return nil, &kernel.InvalidGeometryError{Reason: "mesh is empty"}
	}

	if math.Abs(distance) >= DirectLimit {
		return voxelOffset(m, distance, defaultPitch(distance, opts), opts)
	}

	out, flipped := displace(m, distance)
	if flipped < 0 {
		return &Result{Mesh: out, Strategy: StrategyDirect}, nil
	}
	pitch, err := fallbackPitch(m, distance, opts)
	if err != nil {
		return nil, err
	}
	res, err := voxelOffset(m, distance, pitch, opts)
	if err != nil {
		var rl *kernel.ResourceLimitError
		if errors.As(err, &rl) {
			return nil, err
		}
		return nil, &kernel.GeometryOperationError{Op: "offset fallback", Err: err}
	}
	res.Fallback = true
	return res, nil
}

// displace moves every vertex along its area-weighted normal. It returns
// the first face whose normal turned over, or -1.
func displace(m *kernel.Mesh, distance float64) (*kernel.Mesh, int) {
	out := m.Clone()
	normals := m.VertexNormals()
	for i, n := range normals {
		out.Vertices[i] = m.Vertices[i].Add(n.MulScalar(distance))
	}
	for i := range out.Faces {
		before := m.FaceNormal(i)
		if before == (v3.Vec{}) {
			continue
		}
		if out.FaceNormal(i).Dot(before) < 0 {
			return out, i
		}
	}
	return out, -1
}

// Hollow returns m with an internal cavity that leaves walls of the given
// thickness. The cavity is the inward offset of m with its winding
// reversed, so the result is two closed shells.
func Hollow(m *kernel.Mesh, thickness float64, opts Options) (*Result, error) {
	if math.IsNaN(thickness) || math.IsInf(thickness, 0) || thickness <= 0 {
		return nil, &kernel.InvalidParameterError{Field: "thickness", Value: thickness, Reason: "must be > 0"}
	}
	inner, err := Offset(m, -thickness, opts)
	if err != nil {
		return nil, err
	}
	inner.Mesh = m.Append(inner.Mesh.Flipped())
	return inner, nil
}
