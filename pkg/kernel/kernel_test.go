package kernel

import (
	"errors"
	"fmt"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []v3.Vec
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []v3.Vec{{X: 1, Y: 2, Z: 3}}, 1},
		{"four vertices", []v3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshFaceCount(t *testing.T) {
	tests := []struct {
		name  string
		faces [][3]int
		want  int
	}{
		{"empty", nil, 0},
		{"one triangle", [][3]int{{0, 1, 2}}, 1},
		{"two triangles", [][3]int{{0, 1, 2}, {2, 3, 0}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Faces: tt.faces}
			if got := m.FaceCount(); got != tt.want {
				t.Errorf("FaceCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshIsEmpty(t *testing.T) {
	t.Run("empty mesh", func(t *testing.T) {
		m := &Mesh{}
		if !m.IsEmpty() {
			t.Error("IsEmpty() = false for empty mesh, want true")
		}
	})
	t.Run("non-empty mesh", func(t *testing.T) {
		m := Box(v3.Vec{X: 1, Y: 1, Z: 1}, [3]int{1, 1, 1})
		if m.IsEmpty() {
			t.Error("IsEmpty() = true for box, want false")
		}
	})
}

func TestBoxWatertight(t *testing.T) {
	for _, div := range [][3]int{{1, 1, 1}, {2, 3, 4}, {10, 10, 1}} {
		t.Run(fmt.Sprint(div), func(t *testing.T) {
			m := Box(v3.Vec{X: 4, Y: 5, Z: 6}, div)
			if err := m.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !m.IsWatertight() {
				t.Fatalf("box with div %v is not watertight (%d open edges)", div, m.BoundaryEdgeCount())
			}
			wantFaces := 4 * (div[1]*div[2] + div[2]*div[0] + div[0]*div[1])
			if m.FaceCount() != wantFaces {
				t.Errorf("FaceCount() = %d, want %d", m.FaceCount(), wantFaces)
			}
			if vol := m.Volume(); math.Abs(vol-120) > 1e-9 {
				t.Errorf("Volume() = %f, want 120", vol)
			}
		})
	}
}

func TestBoxBoundingBox(t *testing.T) {
	m := Box(v3.Vec{X: 100, Y: 50, Z: 25}, [3]int{1, 1, 1}).Translate(v3.Vec{X: 10, Y: 20, Z: 30})
	bb := m.BoundingBox()

	const tol = 1e-9
	expectMin := [3]float64{10, 20, 30}
	expectMax := [3]float64{110, 70, 55}
	gotMin := [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	gotMax := [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	for i := 0; i < 3; i++ {
		if math.Abs(gotMin[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected %f", i, gotMin[i], expectMin[i])
		}
		if math.Abs(gotMax[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected %f", i, gotMax[i], expectMax[i])
		}
	}
}

func TestNormalsPointOutward(t *testing.T) {
	m := Box(v3.Vec{X: 2, Y: 2, Z: 2}, [3]int{2, 2, 2})
	center := v3.Vec{X: 1, Y: 1, Z: 1}
	for i := 0; i < m.FaceCount(); i++ {
		out := m.FaceCenter(i).Sub(center)
		if m.FaceNormal(i).Dot(out) <= 0 {
			t.Fatalf("face %d normal %v points inward", i, m.FaceNormal(i))
		}
	}
	for i, n := range m.VertexNormals() {
		if math.Abs(n.Length()-1) > 1e-9 {
			t.Errorf("vertex %d normal length = %f, want 1", i, n.Length())
		}
		if n.Dot(m.Vertices[i].Sub(center)) <= 0 {
			t.Errorf("vertex %d normal %v points inward", i, n)
		}
	}
}

func TestFlippedIsNegativeVolume(t *testing.T) {
	m := Box(v3.Vec{X: 1, Y: 2, Z: 3}, [3]int{1, 1, 1})
	f := m.Flipped()
	if math.Abs(f.Volume()+m.Volume()) > 1e-9 {
		t.Errorf("flipped volume = %f, want %f", f.Volume(), -m.Volume())
	}
	if !f.IsWatertight() {
		t.Error("flipped box should remain watertight")
	}
	// The original must be untouched.
	if m.Volume() <= 0 {
		t.Error("Flipped mutated the receiver")
	}
}

func TestAppendTwoShells(t *testing.T) {
	a := Box(v3.Vec{X: 1, Y: 1, Z: 1}, [3]int{1, 1, 1})
	b := a.Translate(v3.Vec{X: 5})
	m := a.Append(b)
	if m.FaceCount() != 24 || m.VertexCount() != 16 {
		t.Fatalf("Append: got %d faces / %d vertices, want 24 / 16", m.FaceCount(), m.VertexCount())
	}
	if !m.IsWatertight() {
		t.Error("two disjoint closed shells should be watertight")
	}
}

func TestOpenMeshNotWatertight(t *testing.T) {
	m := Box(v3.Vec{X: 1, Y: 1, Z: 1}, [3]int{1, 1, 1})
	m.Faces = m.Faces[:len(m.Faces)-1]
	if m.IsWatertight() {
		t.Error("box with a missing face reported watertight")
	}
	if got := m.BoundaryEdgeCount(); got != 3 {
		t.Errorf("BoundaryEdgeCount() = %d, want 3", got)
	}
}

func TestWeldRoundTrip(t *testing.T) {
	m := Box(v3.Vec{X: 3, Y: 3, Z: 3}, [3]int{3, 3, 3})
	w := Weld(m.Triangles(), 0)
	if w.VertexCount() != m.VertexCount() {
		t.Errorf("welded vertex count = %d, want %d", w.VertexCount(), m.VertexCount())
	}
	if !w.IsWatertight() {
		t.Error("welded soup is not watertight")
	}
}

func TestWeldDropsCollapsedTriangles(t *testing.T) {
	tris := [][3]v3.Vec{
		{{}, {X: 1}, {Y: 1}},
		{{}, {X: 1e-9}, {Y: 1}}, // collapses at the default tolerance
	}
	if got := Weld(tris, 0).FaceCount(); got != 1 {
		t.Errorf("FaceCount() = %d, want 1", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mesh    *Mesh
		wantErr bool
	}{
		{"valid", Box(v3.Vec{X: 1, Y: 1, Z: 1}, [3]int{1, 1, 1}), false},
		{"index out of range", &Mesh{Vertices: []v3.Vec{{}, {X: 1}}, Faces: [][3]int{{0, 1, 2}}}, true},
		{"repeated index", &Mesh{Vertices: []v3.Vec{{}, {X: 1}, {Y: 1}}, Faces: [][3]int{{0, 1, 1}}}, true},
		{"nan vertex", &Mesh{Vertices: []v3.Vec{{X: math.NaN()}, {X: 1}, {Y: 1}}, Faces: [][3]int{{0, 1, 2}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("Validate() error %v does not match ErrInvalidGeometry", err)
			}
		})
	}
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&SilhouetteNotFoundError{Attempts: []StrategyAttempt{{Strategy: "alpha", Reason: "opaque"}}}, ErrSilhouetteNotFound},
		{&InvalidGeometryError{Reason: "zero area"}, ErrInvalidGeometry},
		{&InvalidParameterError{Field: "bladeThickness", Value: -1.0, Reason: "must be > 0"}, ErrInvalidParameter},
		{&ResourceLimitError{Resource: "voxel grid bytes", Required: 10, Limit: 5}, ErrResourceLimit},
		{&GeometryOperationError{Op: "offset", Err: errors.New("boom")}, ErrGeometryOperation},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
		})
	}

	var pe *InvalidParameterError
	if !errors.As(fmt.Errorf("x: %w", &InvalidParameterError{Field: "detailLevel"}), &pe) || pe.Field != "detailLevel" {
		t.Error("errors.As did not recover the offending field")
	}
}
