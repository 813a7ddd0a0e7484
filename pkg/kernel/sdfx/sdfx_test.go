package sdfx

import (
	"math"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// sphereGrid samples an exact sphere distance field of radius r centred on
// the origin.
func sphereGrid(t *testing.T, r, pitch float64) *Grid {
	t.Helper()
	n := int(math.Ceil(2*(r+3*pitch)/pitch)) + 1
	half := float64(n) * pitch / 2
	g := NewGrid(v3.Vec{X: -half, Y: -half, Z: -half}, pitch, [3]int{n, n, n})
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				g.Values[g.Index(i, j, k)] = float32(g.Center(i, j, k).Length() - r)
			}
		}
	}
	return g
}

func TestGridEvaluateAtSamples(t *testing.T) {
	g := sphereGrid(t, 5, 0.5)
	for _, idx := range [][3]int{{0, 0, 0}, {3, 7, 11}, {g.N[0] - 1, g.N[1] - 1, g.N[2] - 1}} {
		p := g.Center(idx[0], idx[1], idx[2])
		want := g.At(idx[0], idx[1], idx[2])
		if got := g.Evaluate(p); math.Abs(got-want) > 1e-5 {
			t.Errorf("Evaluate(%v) = %f, want %f", p, got, want)
		}
	}
}

func TestGridEvaluateOutside(t *testing.T) {
	g := sphereGrid(t, 5, 0.5)
	bb := g.BoundingBox()
	edge := g.Evaluate(v3.Vec{X: bb.Max.X, Y: 0, Z: 0})
	far := g.Evaluate(v3.Vec{X: bb.Max.X + 10, Y: 0, Z: 0})
	if far <= edge {
		t.Errorf("field should keep growing outside the grid: edge %f, far %f", edge, far)
	}
	if g.Evaluate(v3.Vec{}) >= 0 {
		t.Error("centre of sphere should be inside")
	}
}

func TestToMeshSphereGrid(t *testing.T) {
	const r = 5.0
	g := sphereGrid(t, r, 0.25)
	mesh, err := ToMesh(g, g.N[0])
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	want := 4.0 / 3.0 * math.Pi * r * r * r
	if got := mesh.Volume(); math.Abs(got-want)/want > 0.05 {
		t.Errorf("sphere volume = %f, want ~%f", got, want)
	}
	bb := mesh.BoundingBox()
	if math.Abs(bb.Max.X-r) > 0.25 || math.Abs(bb.Min.X+r) > 0.25 {
		t.Errorf("sphere x extent [%f, %f], want ~[-5, 5]", bb.Min.X, bb.Max.X)
	}
	t.Logf("sphere: %d faces, %d open edges", mesh.FaceCount(), mesh.BoundaryEdgeCount())
}

func TestToMeshBox(t *testing.T) {
	box, err := sdf.Box3D(v3.Vec{X: 10, Y: 10, Z: 10}, 0)
	if err != nil {
		t.Fatalf("Box3D: %v", err)
	}
	mesh, err := ToMesh(box, 50)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if vol := mesh.Volume(); math.Abs(vol-1000)/1000 > 0.1 {
		t.Errorf("box volume = %f, want ~1000", vol)
	}
	t.Logf("box: %d faces", mesh.FaceCount())
}

func TestToMeshEmptyField(t *testing.T) {
	g := NewGrid(v3.Vec{}, 1, [3]int{4, 4, 4})
	for i := range g.Values {
		g.Values[i] = 1
	}
	if _, err := ToMesh(g, 4); err == nil {
		t.Fatal("expected an error for a field with no surface")
	}
}
