package curve

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/bladesmith/pkg/kernel"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// noisyCircle returns n points around a circle with a deterministic radial
// ripple so that simplification has something to remove.
func noisyCircle(t *testing.T, n int, r float64) []v2.Vec {
	t.Helper()
	pts := make([]v2.Vec, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		rr := r + 0.3*math.Sin(17*a) + 0.1*math.Cos(41*a)
		pts[i] = v2.Vec{X: rr * math.Cos(a), Y: rr * math.Sin(a)}
	}
	return pts
}

func square(size float64) []v2.Vec {
	return []v2.Vec{{X: 0, Y: 0}, {X: size, Y: 0}, {X: size, Y: size}, {X: 0, Y: size}}
}

func TestAreaAndPerimeter(t *testing.T) {
	sq := square(2)
	if got := Area(sq); got != 4 {
		t.Errorf("Area = %f, want 4", got)
	}
	if got := Area(Reverse(sq)); got != -4 {
		t.Errorf("Area(reversed) = %f, want -4", got)
	}
	if got := Perimeter(sq); got != 8 {
		t.Errorf("Perimeter = %f, want 8", got)
	}
	if Area(EnsureCCW(Reverse(sq))) <= 0 {
		t.Error("EnsureCCW did not fix a clockwise loop")
	}
}

func TestIsSimple(t *testing.T) {
	tests := []struct {
		name string
		pts  []v2.Vec
		want bool
	}{
		{"triangle", []v2.Vec{{}, {X: 1}, {Y: 1}}, true},
		{"square", square(1), true},
		{"bowtie", []v2.Vec{{}, {X: 1, Y: 1}, {X: 1}, {Y: 1}}, false},
		{"concave L", []v2.Vec{{}, {X: 2}, {X: 2, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 2}, {Y: 2}}, true},
		{"spike folds back", []v2.Vec{{}, {X: 2}, {X: 1}, {X: 1, Y: 1}}, false},
		{"too few points", []v2.Vec{{}, {X: 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSimple(tt.pts); got != tt.want {
				t.Errorf("IsSimple() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContains(t *testing.T) {
	sq := square(10)
	if !Contains(sq, v2.Vec{X: 5, Y: 5}) {
		t.Error("centre should be inside")
	}
	if Contains(sq, v2.Vec{X: 15, Y: 5}) {
		t.Error("point right of square should be outside")
	}
}

func TestDedupe(t *testing.T) {
	pts := []v2.Vec{{}, {}, {X: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}, {}}
	got := Dedupe(pts, 0)
	if len(got) != 3 {
		t.Fatalf("Dedupe returned %d points, want 3: %v", len(got), got)
	}
}

func TestSimplifyMonotonicInDetail(t *testing.T) {
	pts := noisyCircle(t, 720, 40)
	prev := 0
	for _, detail := range []float64{0, 0.25, 0.5, 0.75, 1} {
		out, err := Simplify(pts, detail)
		if err != nil {
			t.Fatalf("Simplify(%v) error = %v", detail, err)
		}
		if len(out) < 3 {
			t.Fatalf("Simplify(%v) returned %d points", detail, len(out))
		}
		if len(out) < prev {
			t.Errorf("Simplify(%v) = %d points, fewer than %d at lower detail", detail, len(out), prev)
		}
		t.Logf("detail %.2f: %d -> %d points", detail, len(pts), len(out))
		prev = len(out)
	}
}

func TestSimplifyKeepsSquareCorners(t *testing.T) {
	var pts []v2.Vec
	for _, c := range [][2]v2.Vec{
		{{X: 0, Y: 0}, {X: 10, Y: 0}},
		{{X: 10, Y: 0}, {X: 10, Y: 10}},
		{{X: 10, Y: 10}, {X: 0, Y: 10}},
		{{X: 0, Y: 10}, {X: 0, Y: 0}},
	} {
		for i := 0; i < 10; i++ {
			pts = append(pts, c[0].Add(c[1].Sub(c[0]).MulScalar(float64(i)/10)))
		}
	}
	out, err := Simplify(pts, 0)
	if err != nil {
		t.Fatalf("Simplify error = %v", err)
	}
	if len(out) != 4 {
		t.Errorf("Simplify(square) = %d points, want 4: %v", len(out), out)
	}
}

func TestSimplifyRejectsDetail(t *testing.T) {
	for _, detail := range []float64{-0.1, 1.5, math.NaN()} {
		_, err := Simplify(square(1), detail)
		var pe *kernel.InvalidParameterError
		if !errors.As(err, &pe) || pe.Field != "detailLevel" {
			t.Errorf("Simplify(detail=%v) error = %v, want InvalidParameterError on detailLevel", detail, err)
		}
	}
}

func TestSimplifyDegenerate(t *testing.T) {
	_, err := Simplify([]v2.Vec{{}, {}, {}}, 0.5)
	if !errors.Is(err, kernel.ErrInvalidGeometry) {
		t.Errorf("error = %v, want ErrInvalidGeometry", err)
	}
}

func TestSmoothPointCount(t *testing.T) {
	tests := []struct {
		n, k int
	}{
		{3, 0}, {3, 1}, {4, 2}, {7, 3}, {50, 4},
	}
	for _, tt := range tests {
		pts := noisyCircle(t, tt.n, 5)
		out, err := Smooth(pts, tt.k, DefaultRatio)
		if err != nil {
			t.Fatalf("Smooth(n=%d, k=%d) error = %v", tt.n, tt.k, err)
		}
		if want := tt.n << tt.k; len(out) != want {
			t.Errorf("Smooth(n=%d, k=%d) = %d points, want %d", tt.n, tt.k, len(out), want)
		}
	}
}

func TestSmoothCutsCorners(t *testing.T) {
	out, err := Smooth(square(4), 1, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	want := []v2.Vec{{X: 1, Y: 0}, {X: 3, Y: 0}, {X: 4, Y: 1}, {X: 4, Y: 3}, {X: 3, Y: 4}, {X: 1, Y: 4}, {X: 0, Y: 3}, {X: 0, Y: 1}}
	for i := range want {
		if out[i].Sub(want[i]).Length() > 1e-12 {
			t.Errorf("point %d = %v, want %v", i, out[i], want[i])
		}
	}
	// Chaikin never leaves the convex hull, so a convex loop only shrinks.
	if Area(out) >= Area(square(4)) {
		t.Error("smoothing should reduce the area of a convex loop")
	}
}

func TestSmoothRejectsParameters(t *testing.T) {
	tests := []struct {
		name  string
		iter  int
		ratio float64
		field string
	}{
		{"negative iterations", -1, 0.25, "smoothIterations"},
		{"too many iterations", MaxIterations + 1, 0.25, "smoothIterations"},
		{"zero ratio", 2, 0, "smoothRatio"},
		{"ratio above half", 2, 0.6, "smoothRatio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Smooth(square(1), tt.iter, tt.ratio)
			var pe *kernel.InvalidParameterError
			if !errors.As(err, &pe) || pe.Field != tt.field {
				t.Errorf("error = %v, want InvalidParameterError on %s", err, tt.field)
			}
		})
	}
}
