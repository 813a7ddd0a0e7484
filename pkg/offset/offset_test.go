package offset

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/bladesmith/pkg/extrude"
	"github.com/chazu/bladesmith/pkg/graph"
	"github.com/chazu/bladesmith/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func cube(size float64, div int) *kernel.Mesh {
	return kernel.Box(v3.Vec{X: size, Y: size, Z: size}, [3]int{div, div, div})
}

func TestEstimateVoxelMemory(t *testing.T) {
	bb := sdf.Box3{Max: v3.Vec{X: 10, Y: 20, Z: 30}}
	if got, want := EstimateVoxelMemory(bb, 1), int64(10*20*30*bytesPerVoxel); got != want {
		t.Errorf("EstimateVoxelMemory = %d, want %d", got, want)
	}
	if got := EstimateVoxelMemory(bb, 1e-9); got != math.MaxInt64 {
		t.Errorf("tiny pitch estimate = %d, want saturation", got)
	}
}

func TestOffsetResourceLimit(t *testing.T) {
	m := cube(10000, 1)
	_, err := Offset(m, 50, Options{MemoryBudget: 100 << 20})
	var rl *kernel.ResourceLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want ResourceLimitError", err)
	}
	if rl.Required <= rl.Limit || rl.Limit != 100<<20 {
		t.Errorf("Required = %d, Limit = %d", rl.Required, rl.Limit)
	}
	if !errors.Is(err, kernel.ErrResourceLimit) {
		t.Error("error does not match ErrResourceLimit")
	}
}

func TestOffsetRejectsDistance(t *testing.T) {
	for _, d := range []float64{0, math.NaN(), math.Inf(-1)} {
		_, err := Offset(cube(10, 1), d, Options{})
		var pe *kernel.InvalidParameterError
		if !errors.As(err, &pe) || pe.Field != "offsetDistance" {
			t.Errorf("Offset(%v) error = %v, want offsetDistance parameter error", d, err)
		}
	}
	if _, err := Offset(&kernel.Mesh{}, 1, Options{}); !errors.Is(err, kernel.ErrInvalidGeometry) {
		t.Errorf("empty mesh error = %v, want ErrInvalidGeometry", err)
	}
}

func TestOffsetDirect(t *testing.T) {
	m := cube(10, 4)
	res, err := Offset(m, 0.25, Options{})
	if err != nil {
		t.Fatalf("Offset: %v", err)
	}
	if res.Strategy != StrategyDirect || res.Fallback {
		t.Errorf("Strategy = %s, Fallback = %v; want direct without fallback", res.Strategy, res.Fallback)
	}
	// Vertices inside each face move straight out, so the box grows by d
	// on every side.
	size := res.Mesh.BoundingBox().Size()
	for _, s := range []float64{size.X, size.Y, size.Z} {
		if math.Abs(s-10.5) > 1e-9 {
			t.Errorf("bbox side = %f, want 10.5", s)
		}
	}
	if !res.Mesh.IsWatertight() {
		t.Error("direct offset broke watertightness")
	}
	if m.BoundingBox().Size().X != 10 {
		t.Error("Offset modified its input")
	}
}

func TestOffsetVoxel(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"grow", 3, 26},
		{"shrink", -3, 14},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Offset(cube(20, 2), tt.distance, Options{Workers: 2})
			if err != nil {
				t.Fatalf("Offset: %v", err)
			}
			if res.Strategy != StrategyVoxel {
				t.Errorf("Strategy = %s, want voxel", res.Strategy)
			}
			if res.Pitch != 1 {
				t.Errorf("Pitch = %f, want 1", res.Pitch)
			}
			size := res.Mesh.BoundingBox().Size()
			for _, s := range []float64{size.X, size.Y, size.Z} {
				if math.Abs(s-tt.want) > res.Pitch/2 {
					t.Errorf("bbox side = %f, want %f within half a voxel", s, tt.want)
				}
			}
			if !res.Mesh.IsWatertight() {
				t.Error("voxel offset is not watertight")
			}
			if res.Mesh.Volume() <= 0 {
				t.Errorf("volume = %f, want positive", res.Mesh.Volume())
			}
			t.Logf("%s: %d faces", tt.name, res.Mesh.FaceCount())
		})
	}
}

func TestOffsetConsumesSolid(t *testing.T) {
	_, err := Offset(cube(2, 1), -3, Options{})
	if !errors.Is(err, kernel.ErrGeometryOperation) {
		t.Errorf("error = %v, want ErrGeometryOperation", err)
	}
}

func TestOffsetFallbackFails(t *testing.T) {
	// Pulling the faces of a 0.2mm slab in by 0.3mm turns its sides over;
	// the voxel retry then erodes the slab away entirely.
	slab := kernel.Box(v3.Vec{X: 10, Y: 10, Z: 0.2}, [3]int{1, 1, 1})
	_, err := Offset(slab, -0.3, Options{})
	var ge *kernel.GeometryOperationError
	if !errors.As(err, &ge) {
		t.Fatalf("error = %v, want GeometryOperationError", err)
	}
	if ge.Op != "offset fallback" {
		t.Errorf("Op = %q, want the fallback to be reported", ge.Op)
	}
}

func TestFallbackPitch(t *testing.T) {
	limit := DirectLimit / stepsPerDistance
	d := 0.2
	fine := d / stepsPerDistance
	tests := []struct {
		name   string
		size   v3.Vec
		opts   Options
		coarse bool
	}{
		{"small part keeps the fine pitch", v3.Vec{X: 10, Y: 10, Z: 10}, Options{}, false},
		{"large part coarsens to fit", v3.Vec{X: 100, Y: 100, Z: 20}, Options{}, true},
		{"tight budget coarsens to fit", v3.Vec{X: 20, Y: 20, Z: 6}, Options{MemoryBudget: 16 << 20}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := kernel.Box(tt.size, [3]int{1, 1, 1})
			pitch, err := fallbackPitch(m, d, tt.opts)
			if err != nil {
				t.Fatalf("fallbackPitch: %v", err)
			}
			if pitch < fine || pitch > limit {
				t.Errorf("pitch = %f, want within [%f, %f]", pitch, fine, limit)
			}
			if got := pitch > fine; got != tt.coarse {
				t.Errorf("pitch = %f, coarsened = %v, want %v", pitch, got, tt.coarse)
			}
			if need := newLattice(m, d, pitch).memory(); need > tt.opts.budget() {
				t.Errorf("grid needs %d bytes, budget is %d", need, tt.opts.budget())
			}
		})
	}

	if p, err := fallbackPitch(cube(10, 1), d, Options{Pitch: 0.05}); err != nil || p != 0.05 {
		t.Errorf("explicit pitch = %f, %v; want 0.05", p, err)
	}
	var rl *kernel.ResourceLimitError
	if _, err := fallbackPitch(cube(10000, 1), d, Options{}); !errors.As(err, &rl) {
		t.Errorf("huge part error = %v, want ResourceLimitError", err)
	}
}

func TestOffsetExtrudedBlade(t *testing.T) {
	outline := make([]v2.Vec, 10)
	for i := range outline {
		r := 10.0
		if i%2 == 1 {
			r = 4
		}
		a := math.Pi * float64(i) / 5
		outline[i] = v2.Vec{X: r * math.Cos(a), Y: r * math.Sin(a)}
	}
	blade, err := extrude.Extrude(outline, extrude.Params{
		BladeThickness: 0.8,
		BladeHeight:    4,
		BaseThickness:  1,
		BaseExtension:  2,
	})
	if err != nil {
		t.Fatalf("Extrude: %v", err)
	}

	for _, d := range []float64{0.2, -0.2} {
		res, err := Offset(blade.Mesh, d, Options{MemoryBudget: 16 << 20})
		if err != nil {
			t.Fatalf("Offset(%g): %v", d, err)
		}
		if !res.Mesh.IsWatertight() {
			t.Errorf("Offset(%g) is not watertight", d)
		}
		if res.Mesh.Volume() <= 0 {
			t.Errorf("Offset(%g) volume = %f, want positive", d, res.Mesh.Volume())
		}
		switch res.Strategy {
		case StrategyDirect:
			if res.Fallback {
				t.Errorf("Offset(%g): direct result tagged as fallback", d)
			}
		case StrategyVoxel:
			if !res.Fallback {
				t.Errorf("Offset(%g): voxel result for a small distance not tagged as fallback", d)
			}
			if res.Pitch > DirectLimit/stepsPerDistance {
				t.Errorf("Offset(%g): fallback pitch %f coarser than %f", d, res.Pitch, DirectLimit/stepsPerDistance)
			}
		}
		t.Logf("d=%g: %s, pitch %f, %d faces", d, res.Strategy, res.Pitch, res.Mesh.FaceCount())
	}
}

func TestCheckBudget(t *testing.T) {
	huge := cube(10000, 1)
	opts := Options{MemoryBudget: 100 << 20}
	var rl *kernel.ResourceLimitError
	if err := CheckBudget(huge, 50, opts); !errors.As(err, &rl) || rl.Limit != 100<<20 {
		t.Errorf("CheckBudget(huge, 50) = %v, want ResourceLimitError", err)
	}
	if err := CheckBudget(huge, 0.2, opts); err != nil {
		t.Errorf("CheckBudget below DirectLimit = %v, want nil", err)
	}
	if err := CheckBudget(cube(20, 1), 3, opts); err != nil {
		t.Errorf("CheckBudget(small, 3) = %v, want nil", err)
	}
}

func TestHollow(t *testing.T) {
	m := cube(20, 2)
	res, err := Hollow(m, 3, Options{})
	if err != nil {
		t.Fatalf("Hollow: %v", err)
	}
	if !res.Mesh.IsWatertight() {
		t.Error("hollowed mesh is not watertight")
	}
	if got := len(graph.Build(res.Mesh).Components()); got != 2 {
		t.Errorf("shells = %d, want 2", got)
	}
	// Eroding a box keeps it a box, so the cavity is close to 14mm a side.
	want := 20.0*20*20 - 14.0*14*14
	if got := res.Mesh.Volume(); math.Abs(got-want)/want > 0.05 {
		t.Errorf("volume = %f, want about %f", got, want)
	}

	var pe *kernel.InvalidParameterError
	if _, err := Hollow(m, -1, Options{}); !errors.As(err, &pe) || pe.Field != "thickness" {
		t.Errorf("Hollow(-1) error = %v, want thickness parameter error", err)
	}
}

func TestTransformMatchesBruteForce(t *testing.T) {
	n := [3]int{7, 5, 6}
	f := make([]float32, n[0]*n[1]*n[2])
	for i := range f {
		f[i] = edtInf
	}
	features := [][3]int{{1, 1, 1}, {5, 3, 4}, {0, 4, 5}}
	for _, p := range features {
		f[(p[2]*n[1]+p[1])*n[0]+p[0]] = 0
	}
	if err := transform(f, n, 3); err != nil {
		t.Fatal(err)
	}
	for k := 0; k < n[2]; k++ {
		for j := 0; j < n[1]; j++ {
			for i := 0; i < n[0]; i++ {
				best := math.Inf(1)
				for _, p := range features {
					dx, dy, dz := float64(i-p[0]), float64(j-p[1]), float64(k-p[2])
					best = math.Min(best, dx*dx+dy*dy+dz*dz)
				}
				if got := float64(f[(k*n[1]+j)*n[0]+i]); got != best {
					t.Fatalf("edt(%d,%d,%d) = %f, want %f", i, j, k, got, best)
				}
			}
		}
	}
}
