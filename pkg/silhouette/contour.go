package silhouette

import (
	"math"

	"github.com/chazu/bladesmith/pkg/curve"
	"github.com/chazu/bladesmith/pkg/kernel"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// moore lists the eight neighbours clockwise on screen, starting west.
var moore = [8][2]int{{-1, 0}, {-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}}

func direction(dx, dy int) int {
	for i, d := range moore {
		if d[0] == dx && d[1] == dy {
			return i
		}
	}
	return 0
}

// TraceContour walks the outer boundary of the largest component of m with
// Moore-neighbour tracing and returns the boundary pixel centres in image
// coordinates, with collinear runs reduced to their end points.
func TraceContour(m *Mask) ([]v2.Vec, error) {
	dominant, _ := m.Dominant()
	start := -1
	for i, v := range dominant.Pix {
		if v {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, &kernel.InvalidGeometryError{Reason: "mask is empty"}
	}

	w := dominant.Width
	sx, sy := start%w, start/w
	// next finds the boundary pixel after (x, y) scanning clockwise from the
	// backtrack direction, and the backtrack direction seen from it.
	next := func(x, y, back int) (int, int, int, bool) {
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			nx, ny := x+moore[d][0], y+moore[d][1]
			if !dominant.At(nx, ny) {
				continue
			}
			prev := moore[(d+7)%8]
			return nx, ny, direction(x+prev[0]-nx, y+prev[1]-ny), true
		}
		return 0, 0, 0, false
	}

	// Raster order guarantees the west neighbour of the start is empty.
	pts := []v2.Vec{{X: float64(sx) + 0.5, Y: float64(sy) + 0.5}}
	fx, fy, fback, ok := next(sx, sy, 0)
	x, y, back := fx, fy, fback
	for step := 0; ok && step < 4*len(dominant.Pix)+8; step++ {
		if x == sx && y == sy {
			if back == 0 {
				break
			}
			nx, ny, nback, _ := next(x, y, back)
			if nx == fx && ny == fy && nback == fback {
				break
			}
		}
		pts = append(pts, v2.Vec{X: float64(x) + 0.5, Y: float64(y) + 0.5})
		x, y, back, ok = next(x, y, back)
	}

	pts = curve.PruneCollinear(pts, 1e-9)
	if len(pts) < 3 || math.Abs(curve.Area(pts)) <= curve.EpsArea {
		return nil, &kernel.InvalidGeometryError{Reason: "silhouette is too thin to outline"}
	}
	return pts, nil
}

// ToModelSpace maps image coordinates to millimetres: the image is centred
// on the origin, Y points up and the longest image side spans size.
func ToModelSpace(points []v2.Vec, width, height int, size float64) ([]v2.Vec, error) {
	if math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return nil, &kernel.InvalidParameterError{Field: "outlineSize", Value: size, Reason: "must be > 0"}
	}
	if width <= 0 || height <= 0 {
		return nil, &kernel.InvalidGeometryError{Reason: "image has no pixels"}
	}
	scale := size / float64(max(width, height))
	cx, cy := float64(width)/2, float64(height)/2
	out := make([]v2.Vec, len(points))
	for i, p := range points {
		out[i] = v2.Vec{X: (p.X - cx) * scale, Y: (cy - p.Y) * scale}
	}
	return curve.EnsureCCW(out), nil
}
