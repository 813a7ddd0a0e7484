package extrude

import (
	"math"

	clipper "github.com/ctessum/go.clipper"

	"github.com/chazu/bladesmith/pkg/curve"
	"github.com/chazu/bladesmith/pkg/kernel"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Offsetting works on integer coordinates: 1 unit = 0.1 micrometre.
const (
	scale = 1e4
	// miterLimit caps sharp corners at this multiple of the offset.
	miterLimit = 4
	// arcTolerance is the largest chord error of round joins, in mm.
	arcTolerance = 0.01
	// pruneTolerance removes near-collinear points left by offsetting.
	pruneTolerance = 1e-4
)

func toPath(p []v2.Vec) clipper.Path {
	path := make(clipper.Path, len(p))
	for i, v := range p {
		path[i] = &clipper.IntPoint{
			X: clipper.CInt(math.Round(v.X * scale)),
			Y: clipper.CInt(math.Round(v.Y * scale)),
		}
	}
	return path
}

func fromPath(path clipper.Path) []v2.Vec {
	p := make([]v2.Vec, len(path))
	for i, pt := range path {
		p[i] = v2.Vec{X: float64(pt.X) / scale, Y: float64(pt.Y) / scale}
	}
	return p
}

// offset grows (delta > 0) or shrinks the closed contours by delta mm.
func offset(contours [][]v2.Vec, delta float64, join clipper.JoinType) [][]v2.Vec {
	co := clipper.NewClipperOffset()
	co.MiterLimit = miterLimit
	co.ArcTolerance = arcTolerance * scale
	for _, c := range contours {
		co.AddPath(toPath(c), join, clipper.EtClosedPolygon)
	}
	var out [][]v2.Vec
	for _, path := range co.Execute(delta * scale) {
		c := curve.PruneCollinear(fromPath(path), pruneTolerance)
		if len(c) >= 3 && math.Abs(curve.Area(c)) > curve.EpsArea {
			out = append(out, c)
		}
	}
	return out
}

// bladeFootprint offsets the outline with sharp miter joins. A cutter keeps
// the outline as a hole so only the wall remains.
func bladeFootprint(outline []v2.Vec, p Params) ([][]v2.Vec, error) {
	grown := offset([][]v2.Vec{outline}, p.BladeThickness, clipper.JtMiter)
	if len(grown) == 0 {
		return nil, &kernel.GeometryOperationError{Op: "blade offset", Err: errEmptyFootprint}
	}
	if p.Style == StyleCutter {
		grown = append(grown, curve.PruneCollinear(outline, pruneTolerance))
	}
	return grown, nil
}

// baseFootprint offsets the blade footprint with round joins. A cutter's
// base keeps an inner lip of the same width inside the outline.
func baseFootprint(outline []v2.Vec, blade [][]v2.Vec, p Params) ([][]v2.Vec, error) {
	outer := blade
	if p.Style == StyleCutter {
		outer = blade[:len(blade)-1]
	}
	base := offset(outer, p.BaseExtension, clipper.JtRound)
	if len(base) == 0 {
		return nil, &kernel.GeometryOperationError{Op: "base offset", Err: errEmptyFootprint}
	}
	if p.Style == StyleCutter {
		base = append(base, offset([][]v2.Vec{outline}, -p.BaseExtension, clipper.JtRound)...)
	}
	return base, nil
}
