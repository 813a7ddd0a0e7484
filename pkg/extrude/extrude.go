// Package extrude turns a closed outline into a printable blade solid: a
// sharp-cornered blade wall standing on an optional round-cornered base
// plate. Footprints are computed with polygon offsetting and every layer is
// stitched to the next so the result is a single watertight mesh.
package extrude

import (
	"fmt"
	"math"

	clipper "github.com/ctessum/go.clipper"

	"github.com/chazu/bladesmith/pkg/curve"
	"github.com/chazu/bladesmith/pkg/kernel"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Style selects how the outline becomes a blade.
type Style int

const (
	// StyleSolid fills the outline and grows it by the blade thickness.
	StyleSolid Style = iota
	// StyleCutter builds an open wall of blade thickness around the
	// outline, leaving the outline itself hollow.
	StyleCutter
)

func (s Style) String() string {
	switch s {
	case StyleSolid:
		return "solid"
	case StyleCutter:
		return "cutter"
	default:
		return fmt.Sprintf("Style(%d)", int(s))
	}
}

// ParseStyle maps a style name to a Style.
func ParseStyle(name string) (Style, error) {
	switch name {
	case "", "solid":
		return StyleSolid, nil
	case "cutter":
		return StyleCutter, nil
	}
	return 0, &kernel.InvalidParameterError{Field: "style", Value: name, Reason: `must be "solid" or "cutter"`}
}

// Params are the blade dimensions in millimetres.
type Params struct {
	BladeThickness float64 `json:"bladeThickness"`
	BladeHeight    float64 `json:"bladeHeight"`
	BaseThickness  float64 `json:"baseThickness"`
	BaseExtension  float64 `json:"baseExtension"`
	NoBase         bool    `json:"noBase"`
	Style          Style   `json:"style"`
}

// HasBase reports whether a base plate will be built.
func (p Params) HasBase() bool {
	return !p.NoBase && p.BaseThickness > 0
}

// Height returns the exact z extent of the extruded solid.
func (p Params) Height() float64 {
	if p.HasBase() {
		return p.BaseThickness + p.BladeHeight
	}
	return p.BladeHeight
}

// Validate checks the parameter ranges. Values are never clamped.
func (p Params) Validate() error {
	check := func(field string, v float64, strict bool) error {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return &kernel.InvalidParameterError{Field: field, Value: v, Reason: "must be finite"}
		case strict && v <= 0:
			return &kernel.InvalidParameterError{Field: field, Value: v, Reason: "must be > 0"}
		case v < 0:
			return &kernel.InvalidParameterError{Field: field, Value: v, Reason: "must be >= 0"}
		}
		return nil
	}
	if err := check("bladeThickness", p.BladeThickness, true); err != nil {
		return err
	}
	if err := check("bladeHeight", p.BladeHeight, false); err != nil {
		return err
	}
	if err := check("baseThickness", p.BaseThickness, false); err != nil {
		return err
	}
	if err := check("baseExtension", p.BaseExtension, false); err != nil {
		return err
	}
	if p.Style != StyleSolid && p.Style != StyleCutter {
		return &kernel.InvalidParameterError{Field: "style", Value: p.Style, Reason: "unknown style"}
	}
	if p.Height() <= 0 {
		field := "bladeHeight"
		if !p.NoBase {
			field = "baseThickness"
		}
		return &kernel.InvalidParameterError{Field: field, Value: 0.0, Reason: "solid would have zero height"}
	}
	return nil
}

// Result is an extruded solid plus the footprints it was built from.
type Result struct {
	Mesh *kernel.Mesh
	// Blade and Base are the footprint contours. Base is empty when no base
	// plate was built.
	Blade [][]v2.Vec
	Base  [][]v2.Vec
	// Repaired is set when the input outline had to be fixed before use.
	Repaired bool
}

// Extrude builds the blade solid for a closed outline.
func Extrude(polygon []v2.Vec, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	outline, repaired, err := prepare(polygon)
	if err != nil {
		return nil, err
	}

	blade, err := bladeFootprint(outline, p)
	if err != nil {
		return nil, err
	}
	res := &Result{Blade: blade, Repaired: repaired}

	b := newBuilder()
	switch {
	case !p.HasBase():
		err = b.prism(blade, 0, p.BladeHeight)
	case p.BladeHeight == 0:
		res.Base, err = baseFootprint(outline, blade, p)
		if err == nil {
			err = b.prism(res.Base, 0, p.BaseThickness)
		}
	case p.BaseExtension == 0:
		// The base and blade share a footprint; one taller prism keeps the
		// outer wall free of a zero-width ledge.
		err = b.prism(blade, 0, p.Height())
		res.Base = blade
	default:
		res.Base, err = baseFootprint(outline, blade, p)
		if err == nil {
			err = b.stepped(res.Base, blade, 0, p.BaseThickness, p.Height())
		}
	}
	if err != nil {
		return nil, err
	}
	res.Mesh = b.mesh
	return res, nil
}

// prepare validates the outline and, if it is not simple, runs exactly one
// repair pass before validating again.
func prepare(polygon []v2.Vec) ([]v2.Vec, bool, error) {
	p := curve.Dedupe(polygon, 0)
	if reason := invalid(p); reason == "" {
		return curve.EnsureCCW(p), false, nil
	}

	pieces := clipper.NewClipper(clipper.IoNone).SimplifyPolygon(toPath(p), clipper.PftNonZero)
	var best []v2.Vec
	var bestArea float64
	for _, piece := range pieces {
		q := curve.Dedupe(fromPath(piece), 0)
		if len(q) < 3 {
			continue
		}
		if a := math.Abs(curve.Area(q)); a > bestArea {
			best, bestArea = q, a
		}
	}
	if reason := invalid(best); reason != "" {
		return nil, false, &kernel.InvalidGeometryError{Reason: "outline " + reason + " after repair"}
	}
	return curve.EnsureCCW(best), true, nil
}

func invalid(p []v2.Vec) string {
	switch {
	case len(p) < 3:
		return fmt.Sprintf("has %d distinct points", len(p))
	case math.Abs(curve.Area(p)) <= curve.EpsArea:
		return "encloses no area"
	case !curve.IsSimple(p):
		return "self-intersects"
	}
	return ""
}
