package engine

import (
	"fmt"
	"math"

	"github.com/chazu/bladesmith/pkg/curve"
	"github.com/chazu/bladesmith/pkg/extrude"
	"github.com/chazu/bladesmith/pkg/kernel"
)

// Params are the user-facing operation parameters. Each operation reads the
// fields it needs and rejects out-of-range values by field name; nothing is
// clamped.
type Params struct {
	BladeThickness float64 `json:"bladeThickness"`
	BladeHeight    float64 `json:"bladeHeight"`
	BaseThickness  float64 `json:"baseThickness"`
	BaseExtension  float64 `json:"baseExtension"`
	NoBase         bool    `json:"noBase"`
	Style          string  `json:"style,omitempty"`

	DetailLevel      float64 `json:"detailLevel"`
	SmoothIterations int     `json:"smoothIterations"`
	OutlineSize      float64 `json:"outlineSize"`

	WallThicknessThreshold float64 `json:"wallThicknessThreshold"`
	ThicknessIncrease      float64 `json:"thicknessIncrease"`
	OffsetDistance         float64 `json:"offsetDistance"`
}

// DefaultParams returns a blade of 1.2 mm walls, 15 mm tall, on a 2 mm
// base reaching 3 mm past the blade, traced at medium detail.
func DefaultParams() Params {
	return Params{
		BladeThickness:         1.2,
		BladeHeight:            15,
		BaseThickness:          2,
		BaseExtension:          3,
		DetailLevel:            0.5,
		SmoothIterations:       curve.DefaultIterations,
		OutlineSize:            80,
		WallThicknessThreshold: 1,
		ThicknessIncrease:      0.5,
	}
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &kernel.InvalidParameterError{Field: field, Value: v, Reason: "must be finite"}
	}
	return nil
}

func positive(field string, v float64) error {
	if err := finite(field, v); err != nil {
		return err
	}
	if v <= 0 {
		return &kernel.InvalidParameterError{Field: field, Value: v, Reason: "must be > 0"}
	}
	return nil
}

// Extrusion returns the extruder parameters after validating them.
func (p Params) Extrusion() (extrude.Params, error) {
	style, err := extrude.ParseStyle(p.Style)
	if err != nil {
		return extrude.Params{}, err
	}
	ep := extrude.Params{
		BladeThickness: p.BladeThickness,
		BladeHeight:    p.BladeHeight,
		BaseThickness:  p.BaseThickness,
		BaseExtension:  p.BaseExtension,
		NoBase:         p.NoBase,
		Style:          style,
	}
	return ep, ep.Validate()
}

// ValidateBlade checks every field the image-to-blade pipeline reads.
func (p Params) ValidateBlade() error {
	if _, err := p.Extrusion(); err != nil {
		return err
	}
	if err := finite("detailLevel", p.DetailLevel); err != nil {
		return err
	}
	if p.DetailLevel < 0 || p.DetailLevel > 1 {
		return &kernel.InvalidParameterError{Field: "detailLevel", Value: p.DetailLevel, Reason: "must be within [0, 1]"}
	}
	if p.SmoothIterations < 0 || p.SmoothIterations > curve.MaxIterations {
		return &kernel.InvalidParameterError{
			Field:  "smoothIterations",
			Value:  p.SmoothIterations,
			Reason: fmt.Sprintf("must be within [0, %d]", curve.MaxIterations),
		}
	}
	return positive("outlineSize", p.OutlineSize)
}

// ValidateWalls checks the wall detection threshold.
func (p Params) ValidateWalls() error {
	return positive("wallThicknessThreshold", p.WallThicknessThreshold)
}

// ValidateThicken checks the detection threshold and the increase.
func (p Params) ValidateThicken() error {
	if err := p.ValidateWalls(); err != nil {
		return err
	}
	return positive("thicknessIncrease", p.ThicknessIncrease)
}

// ValidateOffset checks that the offset distance is finite and non-zero.
// Its sign selects growing or shrinking.
func (p Params) ValidateOffset() error {
	if err := finite("offsetDistance", p.OffsetDistance); err != nil {
		return err
	}
	if p.OffsetDistance == 0 {
		return &kernel.InvalidParameterError{Field: "offsetDistance", Value: p.OffsetDistance, Reason: "must be non-zero"}
	}
	return nil
}
