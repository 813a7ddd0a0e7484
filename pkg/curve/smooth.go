package curve

import (
	"fmt"
	"math"

	"github.com/chazu/bladesmith/pkg/kernel"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Smoothing defaults.
const (
	DefaultIterations = 2
	DefaultRatio      = 0.25
	MaxIterations     = 6
)

// Smooth applies Chaikin corner cutting to a closed loop. Every iteration
// replaces each edge (a, b), including the wrap-around edge, with the two
// points at ratio and 1-ratio along it, so a loop of N points comes back
// with exactly N * 2^iterations points.
func Smooth(points []v2.Vec, iterations int, ratio float64) ([]v2.Vec, error) {
	if iterations < 0 || iterations > MaxIterations {
		return nil, &kernel.InvalidParameterError{
			Field:  "smoothIterations",
			Value:  iterations,
			Reason: fmt.Sprintf("must be within [0, %d]", MaxIterations),
		}
	}
	if math.IsNaN(ratio) || ratio <= 0 || ratio > 0.5 {
		return nil, &kernel.InvalidParameterError{Field: "smoothRatio", Value: ratio, Reason: "must be within (0, 0.5]"}
	}
	if len(points) < 3 {
		return nil, &kernel.InvalidGeometryError{Reason: fmt.Sprintf("closed loop needs 3 points, got %d", len(points))}
	}

	cur := append([]v2.Vec(nil), points...)
	for it := 0; it < iterations; it++ {
		next := make([]v2.Vec, 0, 2*len(cur))
		for i, a := range cur {
			b := cur[(i+1)%len(cur)]
			d := b.Sub(a)
			next = append(next, a.Add(d.MulScalar(ratio)), a.Add(d.MulScalar(1-ratio)))
		}
		cur = next
	}
	return cur, nil
}
