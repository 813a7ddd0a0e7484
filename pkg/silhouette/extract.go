// Package silhouette separates the main subject of a raster image from its
// background. Extraction tries a fixed list of strategies in order and
// accepts the first mask whose foreground share and connectivity look like
// a single object; the outline of that object is then traced into a
// polygon.
package silhouette

import (
	"fmt"
	"image"

	"github.com/chazu/bladesmith/pkg/kernel"
)

// Validity bounds for a candidate mask.
const (
	MinForeground        = 0.02
	MaxForeground        = 0.95
	DefaultDominantRatio = 0.8
)

// Outcome is the result of one strategy.
type Outcome int

const (
	Accepted Outcome = iota
	Rejected
	NotApplicable
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case NotApplicable:
		return "not applicable"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Attempt records what one strategy produced.
type Attempt struct {
	Strategy string  `json:"strategy"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
}

// Options tune extraction. Zero values select the defaults.
type Options struct {
	// DominantRatio is the least share of foreground pixels the largest
	// connected component must hold.
	DominantRatio float64
	// Strategies replaces DefaultStrategies.
	Strategies []Strategy
}

// Result is an accepted mask and how it was found.
type Result struct {
	// Mask holds only the dominant component.
	Mask     *Mask
	Strategy string
	Attempts []Attempt
}

// Extract runs the strategies in order and returns the first valid mask.
// When none qualifies the error is a *kernel.SilhouetteNotFoundError that
// lists every attempt.
func Extract(img image.Image, opts Options) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &kernel.InvalidGeometryError{Reason: "image has no pixels"}
	}
	ratio := opts.DominantRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultDominantRatio
	}
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}

	src := ToNRGBA(img)
	res := &Result{}
	for _, s := range strategies {
		m, ok := s.Run(src)
		if !ok {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Outcome: NotApplicable, Reason: "not applicable"})
			continue
		}
		dominant, reason := validate(m, ratio)
		if reason != "" {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Outcome: Rejected, Reason: reason})
			continue
		}
		res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Outcome: Accepted})
		res.Mask = dominant
		res.Strategy = s.Name
		return res, nil
	}

	err := &kernel.SilhouetteNotFoundError{}
	for _, a := range res.Attempts {
		err.Attempts = append(err.Attempts, kernel.StrategyAttempt{Strategy: a.Strategy, Reason: a.Reason})
	}
	return nil, err
}

// validate returns the dominant component of m, or why m is not a
// plausible silhouette.
func validate(m *Mask, ratio float64) (*Mask, string) {
	f := m.Fraction()
	switch {
	case f < MinForeground:
		return nil, fmt.Sprintf("foreground %.1f%% below %.0f%%", 100*f, 100*MinForeground)
	case f > MaxForeground:
		return nil, fmt.Sprintf("foreground %.1f%% above %.0f%%", 100*f, 100*MaxForeground)
	}
	dominant, share := m.Dominant()
	if share < ratio {
		return nil, fmt.Sprintf("largest component holds %.0f%% of the foreground, need %.0f%%", 100*share, 100*ratio)
	}
	return dominant, ""
}
