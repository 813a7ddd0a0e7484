package graph

import (
	"fmt"

	"github.com/chazu/bladesmith/pkg/kernel"
)

// Issue codes reported by Check.
const (
	CodeNonManifoldEdge     = "non_manifold_edge"
	CodeInconsistentWinding = "inconsistent_winding"
	CodeBoundaryEdge        = "boundary_edge"
	CodeMultipleShells      = "multiple_shells"
)

// Issue describes one topology problem found on a mesh.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Edge    [2]int `json:"edge,omitempty"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// Check inspects mesh topology. Errors (blocking) and warnings (advisory)
// are returned separately: edges shared by more than two faces or wound the
// same way twice are errors; open edges and disconnected shells are
// warnings.
func Check(s kernel.Surface) ([]Issue, []Issue) {
	var errs, warnings []Issue

	directed := make(map[[2]int]int, s.FaceCount()*3)
	shared := make(map[edge]int, s.FaceCount()*3/2)
	for i := 0; i < s.FaceCount(); i++ {
		f := s.Face(i)
		for j := 0; j < 3; j++ {
			a, b := f[j], f[(j+1)%3]
			directed[[2]int{a, b}]++
			shared[undirected(a, b)]++
		}
	}

	boundary := 0
	for e, n := range shared {
		switch {
		case n > 2:
			errs = append(errs, Issue{
				Code:    CodeNonManifoldEdge,
				Message: fmt.Sprintf("edge %d-%d is shared by %d faces", e.a, e.b, n),
				Edge:    [2]int{e.a, e.b},
			})
		case n == 2 && (directed[[2]int{e.a, e.b}] != 1 || directed[[2]int{e.b, e.a}] != 1):
			errs = append(errs, Issue{
				Code:    CodeInconsistentWinding,
				Message: fmt.Sprintf("faces on edge %d-%d are wound the same way", e.a, e.b),
				Edge:    [2]int{e.a, e.b},
			})
		case n == 1:
			boundary++
		}
	}
	if boundary > 0 {
		warnings = append(warnings, Issue{
			Code:    CodeBoundaryEdge,
			Message: fmt.Sprintf("%d edges border only one face; the mesh is open", boundary),
		})
	}
	if comps := Build(s).Components(); len(comps) > 1 {
		warnings = append(warnings, Issue{
			Code:    CodeMultipleShells,
			Message: fmt.Sprintf("mesh has %d disconnected shells", len(comps)),
		})
	}
	return errs, warnings
}
