package walls

import (
	"math"

	"github.com/chazu/bladesmith/pkg/graph"
	"github.com/chazu/bladesmith/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// degenerateArea is the face area below which a moved face is reported.
const degenerateArea = 1e-10

// Selection names the region to thicken. When Pairs is non-empty both faces
// of every pair are pushed apart by half the amount, so each measured wall
// grows by the full amount. Otherwise the listed Vertices move outward by
// the full amount.
type Selection struct {
	Pairs    []Pair
	Vertices []int
}

// ThickenOptions tune how the edit fades into the surrounding surface. Zero
// values select graph.DefaultDecay and graph.DefaultCutoff.
type ThickenOptions struct {
	Decay  float64
	Cutoff float64
}

// ThickenResult is the edited mesh. Warnings list faces that collapsed or
// turned over during the edit; they do not make the result invalid.
type ThickenResult struct {
	Mesh     *kernel.Mesh
	Warnings []kernel.DegenerateFaceWarning
	Moved    int
}

// Thicken displaces the selected region of m along its vertex normals. A
// vertex's normal is taken only from its incident faces with the highest
// weight, so a seed face's rim vertices move straight along the seed's
// normal rather than tilting toward the unselected side walls. Each
// seed carries weight 1 and the weight halves (by Decay) per face hop, so
// the edit blends into its neighbourhood instead of leaving a step. m is not
// modified.
func Thicken(m *kernel.Mesh, sel Selection, amount float64, opts ThickenOptions) (*ThickenResult, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, &kernel.InvalidParameterError{Field: "thicknessIncrease", Value: amount, Reason: "must be > 0"}
	}
	if opts.Decay <= 0 || opts.Decay >= 1 {
		opts.Decay = graph.DefaultDecay
	}
	if opts.Cutoff <= 0 {
		opts.Cutoff = graph.DefaultCutoff
	}

	nf, nv := m.FaceCount(), m.VertexCount()
	seedFaces := make(map[int]float64)
	seedVerts := make(map[int]float64)
	scale := amount
	if len(sel.Pairs) > 0 {
		scale = amount / 2
		for _, p := range sel.Pairs {
			for _, f := range []int{p.FaceA, p.FaceB} {
				if f < 0 || f >= nf {
					return nil, &kernel.InvalidParameterError{Field: "pairs", Value: f, Reason: "face index out of range"}
				}
				seedFaces[f] = 1
			}
		}
	} else {
		for _, v := range sel.Vertices {
			if v < 0 || v >= nv {
				return nil, &kernel.InvalidParameterError{Field: "vertices", Value: v, Reason: "vertex index out of range"}
			}
			seedVerts[v] = 1
		}
		if len(seedVerts) > 0 {
			for i, f := range m.Faces {
				for _, v := range f {
					if seedVerts[v] > 0 {
						seedFaces[i] = opts.Decay
					}
				}
			}
		}
	}

	res := &ThickenResult{Mesh: m.Clone()}
	if len(seedFaces) == 0 {
		return res, nil
	}

	faceWeights := graph.Build(m).Propagate(seedFaces, opts.Decay, opts.Cutoff)
	weights := make([]float64, nv)
	for v, w := range seedVerts {
		weights[v] = w
	}
	for i, f := range m.Faces {
		for _, v := range f {
			weights[v] = max(weights[v], faceWeights[i])
		}
	}

	// All weights are known before any vertex moves.
	normals := leadingNormals(m, faceWeights)
	for v, w := range weights {
		if w < opts.Cutoff || normals[v] == (v3.Vec{}) {
			continue
		}
		res.Mesh.Vertices[v] = m.Vertices[v].Add(normals[v].MulScalar(w * scale))
		res.Moved++
	}

	for i := range res.Mesh.Faces {
		area := res.Mesh.FaceArea(i)
		flipped := res.Mesh.FaceNormal(i).Dot(m.FaceNormal(i)) < 0
		if area < degenerateArea || flipped {
			res.Warnings = append(res.Warnings, kernel.DegenerateFaceWarning{Face: i, Area: area})
		}
	}
	return res, nil
}

// leadingNormals returns, per vertex, the area-weighted normal of the
// incident faces that carry the vertex's highest face weight. Vertices that
// touch no weighted face fall back to all incident faces.
func leadingNormals(m *kernel.Mesh, faceWeights []float64) []v3.Vec {
	const tie = 1e-12
	best := make([]float64, m.VertexCount())
	for i, f := range m.Faces {
		for _, v := range f {
			best[v] = max(best[v], faceWeights[i])
		}
	}
	normals := make([]v3.Vec, m.VertexCount())
	for i, f := range m.Faces {
		n := m.FaceNormal(i).MulScalar(m.FaceArea(i))
		for _, v := range f {
			if faceWeights[i] >= best[v]-tie {
				normals[v] = normals[v].Add(n)
			}
		}
	}
	for i, n := range normals {
		if l := n.Length(); l > 1e-300 {
			normals[i] = n.DivScalar(l)
		}
	}
	return normals
}
