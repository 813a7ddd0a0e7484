package graph

// Propagation defaults: weight halves per hop and stops below 1%.
const (
	DefaultDecay  = 0.5
	DefaultCutoff = 0.01
)

// Propagate spreads seed weights outward through the graph one frontier
// at a time. A face reached in h hops from a seed of weight w receives
// w*decay^h; where several paths meet, the largest weight wins. Faces whose
// weight would fall below cutoff are left at zero and stop the spread.
// The returned slice has one weight per face.
func (g *FaceGraph) Propagate(seeds map[int]float64, decay, cutoff float64) []float64 {
	if decay <= 0 || decay >= 1 {
		decay = DefaultDecay
	}
	if cutoff <= 0 {
		cutoff = DefaultCutoff
	}

	weights := make([]float64, len(g.adj))
	var frontier []int
	for f, w := range seeds {
		if f < 0 || f >= len(g.adj) || w < cutoff {
			continue
		}
		if w > weights[f] {
			if weights[f] == 0 {
				frontier = append(frontier, f)
			}
			weights[f] = w
		}
	}

	for len(frontier) > 0 {
		next := make([]int, 0, len(frontier))
		queued := make(map[int]bool)
		for _, f := range frontier {
			w := weights[f] * decay
			if w < cutoff {
				continue
			}
			for _, nb := range g.adj[f] {
				if w > weights[nb] {
					weights[nb] = w
					if !queued[nb] {
						queued[nb] = true
						next = append(next, nb)
					}
				}
			}
		}
		frontier = next
	}
	return weights
}
