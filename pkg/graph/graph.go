package graph

import (
	"sort"

	"github.com/chazu/bladesmith/pkg/kernel"
)

// edge is an undirected mesh edge with a <= b.
type edge struct{ a, b int }

func undirected(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// FaceGraph maps each face to the faces it shares an edge with.
type FaceGraph struct {
	adj [][]int
}

// Build returns the edge adjacency graph of s. Faces meeting along a
// non-manifold edge are all connected to each other.
func Build(s kernel.Surface) *FaceGraph {
	n := s.FaceCount()
	byEdge := make(map[edge][]int, n*3/2)
	for i := 0; i < n; i++ {
		f := s.Face(i)
		for j := 0; j < 3; j++ {
			e := undirected(f[j], f[(j+1)%3])
			byEdge[e] = append(byEdge[e], i)
		}
	}

	g := &FaceGraph{adj: make([][]int, n)}
	for _, faces := range byEdge {
		for x := range faces {
			for y := range faces {
				if x != y {
					g.adj[faces[x]] = append(g.adj[faces[x]], faces[y])
				}
			}
		}
	}
	for i := range g.adj {
		g.adj[i] = dedupe(g.adj[i])
	}
	return g
}

func dedupe(s []int) []int {
	if len(s) < 2 {
		return s
	}
	sort.Ints(s)
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the number of faces.
func (g *FaceGraph) Len() int {
	return len(g.adj)
}

// Neighbors returns the faces adjacent to face f in ascending order.
// The slice must not be modified.
func (g *FaceGraph) Neighbors(f int) []int {
	return g.adj[f]
}

// Components groups faces into edge-connected components, each sorted,
// ordered by their smallest face.
func (g *FaceGraph) Components() [][]int {
	seen := make([]bool, len(g.adj))
	var comps [][]int
	for start := range g.adj {
		if seen[start] {
			continue
		}
		seen[start] = true
		comp := []int{start}
		for q := 0; q < len(comp); q++ {
			for _, nb := range g.adj[comp[q]] {
				if !seen[nb] {
					seen[nb] = true
					comp = append(comp, nb)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}
