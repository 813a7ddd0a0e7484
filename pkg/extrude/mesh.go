package extrude

import (
	"errors"
	"fmt"

	"github.com/chazu/bladesmith/pkg/kernel"
	"github.com/chazu/bladesmith/pkg/tessellate"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var errEmptyFootprint = errors.New("offset produced no contour")

// builder accumulates an indexed mesh layer by layer.
type builder struct {
	mesh *kernel.Mesh
}

func newBuilder() *builder {
	return &builder{mesh: &kernel.Mesh{}}
}

// rings adds one vertex per contour point at height z and returns their
// indices, contour by contour.
func (b *builder) rings(contours [][]v2.Vec, z float64) [][]int {
	out := make([][]int, len(contours))
	for i, c := range contours {
		out[i] = make([]int, len(c))
		for j, p := range c {
			out[i][j] = len(b.mesh.Vertices)
			b.mesh.Vertices = append(b.mesh.Vertices, v3.Vec{X: p.X, Y: p.Y, Z: z})
		}
	}
	return out
}

// walls joins bottom and top rings with quads. Each contour must already be
// oriented with the solid on its left so the walls face outward.
func (b *builder) walls(bottom, top [][]int) {
	for c := range bottom {
		n := len(bottom[c])
		for j := 0; j < n; j++ {
			k := (j + 1) % n
			b0, b1 := bottom[c][j], bottom[c][k]
			t0, t1 := top[c][j], top[c][k]
			b.mesh.Faces = append(b.mesh.Faces, [3]int{b0, b1, t1}, [3]int{b0, t1, t0})
		}
	}
}

// fill triangulates the even-odd region of contours using the given ring
// vertices. Up-facing caps keep counter-clockwise triangles; down-facing
// caps are reversed.
func (b *builder) fill(contours [][]v2.Vec, rings [][]int, up bool) error {
	tris, err := tessellate.Fill(contours)
	if err != nil {
		return &kernel.GeometryOperationError{Op: "cap triangulation", Err: err}
	}
	var ids []int
	for _, r := range rings {
		ids = append(ids, r...)
	}
	for _, t := range tris {
		f := [3]int{ids[t[0]], ids[t[1]], ids[t[2]]}
		if !up {
			f[1], f[2] = f[2], f[1]
		}
		b.mesh.Faces = append(b.mesh.Faces, f)
	}
	return nil
}

// prism extrudes the even-odd region of contours from z0 to z1.
func (b *builder) prism(contours [][]v2.Vec, z0, z1 float64) error {
	contours = tessellate.Orient(contours)
	bottom := b.rings(contours, z0)
	top := b.rings(contours, z1)
	b.walls(bottom, top)
	if err := b.fill(contours, bottom, false); err != nil {
		return err
	}
	return b.fill(contours, top, true)
}

// stepped builds a base prism from z0 to z1 and a narrower blade prism
// from z1 to z2. The ledge at z1 is the region covered by the base but not
// by the blade; it shares its vertices with both prisms.
func (b *builder) stepped(base, blade [][]v2.Vec, z0, z1, z2 float64) error {
	base = tessellate.Orient(base)
	blade = tessellate.Orient(blade)

	baseBottom := b.rings(base, z0)
	baseTop := b.rings(base, z1)
	bladeBottom := b.rings(blade, z1)
	bladeTop := b.rings(blade, z2)

	b.walls(baseBottom, baseTop)
	b.walls(bladeBottom, bladeTop)
	if err := b.fill(base, baseBottom, false); err != nil {
		return err
	}
	ledge := append(append([][]v2.Vec{}, base...), blade...)
	ledgeRings := append(append([][]int{}, baseTop...), bladeBottom...)
	if err := b.fill(ledge, ledgeRings, true); err != nil {
		return fmt.Errorf("extrude: ledge: %w", err)
	}
	return b.fill(blade, bladeTop, true)
}
