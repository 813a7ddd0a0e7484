package offset

import (
	"errors"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/bladesmith/pkg/kernel"
	"github.com/chazu/bladesmith/pkg/kernel/sdfx"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// bytesPerVoxel is one occupancy byte plus two float32 distance arrays.
const bytesPerVoxel = 9

// edtInf stands in for infinity in the squared distance transform.
const edtInf = 1e20

// gridDims returns the voxel counts covering bb at the given pitch.
func gridDims(bb sdf.Box3, pitch float64) [3]float64 {
	size := bb.Max.Sub(bb.Min)
	return [3]float64{
		math.Max(1, math.Ceil(size.X/pitch)),
		math.Max(1, math.Ceil(size.Y/pitch)),
		math.Max(1, math.Ceil(size.Z/pitch)),
	}
}

// EstimateVoxelMemory returns the bytes needed to voxelize bb at pitch.
// The estimate saturates at math.MaxInt64.
func EstimateVoxelMemory(bb sdf.Box3, pitch float64) int64 {
	d := gridDims(bb, pitch)
	total := d[0] * d[1] * d[2] * bytesPerVoxel
	if total >= math.MaxInt64 || math.IsNaN(total) {
		return math.MaxInt64
	}
	return int64(total)
}

// lattice is the voxel grid an offset samples: the mesh bounds padded by
// the offset plus two voxels on every side.
type lattice struct {
	bb    sdf.Box3
	pitch float64
	steps float64
}

func newLattice(m *kernel.Mesh, distance, pitch float64) lattice {
	steps := math.Abs(distance) / pitch
	pad := float64(int(math.Ceil(steps))+2) * pitch
	bb := m.BoundingBox()
	return lattice{
		bb:    sdf.Box3{Min: bb.Min.SubScalar(pad), Max: bb.Max.AddScalar(pad)},
		pitch: pitch,
		steps: steps,
	}
}

func (l lattice) memory() int64 { return EstimateVoxelMemory(l.bb, l.pitch) }

// defaultPitch is the voxel edge length used when Options.Pitch is unset.
func defaultPitch(distance float64, opts Options) float64 {
	if opts.Pitch > 0 {
		return opts.Pitch
	}
	return math.Abs(distance) / stepsPerDistance
}

// CheckBudget reports whether an offset of m by distance would need more
// voxel memory than opts allows. It only inspects the bounding box, so
// callers can run it before any per-face work. Distances below DirectLimit
// start with vertex displacement and always pass.
func CheckBudget(m *kernel.Mesh, distance float64, opts Options) error {
	if math.Abs(distance) < DirectLimit || m == nil || m.IsEmpty() {
		return nil
	}
	if need := newLattice(m, distance, defaultPitch(distance, opts)).memory(); need > opts.budget() {
		return &kernel.ResourceLimitError{Resource: "voxel memory", Required: need, Limit: opts.budget()}
	}
	return nil
}

// fallbackPitch picks the voxel size used when direct displacement fails.
// It starts at |distance|/3 and coarsens until the grid fits the budget,
// but never beyond DirectLimit/3, the pitch a DirectLimit offset would use.
func fallbackPitch(m *kernel.Mesh, distance float64, opts Options) (float64, error) {
	if opts.Pitch > 0 {
		return opts.Pitch, nil
	}
	const coarsen = 1.1
	limit := DirectLimit / stepsPerDistance
	pitch := math.Abs(distance) / stepsPerDistance
	for ; pitch < limit; pitch *= coarsen {
		if newLattice(m, distance, pitch).memory() <= opts.budget() {
			return pitch, nil
		}
	}
	if need := newLattice(m, distance, limit).memory(); need > opts.budget() {
		return 0, &kernel.ResourceLimitError{Resource: "voxel memory", Required: need, Limit: opts.budget()}
	}
	return limit, nil
}

// voxelOffset rebuilds m offset by distance from a signed distance field
// sampled at the given pitch.
func voxelOffset(m *kernel.Mesh, distance, pitch float64, opts Options) (*Result, error) {
	l := newLattice(m, distance, pitch)
	bb, steps := l.bb, l.steps
	if need := l.memory(); need > opts.budget() {
		return nil, &kernel.ResourceLimitError{Resource: "voxel memory", Required: need, Limit: opts.budget()}
	}

	d := gridDims(bb, pitch)
	n := [3]int{int(d[0]), int(d[1]), int(d[2])}
	occ := voxelize(m, bb.Min, pitch, n)
	solid := false
	for _, o := range occ {
		if o {
			solid = true
			break
		}
	}
	if !solid {
		return nil, &kernel.GeometryOperationError{Op: "voxelize", Err: errors.New("mesh encloses no voxels at this pitch")}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	// The grid's own samples hold the distance to solid until they are
	// overwritten with the signed field.
	grid := sdfx.NewGrid(bb.Min, pitch, n)
	toSolid := grid.Values
	toSpace := make([]float32, len(occ))
	for i, o := range occ {
		if o {
			toSolid[i], toSpace[i] = 0, edtInf
		} else {
			toSolid[i] = edtInf
		}
	}
	if err := transform(toSolid, n, workers); err != nil {
		return nil, err
	}
	if err := transform(toSpace, n, workers); err != nil {
		return nil, err
	}

	// Signed distance in voxels, zero halfway between an inside and an
	// outside voxel centre, shifted by the offset and scaled to millimetres.
	shift := -steps
	if distance < 0 {
		shift = steps
	}
	inside := false
	for i, o := range occ {
		var v float64
		if o {
			v = -(math.Sqrt(float64(toSpace[i])) - 0.5)
		} else {
			v = math.Sqrt(float64(toSolid[i])) - 0.5
		}
		v = (v + shift) * pitch
		if v < 0 {
			inside = true
		}
		toSolid[i] = float32(v)
	}
	if !inside {
		return nil, &kernel.GeometryOperationError{Op: "offset", Err: errors.New("offset consumed the solid")}
	}

	out, err := sdfx.ToMesh(grid, max(n[0], n[1], n[2]))
	if err != nil {
		return nil, &kernel.GeometryOperationError{Op: "offset", Err: err}
	}
	return &Result{Mesh: out, Strategy: StrategyVoxel, Pitch: pitch}, nil
}

// crossing is where a column ray passes through a face.
type crossing struct {
	z       float64
	winding int
}

// voxelize marks the voxels whose centres lie inside m. A ray is cast up
// every voxel column and the winding number of each centre is the sum of
// the crossings below it. The ray is nudged off the grid lines so it does
// not run exactly through shared edges.
func voxelize(m *kernel.Mesh, origin v3.Vec, pitch float64, n [3]int) []bool {
	const jitterX, jitterY = 1.1e-4, 2.3e-4
	columns := make([][]crossing, n[0]*n[1])
	colX := func(i int) float64 { return origin.X + (float64(i)+0.5+jitterX)*pitch }
	colY := func(j int) float64 { return origin.Y + (float64(j)+0.5+jitterY)*pitch }

	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		nrm := b.Sub(a).Cross(c.Sub(a))
		if nrm.Z == 0 {
			continue
		}
		winding := 1
		if nrm.Z > 0 {
			winding = -1
		}
		lo, hi := a.Min(b).Min(c), a.Max(b).Max(c)
		i0 := max(0, int(math.Floor((lo.X-origin.X)/pitch-0.5)))
		i1 := min(n[0]-1, int(math.Ceil((hi.X-origin.X)/pitch-0.5)))
		j0 := max(0, int(math.Floor((lo.Y-origin.Y)/pitch-0.5)))
		j1 := min(n[1]-1, int(math.Ceil((hi.Y-origin.Y)/pitch-0.5)))
		for j := j0; j <= j1; j++ {
			y := colY(j)
			for i := i0; i <= i1; i++ {
				x := colX(i)
				if !inTriangle(x, y, a, b, c) {
					continue
				}
				z := a.Z - (nrm.X*(x-a.X)+nrm.Y*(y-a.Y))/nrm.Z
				col := j*n[0] + i
				columns[col] = append(columns[col], crossing{z: z, winding: winding})
			}
		}
	}

	occ := make([]bool, n[0]*n[1]*n[2])
	for j := 0; j < n[1]; j++ {
		for i := 0; i < n[0]; i++ {
			col := columns[j*n[0]+i]
			if len(col) == 0 {
				continue
			}
			sort.Slice(col, func(p, q int) bool { return col[p].z < col[q].z })
			w, next := 0, 0
			for k := 0; k < n[2]; k++ {
				z := origin.Z + (float64(k)+0.5)*pitch
				for next < len(col) && col[next].z < z {
					w += col[next].winding
					next++
				}
				occ[(k*n[1]+j)*n[0]+i] = w != 0
			}
		}
	}
	return occ
}

// inTriangle reports whether (x, y) lies strictly inside the xy projection
// of triangle abc, for either winding.
func inTriangle(x, y float64, a, b, c v3.Vec) bool {
	edge := func(p, q v3.Vec) float64 {
		return (q.X-p.X)*(y-p.Y) - (q.Y-p.Y)*(x-p.X)
	}
	d1, d2, d3 := edge(a, b), edge(b, c), edge(c, a)
	return (d1 > 0 && d2 > 0 && d3 > 0) || (d1 < 0 && d2 < 0 && d3 < 0)
}

// transform replaces f, a grid of zeros (features) and edtInf, with the
// squared Euclidean distance in voxels to the nearest feature. It runs the
// separable one-dimensional transform along x, then y, then z.
func transform(f []float32, n [3]int, workers int) error {
	strides := [3]int{1, n[0], n[0] * n[1]}
	for axis := 0; axis < 3; axis++ {
		u, v := (axis+1)%3, (axis+2)%3
		lines := n[u] * n[v]
		chunk := max(1, (lines+workers-1)/workers)
		var g errgroup.Group
		g.SetLimit(workers)
		for first := 0; first < lines; first += chunk {
			start, end := first, min(first+chunk, lines)
			g.Go(func() error {
				size := n[axis]
				buf := make([]float64, size)
				out := make([]float64, size)
				hull := make([]int, size)
				bounds := make([]float64, size+1)
				for line := start; line < end; line++ {
					base := (line%n[u])*strides[u] + (line/n[u])*strides[v]
					for q := 0; q < size; q++ {
						buf[q] = float64(f[base+q*strides[axis]])
					}
					edt1D(buf, out, hull, bounds)
					for q := 0; q < size; q++ {
						f[base+q*strides[axis]] = float32(out[q])
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// edt1D is the lower envelope of parabolas from Felzenszwalb and
// Huttenlocher's distance transform of sampled functions.
func edt1D(f, d []float64, v []int, z []float64) {
	n := len(f)
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		fq := f[q] + float64(q*q)
		s := (fq - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		for s <= z[k] {
			k--
			s = (fq - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		}
		k++
		v[k] = q
		z[k] = s
		if k+1 < len(z) {
			z[k+1] = math.Inf(1)
		}
	}
	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}
