// Package engine runs the silhouette and mesh-editing pipelines behind one
// facade. It validates parameters and size limits before any algorithm
// runs, tags every call with a run ID for logging, and converts a panic
// escaping a geometry library into a *kernel.GeometryOperationError.
package engine

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/chazu/bladesmith/pkg/config"
	"github.com/chazu/bladesmith/pkg/curve"
	"github.com/chazu/bladesmith/pkg/extrude"
	"github.com/chazu/bladesmith/pkg/graph"
	"github.com/chazu/bladesmith/pkg/kernel"
	"github.com/chazu/bladesmith/pkg/offset"
	"github.com/chazu/bladesmith/pkg/silhouette"
	"github.com/chazu/bladesmith/pkg/spatial"
	"github.com/chazu/bladesmith/pkg/walls"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Engine holds the resolved limits. It keeps no per-call state and is safe
// for concurrent use.
type Engine struct {
	cfg config.Config
}

// New creates an Engine. Zero fields in cfg are resolved to defaults.
func New(cfg config.Config) *Engine {
	cfg.Resolve(config.Flags{})
	return &Engine{cfg: cfg}
}

// Config returns the resolved configuration.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// run executes fn under a fresh run ID. Panics are recovered and reported
// as geometry failures of op.
func (e *Engine) run(op string, fn func(log *slog.Logger) error) (id string, err error) {
	id = uuid.NewString()
	log := Logger().With("op", op, "run", id)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &kernel.GeometryOperationError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			log.Info("run failed", "err", err, "elapsed", time.Since(start))
			return
		}
		log.Info("run complete", "elapsed", time.Since(start))
	}()
	return id, fn(log)
}

// CheckMesh rejects a nil, empty, malformed or oversized mesh.
func (e *Engine) CheckMesh(m *kernel.Mesh) error {
	if m == nil || m.IsEmpty() {
		return &kernel.InvalidGeometryError{Reason: "mesh has no faces"}
	}
	lim := e.cfg.Limits
	if n := m.VertexCount(); n > lim.MaxVertices {
		return &kernel.ResourceLimitError{Resource: "mesh vertices", Required: int64(n), Limit: int64(lim.MaxVertices)}
	}
	if n := m.FaceCount(); n > lim.MaxFaces {
		return &kernel.ResourceLimitError{Resource: "mesh faces", Required: int64(n), Limit: int64(lim.MaxFaces)}
	}
	return m.Validate()
}

// BladeResult is a blade solid and the intermediate outline it came from.
type BladeResult struct {
	RunID string
	Mesh  *kernel.Mesh
	// Outline is the processed contour in millimetres, counter-clockwise.
	Outline []v2.Vec
	// ImageOutline is the same contour in source pixel coordinates.
	ImageOutline []v2.Vec
	Image        image.Image
	Mask         *silhouette.Mask
	Strategy     string
	Attempts     []silhouette.Attempt
	Repaired     bool
}

// Blade converts an encoded image into a blade solid: extract the
// silhouette, trace and simplify its outline, smooth it, scale it to
// OutlineSize millimetres and extrude it.
func (e *Engine) Blade(data []byte, p Params) (*BladeResult, error) {
	if err := p.ValidateBlade(); err != nil {
		return nil, err
	}
	ep, err := p.Extrusion()
	if err != nil {
		return nil, err
	}

	var res *BladeResult
	id, err := e.run("blade", func(log *slog.Logger) error {
		img, err := e.decode(data, log)
		if err != nil {
			return err
		}

		ext, err := silhouette.Extract(img, silhouette.Options{})
		if err != nil {
			return err
		}
		for _, a := range ext.Attempts {
			log.Debug("silhouette strategy", "strategy", a.Strategy, "outcome", a.Outcome.String(), "reason", a.Reason)
		}

		traced, err := silhouette.TraceContour(ext.Mask)
		if err != nil {
			return err
		}
		simplified, err := curve.Simplify(traced, p.DetailLevel)
		if err != nil {
			return err
		}
		smoothed, err := curve.Smooth(simplified, p.SmoothIterations, curve.DefaultRatio)
		if err != nil {
			return err
		}
		log.Debug("outline", "traced", len(traced), "simplified", len(simplified), "smoothed", len(smoothed))

		b := img.Bounds()
		outline, err := silhouette.ToModelSpace(smoothed, b.Dx(), b.Dy(), p.OutlineSize)
		if err != nil {
			return err
		}
		solid, err := extrude.Extrude(outline, ep)
		if err != nil {
			return err
		}
		if solid.Repaired {
			log.Info("outline repaired before extrusion")
		}
		if err := e.CheckMesh(solid.Mesh); err != nil {
			return err
		}

		res = &BladeResult{
			Mesh:         solid.Mesh,
			Outline:      outline,
			ImageOutline: smoothed,
			Image:        img,
			Mask:         ext.Mask,
			Strategy:     ext.Strategy,
			Attempts:     ext.Attempts,
			Repaired:     solid.Repaired,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.RunID = id
	return res, nil
}

// decode checks the resolution from the header before decoding any pixels.
func (e *Engine) decode(data []byte, log *slog.Logger) (image.Image, error) {
	cfg, format, err := silhouette.DecodeConfig(data)
	if err != nil {
		return nil, &kernel.InvalidGeometryError{Reason: "unreadable image", Err: err}
	}
	limit := int64(e.cfg.Limits.MaxImagePixels)
	if px := int64(cfg.Width) * int64(cfg.Height); px > limit {
		return nil, &kernel.ResourceLimitError{Resource: "image pixels", Required: px, Limit: limit}
	}
	img, _, err := silhouette.Decode(data)
	if err != nil {
		return nil, &kernel.InvalidGeometryError{Reason: "unreadable image", Err: err}
	}
	log.Debug("decoded image", "format", format, "width", cfg.Width, "height", cfg.Height)
	return img, nil
}

// WallsResult lists the thin walls of a mesh. Issues are topology problems
// found on the way; they do not stop the scan.
type WallsResult struct {
	RunID    string
	Pairs    []walls.Pair
	Faces    []int
	Thinnest float64
	Issues   []graph.Issue
}

// Walls finds every pair of opposing faces closer than
// p.WallThicknessThreshold.
func (e *Engine) Walls(m *kernel.Mesh, p Params) (*WallsResult, error) {
	if err := p.ValidateWalls(); err != nil {
		return nil, err
	}
	if err := e.CheckMesh(m); err != nil {
		return nil, err
	}
	var res *WallsResult
	id, err := e.run("walls", func(log *slog.Logger) error {
		pairs, err := e.detect(m, p.WallThicknessThreshold, log)
		if err != nil {
			return err
		}
		errs, warnings := graph.Check(m)
		issues := append(errs, warnings...)
		for _, is := range issues {
			log.Warn("topology issue", "code", is.Code, "message", is.Message)
		}
		res = &WallsResult{Pairs: pairs, Faces: walls.Faces(pairs), Thinnest: walls.Thinnest(pairs), Issues: issues}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.RunID = id
	return res, nil
}

func (e *Engine) detect(m *kernel.Mesh, threshold float64, log *slog.Logger) ([]walls.Pair, error) {
	start := time.Now()
	ix := spatial.Build(m)
	pairs, err := walls.Detect(m, ix, threshold, walls.Options{Workers: e.cfg.Workers})
	if err != nil {
		return nil, err
	}
	log.Debug("wall scan", "faces", ix.Len(), "pairs", len(pairs), "elapsed", time.Since(start))
	return pairs, nil
}

// EditResult is an edited mesh with any non-fatal warnings.
type EditResult struct {
	RunID    string
	Mesh     *kernel.Mesh
	Pairs    []walls.Pair
	Moved    int
	Warnings []kernel.DegenerateFaceWarning
}

// Thicken detects walls thinner than p.WallThicknessThreshold and grows
// each of them by p.ThicknessIncrease.
func (e *Engine) Thicken(m *kernel.Mesh, p Params) (*EditResult, error) {
	if err := p.ValidateThicken(); err != nil {
		return nil, err
	}
	if err := e.CheckMesh(m); err != nil {
		return nil, err
	}
	var res *EditResult
	id, err := e.run("thicken", func(log *slog.Logger) error {
		pairs, err := e.detect(m, p.WallThicknessThreshold, log)
		if err != nil {
			return err
		}
		if res, err = e.thicken(m, walls.Selection{Pairs: pairs}, p.ThicknessIncrease, log); err != nil {
			return err
		}
		res.Pairs = pairs
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.RunID = id
	return res, nil
}

// ThickenVertices pushes the given vertices outward by p.ThicknessIncrease,
// blending the edit into the surrounding faces. Repeated indices count once.
func (e *Engine) ThickenVertices(m *kernel.Mesh, vertices []int, p Params) (*EditResult, error) {
	if err := positive("thicknessIncrease", p.ThicknessIncrease); err != nil {
		return nil, err
	}
	if err := e.CheckMesh(m); err != nil {
		return nil, err
	}
	var res *EditResult
	id, err := e.run("thicken vertices", func(log *slog.Logger) error {
		var err error
		res, err = e.thicken(m, walls.Selection{Vertices: lo.Uniq(vertices)}, p.ThicknessIncrease, log)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.RunID = id
	return res, nil
}

func (e *Engine) thicken(m *kernel.Mesh, sel walls.Selection, amount float64, log *slog.Logger) (*EditResult, error) {
	tr, err := walls.Thicken(m, sel, amount, walls.ThickenOptions{})
	if err != nil {
		return nil, err
	}
	for _, w := range tr.Warnings {
		log.Warn("degenerate face", "face", w.Face, "area", w.Area)
	}
	log.Debug("thickened", "moved", tr.Moved, "warnings", len(tr.Warnings))
	return &EditResult{Mesh: tr.Mesh, Moved: tr.Moved, Warnings: tr.Warnings}, nil
}

// OffsetResult is an offset or hollowed mesh and the strategy that built it.
type OffsetResult struct {
	RunID    string
	Mesh     *kernel.Mesh
	Strategy offset.Strategy
	Fallback bool
	Pitch    float64
}

func (e *Engine) offsetOptions() offset.Options {
	return offset.Options{MemoryBudget: e.cfg.Limits.VoxelMemoryBudget, Workers: e.cfg.Workers}
}

// Offset moves the surface of m by p.OffsetDistance.
func (e *Engine) Offset(m *kernel.Mesh, p Params) (*OffsetResult, error) {
	if err := p.ValidateOffset(); err != nil {
		return nil, err
	}
	return e.offset("offset", m, p.OffsetDistance, func() (*offset.Result, error) {
		return offset.Offset(m, p.OffsetDistance, e.offsetOptions())
	})
}

// Hollow turns m into a shell of the given wall thickness with a closed
// inner cavity.
func (e *Engine) Hollow(m *kernel.Mesh, thickness float64) (*OffsetResult, error) {
	if err := positive("thickness", thickness); err != nil {
		return nil, err
	}
	return e.offset("hollow", m, -thickness, func() (*offset.Result, error) {
		return offset.Hollow(m, thickness, e.offsetOptions())
	})
}

// closed rejects meshes that do not bound a solid.
func closed(m *kernel.Mesh) error {
	errs, warnings := graph.Check(m)
	if len(errs) > 0 {
		return &kernel.InvalidGeometryError{Reason: "mesh is not manifold", Err: errs[0]}
	}
	for _, w := range warnings {
		if w.Code == graph.CodeBoundaryEdge {
			return &kernel.InvalidGeometryError{Reason: "mesh is not closed", Err: w}
		}
	}
	return nil
}

// offset runs fn after the cheap checks: size limits, then the voxel budget
// from the bounding box alone, and only then the topology check, which
// builds full edge and adjacency maps.
func (e *Engine) offset(op string, m *kernel.Mesh, distance float64, fn func() (*offset.Result, error)) (*OffsetResult, error) {
	if err := e.CheckMesh(m); err != nil {
		return nil, err
	}
	if err := offset.CheckBudget(m, distance, e.offsetOptions()); err != nil {
		return nil, err
	}
	if err := closed(m); err != nil {
		return nil, err
	}
	var res *OffsetResult
	id, err := e.run(op, func(log *slog.Logger) error {
		r, err := fn()
		if err != nil {
			return err
		}
		if r.Fallback {
			log.Info("direct offset turned faces over, used voxel fallback", "pitch", r.Pitch)
		}
		log.Debug("offset", "strategy", string(r.Strategy), "faces", r.Mesh.FaceCount())
		res = &OffsetResult{Mesh: r.Mesh, Strategy: r.Strategy, Fallback: r.Fallback, Pitch: r.Pitch}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.RunID = id
	return res, nil
}
