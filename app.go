package main

import (
	"errors"

	"github.com/samber/lo"

	"github.com/chazu/bladesmith/pkg/config"
	"github.com/chazu/bladesmith/pkg/engine"
	"github.com/chazu/bladesmith/pkg/graph"
	"github.com/chazu/bladesmith/pkg/kernel"
	"github.com/chazu/bladesmith/pkg/walls"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// App wraps the engine for callers that want plain, JSON-serializable
// results. Failures are reported in the result's Errors instead of a Go
// error, and every slice is non-nil so it encodes as [] rather than null.
type App struct {
	engine *engine.Engine
}

// MeshData is the JSON-serializable mesh format: flat xyz triples, one
// normal per vertex and three indices per triangle.
type MeshData struct {
	Vertices   []float32 `json:"vertices"`
	Normals    []float32 `json:"normals"`
	Indices    []uint32  `json:"indices"`
	Watertight bool      `json:"watertight"`
	Volume     float64   `json:"volume"`
}

// ErrorData is a JSON-serializable engine error.
type ErrorData struct {
	Kind     string                   `json:"kind"`
	Field    string                   `json:"field,omitempty"`
	Message  string                   `json:"message"`
	Attempts []kernel.StrategyAttempt `json:"attempts,omitempty"`
}

// BladeResult is the outcome of converting an image into a blade.
type BladeResult struct {
	RunID    string       `json:"runId"`
	Mesh     MeshData     `json:"mesh"`
	Outline  [][2]float64 `json:"outline"`
	Strategy string       `json:"strategy"`
	Repaired bool         `json:"repaired"`
	Errors   []ErrorData  `json:"errors"`

	raw *engine.BladeResult
}

// WallsResult lists the thin walls found in a mesh.
type WallsResult struct {
	RunID    string        `json:"runId"`
	Pairs    []walls.Pair  `json:"pairs"`
	Thinnest float64       `json:"thinnest"`
	Issues   []graph.Issue `json:"issues"`
	Errors   []ErrorData   `json:"errors"`
}

// MeshResult is the outcome of an edit that produces a new mesh.
type MeshResult struct {
	RunID    string                         `json:"runId"`
	Mesh     MeshData                       `json:"mesh"`
	Strategy string                         `json:"strategy,omitempty"`
	Warnings []kernel.DegenerateFaceWarning `json:"warnings"`
	Errors   []ErrorData                    `json:"errors"`

	raw *kernel.Mesh
}

// NewApp creates an App whose engine uses cfg.
func NewApp(cfg config.Config) *App {
	return &App{engine: engine.New(cfg)}
}

// Blade converts an encoded image into a blade solid.
func (a *App) Blade(image []byte, p engine.Params) BladeResult {
	result := BladeResult{Outline: [][2]float64{}, Errors: []ErrorData{}}
	res, err := a.engine.Blade(image, p)
	if err != nil {
		result.Errors = append(result.Errors, toErrorData(err))
		return result
	}
	result.RunID = res.RunID
	result.Mesh = toMeshData(res.Mesh)
	result.Outline = lo.Map(res.Outline, func(v v2.Vec, _ int) [2]float64 { return [2]float64{v.X, v.Y} })
	result.Strategy = res.Strategy
	result.Repaired = res.Repaired
	result.raw = res
	return result
}

// Walls reports the wall pairs of m thinner than p.WallThicknessThreshold.
func (a *App) Walls(m *kernel.Mesh, p engine.Params) WallsResult {
	result := WallsResult{Pairs: []walls.Pair{}, Issues: []graph.Issue{}, Errors: []ErrorData{}}
	res, err := a.engine.Walls(m, p)
	if err != nil {
		result.Errors = append(result.Errors, toErrorData(err))
		return result
	}
	result.RunID = res.RunID
	if len(res.Pairs) > 0 {
		result.Pairs = res.Pairs
	}
	if len(res.Issues) > 0 {
		result.Issues = res.Issues
	}
	result.Thinnest = res.Thinnest
	return result
}

// Thicken grows every wall of m thinner than p.WallThicknessThreshold by
// p.ThicknessIncrease.
func (a *App) Thicken(m *kernel.Mesh, p engine.Params) MeshResult {
	res, err := a.engine.Thicken(m, p)
	if err != nil {
		return failed(err)
	}
	return meshResult(res.RunID, res.Mesh, "", res.Warnings)
}

// ThickenVertices pushes the listed vertices of m outward by
// p.ThicknessIncrease, fading the edit into their neighbours.
func (a *App) ThickenVertices(m *kernel.Mesh, vertices []int, p engine.Params) MeshResult {
	res, err := a.engine.ThickenVertices(m, vertices, p)
	if err != nil {
		return failed(err)
	}
	return meshResult(res.RunID, res.Mesh, "", res.Warnings)
}

// Offset moves the surface of m by p.OffsetDistance.
func (a *App) Offset(m *kernel.Mesh, p engine.Params) MeshResult {
	res, err := a.engine.Offset(m, p)
	if err != nil {
		return failed(err)
	}
	return meshResult(res.RunID, res.Mesh, string(res.Strategy), nil)
}

// Hollow shells m with walls of the given thickness.
func (a *App) Hollow(m *kernel.Mesh, thickness float64) MeshResult {
	res, err := a.engine.Hollow(m, thickness)
	if err != nil {
		return failed(err)
	}
	return meshResult(res.RunID, res.Mesh, string(res.Strategy), nil)
}

func failed(err error) MeshResult {
	return MeshResult{
		Warnings: []kernel.DegenerateFaceWarning{},
		Errors:   []ErrorData{toErrorData(err)},
	}
}

func meshResult(id string, m *kernel.Mesh, strategy string, warnings []kernel.DegenerateFaceWarning) MeshResult {
	if warnings == nil {
		warnings = []kernel.DegenerateFaceWarning{}
	}
	return MeshResult{
		RunID:    id,
		Mesh:     toMeshData(m),
		Strategy: strategy,
		Warnings: warnings,
		Errors:   []ErrorData{},
		raw:      m,
	}
}

func toMeshData(m *kernel.Mesh) MeshData {
	normals := m.VertexNormals()
	data := MeshData{
		Vertices:   make([]float32, 0, 3*len(m.Vertices)),
		Normals:    make([]float32, 0, 3*len(normals)),
		Indices:    make([]uint32, 0, 3*len(m.Faces)),
		Watertight: m.IsWatertight(),
		Volume:     m.Volume(),
	}
	for _, v := range m.Vertices {
		data.Vertices = append(data.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
	}
	for _, n := range normals {
		data.Normals = append(data.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	for _, f := range m.Faces {
		data.Indices = append(data.Indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}
	return data
}

// toErrorData classifies err by the engine's error taxonomy.
func toErrorData(err error) ErrorData {
	data := ErrorData{Kind: "internal", Message: err.Error()}
	var (
		pe *kernel.InvalidParameterError
		nf *kernel.SilhouetteNotFoundError
	)
	switch {
	case errors.As(err, &pe):
		data.Kind, data.Field = "invalid_parameter", pe.Field
	case errors.As(err, &nf):
		data.Kind, data.Attempts = "silhouette_not_found", nf.Attempts
	case errors.Is(err, kernel.ErrInvalidGeometry):
		data.Kind = "invalid_geometry"
	case errors.Is(err, kernel.ErrResourceLimit):
		data.Kind = "resource_limit"
	case errors.Is(err, kernel.ErrGeometryOperation):
		data.Kind = "geometry_operation"
	}
	return data
}
