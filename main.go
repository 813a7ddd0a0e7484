package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chazu/bladesmith/pkg/config"
	"github.com/chazu/bladesmith/pkg/engine"
	"github.com/chazu/bladesmith/pkg/kernel"
	"github.com/chazu/bladesmith/pkg/meshio"
	"github.com/chazu/bladesmith/pkg/outline"
)

const usage = `usage: bladesmith <command> [flags]

commands:
  blade    convert an image silhouette into a blade solid
  walls    report walls thinner than a threshold
  thicken  grow thin walls, or push out listed vertices
  offset   grow or shrink a mesh surface
  hollow   shell a solid mesh

run "bladesmith <command> -h" for the flags of a command`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// command holds the flags shared by every subcommand.
type command struct {
	fs         *flag.FlagSet
	stdout     io.Writer
	stderr     io.Writer
	configFile *string
	verbose    *bool
	workers    *int
	budgetMB   *int64
	in         *string
}

func newCommand(name string, stdout, stderr io.Writer) *command {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return &command{
		fs:         fs,
		stdout:     stdout,
		stderr:     stderr,
		configFile: fs.String("config", "", "Path to config.json file"),
		verbose:    fs.Bool("v", false, "Log debug details to stderr"),
		workers:    fs.Int("workers", 0, "Number of worker goroutines (default: NumCPU)"),
		budgetMB:   fs.Int64("budget", 0, "Voxel memory budget in MiB (default: 512)"),
		in:         fs.String("in", "", "Input file"),
	}
}

// setup parses args, loads the config and installs the logger.
func (c *command) setup(args []string, flags config.Flags) (*App, config.Config, error) {
	if err := c.fs.Parse(args); err != nil {
		return nil, config.Config{}, err
	}
	if *c.in == "" {
		return nil, config.Config{}, errors.New("-in is required")
	}

	var cfg config.Config
	if *c.configFile != "" {
		var err error
		if cfg, err = config.Load(*c.configFile); err != nil {
			return nil, config.Config{}, err
		}
	}
	flags.Workers = *c.workers
	flags.VoxelMemoryMB = *c.budgetMB
	cfg.Resolve(flags)

	level := slog.LevelInfo
	if *c.verbose {
		level = slog.LevelDebug
	}
	engine.SetLogger(slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level})))
	return NewApp(cfg), cfg, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	name, args := args[0], args[1:]
	c := newCommand(name, stdout, stderr)
	switch name {
	case "blade":
		return c.blade(args)
	case "walls":
		return c.walls(args)
	case "thicken":
		return c.thicken(args)
	case "offset":
		return c.offset(args)
	case "hollow":
		return c.hollow(args)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q\n\n%s", name, usage)
}

func (c *command) blade(args []string) error {
	p := engine.DefaultParams()
	out := c.fs.String("out", "", "Output mesh (.stl or .3mf)")
	svgPath := c.fs.String("svg", "", "Also write the outline as SVG")
	dxfPath := c.fs.String("dxf", "", "Also write the outline as DXF")
	previewPath := c.fs.String("preview", "", "Also write a preview image (.png or .webp)")
	c.fs.Float64Var(&p.BladeThickness, "thickness", p.BladeThickness, "Blade wall thickness in mm")
	c.fs.Float64Var(&p.BladeHeight, "height", p.BladeHeight, "Blade height in mm")
	c.fs.Float64Var(&p.BaseThickness, "base", p.BaseThickness, "Base plate thickness in mm")
	c.fs.Float64Var(&p.BaseExtension, "extension", p.BaseExtension, "Base plate margin around the blade in mm")
	c.fs.BoolVar(&p.NoBase, "nobase", false, "Build the blade without a base plate")
	c.fs.StringVar(&p.Style, "style", "solid", `Blade style: "solid" or "cutter"`)
	c.fs.Float64Var(&p.DetailLevel, "detail", p.DetailLevel, "Outline detail from 0 (coarse) to 1 (fine)")
	c.fs.IntVar(&p.SmoothIterations, "smooth", p.SmoothIterations, "Corner-cutting passes (0-6)")
	size := c.fs.Float64("size", 0, "Longest image side in mm (default: config or 80)")

	app, cfg, err := c.setup(args, config.Flags{})
	if err != nil {
		return err
	}
	if *out == "" {
		return errors.New("-out is required")
	}
	if err := checkMeshExt(*out); err != nil {
		return err
	}
	p.OutlineSize = cfg.OutlineSize
	if *size != 0 {
		p.OutlineSize = *size
	}

	data, err := os.ReadFile(*c.in)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	res := app.Blade(data, p)
	if err := resultError(res.Errors); err != nil {
		return err
	}
	if err := writeMesh(*out, res.raw.Mesh); err != nil {
		return err
	}
	if *svgPath != "" {
		if err := writeFile(*svgPath, func(w io.Writer) error { return outline.WriteSVG(w, res.raw.Outline) }); err != nil {
			return err
		}
	}
	if *dxfPath != "" {
		if err := outline.SaveDXF(*dxfPath, res.raw.Outline); err != nil {
			return err
		}
	}
	if *previewPath != "" {
		if err := writePreview(*previewPath, res.raw); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.stdout, "Silhouette: %s strategy, %d outline points\n", res.Strategy, len(res.Outline))
	if res.Repaired {
		fmt.Fprintln(c.stdout, "Outline was self-intersecting and has been repaired")
	}
	fmt.Fprintf(c.stdout, "Wrote %s: %d triangles, volume %.1f mm3\n", *out, len(res.Mesh.Indices)/3, res.Mesh.Volume)
	return nil
}

func (c *command) walls(args []string) error {
	p := engine.DefaultParams()
	c.fs.Float64Var(&p.WallThicknessThreshold, "threshold", p.WallThicknessThreshold, "Report walls thinner than this, in mm")
	asJSON := c.fs.Bool("json", false, "Print every pair as JSON")
	app, _, err := c.setup(args, config.Flags{})
	if err != nil {
		return err
	}
	m, err := readMesh(*c.in)
	if err != nil {
		return err
	}
	res := app.Walls(m, p)
	if err := resultError(res.Errors); err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if len(res.Pairs) == 0 {
		fmt.Fprintf(c.stdout, "No walls thinner than %g mm\n", p.WallThicknessThreshold)
		return nil
	}
	fmt.Fprintf(c.stdout, "Wall pairs: %d, thinnest: %.3f mm\n", len(res.Pairs), res.Thinnest)
	return nil
}

func (c *command) thicken(args []string) error {
	p := engine.DefaultParams()
	out := c.fs.String("out", "", "Output mesh (.stl or .3mf)")
	c.fs.Float64Var(&p.WallThicknessThreshold, "threshold", p.WallThicknessThreshold, "Thicken walls thinner than this, in mm")
	c.fs.Float64Var(&p.ThicknessIncrease, "increase", p.ThicknessIncrease, "Thickness to add to each wall, in mm")
	list := c.fs.String("vertices", "", "Comma-separated vertex indices to push out instead of detected walls")
	app, _, err := c.setup(args, config.Flags{})
	if err != nil {
		return err
	}
	if *list == "" {
		return c.edit(*out, func(m *kernel.Mesh) MeshResult { return app.Thicken(m, p) })
	}
	vertices, err := parseVertices(*list)
	if err != nil {
		return err
	}
	return c.edit(*out, func(m *kernel.Mesh) MeshResult { return app.ThickenVertices(m, vertices, p) })
}

// parseVertices reads a list such as "0,4, 17".
func parseVertices(list string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, &kernel.InvalidParameterError{Field: "vertices", Value: list, Reason: "must be comma-separated vertex indices"}
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *command) offset(args []string) error {
	p := engine.DefaultParams()
	out := c.fs.String("out", "", "Output mesh (.stl or .3mf)")
	c.fs.Float64Var(&p.OffsetDistance, "distance", 0, "Offset distance in mm, negative to shrink")
	app, _, err := c.setup(args, config.Flags{})
	if err != nil {
		return err
	}
	return c.edit(*out, func(m *kernel.Mesh) MeshResult { return app.Offset(m, p) })
}

func (c *command) hollow(args []string) error {
	out := c.fs.String("out", "", "Output mesh (.stl or .3mf)")
	thickness := c.fs.Float64("thickness", 2, "Shell wall thickness in mm")
	app, _, err := c.setup(args, config.Flags{})
	if err != nil {
		return err
	}
	return c.edit(*out, func(m *kernel.Mesh) MeshResult { return app.Hollow(m, *thickness) })
}

// edit reads the input mesh, applies fn and writes the result to out.
func (c *command) edit(out string, fn func(*kernel.Mesh) MeshResult) error {
	if out == "" {
		return errors.New("-out is required")
	}
	if err := checkMeshExt(out); err != nil {
		return err
	}
	m, err := readMesh(*c.in)
	if err != nil {
		return err
	}
	res := fn(m)
	if err := resultError(res.Errors); err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(c.stdout, "Warning: %s\n", w)
	}
	if err := writeMesh(out, res.raw); err != nil {
		return err
	}
	if res.Strategy != "" {
		fmt.Fprintf(c.stdout, "Strategy: %s\n", res.Strategy)
	}
	fmt.Fprintf(c.stdout, "Wrote %s: %d triangles, watertight %v\n", out, len(res.Mesh.Indices)/3, res.Mesh.Watertight)
	return nil
}

func resultError(errs []ErrorData) error {
	if len(errs) == 0 {
		return nil
	}
	e := errs[0]
	msg := e.Message
	for _, a := range e.Attempts {
		msg += fmt.Sprintf("\n  %s: %s", a.Strategy, a.Reason)
	}
	return errors.New(msg)
}

func readMesh(path string) (*kernel.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read mesh: %w", err)
	}
	defer f.Close()
	return meshio.ReadSTL(f)
}

func checkMeshExt(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl", ".3mf":
		return nil
	}
	return fmt.Errorf("unsupported mesh format %q, use .stl or .3mf", filepath.Ext(path))
}

func writeMesh(path string, m *kernel.Mesh) error {
	ext := strings.ToLower(filepath.Ext(path))
	return writeFile(path, func(w io.Writer) error {
		if ext == ".3mf" {
			return meshio.Write3MF(w, m, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		}
		return meshio.WriteSTL(w, m)
	})
}

func writePreview(path string, res *engine.BladeResult) error {
	img, err := outline.RenderPreview(res.Image, res.Mask, res.ImageOutline)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return writeFile(path, func(w io.Writer) error { return png.Encode(w, img) })
	case ".webp":
		return writeFile(path, func(w io.Writer) error { return outline.EncodeWebP(w, img) })
	}
	return fmt.Errorf("unsupported preview format %q, use .png or .webp", filepath.Ext(path))
}

// writeFile creates path and writes it with fn, reporting close errors.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return fn(f)
}
