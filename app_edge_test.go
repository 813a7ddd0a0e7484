package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/bladesmith/pkg/kernel"
	"github.com/chazu/bladesmith/pkg/meshio"
	"github.com/chazu/bladesmith/pkg/silhouette"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func writeSTL(t *testing.T, dir, name string, m *kernel.Mesh) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := meshio.WriteSTL(f, m); err != nil {
		t.Fatal(err)
	}
	return path
}

func readSTL(t *testing.T, path string) *kernel.Mesh {
	t.Helper()
	m, err := readMesh(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return m
}

// runCLI runs the command line and returns stdout, failing on error.
func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("bladesmith %s: %v\nstderr:\n%s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String()
}

func TestCLIBlade(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "disc.png")
	if err := os.WriteFile(in, discPNG(t, 100, 30), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "blade.3mf")
	svgPath := filepath.Join(dir, "outline.svg")
	dxfPath := filepath.Join(dir, "outline.dxf")
	preview := filepath.Join(dir, "preview.webp")

	stdout := runCLI(t, "blade", "-in", in, "-out", out, "-svg", svgPath, "-dxf", dxfPath,
		"-preview", preview, "-size", "50", "-nobase", "-height", "10")
	if !strings.Contains(stdout, "closed-edge strategy") {
		t.Errorf("stdout lacks the strategy:\n%s", stdout)
	}
	for _, path := range []string{out, svgPath, dxfPath, preview} {
		if st, err := os.Stat(path); err != nil || st.Size() == 0 {
			t.Errorf("%s was not written: %v", filepath.Base(path), err)
		}
	}

	data, err := os.ReadFile(preview)
	if err != nil {
		t.Fatal(err)
	}
	img, format, err := silhouette.Decode(data)
	if err != nil || format != "webp" {
		t.Fatalf("preview decode: %s %v", format, err)
	}
	if img.Bounds().Dx() != 100 {
		t.Errorf("preview width = %d, want 100", img.Bounds().Dx())
	}
}

func TestCLIEdits(t *testing.T) {
	dir := t.TempDir()
	cube := writeSTL(t, dir, "cube.stl", kernel.Box(v3.Vec{X: 10, Y: 10, Z: 10}, [3]int{4, 4, 4}))
	plate := writeSTL(t, dir, "plate.stl", plateMesh())

	tests := []struct {
		name   string
		args   []string
		height float64
	}{
		{"direct offset", []string{"offset", "-in", cube, "-distance", "0.25"}, 10.5},
		{"thicken plate", []string{"thicken", "-in", plate, "-threshold", "2", "-increase", "0.5"}, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".stl")
			stdout := runCLI(t, append(tt.args, "-out", out)...)
			if !strings.Contains(stdout, "watertight true") {
				t.Errorf("stdout:\n%s", stdout)
			}
			m := readSTL(t, out)
			bb := m.BoundingBox()
			// STL stores float32 coordinates.
			if h := bb.Max.Z - bb.Min.Z; math.Abs(h-tt.height) > 0.01 {
				t.Errorf("height = %f, want %f", h, tt.height)
			}
		})
	}
}

func TestCLIThickenVertices(t *testing.T) {
	dir := t.TempDir()
	cube := writeSTL(t, dir, "cube.stl", kernel.Box(v3.Vec{X: 10, Y: 10, Z: 10}, [3]int{4, 4, 4}))
	out := filepath.Join(dir, "bumped.stl")
	stdout := runCLI(t, "thicken", "-in", cube, "-out", out, "-vertices", "0, 0", "-increase", "1")
	if !strings.Contains(stdout, "watertight true") {
		t.Errorf("stdout:\n%s", stdout)
	}
	// Whichever surface vertex is first, it moves 1mm outward, so at least
	// one side grows by more than half of that and none by more than all.
	size := readSTL(t, out).BoundingBox().Size()
	grown := max(size.X, size.Y, size.Z)
	if grown <= 10.5 || grown > 11.01 {
		t.Errorf("largest side = %f, want in (10.5, 11]", grown)
	}
}

func TestCLIHollow(t *testing.T) {
	if testing.Short() {
		t.Skip("voxel hollowing in short mode")
	}
	dir := t.TempDir()
	in := writeSTL(t, dir, "cube.stl", kernel.Box(v3.Vec{X: 20, Y: 20, Z: 20}, [3]int{2, 2, 2}))
	out := filepath.Join(dir, "shell.3mf")
	stdout := runCLI(t, "hollow", "-in", in, "-out", out, "-thickness", "3")
	if !strings.Contains(stdout, "Strategy: voxel") {
		t.Errorf("stdout:\n%s", stdout)
	}
}

func TestCLIWallsJSON(t *testing.T) {
	dir := t.TempDir()
	in := writeSTL(t, dir, "plate.stl", plateMesh())
	stdout := runCLI(t, "walls", "-in", in, "-threshold", "2", "-json")

	var result WallsResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("walls output is not JSON: %v\n%s", err, stdout)
	}
	if len(result.Pairs) != 800 || math.Abs(result.Thinnest-1) > 1e-6 {
		t.Errorf("%d pairs, thinnest %f", len(result.Pairs), result.Thinnest)
	}

	summary := runCLI(t, "walls", "-in", in, "-threshold", "0.3")
	if !strings.Contains(summary, "No walls thinner than 0.3 mm") {
		t.Errorf("summary:\n%s", summary)
	}
}

func TestCLIErrors(t *testing.T) {
	dir := t.TempDir()
	cube := writeSTL(t, dir, "cube.stl", kernel.Box(v3.Vec{X: 10, Y: 10, Z: 10}, [3]int{1, 1, 1}))
	out := filepath.Join(dir, "out.stl")
	badConfig := filepath.Join(dir, "config.json")
	if err := os.WriteFile(badConfig, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "usage: bladesmith"},
		{"unknown command", []string{"sharpen"}, `unknown command "sharpen"`},
		{"missing input", []string{"offset", "-out", out, "-distance", "1"}, "-in is required"},
		{"missing output", []string{"offset", "-in", cube, "-distance", "1"}, "-out is required"},
		{"bad output format", []string{"offset", "-in", cube, "-out", "x.obj", "-distance", "1"}, "unsupported mesh format"},
		{"zero distance", []string{"offset", "-in", cube, "-out", out}, "offsetDistance"},
		{"missing file", []string{"walls", "-in", filepath.Join(dir, "none.stl")}, "read mesh"},
		{"bad config", []string{"walls", "-in", cube, "-config", badConfig}, "config: parse"},
		{"missing image", []string{"blade", "-in", filepath.Join(dir, "none.png"), "-out", out}, "read image"},
		{"bad vertex list", []string{"thicken", "-in", cube, "-out", out, "-vertices", "1,x"}, "vertices"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(tt.args, &stdout, &stderr)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}
