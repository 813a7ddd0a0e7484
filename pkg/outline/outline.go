// Package outline exports traced silhouettes as 2D drawings: SVG and DXF
// vector files for CAD tools, and a raster preview that overlays the mask
// and outline on the source image.
package outline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"

	"github.com/HugoSmits86/nativewebp"
	svg "github.com/ajstarks/svgo/float"
	"github.com/gogpu/gg"
	"github.com/yofu/dxf"

	"github.com/chazu/bladesmith/pkg/kernel"
	"github.com/chazu/bladesmith/pkg/silhouette"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Layer is the DXF layer holding the outline.
const Layer = "OUTLINE"

// svgMargin is the blank border around the drawing in millimetres.
const svgMargin = 2.0

func checkPolygon(polygon []v2.Vec) error {
	if len(polygon) < 3 {
		return &kernel.InvalidGeometryError{Reason: fmt.Sprintf("outline has %d points", len(polygon))}
	}
	return nil
}

func bounds(polygon []v2.Vec) (lo, hi v2.Vec) {
	lo, hi = polygon[0], polygon[0]
	for _, p := range polygon[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	return lo, hi
}

// WriteSVG writes a model-space polygon as an SVG document sized in
// millimetres. SVG's Y axis points down, so the outline is mirrored to
// keep it upright.
func WriteSVG(w io.Writer, polygon []v2.Vec) error {
	if err := checkPolygon(polygon); err != nil {
		return err
	}
	lo, hi := bounds(polygon)
	width := hi.X - lo.X + 2*svgMargin
	height := hi.Y - lo.Y + 2*svgMargin

	xs := make([]float64, len(polygon))
	ys := make([]float64, len(polygon))
	for i, p := range polygon {
		xs[i] = p.X - lo.X + svgMargin
		ys[i] = hi.Y - p.Y + svgMargin
	}

	canvas := svg.New(w)
	canvas.StartviewUnit(width, height, "mm", 0, 0, width, height)
	canvas.Title("outline")
	canvas.Polygon(xs, ys, "fill:none;stroke:black;stroke-width:0.2")
	canvas.End()
	return nil
}

// SaveDXF writes a model-space polygon to path as closed line segments on
// the OUTLINE layer.
func SaveDXF(path string, polygon []v2.Vec) error {
	if err := checkPolygon(polygon); err != nil {
		return err
	}
	d := dxf.NewDrawing()
	if _, err := d.AddLayer(Layer, dxf.DefaultColor, dxf.DefaultLineType, true); err != nil {
		return fmt.Errorf("outline: dxf layer: %w", err)
	}
	for i, p := range polygon {
		q := polygon[(i+1)%len(polygon)]
		if _, err := d.Line(p.X, p.Y, 0, q.X, q.Y, 0); err != nil {
			return fmt.Errorf("outline: dxf line %d: %w", i, err)
		}
	}
	if err := d.SaveAs(path); err != nil {
		return fmt.Errorf("outline: save dxf: %w", err)
	}
	return nil
}

// PreviewTint is blended over foreground pixels in a preview.
var PreviewTint = color.NRGBA{R: 0, G: 160, B: 255, A: 96}

// RenderPreview returns img with the mask tinted and the outline, given in
// image coordinates, stroked on top. mask may be nil.
func RenderPreview(img image.Image, mask *silhouette.Mask, polygon []v2.Vec) (image.Image, error) {
	base := silhouette.ToNRGBA(img)
	canvas := image.NewNRGBA(base.Rect)
	draw.Draw(canvas, canvas.Rect, base, image.Point{}, draw.Src)
	if mask != nil {
		if mask.Width != canvas.Rect.Dx() || mask.Height != canvas.Rect.Dy() {
			return nil, &kernel.InvalidGeometryError{Reason: "mask and image sizes differ"}
		}
		alpha := image.NewAlpha(canvas.Rect)
		for i, v := range mask.Pix {
			if v {
				alpha.Pix[i] = 0xff
			}
		}
		draw.DrawMask(canvas, canvas.Rect, image.NewUniform(PreviewTint), image.Point{}, alpha, image.Point{}, draw.Over)
	}

	dc := gg.NewContextForImage(canvas)
	defer dc.Close()
	if len(polygon) >= 3 {
		side := float64(max(canvas.Rect.Dx(), canvas.Rect.Dy()))
		dc.SetRGB(1, 0.15, 0.1)
		dc.SetLineWidth(math.Max(1, side/200))
		dc.MoveTo(polygon[0].X, polygon[0].Y)
		for _, p := range polygon[1:] {
			dc.LineTo(p.X, p.Y)
		}
		dc.ClosePath()
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("outline: stroke preview: %w", err)
		}
	}
	return dc.Image(), nil
}

// EncodeWebP writes img as lossless WebP.
func EncodeWebP(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("outline: encode webp: %w", err)
	}
	return nil
}
