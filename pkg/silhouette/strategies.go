package silhouette

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// StrategyFunc produces a candidate mask. It returns false when the
// strategy does not apply to the image at all.
type StrategyFunc func(img *image.NRGBA) (*Mask, bool)

// Strategy is a named extraction method.
type Strategy struct {
	Name string
	Run  StrategyFunc
}

// DefaultStrategies are tried in order until one yields a valid mask.
var DefaultStrategies = []Strategy{
	{Name: "alpha", Run: AlphaMask},
	{Name: "closed-edge", Run: ClosedEdgeMask},
	{Name: "otsu", Run: OtsuMask},
	{Name: "region", Run: RegionMask},
}

const (
	alphaThreshold = 128
	// edgeFraction of the strongest gradient counts as an edge.
	edgeFraction = 0.15
	// regionMaxSide bounds the working copy used by RegionMask.
	regionMaxSide = 160
	// contrastFloor is the least RGB distance between the seed colours.
	contrastFloor = 24.0
	// smoothness weighs each disagreeing neighbour against the colour term.
	smoothness   = 0.6
	regionPasses = 10
)

// AlphaMask thresholds the alpha channel. It applies only when some pixel
// is not fully opaque.
func AlphaMask(img *image.NRGBA) (*Mask, bool) {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	translucent := false
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			a := img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3]
			if a < 255 {
				translucent = true
			}
			m.Set(x, y, a >= alphaThreshold)
		}
	}
	return m, translucent
}

// luminance returns the Rec. 601 luma of every pixel, composited over
// white, in the range [0, 255].
func luminance(img *image.NRGBA) ([]float64, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			p := img.Pix[i : i+4]
			a := float64(p[3]) / 255
			l := 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
			lum[y*w+x] = l*a + 255*(1-a)
		}
	}
	return lum, w, h
}

// ClosedEdgeMask finds strong Sobel edges, closes small gaps with a 3x3
// dilation and flood-fills the background in from the image border.
// Everything the fill cannot reach is foreground, except edge pixels that
// look like the background.
func ClosedEdgeMask(img *image.NRGBA) (*Mask, bool) {
	lum, w, h := luminance(img)
	at := func(x, y int) float64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return lum[y*w+x]
	}
	mag := make([]float64, w*h)
	var peak float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			g := math.Hypot(gx, gy)
			mag[y*w+x] = g
			peak = max(peak, g)
		}
	}
	if peak == 0 {
		return nil, false
	}

	edges := NewMask(w, h)
	for i, g := range mag {
		edges.Pix[i] = g >= edgeFraction*peak
	}
	edges = edges.dilate()

	outside := NewMask(w, h)
	var stack []int
	push := func(x, y int) {
		if x < 0 || y < 0 || x >= w || y >= h || edges.At(x, y) || outside.At(x, y) {
			return
		}
		outside.Set(x, y, true)
		stack = append(stack, y*w+x)
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p%w, p/w
		push(x+1, y)
		push(x-1, y)
		push(x, y+1)
		push(x, y-1)
	}

	// The dilated edge band straddles the true boundary. Band pixels join
	// whichever side their luminance is closer to.
	var inSum, outSum float64
	var inN, outN int
	for i, l := range lum {
		switch {
		case outside.Pix[i]:
			outSum += l
			outN++
		case !edges.Pix[i]:
			inSum += l
			inN++
		}
	}
	m := NewMask(w, h)
	for i := range m.Pix {
		m.Pix[i] = !outside.Pix[i]
	}
	if inN > 0 && outN > 0 {
		inMean, outMean := inSum/float64(inN), outSum/float64(outN)
		for i, l := range lum {
			if edges.Pix[i] && !outside.Pix[i] && math.Abs(l-outMean) < math.Abs(l-inMean) {
				m.Pix[i] = false
			}
		}
	}
	return m, true
}

// OtsuMask splits luminance at the threshold that maximises the variance
// between the two classes. The class touching most of the border is
// background.
func OtsuMask(img *image.NRGBA) (*Mask, bool) {
	lum, w, h := luminance(img)
	var hist [256]int
	for _, l := range lum {
		hist[int(math.Round(l))]++
	}
	levels := 0
	var sum float64
	for v, c := range hist {
		if c > 0 {
			levels++
		}
		sum += float64(v * c)
	}
	if levels < 2 {
		return nil, false
	}

	total := float64(len(lum))
	var sumB, wB, best float64
	threshold := 0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB, mF := sumB/wB, (sum-sumB)/wF
		if between := wB * wF * (mB - mF) * (mB - mF); between > best {
			best, threshold = between, t
		}
	}

	m := NewMask(w, h)
	for i, l := range lum {
		m.Pix[i] = int(math.Round(l)) > threshold
	}
	if fg, n := m.BorderCount(); 2*fg > n {
		m.Invert()
	}
	return m, true
}

// RegionMask labels pixels by minimising a seeded two-label energy: the
// border is background, a central box is foreground, each pixel pays its
// squared colour distance to its label's mean and a penalty per
// disagreeing neighbour. It is solved with iterated conditional modes on a
// downscaled copy and scaled back to the source size.
func RegionMask(img *image.NRGBA) (*Mask, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return nil, false
	}
	small := img
	if side := max(w, h); side > regionMaxSide {
		sw := max(3, w*regionMaxSide/side)
		sh := max(3, h*regionMaxSide/side)
		small = image.NewNRGBA(image.Rect(0, 0, sw, sh))
		draw.ApproxBiLinear.Scale(small, small.Bounds(), img, b, draw.Src, nil)
	}
	sb := small.Bounds()
	sw, sh := sb.Dx(), sb.Dy()

	col := make([][3]float64, sw*sh)
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			i := small.PixOffset(sb.Min.X+x, sb.Min.Y+y)
			p := small.Pix[i : i+4]
			a := float64(p[3]) / 255
			for c := 0; c < 3; c++ {
				col[y*sw+x][c] = float64(p[c])*a + 255*(1-a)
			}
		}
	}

	// seed: 0 free, 1 background, 2 foreground.
	seed := make([]uint8, sw*sh)
	x0, x1 := sw*2/5, max(sw*3/5, sw*2/5+1)
	y0, y1 := sh*2/5, max(sh*3/5, sh*2/5+1)
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			switch {
			case x == 0 || y == 0 || x == sw-1 || y == sh-1:
				seed[y*sw+x] = 1
			case x >= x0 && x < x1 && y >= y0 && y < y1:
				seed[y*sw+x] = 2
			}
		}
	}

	bg := meanColor(col, func(i int) bool { return seed[i] == 1 })
	fg := meanColor(col, func(i int) bool { return seed[i] == 2 })
	if math.Sqrt(colorDist2(bg, fg)) < contrastFloor {
		return nil, false
	}
	// Colour distances are normalised by the seed contrast so smoothness
	// has the same weight at any contrast.
	scale := colorDist2(bg, fg)

	labels := make([]bool, sw*sh)
	for i, s := range seed {
		labels[i] = s == 2 || (s == 0 && colorDist2(col[i], fg) < colorDist2(col[i], bg))
	}
	for pass := 0; pass < regionPasses; pass++ {
		changed := false
		for y := 0; y < sh; y++ {
			for x := 0; x < sw; x++ {
				i := y*sw + x
				if seed[i] != 0 {
					continue
				}
				var disagreeFG, disagreeBG float64
				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := x+d[0], y+d[1]
					if nx < 0 || ny < 0 || nx >= sw || ny >= sh {
						continue
					}
					if labels[ny*sw+nx] {
						disagreeBG++
					} else {
						disagreeFG++
					}
				}
				eFG := colorDist2(col[i], fg)/scale + smoothness*disagreeFG
				eBG := colorDist2(col[i], bg)/scale + smoothness*disagreeBG
				if l := eFG < eBG; l != labels[i] {
					labels[i] = l
					changed = true
				}
			}
		}
		bg = meanColor(col, func(i int) bool { return !labels[i] })
		fg = meanColor(col, func(i int) bool { return labels[i] })
		if !changed {
			break
		}
	}

	m := NewMask(w, h)
	for y := 0; y < h; y++ {
		sy := min(y*sh/h, sh-1)
		for x := 0; x < w; x++ {
			sx := min(x*sw/w, sw-1)
			m.Set(x, y, labels[sy*sw+sx])
		}
	}
	return m, true
}

// meanColor averages the colours of the pixels selected by keep.
func meanColor(col [][3]float64, keep func(i int) bool) [3]float64 {
	var sum [3]float64
	n := 0
	for i := range col {
		if !keep(i) {
			continue
		}
		for c := 0; c < 3; c++ {
			sum[c] += col[i][c]
		}
		n++
	}
	if n == 0 {
		return sum
	}
	for c := range sum {
		sum[c] /= float64(n)
	}
	return sum
}

func colorDist2(a, b [3]float64) float64 {
	var d float64
	for c := 0; c < 3; c++ {
		d += (a[c] - b[c]) * (a[c] - b[c])
	}
	return d
}
