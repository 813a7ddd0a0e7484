package silhouette

// Mask is a binary image with the same dimensions as its source. Pixels are
// stored row-major; true is foreground.
type Mask struct {
	Width, Height int
	Pix           []bool
}

// NewMask returns an all-background mask.
func NewMask(w, h int) *Mask {
	return &Mask{Width: w, Height: h, Pix: make([]bool, w*h)}
}

// At reports whether (x, y) is foreground. Points outside the mask are
// background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set marks (x, y).
func (m *Mask) Set(x, y int, v bool) {
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Fraction returns the share of foreground pixels.
func (m *Mask) Fraction() float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.Pix))
}

// Invert flips every pixel in place.
func (m *Mask) Invert() {
	for i, v := range m.Pix {
		m.Pix[i] = !v
	}
}

// BorderCount returns how many pixels on the outer frame are foreground,
// and the frame length.
func (m *Mask) BorderCount() (fg, total int) {
	for x := 0; x < m.Width; x++ {
		for _, y := range []int{0, m.Height - 1} {
			total++
			if m.At(x, y) {
				fg++
			}
		}
	}
	for y := 1; y < m.Height-1; y++ {
		for _, x := range []int{0, m.Width - 1} {
			total++
			if m.At(x, y) {
				fg++
			}
		}
	}
	return fg, total
}

// Dominant returns a mask holding only the largest 8-connected foreground
// component, and that component's share of all foreground pixels.
func (m *Mask) Dominant() (*Mask, float64) {
	labels := make([]int32, len(m.Pix))
	var sizes []int
	stack := make([]int, 0, 64)
	for start, v := range m.Pix {
		if !v || labels[start] != 0 {
			continue
		}
		id := int32(len(sizes) + 1)
		size := 0
		labels[start] = id
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x, y := p%m.Width, p/m.Width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if !m.At(nx, ny) {
						continue
					}
					q := ny*m.Width + nx
					if labels[q] == 0 {
						labels[q] = id
						stack = append(stack, q)
					}
				}
			}
		}
		sizes = append(sizes, size)
	}

	out := NewMask(m.Width, m.Height)
	if len(sizes) == 0 {
		return out, 0
	}
	best, total := 0, 0
	for i, s := range sizes {
		total += s
		if s > sizes[best] {
			best = i
		}
	}
	for i, l := range labels {
		out.Pix[i] = l == int32(best+1)
	}
	return out, float64(sizes[best]) / float64(total)
}

// dilate grows the foreground by one pixel in all eight directions.
func (m *Mask) dilate() *Mask {
	out := NewMask(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.At(x, y) {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && ny >= 0 && nx < m.Width && ny < m.Height {
						out.Set(nx, ny, true)
					}
				}
			}
		}
	}
	return out
}
