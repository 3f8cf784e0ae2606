package persistence

import (
	"firewatch/internal/service/ai"
)

// Mask is a binary per-pixel grid for one class in one frame, stored row-major.
// A set pixel holds 1.
type Mask struct {
	Width  int
	Height int
	Bits   []uint8
}

func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Bits: make([]uint8, width*height)}
}

// FillRect sets every pixel inside b, clipped to the mask.
func (m *Mask) FillRect(b ai.Box) {
	x0, y0 := max(0, b.X), max(0, b.Y)
	x1, y1 := min(m.Width, b.X+b.W), min(m.Height, b.Y+b.H)
	for y := y0; y < y1; y++ {
		row := m.Bits[y*m.Width : (y+1)*m.Width]
		for x := x0; x < x1; x++ {
			row[x] = 1
		}
	}
}

func (m *Mask) At(x, y int) bool {
	return m.Bits[y*m.Width+x] != 0
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Bits {
		if v != 0 {
			n++
		}
	}
	return n
}

func (m *Mask) sameSize(o *Mask) bool {
	return m.Width == o.Width && m.Height == o.Height
}
