package mot

import (
	"image"
)

// Number of coordinates used for spatial indexing: x, y, w, h
const boxDims = 4

// Box is an axis-aligned bounding box described by its center and size.
type Box struct {
	X float64
	Y float64
	W float64
	H float64
}

// NewBox creates box from center coordinates and size
func NewBox(x, y, w, h float64) Box {
	return Box{
		X: x,
		Y: y,
		W: w,
		H: h,
	}
}

// NewBoxFromRect converts top-left based rectangle into center based box
func NewBoxFromRect(rect Rectangle) Box {
	return Box{
		X: rect.X + rect.Width/2.0,
		Y: rect.Y + rect.Height/2.0,
		W: rect.Width,
		H: rect.Height,
	}
}

// Edges returns (x0, y0, x1, y1) corners of the box
func (b Box) Edges() (float64, float64, float64, float64) {
	return b.X - b.W/2.0, b.Y - b.H/2.0, b.X + b.W/2.0, b.Y + b.H/2.0
}

// Rect returns top-left based representation of the box
func (b Box) Rect() Rectangle {
	return Rectangle{
		X:      b.X - b.W/2.0,
		Y:      b.Y - b.H/2.0,
		Width:  b.W,
		Height: b.H,
	}
}

// Area returns w*h
func (b Box) Area() float64 {
	return b.W * b.H
}

// Dim returns coordinate by axis index: 0 - x, 1 - y, 2 - w, 3 - h
func (b Box) Dim(d int) float64 {
	switch d {
	case 0:
		return b.X
	case 1:
		return b.Y
	case 2:
		return b.W
	default:
		return b.H
	}
}

// Shift returns box moved by (dx, dy)
func (b Box) Shift(dx, dy float64) Box {
	b.X += dx
	b.Y += dy
	return b
}

// Rectangle is top-left based rectangle
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

func NewRectFrom(rect image.Rectangle) Rectangle {
	return Rectangle{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
	}
}
