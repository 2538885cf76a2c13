package mot

import "image"

// Detection is a single object found by an upstream detector on a frame.
// X and Y are the center of the box. Detections carry no identity.
type Detection struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// NewDetectionFromRect converts pixel rectangle (e.g. from image processing pipeline) into detection
func NewDetectionFromRect(rect image.Rectangle, name string, confidence float64) Detection {
	box := NewBoxFromRect(NewRectFrom(rect))
	return Detection{
		X:          box.X,
		Y:          box.Y,
		W:          box.W,
		H:          box.H,
		Name:       name,
		Confidence: confidence,
	}
}

// Box returns geometry of the detection
func (d Detection) Box() Box {
	return Box{X: d.X, Y: d.Y, W: d.W, H: d.H}
}
