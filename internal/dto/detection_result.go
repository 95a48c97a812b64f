package dto

import "image"

// DetectionResult is one detector hit in frame pixel coordinates.
type DetectionResult struct {
	Label      string
	Confidence float64
	X          int
	Y          int
	Width      int
	Height     int
}

// Box returns the detection as a rectangle.
func (d DetectionResult) Box() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
}
