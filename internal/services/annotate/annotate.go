package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"countertime/internal/services/tracking"
	"countertime/internal/zone"
)

var (
	zoneColor   = color.RGBA{R: 255, G: 255, B: 0, A: 0}
	boxColor    = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	activeColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	anchorColor = color.RGBA{R: 0, G: 0, B: 255, A: 0}
)

// Zones outlines every counter polygon with its name.
func Zones(mat *gocv.Mat, zones []zone.Zone) error {
	if len(zones) == 0 {
		return nil
	}
	pts := make([][]image.Point, 0, len(zones))
	for _, z := range zones {
		pts = append(pts, z.Polygon)
	}
	pv := gocv.NewPointsVectorFromPoints(pts)
	defer pv.Close()

	if err := gocv.Polylines(mat, pv, true, zoneColor, 2); err != nil {
		return fmt.Errorf("failed to draw zones: %w", err)
	}
	for _, z := range zones {
		b := z.Bounds()
		if err := gocv.PutText(mat, z.Name, image.Pt(b.Min.X, b.Min.Y-8), gocv.FontHersheySimplex, 0.6, zoneColor, 2); err != nil {
			return fmt.Errorf("failed to draw zone label: %w", err)
		}
	}
	return nil
}

// Tracks draws each tracked box with its id and anchor point. Tracks in
// active are highlighted.
func Tracks(mat *gocv.Mat, tracks []tracking.Track, active map[int]bool) error {
	for _, t := range tracks {
		c := boxColor
		if active[t.ID] {
			c = activeColor
		}
		if err := gocv.Rectangle(mat, t.Box, c, 2); err != nil {
			return fmt.Errorf("failed to draw rectangle: %w", err)
		}
		label := fmt.Sprintf("ID %d", t.ID)
		if err := gocv.PutText(mat, label, image.Pt(t.Box.Min.X, t.Box.Min.Y-5), gocv.FontHersheySimplex, 0.5, c, 1); err != nil {
			return fmt.Errorf("failed to draw text: %w", err)
		}
		anchor := image.Pt((t.Box.Min.X+t.Box.Max.X)/2, t.Box.Max.Y)
		if err := gocv.Circle(mat, anchor, 4, anchorColor, -1); err != nil {
			return fmt.Errorf("failed to draw anchor: %w", err)
		}
	}
	return nil
}

// EncodeJPEG encodes mat, returning a copy of the bytes.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// CropJPEG encodes the part of mat inside rect. rect is clipped to the
// frame first.
func CropJPEG(mat gocv.Mat, rect image.Rectangle) ([]byte, error) {
	rect = rect.Intersect(image.Rect(0, 0, mat.Cols(), mat.Rows()))
	if rect.Empty() {
		return nil, fmt.Errorf("crop %v is outside the frame", rect)
	}
	region := mat.Region(rect)
	defer region.Close()
	return EncodeJPEG(region)
}
