// Package coco maps SSD MobileNet COCO class ids to labels and decides which
// detections are kept.
package coco

import (
	"fmt"
	"image"
	"strings"
)

var labels = map[int]string{
	1:  "person",
	2:  "bicycle",
	3:  "car",
	4:  "motorcycle",
	5:  "airplane",
	6:  "bus",
	7:  "train",
	8:  "truck",
	16: "bird",
	17: "cat",
	18: "dog",
	27: "backpack",
	31: "handbag",
	33: "suitcase",
}

// Label returns the class name for id, or unknown_<id>.
func Label(classID int) string {
	if label, ok := labels[classID]; ok {
		return label
	}
	return fmt.Sprintf("unknown_%d", classID)
}

// Filter keeps detections of the wanted classes above a confidence
// threshold.
type Filter struct {
	classes   map[string]bool
	threshold float64
}

// NewFilter builds a filter. An empty class list keeps every class.
func NewFilter(classes []string, threshold float64) Filter {
	f := Filter{threshold: threshold}
	if len(classes) > 0 {
		f.classes = make(map[string]bool, len(classes))
		for _, c := range classes {
			f.classes[strings.ToLower(strings.TrimSpace(c))] = true
		}
	}
	return f
}

func (f Filter) Keep(label string, confidence float64) bool {
	if confidence <= f.threshold {
		return false
	}
	return f.classes == nil || f.classes[strings.ToLower(label)]
}

// Clamp limits a box to a frame of the given size. ok is false when nothing
// of the box is left.
func Clamp(box image.Rectangle, width, height int) (image.Rectangle, bool) {
	box = box.Canon().Intersect(image.Rect(0, 0, width, height))
	return box, !box.Empty()
}
