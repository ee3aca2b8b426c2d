// Package common - Detection results shared by detectors, annotation and persistence.
package common

import (
	"fmt"
	"image"
	"sort"
)

// Detection is one object reported by a detector, in pixel coordinates of the buffer
// that was passed to Detect.
type Detection struct {
	// Label is the human-readable class name.
	Label string `json:"label" yaml:"label"`
	// ClassID is the index of the class in the detector's name list.
	ClassID int `json:"class_id" yaml:"class_id"`
	// Confidence is the detector score in [0, 1].
	Confidence float32 `json:"confidence" yaml:"confidence"`
	// X, Y is the top-left corner of the box.
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	// Width and Height are the box size.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// FromRect builds a detection from an image.Rectangle.
func FromRect(label string, classID int, confidence float32, r image.Rectangle) Detection {
	r = r.Canon()
	return Detection{
		Label:      label,
		ClassID:    classID,
		Confidence: confidence,
		X:          r.Min.X,
		Y:          r.Min.Y,
		Width:      r.Dx(),
		Height:     r.Dy(),
	}
}

// Rect converts the detection box to an image.Rectangle.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
}

// String formats the detection the way the result log prints it.
//
// @example
// d := Detection{Label: "dog", X: 10, Y: 20, Width: 30, Height: 40, Confidence: 0.9}
// fmt.Println(d) // dog:(10,20,30,40)0.9
func (d Detection) String() string {
	return fmt.Sprintf("%s:(%d,%d,%d,%d)%v", d.Label, d.X, d.Y, d.Width, d.Height, d.Confidence)
}

// Intersection calculates the intersection area between two detections.
func (d Detection) Intersection(other Detection) int {
	s := d.Rect().Intersect(other.Rect()).Size()
	return s.X * s.Y
}

// Union calculates the union area between two detections.
func (d Detection) Union(other Detection) int {
	return d.Width*d.Height + other.Width*other.Height - d.Intersection(other)
}

// IoU calculates the Intersection over Union between two detections.
//
// Returns:
//   - float32: A value between 0 and 1; 0 when both boxes are empty.
func (d Detection) IoU(other Detection) float32 {
	union := d.Union(other)
	if union <= 0 {
		return 0
	}
	return float32(d.Intersection(other)) / float32(union)
}

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 // Overlap threshold for suppression.
	ClassAware   bool    // If true, suppress only within same class.
}

// ApplyNMS filters overlapping detections with greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Candidate detections in any order.
//   - config: NMS configuration.
//
// Returns:
//   - The kept detections, highest confidence first. If no detections are provided, returns nil.
func ApplyNMS(detections []Detection, config NMSConfig) []Detection {
	if len(detections) == 0 {
		return nil
	}

	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	used := make([]bool, len(sorted))
	kept := make([]Detection, 0, len(sorted))
	for i := range sorted {
		if used[i] {
			continue
		}
		kept = append(kept, sorted[i])
		used[i] = true

		for j := i + 1; j < len(sorted); j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && sorted[i].ClassID != sorted[j].ClassID {
				continue
			}
			if sorted[i].IoU(sorted[j]) > config.IoUThreshold {
				used[j] = true
			}
		}
	}
	return kept
}
