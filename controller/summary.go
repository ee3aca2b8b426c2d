package controller

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Summary aggregates the detections of a batch.
type Summary struct {
	// Files is the number of files that produced a result.
	Files int `json:"files"`

	// TotalObjects is the total number of detected objects
	TotalObjects int `json:"total_objects"`

	// ByLabel counts detections per class label.
	ByLabel map[string]int `json:"by_label"`

	// AverageObjectSize is the mean bounding box area of all objects
	AverageObjectSize float64 `json:"average_object_size"`

	// ConfidenceDistribution provides statistics on detection confidence
	ConfidenceDistribution ConfidenceStats `json:"confidence_distribution"`
}

// ConfidenceStats provides statistical analysis of detection confidence scores
type ConfidenceStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// Summarize computes the Summary of the successful files.
func Summarize(files []FileResult) Summary {
	s := Summary{ByLabel: map[string]int{}}

	var confidences []float64
	var totalArea float64
	for _, f := range files {
		if f.Err != nil {
			continue
		}
		s.Files++
		for _, d := range f.Detections {
			s.ByLabel[d.Label]++
			confidences = append(confidences, float64(d.Confidence))
			totalArea += float64(d.Width * d.Height)
		}
	}

	s.TotalObjects = len(confidences)
	if s.TotalObjects == 0 {
		return s
	}
	s.AverageObjectSize = totalArea / float64(s.TotalObjects)
	s.ConfidenceDistribution = confidenceStats(confidences)
	return s
}

func confidenceStats(confidences []float64) ConfidenceStats {
	sort.Float64s(confidences)

	var stats ConfidenceStats
	var sum float64
	for _, c := range confidences {
		sum += c
	}
	stats.Mean = sum / float64(len(confidences))
	stats.Min = confidences[0]
	stats.Max = confidences[len(confidences)-1]

	if len(confidences)%2 == 0 {
		stats.Median = (confidences[len(confidences)/2-1] + confidences[len(confidences)/2]) / 2
	} else {
		stats.Median = confidences[len(confidences)/2]
	}

	var sumSquaredDiff float64
	for _, c := range confidences {
		diff := c - stats.Mean
		sumSquaredDiff += diff * diff
	}
	stats.StdDev = math.Sqrt(sumSquaredDiff / float64(len(confidences)))
	return stats
}

// String renders the summary as one log line, labels sorted by count then name.
func (s Summary) String() string {
	labels := make([]string, 0, len(s.ByLabel))
	for l := range s.ByLabel {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if s.ByLabel[labels[i]] != s.ByLabel[labels[j]] {
			return s.ByLabel[labels[i]] > s.ByLabel[labels[j]]
		}
		return labels[i] < labels[j]
	})

	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s=%d", l, s.ByLabel[l])
	}

	return fmt.Sprintf("%d file(s), %d object(s) [%s] confidence mean %.3f",
		s.Files, s.TotalObjects, strings.Join(parts, " "), s.ConfidenceDistribution.Mean)
}
