package food

import (
	"fmt"
	"strings"
)

// Detection is a vocabulary label with the detector's confidence for one bounding box
type Detection struct {
	Label      Label      `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box,omitempty"`
}

// String renders the detection as "<label> (<confidence to 2dp>)"
func (d Detection) String() string {
	return fmt.Sprintf("%s (%.2f)", d.Label, d.Confidence)
}

// FormatDetections renders detections in order
func FormatDetections(detections []Detection) []string {
	items := make([]string, 0, len(detections))
	for _, d := range detections {
		items = append(items, d.String())
	}
	return items
}

// StripConfidence removes the " (0.87)" annotation from a formatted detection
func StripConfidence(item string) Label {
	if i := strings.Index(item, " ("); i >= 0 {
		return item[:i]
	}
	return item
}

// StripAll strips annotations from every item, keeping order
func StripAll(items []string) []Label {
	names := make([]Label, 0, len(items))
	for _, item := range items {
		names = append(names, StripConfidence(item))
	}
	return names
}
