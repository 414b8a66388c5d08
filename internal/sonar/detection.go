package sonar

import "image"

// Detection sources.
const (
	SourceStatistical = "statistical"
	SourceNeural      = "neural"
)

// Detection is a world-space detection produced for one ping.
// X is lateral (starboard positive) and Y is forward range, both in metres.
type Detection struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	ClassID    int     `json:"class_id"`

	// Box is the bounding box in pixel coordinates of the canvas the
	// detector ran on. It always lies inside that canvas.
	Box image.Rectangle `json:"box"`
}

// ClampConfidence limits c to [0,1]. NaN maps to 0.
func ClampConfidence(c float64) float64 {
	if c != c || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
