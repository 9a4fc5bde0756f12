package render

import "fmt"

// Render qualities accepted by Manim
const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
	QualityFourK  = "fourk"
)

var qualities = map[string]struct {
	flag string
	dir  string
}{
	QualityLow:    {flag: "-ql", dir: "480p15"},
	QualityMedium: {flag: "-qm", dir: "720p30"},
	QualityHigh:   {flag: "-qh", dir: "1080p60"},
	QualityFourK:  {flag: "-qk", dir: "2160p60"},
}

// ValidateQuality checks that q names a known quality
func ValidateQuality(q string) error {
	if _, ok := qualities[q]; !ok {
		return fmt.Errorf("invalid quality %q (use low, medium, high or fourk)", q)
	}
	return nil
}

// QualityDir returns the directory Manim writes videos of quality q into
func QualityDir(q string) string {
	if v, ok := qualities[q]; ok {
		return v.dir
	}
	return qualities[QualityLow].dir
}

// qualityFlag returns the command line flag for quality q
func qualityFlag(q string) string {
	if v, ok := qualities[q]; ok {
		return v.flag
	}
	return qualities[QualityLow].flag
}
