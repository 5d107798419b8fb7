package models

// Metric severity grades, from least to most concerning.
const (
	SeverityNormal   = "normal"
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Metric is one computed postural angle measurement with its clinical grade.
// The capture pipeline computes these; the core only stores and ships them.
type Metric struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit,omitempty"`
	Severity string  `json:"severity,omitempty"`
}

// PostureScore derives an overall 0-100 score from per-side metrics by
// deducting per severity grade (severe 15, moderate 10, mild 5).
func PostureScore(metricsBySide map[Side][]Metric) int {
	score := 100
	for _, metrics := range metricsBySide {
		for _, m := range metrics {
			switch m.Severity {
			case SeveritySevere:
				score -= 15
			case SeverityModerate:
				score -= 10
			case SeverityMild:
				score -= 5
			}
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}
