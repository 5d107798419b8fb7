package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostureScore_NoMetrics(t *testing.T) {
	require.Equal(t, 100, PostureScore(nil))
	require.Equal(t, 100, PostureScore(map[Side][]Metric{}))
}

func TestPostureScore_DeductsPerSeverity(t *testing.T) {
	metrics := map[Side][]Metric{
		SideFront: {
			{Name: "shoulder_tilt", Severity: SeverityMild},     // -5
			{Name: "head_tilt", Severity: SeverityNormal},       // -0
			{Name: "pelvic_tilt", Severity: SeverityModerate},   // -10
		},
		SideRight: {
			{Name: "forward_head", Severity: SeveritySevere}, // -15
		},
	}
	require.Equal(t, 70, PostureScore(metrics))
}

func TestPostureScore_FloorsAtZero(t *testing.T) {
	var metrics []Metric
	for i := 0; i < 10; i++ {
		metrics = append(metrics, Metric{Name: "m", Severity: SeveritySevere})
	}
	require.Equal(t, 0, PostureScore(map[Side][]Metric{SideFront: metrics}))
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide("front")
	require.NoError(t, err)
	require.Equal(t, SideFront, side)

	side, err = ParseSide("right")
	require.NoError(t, err)
	require.Equal(t, SideRight, side)

	_, err = ParseSide("left")
	require.Error(t, err)
}

func TestReport_LandmarksRoundTrip(t *testing.T) {
	z := 0.12
	report := Report{ClientID: "rep-1"}
	in := map[Side]LandmarkSet{
		SideFront: {
			ImageWidth:  1080,
			ImageHeight: 1920,
			Points: []LandmarkPoint{
				{ID: "p0", X: 0.41, Y: 0.22, Z: &z, Editable: true, Code: "ear_l"},
			},
		},
	}
	require.NoError(t, report.SetLandmarks(in))

	out, err := report.Landmarks()
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestReport_Landmarks_EmptyColumn(t *testing.T) {
	report := Report{ClientID: "rep-1"}
	out, err := report.Landmarks()
	require.NoError(t, err)
	require.Empty(t, out)
}
