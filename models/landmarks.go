package models

// LandmarkPoint is a single pose landmark in normalized image coordinates.
// Point IDs are stable across automatic and finalized versions for a side.
type LandmarkPoint struct {
	ID         string   `json:"id"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          *float64 `json:"z,omitempty"`
	Visibility *float64 `json:"visibility,omitempty"`
	Editable   bool     `json:"editable"`
	Code       string   `json:"code"`
}

// LandmarkSet is the full set of landmarks computed against one source image.
type LandmarkSet struct {
	ImageWidth  int             `json:"image_width"`
	ImageHeight int             `json:"image_height"`
	Points      []LandmarkPoint `json:"points"`
}
