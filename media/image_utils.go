package media

import (
	"path/filepath"
	"strings"
)

// capture formats the frontend's camera pipeline produces; everything else
// (PDFs, HEIC originals the frontend failed to convert) is rejected before
// finalization
var captureImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
}

// IsRasterImage reports whether the filename looks like a decodable capture
// image.
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return captureImageExtensions[ext]
}
