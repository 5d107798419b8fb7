package utils

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureMetadata holds what asset ingest needs from a captured image:
// pixel dimensions plus the EXIF capture timestamp when present.
type CaptureMetadata struct {
	Width      *int   `json:"width,omitempty"`
	Height     *int   `json:"height,omitempty"`
	CapturedAt *int64 `json:"captured_at,omitempty"`
}

// GetCaptureMetadata extracts dimensions and the capture time from an image
// file. A file without EXIF data is not an error; dimensions alone are fine.
func GetCaptureMetadata(filePath string) (*CaptureMetadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	var width, height *int
	if err == nil {
		w, h := config.Width, config.Height
		width = &w
		height = &h
	} else {
		log.Printf("metadata: Warning - Could not decode config for dimensions of %s: %v", filePath, err)
	}

	_, err = file.Seek(0, 0)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to seek file %s: %w", filePath, err)
	}

	exifData, err := exif.Decode(file)
	if err != nil {
		// not necessarily a fatal error, file might just lack EXIF data
		return &CaptureMetadata{Width: width, Height: height}, nil
	}

	meta := &CaptureMetadata{Width: width, Height: height}
	dt, err := exifData.DateTime()
	if err == nil {
		ts := dt.Unix()
		meta.CapturedAt = &ts
	}

	return meta, nil
}
