package detector

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hands in fractional
	// image coordinates. Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]Hand, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options passed through to the hand detector.
type Config struct {
	// MaxHands is the maximum number of hands to detect. Only the first is
	// classified.
	MaxHands int `json:"max_hands"`

	// StaticImageMode treats every frame as an unrelated image instead of
	// tracking landmarks across frames.
	StaticImageMode bool `json:"static_image_mode"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `json:"min_detection_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `json:"min_tracking_confidence"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		StaticImageMode: false,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// Validate checks the detector settings.
func (c Config) Validate() error {
	if c.MaxHands < 1 {
		return fmt.Errorf("max_hands must be at least 1, got %d", c.MaxHands)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_detection_confidence must be in [0, 1], got %v", c.MinConfidence)
	}
	if c.MinTrackingConf < 0 || c.MinTrackingConf > 1 {
		return fmt.Errorf("min_tracking_confidence must be in [0, 1], got %v", c.MinTrackingConf)
	}
	return nil
}
