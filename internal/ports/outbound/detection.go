// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import "context"

// Box is one raw prediction from the detection backend
type Box struct {
	ClassID    int        `json:"class_id"`
	Confidence float64    `json:"confidence"`
	XYXY       [4]float64 `json:"xyxy"`
}

// DetectionBackend is a pretrained multi-class object detector.
// Implementations must be safe for concurrent Predict calls or serialise them internally.
type DetectionBackend interface {
	// Predict runs inference over the image at imagePath and returns boxes at or above conf,
	// in the backend's native order
	Predict(ctx context.Context, imagePath string, conf float64) ([]Box, error)

	// ClassNames maps native class ids to class names
	ClassNames() map[int]string

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error

	Close() error
}
