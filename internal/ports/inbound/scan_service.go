// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"

	"github.com/fooder/fooder/internal/domain/food"
	"github.com/fooder/fooder/internal/domain/recipe"
)

// FoodDetector finds food items in an image on disk
type FoodDetector interface {
	// Detect returns "<label> (<confidence>)" strings; an empty slice means nothing was found
	Detect(ctx context.Context, imagePath string) ([]string, error)
	DetectItems(ctx context.Context, imagePath string) ([]food.Detection, error)
}

// RecipeFinder turns plain food names into recipe suggestions
type RecipeFinder interface {
	FindRecipes(ctx context.Context, items []food.Label, limit int) []recipe.Record
}

// ScanService is the use case behind the detect-and-find-recipes endpoint
type ScanService interface {
	ScanImage(ctx context.Context, req ScanRequest) (*ScanResult, error)
	ScanFile(ctx context.Context, imagePath string, limit int) (*ScanResult, error)
}

// ScanRequest carries an uploaded image
type ScanRequest struct {
	// Image is a data URI ("data:image/jpeg;base64,...") or bare base64
	Image string
	// Limit caps the number of recipes; zero means the configured default
	Limit int
}

// ScanResult is the response of a scan
type ScanResult struct {
	DetectedItems  []string        `json:"detected_items"`
	Recipes        []recipe.Record `json:"recipes"`
	Message        string          `json:"message,omitempty"`
	// ProcessingTime is nil only on the no-detections result
	ProcessingTime *float64        `json:"processing_time,omitempty"`
}
