// Package detection adapts a general-purpose object detector into a food detector
package detection

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fooder/fooder/internal/domain/food"
	"github.com/fooder/fooder/internal/ports/inbound"
	"github.com/fooder/fooder/internal/ports/outbound"
	"github.com/fooder/fooder/pkg/errors"
)

var tracer = otel.Tracer("github.com/fooder/fooder/internal/application/detection")

// Service implements inbound.FoodDetector over a DetectionBackend
type Service struct {
	backend   outbound.DetectionBackend
	vocab     *food.Vocabulary
	threshold float64
	classes   map[int]food.Label
	logger    *zap.Logger
}

var _ inbound.FoodDetector = (*Service)(nil)

// NewService builds the detector. The backend's class table is resolved once here;
// classes outside the vocabulary are never reported.
func NewService(
	backend outbound.DetectionBackend,
	vocab *food.Vocabulary,
	threshold float64,
	logger *zap.Logger,
) (*Service, error) {
	if backend == nil {
		return nil, errors.NewDetectionError(fmt.Errorf("no detection backend configured"))
	}
	if threshold < 0 || threshold > 1 {
		return nil, errors.NewValidationError(fmt.Sprintf("confidence threshold %.2f outside [0,1]", threshold))
	}

	names := backend.ClassNames()
	if len(names) == 0 {
		return nil, errors.NewDetectionError(fmt.Errorf("detection backend published no class names"))
	}

	classes := make(map[int]food.Label)
	for id, name := range names {
		if vocab.Contains(name) {
			classes[id] = name
		}
	}

	log := logger.Named("food-detector")
	if len(classes) == 0 {
		log.Warn("No backend class maps to the food vocabulary; every scan will be empty",
			zap.Int("backend_classes", len(names)))
	} else {
		log.Info("Food detector ready",
			zap.Int("backend_classes", len(names)),
			zap.Int("food_classes", len(classes)),
			zap.Float64("threshold", threshold))
	}

	return &Service{
		backend:   backend,
		vocab:     vocab,
		threshold: threshold,
		classes:   classes,
		logger:    log,
	}, nil
}

// Threshold returns the minimum confidence a detection needs to be reported
func (s *Service) Threshold() float64 {
	return s.threshold
}

// Detect returns "<label> (<confidence>)" strings in backend order
func (s *Service) Detect(ctx context.Context, imagePath string) ([]string, error) {
	detections, err := s.DetectItems(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	return food.FormatDetections(detections), nil
}

// DetectItems runs the backend and keeps food classes at or above the threshold
func (s *Service) DetectItems(ctx context.Context, imagePath string) ([]food.Detection, error) {
	ctx, span := tracer.Start(ctx, "FoodDetector.DetectItems")
	defer span.End()

	if _, err := os.Stat(imagePath); err != nil {
		if os.IsNotExist(err) {
			span.SetStatus(codes.Error, "image not found")
			return nil, errors.NewImageNotFoundError(imagePath)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "image unreadable")
		return nil, errors.NewDetectionError(err)
	}

	boxes, err := s.backend.Predict(ctx, imagePath, s.threshold)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend failure")
		s.logger.Error("Detection backend failed", zap.String("path", imagePath), zap.Error(err))
		return nil, errors.NewDetectionError(err)
	}

	detections := make([]food.Detection, 0, len(boxes))
	for _, box := range boxes {
		label, ok := s.classes[box.ClassID]
		if !ok || box.Confidence < s.threshold {
			continue
		}
		detections = append(detections, food.Detection{
			Label:      label,
			Confidence: box.Confidence,
			Box:        box.XYXY,
		})
	}

	span.SetAttributes(
		attribute.Int("detection.boxes", len(boxes)),
		attribute.Int("detection.food_items", len(detections)),
	)
	s.logger.Debug("Detection complete",
		zap.Int("boxes", len(boxes)),
		zap.Int("food_items", len(detections)))

	return detections, nil
}
