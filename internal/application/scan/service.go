// Package scan implements the detect-and-find-recipes use case
package scan

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fooder/fooder/internal/domain/food"
	"github.com/fooder/fooder/internal/domain/recipe"
	"github.com/fooder/fooder/internal/ports/inbound"
	"github.com/fooder/fooder/internal/ports/outbound"
	"github.com/fooder/fooder/pkg/errors"
)

// NoItemsMessage is returned when the detector finds no food
const NoItemsMessage = "No food items detected in the image"

const defaultMaxImageBytes = 10 * 1024 * 1024

var tracer = otel.Tracer("github.com/fooder/fooder/internal/application/scan")

// Config tunes the scan service
type Config struct {
	MaxImageBytes int64
	TempDir       string
	// SlowThreshold triggers a warning for scans that took longer
	SlowThreshold time.Duration
}

// Service implements inbound.ScanService
type Service struct {
	detector inbound.FoodDetector
	finder   inbound.RecipeFinder
	metrics  outbound.ScanMetrics
	cfg      Config
	logger   *zap.Logger
}

var _ inbound.ScanService = (*Service)(nil)

// NewService creates a new scan service. metrics may be nil.
func NewService(
	detector inbound.FoodDetector,
	finder inbound.RecipeFinder,
	metrics outbound.ScanMetrics,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = defaultMaxImageBytes
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = 30 * time.Second
	}
	return &Service{
		detector: detector,
		finder:   finder,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.Named("scan-service"),
	}
}

// ScanImage decodes an uploaded image, detects food in it and looks up recipes.
// The decoded image only lives in a temp file for the duration of the call.
func (s *Service) ScanImage(ctx context.Context, req inbound.ScanRequest) (*inbound.ScanResult, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "ScanService.ScanImage")
	defer span.End()

	encoded, ext, err := splitPayload(req.Image)
	if err != nil {
		return nil, err
	}

	// Estimated decoded size, checked before decoding
	if int64(len(encoded))*3/4 > s.cfg.MaxImageBytes {
		return nil, errors.NewPayloadTooLargeError(s.cfg.MaxImageBytes)
	}

	data, err := decodeBase64(encoded)
	if err != nil {
		return nil, errors.NewInvalidImageError(err)
	}
	if len(data) == 0 {
		return nil, errors.NewInvalidImageError(fmt.Errorf("empty image"))
	}
	span.SetAttributes(attribute.Int("scan.image_bytes", len(data)))

	path, err := s.writeTemp(data, ext)
	if err != nil {
		s.logger.Error("Failed to write temp image", zap.Error(err))
		return nil, errors.NewInternalError("").WithCause(err)
	}
	defer s.removeTemp(path)

	return s.scan(ctx, path, req.Limit, start)
}

// ScanFile runs the pipeline over an image already on disk
func (s *Service) ScanFile(ctx context.Context, imagePath string, limit int) (*inbound.ScanResult, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "ScanService.ScanFile")
	defer span.End()

	return s.scan(ctx, imagePath, limit, start)
}

func (s *Service) scan(ctx context.Context, path string, limit int, start time.Time) (*inbound.ScanResult, error) {
	items, err := s.detector.Detect(ctx, path)
	if err != nil {
		s.record(outbound.ScanOutcomeError, nil, 0, time.Since(start))
		return nil, err
	}

	if len(items) == 0 {
		s.record(outbound.ScanOutcomeEmpty, nil, 0, time.Since(start))
		return &inbound.ScanResult{
			DetectedItems: []string{},
			Recipes:       []recipe.Record{},
			Message:       NoItemsMessage,
		}, nil
	}

	names := food.StripAll(items)
	recipes := s.finder.FindRecipes(ctx, names, limit)
	if recipes == nil {
		recipes = []recipe.Record{}
	}

	elapsed := time.Since(start)
	if elapsed > s.cfg.SlowThreshold {
		s.logger.Warn("Scan exceeded time budget",
			zap.Duration("elapsed", elapsed),
			zap.Duration("budget", s.cfg.SlowThreshold))
	}
	s.record(outbound.ScanOutcomeSuccess, names, len(recipes), elapsed)

	s.logger.Info("Scan complete",
		zap.Strings("detected", items),
		zap.Int("recipes", len(recipes)),
		zap.Duration("elapsed", elapsed))

	processingTime := math.Round(elapsed.Seconds()*100) / 100
	return &inbound.ScanResult{
		DetectedItems:  items,
		Recipes:        recipes,
		ProcessingTime: &processingTime,
	}, nil
}

func (s *Service) record(outcome string, detected []string, recipes int, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordScan(outcome, detected, recipes, elapsed)
	}
}

func (s *Service) writeTemp(data []byte, ext string) (string, error) {
	path := filepath.Join(s.cfg.TempDir, "fooder-"+uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Service) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove temp image", zap.String("path", path), zap.Error(err))
	}
}

// splitPayload extracts the base64 body and a file extension from a data URI or bare base64
func splitPayload(payload string) (string, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", "", errors.NewBadRequestError("No image provided")
	}
	if !strings.HasPrefix(payload, "data:") {
		return payload, ".jpg", nil
	}

	header, body, ok := strings.Cut(payload, ",")
	if !ok {
		return "", "", errors.NewInvalidImageError(fmt.Errorf("data URI has no payload"))
	}
	mediaType, isBase64 := strings.CutSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	if !isBase64 {
		return "", "", errors.NewInvalidImageError(fmt.Errorf("data URI is not base64 encoded"))
	}
	if body == "" {
		return "", "", errors.NewBadRequestError("No image provided")
	}
	return body, extensionFor(mediaType), nil
}

func extensionFor(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}

func decodeBase64(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err == nil {
		return data, nil
	}
	// Some clients strip padding
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
