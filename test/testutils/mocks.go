// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fooder/fooder/internal/domain/recipe"
	"github.com/fooder/fooder/internal/ports/inbound"
	"github.com/fooder/fooder/internal/ports/outbound"
)

// MockDetectionBackend provides a mock implementation of DetectionBackend
type MockDetectionBackend struct {
	mock.Mock
	Names map[int]string
}

// NewMockDetectionBackend creates a mock backend publishing the given class table
func NewMockDetectionBackend(names map[int]string) *MockDetectionBackend {
	return &MockDetectionBackend{Names: names}
}

// Predict runs a mocked inference
func (m *MockDetectionBackend) Predict(ctx context.Context, imagePath string, conf float64) ([]outbound.Box, error) {
	args := m.Called(ctx, imagePath, conf)
	if boxes, ok := args.Get(0).([]outbound.Box); ok {
		return boxes, args.Error(1)
	}
	return nil, args.Error(1)
}

// ClassNames returns the configured class table
func (m *MockDetectionBackend) ClassNames() map[int]string {
	return m.Names
}

// Ping checks the mocked backend
func (m *MockDetectionBackend) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close is a no-op
func (m *MockDetectionBackend) Close() error {
	return nil
}

// MockRecipeProvider provides a mock implementation of RecipeProvider
type MockRecipeProvider struct {
	mock.Mock
}

// SearchPrepared mocks the prepared-food search
func (m *MockRecipeProvider) SearchPrepared(ctx context.Context, q outbound.PreparedQuery) ([]recipe.Record, error) {
	args := m.Called(ctx, q)
	if records, ok := args.Get(0).([]recipe.Record); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByIngredients mocks the ingredient search
func (m *MockRecipeProvider) FindByIngredients(ctx context.Context, q outbound.IngredientQuery) ([]recipe.Record, error) {
	args := m.Called(ctx, q)
	if records, ok := args.Get(0).([]recipe.Record); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

// GetInformation mocks the detail lookup
func (m *MockRecipeProvider) GetInformation(ctx context.Context, id int64) (*recipe.Record, error) {
	args := m.Called(ctx, id)
	if record, ok := args.Get(0).(*recipe.Record); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCacheRepository provides an in-memory mock of CacheRepository.
// Calls are recorded; values are stored unless an expectation returns an error.
type MockCacheRepository struct {
	mock.Mock
	data map[string][]byte
	mu   sync.RWMutex
}

// NewMockCacheRepository creates a new mock cache repository
func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string][]byte)}
}

// Get retrieves a value
func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	if value, ok := args.Get(0).([]byte); ok && value != nil {
		return value, nil
	}
	return nil, outbound.ErrCacheMiss
}

// Set stores a value
func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.data[key] = value
		m.mu.Unlock()
	}
	return args.Error(0)
}

// Delete removes a value
func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return args.Error(0)
}

// Exists reports whether a key is stored
func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, args.Error(1)
}

// Ping checks the mocked cache
func (m *MockCacheRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockScanService provides a mock implementation of ScanService
type MockScanService struct {
	mock.Mock
}

// ScanImage mocks an uploaded-image scan
func (m *MockScanService) ScanImage(ctx context.Context, req inbound.ScanRequest) (*inbound.ScanResult, error) {
	args := m.Called(ctx, req)
	if result, ok := args.Get(0).(*inbound.ScanResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

// ScanFile mocks a file-path scan
func (m *MockScanService) ScanFile(ctx context.Context, imagePath string, limit int) (*inbound.ScanResult, error) {
	args := m.Called(ctx, imagePath, limit)
	if result, ok := args.Get(0).(*inbound.ScanResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}
