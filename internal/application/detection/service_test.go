package detection

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/fooder/fooder/internal/domain/food"
	"github.com/fooder/fooder/internal/ports/outbound"
	"github.com/fooder/fooder/pkg/errors"
	"github.com/fooder/fooder/test/testutils"
)

var classTable = map[int]string{
	0:  "person",
	46: "banana",
	47: "apple",
	51: "carrot",
	53: "pizza",
	60: "dining table",
}

type DetectorTestSuite struct {
	suite.Suite
	backend  *testutils.MockDetectionBackend
	detector *Service
	image    string
	ctx      context.Context
}

func (suite *DetectorTestSuite) SetupTest() {
	suite.backend = testutils.NewMockDetectionBackend(classTable)
	detector, err := NewService(suite.backend, food.DefaultVocabulary(), 0.3, zaptest.NewLogger(suite.T()))
	require.NoError(suite.T(), err)
	suite.detector = detector
	suite.image = testutils.WriteImage(suite.T())
	suite.ctx = context.Background()
}

func (suite *DetectorTestSuite) TestDetect_FiltersToVocabularyAndThreshold() {
	suite.backend.On("Predict", mock.Anything, suite.image, 0.3).Return([]outbound.Box{
		{ClassID: 53, Confidence: 0.912},
		{ClassID: 0, Confidence: 0.99},
		{ClassID: 46, Confidence: 0.29},
		{ClassID: 60, Confidence: 0.8},
		{ClassID: 51, Confidence: 0.3},
		{ClassID: 999, Confidence: 0.95},
	}, nil)

	items, err := suite.detector.Detect(suite.ctx, suite.image)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"pizza (0.91)", "carrot (0.30)"}, items)
	suite.backend.AssertExpectations(suite.T())
}

func (suite *DetectorTestSuite) TestDetect_KeepsBackendOrderAndDuplicates() {
	suite.backend.On("Predict", mock.Anything, suite.image, 0.3).Return([]outbound.Box{
		{ClassID: 47, Confidence: 0.5},
		{ClassID: 46, Confidence: 0.8},
		{ClassID: 47, Confidence: 0.7},
	}, nil)

	items, err := suite.detector.Detect(suite.ctx, suite.image)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"apple (0.50)", "banana (0.80)", "apple (0.70)"}, items)
}

func (suite *DetectorTestSuite) TestDetect_NothingFoundIsEmptySlice() {
	suite.backend.On("Predict", mock.Anything, suite.image, 0.3).Return([]outbound.Box{
		{ClassID: 0, Confidence: 0.99},
	}, nil)

	items, err := suite.detector.Detect(suite.ctx, suite.image)

	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), items)
	assert.Empty(suite.T(), items)
}

func (suite *DetectorTestSuite) TestDetect_MissingImageSkipsBackend() {
	missing := filepath.Join(suite.T().TempDir(), "nope.jpg")

	items, err := suite.detector.Detect(suite.ctx, missing)

	require.Error(suite.T(), err)
	assert.Nil(suite.T(), items)
	assert.True(suite.T(), errors.Is(err, errors.CodeImageNotFound))
	suite.backend.AssertNotCalled(suite.T(), "Predict", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *DetectorTestSuite) TestDetect_UnreadablePathIsDetectionError() {
	// a regular file used as a directory fails with ENOTDIR, not ENOENT
	unreadable := filepath.Join(suite.image, "inner.jpg")

	_, err := suite.detector.Detect(suite.ctx, unreadable)

	require.Error(suite.T(), err)
	assert.False(suite.T(), errors.Is(err, errors.CodeImageNotFound))
	assert.True(suite.T(), errors.Is(err, errors.CodeDetectionFailed))
	suite.backend.AssertNotCalled(suite.T(), "Predict", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *DetectorTestSuite) TestDetect_BackendFailureIsDetectionError() {
	suite.backend.On("Predict", mock.Anything, suite.image, 0.3).Return(nil, fmt.Errorf("CUDA out of memory"))

	_, err := suite.detector.Detect(suite.ctx, suite.image)

	require.Error(suite.T(), err)
	appErr, ok := errors.As(err)
	require.True(suite.T(), ok)
	assert.Equal(suite.T(), errors.CodeDetectionFailed, appErr.Code)
	assert.Contains(suite.T(), appErr.Details, "CUDA out of memory")
}

func (suite *DetectorTestSuite) TestDetectItems_StructuredForm() {
	suite.backend.On("Predict", mock.Anything, suite.image, 0.3).Return([]outbound.Box{
		{ClassID: 53, Confidence: 0.75, XYXY: [4]float64{1, 2, 30, 40}},
	}, nil)

	detections, err := suite.detector.DetectItems(suite.ctx, suite.image)

	require.NoError(suite.T(), err)
	require.Len(suite.T(), detections, 1)
	assert.Equal(suite.T(), food.Detection{Label: "pizza", Confidence: 0.75, Box: [4]float64{1, 2, 30, 40}}, detections[0])
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorTestSuite))
}

func TestNewService(t *testing.T) {
	log := zaptest.NewLogger(t)
	vocab := food.DefaultVocabulary()

	t.Run("no class names", func(t *testing.T) {
		_, err := NewService(testutils.NewMockDetectionBackend(nil), vocab, 0.3, log)
		assert.True(t, errors.Is(err, errors.CodeDetectionFailed))
	})

	t.Run("threshold out of range", func(t *testing.T) {
		_, err := NewService(testutils.NewMockDetectionBackend(classTable), vocab, 1.2, log)
		assert.True(t, errors.Is(err, errors.CodeValidationFailed))
	})

	t.Run("nil backend", func(t *testing.T) {
		_, err := NewService(nil, vocab, 0.3, log)
		assert.Error(t, err)
	})

	t.Run("custom threshold", func(t *testing.T) {
		backend := testutils.NewMockDetectionBackend(classTable)
		detector, err := NewService(backend, vocab, 0.6, log)
		require.NoError(t, err)
		assert.InDelta(t, 0.6, detector.Threshold(), 1e-9)

		image := testutils.WriteImage(t)
		backend.On("Predict", mock.Anything, image, 0.6).Return([]outbound.Box{
			{ClassID: 46, Confidence: 0.59},
			{ClassID: 47, Confidence: 0.61},
		}, nil)

		items, err := detector.Detect(context.Background(), image)
		require.NoError(t, err)
		assert.Equal(t, []string{"apple (0.61)"}, items)
	})
}
