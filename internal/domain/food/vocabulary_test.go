package food

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// VocabularyTestSuite covers the curated vocabulary and its partition
type VocabularyTestSuite struct {
	suite.Suite
	vocab *Vocabulary
}

func (suite *VocabularyTestSuite) SetupTest() {
	suite.vocab = DefaultVocabulary()
}

func (suite *VocabularyTestSuite) TestDefaultVocabulary() {
	suite.Run("PreparedIsSubsetOfVocabulary", func() {
		for _, label := range suite.vocab.Prepared() {
			assert.True(suite.T(), suite.vocab.Contains(label), label)
		}
	})

	suite.Run("KnownLabels", func() {
		assert.True(suite.T(), suite.vocab.IsPrepared("pizza"))
		assert.True(suite.T(), suite.vocab.IsPrepared("hot dog"))
		assert.False(suite.T(), suite.vocab.IsPrepared("carrot"))
		assert.True(suite.T(), suite.vocab.Contains("carrot"))
		assert.False(suite.T(), suite.vocab.Contains("person"))
		assert.False(suite.T(), suite.vocab.Contains("dining table"))
	})

	suite.Run("Size", func() {
		assert.Len(suite.T(), suite.vocab.Prepared(), 11)
		assert.Equal(suite.T(), 41, suite.vocab.Len())
	})

	suite.Run("CopiesAreIndependent", func() {
		other := DefaultVocabulary()
		assert.NotSame(suite.T(), suite.vocab, other)
		assert.Equal(suite.T(), suite.vocab.Labels(), other.Labels())
	})
}

func (suite *VocabularyTestSuite) TestPartition() {
	suite.Run("MixedItems_KeepOrderAndDuplicates", func() {
		items := []Label{"carrot", "pizza", "banana", "pizza", "sandwich", "carrot"}

		prepared, ingredients := suite.vocab.Partition(items)

		assert.Equal(suite.T(), []Label{"pizza", "pizza", "sandwich"}, prepared)
		assert.Equal(suite.T(), []Label{"carrot", "banana", "carrot"}, ingredients)
	})

	suite.Run("UnionEqualsInputAsMultiset", func() {
		items := []Label{"cake", "eggs", "cake", "bread", "unknown-thing"}

		prepared, ingredients := suite.vocab.Partition(items)

		assert.ElementsMatch(suite.T(), items, append(append([]Label{}, prepared...), ingredients...))
		for _, p := range prepared {
			assert.NotContains(suite.T(), ingredients, p)
		}
	})

	suite.Run("Empty", func() {
		prepared, ingredients := suite.vocab.Partition(nil)
		assert.Empty(suite.T(), prepared)
		assert.Empty(suite.T(), ingredients)
	})
}

func TestVocabularySuite(t *testing.T) {
	suite.Run(t, new(VocabularyTestSuite))
}

func TestNewVocabularyWithPrepared_RejectsForeignPrepared(t *testing.T) {
	_, err := NewVocabularyWithPrepared([]Label{"carrot"}, []Label{"pizza"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreparedNotInVocabulary)

	v, err := NewVocabularyWithPrepared([]Label{"carrot", "pizza"}, []Label{"pizza"})
	require.NoError(t, err)
	assert.True(t, v.IsPrepared("pizza"))
	assert.False(t, v.IsPrepared("carrot"))
}

func TestNewVocabulary_RejectsConflictingCategories(t *testing.T) {
	_, err := NewVocabulary(map[Category][]Label{
		CategoryPrepared: {"pizza"},
		CategoryStaple:   {"pizza"},
	})
	assert.Error(t, err)
}

func TestDetectionFormatting(t *testing.T) {
	detections := []Detection{{Label: "banana", Confidence: 0.876}, {Label: "hot dog", Confidence: 0.3}}

	items := FormatDetections(detections)

	assert.Equal(t, []string{"banana (0.88)", "hot dog (0.30)"}, items)
	assert.Equal(t, []Label{"banana", "hot dog"}, StripAll(items))
	assert.Equal(t, "pizza", StripConfidence("pizza"))
	assert.Empty(t, FormatDetections(nil))
}
