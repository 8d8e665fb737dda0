package persist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/pe-intel/internal/model"
)

func strPtr(s string) *string { return &s }

func TestMergeText(t *testing.T) {
	stored := strPtr("existing")

	t.Run("empty proposal keeps stored", func(t *testing.T) {
		assert.Equal(t, stored, mergeText(stored, "", true))
	})
	t.Run("nil stored fills", func(t *testing.T) {
		got := mergeText(nil, "new", false)
		assert.Equal(t, "new", *got)
	})
	t.Run("empty stored fills", func(t *testing.T) {
		got := mergeText(strPtr(""), "new", false)
		assert.Equal(t, "new", *got)
	})
	t.Run("lower confidence keeps stored", func(t *testing.T) {
		got := mergeText(stored, "new", false)
		assert.Equal(t, "existing", *got)
	})
	t.Run("equal or higher confidence overwrites", func(t *testing.T) {
		got := mergeText(stored, "new", true)
		assert.Equal(t, "new", *got)
	})
}

func TestMergeInt64(t *testing.T) {
	stored := int64(1000)

	assert.Equal(t, &stored, mergeInt64(&stored, 0, true), "zero proposal keeps stored")
	assert.Equal(t, int64(5), *mergeInt64(nil, 5, false), "nil stored fills")
	assert.Equal(t, int64(1000), *mergeInt64(&stored, 5, false), "no overwrite without rank")
	assert.Equal(t, int64(5), *mergeInt64(&stored, 5, true), "overwrite with rank")
}

func TestMergeDate(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	proposed := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, mergeDate(nil, time.Time{}, true), "zero proposal writes nothing")
	assert.Equal(t, proposed, *mergeDate(nil, proposed, false))
	assert.Equal(t, old, *mergeDate(&old, proposed, false))
	assert.Equal(t, proposed, *mergeDate(&old, proposed, true))
}

func TestMergeID_FillsOnly(t *testing.T) {
	linked := int64(7)

	assert.Equal(t, int64(3), *mergeID(nil, 3))
	assert.Equal(t, int64(7), *mergeID(&linked, 3), "existing link is never rewritten")
	assert.Nil(t, mergeID(nil, 0))
}

func TestUnionSources(t *testing.T) {
	got := unionSources([]string{"SEC_ADV"}, model.SourceNewsAPI)
	assert.Equal(t, []string{"SEC_ADV", "NEWS_API"}, got)

	got = unionSources(got, model.SourceSECADV)
	assert.Equal(t, []string{"SEC_ADV", "NEWS_API"}, got, "already-present source is not repeated")
}

func TestMaxConfidence(t *testing.T) {
	assert.Equal(t, model.ConfidenceHigh, maxConfidence(model.ConfidenceHigh, model.ConfidenceLow))
	assert.Equal(t, model.ConfidenceHigh, maxConfidence(model.ConfidenceLow, model.ConfidenceHigh))
	assert.Equal(t, model.ConfidenceMedium, maxConfidence(model.ConfidenceMedium, model.ConfidenceLLMExtracted))
	assert.Equal(t, model.ConfidenceLow, maxConfidence(model.ConfidenceLow, ""))
}

func TestConfOrLow(t *testing.T) {
	assert.Equal(t, model.ConfidenceLow, confOrLow(""))
	assert.Equal(t, model.ConfidenceHigh, confOrLow(model.ConfidenceHigh))
}

func TestNormName(t *testing.T) {
	assert.Equal(t, "apple inc", normName("  APPLE INC "))
	assert.Equal(t, "blackstone", normName("Blackstone"))
}

func TestNullHelpers(t *testing.T) {
	assert.Nil(t, textOrNil(""))
	assert.Equal(t, "x", *textOrNil("x"))
	assert.Nil(t, int64OrNil(0))
	assert.Equal(t, int64(9), *int64OrNil(9))
	assert.Nil(t, intOrNil(0))
	assert.Nil(t, floatOrNil(0))
	assert.Nil(t, timeOrNil(time.Time{}))
	assert.Nil(t, sliceOrNil(nil))
	assert.Nil(t, sliceOrNil([]string{}))
	assert.Equal(t, []string{"a"}, sliceOrNil([]string{"a"}))
}
