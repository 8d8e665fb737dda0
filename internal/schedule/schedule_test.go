package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/internal/model"
)

func TestDefaultSchedules_RequestsValidate(t *testing.T) {
	specs := defaultSchedules()
	require.Len(t, specs, 2)

	seen := map[string]bool{}
	for _, s := range specs {
		assert.NotEmpty(t, s.cron)
		assert.NotEmpty(t, s.note)
		assert.False(t, seen[s.id], "duplicate schedule id %s", s.id)
		seen[s.id] = true

		// Canned requests leave tuning fields zero; they must come out of
		// normalization valid.
		req := s.req.Normalize(model.RequestDefaults{
			MaxAgeDays:     7,
			MaxConcurrent:  4,
			RateLimitDelay: time.Second,
			MaxRetries:     3,
		})
		assert.NoError(t, req.Validate(), "schedule %s", s.id)
	}
}

func TestDefaultSchedules_WeeklyFull(t *testing.T) {
	s := defaultSchedules()[0]
	assert.Equal(t, "pe-collect-weekly-full", s.id)
	assert.Equal(t, "0 6 * * 1", s.cron)
	assert.Equal(t, model.ModeFull, s.req.Mode)
	// No source filter: normalization expands to every source.
	assert.Empty(t, s.req.Sources)
}

func TestDefaultSchedules_DailyNewsSweep(t *testing.T) {
	s := defaultSchedules()[1]
	assert.Equal(t, "pe-collect-daily-news", s.id)
	assert.Equal(t, "0 7 * * *", s.cron)
	assert.Equal(t, model.ModeIncremental, s.req.Mode)
	assert.Equal(t, []model.Source{model.SourcePressRelease, model.SourceNewsAPI}, s.req.Sources)
}
