package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/pkg/anthropic"
)

func TestTracker_ObserveUsage_AccumulatesPerModelAndLabel(t *testing.T) {
	t.Parallel()
	tr := NewTracker(testRates())

	tr.ObserveUsage("haiku", "BIO_EXTRACTOR", anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 200})
	tr.ObserveUsage("haiku", "BIO_EXTRACTOR", anthropic.TokenUsage{InputTokens: 500, OutputTokens: 100})
	tr.ObserveUsage("haiku", "NEWS_API", anthropic.TokenUsage{InputTokens: 2000, OutputTokens: 50})
	tr.ObserveUsage("sonnet", "VALUATION_ESTIMATOR", anthropic.TokenUsage{InputTokens: 3000, OutputTokens: 400})

	lines := tr.Lines()
	require.Len(t, lines, 3)

	// Ordered by model then label.
	assert.Equal(t, "haiku", lines[0].Model)
	assert.Equal(t, "BIO_EXTRACTOR", lines[0].Label)
	assert.Equal(t, 2, lines[0].Calls)
	assert.Equal(t, int64(1500), lines[0].InputTokens)
	assert.Equal(t, int64(300), lines[0].OutputTokens)

	assert.Equal(t, "haiku", lines[1].Model)
	assert.Equal(t, "NEWS_API", lines[1].Label)
	assert.Equal(t, 1, lines[1].Calls)

	assert.Equal(t, "sonnet", lines[2].Model)
	assert.Equal(t, "VALUATION_ESTIMATOR", lines[2].Label)
}

func TestTracker_PricesUsage(t *testing.T) {
	t.Parallel()
	tr := NewTracker(testRates())

	tr.ObserveUsage("haiku", "", anthropic.TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000})
	assert.InDelta(t, 1.20, tr.TotalCost(), 0.001)

	tr.ObserveUsage("sonnet", "", anthropic.TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000})
	assert.InDelta(t, 1.20+4.50, tr.TotalCost(), 0.001)
}

func TestTracker_UnknownModelCostsZero(t *testing.T) {
	t.Parallel()
	tr := NewTracker(testRates())

	tr.ObserveUsage("experimental-model", "BIO_EXTRACTOR", anthropic.TokenUsage{InputTokens: 1_000_000})

	lines := tr.Lines()
	require.Len(t, lines, 1)
	assert.Zero(t, lines[0].CostUSD)
	assert.Equal(t, int64(1_000_000), lines[0].InputTokens)
}

func TestTracker_TotalTokens_CountsCacheAsInput(t *testing.T) {
	t.Parallel()
	tr := NewTracker(testRates())

	tr.ObserveUsage("haiku", "", anthropic.TokenUsage{
		InputTokens:              1000,
		OutputTokens:             200,
		CacheCreationInputTokens: 300,
		CacheReadInputTokens:     4000,
	})

	in, out := tr.TotalTokens()
	assert.Equal(t, int64(5300), in)
	assert.Equal(t, int64(200), out)
}

func TestTracker_ConcurrentObserves(t *testing.T) {
	t.Parallel()
	tr := NewTracker(testRates())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.ObserveUsage("haiku", "NEWS_API", anthropic.TokenUsage{InputTokens: 10, OutputTokens: 1})
			}
		}()
	}
	wg.Wait()

	lines := tr.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 800, lines[0].Calls)
	assert.Equal(t, int64(8000), lines[0].InputTokens)
}
