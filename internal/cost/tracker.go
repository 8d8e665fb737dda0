package cost

import (
	"sort"
	"sync"

	"github.com/sells-group/pe-intel/pkg/anthropic"
)

// Line is the accumulated usage for one (model, label) pair. Label is the
// request's attribution tag, typically a collector source name.
type Line struct {
	Model string `json:"model"`
	Label string `json:"label,omitempty"`

	Calls        int   `json:"calls"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	CacheWrite   int64 `json:"cache_write_tokens,omitempty"`
	CacheRead    int64 `json:"cache_read_tokens,omitempty"`

	CostUSD float64 `json:"cost_usd"`
}

// Tracker tallies LLM usage across a run. It implements the anthropic
// client's usage observer, so attaching it at client construction is all the
// wiring a run needs. Safe for concurrent use.
type Tracker struct {
	calc *Calculator

	mu    sync.Mutex
	lines map[string]*Line
}

var _ anthropic.UsageObserver = (*Tracker)(nil)

// NewTracker creates a tracker pricing usage with the given rates.
func NewTracker(rates Rates) *Tracker {
	return &Tracker{
		calc:  NewCalculator(rates),
		lines: make(map[string]*Line),
	}
}

// ObserveUsage records one message call's token usage under its model and
// label.
func (t *Tracker) ObserveUsage(model, label string, usage anthropic.TokenUsage) {
	cost := t.calc.Claude(model,
		usage.InputTokens, usage.OutputTokens,
		usage.CacheCreationInputTokens, usage.CacheReadInputTokens)

	t.mu.Lock()
	defer t.mu.Unlock()

	key := model + "\x00" + label
	line, ok := t.lines[key]
	if !ok {
		line = &Line{Model: model, Label: label}
		t.lines[key] = line
	}
	line.Calls++
	line.InputTokens += usage.InputTokens
	line.OutputTokens += usage.OutputTokens
	line.CacheWrite += usage.CacheCreationInputTokens
	line.CacheRead += usage.CacheReadInputTokens
	line.CostUSD += cost
}

// Lines returns a snapshot of every (model, label) tally, ordered by model
// then label.
func (t *Tracker) Lines() []Line {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Line, 0, len(t.lines))
	for _, l := range t.lines {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// TotalCost returns the run's total LLM spend in USD.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total float64
	for _, l := range t.lines {
		total += l.CostUSD
	}
	return total
}

// TotalTokens returns total input and output tokens across all lines. Cache
// tokens count as input.
func (t *Tracker) TotalTokens() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, l := range t.lines {
		input += l.InputTokens + l.CacheWrite + l.CacheRead
		output += l.OutputTokens
	}
	return input, output
}
