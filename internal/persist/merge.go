package persist

import (
	"strings"
	"time"

	"github.com/sells-group/pe-intel/internal/model"
)

// Merge rules: an empty collected value never writes, a NULL column always
// fills, and a non-NULL column is only overwritten when the collected value's
// confidence ranks at or above the row's.

func mergeText(stored *string, proposed string, overwrite bool) *string {
	if proposed == "" {
		return stored
	}
	if stored == nil || *stored == "" || overwrite {
		return &proposed
	}
	return stored
}

func mergeInt64(stored *int64, proposed int64, overwrite bool) *int64 {
	if proposed == 0 {
		return stored
	}
	if stored == nil || *stored == 0 || overwrite {
		return &proposed
	}
	return stored
}

func mergeInt(stored *int, proposed int, overwrite bool) *int {
	if proposed == 0 {
		return stored
	}
	if stored == nil || *stored == 0 || overwrite {
		return &proposed
	}
	return stored
}

func mergeDate(stored *time.Time, proposed time.Time, overwrite bool) *time.Time {
	if proposed.IsZero() {
		return stored
	}
	if stored == nil || stored.IsZero() || overwrite {
		return &proposed
	}
	return stored
}

func mergeTextArray(stored []string, proposed []string, overwrite bool) []string {
	if len(proposed) == 0 {
		return stored
	}
	if len(stored) == 0 || overwrite {
		return proposed
	}
	return stored
}

// mergeID fills a NULL foreign key but never rewrites an existing link.
func mergeID(stored *int64, proposed int64) *int64 {
	if proposed == 0 || (stored != nil && *stored != 0) {
		return stored
	}
	return &proposed
}

// unionSources appends src to the row's data_sources if not already present.
func unionSources(stored []string, src model.Source) []string {
	s := string(src)
	for _, have := range stored {
		if have == s {
			return stored
		}
	}
	return append(stored, s)
}

// maxConfidence returns the higher-ranked of two confidence levels.
func maxConfidence(a, b model.Confidence) model.Confidence {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

func confOrLow(c model.Confidence) model.Confidence {
	if c.Rank() == 0 {
		return model.ConfidenceLow
	}
	return c
}

// normName lowercases and trims a name for cache keys and case-insensitive
// lookups.
func normName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Nullable write helpers: zero values become SQL NULL.

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sliceOrNil(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	return ss
}

func int64OrNil(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}

func intOrNil(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func floatOrNil(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
