// Package model defines the core types shared across the collection pipeline:
// sources, entities, collected items, and run results.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Source identifies a data source a collector pulls from.
type Source string

const (
	SourceSECADV             Source = "SEC_ADV"
	SourceSECFormD           Source = "SEC_FORM_D"
	SourceSEC13D             Source = "SEC_13D"
	SourceFirmWebsite        Source = "FIRM_WEBSITE"
	SourceBioExtractor       Source = "BIO_EXTRACTOR"
	SourcePublicComps        Source = "PUBLIC_COMPS"
	SourcePressRelease       Source = "PRESS_RELEASE"
	SourceNewsAPI            Source = "NEWS_API"
	SourceValuationEstimator Source = "VALUATION_ESTIMATOR"
)

// AllSources lists every source in the order collectors are dispatched.
func AllSources() []Source {
	return []Source{
		SourceSECADV,
		SourceSECFormD,
		SourceSEC13D,
		SourceFirmWebsite,
		SourceBioExtractor,
		SourcePublicComps,
		SourcePressRelease,
		SourceNewsAPI,
		SourceValuationEstimator,
	}
}

// ParseSource converts a string like "SEC_ADV" or "sec_adv" into a Source.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllSources() {
		if src == known {
			return known, nil
		}
	}
	return "", eris.Errorf("unknown source: %q", s)
}

// EntityType identifies the kind of entity a collector targets or an item describes.
type EntityType string

const (
	EntityFirm    EntityType = "FIRM"
	EntityFund    EntityType = "FUND"
	EntityCompany EntityType = "COMPANY"
	EntityPerson  EntityType = "PERSON"
	EntityDeal    EntityType = "DEAL"
)

// ParseEntityType converts a string into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	et := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	switch et {
	case EntityFirm, EntityFund, EntityCompany, EntityPerson, EntityDeal:
		return et, nil
	}
	return "", eris.Errorf("unknown entity type: %q", s)
}

// Mode selects between incremental and full collection.
type Mode string

const (
	// ModeIncremental skips entities collected within the freshness window.
	ModeIncremental Mode = "INCREMENTAL"
	// ModeFull collects every selected entity regardless of last collection time.
	ModeFull Mode = "FULL"
)

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModeIncremental, ModeFull:
		return m, nil
	}
	return "", eris.Errorf("unknown mode: %q (valid: INCREMENTAL, FULL)", s)
}

// Confidence ranks how trustworthy a collected value is. Regulatory filings
// are high, LLM output is llm_extracted, heuristics are low.
type Confidence string

const (
	ConfidenceLow          Confidence = "low"
	ConfidenceLLMExtracted Confidence = "llm_extracted"
	ConfidenceMedium       Confidence = "medium"
	ConfidenceHigh         Confidence = "high"
)

// Rank returns the ordering weight of a confidence level. Unknown values
// rank below low so they never win a merge.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceLLMExtracted:
		return 2
	case ConfidenceMedium:
		return 3
	case ConfidenceHigh:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether c ranks at or above other.
func (c Confidence) AtLeast(other Confidence) bool {
	return c.Rank() >= other.Rank()
}
