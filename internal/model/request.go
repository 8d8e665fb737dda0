package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Request describes one collection job: which entity class to collect,
// which sources to run, and how aggressively.
type Request struct {
	EntityType EntityType `json:"entity_type"`
	Sources    []Source   `json:"sources"`
	Mode       Mode       `json:"mode"`

	// MaxAgeDays is the freshness window for incremental mode. Entities
	// collected more recently than this are skipped.
	MaxAgeDays int `json:"max_age_days"`

	// MaxConcurrent caps simultaneous (entity, source) tasks.
	MaxConcurrent int `json:"max_concurrent"`

	// RateLimitDelay is the default minimum interval between requests within
	// a single collector. Collectors with stricter upstream limits override it.
	RateLimitDelay time.Duration `json:"rate_limit_delay"`

	MaxRetries int `json:"max_retries"`

	// Scoping filters. Explicit IDs win; FirmTypes/Sectors apply only when
	// no IDs are given.
	FirmIDs    []int64  `json:"firm_ids,omitempty"`
	CompanyIDs []int64  `json:"company_ids,omitempty"`
	PersonIDs  []int64  `json:"person_ids,omitempty"`
	FirmTypes  []string `json:"firm_types,omitempty"`
	Sectors    []string `json:"sectors,omitempty"`
}

// RequestDefaults supplies fill-in values for fields a Request leaves zero.
type RequestDefaults struct {
	MaxAgeDays     int
	MaxConcurrent  int
	RateLimitDelay time.Duration
	MaxRetries     int
}

// Normalize fills zero-valued fields from defaults and canonicalizes the
// source list. Returns the normalized copy; the receiver is not modified.
func (r Request) Normalize(d RequestDefaults) Request {
	if r.EntityType == "" {
		r.EntityType = EntityFirm
	}
	if len(r.Sources) == 0 {
		r.Sources = AllSources()
	}
	if r.Mode == "" {
		r.Mode = ModeIncremental
	}
	if r.MaxAgeDays <= 0 {
		r.MaxAgeDays = d.MaxAgeDays
	}
	if r.MaxConcurrent <= 0 {
		r.MaxConcurrent = d.MaxConcurrent
	}
	if r.RateLimitDelay <= 0 {
		r.RateLimitDelay = d.RateLimitDelay
	}
	if r.MaxRetries <= 0 {
		r.MaxRetries = d.MaxRetries
	}
	return r
}

// Validate checks that the request is internally consistent. Call after
// Normalize.
func (r Request) Validate() error {
	if _, err := ParseEntityType(string(r.EntityType)); err != nil {
		return err
	}
	if _, err := ParseMode(string(r.Mode)); err != nil {
		return err
	}
	for _, s := range r.Sources {
		if _, err := ParseSource(string(s)); err != nil {
			return err
		}
	}
	if r.MaxConcurrent < 1 || r.MaxConcurrent > 64 {
		return eris.Errorf("max_concurrent %d out of range [1, 64]", r.MaxConcurrent)
	}
	if r.MaxRetries < 0 || r.MaxRetries > 10 {
		return eris.Errorf("max_retries %d out of range [0, 10]", r.MaxRetries)
	}
	return nil
}
