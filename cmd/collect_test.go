package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/internal/model"
)

func TestParseRequestFlags_Valid(t *testing.T) {
	req, err := parseRequestFlags("firm", []string{"news_api", "SEC_ADV"}, "full")
	require.NoError(t, err)

	assert.Equal(t, model.EntityFirm, req.EntityType)
	assert.Equal(t, model.ModeFull, req.Mode)
	assert.Equal(t, []model.Source{model.SourceNewsAPI, model.SourceSECADV}, req.Sources)
}

func TestParseRequestFlags_EmptyStaysZero(t *testing.T) {
	req, err := parseRequestFlags("", nil, "")
	require.NoError(t, err)

	// Normalization fills these later.
	assert.Empty(t, req.EntityType)
	assert.Empty(t, req.Mode)
	assert.Empty(t, req.Sources)
}

func TestParseRequestFlags_BadValues(t *testing.T) {
	_, err := parseRequestFlags("galaxy", nil, "")
	assert.ErrorContains(t, err, "unknown entity type")

	_, err = parseRequestFlags("", []string{"CRUNCHBASE"}, "")
	assert.ErrorContains(t, err, "unknown source")

	_, err = parseRequestFlags("", nil, "turbo")
	assert.ErrorContains(t, err, "unknown mode")
}

func TestBuildCollectRequest_IDsFollowEntityType(t *testing.T) {
	t.Cleanup(resetCollectFlags)

	collectEntity = "COMPANY"
	collectIDs = []int64{5, 9}

	req, err := buildCollectRequest()
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 9}, req.CompanyIDs)
	assert.Empty(t, req.FirmIDs)

	collectEntity = "PERSON"
	req, err = buildCollectRequest()
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 9}, req.PersonIDs)

	// Default entity is firms.
	collectEntity = ""
	req, err = buildCollectRequest()
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 9}, req.FirmIDs)
}

func TestBuildCollectRequest_CarriesTuningAndScope(t *testing.T) {
	t.Cleanup(resetCollectFlags)

	collectMode = "incremental"
	collectMaxAge = 3
	collectConcurrency = 8
	collectFirmTypes = []string{"Independent Sponsor"}
	collectSectors = []string{"Industrials"}

	req, err := buildCollectRequest()
	require.NoError(t, err)

	assert.Equal(t, model.ModeIncremental, req.Mode)
	assert.Equal(t, 3, req.MaxAgeDays)
	assert.Equal(t, 8, req.MaxConcurrent)
	assert.Equal(t, []string{"Independent Sponsor"}, req.FirmTypes)
	assert.Equal(t, []string{"Industrials"}, req.Sectors)
}

func resetCollectFlags() {
	collectEntity = ""
	collectSources = nil
	collectMode = ""
	collectIDs = nil
	collectFirmTypes = nil
	collectSectors = nil
	collectMaxAge = 0
	collectConcurrency = 0
}
