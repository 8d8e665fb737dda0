package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemTypePhases(t *testing.T) {
	phase1 := []ItemType{
		ItemFirmUpdate, ItemFormADVFiling, ItemPortfolioCompany,
		ItemTeamMember, ItemPerson, ItemRelatedPerson, ItemCompanyUpdate,
	}
	for _, it := range phase1 {
		assert.Equal(t, 1, it.Phase(), "item type %s", it)
	}

	phase2 := []ItemType{
		Item13FHolding, Item13DStake, ItemFormDFiling, ItemDeal8KFiling,
		ItemDealPressRelease, ItemDeal, ItemFirmNews,
		ItemCompanyFinancial, ItemCompanyValuation,
	}
	for _, it := range phase2 {
		assert.Equal(t, 2, it.Phase(), "item type %s", it)
	}
}

func TestItemVariantsImplementItem(t *testing.T) {
	items := []Item{
		FirmUpdate{},
		FormADVFiling{},
		PortfolioCompany{},
		TeamMember{},
		Person{},
		RelatedPerson{},
		CompanyUpdate{},
		Holding13F{},
		Stake13D{},
		FormDFiling{},
		Deal8K{},
		DealPressRelease{},
		Deal{},
		FirmNews{},
		CompanyFinancial{},
		CompanyValuation{},
	}

	seen := make(map[ItemType]bool)
	for _, it := range items {
		assert.NotEmpty(t, it.ItemType())
		assert.NotEmpty(t, it.EntityType())
		assert.False(t, seen[it.ItemType()], "duplicate item type %s", it.ItemType())
		seen[it.ItemType()] = true
	}
	assert.Len(t, seen, 16)
}

func TestItemMetaProvenance(t *testing.T) {
	h := Holding13F{
		ItemMeta: ItemMeta{URL: "https://www.sec.gov/Archives/abc.xml", Conf: ConfidenceHigh},
		CUSIP:    "037833100",
	}
	assert.Equal(t, "https://www.sec.gov/Archives/abc.xml", h.SourceURL())
	assert.Equal(t, ConfidenceHigh, h.Confidence())
	assert.Equal(t, EntityFund, h.EntityType())
}
