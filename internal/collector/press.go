package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/fetcher"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/pkg/anthropic"
)

const (
	maxPressReleases  = 15
	max8KHits         = 10
	pressLookbackDays = 90
	articleTextLimit  = 8000
)

// dealKeywords is the closed set a headline must overlap to count as
// deal-related.
var dealKeywords = []string{
	"acquisition", "acquires", "acquired", "acquire",
	"investment", "invests", "portfolio", "completes", "completed",
	"merger", "merges", "buyout", "recapitalization", "divestiture",
	"majority stake", "minority stake", "growth capital", "exits", "exited",
}

const pressSystemPrompt = `You extract private equity transaction details from press releases. Respond with a single JSON object only, no prose.`

const pressUserPrompt = `The press release below may describe a transaction involving the private equity firm %s.

Return a JSON object with these fields:
- is_deal (boolean, true only if the release announces or closes a specific transaction)
- deal_type (one of "Buyout", "Growth", "Add-On", "Recapitalization", "Exit", "Other")
- target_company (string, the company being bought, sold, or invested in)
- target_description (string, 1-2 sentences on what the target does)
- enterprise_value_usd (integer, whole US dollars, omit if undisclosed)
- announced_date (string, YYYY-MM-DD)
- closed_date (string, YYYY-MM-DD, only if the release says the deal has closed)
- co_investors (array of strings, other investment firms participating)
- seller (string, the selling party if one is named)
- description (string, one-sentence summary of the transaction)

Omit fields you cannot determine. Never invent amounts or dates.

Headline: %s

%s`

// prDeal is the transaction shape requested from the model.
type prDeal struct {
	IsDeal             bool     `json:"is_deal"`
	DealType           string   `json:"deal_type"`
	TargetCompany      string   `json:"target_company"`
	TargetDescription  string   `json:"target_description"`
	EnterpriseValueUSD int64    `json:"enterprise_value_usd"`
	AnnouncedDate      string   `json:"announced_date"`
	ClosedDate         string   `json:"closed_date"`
	CoInvestors        []string `json:"co_investors"`
	Seller             string   `json:"seller"`
	Description        string   `json:"description"`
}

// dealTypes folds model answers onto the closed set.
var dealTypes = map[string]string{
	"buyout":           "Buyout",
	"growth":           "Growth",
	"add-on":           "Add-On",
	"add on":           "Add-On",
	"recapitalization": "Recapitalization",
	"recap":            "Recapitalization",
	"exit":             "Exit",
	"other":            "Other",
}

// prWire describes one press distribution service search page.
type prWire struct {
	name     string
	base     string
	search   func(firm string) string
	linkMark string // href substring that marks an article link
}

var prWires = []prWire{
	{
		name: "PR Newswire",
		base: "https://www.prnewswire.com",
		search: func(f string) string {
			return "https://www.prnewswire.com/search/news/?keyword=" + url.QueryEscape(f)
		},
		linkMark: "/news-releases/",
	},
	{
		name: "Business Wire",
		base: "https://www.businesswire.com",
		search: func(f string) string {
			return "https://www.businesswire.com/portal/site/home/search/?searchType=news&searchTerm=" + url.QueryEscape(f)
		},
		linkMark: "/news/home/",
	},
	{
		name: "GlobeNewswire",
		base: "https://www.globenewswire.com",
		search: func(f string) string {
			return "https://www.globenewswire.com/search/keyword/" + url.PathEscape(f)
		},
		linkMark: "/news-release/",
	},
}

// prHit is one keyword-matched press release link.
type prHit struct {
	headline string
	url      string
	wire     string
}

// PressRelease finds deal announcements for a firm: deal-flagged 8-K
// filings from EDGAR full-text search, then press releases from the
// distribution wires, parsed into structured deals by the model.
type PressRelease struct {
	deps Deps
	log  *zap.Logger
}

func NewPressRelease(deps Deps) *PressRelease {
	return &PressRelease{
		deps: deps,
		log:  zap.L().With(zap.String("component", "press_release")),
	}
}

func (c *PressRelease) Source() model.Source         { return model.SourcePressRelease }
func (c *PressRelease) EntityType() model.EntityType { return model.EntityFirm }

func (c *PressRelease) Collect(ctx context.Context, entity model.Entity) *model.Result {
	result := model.NewResult(entity, c.Source())
	meter := &fetcher.Meter{}

	if entity.Name == "" {
		return fail(result, meter, "No firm name provided")
	}

	filings := c.collect8Ks(ctx, entity.Name, result, meter)

	hits := c.searchWires(ctx, entity.Name, result, meter)
	if len(hits) > maxPressReleases {
		hits = hits[:maxPressReleases]
	}
	if len(hits) > 0 && c.deps.LLM == nil {
		result.Warn("LLM client not configured, press releases recorded without deal parsing")
	}

	deals := 0
	for i, hit := range hits {
		if ctx.Err() != nil {
			return fail(result, meter, ctx.Err().Error())
		}
		if i > 0 {
			c.pause(ctx)
		}
		if c.processHit(ctx, entity, hit, result, meter) {
			deals++
		}
	}

	c.log.Debug("collected press releases",
		zap.String("firm", entity.Name),
		zap.Int("deal_8ks", filings),
		zap.Int("press_releases", len(hits)),
		zap.Int("deals", deals))
	return finish(result, meter)
}

// collect8Ks runs the firm name through EDGAR full-text search over recent
// 8-K filings and emits each hit as a thin deal filing. Search failures
// degrade to a warning so the wires still run.
func (c *PressRelease) collect8Ks(ctx context.Context, firm string, result *model.Result, meter *fetcher.Meter) int {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -pressLookbackDays)
	q := url.QueryEscape(`"` + firm + `"`)

	res, err := searchEFTS(ctx, c.deps.Fetcher, meter, eftsURL(q, "8-K", start, end, 0, max8KHits))
	if err != nil {
		result.Warn(fmt.Sprintf("8-K search failed: %v", err))
		return 0
	}

	count := 0
	for _, hit := range res.Hits.Hits {
		src := hit.Source
		if src.AccessionNumber == "" || len(src.CIKs) == 0 {
			continue
		}
		name := firm
		if len(src.DisplayNames) > 0 {
			name = displayName(src.DisplayNames[0])
		}
		result.AddItem(model.Deal8K{
			ItemMeta: model.ItemMeta{
				URL:  archivesURL(src.CIKs[0], src.AccessionNumber, ""),
				Conf: model.ConfidenceHigh,
			},
			CompanyName:     name,
			CIK:             src.CIKs[0],
			AccessionNumber: src.AccessionNumber,
			FilingDate:      parseDate(src.FileDate),
			Description:     fmt.Sprintf("8-K filing mentioning %s", firm),
		})
		count++
	}
	return count
}

// searchWires queries each distribution service in order and returns
// keyword-matched hits deduplicated by URL.
func (c *PressRelease) searchWires(ctx context.Context, firm string, result *model.Result, meter *fetcher.Meter) []prHit {
	var hits []prHit
	seen := make(map[string]bool)
	for _, wire := range prWires {
		if ctx.Err() != nil {
			break
		}
		body, err := c.deps.Fetcher.GetBytes(ctx, wire.search(firm), fetcher.WithMeter(meter))
		if err != nil {
			result.Warn(fmt.Sprintf("%s search failed: %v", wire.name, err))
			continue
		}
		doc, err := parseHTML(string(body))
		if err != nil {
			result.Warn(fmt.Sprintf("%s results unparseable: %v", wire.name, err))
			continue
		}
		for _, h := range wireLinks(doc, wire) {
			if seen[h.url] {
				continue
			}
			seen[h.url] = true
			hits = append(hits, h)
		}
	}
	return hits
}

// wireLinks pulls article links out of a search result page. The wires
// restyle their markup without notice, so matching is by href shape rather
// than CSS class.
func wireLinks(doc *goquery.Document, wire prWire) []prHit {
	var out []prHit
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := attrOr(sel, "href")
		if href == "" || !strings.Contains(href, wire.linkMark) {
			return
		}
		headline := cleanText(sel.Text())
		if len(headline) < 20 || !matchesDealKeywords(headline) {
			return
		}
		abs := absoluteURL(wire.base, href)
		if abs == "" {
			return
		}
		out = append(out, prHit{headline: headline, url: abs, wire: wire.name})
	})
	return out
}

// matchesDealKeywords reports whether a headline overlaps the deal keyword
// set.
func matchesDealKeywords(headline string) bool {
	lower := strings.ToLower(headline)
	for _, kw := range dealKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// processHit records the placeholder for one press release, fetches its
// body, and asks the model for the structured transaction. Returns true
// when a deal came out.
func (c *PressRelease) processHit(ctx context.Context, entity model.Entity, hit prHit, result *model.Result, meter *fetcher.Meter) bool {
	result.AddItem(model.DealPressRelease{
		ItemMeta: model.ItemMeta{URL: hit.url, Conf: model.ConfidenceLow},
		FirmID:   entity.ID,
		Headline: hit.headline,
		Wire:     hit.wire,
	})

	if c.deps.LLM == nil {
		return false
	}

	body, err := c.deps.Fetcher.GetBytes(ctx, hit.url, fetcher.WithMeter(meter))
	if err != nil {
		result.Warn(fmt.Sprintf("press release fetch failed: %s", hit.url))
		return false
	}
	text := articleText(string(body))
	if text == "" {
		return false
	}

	deal, err := c.extractDeal(ctx, entity.Name, hit.headline, truncateText(text, articleTextLimit))
	if err != nil {
		c.log.Warn("deal extraction failed", zap.String("url", hit.url), zap.Error(err))
		result.Warn(fmt.Sprintf("deal extraction failed for %s", hit.url))
		return false
	}
	if !deal.IsDeal {
		return false
	}

	c.emitDeal(entity, hit, deal, result)
	return true
}

// emitDeal maps one parsed transaction onto items. Anything that is not an
// exit also surfaces the target as a portfolio company.
func (c *PressRelease) emitDeal(entity model.Entity, hit prHit, deal *prDeal, result *model.Result) {
	closed := parseDate(deal.ClosedDate)
	status := "announced"
	if !closed.IsZero() {
		status = "closed"
	}
	dealType := normalizeDealType(deal.DealType)
	target := cleanText(deal.TargetCompany)

	result.AddItem(model.Deal{
		ItemMeta:           model.ItemMeta{URL: hit.url, Conf: model.ConfidenceLLMExtracted},
		FirmID:             entity.ID,
		DealType:           dealType,
		TargetCompany:      target,
		AnnouncedDate:      parseDate(deal.AnnouncedDate),
		ClosedDate:         closed,
		EnterpriseValueUSD: deal.EnterpriseValueUSD,
		Status:             status,
		Seller:             cleanText(deal.Seller),
		CoInvestors:        deal.CoInvestors,
		Description:        cleanText(deal.Description),
	})

	if target == "" || strings.EqualFold(dealType, "Exit") {
		return
	}
	result.AddItem(model.PortfolioCompany{
		ItemMeta:    model.ItemMeta{URL: hit.url, Conf: model.ConfidenceLLMExtracted},
		FirmID:      entity.ID,
		Name:        target,
		Description: cleanText(deal.TargetDescription),
		Status:      "current",
	})
}

// extractDeal sends one parse request for a press release body.
func (c *PressRelease) extractDeal(ctx context.Context, firm, headline, text string) (*prDeal, error) {
	temp := 0.0
	resp, err := c.deps.LLM.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.deps.ModelFast,
		MaxTokens:   1024,
		Temperature: &temp,
		System:      anthropic.CachedSystem(pressSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(pressUserPrompt, firm, headline, text)},
		},
		Label: string(model.SourcePressRelease),
	})
	if err != nil {
		return nil, err
	}
	return decodeLLMObject[prDeal](messageText(resp))
}

// normalizeDealType folds the model's answer onto the closed type set.
// Unknown answers become Other rather than leaking free text into the
// table.
func normalizeDealType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, ok := dealTypes[strings.ToLower(s)]; ok {
		return t
	}
	return "Other"
}

// displayName strips the ticker and CIK annotations EDGAR search appends,
// e.g. "Acme Corp  (ACME)  (CIK 0001234567)" becomes "Acme Corp".
func displayName(s string) string {
	if i := strings.Index(s, "  ("); i > 0 {
		s = s[:i]
	}
	if i := strings.Index(s, " (CIK"); i > 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// articleText extracts readable text from an article page, dropping the
// chrome around it.
func articleText(html string) string {
	doc, err := parseHTML(html)
	if err != nil {
		return ""
	}
	doc.Find("script, style, nav, header, footer, aside").Remove()
	return cleanText(doc.Find("body").Text())
}

// pause waits the configured per-request delay, returning early on cancel.
func (c *PressRelease) pause(ctx context.Context) {
	if c.deps.RateLimitDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.deps.RateLimitDelay):
	}
}
