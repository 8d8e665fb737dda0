package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/scrape"
	"github.com/sells-group/pe-intel/pkg/anthropic"
)

const (
	maxBioPeople     = 50
	maxProfilePages  = 10
	bioTextLimit     = 12000
	minTeamNameLines = 3
)

const bioSystemPrompt = `You extract structured people profiles from private equity firm team pages. Respond with a JSON array only, no prose.`

const bioUserPrompt = `Extract every team member from the following page text of %s.

Return a JSON array of objects with these fields:
- full_name (string, required)
- title (string)
- bio (string, 1-3 sentence summary of their background)
- education (array of {institution, degree, field, year})
- experience (array of {company, title, start_year, end_year} for prior roles)
- focus_areas (array of strings, e.g. sectors or strategies they cover)

Omit fields you cannot determine. Do not invent people.

Page text:
%s`

// bioPerson is the per-person shape requested from the model.
type bioPerson struct {
	FullName   string          `json:"full_name"`
	Title      string          `json:"title"`
	Bio        string          `json:"bio"`
	Education  []bioEducation  `json:"education"`
	Experience []bioExperience `json:"experience"`
	FocusAreas []string        `json:"focus_areas"`
}

type bioEducation struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	Year        int    `json:"year"`
}

type bioExperience struct {
	Company   string `json:"company"`
	Title     string `json:"title"`
	StartYear int    `json:"start_year"`
	EndYear   int    `json:"end_year"`
}

// BioExtractor runs the deep variant of team extraction: it picks the page
// with the most name-looking lines, pulls individual profile sub-pages, and
// asks the LLM for full person profiles with education and work history.
type BioExtractor struct {
	deps  Deps
	chain *scrape.Chain
	log   *zap.Logger
}

// NewBioExtractor creates the bio extractor.
func NewBioExtractor(deps Deps) *BioExtractor {
	scrapers := []scrape.Scraper{scrape.NewLocalScraper(deps.UserAgent)}
	if deps.Render != nil {
		scrapers = append(scrapers, scrape.NewRenderAdapter(deps.Render, deps.RenderBreaker))
	}
	return &BioExtractor{
		deps:  deps,
		chain: scrape.NewChain(scrape.NewPathMatcher(nil), scrapers...),
		log:   zap.L().With(zap.String("component", "collector.bio_extractor")),
	}
}

func (c *BioExtractor) Source() model.Source         { return model.SourceBioExtractor }
func (c *BioExtractor) EntityType() model.EntityType { return model.EntityFirm }

// Collect locates the best team page, gathers profile text, and extracts
// person items through the LLM.
func (c *BioExtractor) Collect(ctx context.Context, entity model.Entity) *model.Result {
	result := model.NewResult(entity, c.Source())

	site := normalizeSite(entity.Website)
	if site == "" {
		return result.Fail("No website URL provided")
	}
	if c.deps.LLM == nil {
		return result.Fail("LLM client not configured")
	}

	crawl := newSiteCrawl(ctx, c.chain, c.deps, site)
	defer crawl.finish(result)

	teamPage := c.findTeamPage(ctx, crawl, site)
	if teamPage == nil {
		return result.Fail("no team page found")
	}

	text := teamPage.Text
	// Sites that render the roster with JavaScript show too few names in the
	// raw HTML; a headless pass recovers them.
	if countNameLines(text) < minTeamNameLines && c.deps.Render != nil {
		if rendered := c.renderText(ctx, teamPage.URL, result); rendered != "" {
			text = rendered
		}
	}

	if profiles := c.profileText(ctx, crawl, teamPage); profiles != "" {
		text += "\n\n" + profiles
	}
	text = truncateText(text, bioTextLimit)

	people, err := c.extractPeople(ctx, entity.Name, text)
	if err != nil {
		c.log.Warn("bio extraction failed",
			zap.String("firm", entity.Name),
			zap.String("url", teamPage.URL),
			zap.Error(err),
		)
		result.Warn("LLM extraction returned no result")
		return result.Complete()
	}

	count := 0
	for _, bp := range people {
		name := cleanText(bp.FullName)
		if name == "" || count >= maxBioPeople {
			continue
		}
		result.AddItem(c.personItem(entity.ID, teamPage.URL, name, bp))
		count++
	}
	c.log.Debug("extracted people",
		zap.String("firm", entity.Name),
		zap.String("url", teamPage.URL),
		zap.Int("people", count),
	)
	return result.Complete()
}

// findTeamPage scores every known candidate page by name-line count and
// returns the best. Cached pages from a prior website crawl are scored
// first; conventional paths are probed only when the cache has nothing.
func (c *BioExtractor) findTeamPage(ctx context.Context, crawl *siteCrawl, site string) *model.CrawledPage {
	var best *model.CrawledPage
	bestScore := 0

	consider := func(p *model.CrawledPage) {
		if p == nil {
			return
		}
		if score := countNameLines(p.Text); score > bestScore {
			best, bestScore = p, score
		}
	}

	cached := crawl.cachedPages()
	for i := range cached {
		consider(&cached[i])
	}
	if best != nil && bestScore >= minTeamNameLines {
		return best
	}

	for _, path := range teamPaths {
		consider(crawl.page(ctx, site+path))
	}
	if best != nil {
		return best
	}

	// Last resort: follow the team link from the homepage.
	if home := crawl.page(ctx, site); home != nil {
		if link := sectionLink(home, site, teamPaths); link != "" {
			return crawl.page(ctx, link)
		}
	}
	return nil
}

// renderText forces a headless render of the team page and returns its text.
func (c *BioExtractor) renderText(ctx context.Context, url string, result *model.Result) string {
	resp, err := c.deps.Render.Render(ctx, url)
	result.RequestsMade++
	if err != nil {
		c.log.Debug("render fallback failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	result.BytesDownloaded += int64(len(resp.Data.HTML))
	return resp.Data.Text
}

// profileText fetches up to maxProfilePages individual bio sub-pages linked
// from the team page and concatenates their text.
func (c *BioExtractor) profileText(ctx context.Context, crawl *siteCrawl, team *model.CrawledPage) string {
	doc, err := parseHTML(team.HTML)
	if err != nil {
		return ""
	}

	base := strings.TrimRight(team.URL, "/")
	seen := map[string]bool{pageKey(team.URL): true}
	var urls []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		abs := absoluteURL(team.URL, attrOr(sel, "href"))
		if abs == "" || !sameHost(abs, team.URL) || !isProfileLink(abs, base) {
			return true
		}
		key := pageKey(abs)
		if seen[key] {
			return true
		}
		seen[key] = true
		urls = append(urls, abs)
		return len(urls) < maxProfilePages
	})

	var parts []string
	for _, u := range urls {
		if p := crawl.page(ctx, u); p != nil && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// isProfileLink reports whether a same-host URL looks like an individual
// profile page under or near the team section.
func isProfileLink(abs, teamBase string) bool {
	if strings.HasPrefix(abs, teamBase+"/") {
		return true
	}
	lower := strings.ToLower(abs)
	for _, hint := range []string{"/team/", "/people/", "/professionals/", "/leadership/", "/bio/", "/bios/"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// extractPeople sends one extraction request and parses the person array.
func (c *BioExtractor) extractPeople(ctx context.Context, firmName, text string) ([]bioPerson, error) {
	temp := 0.0
	resp, err := c.deps.LLM.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.deps.ModelFast,
		MaxTokens:   4096,
		Temperature: &temp,
		System:      anthropic.CachedSystem(bioSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(bioUserPrompt, firmName, text)},
		},
		Label: string(model.SourceBioExtractor),
	})
	if err != nil {
		return nil, err
	}
	return decodeLLMArray[bioPerson](messageText(resp))
}

// personItem maps one extracted profile to a Person item. Focus areas have
// no column of their own and ride along in the bio.
func (c *BioExtractor) personItem(firmID int64, pageURL, name string, bp bioPerson) model.Person {
	bio := cleanText(bp.Bio)
	if len(bp.FocusAreas) > 0 {
		focus := "Focus areas: " + strings.Join(bp.FocusAreas, ", ") + "."
		if bio != "" {
			bio += " " + focus
		} else {
			bio = focus
		}
	}

	p := model.Person{
		ItemMeta: model.ItemMeta{URL: pageURL, Conf: model.ConfidenceLLMExtracted},
		FirmID:   firmID,
		FullName: name,
		Title:    cleanText(bp.Title),
		Bio:      bio,
	}
	for _, e := range bp.Education {
		if e.Institution == "" {
			continue
		}
		p.Education = append(p.Education, model.Education{
			Institution: cleanText(e.Institution),
			Degree:      cleanText(e.Degree),
			Field:       cleanText(e.Field),
			Year:        e.Year,
		})
	}
	for _, e := range bp.Experience {
		if e.Company == "" {
			continue
		}
		p.Experience = append(p.Experience, model.Experience{
			Company:   cleanText(e.Company),
			Title:     cleanText(e.Title),
			StartYear: e.StartYear,
			EndYear:   e.EndYear,
		})
	}
	return p
}
