package collector

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/scrape"
)

const (
	maxPortfolioCompanies = 100
	maxTeamMembers        = 50
	crawlCacheTTL         = 7 * 24 * time.Hour
)

// portfolioPaths and teamPaths are the conventional locations probed when no
// matching link is found on the homepage.
var (
	portfolioPaths = []string{"/portfolio", "/companies", "/investments", "/portfolio-companies"}
	teamPaths      = []string{"/people", "/professionals", "/leadership", "/team", "/about/team"}
)

// FirmWebsite collects a firm's own website: homepage profile fields, the
// portfolio page's company list, and the team page's member list. Pages are
// cached for the bio extractor to reuse.
type FirmWebsite struct {
	deps  Deps
	chain *scrape.Chain
	log   *zap.Logger
}

// NewFirmWebsite creates the website collector.
func NewFirmWebsite(deps Deps) *FirmWebsite {
	scrapers := []scrape.Scraper{scrape.NewLocalScraper(deps.UserAgent)}
	if deps.Render != nil {
		scrapers = append(scrapers, scrape.NewRenderAdapter(deps.Render, deps.RenderBreaker))
	}
	return &FirmWebsite{
		deps:  deps,
		chain: scrape.NewChain(scrape.NewPathMatcher(nil), scrapers...),
		log:   zap.L().With(zap.String("component", "collector.firm_website")),
	}
}

func (c *FirmWebsite) Source() model.Source         { return model.SourceFirmWebsite }
func (c *FirmWebsite) EntityType() model.EntityType { return model.EntityFirm }

// Collect crawls the firm site. Cached pages younger than the TTL are
// reused without refetching.
func (c *FirmWebsite) Collect(ctx context.Context, entity model.Entity) *model.Result {
	result := model.NewResult(entity, c.Source())

	site := normalizeSite(entity.Website)
	if site == "" {
		return result.Fail("No website URL provided")
	}

	crawl := newSiteCrawl(ctx, c.chain, c.deps, site)
	defer crawl.finish(result)

	home := crawl.page(ctx, site)
	if home == nil {
		return result.Fail("homepage unreachable")
	}

	c.extractProfile(home, site, result)

	portfolioURL := c.locateSection(ctx, crawl, home, site, portfolioPaths)
	if portfolioURL != "" {
		if page := crawl.page(ctx, portfolioURL); page != nil {
			n := c.extractPortfolio(page, site, entity.ID, result)
			c.log.Debug("extracted portfolio companies",
				zap.String("firm", entity.Name),
				zap.String("url", portfolioURL),
				zap.Int("companies", n),
			)
		}
	} else {
		result.Warn("no portfolio page found")
	}

	teamURL := c.locateSection(ctx, crawl, home, site, teamPaths)
	if teamURL != "" {
		if page := crawl.page(ctx, teamURL); page != nil {
			n := c.extractTeam(page, entity.ID, result)
			c.log.Debug("extracted team members",
				zap.String("firm", entity.Name),
				zap.String("url", teamURL),
				zap.Int("members", n),
			)
		}
	} else {
		result.Warn("no team page found")
	}

	return result.Complete()
}

// extractProfile emits a FirmUpdate from the homepage title and meta
// description.
func (c *FirmWebsite) extractProfile(page *model.CrawledPage, site string, result *model.Result) {
	update := model.FirmUpdate{
		ItemMeta: model.ItemMeta{URL: site, Conf: model.ConfidenceMedium},
		Website:  site,
	}

	doc, err := parseHTML(page.HTML)
	if err == nil {
		if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			update.Description = cleanText(desc)
		}
		if update.Description == "" {
			if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
				update.Description = cleanText(desc)
			}
		}
	}
	if update.Description == "" && page.Title != "" {
		update.Description = cleanText(page.Title)
	}

	result.AddItem(update)
}

// locateSection finds a section page: first by matching homepage hrefs
// against the candidate paths, then by probing the paths directly.
func (c *FirmWebsite) locateSection(ctx context.Context, crawl *siteCrawl, home *model.CrawledPage, site string, paths []string) string {
	if found := sectionLink(home, site, paths); found != "" {
		return found
	}
	for _, p := range paths {
		candidate := site + p
		if crawl.page(ctx, candidate) != nil {
			return candidate
		}
	}
	return ""
}

// extractPortfolio pulls company names from a portfolio page using two
// patterns: anchors pointing off-site, then headings inside elements whose
// class hints at a company card.
func (c *FirmWebsite) extractPortfolio(page *model.CrawledPage, site string, firmID int64, result *model.Result) int {
	doc, err := parseHTML(page.HTML)
	if err != nil {
		result.Warn("portfolio page: " + err.Error())
		return 0
	}

	seen := make(map[string]bool)
	count := 0
	add := func(name, website string) {
		name = cleanText(name)
		if name == "" || len(name) > 80 || count >= maxPortfolioCompanies {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		result.AddItem(model.PortfolioCompany{
			ItemMeta: model.ItemMeta{URL: page.URL, Conf: model.ConfidenceMedium},
			FirmID:   firmID,
			Name:     name,
			Website:  website,
			Status:   "current",
		})
		count++
	}

	// Pattern a: external links are usually the companies themselves.
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		abs := absoluteURL(page.URL, href)
		if abs == "" || sameHost(abs, site) || isSocialLink(abs) {
			return
		}
		name := cleanText(sel.Text())
		if name == "" {
			if alt, ok := sel.Find("img").Attr("alt"); ok {
				name = cleanText(alt)
			}
		}
		add(name, abs)
	})

	// Pattern b: company cards named by headings.
	doc.Find(`[class*="portfolio"], [class*="company"], [class*="investment"]`).Each(func(_ int, sel *goquery.Selection) {
		sel.Find("h2, h3, h4").Each(func(_ int, h *goquery.Selection) {
			add(h.Text(), "")
		})
	})

	return count
}

// teamCardClasses hint at elements wrapping one person each.
const teamCardClasses = `[class*="team-member"], [class*="team_member"], [class*="teammember"], [class*="member"], [class*="person"], [class*="profile-card"]`

// extractTeam pulls name and title pairs from a team page using four
// strategies in order, stopping at the first that yields members.
func (c *FirmWebsite) extractTeam(page *model.CrawledPage, firmID int64, result *model.Result) int {
	doc, err := parseHTML(page.HTML)
	if err != nil {
		result.Warn("team page: " + err.Error())
		return 0
	}

	type member struct {
		name, title, bioURL string
	}
	var members []member
	seen := make(map[string]bool)
	add := func(name, title, bioURL string) {
		name = cleanText(name)
		if !looksLikeName(name) || len(members) >= maxTeamMembers {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		members = append(members, member{name: name, title: cleanText(title), bioURL: bioURL})
	}

	// Strategy 1: card grid with class hints.
	doc.Find(teamCardClasses).Each(func(_ int, card *goquery.Selection) {
		name := card.Find(`h2, h3, h4, [class*="name"]`).First().Text()
		title := card.Find(`[class*="title"], [class*="role"], [class*="position"], p`).First().Text()
		bioURL := ""
		if href, ok := card.Find("a[href]").Attr("href"); ok {
			bioURL = absoluteURL(page.URL, href)
		}
		add(name, title, bioURL)
	})

	// Strategy 2: heading with the title in the following sibling.
	if len(members) == 0 {
		doc.Find("h2, h3, h4").Each(func(_ int, h *goquery.Selection) {
			add(h.Text(), h.Next().Text(), "")
		})
	}

	// Strategy 3: figure/figcaption pairs.
	if len(members) == 0 {
		doc.Find("figure").Each(func(_ int, fig *goquery.Selection) {
			lines := strings.Split(strings.TrimSpace(fig.Find("figcaption").Text()), "\n")
			name, title := "", ""
			if len(lines) > 0 {
				name = lines[0]
			}
			if len(lines) > 1 {
				title = lines[1]
			}
			add(name, title, "")
		})
	}

	// Strategy 4: bare name-class elements.
	if len(members) == 0 {
		doc.Find(`[class*="name"]`).Each(func(_ int, sel *goquery.Selection) {
			add(sel.Text(), "", "")
		})
	}

	for _, m := range members {
		result.AddItem(model.TeamMember{
			ItemMeta: model.ItemMeta{URL: page.URL, Conf: model.ConfidenceMedium},
			FirmID:   firmID,
			FullName: m.name,
			Title:    m.title,
			BioURL:   m.bioURL,
		})
	}
	return len(members)
}
