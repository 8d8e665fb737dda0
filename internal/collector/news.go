package collector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/fetcher"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/pkg/anthropic"
)

const (
	maxNewsArticles  = 10
	minNewsRelevance = 0.3
)

const newsSystemPrompt = `You classify news articles about private equity firms. Respond with a JSON array only, no prose.`

const newsUserPrompt = `Classify each of the following news articles about %s.

Return a JSON array with exactly one object per article, in the same order, with these fields:
- news_type (one of "Fundraise", "Deal", "Hire", "Strategy", "Earnings", "Exit", "IPO", "Restructuring", "Other")
- sentiment (one of "Positive", "Negative", "Neutral")
- relevance_score (number between 0 and 1, how much the article is actually about the firm)
- summary (string, one sentence)

Articles:
%s`

// newsClass is the per-article shape requested from the model.
type newsClass struct {
	NewsType  string  `json:"news_type"`
	Sentiment string  `json:"sentiment"`
	Relevance float64 `json:"relevance_score"`
	Summary   string  `json:"summary"`
}

// newsTypes is the closed classification set.
var newsTypes = map[string]string{
	"fundraise":     "Fundraise",
	"deal":          "Deal",
	"hire":          "Hire",
	"strategy":      "Strategy",
	"earnings":      "Earnings",
	"exit":          "Exit",
	"ipo":           "IPO",
	"restructuring": "Restructuring",
	"other":         "Other",
}

// newsArticle is one deduplicated feed entry awaiting classification.
type newsArticle struct {
	title       string
	link        string
	description string
	publisher   string
	publishedAt string
}

// newsFeedHosts are the RSS endpoints queried per firm. Each tolerates
// about one request a second.
var newsFeedHosts = []string{
	"www.bing.com",
	"news.google.com",
	"feeds.finance.yahoo.com",
}

// NewsAPI pulls recent articles about a firm from the public news RSS
// feeds and classifies them in one batched model request.
type NewsAPI struct {
	deps Deps
	log  *zap.Logger
}

func NewNewsAPI(deps Deps) *NewsAPI {
	if hl, ok := deps.Fetcher.(fetcher.HostLimiter); ok {
		for _, host := range newsFeedHosts {
			hl.SetHostLimit(host, 1, 1)
		}
	}
	return &NewsAPI{
		deps: deps,
		log:  zap.L().With(zap.String("component", "news_api")),
	}
}

func (c *NewsAPI) Source() model.Source         { return model.SourceNewsAPI }
func (c *NewsAPI) EntityType() model.EntityType { return model.EntityFirm }

func (c *NewsAPI) Collect(ctx context.Context, entity model.Entity) *model.Result {
	result := model.NewResult(entity, c.Source())
	meter := &fetcher.Meter{}

	if entity.Name == "" {
		return fail(result, meter, "No firm name provided")
	}

	articles, unchanged := c.collectFeeds(ctx, entity, result, meter)
	if len(articles) > maxNewsArticles {
		articles = articles[:maxNewsArticles]
	}
	if len(articles) == 0 {
		c.log.Debug("no new articles",
			zap.String("firm", entity.Name),
			zap.Int("feeds_unchanged", unchanged))
		return finish(result, meter)
	}

	if c.deps.LLM == nil {
		result.Warn("LLM client not configured, articles not classified")
		return finish(result, meter)
	}

	classes, err := c.classifyArticles(ctx, entity.Name, articles)
	if err != nil {
		c.log.Warn("news classification failed", zap.String("firm", entity.Name), zap.Error(err))
		result.Warn("LLM extraction returned no result")
		return finish(result, meter)
	}

	kept := 0
	for i, article := range articles {
		if i >= len(classes) {
			break
		}
		class := classes[i]
		if class.Relevance < minNewsRelevance {
			continue
		}
		result.AddItem(model.FirmNews{
			ItemMeta:    model.ItemMeta{URL: article.link, Conf: model.ConfidenceLLMExtracted},
			FirmID:      entity.ID,
			Title:       article.title,
			Summary:     cleanText(class.Summary),
			Publisher:   article.publisher,
			PublishedAt: parseRSSDate(article.publishedAt),
			NewsType:    normalizeNewsType(class.NewsType),
			Sentiment:   sentimentScore(class.Sentiment),
			Relevance:   class.Relevance,
		})
		kept++
	}

	c.log.Debug("collected news",
		zap.String("firm", entity.Name),
		zap.Int("articles", len(articles)),
		zap.Int("kept", kept),
		zap.Int("feeds_unchanged", unchanged))
	return finish(result, meter)
}

// newsFeeds returns the feed URLs for a firm, in query order. The Yahoo
// Finance feed joins only when a ticker is known.
func newsFeeds(entity model.Entity) []string {
	quoted := url.QueryEscape(`"` + entity.Name + `"`)
	feeds := []string{
		"https://www.bing.com/news/search?q=" + quoted + "&format=rss",
		"https://news.google.com/rss/search?q=" + quoted + "&hl=en-US&gl=US&ceid=US:en",
	}
	if entity.Ticker != "" {
		feeds = append(feeds,
			"https://feeds.finance.yahoo.com/rss/2.0/headline?s="+
				url.QueryEscape(strings.ToUpper(entity.Ticker))+"&region=US&lang=en-US")
	}
	return feeds
}

// collectFeeds reads every feed and returns articles deduplicated by URL
// and by normalized title hash. Feed failures degrade to warnings.
func (c *NewsAPI) collectFeeds(ctx context.Context, entity model.Entity, result *model.Result, meter *fetcher.Meter) ([]newsArticle, int) {
	var articles []newsArticle
	seenURL := make(map[string]bool)
	seenTitle := make(map[string]bool)
	unchanged := 0

	for _, feedURL := range newsFeeds(entity) {
		if ctx.Err() != nil {
			break
		}
		items, notModified, err := fetchFeed(ctx, c.deps, meter, feedURL)
		if err != nil {
			result.Warn(fmt.Sprintf("feed fetch failed: %v", err))
			continue
		}
		if notModified {
			unchanged++
			continue
		}
		for _, it := range items {
			title := cleanText(it.Title)
			link := strings.TrimSpace(it.Link)
			if title == "" || link == "" {
				continue
			}
			hash := titleHash(title)
			if seenURL[link] || seenTitle[hash] {
				continue
			}
			seenURL[link] = true
			seenTitle[hash] = true
			articles = append(articles, newsArticle{
				title:       title,
				link:        link,
				description: cleanText(it.Description),
				publisher:   publisherOf(it, link),
				publishedAt: it.PubDate,
			})
		}
	}
	return articles, unchanged
}

// classifyArticles sends the batch and parses the aligned class array.
func (c *NewsAPI) classifyArticles(ctx context.Context, firmName string, articles []newsArticle) ([]newsClass, error) {
	var b strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a.title)
		if a.description != "" {
			fmt.Fprintf(&b, "   %s\n", truncateText(a.description, 500))
		}
	}

	temp := 0.0
	resp, err := c.deps.LLM.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.deps.ModelFast,
		MaxTokens:   2048,
		Temperature: &temp,
		System:      anthropic.CachedSystem(newsSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(newsUserPrompt, firmName, b.String())},
		},
		Label: string(model.SourceNewsAPI),
	})
	if err != nil {
		return nil, err
	}
	return decodeLLMArray[newsClass](messageText(resp))
}

// titleHash fingerprints a headline for near-duplicate detection across
// feeds. Titles are lowercased and whitespace-collapsed before hashing.
func titleHash(title string) string {
	norm := strings.ToLower(cleanText(title))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// publisherOf prefers the feed's source element and falls back to the
// article host.
func publisherOf(it rssItem, link string) string {
	if pub := cleanText(it.Source); pub != "" {
		return pub
	}
	return hostOf(link)
}

// sentimentScore maps the label onto a signed score. Neutral is zero.
func sentimentScore(s string) float64 {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return 1
	case "negative":
		return -1
	default:
		return 0
	}
}

// normalizeNewsType folds the model's answer onto the closed set.
func normalizeNewsType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, ok := newsTypes[strings.ToLower(s)]; ok {
		return t
	}
	return "Other"
}
