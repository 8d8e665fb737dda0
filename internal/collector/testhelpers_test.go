package collector

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sells-group/pe-intel/internal/fetcher"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/resilience"
	"github.com/sells-group/pe-intel/internal/store"
	"github.com/sells-group/pe-intel/pkg/anthropic"
	"github.com/sells-group/pe-intel/pkg/render"
	"github.com/sells-group/pe-intel/pkg/yfinance"
)

// fakeFetcher serves canned bodies keyed by URL substring. The first key
// contained in the requested URL wins; unmatched URLs report not-found.
type fakeFetcher struct {
	responses   map[string]string
	errs        map[string]error
	notModified map[string]bool
	etag        string
	calls       []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses:   make(map[string]string),
		errs:        make(map[string]error),
		notModified: make(map[string]bool),
	}
}

func (f *fakeFetcher) lookup(url string) ([]byte, error) {
	for key, err := range f.errs {
		if strings.Contains(url, key) {
			return nil, err
		}
	}
	for key, body := range f.responses {
		if strings.Contains(url, key) {
			return []byte(body), nil
		}
	}
	return nil, resilience.NewNotFoundError(errors.New("no canned response for " + url))
}

func (f *fakeFetcher) called(substr string) int {
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

func (f *fakeFetcher) GetBytes(_ context.Context, url string, _ ...fetcher.RequestOption) ([]byte, error) {
	f.calls = append(f.calls, url)
	return f.lookup(url)
}

func (f *fakeFetcher) Download(_ context.Context, url string, _ ...fetcher.RequestOption) (io.ReadCloser, error) {
	f.calls = append(f.calls, url)
	b, err := f.lookup(url)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeFetcher) FetchConditional(_ context.Context, url string, cond fetcher.Conditional, _ ...fetcher.RequestOption) (*fetcher.ConditionalResult, error) {
	f.calls = append(f.calls, url)
	for key := range f.notModified {
		if strings.Contains(url, key) && (cond.ETag != "" || cond.LastModified != "") {
			return &fetcher.ConditionalResult{NotModified: true, ETag: cond.ETag, LastModified: cond.LastModified}, nil
		}
	}
	b, err := f.lookup(url)
	if err != nil {
		return nil, err
	}
	return &fetcher.ConditionalResult{
		Body: io.NopCloser(bytes.NewReader(b)),
		ETag: f.etag,
	}, nil
}

// fakeLLM replays canned response texts in call order, repeating the last
// one when calls outnumber responses.
type fakeLLM struct {
	responses []string
	err       error
	requests  []anthropic.MessageRequest
}

func (f *fakeLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	text := ""
	if len(f.responses) > 0 {
		i := len(f.requests) - 1
		if i >= len(f.responses) {
			i = len(f.responses) - 1
		}
		text = f.responses[i]
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

// fakeStore keeps the crawl and feed caches in maps; run tracking is inert.
type fakeStore struct {
	crawls    map[string]*store.CrawlEntry
	feeds     map[string]*store.FeedState
	crawlSets int
	feedSets  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		crawls: make(map[string]*store.CrawlEntry),
		feeds:  make(map[string]*store.FeedState),
	}
}

func (s *fakeStore) CreateRun(context.Context, model.EntityType, []model.Source, model.Mode) (*model.Run, error) {
	return &model.Run{}, nil
}
func (s *fakeStore) CompleteRun(context.Context, *model.Run) error       { return nil }
func (s *fakeStore) GetRun(context.Context, string) (*model.Run, error)  { return nil, nil }
func (s *fakeStore) ListRuns(context.Context, store.RunFilter) ([]model.Run, error) {
	return nil, nil
}
func (s *fakeStore) InsertTasks(context.Context, []model.Task) (int64, error) { return 0, nil }
func (s *fakeStore) ListTasks(context.Context, string) ([]model.Task, error)  { return nil, nil }

func (s *fakeStore) GetCachedCrawl(_ context.Context, siteURL string) (*store.CrawlEntry, error) {
	return s.crawls[siteURL], nil
}

func (s *fakeStore) SetCachedCrawl(_ context.Context, siteURL string, pages []model.CrawledPage, ttl time.Duration) error {
	s.crawlSets++
	s.crawls[siteURL] = &store.CrawlEntry{
		SiteURL:   siteURL,
		Pages:     pages,
		CrawledAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *fakeStore) DeleteExpiredCrawls(context.Context) (int, error) { return 0, nil }

func (s *fakeStore) GetFeedState(_ context.Context, feedURL string) (*store.FeedState, error) {
	return s.feeds[feedURL], nil
}

func (s *fakeStore) SetFeedState(_ context.Context, feedURL, etag, lastModified string) error {
	s.feedSets++
	s.feeds[feedURL] = &store.FeedState{FeedURL: feedURL, ETag: etag, LastModified: lastModified}
	return nil
}

func (s *fakeStore) Migrate(context.Context) error { return nil }
func (s *fakeStore) Close() error                  { return nil }

// fakeYF returns canned Yahoo Finance responses.
type fakeYF struct {
	search     *yfinance.SearchResponse
	searchErr  error
	summary    *yfinance.QuoteSummary
	summaryErr error
}

func (f *fakeYF) Search(context.Context, string) (*yfinance.SearchResponse, error) {
	return f.search, f.searchErr
}

func (f *fakeYF) QuoteSummary(context.Context, string, []string) (*yfinance.QuoteSummary, error) {
	return f.summary, f.summaryErr
}

// fakeRender returns one canned rendering for every URL.
type fakeRender struct {
	resp  *render.RenderResponse
	err   error
	calls int
}

func (f *fakeRender) Render(context.Context, string, ...render.RenderOption) (*render.RenderResponse, error) {
	f.calls++
	return f.resp, f.err
}

// fakeFinance returns one canned financial snapshot.
type fakeFinance struct {
	fin *model.CompanyFinance
	err error
}

func (f *fakeFinance) CompanyFinance(context.Context, int64) (*model.CompanyFinance, error) {
	return f.fin, f.err
}

func firmEntity(name string) model.Entity {
	return model.Entity{ID: 1, Type: model.EntityFirm, Name: name}
}
