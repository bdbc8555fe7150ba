package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"softwarnews/internal/models"
	"softwarnews/internal/utils"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"resty.dev/v3"
)

const (
	searchPath        = "/api/v1/search_by_date"
	hnItemURL         = "https://news.ycombinator.com/item?id="
	summaryLimit      = 280
	candidateCacheKey = "candidates"
	userAgent         = "Mozilla/5.0 (compatible; softwarnews-curation/1.0)"
)

// CandidateSource supplies third-party articles for curation.
type CandidateSource interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Candidate, error)
}

// metricMiddleware records outbound request latency per source.
func metricMiddleware(source string) resty.ResponseMiddleware {
	return func(_ *resty.Client, response *resty.Response) error {
		curationRequestDuration.WithLabelValues(
			source,
			strconv.Itoa(response.StatusCode()),
		).Observe(response.Duration().Seconds())
		return nil
	}
}

// SearchSource queries an Algolia-style story search API for recent stories
// matching each configured query.
type SearchSource struct {
	client   *resty.Client
	queries  []string
	lookback time.Duration
	now      func() time.Time
}

func NewSearchSource(baseURL string, queries []string, lookback, timeout time.Duration) *SearchSource {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		AddResponseMiddleware(metricMiddleware("search"))

	return &SearchSource{
		client:   client,
		queries:  queries,
		lookback: lookback,
		now:      time.Now,
	}
}

func (s *SearchSource) Name() string { return "search" }

func (s *SearchSource) Close() error {
	return s.client.Close()
}

type searchHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	StoryText   string `json:"story_text"`
	CreatedAtI  int64  `json:"created_at_i"`
}

type searchResponse struct {
	Hits []searchHit `json:"hits"`
}

// Fetch runs every query and merges the hits, deduplicated by object id.
// A failing query is logged and skipped; if all fail the joined error is returned.
func (s *SearchSource) Fetch(ctx context.Context) ([]models.Candidate, error) {
	since := s.now().Add(-s.lookback).Unix()

	seen := make(map[string]struct{})
	var (
		out  []models.Candidate
		errs []error
	)
	for _, q := range s.queries {
		hits, err := s.search(ctx, q, since)
		if err != nil {
			slog.WarnContext(ctx, "curation search failed", "query", q, "error", err)
			errs = append(errs, err)
			continue
		}
		for _, h := range hits {
			if _, dup := seen[h.ObjectID]; dup {
				continue
			}
			seen[h.ObjectID] = struct{}{}
			out = append(out, h.candidate())
		}
	}
	if len(errs) > 0 && len(errs) == len(s.queries) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (s *SearchSource) search(ctx context.Context, query string, since int64) ([]searchHit, error) {
	res, err := s.client.R().
		WithContext(ctx).
		SetQueryParam("tags", "story").
		SetQueryParam("query", query).
		SetQueryParam("numericFilters", fmt.Sprintf("created_at_i>=%d", since)).
		SetResult(&searchResponse{}).
		Get(searchPath)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search %q: unexpected status %d", query, res.StatusCode())
	}
	return res.Result().(*searchResponse).Hits, nil
}

func (h searchHit) candidate() models.Candidate {
	link := h.URL
	if link == "" {
		// Ask HN 等没有外链的帖子指向讨论页
		link = hnItemURL + h.ObjectID
	}
	return models.Candidate{
		ID:          h.ObjectID,
		Source:      "search",
		Title:       h.Title,
		URL:         link,
		Author:      h.Author,
		Points:      h.Points,
		Comments:    h.NumComments,
		Summary:     utils.TextFromHTML(h.StoryText, summaryLimit),
		PublishedAt: time.Unix(h.CreatedAtI, 0).UTC(),
	}
}

// FeedSource reads candidates from RSS or Atom feeds.
type FeedSource struct {
	parser *gofeed.Parser
	urls   []string
}

func NewFeedSource(urls []string, timeout time.Duration) *FeedSource {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = userAgent
	return &FeedSource{parser: parser, urls: urls}
}

func (f *FeedSource) Name() string { return "feed" }

// Fetch parses each feed. A failing feed is logged and skipped; if all fail
// the joined error is returned.
func (f *FeedSource) Fetch(ctx context.Context) ([]models.Candidate, error) {
	var (
		out  []models.Candidate
		errs []error
	)
	for _, u := range f.urls {
		start := time.Now()
		feed, err := f.parser.ParseURLWithContext(u, ctx)
		status := "200"
		if err != nil {
			status = "error"
			var httpErr gofeed.HTTPError
			if errors.As(err, &httpErr) {
				status = strconv.Itoa(httpErr.StatusCode)
			}
		}
		curationRequestDuration.WithLabelValues("feed", status).Observe(time.Since(start).Seconds())
		if err != nil {
			slog.WarnContext(ctx, "curation feed failed", "url", u, "error", err)
			errs = append(errs, fmt.Errorf("feed %s: %w", u, err))
			continue
		}
		for _, item := range feed.Items {
			out = append(out, feedCandidate(feed, item))
		}
	}
	if len(errs) > 0 && len(errs) == len(f.urls) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func feedCandidate(feed *gofeed.Feed, item *gofeed.Item) models.Candidate {
	c := models.Candidate{
		ID:     item.GUID,
		Source: "feed",
		Title:  strings.TrimSpace(item.Title),
		URL:    item.Link,
	}
	if c.ID == "" {
		c.ID = item.Link
	}
	if item.Author != nil {
		c.Author = item.Author.Name
	} else if feed.Title != "" {
		c.Author = feed.Title
	}
	switch {
	case item.PublishedParsed != nil:
		c.PublishedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		c.PublishedAt = item.UpdatedParsed.UTC()
	}
	desc := item.Description
	if desc == "" {
		desc = item.Content
	}
	c.Summary = utils.TextFromHTML(desc, summaryLimit)
	return c
}

// Preview is the readable content of a candidate article.
type Preview struct {
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
	Content string `json:"content"`
}

// CurationService merges candidate sources for admins. Nothing is stored;
// results are cached in memory for a short time.
type CurationService struct {
	sources []CandidateSource
	cache   *utils.TTLCache[string, []models.Candidate]
	client  *resty.Client
}

func NewCurationService(cacheTTL, timeout time.Duration, sources ...CandidateSource) (*CurationService, error) {
	cache, err := utils.NewTTLCache[string, []models.Candidate](16, cacheTTL)
	if err != nil {
		return nil, err
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		AddResponseMiddleware(metricMiddleware("preview"))

	return &CurationService{
		sources: sources,
		cache:   cache,
		client:  client,
	}, nil
}

// Candidates returns the merged candidates of every source, newest first,
// deduplicated by URL.
func (s *CurationService) Candidates(ctx context.Context) ([]models.Candidate, error) {
	if cached, ok := s.cache.Get(candidateCacheKey); ok {
		return cached, nil
	}
	if len(s.sources) == 0 {
		return []models.Candidate{}, nil
	}

	type result struct {
		name  string
		items []models.Candidate
		err   error
	}
	results := make([]result, len(s.sources))
	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src CandidateSource) {
			defer wg.Done()
			items, err := src.Fetch(ctx)
			results[i] = result{name: src.Name(), items: items, err: err}
		}(i, src)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	merged := []models.Candidate{}
	var errs []error
	for _, r := range results {
		if r.err != nil {
			slog.WarnContext(ctx, "curation source failed", "source", r.name, "error", r.err)
			errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
			continue
		}
		for _, c := range r.items {
			if c.URL == "" {
				continue
			}
			if _, dup := seen[c.URL]; dup {
				continue
			}
			seen[c.URL] = struct{}{}
			merged = append(merged, c)
		}
	}
	if len(errs) == len(s.sources) {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})

	s.cache.Set(candidateCacheKey, merged)
	return merged, nil
}

// Invalidate drops cached candidates.
func (s *CurationService) Invalidate() {
	s.cache.Delete(candidateCacheKey)
}

// Preview 抓取页面，用 go-readability 提取正文并用 bluemonday 清洗
func (s *CurationService) Preview(ctx context.Context, rawURL string) (*Preview, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") || pageURL.Host == "" {
		return nil, models.NewValidationError("url must be an http or https address")
	}

	res, err := s.client.R().WithContext(ctx).Get(pageURL.String())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", pageURL, res.StatusCode())
	}

	article, err := readability.FromReader(strings.NewReader(res.String()), pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	content := utils.SanitizeHTML(article.Content)
	return &Preview{
		URL:     pageURL.String(),
		Excerpt: utils.TextFromHTML(content, summaryLimit),
		Content: content,
	}, nil
}

// Close releases idle HTTP connections.
func (s *CurationService) Close() error {
	return s.client.Close()
}
