package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"softwarnews/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/api/v1/search_by_date", r.URL.Path)
		assert.Equal(t, "story", r.URL.Query().Get("tags"))

		filter := r.URL.Query().Get("numericFilters")
		assert.Regexp(t, `^created_at_i>=\d+$`, filter)

		q := r.URL.Query().Get("query")
		var hits []map[string]interface{}
		switch q {
		case "navy":
			hits = []map[string]interface{}{
				{"objectID": "1", "title": "Navy ship", "url": "https://example.com/ship", "author": "sailor", "points": 12, "num_comments": 3, "created_at_i": 1700000100},
				{"objectID": "2", "title": "Ask HN: navy careers", "url": "", "story_text": "<p>Anyone <i>served</i>?</p>", "created_at_i": 1700000200},
			}
		case "army":
			hits = []map[string]interface{}{
				// 与 navy 查询重复
				{"objectID": "1", "title": "Navy ship", "url": "https://example.com/ship", "created_at_i": 1700000100},
				{"objectID": "3", "title": "Army logistics", "url": "https://example.com/army", "created_at_i": 1700000050},
			}
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"hits": hits})
	}))
}

func TestSearchSource_MergesAllQueries(t *testing.T) {
	var calls int32
	server := newSearchServer(t, &calls)
	defer server.Close()

	src := NewSearchSource(server.URL, []string{"navy", "army"}, 24*time.Hour, 5*time.Second)
	defer src.Close()
	now := time.Unix(1700003600, 0)
	src.now = func() time.Time { return now }

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, items, 3)

	byID := map[string]models.Candidate{}
	for _, c := range items {
		byID[c.ID] = c
	}
	assert.Equal(t, "https://example.com/ship", byID["1"].URL)
	assert.Equal(t, 12, byID["1"].Points)
	assert.Equal(t, 3, byID["1"].Comments)
	assert.Equal(t, "https://news.ycombinator.com/item?id=2", byID["2"].URL)
	assert.Equal(t, "Anyone served?", byID["2"].Summary)
	assert.Equal(t, time.Unix(1700000050, 0).UTC(), byID["3"].PublishedAt)
}

func TestSearchSource_PartialAndTotalFailure(t *testing.T) {
	var calls int32
	server := newSearchServer(t, &calls)
	defer server.Close()

	src := NewSearchSource(server.URL, []string{"broken", "army"}, time.Hour, 5*time.Second)
	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)

	src = NewSearchSource(server.URL, []string{"broken"}, time.Hour, 5*time.Second)
	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Defense Weekly</title>
  <link>https://defense.example.com</link>
  <description>news</description>
  <item>
    <title>Helicopter program update</title>
    <link>https://defense.example.com/helicopter</link>
    <guid>heli-1</guid>
    <description>&lt;p&gt;New &lt;b&gt;rotor&lt;/b&gt; design&lt;/p&gt;</description>
    <pubDate>Tue, 14 Nov 2023 22:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Navy ship</title>
    <link>https://example.com/ship</link>
    <pubDate>Mon, 13 Nov 2023 10:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
}

func TestFeedSource_Fetch(t *testing.T) {
	server := newFeedServer(t)
	defer server.Close()

	src := NewFeedSource([]string{server.URL + "/feed.xml", server.URL + "/missing.xml"}, 5*time.Second)
	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "heli-1", items[0].ID)
	assert.Equal(t, "Helicopter program update", items[0].Title)
	assert.Equal(t, "New rotor design", items[0].Summary)
	assert.Equal(t, "Defense Weekly", items[0].Author)
	assert.Equal(t, 2023, items[0].PublishedAt.Year())
	// 没有 guid 时以链接为 id
	assert.Equal(t, "https://example.com/ship", items[1].ID)

	src = NewFeedSource([]string{server.URL + "/missing.xml"}, 5*time.Second)
	_, err = src.Fetch(context.Background())
	assert.Error(t, err)
}

type stubSource struct {
	name  string
	items []models.Candidate
	err   error
	calls int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) ([]models.Candidate, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.items, s.err
}

func TestCurationService_Candidates(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	a := &stubSource{name: "a", items: []models.Candidate{
		{ID: "1", URL: "https://example.com/old", PublishedAt: base},
		{ID: "2", URL: "https://example.com/new", PublishedAt: base.Add(2 * time.Hour)},
	}}
	b := &stubSource{name: "b", items: []models.Candidate{
		{ID: "x", URL: "https://example.com/new", PublishedAt: base.Add(2 * time.Hour)},
		{ID: "y", URL: "https://example.com/mid", PublishedAt: base.Add(time.Hour)},
		{ID: "z", URL: ""},
	}}
	failing := &stubSource{name: "down", err: errors.New("boom")}

	svc, err := NewCurationService(time.Minute, time.Second, a, b, failing)
	require.NoError(t, err)

	items, err := svc.Candidates(context.Background())
	require.NoError(t, err)
	var urls []string
	for _, c := range items {
		urls = append(urls, c.URL)
	}
	assert.Equal(t, []string{"https://example.com/new", "https://example.com/mid", "https://example.com/old"}, urls)

	// 第二次命中缓存
	_, err = svc.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&a.calls))

	svc.Invalidate()
	_, err = svc.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&a.calls))
}

func TestCurationService_AllSourcesFail(t *testing.T) {
	svc, err := NewCurationService(time.Minute, time.Second,
		&stubSource{name: "a", err: errors.New("a down")},
		&stubSource{name: "b", err: errors.New("b down")},
	)
	require.NoError(t, err)

	_, err = svc.Candidates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a down")
	assert.Contains(t, err.Error(), "b down")

	empty, err := NewCurationService(time.Minute, time.Second)
	require.NoError(t, err)
	items, err := empty.Candidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCurationService_Preview(t *testing.T) {
	paragraph := "The fleet completed its annual exercise with new unmanned systems operating alongside crewed vessels. "
	body := "<html><head><title>Fleet exercise</title></head><body><article><h1>Fleet exercise</h1>"
	for i := 0; i < 8; i++ {
		body += "<p>" + paragraph + strconv.Itoa(i) + "</p>"
	}
	body += "<script>alert('x')</script></article></body></html>"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	svc, err := NewCurationService(time.Minute, 5*time.Second)
	require.NoError(t, err)
	defer svc.Close()

	preview, err := svc.Preview(context.Background(), server.URL+"/article")
	require.NoError(t, err)
	assert.Contains(t, preview.Content, "unmanned systems")
	assert.NotContains(t, preview.Content, "<script")
	assert.NotEmpty(t, preview.Excerpt)

	_, err = svc.Preview(context.Background(), "javascript:alert(1)")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Preview(context.Background(), server.URL+"/gone")
	assert.Error(t, err)
}
