// Package web implements the web agent: batched link previews fetched
// concurrently with a shared cache.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/intexuraos/agents/internal/cache"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/metrics"
)

const (
	// MaxBatchURLs bounds one preview request.
	MaxBatchURLs = 20

	// maxFetchConcurrency bounds parallel fetches per batch.
	maxFetchConcurrency = 5

	// maxPreviewBody bounds how much of a page is read for metadata.
	maxPreviewBody = 512 << 10

	cacheTTL       = time.Hour
	cacheKeyPrefix = "linkpreview:"
)

// Preview is the per-URL result of a batch. A fetch failure sets Error and
// leaves OK false; it never fails the batch.
type Preview struct {
	URL         string `json:"url"`
	OK          bool   `json:"ok"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Service fetches link previews.
type Service struct {
	httpClient *http.Client
	cache      cache.Cache
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewService builds the web agent service. A nil cache falls back to the
// in-process memory cache.
func NewService(httpClient *http.Client, c cache.Cache, logger *logging.Logger, m *metrics.Metrics) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{httpClient: httpClient, cache: c, logger: logger, metrics: m}
}

// Previews resolves a batch of URLs concurrently. Results keep the order of
// the request. The batch always succeeds on valid input; individual fetch
// failures are reported per item.
func (s *Service) Previews(ctx context.Context, urls []string) []Preview {
	results := make([]Preview, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFetchConcurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = s.preview(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) preview(ctx context.Context, rawURL string) Preview {
	if cached, ok := s.cache.Get(ctx, cacheKeyPrefix+rawURL); ok {
		var p Preview
		if err := json.Unmarshal([]byte(cached), &p); err == nil {
			return p
		}
	}

	p := s.fetch(ctx, rawURL)

	if encoded, err := json.Marshal(p); err == nil {
		s.cache.Set(ctx, cacheKeyPrefix+rawURL, string(encoded), cacheTTL)
	}
	return p
}

func (s *Service) fetch(ctx context.Context, rawURL string) Preview {
	p := Preview{URL: rawURL}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		p.Error = "not a fetchable http(s) URL"
		return p
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		p.Error = "build request failed"
		return p
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.recordFetch("network_error")
		p.Error = "fetch failed"
		return p
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		s.recordFetch("http_error")
		p.Error = "page returned status " + resp.Status
		return p
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		s.recordFetch("not_html")
		p.Error = "page is not HTML"
		return p
	}

	title, description := extractMetadata(resp.Body)
	s.recordFetch("ok")
	p.OK = true
	p.Title = title
	p.Description = description
	return p
}

func (s *Service) recordFetch(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordProviderCall("web_fetch", outcome)
	}
}
