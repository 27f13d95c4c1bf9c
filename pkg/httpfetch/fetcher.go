// Package httpfetch fetches listing pages from JSON HTTP endpoints.
//
// A Fetcher requests ?page=N&page_size=M, decodes the body as a JSON array
// and reads the X-Pages and X-Total-Count headers to tell whether another
// page exists. Without either header a full page means there may be more,
// so a last page that is exactly full costs one extra fetch that returns
// nothing.
//
// Fetchers never retry; a failed page is reported to the listing, which
// re-issues it when its consumer calls Retry.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/paged-listing/pkg/logging"
	"github.com/Sternrassler/paged-listing/pkg/pagination"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Prometheus metrics for page requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_http_requests_total",
		Help: "Total page requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listing_http_request_duration_seconds",
		Help:    "Page request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"host"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_http_errors_total",
		Help: "Total page request errors by class",
	}, []string{"class"})
)

const (
	// HeaderPages carries the total number of pages.
	HeaderPages = "X-Pages"

	// HeaderTotalCount carries the total number of items.
	HeaderTotalCount = "X-Total-Count"
)

// Config holds the fetcher configuration.
type Config struct {
	// URL of the collection endpoint (e.g., "https://api.example.com/v1/orders")
	URL string

	// User-Agent header sent with every request
	UserAgent string

	// Timeout per request (0 = 30s)
	Timeout time.Duration

	// PageParam is the query parameter carrying the page number
	PageParam string

	// PageSizeParam is the query parameter carrying the page size ("" = not sent)
	PageSizeParam string

	// Query holds extra query parameters sent with every request
	Query url.Values

	// HTTPClient overrides the default client (for testing)
	HTTPClient *http.Client
}

// DefaultConfig returns a default configuration for the endpoint at rawURL.
func DefaultConfig(rawURL, userAgent string) Config {
	return Config{
		URL:           rawURL,
		UserAgent:     userAgent,
		Timeout:       30 * time.Second,
		PageParam:     "page",
		PageSizeParam: "page_size",
	}
}

// Fetcher implements pagination.PageFetcher over HTTP.
type Fetcher[T any] struct {
	httpClient *http.Client
	endpoint   *url.URL
	config     Config
	logger     zerolog.Logger
}

var _ pagination.PageFetcher[struct{}] = (*Fetcher[struct{}])(nil)

// New creates a fetcher decoding pages into []T.
func New[T any](cfg Config) (*Fetcher[T], error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", endpoint.Scheme)
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Fetcher[T]{
		httpClient: httpClient,
		endpoint:   endpoint,
		config:     cfg,
		logger:     logging.NewLogger("httpfetch").With().Str("host", endpoint.Host).Logger(),
	}, nil
}

// FetchPage requests one page and decodes it.
func (f *Fetcher[T]) FetchPage(ctx context.Context, page, pageSize int) (pagination.ListResponse[T], error) {
	var out pagination.ListResponse[T]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.pageURL(page, pageSize), nil)
	if err != nil {
		return out, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(f.endpoint.Host).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := f.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return out, &FetchError{Page: page, ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		f.logger.Warn().
			Int("page", page).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Page request error")

		return out, &FetchError{Page: page, StatusCode: resp.StatusCode, ErrorClass: class, Message: resp.Status}
	}

	var items []T
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return out, &FetchError{
			Page:       page,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode body",
			Err:        err,
		}
	}

	out.Items = items
	out.TotalPages = headerInt(resp.Header, HeaderPages)
	out.TotalEntities = headerInt(resp.Header, HeaderTotalCount)
	if out.TotalPages == 0 && out.TotalEntities == 0 {
		out.HasMore = pageSize > 0 && len(items) >= pageSize
	}

	f.logger.Debug().
		Int("page", page).
		Int("items", len(items)).
		Int("total_pages", out.TotalPages).
		Msg("Page fetched")

	return out, nil
}

func (f *Fetcher[T]) pageURL(page, pageSize int) string {
	u := *f.endpoint
	q := u.Query()
	for key, values := range f.config.Query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	q.Set(f.config.PageParam, strconv.Itoa(page))
	if f.config.PageSizeParam != "" && pageSize > 0 {
		q.Set(f.config.PageSizeParam, strconv.Itoa(pageSize))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func headerInt(h http.Header, name string) int {
	v := h.Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
