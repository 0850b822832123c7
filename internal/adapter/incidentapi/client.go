// Package incidentapi reads incidents from the platform's incident REST API.
package incidentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/road-incident-map/internal/domain"
	"github.com/couchcryptid/road-incident-map/internal/observability"
)

const (
	listPath = "/api/incidents/"
	// queryTimeLayout matches JavaScript's toISOString, which the API has
	// always been queried with.
	queryTimeLayout = "2006-01-02T15:04:05.000Z"
	// maxPageBytes bounds one response body; a default DRF page is far smaller.
	maxPageBytes = 16 << 20
)

// TokenSource supplies the bearer token for upstream requests. ok is false
// when there is no usable token; requests then go out unauthenticated.
type TokenSource interface {
	AccessToken() (token string, ok bool)
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	RPS      float64
	MaxPages int
	Tokens   TokenSource
}

// Client lists incidents from the incident API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	maxPages   int
	maxBytes   int64
	tokens     TokenSource
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an incident API client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse incident api url: %w", err)
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 50
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		maxPages:   opts.MaxPages,
		maxBytes:   maxPageBytes,
		tokens:     opts.Tokens,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// ListIncidents returns every incident matching q, following pagination until
// the last page or the page cap.
func (c *Client) ListIncidents(ctx context.Context, q domain.IncidentQuery) ([]domain.IncidentRecord, error) {
	next := c.firstPageURL(q)
	var records []domain.IncidentRecord

	for page := 1; next != ""; page++ {
		if page > c.maxPages {
			c.logger.Warn("incident api page cap reached", "max_pages", c.maxPages, "incident_count", len(records))
			break
		}

		p, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("list incidents page %d: %w", page, err)
		}
		records = append(records, p.Results...)

		next, err = c.resolve(next, p.Next)
		if err != nil {
			return nil, fmt.Errorf("list incidents page %d: %w", page, err)
		}
	}

	c.logger.Debug("incidents listed", "incident_count", len(records))
	return records, nil
}

func (c *Client) firstPageURL(q domain.IncidentQuery) string {
	params := url.Values{}
	if !q.CreatedFrom.IsZero() {
		params.Set("created_at__gte", q.CreatedFrom.UTC().Format(queryTimeLayout))
	}
	if !q.CreatedTo.IsZero() {
		params.Set("created_at__lte", q.CreatedTo.UTC().Format(queryTimeLayout))
	}
	if q.Status != "" && !strings.EqualFold(q.Status, "all") {
		params.Set("status", q.Status)
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + listPath
	u.RawQuery = params.Encode()
	return u.String()
}

// resolve turns a page's next link into an absolute URL. Some deployments
// return links relative to the API root.
func (c *Client) resolve(current, next string) (string, error) {
	if next == "" {
		return "", nil
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("parse next link %q: %w", next, err)
	}
	cur, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("parse page url %q: %w", current, err)
	}
	return cur.ResolveReference(ref).String(), nil
}

func (c *Client) fetchPage(ctx context.Context, fullURL string) (Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Page{}, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token, ok := c.tokens.AccessToken(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	p, err := c.do(req)
	c.metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return Page{}, err
	}
	c.metrics.UpstreamRequests.WithLabelValues("success").Inc()
	return p, nil
}

func (c *Client) do(req *http.Request) (Page, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("incident api request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return Page{}, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return Page{}, fmt.Errorf("read response: body exceeds %d bytes", c.maxBytes)
	}
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("incident api error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return DecodePage(body)
}

// Page is one page of a list response.
type Page struct {
	Count   int                     `json:"count"`
	Next    string                  `json:"next"`
	Results []domain.IncidentRecord `json:"results"`
}

// DecodePage decodes a list response, which is either a paginated object or a
// bare array of incidents.
func DecodePage(data []byte) (Page, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var results []domain.IncidentRecord
		if err := json.Unmarshal(data, &results); err != nil {
			return Page{}, fmt.Errorf("decode incident list: %w", err)
		}
		return Page{Count: len(results), Results: results}, nil
	}

	var p Page
	if err := json.Unmarshal(data, &p); err != nil {
		return Page{}, fmt.Errorf("decode incident page: %w", err)
	}
	return p, nil
}
