// Package legislation fetches title metadata and document text from
// the Federal Register of Legislation.
package legislation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Collections the register publishes, as OData collection values.
const (
	CollectionAct                   = "Act"
	CollectionLegislativeInstrument = "LegislativeInstrument"
	CollectionNotifiableInstrument  = "NotifiableInstrument"
)

// Title is one register entry with the status dates needed for stock
// analysis.
type Title struct {
	RegisterID       string `json:"register_id"`
	Name             string `json:"name"`
	Collection       string `json:"collection"`
	Year             int    `json:"year"`
	Department       string `json:"department"`
	IsPrincipal      bool   `json:"is_principal"`
	IsInForce        bool   `json:"is_in_force"`
	MakingDate       string `json:"making_date,omitempty"`
	CommencementDate string `json:"commencement_date,omitempty"`
	RepealDate       string `json:"repeal_date,omitempty"`
}

// RepealYear extracts the year from the repeal date, or 0.
func (t Title) RepealYear() int {
	if len(t.RepealDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(t.RepealDate[:4])
	if err != nil {
		return 0
	}
	return y
}

// Client talks to the register's OData API and public document pages.
type Client struct {
	apiURL     string
	siteURL    string
	httpClient *http.Client
	cache      *FetchCache
	pageSize   int
	maxRetries int
	log        *slog.Logger
}

// NewClient creates a register client. cacheTTL bounds how long fetched
// pages are reused between runs.
func NewClient(apiURL, siteURL string, timeout, cacheTTL time.Duration, log *slog.Logger) *Client {
	return &Client{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		siteURL:    strings.TrimSuffix(siteURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      NewFetchCache(cacheTTL),
		pageSize:   100,
		maxRetries: 3,
		log:        log,
	}
}

// Cache exposes the fetch cache for explicit invalidation.
func (c *Client) Cache() *FetchCache {
	return c.cache
}

// odata response shapes.
type titlesPage struct {
	Value []titleItem `json:"value"`
	Count int         `json:"@odata.count"`
}

type titleItem struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Collection              string          `json:"collection"`
	Year                    int             `json:"year"`
	MakingDate              string          `json:"makingDate"`
	IsPrincipal             bool            `json:"isPrincipal"`
	IsInForce               bool            `json:"isInForce"`
	AdministeringDepartment string          `json:"administeringDepartment"`
	StatusHistory           []statusHistory `json:"statusHistory"`
}

type statusHistory struct {
	Status string `json:"status"`
	Start  string `json:"start"`
}

// FetchTitles pages through the register for one collection, keeping
// principal titles only. Pages are cached by (collection, skip).
func (c *Client) FetchTitles(ctx context.Context, collection string) ([]Title, error) {
	var titles []Title
	skip := 0

	for {
		page, err := c.fetchTitlesPage(ctx, collection, skip)
		if err != nil {
			return nil, fmt.Errorf("fetch %s titles at skip=%d: %w", collection, skip, err)
		}
		if len(page.Value) == 0 {
			break
		}

		for _, item := range page.Value {
			if !item.IsPrincipal {
				continue
			}
			titles = append(titles, fromItem(item))
		}

		c.log.Debug("fetched titles page",
			"collection", collection, "skip", skip, "total", page.Count)

		skip += c.pageSize
		if len(page.Value) < c.pageSize {
			break
		}
	}

	c.log.Info("fetched collection", "collection", collection, "principal_titles", len(titles))
	return titles, nil
}

func fromItem(item titleItem) Title {
	t := Title{
		RegisterID:  item.ID,
		Name:        item.Name,
		Collection:  item.Collection,
		Year:        item.Year,
		Department:  item.AdministeringDepartment,
		IsPrincipal: item.IsPrincipal,
		IsInForce:   item.IsInForce,
		MakingDate:  item.MakingDate,
	}
	for _, s := range item.StatusHistory {
		switch s.Status {
		case "InForce":
			t.CommencementDate = s.Start
		case "Repealed":
			t.RepealDate = s.Start
		}
	}
	if t.CommencementDate == "" {
		t.CommencementDate = t.MakingDate
	}
	return t
}

func (c *Client) fetchTitlesPage(ctx context.Context, collection string, skip int) (*titlesPage, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("collection eq '%s'", collection))
	query.Set("$orderby", "name")
	query.Set("$top", strconv.Itoa(c.pageSize))
	query.Set("$skip", strconv.Itoa(skip))
	query.Set("$count", "true")
	u := c.apiURL + "/Titles?" + query.Encode()

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var page titlesPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode titles page: %w", err)
	}
	return &page, nil
}

// FetchDocumentText downloads the published text page for a register
// id. The body is HTML; extraction happens downstream.
func (c *Client) FetchDocumentText(ctx context.Context, registerID string) ([]byte, error) {
	u := c.siteURL + "/" + url.PathEscape(registerID) + "/latest/text"
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch text for %s: %w", registerID, err)
	}
	return body, nil
}

// get performs a GET with caching and retry. 429 responses honour
// Retry-After; 5xx responses back off exponentially with jitter.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if body, ok := c.cache.Get(u); ok {
		return body, nil
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, retryable, err := c.getOnce(ctx, u)
		if err == nil {
			c.cache.Set(u, body)
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.log.Warn("retrying fetch", "url", u, "attempt", attempt, "error", err)
	}
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, u string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, fmt.Errorf("read body: %w", err)
		}
		return b, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := retryAfter(resp)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("rate limited (waited %s)", wait)
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("not found: %s", u)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error %d for %s", resp.StatusCode, u)
	default:
		return nil, false, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, u)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 && secs <= 120 {
			return time.Duration(secs) * time.Second
		}
	}
	return 5 * time.Second
}

// backoff returns a duration for attempt n (0-indexed) with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}
