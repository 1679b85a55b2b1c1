package dashdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultApiUrl = "https://www.dashdoc.eu/api/v4"

// Client talks to one Dashdoc account. Every request is throttled through the
// limiter channel; the inter-page delay in FetchAll is the only other
// backpressure toward the upstream API.
type Client struct {
	baseURL   string
	token     string
	http      *http.Client
	limiter   <-chan time.Time
	pageDelay time.Duration
	maxPages  int
}

func NewClient(baseURL string, token string) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultApiUrl
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("dashdoc api token is empty")
	}

	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("DASHDOC_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	pageDelayMs := intFromEnv("DASHDOC_PAGE_DELAY_MS", 500)
	maxPages := intFromEnv("DASHDOC_MAX_PAGES", 50)

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
		pageDelay: time.Duration(pageDelayMs) * time.Millisecond,
		maxPages:  maxPages,
	}, nil
}

// Page is the upstream list envelope.
type Page struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}

// getPage fetches one list page. pageURL, when non-empty, is the absolute
// "next" link from a previous page and wins over path+params.
func (c *Client) getPage(ctx context.Context, path string, params url.Values, pageURL string) (*Page, error) {
	<-c.limiter

	endpoint := pageURL
	if endpoint == "" {
		endpoint = c.baseURL + path
		if len(params) > 0 {
			endpoint = endpoint + "?" + params.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("dashdoc api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed Page
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// TestConnection probes the account with the lightweight counters endpoint.
func (c *Client) TestConnection(ctx context.Context) (bool, string) {
	<-c.limiter

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/counters/", nil)
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, "invalid api token"
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("dashdoc api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return true, "ok"
}

// GetCounters returns the raw upstream counters payload, used as the live
// fallback when the persisted mirror has no data yet.
func (c *Client) GetCounters(ctx context.Context) (map[string]int, error) {
	<-c.limiter

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/counters/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("dashdoc api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var counters map[string]int
	if err := json.Unmarshal(body, &counters); err != nil {
		return nil, err
	}
	return counters, nil
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
