package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/publicsuffix"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/logger"
)

// API groups of the upstream. Reference data lives under v3, the PowerBI
// orders report under private.
const (
	apiGroupV3      = "api/v3"
	apiGroupPrivate = "api/private"
)

const previewLimit = 200

var (
	previewPolicy     = bluemonday.StrictPolicy()
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Client is the low-level HTTP client for the GTO API. Every request is a
// GET authenticated by an apikey query parameter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type responseEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// getData performs one GET against group/operation and returns the data
// field of the response envelope. Transport and malformed-response failures
// are terminal; there are no retries.
func (c *Client) getData(ctx context.Context, group, operation string, params url.Values) (json.RawMessage, error) {
	reqURL := c.buildURL(group, operation, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "GTO-Sales-Dashboard/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", operation, err)
	}

	// An HTML body means the API itself is broken (missing endpoint, proxy
	// error page). Detect it before the status check so the caller sees what
	// actually came back instead of a bare status code.
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") && strings.HasPrefix(strings.TrimSpace(string(body)), "<") {
		return nil, &MalformedResponseError{Operation: operation, Preview: bodyPreview(body)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Operation: operation, Status: resp.StatusCode}
	}

	if len(body) == 0 {
		return nil, nil
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &MalformedResponseError{Operation: operation, Preview: bodyPreview(body)}
	}
	return envelope.Data, nil
}

func (c *Client) buildURL(group, operation string, params url.Values) string {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	for key, values := range params {
		for _, v := range values {
			if v != "" {
				q.Set(key, v)
			}
		}
	}
	return fmt.Sprintf("%s/%s/%s?%s", c.baseURL, group, operation, q.Encode())
}

// bodyPreview reduces a response body to a short single-line excerpt safe to
// log and return in errors: tags stripped, whitespace collapsed, truncated.
func bodyPreview(body []byte) string {
	text := previewPolicy.Sanitize(string(body))
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if len(text) > previewLimit {
		text = text[:previewLimit] + "..."
	}
	return text
}
