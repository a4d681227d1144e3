package sellerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
	"github.com/preston-bernstein/seller-notification-service/internal/providers"
)

// Config controls how the client reaches the seller API.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	PerPage    int
}

// Client fetches the seller's notification state over HTTP.
type Client struct {
	baseURL    string
	httpClient httpDoer
	perPage    int
	now        func() time.Time
}

// NewClient constructs a seller API client with the provided configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		httpClient: resolveHTTPClient(cfg.HTTPClient, cfg.Timeout),
		perPage:    resolvePerPage(cfg.PerPage),
		now:        time.Now,
	}
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string {
	return providerName
}

// FetchNotifications retrieves the first page of notifications for the credential.
// Non-2xx responses are returned as errors; a 2xx body with a non-success status is
// returned as a Response for the caller to classify.
func (c *Client) FetchNotifications(ctx context.Context, credential string) (notifications.Response, error) {
	req, err := c.buildRequest(ctx, credential)
	if err != nil {
		return notifications.Response{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return notifications.Response{}, fmt.Errorf("%s: request failed: %w", providerName, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return notifications.Response{}, err
	}

	var payload notificationsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return notifications.Response{}, fmt.Errorf("%s: decode response: %w", providerName, err)
	}
	return mapResponse(payload), nil
}

func (c *Client) buildRequest(ctx context.Context, credential string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/notifications", nil)
	if err != nil {
		return nil, err
	}

	q := req.URL.Query()
	q.Set("page", "1")
	q.Set("per_page", strconv.Itoa(c.perPage))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Accept", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	return req, nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyBytes))
	trimmed := strings.TrimSpace(string(body))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &providers.RateLimitError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
			Remaining:  resp.Header.Get("X-RateLimit-Remaining"),
			Message:    trimmed,
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: status %d: %w", providerName, resp.StatusCode, providers.ErrUnauthorized)
	default:
		return &providers.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: trimmed}
	}
}
