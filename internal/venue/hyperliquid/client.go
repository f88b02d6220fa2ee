package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"fundsync/internal/model"
	"fundsync/internal/venue"
)

const (
	pageDelay = 700 * time.Millisecond
	// the venue caps fundingHistory responses at 500 entries
	pageLimit = 500
)

// Client is a Hyperliquid info-API client.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *venue.RateLimiter
	pager       *rate.Limiter
}

// NewClient creates a new Hyperliquid client. An empty baseURL selects the
// production endpoint.
func NewClient(baseURL string, rateLimiter *venue.RateLimiter) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		rateLimiter: rateLimiter,
		pager:       rate.NewLimiter(rate.Every(pageDelay), 1),
	}
}

func (c *Client) post(ctx context.Context, body infoRequest, result interface{}) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.WaitWithFallback(ctx, string(model.VenueHyperliquid), body.Type, 20, time.Second); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+EndpointInfo, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return &venue.APIError{
			Venue:    model.VenueHyperliquid,
			Endpoint: body.Type,
			Code:     resp.StatusCode,
			Message:  string(msg),
		}
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// GetMeta fetches the perpetuals universe.
func (c *Client) GetMeta(ctx context.Context) (*Meta, error) {
	var meta Meta
	if err := c.post(ctx, infoRequest{Type: requestTypeMeta}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// GetFundingHistory fetches funding events for a coin from startTime
// forward. The venue returns at most pageLimit entries per call.
func (c *Client) GetFundingHistory(ctx context.Context, coin string, startTime time.Time) ([]FundingEvent, error) {
	var events []FundingEvent
	err := c.post(ctx, infoRequest{
		Type:      requestTypeFundingHistory,
		Coin:      coin,
		StartTime: startTime.UnixMilli(),
	}, &events)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// waitPage enforces the inter-page delay during history pagination.
func (c *Client) waitPage(ctx context.Context) error {
	return c.pager.Wait(ctx)
}
