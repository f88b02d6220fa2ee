package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fundsync/internal/model"
	"fundsync/internal/venue"
)

const pageLimit = 200

// Client is a Bybit v5 REST client for the public market surface.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *venue.RateLimiter
}

// NewClient creates a new Bybit client. An empty baseURL selects the
// production endpoint.
func NewClient(baseURL string, rateLimiter *venue.RateLimiter) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		rateLimiter: rateLimiter,
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.WaitWithFallback(ctx, string(model.VenueBybit), endpoint, 50, time.Second); err != nil {
			return err
		}
	}

	u := c.baseURL + endpoint
	if len(params) > 0 {
		u = fmt.Sprintf("%s?%s", u, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &venue.APIError{
			Venue:    model.VenueBybit,
			Endpoint: endpoint,
			Code:     resp.StatusCode,
			Message:  string(body),
		}
	}

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if envelope.RetCode != 0 {
		return &venue.APIError{
			Venue:    model.VenueBybit,
			Endpoint: endpoint,
			Code:     envelope.RetCode,
			Message:  envelope.RetMsg,
		}
	}

	return json.Unmarshal(envelope.Result, result)
}

// GetInstruments fetches the full linear instrument catalog, following the
// page cursor.
func (c *Client) GetInstruments(ctx context.Context) ([]Instrument, error) {
	var instruments []Instrument
	cursor := ""

	for {
		params := url.Values{}
		params.Set("category", CategoryLinear)
		params.Set("limit", "1000")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var result InstrumentsResult
		if err := c.get(ctx, EndpointInstrumentsInfo, params, &result); err != nil {
			return nil, err
		}
		instruments = append(instruments, result.List...)

		if result.NextPageCursor == "" {
			break
		}
		cursor = result.NextPageCursor
	}

	return instruments, nil
}

// GetFundingHistory fetches one page of funding history ending at endTime
// (newest first). A zero endTime omits the parameter.
func (c *Client) GetFundingHistory(ctx context.Context, symbol string, endTime time.Time, limit int) ([]FundingRateHistory, error) {
	params := url.Values{}
	params.Set("category", CategoryLinear)
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))
	if !endTime.IsZero() {
		params.Set("endTime", strconv.FormatInt(endTime.UnixMilli(), 10))
	}

	var result FundingHistoryResult
	if err := c.get(ctx, EndpointFundingHistory, params, &result); err != nil {
		return nil, err
	}
	return result.List, nil
}
