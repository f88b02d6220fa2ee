package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"fundsync/internal/model"
	"fundsync/internal/venue"
)

const (
	pageDelay = 400 * time.Millisecond
	pageLimit = 1000
)

// Client is a Binance futures REST client for the public funding surface.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *venue.RateLimiter
	pager       *rate.Limiter
}

// NewClient creates a new Binance client. An empty baseURL selects the
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

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.WaitWithFallback(ctx, string(model.VenueBinance), endpoint, 20, time.Second); err != nil {
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
		var apiErr ErrorResponse
		if err := json.Unmarshal(body, &apiErr); err != nil {
			apiErr = ErrorResponse{Code: resp.StatusCode, Message: string(body)}
		}
		return &venue.APIError{
			Venue:    model.VenueBinance,
			Endpoint: endpoint,
			Code:     apiErr.Code,
			Message:  apiErr.Message,
		}
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// GetExchangeInfo fetches the exchange symbol catalog.
func (c *Client) GetExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	var info ExchangeInfo
	if err := c.get(ctx, EndpointExchangeInfo, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetFundingInfo fetches the per-symbol funding interval catalog.
func (c *Client) GetFundingInfo(ctx context.Context) ([]FundingInfoItem, error) {
	var items []FundingInfoItem
	if err := c.get(ctx, EndpointFundingInfo, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetFundingRates fetches funding rate records for a symbol. A zero
// startTime omits the parameter; limit ≤ 1000.
func (c *Client) GetFundingRates(ctx context.Context, symbol string, startTime time.Time, limit int) ([]FundingRateEntry, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))
	if !startTime.IsZero() {
		params.Set("startTime", strconv.FormatInt(startTime.UnixMilli(), 10))
	}

	var entries []FundingRateEntry
	if err := c.get(ctx, EndpointFundingRate, params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// waitPage enforces the inter-page delay during history pagination.
func (c *Client) waitPage(ctx context.Context) error {
	return c.pager.Wait(ctx)
}
