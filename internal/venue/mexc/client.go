package mexc

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
	pageDelay = 500 * time.Millisecond
	pageLimit = 1000
)

// Client is a MEXC contract REST client for the public funding surface.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *venue.RateLimiter
	pager       *rate.Limiter
}

// NewClient creates a new MEXC client. An empty baseURL selects the
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
		if err := c.rateLimiter.WaitWithFallback(ctx, string(model.VenueMexc), endpoint, 20, 2*time.Second); err != nil {
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
			Venue:    model.VenueMexc,
			Endpoint: endpoint,
			Code:     resp.StatusCode,
			Message:  string(body),
		}
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// GetContractDetails fetches the full contract catalog.
func (c *Client) GetContractDetails(ctx context.Context) ([]Contract, error) {
	var result ContractDetailResponse
	if err := c.get(ctx, EndpointContractDetail, nil, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, &venue.APIError{
			Venue:    model.VenueMexc,
			Endpoint: EndpointContractDetail,
			Code:     result.Code,
			Message:  "contract detail request unsuccessful",
		}
	}
	return result.Data, nil
}

// GetFundingHistoryPage fetches one page of funding history (newest first).
// Pages are 1-based.
func (c *Client) GetFundingHistoryPage(ctx context.Context, symbol string, pageNum, pageSize int) (*FundingHistoryPage, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("page_num", strconv.Itoa(pageNum))
	params.Set("page_size", strconv.Itoa(pageSize))

	var result FundingHistoryResponse
	if err := c.get(ctx, EndpointFundingHistory, params, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, &venue.APIError{
			Venue:    model.VenueMexc,
			Endpoint: EndpointFundingHistory,
			Code:     result.Code,
			Message:  "funding history request unsuccessful",
		}
	}
	return &result.Data, nil
}

// waitPage enforces the inter-page delay during history pagination.
func (c *Client) waitPage(ctx context.Context) error {
	return c.pager.Wait(ctx)
}
