package hyperliquid

import "github.com/shopspring/decimal"

// API endpoint — all requests are POSTs against /info with a type tag.
const (
	DefaultBaseURL = "https://api.hyperliquid.xyz"
	EndpointInfo   = "/info"
)

// Request types
const (
	requestTypeMeta           = "meta"
	requestTypeFundingHistory = "fundingHistory"
)

// infoRequest is the /info request body.
type infoRequest struct {
	Type      string `json:"type"`
	Coin      string `json:"coin,omitempty"`
	StartTime int64  `json:"startTime,omitempty"`
}

// Meta is the perpetuals metadata response.
type Meta struct {
	Universe []Asset `json:"universe"`
}

// Asset is one perpetual asset of the universe.
type Asset struct {
	Name       string `json:"name"`
	IsDelisted bool   `json:"isDelisted"`
}

// FundingEvent is one entry of the fundingHistory response.
type FundingEvent struct {
	Coin        string          `json:"coin"`
	FundingRate decimal.Decimal `json:"fundingRate"`
	Premium     decimal.Decimal `json:"premium"`
	Time        int64           `json:"time"` // epoch ms
}
