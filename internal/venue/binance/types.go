package binance

import "github.com/shopspring/decimal"

// API endpoints
const (
	DefaultBaseURL       = "https://fapi.binance.com"
	EndpointExchangeInfo = "/fapi/v1/exchangeInfo"
	EndpointFundingInfo  = "/fapi/v1/fundingInfo"
	EndpointFundingRate  = "/fapi/v1/fundingRate"
)

// Symbol status and contract type filters
const (
	StatusTrading         = "TRADING"
	ContractTypePerpetual = "PERPETUAL"
)

// ErrorResponse is the error envelope of the futures API.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// ExchangeInfo is the /fapi/v1/exchangeInfo response.
type ExchangeInfo struct {
	Symbols []ExchangeSymbol `json:"symbols"`
}

// ExchangeSymbol is one symbol entry of exchangeInfo.
type ExchangeSymbol struct {
	Symbol       string `json:"symbol"`
	Status       string `json:"status"`
	ContractType string `json:"contractType"`
	OnboardDate  int64  `json:"onboardDate"`
}

// FundingInfoItem is one entry of /fapi/v1/fundingInfo. Binance only lists
// symbols here whose funding deviates from the 8h default.
type FundingInfoItem struct {
	Symbol               string `json:"symbol"`
	FundingIntervalHours int    `json:"fundingIntervalHours"`
}

// FundingRateEntry is one entry of /fapi/v1/fundingRate.
type FundingRateEntry struct {
	Symbol      string          `json:"symbol"`
	FundingRate decimal.Decimal `json:"fundingRate"`
	FundingTime int64           `json:"fundingTime"` // epoch ms
}
