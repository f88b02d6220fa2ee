package bybit

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// API endpoints
const (
	DefaultBaseURL          = "https://api.bybit.com"
	EndpointInstrumentsInfo = "/v5/market/instruments-info"
	EndpointFundingHistory  = "/v5/market/funding/history"
)

// Category and filter values
const (
	CategoryLinear              = "linear"
	ContractTypeLinearPerpetual = "LinearPerpetual"
	StatusTrading               = "Trading"
)

// Response is the v5 API envelope.
type Response struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// InstrumentsResult is the instruments-info result payload.
type InstrumentsResult struct {
	Category       string       `json:"category"`
	List           []Instrument `json:"list"`
	NextPageCursor string       `json:"nextPageCursor"`
}

// Instrument is one entry of instruments-info. FundingInterval is in
// minutes; LaunchTime is epoch ms as a string.
type Instrument struct {
	Symbol          string `json:"symbol"`
	ContractType    string `json:"contractType"`
	Status          string `json:"status"`
	LaunchTime      string `json:"launchTime"`
	FundingInterval int    `json:"fundingInterval"`
}

// FundingHistoryResult is the funding/history result payload, newest first.
type FundingHistoryResult struct {
	Category string               `json:"category"`
	List     []FundingRateHistory `json:"list"`
}

// FundingRateHistory is one funding event; the timestamp is epoch ms as a
// string.
type FundingRateHistory struct {
	Symbol               string          `json:"symbol"`
	FundingRate          decimal.Decimal `json:"fundingRate"`
	FundingRateTimestamp string          `json:"fundingRateTimestamp"`
}
