package mexc

import "github.com/shopspring/decimal"

// API endpoints
const (
	DefaultBaseURL         = "https://contract.mexc.com"
	EndpointContractDetail = "/api/v1/contract/detail"
	EndpointFundingHistory = "/api/v1/contract/funding_rate/history"
)

// contractStateEnabled marks a contract open for trading.
const contractStateEnabled = 0

// Response is the contract API envelope.
type Response struct {
	Success bool `json:"success"`
	Code    int  `json:"code"`
}

// ContractDetailResponse is the /contract/detail response.
type ContractDetailResponse struct {
	Response
	Data []Contract `json:"data"`
}

// Contract is one entry of contract details. Symbols use the underscore
// form ("BTC_USDT").
type Contract struct {
	Symbol string `json:"symbol"`
	State  int    `json:"state"`
}

// FundingHistoryResponse is the paged funding-rate history response.
type FundingHistoryResponse struct {
	Response
	Data FundingHistoryPage `json:"data"`
}

// FundingHistoryPage is one page of history, newest first.
type FundingHistoryPage struct {
	PageSize    int                  `json:"pageSize"`
	TotalCount  int                  `json:"totalCount"`
	TotalPage   int                  `json:"totalPage"`
	CurrentPage int                  `json:"currentPage"`
	ResultList  []FundingRateHistory `json:"resultList"`
}

// FundingRateHistory is one funding event. CollectCycle is the funding
// interval in hours, reported per observation.
type FundingRateHistory struct {
	Symbol       string          `json:"symbol"`
	FundingRate  decimal.Decimal `json:"fundingRate"`
	SettleTime   int64           `json:"settleTime"` // epoch ms
	CollectCycle int             `json:"collectCycle"`
}
