package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fundsync/internal/model"
)

// Adapter is the per-venue capability set the pipelines are parameterised by.
// Implementations are pure functional views over a venue's REST surface;
// retries are the pipeline's responsibility, not the adapter's.
type Adapter interface {
	// Code identifies the venue.
	Code() model.VenueCode

	// Settings returns the venue's contractual pipeline parameters.
	Settings() Settings

	// ListActivePerpetuals returns active linear perpetual symbols with any
	// available funding-interval metadata.
	ListActivePerpetuals(ctx context.Context) ([]SymbolPair, error)

	// ListHistory pages through the venue's funding history for one symbol,
	// honoring the venue's pagination direction and inter-page delay.
	// Observations are returned sorted ascending by funding time. A zero
	// startTime leaves the starting point to the adapter's default; see each
	// adapter's ListHistory for what that is.
	ListHistory(ctx context.Context, symbol string, startTime time.Time) ([]FundingObservation, error)

	// Latest returns the single most recent funding observation for a symbol.
	Latest(ctx context.Context, symbol string) (*FundingObservation, error)

	// PacingDelay returns the delay to apply between history batches, given
	// the row count produced by the batch just finished. Zero means none.
	PacingDelay(batchRows int) time.Duration
}

// Settings holds the per-venue pipeline parameters from the venue contract.
type Settings struct {
	HistoryParallelism int
	OnlineParallelism  int
	HistoryBatchSize   int
	PageLimit          int
}

// SymbolPair couples a venue's exchange-level and funding-level views of one
// symbol. Either side may be absent; the discriminant is the venue code.
type SymbolPair struct {
	Venue    model.VenueCode
	Exchange *ExchangeSymbolInfo
	Funding  *FundingSymbolInfo

	// Trading reports whether the symbol is currently open for trading.
	// The online pipeline only snapshots trading symbols; history keeps
	// syncing symbols a venue has suspended.
	Trading bool
}

// Name returns the raw symbol name, preferring the funding-side view.
func (p SymbolPair) Name() string {
	if p.Funding != nil {
		return p.Funding.Symbol
	}
	if p.Exchange != nil {
		return p.Exchange.Symbol
	}
	return ""
}

// IntervalHours returns the funding interval if the venue reports it at
// symbol level, zero otherwise.
func (p SymbolPair) IntervalHours() int {
	if p.Funding != nil {
		return p.Funding.IntervalHours
	}
	return 0
}

// StartTime returns the earliest time history should be fetched from:
// the funding-side launch time, falling back to the exchange-side listing
// date. Zero when the venue reports neither.
func (p SymbolPair) StartTime() time.Time {
	if p.Funding != nil && !p.Funding.LaunchTime.IsZero() {
		return p.Funding.LaunchTime
	}
	if p.Exchange != nil && !p.Exchange.ListingDate.IsZero() {
		return p.Exchange.ListingDate
	}
	return time.Time{}
}

// FundingObservation is one funding event as reported by a venue.
// IntervalHours is populated only when the venue reports the interval on the
// observation itself.
type FundingObservation struct {
	Rate          decimal.Decimal
	FundingTime   time.Time
	IntervalHours int
}

// FundingSymbolInfo is the funding-side projection of a venue symbol.
type FundingSymbolInfo struct {
	Symbol        string
	IntervalHours int
	LaunchTime    time.Time
}

// ExchangeSymbolInfo is the exchange-side projection of a venue symbol.
type ExchangeSymbolInfo struct {
	Symbol      string
	ListingDate time.Time
}
