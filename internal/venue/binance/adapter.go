package binance

import (
	"context"
	"math"
	"time"

	"fundsync/internal/model"
	"fundsync/internal/venue"
)

// Adapter implements venue.Adapter for Binance USDⓈ-M futures.
type Adapter struct {
	client   *Client
	settings venue.Settings
}

// NewAdapter creates the Binance adapter.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{
		client: client,
		settings: venue.Settings{
			HistoryParallelism: 1,
			OnlineParallelism:  1,
			HistoryBatchSize:   10,
			PageLimit:          pageLimit,
		},
	}
}

func (a *Adapter) Code() model.VenueCode {
	return model.VenueBinance
}

func (a *Adapter) Settings() venue.Settings {
	return a.settings
}

// ListActivePerpetuals builds the symbol catalog from two sources: the
// funding-info endpoint and the exchange-info catalog restricted to trading
// perpetuals. Exchange-info symbols missing from funding-info get their
// interval inferred from the delta between the two most recent funding
// events; symbols whose inferred interval falls outside 1..24h are skipped.
func (a *Adapter) ListActivePerpetuals(ctx context.Context) ([]venue.SymbolPair, error) {
	fundingItems, err := a.client.GetFundingInfo(ctx)
	if err != nil {
		return nil, err
	}

	exchangeInfo, err := a.client.GetExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}

	fundingBySymbol := make(map[string]FundingInfoItem, len(fundingItems))
	for _, item := range fundingItems {
		fundingBySymbol[item.Symbol] = item
	}

	var pairs []venue.SymbolPair
	seen := make(map[string]bool)

	for _, sym := range exchangeInfo.Symbols {
		if sym.Status != StatusTrading || sym.ContractType != ContractTypePerpetual {
			continue
		}
		seen[sym.Symbol] = true

		exInfo := &venue.ExchangeSymbolInfo{
			Symbol:      sym.Symbol,
			ListingDate: time.UnixMilli(sym.OnboardDate).UTC(),
		}

		if item, ok := fundingBySymbol[sym.Symbol]; ok {
			pairs = append(pairs, venue.SymbolPair{
				Venue:    model.VenueBinance,
				Exchange: exInfo,
				Funding: &venue.FundingSymbolInfo{
					Symbol:        item.Symbol,
					IntervalHours: item.FundingIntervalHours,
				},
				Trading: true,
			})
			continue
		}

		interval, err := a.inferIntervalHours(ctx, sym.Symbol)
		if err != nil {
			return nil, err
		}
		if interval < 1 || interval > 24 {
			continue
		}
		pairs = append(pairs, venue.SymbolPair{
			Venue:    model.VenueBinance,
			Exchange: exInfo,
			Funding: &venue.FundingSymbolInfo{
				Symbol:        sym.Symbol,
				IntervalHours: interval,
			},
			Trading: true,
		})
	}

	// funding-info symbols absent from the trading perpetual set complete
	// the union
	for _, item := range fundingItems {
		if seen[item.Symbol] {
			continue
		}
		pairs = append(pairs, venue.SymbolPair{
			Venue: model.VenueBinance,
			Funding: &venue.FundingSymbolInfo{
				Symbol:        item.Symbol,
				IntervalHours: item.FundingIntervalHours,
			},
			Trading: true,
		})
	}

	return pairs, nil
}

// inferIntervalHours derives the funding interval from the time delta
// between the two most recent funding events. Returns 0 when fewer than two
// events exist.
func (a *Adapter) inferIntervalHours(ctx context.Context, symbol string) (int, error) {
	entries, err := a.client.GetFundingRates(ctx, symbol, time.Time{}, 2)
	if err != nil {
		return 0, err
	}
	if len(entries) < 2 {
		return 0, nil
	}

	delta := entries[len(entries)-1].FundingTime - entries[len(entries)-2].FundingTime
	return int(math.Round(float64(delta) / float64(time.Hour/time.Millisecond))), nil
}

// ListHistory pages forward by startTime until a short page. A zero
// startTime omits the parameter, so the venue answers with its most recent
// records; the result then holds at most pageLimit of them, not the full
// history.
func (a *Adapter) ListHistory(ctx context.Context, symbol string, startTime time.Time) ([]venue.FundingObservation, error) {
	var observations []venue.FundingObservation
	cursor := startTime

	for {
		entries, err := a.client.GetFundingRates(ctx, symbol, cursor, pageLimit)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			observations = append(observations, venue.FundingObservation{
				Rate:        e.FundingRate,
				FundingTime: time.UnixMilli(e.FundingTime).UTC(),
			})
		}
		if len(entries) < pageLimit {
			break
		}
		cursor = time.UnixMilli(entries[len(entries)-1].FundingTime + 1).UTC()

		if err := a.client.waitPage(ctx); err != nil {
			return nil, err
		}
	}

	return observations, nil
}

// Latest returns the most recent funding event for a symbol.
func (a *Adapter) Latest(ctx context.Context, symbol string) (*venue.FundingObservation, error) {
	entries, err := a.client.GetFundingRates(ctx, symbol, time.Time{}, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, venue.ErrEmptyResult
	}

	e := entries[len(entries)-1]
	return &venue.FundingObservation{
		Rate:        e.FundingRate,
		FundingTime: time.UnixMilli(e.FundingTime).UTC(),
	}, nil
}

// PacingDelay relieves rate-limit pressure between history batches.
func (a *Adapter) PacingDelay(batchRows int) time.Duration {
	return time.Duration(batchRows/10) * time.Millisecond
}
