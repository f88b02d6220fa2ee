package mexc

import (
	"context"
	"sort"
	"time"

	"fundsync/internal/model"
	"fundsync/internal/venue"
)

// Adapter implements venue.Adapter for MEXC contract perpetuals.
type Adapter struct {
	client   *Client
	settings venue.Settings
}

// NewAdapter creates the MEXC adapter.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{
		client: client,
		settings: venue.Settings{
			HistoryParallelism: 3,
			OnlineParallelism:  2,
			HistoryBatchSize:   30,
			PageLimit:          pageLimit,
		},
	}
}

func (a *Adapter) Code() model.VenueCode {
	return model.VenueMexc
}

func (a *Adapter) Settings() venue.Settings {
	return a.settings
}

// ListActivePerpetuals returns enabled contracts. The venue does not report
// the funding interval at symbol level; it arrives on each observation.
func (a *Adapter) ListActivePerpetuals(ctx context.Context) ([]venue.SymbolPair, error) {
	contracts, err := a.client.GetContractDetails(ctx)
	if err != nil {
		return nil, err
	}

	var pairs []venue.SymbolPair
	for _, contract := range contracts {
		if contract.State != contractStateEnabled {
			continue
		}
		pairs = append(pairs, venue.SymbolPair{
			Venue: model.VenueMexc,
			Funding: &venue.FundingSymbolInfo{
				Symbol: contract.Symbol,
			},
			Trading: true,
		})
	}
	return pairs, nil
}

// ListHistory walks the page-number pagination until page ≥ totalPage, or
// until a page holds nothing newer than startTime (pages are newest first,
// so everything beyond is older still). Observations return ascending.
func (a *Adapter) ListHistory(ctx context.Context, symbol string, startTime time.Time) ([]venue.FundingObservation, error) {
	var observations []venue.FundingObservation

	for pageNum := 1; ; pageNum++ {
		page, err := a.client.GetFundingHistoryPage(ctx, symbol, pageNum, pageLimit)
		if err != nil {
			return nil, err
		}

		pageExhausted := true
		for _, e := range page.ResultList {
			ts := time.UnixMilli(e.SettleTime).UTC()
			if !startTime.IsZero() && ts.Before(startTime) {
				continue
			}
			pageExhausted = false
			observations = append(observations, venue.FundingObservation{
				Rate:          e.FundingRate,
				FundingTime:   ts,
				IntervalHours: e.CollectCycle,
			})
		}

		if pageNum >= page.TotalPage {
			break
		}
		if !startTime.IsZero() && pageExhausted {
			break
		}

		if err := a.client.waitPage(ctx); err != nil {
			return nil, err
		}
	}

	sort.Slice(observations, func(i, j int) bool {
		return observations[i].FundingTime.Before(observations[j].FundingTime)
	})
	return observations, nil
}

// Latest returns the most recent funding event: the head of the newest-first
// history page.
func (a *Adapter) Latest(ctx context.Context, symbol string) (*venue.FundingObservation, error) {
	page, err := a.client.GetFundingHistoryPage(ctx, symbol, 1, 1)
	if err != nil {
		return nil, err
	}
	if len(page.ResultList) == 0 {
		return nil, venue.ErrEmptyResult
	}

	e := page.ResultList[0]
	return &venue.FundingObservation{
		Rate:          e.FundingRate,
		FundingTime:   time.UnixMilli(e.SettleTime).UTC(),
		IntervalHours: e.CollectCycle,
	}, nil
}

// PacingDelay relieves rate-limit pressure between history batches.
func (a *Adapter) PacingDelay(batchRows int) time.Duration {
	return time.Duration(batchRows/10) * time.Millisecond
}
