package bybit

import (
	"context"
	"sort"
	"strconv"
	"time"

	"fundsync/internal/model"
	"fundsync/internal/venue"
)

// Adapter implements venue.Adapter for Bybit linear perpetuals.
type Adapter struct {
	client   *Client
	settings venue.Settings
}

// NewAdapter creates the Bybit adapter.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{
		client: client,
		settings: venue.Settings{
			HistoryParallelism: 10,
			OnlineParallelism:  10,
			HistoryBatchSize:   50,
			PageLimit:          pageLimit,
		},
	}
}

func (a *Adapter) Code() model.VenueCode {
	return model.VenueBybit
}

func (a *Adapter) Settings() venue.Settings {
	return a.settings
}

// ListActivePerpetuals returns all linear perpetual instruments. The venue
// reports the funding interval in minutes; it is converted to hours here.
func (a *Adapter) ListActivePerpetuals(ctx context.Context) ([]venue.SymbolPair, error) {
	instruments, err := a.client.GetInstruments(ctx)
	if err != nil {
		return nil, err
	}

	var pairs []venue.SymbolPair
	for _, inst := range instruments {
		if inst.ContractType != ContractTypeLinearPerpetual {
			continue
		}

		var launch time.Time
		if ms, err := strconv.ParseInt(inst.LaunchTime, 10, 64); err == nil && ms > 0 {
			launch = time.UnixMilli(ms).UTC()
		}

		pairs = append(pairs, venue.SymbolPair{
			Venue: model.VenueBybit,
			Exchange: &venue.ExchangeSymbolInfo{
				Symbol:      inst.Symbol,
				ListingDate: launch,
			},
			Funding: &venue.FundingSymbolInfo{
				Symbol:        inst.Symbol,
				IntervalHours: inst.FundingInterval / 60,
				LaunchTime:    launch,
			},
			Trading: inst.Status == StatusTrading,
		})
	}

	return pairs, nil
}

// ListHistory pages backward by endTime until the earliest fetched record is
// at or before the requested start, then returns the collected observations
// sorted ascending.
func (a *Adapter) ListHistory(ctx context.Context, symbol string, startTime time.Time) ([]venue.FundingObservation, error) {
	var observations []venue.FundingObservation
	endTime := time.Time{} // first page: venue default (now)

	for {
		page, err := a.client.GetFundingHistory(ctx, symbol, endTime, pageLimit)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		var earliest time.Time
		for _, e := range page {
			ms, err := strconv.ParseInt(e.FundingRateTimestamp, 10, 64)
			if err != nil {
				continue
			}
			ts := time.UnixMilli(ms).UTC()
			if earliest.IsZero() || ts.Before(earliest) {
				earliest = ts
			}
			if !startTime.IsZero() && ts.Before(startTime) {
				continue
			}
			observations = append(observations, venue.FundingObservation{
				Rate:        e.FundingRate,
				FundingTime: ts,
			})
		}

		if len(page) < pageLimit {
			break
		}
		if !startTime.IsZero() && !earliest.After(startTime) {
			break
		}
		endTime = earliest.Add(-time.Millisecond)
	}

	sort.Slice(observations, func(i, j int) bool {
		return observations[i].FundingTime.Before(observations[j].FundingTime)
	})
	return observations, nil
}

// Latest returns the most recent funding event for a symbol.
func (a *Adapter) Latest(ctx context.Context, symbol string) (*venue.FundingObservation, error) {
	page, err := a.client.GetFundingHistory(ctx, symbol, time.Time{}, 1)
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		return nil, venue.ErrEmptyResult
	}

	ms, err := strconv.ParseInt(page[0].FundingRateTimestamp, 10, 64)
	if err != nil {
		return nil, &venue.APIError{
			Venue:    model.VenueBybit,
			Endpoint: EndpointFundingHistory,
			Message:  "malformed funding timestamp: " + page[0].FundingRateTimestamp,
		}
	}

	return &venue.FundingObservation{
		Rate:        page[0].FundingRate,
		FundingTime: time.UnixMilli(ms).UTC(),
	}, nil
}

// PacingDelay relieves rate-limit pressure between history batches.
func (a *Adapter) PacingDelay(batchRows int) time.Duration {
	return time.Duration(batchRows/10) * time.Millisecond
}
