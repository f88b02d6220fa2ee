package hyperliquid

import (
	"context"
	"time"

	"fundsync/internal/model"
	"fundsync/internal/venue"
)

// fundingIntervalHours is fixed: the venue settles funding hourly on every
// perpetual.
const fundingIntervalHours = 1

// historyEpoch is the time history fetches start from when no start time is
// given (the venue predates none of its listings by this much).
var historyEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Adapter implements venue.Adapter for Hyperliquid perpetuals.
type Adapter struct {
	client   *Client
	settings venue.Settings
}

// NewAdapter creates the Hyperliquid adapter.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{
		client: client,
		settings: venue.Settings{
			HistoryParallelism: 1,
			OnlineParallelism:  1,
			HistoryBatchSize:   30,
			PageLimit:          pageLimit,
		},
	}
}

func (a *Adapter) Code() model.VenueCode {
	return model.VenueHyperliquid
}

func (a *Adapter) Settings() venue.Settings {
	return a.settings
}

// ListActivePerpetuals returns the universe; every listed asset is a
// perpetual with an hourly funding interval.
func (a *Adapter) ListActivePerpetuals(ctx context.Context) ([]venue.SymbolPair, error) {
	meta, err := a.client.GetMeta(ctx)
	if err != nil {
		return nil, err
	}

	var pairs []venue.SymbolPair
	for _, asset := range meta.Universe {
		if asset.IsDelisted {
			continue
		}
		pairs = append(pairs, venue.SymbolPair{
			Venue: model.VenueHyperliquid,
			Funding: &venue.FundingSymbolInfo{
				Symbol:        asset.Name,
				IntervalHours: fundingIntervalHours,
			},
			Trading: true,
		})
	}
	return pairs, nil
}

// ListHistory pages forward from startTime until a short page. A zero
// startTime falls back to the 2000-01-01 epoch.
func (a *Adapter) ListHistory(ctx context.Context, symbol string, startTime time.Time) ([]venue.FundingObservation, error) {
	if startTime.IsZero() {
		startTime = historyEpoch
	}

	var observations []venue.FundingObservation
	cursor := startTime

	for {
		events, err := a.client.GetFundingHistory(ctx, symbol, cursor)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			observations = append(observations, venue.FundingObservation{
				Rate:        e.FundingRate,
				FundingTime: time.UnixMilli(e.Time).UTC(),
			})
		}
		if len(events) < pageLimit {
			break
		}
		cursor = time.UnixMilli(events[len(events)-1].Time + 1).UTC()

		if err := a.client.waitPage(ctx); err != nil {
			return nil, err
		}
	}

	return observations, nil
}

// Latest returns the most recent funding event, read from a one-day window
// ending now (the venue has no single-latest endpoint).
func (a *Adapter) Latest(ctx context.Context, symbol string) (*venue.FundingObservation, error) {
	events, err := a.client.GetFundingHistory(ctx, symbol, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, venue.ErrEmptyResult
	}

	e := events[len(events)-1]
	return &venue.FundingObservation{
		Rate:        e.FundingRate,
		FundingTime: time.UnixMilli(e.Time).UTC(),
	}, nil
}

// PacingDelay relieves rate-limit pressure between history batches.
func (a *Adapter) PacingDelay(batchRows int) time.Duration {
	return time.Duration(batchRows/10) * time.Millisecond
}
