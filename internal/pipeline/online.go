package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fundsync/internal/logging"
	"fundsync/internal/model"
	"fundsync/internal/monitoring"
	"fundsync/internal/storage"
	"fundsync/internal/venue"
)

// OnlineStore is the slice of the online repository the pipeline needs.
type OnlineStore interface {
	GetByVenue(ctx context.Context, venueID uuid.UUID) ([]model.OnlineRecord, error)
	NewUnitOfWork() storage.UnitOfWork
}

// OnlinePipeline maintains one OnlineRecord per (symbol, venue) holding the
// most recent funding observation.
type OnlinePipeline struct {
	adapter venue.Adapter
	venues  VenueStore
	online  OnlineStore
	logger  *logging.Logger
	metrics *monitoring.Metrics
	retry   *venue.RetryConfig
	workers *kernel
}

// NewOnlinePipeline creates the online pipeline for one venue adapter.
func NewOnlinePipeline(adapter venue.Adapter, venues VenueStore, online OnlineStore, logger *logging.Logger, metrics *monitoring.Metrics) *OnlinePipeline {
	return &OnlinePipeline{
		adapter: adapter,
		venues:  venues,
		online:  online,
		logger: logger.WithField("pipeline", "online").
			WithField("venue", string(adapter.Code())),
		metrics: metrics,
		retry:   venue.DefaultRetryConfig(),
		workers: newKernel(adapter.Settings().OnlineParallelism),
	}
}

// Run executes one online snapshot job. Venue-API and database failures are
// logged and swallowed; only cancellation surfaces.
func (p *OnlinePipeline) Run(ctx context.Context) error {
	start := time.Now()
	err := p.run(ctx)

	status := "success"
	if err != nil {
		status = "failed"
	}
	p.metrics.RecordJobRun("online", string(p.adapter.Code()), status, time.Since(start))
	return err
}

func (p *OnlinePipeline) run(ctx context.Context) error {
	v, err := p.venues.GetByCode(ctx, p.adapter.Code())
	if err != nil {
		p.logger.WithError(err).Error("venue lookup failed")
		return nil
	}
	if v == nil {
		p.logger.Warn("venue not seeded, skipping online sync")
		return nil
	}

	existing, err := p.online.GetByVenue(ctx, v.ID)
	if err != nil {
		p.logger.WithError(err).Error("failed to load online rows")
		return nil
	}
	byName := make(map[string]model.OnlineRecord, len(existing))
	for _, rec := range existing {
		byName[rec.Name] = rec
	}

	pairs, err := venue.RetryWithResult(ctx, func(ctx context.Context) ([]venue.SymbolPair, error) {
		return p.adapter.ListActivePerpetuals(ctx)
	}, p.retry)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.WithError(err).Error("failed to list active perpetuals")
		return nil
	}

	fetchedAt := time.Now().UnixMilli()

	var (
		mu          sync.Mutex
		creates     []model.OnlineRecord
		updates     []model.OnlineRecord
		seenSymbols = make(map[string]string) // normalized symbol → raw name
	)

	err = p.workers.forEach(ctx, len(pairs), func(ctx context.Context, i int) {
		pair := pairs[i]
		if !pair.Trading {
			return
		}
		logger := p.logger.WithField("symbol", pair.Name())

		obs, err := venue.RetryWithResult(ctx, func(ctx context.Context) (*venue.FundingObservation, error) {
			return p.adapter.Latest(ctx, pair.Name())
		}, p.retry)
		if err != nil {
			if ctx.Err() == nil {
				logger.WithError(err).Warn("failed to fetch latest funding")
				p.metrics.RecordSymbolError("online", string(p.adapter.Code()), errorKind(err))
			}
			return
		}

		row, err := buildHistoryRow(v.ID, pair, *obs, fetchedAt)
		if err != nil {
			logger.WithError(err).Warn("dropping invalid funding snapshot")
			p.metrics.RecordSymbolError("online", string(p.adapter.Code()), errorKind(err))
			return
		}

		mu.Lock()
		defer mu.Unlock()

		// two raw names normalizing to the same symbol would violate the
		// (symbol, venue) unique constraint: first variant wins
		if firstName, dup := seenSymbols[row.Symbol]; dup {
			logger.WithField("first_variant", firstName).Warn("duplicate symbol variant dropped")
			return
		}
		seenSymbols[row.Symbol] = row.Name

		record := model.OnlineRecord{
			ID:            uuid.New(),
			VenueID:       row.VenueID,
			Symbol:        row.Symbol,
			Name:          row.Name,
			IntervalHours: row.IntervalHours,
			Rate:          row.Rate,
			OpenInterest:  row.OpenInterest,
			TsRate:        row.TsRate,
			FetchedAt:     row.FetchedAt,
		}
		if prev, ok := byName[record.Name]; ok {
			record.ID = prev.ID
			updates = append(updates, record)
		} else {
			creates = append(creates, record)
		}
	})
	if err != nil {
		return err
	}

	uow := p.online.NewUnitOfWork()
	uow.UpdateRange(updates)
	uow.AddRange(creates)
	if err := uow.Save(ctx); err != nil {
		p.logger.WithError(err).Error("online save failed")
		return nil
	}

	p.metrics.RecordRowsInserted("online", string(p.adapter.Code()), len(creates))
	p.metrics.RecordRowsUpdated(string(p.adapter.Code()), len(updates))
	p.logger.WithFields(map[string]interface{}{
		"creates": len(creates),
		"updates": len(updates),
	}).Debug("online snapshot committed")
	return nil
}
