package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fundsync/internal/logging"
	"fundsync/internal/model"
	"fundsync/internal/monitoring"
	"fundsync/internal/venue"
)

// HistoryStore is the slice of the history repository the pipeline needs.
type HistoryStore interface {
	CountByVenue(ctx context.Context, venueID uuid.UUID) (int64, error)
	GetLatestByVenue(ctx context.Context, venueID uuid.UUID) ([]model.HistoryRecord, error)
	BulkInsert(ctx context.Context, rows []model.HistoryRecord) error
}

// HistoryPipeline aligns the local funding history of one venue with the
// venue's published history. With no local rows it backfills everything;
// otherwise it catches up per symbol.
type HistoryPipeline struct {
	adapter venue.Adapter
	venues  VenueStore
	history HistoryStore
	logger  *logging.Logger
	metrics *monitoring.Metrics
	retry   *venue.RetryConfig
	workers *kernel
}

// NewHistoryPipeline creates the history pipeline for one venue adapter.
func NewHistoryPipeline(adapter venue.Adapter, venues VenueStore, history HistoryStore, logger *logging.Logger, metrics *monitoring.Metrics) *HistoryPipeline {
	return &HistoryPipeline{
		adapter: adapter,
		venues:  venues,
		history: history,
		logger: logger.WithField("pipeline", "history").
			WithField("venue", string(adapter.Code())),
		metrics: metrics,
		retry:   venue.DefaultRetryConfig(),
		workers: newKernel(adapter.Settings().HistoryParallelism),
	}
}

// Run executes one history sync job.
func (p *HistoryPipeline) Run(ctx context.Context) error {
	start := time.Now()
	err := p.run(ctx)

	status := "success"
	if err != nil {
		status = "failed"
	}
	p.metrics.RecordJobRun("history", string(p.adapter.Code()), status, time.Since(start))
	return err
}

func (p *HistoryPipeline) run(ctx context.Context) error {
	v, err := p.venues.GetByCode(ctx, p.adapter.Code())
	if err != nil {
		return err
	}
	if v == nil {
		p.logger.Warn("venue not seeded, skipping history sync")
		return nil
	}

	count, err := p.history.CountByVenue(ctx, v.ID)
	if err != nil {
		return err
	}

	pairs, err := venue.RetryWithResult(ctx, func(ctx context.Context) ([]venue.SymbolPair, error) {
		return p.adapter.ListActivePerpetuals(ctx)
	}, p.retry)
	if err != nil {
		return err
	}

	// one ingestion timestamp per job invocation
	fetchedAt := time.Now().UnixMilli()

	if count == 0 {
		p.logger.WithField("symbols", len(pairs)).Info("no local history, starting full backfill")
		return p.coldStart(ctx, v.ID, pairs, fetchedAt)
	}
	return p.incremental(ctx, v.ID, pairs, fetchedAt)
}

// coldStart backfills every symbol in sequential batches; symbols within a
// batch run in parallel. Each batch is bulk-inserted before the next
// starts, with the adapter's pacing delay in between.
func (p *HistoryPipeline) coldStart(ctx context.Context, venueID uuid.UUID, pairs []venue.SymbolPair, fetchedAt int64) error {
	batchSize := p.adapter.Settings().HistoryBatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(pairs); start += batchSize {
		end := start + batchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		batch := pairs[start:end]

		var mu sync.Mutex
		var rows []model.HistoryRecord

		err := p.workers.forEach(ctx, len(batch), func(ctx context.Context, i int) {
			symbolRows := p.backfillSymbol(ctx, venueID, batch[i], fetchedAt)
			if len(symbolRows) == 0 {
				return
			}
			mu.Lock()
			rows = append(rows, symbolRows...)
			mu.Unlock()
		})
		if err != nil {
			return err
		}

		rows = dedupeHistoryRows(rows)
		if len(rows) > 0 {
			if err := p.history.BulkInsert(ctx, rows); err != nil {
				return err
			}
			p.metrics.RecordRowsInserted("history", string(p.adapter.Code()), len(rows))
			p.logger.WithField("rows", len(rows)).Debug("batch committed")
		}

		if delay := p.adapter.PacingDelay(len(rows)); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

// incremental reconciles each symbol against its newest local row. Symbols
// unseen so far get the same deep backfill as cold start.
func (p *HistoryPipeline) incremental(ctx context.Context, venueID uuid.UUID, pairs []venue.SymbolPair, fetchedAt int64) error {
	latest, err := p.history.GetLatestByVenue(ctx, venueID)
	if err != nil {
		return err
	}
	lastByName := make(map[string]model.HistoryRecord, len(latest))
	for _, rec := range latest {
		lastByName[strings.ToLower(rec.Name)] = rec
	}

	var mu sync.Mutex
	var rows []model.HistoryRecord

	err = p.workers.forEach(ctx, len(pairs), func(ctx context.Context, i int) {
		pair := pairs[i]

		var symbolRows []model.HistoryRecord
		if last, ok := lastByName[strings.ToLower(pair.Name())]; ok {
			symbolRows = p.syncExistingSymbol(ctx, venueID, pair, last, fetchedAt)
		} else {
			symbolRows = p.backfillSymbol(ctx, venueID, pair, fetchedAt)
		}
		if len(symbolRows) == 0 {
			return
		}
		mu.Lock()
		rows = append(rows, symbolRows...)
		mu.Unlock()
	})
	if err != nil {
		return err
	}

	rows = dedupeHistoryRows(rows)
	if len(rows) == 0 {
		return nil
	}
	if err := p.history.BulkInsert(ctx, rows); err != nil {
		return err
	}
	p.metrics.RecordRowsInserted("history", string(p.adapter.Code()), len(rows))
	p.logger.WithField("rows", len(rows)).Info("incremental sync committed")
	return nil
}

// syncExistingSymbol applies exactly one of skip / append-one / fill-gap,
// decided from the newest local row.
func (p *HistoryPipeline) syncExistingSymbol(ctx context.Context, venueID uuid.UUID, pair venue.SymbolPair, last model.HistoryRecord, fetchedAt int64) []model.HistoryRecord {
	logger := p.logger.WithField("symbol", pair.Name())

	switch decideSyncAction(last.TsRate, last.IntervalHours, fetchedAt) {
	case actionSkipFresh:
		return nil

	case actionFillGap:
		startTime := time.UnixMilli(last.TsRate + 1).UTC()
		observations, err := venue.RetryWithResult(ctx, func(ctx context.Context) ([]venue.FundingObservation, error) {
			return p.adapter.ListHistory(ctx, pair.Name(), startTime)
		}, p.retry)
		if err != nil {
			p.recordSymbolFailure(ctx, logger, err, "failed to fill funding gap")
			return nil
		}
		return p.buildRows(logger, venueID, pair, observations, fetchedAt)

	default: // actionAppendOne
		obs, err := venue.RetryWithResult(ctx, func(ctx context.Context) (*venue.FundingObservation, error) {
			return p.adapter.Latest(ctx, pair.Name())
		}, p.retry)
		if err != nil {
			p.recordSymbolFailure(ctx, logger, err, "failed to fetch latest funding")
			return nil
		}
		if obs.FundingTime.UnixMilli() <= last.TsRate {
			// venue has not published the due event yet
			return nil
		}
		return p.buildRows(logger, venueID, pair, []venue.FundingObservation{*obs}, fetchedAt)
	}
}

// backfillSymbol fetches the entire available history for one symbol,
// starting from its launch time when the venue reports one.
func (p *HistoryPipeline) backfillSymbol(ctx context.Context, venueID uuid.UUID, pair venue.SymbolPair, fetchedAt int64) []model.HistoryRecord {
	logger := p.logger.WithField("symbol", pair.Name())

	observations, err := venue.RetryWithResult(ctx, func(ctx context.Context) ([]venue.FundingObservation, error) {
		return p.adapter.ListHistory(ctx, pair.Name(), pair.StartTime())
	}, p.retry)
	if err != nil {
		p.recordSymbolFailure(ctx, logger, err, "failed to backfill symbol")
		return nil
	}
	return p.buildRows(logger, venueID, pair, observations, fetchedAt)
}

func (p *HistoryPipeline) buildRows(logger *logging.Logger, venueID uuid.UUID, pair venue.SymbolPair, observations []venue.FundingObservation, fetchedAt int64) []model.HistoryRecord {
	rows := make([]model.HistoryRecord, 0, len(observations))
	for _, obs := range observations {
		row, err := buildHistoryRow(venueID, pair, obs, fetchedAt)
		if err != nil {
			logger.WithError(err).Warn("dropping invalid funding row")
			p.metrics.RecordSymbolError("history", string(p.adapter.Code()), errorKind(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// recordSymbolFailure logs a per-symbol failure; it never aborts the job.
func (p *HistoryPipeline) recordSymbolFailure(ctx context.Context, logger *logging.Logger, err error, msg string) {
	if ctx.Err() != nil {
		return
	}
	logger.WithError(err).Warn(msg)
	p.metrics.RecordSymbolError("history", string(p.adapter.Code()), errorKind(err))
}
