package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fundsync/internal/errors"
	"fundsync/internal/model"
	"fundsync/internal/venue"
)

// VenueStore is the venue lookup the pipelines depend on.
type VenueStore interface {
	GetByCode(ctx context.Context, code model.VenueCode) (*model.Venue, error)
}

// syncAction is the per-symbol strategy of the incremental history sync.
type syncAction int

const (
	actionSkipFresh syncAction = iota
	actionAppendOne
	actionFillGap
)

func (a syncAction) String() string {
	switch a {
	case actionSkipFresh:
		return "skip_fresh"
	case actionAppendOne:
		return "append_one"
	case actionFillGap:
		return "fill_gap"
	default:
		return "unknown"
	}
}

const msPerHour = int64(time.Hour / time.Millisecond)

// decideSyncAction compares now against the last-known funding time plus
// the funding interval:
//
//	last + Δ > now        → the next event is not yet due
//	now − 2Δ > last       → at least one event was missed
//	otherwise             → exactly one new event is due
func decideSyncAction(lastTsMs int64, intervalHours int, nowMs int64) syncAction {
	delta := int64(intervalHours) * msPerHour
	switch {
	case lastTsMs+delta > nowMs:
		return actionSkipFresh
	case nowMs-2*delta > lastTsMs:
		return actionFillGap
	default:
		return actionAppendOne
	}
}

// buildHistoryRow validates one observation and constructs its row. The
// interval comes from the symbol when the venue reports it there, from the
// observation otherwise; rows without either source, with an interval
// outside 1..24h, or with a zero funding time are rejected.
func buildHistoryRow(venueID uuid.UUID, pair venue.SymbolPair, obs venue.FundingObservation, fetchedAt int64) (model.HistoryRecord, error) {
	name := pair.Name()

	interval := pair.IntervalHours()
	if interval == 0 {
		interval = obs.IntervalHours
	}
	if interval == 0 {
		return model.HistoryRecord{}, errors.NewAppError(errors.ErrCodeValidation,
			fmt.Sprintf("no funding interval source for %s", name), nil)
	}
	if interval < 1 || interval > 24 {
		return model.HistoryRecord{}, errors.NewAppError(errors.ErrCodeValidation,
			fmt.Sprintf("funding interval %dh out of range for %s", interval, name), nil)
	}
	if obs.FundingTime.IsZero() {
		return model.HistoryRecord{}, errors.NewAppError(errors.ErrCodeValidation,
			fmt.Sprintf("zero funding time for %s", name), nil)
	}

	return model.HistoryRecord{
		ID:            uuid.New(),
		VenueID:       venueID,
		Symbol:        model.NormalizeSymbol(name),
		Name:          name,
		IntervalHours: interval,
		Rate:          obs.Rate,
		OpenInterest:  decimal.Zero,
		TsRate:        obs.FundingTime.UnixMilli(),
		FetchedAt:     fetchedAt,
	}, nil
}

// dedupeHistoryRows drops rows duplicating an earlier (symbol, ts_rate)
// within the same batch, keeping the first occurrence.
func dedupeHistoryRows(rows []model.HistoryRecord) []model.HistoryRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]bool, len(rows))
	out := rows[:0]
	for _, row := range rows {
		k := key{row.Symbol, row.TsRate}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out
}

// errorKind classifies an error for logs and metrics.
func errorKind(err error) string {
	var apiErr *venue.APIError
	switch {
	case stderrors.Is(err, venue.ErrEmptyResult):
		return "empty_result"
	case stderrors.As(err, &apiErr):
		return "venue_api"
	case errors.GetAppError(err) != nil && errors.GetAppError(err).Code == errors.ErrCodeValidation:
		return "validation"
	default:
		return "transport"
	}
}
