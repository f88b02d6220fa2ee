package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundsync/internal/logging"
	"fundsync/internal/model"
	"fundsync/internal/venue"
)

func fundingPair(code model.VenueCode, name string, intervalHours int) venue.SymbolPair {
	return venue.SymbolPair{
		Venue: code,
		Funding: &venue.FundingSymbolInfo{
			Symbol:        name,
			IntervalHours: intervalHours,
		},
		Trading: true,
	}
}

func obsAt(rate string, t time.Time) venue.FundingObservation {
	d, _ := decimal.NewFromString(rate)
	return venue.FundingObservation{Rate: d, FundingTime: t}
}

func newHistoryPipeline(adapter *fakeAdapter, venues *fakeVenueStore, store *fakeHistoryStore) *HistoryPipeline {
	p := NewHistoryPipeline(adapter, venues, store, logging.Nop(), nil)
	p.retry = &venue.RetryConfig{MaxAttempts: 3, BaseWait: time.Millisecond}
	return p
}

func TestColdStartBackfill(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	adapter := newFakeAdapter(model.VenueBinance)
	adapter.pairs = []venue.SymbolPair{fundingPair(model.VenueBinance, "BTCUSDT", 8)}
	adapter.history["BTCUSDT"] = []venue.FundingObservation{
		obsAt("0.0001", t0),
		obsAt("0.0002", t0.Add(8*time.Hour)),
		obsAt("-0.0001", t0.Add(16*time.Hour)),
	}

	store := &fakeHistoryStore{count: 0}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueBinance), store)

	jobStart := time.Now().UnixMilli()
	require.NoError(t, p.Run(context.Background()))
	jobEnd := time.Now().UnixMilli()

	rows := store.insertedRows()
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "BTCUSDT", row.Symbol)
		assert.Equal(t, "BTCUSDT", row.Name)
		assert.Equal(t, 8, row.IntervalHours)
		assert.Equal(t, model.NormalizeSymbol(row.Name), row.Symbol)
		assert.GreaterOrEqual(t, row.FetchedAt, jobStart)
		assert.LessOrEqual(t, row.FetchedAt, jobEnd)
	}
	assert.Equal(t, t0.UnixMilli(), rows[0].TsRate)
}

func TestColdStartBatchesSequentially(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	adapter := newFakeAdapter(model.VenueBybit)
	adapter.settings.HistoryBatchSize = 2
	for _, name := range []string{"AUSDT", "BUSDT", "CUSDT", "DUSDT", "EUSDT"} {
		adapter.pairs = append(adapter.pairs, fundingPair(model.VenueBybit, name, 8))
		adapter.history[name] = []venue.FundingObservation{obsAt("0.0001", t0)}
	}

	store := &fakeHistoryStore{count: 0}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueBybit), store)
	require.NoError(t, p.Run(context.Background()))

	// 5 symbols in batches of 2: one bulk insert per non-empty batch
	require.Len(t, store.inserts, 3)
	assert.Len(t, store.inserts[0], 2)
	assert.Len(t, store.inserts[1], 2)
	assert.Len(t, store.inserts[2], 1)
}

func TestIncrementalSkipFresh(t *testing.T) {
	now := time.Now()
	lastTs := now.Add(-30 * time.Minute).UnixMilli()

	adapter := newFakeAdapter(model.VenueBybit)
	adapter.pairs = []venue.SymbolPair{fundingPair(model.VenueBybit, "ETHUSDT", 4)}

	store := &fakeHistoryStore{
		count: 1,
		latest: []model.HistoryRecord{
			{Name: "ETHUSDT", Symbol: "ETHUSDT", IntervalHours: 4, TsRate: lastTs},
		},
	}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueBybit), store)
	require.NoError(t, p.Run(context.Background()))

	assert.Empty(t, store.inserts)
	assert.Empty(t, adapter.historyCalls)
	assert.Zero(t, adapter.latestCalls["ETHUSDT"])
}

func TestIncrementalFillGap(t *testing.T) {
	now := time.Now()
	lastTs := now.Add(-20 * time.Hour).UnixMilli()

	adapter := newFakeAdapter(model.VenueMexc)
	// MEXC reports no interval at symbol level; it rides on observations
	adapter.pairs = []venue.SymbolPair{fundingPair(model.VenueMexc, "BTC_USDT", 0)}

	missed1 := time.UnixMilli(lastTs).Add(8 * time.Hour).UTC()
	missed2 := time.UnixMilli(lastTs).Add(16 * time.Hour).UTC()
	o1 := obsAt("0.0001", missed1)
	o1.IntervalHours = 8
	o2 := obsAt("0.0002", missed2)
	o2.IntervalHours = 8
	adapter.history["BTC_USDT"] = []venue.FundingObservation{o1, o2}

	store := &fakeHistoryStore{
		count: 1,
		latest: []model.HistoryRecord{
			{Name: "BTC_USDT", Symbol: "BTCUSDT", IntervalHours: 8, TsRate: lastTs},
		},
	}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueMexc), store)
	require.NoError(t, p.Run(context.Background()))

	rows := store.insertedRows()
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "BTCUSDT", row.Symbol)
		assert.Equal(t, "BTC_USDT", row.Name)
		assert.Equal(t, 8, row.IntervalHours)
	}

	call, ok := adapter.historyCallFor("BTC_USDT")
	require.True(t, ok)
	assert.Equal(t, lastTs+1, call.startTime.UnixMilli())
}

func TestIncrementalAppendOne(t *testing.T) {
	now := time.Now()
	lastTs := now.Add(-9 * time.Hour).UnixMilli()
	next := time.UnixMilli(lastTs).Add(8 * time.Hour).UTC()

	adapter := newFakeAdapter(model.VenueBinance)
	adapter.pairs = []venue.SymbolPair{fundingPair(model.VenueBinance, "BTCUSDT", 8)}
	obs := obsAt("0.00013", next)
	adapter.latest["BTCUSDT"] = &obs

	store := &fakeHistoryStore{
		count: 1,
		latest: []model.HistoryRecord{
			{Name: "BTCUSDT", Symbol: "BTCUSDT", IntervalHours: 8, TsRate: lastTs},
		},
	}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueBinance), store)
	require.NoError(t, p.Run(context.Background()))

	rows := store.insertedRows()
	require.Len(t, rows, 1)
	assert.Equal(t, next.UnixMilli(), rows[0].TsRate)
	assert.Empty(t, adapter.historyCalls)
}

func TestIncrementalNoNewDataInsertsNothing(t *testing.T) {
	now := time.Now()
	lastTs := now.Add(-9 * time.Hour).UnixMilli()

	adapter := newFakeAdapter(model.VenueBinance)
	adapter.pairs = []venue.SymbolPair{fundingPair(model.VenueBinance, "BTCUSDT", 8)}
	// the venue still reports the event the store already has
	obs := obsAt("0.0001", time.UnixMilli(lastTs).UTC())
	adapter.latest["BTCUSDT"] = &obs

	store := &fakeHistoryStore{
		count: 1,
		latest: []model.HistoryRecord{
			{Name: "BTCUSDT", Symbol: "BTCUSDT", IntervalHours: 8, TsRate: lastTs},
		},
	}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueBinance), store)
	require.NoError(t, p.Run(context.Background()))

	assert.Empty(t, store.inserts)
}

func TestIncrementalNewSymbolGetsFullBackfill(t *testing.T) {
	launch := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	adapter := newFakeAdapter(model.VenueBybit)
	pair := fundingPair(model.VenueBybit, "NEWUSDT", 4)
	pair.Funding.LaunchTime = launch
	adapter.pairs = []venue.SymbolPair{pair}
	adapter.history["NEWUSDT"] = []venue.FundingObservation{
		obsAt("0.0001", launch),
		obsAt("0.0002", launch.Add(4*time.Hour)),
	}

	store := &fakeHistoryStore{
		count: 1,
		latest: []model.HistoryRecord{
			{Name: "ETHUSDT", Symbol: "ETHUSDT", IntervalHours: 4, TsRate: time.Now().UnixMilli()},
		},
	}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueBybit), store)
	require.NoError(t, p.Run(context.Background()))

	rows := store.insertedRows()
	require.Len(t, rows, 2)

	call, ok := adapter.historyCallFor("NEWUSDT")
	require.True(t, ok)
	assert.Equal(t, launch, call.startTime)
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	now := time.Now()
	lastTs := now.Add(-9 * time.Hour).UnixMilli()
	next := time.UnixMilli(lastTs).Add(8 * time.Hour).UTC()

	adapter := newFakeAdapter(model.VenueBinance)
	adapter.pairs = []venue.SymbolPair{fundingPair(model.VenueBinance, "BTCUSDT", 8)}
	obs := obsAt("0.0001", next)
	adapter.latest["BTCUSDT"] = &obs
	adapter.latestErrs["BTCUSDT"] = []error{
		errors.New("connection reset"),
		errors.New("connection reset"),
	}

	store := &fakeHistoryStore{
		count: 1,
		latest: []model.HistoryRecord{
			{Name: "BTCUSDT", Symbol: "BTCUSDT", IntervalHours: 8, TsRate: lastTs},
		},
	}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueBinance), store)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 3, adapter.latestCalls["BTCUSDT"])
	require.Len(t, store.insertedRows(), 1)
}

func TestPerSymbolFailureDoesNotAbortJob(t *testing.T) {
	now := time.Now()
	lastTs := now.Add(-9 * time.Hour).UnixMilli()
	next := time.UnixMilli(lastTs).Add(8 * time.Hour).UTC()

	adapter := newFakeAdapter(model.VenueBybit)
	adapter.pairs = []venue.SymbolPair{
		fundingPair(model.VenueBybit, "BADUSDT", 8),
		fundingPair(model.VenueBybit, "GOODUSDT", 8),
	}
	adapter.latestErrs["BADUSDT"] = []error{
		errors.New("boom"), errors.New("boom"), errors.New("boom"),
	}
	obs := obsAt("0.0001", next)
	adapter.latest["GOODUSDT"] = &obs

	store := &fakeHistoryStore{
		count: 1,
		latest: []model.HistoryRecord{
			{Name: "BADUSDT", Symbol: "BADUSDT", IntervalHours: 8, TsRate: lastTs},
			{Name: "GOODUSDT", Symbol: "GOODUSDT", IntervalHours: 8, TsRate: lastTs},
		},
	}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueBybit), store)
	require.NoError(t, p.Run(context.Background()))

	rows := store.insertedRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "GOODUSDT", rows[0].Name)
}

func TestBulkInsertFailureFailsJob(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	adapter := newFakeAdapter(model.VenueBinance)
	adapter.pairs = []venue.SymbolPair{fundingPair(model.VenueBinance, "BTCUSDT", 8)}
	adapter.history["BTCUSDT"] = []venue.FundingObservation{obsAt("0.0001", t0)}

	store := &fakeHistoryStore{count: 0, insertErr: errors.New("disk full")}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueBinance), store)

	assert.Error(t, p.Run(context.Background()))
}

func TestMissingVenueShortCircuits(t *testing.T) {
	adapter := newFakeAdapter(model.VenueBinance)
	adapter.listErr = errors.New("should not be called")

	store := &fakeHistoryStore{}
	p := newHistoryPipeline(adapter, newFakeVenueStore(), store)

	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, store.inserts)
}

func TestBatchDuplicatesAreDropped(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	adapter := newFakeAdapter(model.VenueMexc)
	adapter.pairs = []venue.SymbolPair{fundingPair(model.VenueMexc, "BTC_USDT", 8)}
	adapter.history["BTC_USDT"] = []venue.FundingObservation{
		obsAt("0.0001", t0),
		obsAt("0.0001", t0), // venue glitch: same event twice
	}

	store := &fakeHistoryStore{count: 0}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueMexc), store)
	require.NoError(t, p.Run(context.Background()))

	assert.Len(t, store.insertedRows(), 1)
}

func TestInvalidRowsAreDroppedNotFatal(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	adapter := newFakeAdapter(model.VenueMexc)
	// no symbol-level interval and no observation-level interval
	adapter.pairs = []venue.SymbolPair{fundingPair(model.VenueMexc, "NOINT_USDT", 0)}
	adapter.history["NOINT_USDT"] = []venue.FundingObservation{obsAt("0.0001", t0)}

	store := &fakeHistoryStore{count: 0}
	p := newHistoryPipeline(adapter, newFakeVenueStore(model.VenueMexc), store)
	require.NoError(t, p.Run(context.Background()))

	assert.Empty(t, store.insertedRows())
}

func TestDecideSyncActionBoundaries(t *testing.T) {
	const interval = 8
	delta := int64(interval) * msPerHour
	last := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		name     string
		now      int64
		expected syncAction
	}{
		{"just before due", last + delta - 1, actionSkipFresh},
		{"just past due", last + delta + 1, actionAppendOne},
		{"exactly due", last + delta, actionAppendOne},
		{"two intervals missed", last + 3*delta, actionFillGap},
		{"boundary of gap window", last + 2*delta + 1, actionFillGap},
		{"exactly two intervals", last + 2*delta, actionAppendOne},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, decideSyncAction(last, interval, tt.now))
		})
	}
}
