package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundsync/internal/cache"
	"fundsync/internal/logging"
	"fundsync/internal/model"
	"fundsync/internal/storage"
)

type fakeVenueReader struct {
	venues []model.Venue
}

func (f *fakeVenueReader) List(ctx context.Context) ([]model.Venue, error) {
	return f.venues, nil
}

func (f *fakeVenueReader) GetByCode(ctx context.Context, code model.VenueCode) (*model.Venue, error) {
	for _, v := range f.venues {
		if v.Code == code {
			return &v, nil
		}
	}
	return nil, nil
}

type fakeHistoryReader struct {
	records    []model.HistoryRecord
	lastFilter storage.Filter
}

func (f *fakeHistoryReader) GetByFilter(ctx context.Context, filter storage.Filter, page storage.Page) ([]model.HistoryRecord, error) {
	f.lastFilter = filter
	return f.records, nil
}

func (f *fakeHistoryReader) GetLatestSymbolRates(ctx context.Context, filter storage.Filter, groupByVenue bool, page storage.Page) ([]model.HistoryRecord, error) {
	f.lastFilter = filter
	return f.records, nil
}

func (f *fakeHistoryReader) GetCountByFilter(ctx context.Context, filter storage.Filter) (int64, error) {
	return int64(len(f.records)), nil
}

func (f *fakeHistoryReader) GetUniqueSymbolsCount(ctx context.Context, filter storage.Filter) (int64, error) {
	return int64(len(f.records)), nil
}

type fakeOnlineReader struct {
	records     []model.OnlineRecord
	latestCalls int
}

func (f *fakeOnlineReader) GetByFilter(ctx context.Context, filter storage.Filter, page storage.Page) ([]model.OnlineRecord, error) {
	return f.records, nil
}

func (f *fakeOnlineReader) GetLatestSymbolFundingRates(ctx context.Context, page storage.Page) ([]model.OnlineRecord, error) {
	f.latestCalls++
	return f.records, nil
}

func (f *fakeOnlineReader) GetCountByFilter(ctx context.Context, filter storage.Filter) (int64, error) {
	return int64(len(f.records)), nil
}

func (f *fakeOnlineReader) GetUniqueSymbolsCount(ctx context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

func TestGetStats(t *testing.T) {
	history := &fakeHistoryReader{records: []model.HistoryRecord{{ID: uuid.New(), Symbol: "BTCUSDT"}}}
	online := &fakeOnlineReader{records: []model.OnlineRecord{{ID: uuid.New(), Symbol: "BTCUSDT"}}}
	router := newTestRouter(&fakeVenueReader{}, history, online)

	w := doRequest(router, "/api/v1/funding/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, int64(1), out["history_unique_symbols"])
	assert.Equal(t, int64(1), out["online_unique_symbols"])
}

func newTestRouter(venues *fakeVenueReader, history *fakeHistoryReader, online *fakeOnlineReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(venues, history, online, cache.NewMemoryCache(), logging.Nop())

	router := gin.New()
	router.Use(ErrorHandler(logging.Nop()))
	router.GET("/api/v1/venues", h.GetVenues)
	router.GET("/api/v1/funding/history", h.GetHistory)
	router.GET("/api/v1/funding/history/latest", h.GetHistoryLatest)
	router.GET("/api/v1/funding/online", h.GetOnline)
	router.GET("/api/v1/funding/online/latest", h.GetOnlineLatest)
	router.GET("/api/v1/funding/stats", h.GetStats)
	return router
}

func doRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetVenues(t *testing.T) {
	venues := &fakeVenueReader{venues: []model.Venue{
		{ID: uuid.New(), Code: model.VenueBinance},
		{ID: uuid.New(), Code: model.VenueMexc},
	}}
	router := newTestRouter(venues, &fakeHistoryReader{}, &fakeOnlineReader{})

	w := doRequest(router, "/api/v1/venues")
	require.Equal(t, http.StatusOK, w.Code)

	var out []venueDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "BINANCE", out[0].Code)
}

func TestGetHistoryFiltersByVenueAndSymbol(t *testing.T) {
	venueID := uuid.New()
	venues := &fakeVenueReader{venues: []model.Venue{{ID: venueID, Code: model.VenueBybit}}}
	history := &fakeHistoryReader{records: []model.HistoryRecord{
		{ID: uuid.New(), VenueID: venueID, Symbol: "ETHUSDT", Name: "ETHUSDT",
			IntervalHours: 8, Rate: decimal.RequireFromString("0.0001"), TsRate: 1700000000000},
	}}
	router := newTestRouter(venues, history, &fakeOnlineReader{})

	w := doRequest(router, "/api/v1/funding/history?venue=bybit&symbol=eth-usdt")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, venueID, history.lastFilter.VenueID)
	// symbols are normalized before querying
	assert.Equal(t, "ETHUSDT", history.lastFilter.Symbol)

	var out listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(1), out.Total)
}

func TestGetHistoryUnknownVenueIs404(t *testing.T) {
	router := newTestRouter(&fakeVenueReader{}, &fakeHistoryReader{}, &fakeOnlineReader{})

	w := doRequest(router, "/api/v1/funding/history?venue=FTX")
	require.Equal(t, http.StatusNotFound, w.Code)

	var out errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "NOT_FOUND", out.Code)
}

func TestGetHistorySeededButMissingVenueIs404(t *testing.T) {
	// valid code, but no row in exchanges
	router := newTestRouter(&fakeVenueReader{}, &fakeHistoryReader{}, &fakeOnlineReader{})

	w := doRequest(router, "/api/v1/funding/history?venue=BINANCE")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHistoryBadPaginationIs400(t *testing.T) {
	router := newTestRouter(&fakeVenueReader{}, &fakeHistoryReader{}, &fakeOnlineReader{})

	w := doRequest(router, "/api/v1/funding/history?page=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, "/api/v1/funding/history?size=99999")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOnlineLatestUsesCache(t *testing.T) {
	online := &fakeOnlineReader{records: []model.OnlineRecord{
		{ID: uuid.New(), Symbol: "BTCUSDT", Name: "BTCUSDT", IntervalHours: 8,
			Rate: decimal.RequireFromString("0.0001"), TsRate: 1700000000000},
	}}
	router := newTestRouter(&fakeVenueReader{}, &fakeHistoryReader{}, online)

	w := doRequest(router, "/api/v1/funding/online/latest")
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(router, "/api/v1/funding/online/latest")
	require.Equal(t, http.StatusOK, w.Code)

	// second hit is served from cache
	assert.Equal(t, 1, online.latestCalls)

	var out listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Items, 1)
	assert.Equal(t, "BTCUSDT", out.Items[0].Symbol)
}
