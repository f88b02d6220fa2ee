package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fundsync/internal/cache"
	"fundsync/internal/errors"
	"fundsync/internal/logging"
	"fundsync/internal/model"
	"fundsync/internal/storage"
)

// VenueReader is the venue query surface.
type VenueReader interface {
	List(ctx context.Context) ([]model.Venue, error)
	GetByCode(ctx context.Context, code model.VenueCode) (*model.Venue, error)
}

// HistoryReader is the history query surface.
type HistoryReader interface {
	GetByFilter(ctx context.Context, filter storage.Filter, page storage.Page) ([]model.HistoryRecord, error)
	GetLatestSymbolRates(ctx context.Context, filter storage.Filter, groupByVenue bool, page storage.Page) ([]model.HistoryRecord, error)
	GetCountByFilter(ctx context.Context, filter storage.Filter) (int64, error)
	GetUniqueSymbolsCount(ctx context.Context, filter storage.Filter) (int64, error)
}

// OnlineReader is the online query surface.
type OnlineReader interface {
	GetByFilter(ctx context.Context, filter storage.Filter, page storage.Page) ([]model.OnlineRecord, error)
	GetLatestSymbolFundingRates(ctx context.Context, page storage.Page) ([]model.OnlineRecord, error)
	GetCountByFilter(ctx context.Context, filter storage.Filter) (int64, error)
	GetUniqueSymbolsCount(ctx context.Context) (int64, error)
}

// Handlers serves the read-only funding query API.
type Handlers struct {
	venues  VenueReader
	history HistoryReader
	online  OnlineReader
	cache   cache.Cacher
	logger  *logging.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(venues VenueReader, history HistoryReader, online OnlineReader, c cache.Cacher, logger *logging.Logger) *Handlers {
	return &Handlers{
		venues:  venues,
		history: history,
		online:  online,
		cache:   c,
		logger:  logger,
	}
}

// fundingRateDTO is the wire shape of one funding observation.
type fundingRateDTO struct {
	ID            uuid.UUID       `json:"id"`
	VenueID       uuid.UUID       `json:"venue_id"`
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	IntervalHours int             `json:"interval_hours"`
	Rate          decimal.Decimal `json:"rate"`
	OpenInterest  decimal.Decimal `json:"open_interest"`
	TsRate        int64           `json:"ts_rate"`
	FetchedAt     int64           `json:"fetched_at"`
}

type venueDTO struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

type listResponse struct {
	Items []fundingRateDTO `json:"items"`
	Total int64            `json:"total,omitempty"`
}

func historyDTOs(records []model.HistoryRecord) []fundingRateDTO {
	out := make([]fundingRateDTO, 0, len(records))
	for _, r := range records {
		out = append(out, fundingRateDTO{
			ID: r.ID, VenueID: r.VenueID, Symbol: r.Symbol, Name: r.Name,
			IntervalHours: r.IntervalHours, Rate: r.Rate, OpenInterest: r.OpenInterest,
			TsRate: r.TsRate, FetchedAt: r.FetchedAt,
		})
	}
	return out
}

func onlineDTOs(records []model.OnlineRecord) []fundingRateDTO {
	out := make([]fundingRateDTO, 0, len(records))
	for _, r := range records {
		out = append(out, fundingRateDTO{
			ID: r.ID, VenueID: r.VenueID, Symbol: r.Symbol, Name: r.Name,
			IntervalHours: r.IntervalHours, Rate: r.Rate, OpenInterest: r.OpenInterest,
			TsRate: r.TsRate, FetchedAt: r.FetchedAt,
		})
	}
	return out
}

// parseFilter builds a storage filter from query parameters. An unknown
// venue code yields NotFound.
func (h *Handlers) parseFilter(c *gin.Context) (storage.Filter, error) {
	var filter storage.Filter

	if v := c.Query("venue"); v != "" {
		code, err := model.ParseVenueCode(v)
		if err != nil {
			return filter, errors.NewAppError(errors.ErrCodeNotFound, "unknown venue code: "+v, err)
		}
		venueRow, err := h.venues.GetByCode(c.Request.Context(), code)
		if err != nil {
			return filter, err
		}
		if venueRow == nil {
			return filter, errors.NewAppError(errors.ErrCodeNotFound, "venue not found: "+v, nil)
		}
		filter.VenueID = venueRow.ID
	}

	if s := c.Query("symbol"); s != "" {
		filter.Symbol = model.NormalizeSymbol(s)
	}
	if v := c.Query("from"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, errors.NewAppError(errors.ErrCodeInvalidInput, "invalid from timestamp", err)
		}
		filter.FromMs = ms
	}
	if v := c.Query("to"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, errors.NewAppError(errors.ErrCodeInvalidInput, "invalid to timestamp", err)
		}
		filter.ToMs = ms
	}
	return filter, nil
}

func parsePage(c *gin.Context) (storage.Page, error) {
	page := storage.Page{Number: 1, Size: 100}

	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page, errors.NewAppError(errors.ErrCodeInvalidInput, "invalid page number", err)
		}
		page.Number = n
	}
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return page, errors.NewAppError(errors.ErrCodeInvalidInput, "invalid page size", err)
		}
		page.Size = n
	}
	return page, nil
}

// GetVenues handles GET /api/v1/venues.
func (h *Handlers) GetVenues(c *gin.Context) {
	venues, err := h.venues.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	out := make([]venueDTO, 0, len(venues))
	for _, v := range venues {
		out = append(out, venueDTO{ID: v.ID, Code: string(v.Code)})
	}
	c.JSON(http.StatusOK, out)
}

// GetHistory handles GET /api/v1/funding/history.
func (h *Handlers) GetHistory(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		c.Error(err)
		return
	}
	page, err := parsePage(c)
	if err != nil {
		c.Error(err)
		return
	}

	records, err := h.history.GetByFilter(c.Request.Context(), filter, page)
	if err != nil {
		c.Error(err)
		return
	}
	total, err := h.history.GetCountByFilter(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, listResponse{Items: historyDTOs(records), Total: total})
}

// GetHistoryLatest handles GET /api/v1/funding/history/latest.
func (h *Handlers) GetHistoryLatest(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		c.Error(err)
		return
	}
	page, err := parsePage(c)
	if err != nil {
		c.Error(err)
		return
	}
	groupByVenue := c.Query("group_by_venue") == "true"

	records, err := h.history.GetLatestSymbolRates(c.Request.Context(), filter, groupByVenue, page)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, listResponse{Items: historyDTOs(records)})
}

// GetOnline handles GET /api/v1/funding/online.
func (h *Handlers) GetOnline(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		c.Error(err)
		return
	}
	page, err := parsePage(c)
	if err != nil {
		c.Error(err)
		return
	}

	records, err := h.online.GetByFilter(c.Request.Context(), filter, page)
	if err != nil {
		c.Error(err)
		return
	}
	total, err := h.online.GetCountByFilter(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, listResponse{Items: onlineDTOs(records), Total: total})
}

// GetStats handles GET /api/v1/funding/stats.
func (h *Handlers) GetStats(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		c.Error(err)
		return
	}

	historySymbols, err := h.history.GetUniqueSymbolsCount(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}
	historyRows, err := h.history.GetCountByFilter(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}
	onlineSymbols, err := h.online.GetUniqueSymbolsCount(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history_unique_symbols": historySymbols,
		"history_rows":           historyRows,
		"online_unique_symbols":  onlineSymbols,
	})
}

// GetOnlineLatest handles GET /api/v1/funding/online/latest. Responses are
// cached briefly: the table changes at most every few seconds.
func (h *Handlers) GetOnlineLatest(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		c.Error(err)
		return
	}

	cacheKey := "online:latest:" + strconv.Itoa(page.Number) + ":" + strconv.Itoa(page.Size)
	if h.cache != nil {
		var cached listResponse
		if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	records, err := h.online.GetLatestSymbolFundingRates(c.Request.Context(), page)
	if err != nil {
		c.Error(err)
		return
	}

	resp := listResponse{Items: onlineDTOs(records)}
	if h.cache != nil {
		if err := h.cache.Set(c.Request.Context(), cacheKey, resp, 5*time.Second); err != nil {
			h.logger.WithError(err).Debug("failed to cache online latest")
		}
	}
	c.JSON(http.StatusOK, resp)
}
