package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VenueCode identifies a supported trading venue.
type VenueCode string

const (
	VenueBinance     VenueCode = "BINANCE"
	VenueBybit       VenueCode = "BYBIT"
	VenueHyperliquid VenueCode = "HYPERLIQUID"
	VenueMexc        VenueCode = "MEXC"
)

// AllVenueCodes lists every venue the engine synchronizes.
var AllVenueCodes = []VenueCode{VenueBinance, VenueBybit, VenueHyperliquid, VenueMexc}

// ParseVenueCode converts a string into a VenueCode.
func ParseVenueCode(s string) (VenueCode, error) {
	code := VenueCode(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range AllVenueCodes {
		if code == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown venue code: %s", s)
}

// Venue represents a trading venue row from the exchanges table.
type Venue struct {
	ID   uuid.UUID
	Code VenueCode
}

// HistoryRecord is one funding observation, append-only.
type HistoryRecord struct {
	ID            uuid.UUID
	VenueID       uuid.UUID
	Symbol        string // normalized form, see NormalizeSymbol
	Name          string // raw venue string
	IntervalHours int
	Rate          decimal.Decimal
	OpenInterest  decimal.Decimal
	TsRate        int64 // funding event time, epoch ms
	FetchedAt     int64 // ingestion time, epoch ms
}

// OnlineRecord is the latest funding observation per (symbol, venue),
// updated in place. ID is stable across updates.
type OnlineRecord struct {
	ID            uuid.UUID
	VenueID       uuid.UUID
	Symbol        string
	Name          string
	IntervalHours int
	Rate          decimal.Decimal
	OpenInterest  decimal.Decimal
	TsRate        int64
	FetchedAt     int64
}

// NormalizeSymbol strips separators and uppercases a raw venue symbol.
// "btc_usdt" and "BTC-USDT" both normalize to "BTCUSDT".
func NormalizeSymbol(s string) string {
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToUpper(s)
}
