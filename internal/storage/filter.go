package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Filter narrows funding-rate queries. Zero values mean "no constraint".
type Filter struct {
	VenueID uuid.UUID
	Symbol  string // matched against the normalized symbol column
	Name    string // matched against the raw name column, case-insensitive
	FromMs  int64  // inclusive lower bound on ts_rate
	ToMs    int64  // inclusive upper bound on ts_rate
}

// whereClause renders the filter into a WHERE fragment and its arguments.
// argOffset is the index of the first placeholder to use.
func (f Filter) whereClause(argOffset int) (string, []interface{}) {
	var conds []string
	var args []interface{}

	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", argOffset+len(args)-1)
	}

	if f.VenueID != uuid.Nil {
		conds = append(conds, "venue_id = "+next(f.VenueID))
	}
	if f.Symbol != "" {
		conds = append(conds, "symbol = "+next(f.Symbol))
	}
	if f.Name != "" {
		conds = append(conds, "lower(name) = lower("+next(f.Name)+")")
	}
	if f.FromMs > 0 {
		conds = append(conds, "ts_rate >= "+next(f.FromMs))
	}
	if f.ToMs > 0 {
		conds = append(conds, "ts_rate <= "+next(f.ToMs))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Page describes pagination. Size 0 disables the limit.
type Page struct {
	Number int
	Size   int
}

func (p Page) limitClause() string {
	if p.Size <= 0 {
		return ""
	}
	offset := 0
	if p.Number > 1 {
		offset = (p.Number - 1) * p.Size
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.Size, offset)
}
