package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"fundsync/internal/database"
	"fundsync/internal/errors"
	"fundsync/internal/model"
)

// OnlineRepository provides access to the funding_online table.
type OnlineRepository struct {
	db *database.DB
}

// NewOnlineRepository creates an online repository.
func NewOnlineRepository(db *database.DB) *OnlineRepository {
	return &OnlineRepository{db: db}
}

const onlineColumns = "id, venue_id, symbol, name, interval_hours, rate, open_interest, ts_rate, fetched_at"

func scanOnlineRows(rows *sql.Rows) ([]model.OnlineRecord, error) {
	var records []model.OnlineRecord
	for rows.Next() {
		var rec model.OnlineRecord
		if err := rows.Scan(&rec.ID, &rec.VenueID, &rec.Symbol, &rec.Name,
			&rec.IntervalHours, &rec.Rate, &rec.OpenInterest, &rec.TsRate, &rec.FetchedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetByVenue returns all online rows for one venue.
func (r *OnlineRepository) GetByVenue(ctx context.Context, venueID uuid.UUID) ([]model.OnlineRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM funding_online WHERE venue_id = $1", onlineColumns), venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query online rows: %w", err)
	}
	defer rows.Close()

	return scanOnlineRows(rows)
}

// GetByFilter returns online rows matching the filter.
func (r *OnlineRepository) GetByFilter(ctx context.Context, filter Filter, page Page) ([]model.OnlineRecord, error) {
	where, args := filter.whereClause(1)
	query := fmt.Sprintf("SELECT %s FROM funding_online%s ORDER BY symbol%s",
		onlineColumns, where, page.limitClause())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query online rows: %w", err)
	}
	defer rows.Close()

	return scanOnlineRows(rows)
}

// GetLatestSymbolFundingRates returns, per unique symbol, the online row
// with the maximum ts_rate across venues.
func (r *OnlineRepository) GetLatestSymbolFundingRates(ctx context.Context, page Page) ([]model.OnlineRecord, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT ON (symbol) %s FROM funding_online
		 ORDER BY symbol, ts_rate DESC%s`, onlineColumns, page.limitClause())

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest symbol funding rates: %w", err)
	}
	defer rows.Close()

	return scanOnlineRows(rows)
}

// GetUniqueSymbolsCount returns the number of distinct online symbols.
func (r *OnlineRepository) GetUniqueSymbolsCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT symbol) FROM funding_online").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unique online symbols: %w", err)
	}
	return count, nil
}

// GetCountByFilter returns the number of online rows matching the filter.
func (r *OnlineRepository) GetCountByFilter(ctx context.Context, filter Filter) (int64, error) {
	where, args := filter.whereClause(1)
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM funding_online"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count online rows: %w", err)
	}
	return count, nil
}

// UnitOfWork buffers online writes for one atomic commit.
type UnitOfWork interface {
	AddRange(rows []model.OnlineRecord)
	UpdateRange(rows []model.OnlineRecord)
	Save(ctx context.Context) error
}

// NewUnitOfWork opens a buffered write set against the online table.
func (r *OnlineRepository) NewUnitOfWork() UnitOfWork {
	return &OnlineUnitOfWork{db: r.db}
}

// OnlineUnitOfWork buffers creates and updates and commits them atomically:
// updates first, then creates, one transaction.
type OnlineUnitOfWork struct {
	db      *database.DB
	creates []model.OnlineRecord
	updates []model.OnlineRecord
}

// AddRange buffers rows to insert.
func (u *OnlineUnitOfWork) AddRange(rows []model.OnlineRecord) {
	u.creates = append(u.creates, rows...)
}

// UpdateRange buffers rows to update in place (matched by id).
func (u *OnlineUnitOfWork) UpdateRange(rows []model.OnlineRecord) {
	u.updates = append(u.updates, rows...)
}

// Save commits the buffered writes in one transaction.
func (u *OnlineUnitOfWork) Save(ctx context.Context) error {
	if len(u.creates) == 0 && len(u.updates) == 0 {
		return nil
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeDBTransaction, "failed to begin online save")
	}
	defer tx.Rollback()

	for _, row := range u.updates {
		_, err := tx.ExecContext(ctx,
			`UPDATE funding_online
			 SET rate = $1, open_interest = $2, ts_rate = $3, fetched_at = $4, interval_hours = $5
			 WHERE id = $6`,
			row.Rate, row.OpenInterest, row.TsRate, row.FetchedAt, row.IntervalHours, row.ID)
		if err != nil {
			return errors.WrapError(err, errors.ErrCodeDBQuery, "online update failed")
		}
	}

	for _, row := range u.creates {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO funding_online (`+onlineColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			row.ID, row.VenueID, row.Symbol, row.Name, row.IntervalHours,
			row.Rate, row.OpenInterest, row.TsRate, row.FetchedAt)
		if err != nil {
			return errors.WrapError(err, errors.ErrCodeDBQuery, "online insert failed")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapError(err, errors.ErrCodeDBTransaction, "failed to commit online save")
	}
	return nil
}
