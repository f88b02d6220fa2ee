package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fundsync/internal/database"
	"fundsync/internal/errors"
	"fundsync/internal/model"
)

// bulkChunkSize caps the number of rows staged per copy transaction.
const bulkChunkSize = 10000

// HistoryRepository provides access to the funding_history table.
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a history repository.
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// BulkInsert streams rows into funding_history via a temp staging table and
// COPY, in chunks of at most bulkChunkSize. The write is committed per
// chunk; no separate save step is required.
func (r *HistoryRepository) BulkInsert(ctx context.Context, rows []model.HistoryRecord) error {
	for start := 0; start < len(rows); start += bulkChunkSize {
		end := start + bulkChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := r.bulkInsertChunk(ctx, rows[start:end]); err != nil {
			return errors.WrapError(err, errors.ErrCodeDBTransaction, "history bulk insert failed")
		}
	}
	return nil
}

func (r *HistoryRepository) bulkInsertChunk(ctx context.Context, rows []model.HistoryRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`CREATE TEMP TABLE staging_funding_history
		 (LIKE funding_history INCLUDING DEFAULTS)
		 ON COMMIT DROP`)
	if err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("staging_funding_history",
		"id", "venue_id", "symbol", "name", "interval_hours",
		"rate", "open_interest", "ts_rate", "fetched_at"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.ID, row.VenueID, row.Symbol, row.Name, row.IntervalHours,
			row.Rate.String(), row.OpenInterest.String(), row.TsRate, row.FetchedAt)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to stage row: %w", err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO funding_history
		 SELECT * FROM staging_funding_history`)
	if err != nil {
		return fmt.Errorf("failed to move staged rows: %w", err)
	}

	return tx.Commit()
}

const historyColumns = "id, venue_id, symbol, name, interval_hours, rate, open_interest, ts_rate, fetched_at"

func scanHistoryRows(rows *sql.Rows) ([]model.HistoryRecord, error) {
	var records []model.HistoryRecord
	for rows.Next() {
		var rec model.HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.VenueID, &rec.Symbol, &rec.Name,
			&rec.IntervalHours, &rec.Rate, &rec.OpenInterest, &rec.TsRate, &rec.FetchedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetLatestSymbolRates returns, per unique symbol (or symbol × venue when
// grouped), the row with the maximum ts_rate.
func (r *HistoryRepository) GetLatestSymbolRates(ctx context.Context, filter Filter, groupByVenue bool, page Page) ([]model.HistoryRecord, error) {
	distinct := "symbol"
	order := "symbol, ts_rate DESC"
	if groupByVenue {
		distinct = "symbol, venue_id"
		order = "symbol, venue_id, ts_rate DESC"
	}

	where, args := filter.whereClause(1)
	query := fmt.Sprintf(
		"SELECT DISTINCT ON (%s) %s FROM funding_history%s ORDER BY %s%s",
		distinct, historyColumns, where, order, page.limitClause())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest symbol rates: %w", err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

// GetByFilter returns history rows matching the filter, newest first.
func (r *HistoryRepository) GetByFilter(ctx context.Context, filter Filter, page Page) ([]model.HistoryRecord, error) {
	where, args := filter.whereClause(1)
	query := fmt.Sprintf(
		"SELECT %s FROM funding_history%s ORDER BY ts_rate DESC%s",
		historyColumns, where, page.limitClause())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

// GetUniqueSymbolsCount returns the number of distinct symbols matching the
// filter.
func (r *HistoryRepository) GetUniqueSymbolsCount(ctx context.Context, filter Filter) (int64, error) {
	where, args := filter.whereClause(1)
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT symbol) FROM funding_history"+where, args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unique symbols: %w", err)
	}
	return count, nil
}

// GetCountByFilter returns the number of history rows matching the filter.
func (r *HistoryRepository) GetCountByFilter(ctx context.Context, filter Filter) (int64, error) {
	where, args := filter.whereClause(1)
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM funding_history"+where, args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history rows: %w", err)
	}
	return count, nil
}

// CountByVenue returns the number of history rows for one venue. The
// history pipeline uses it to choose between cold-start and incremental.
func (r *HistoryRepository) CountByVenue(ctx context.Context, venueID uuid.UUID) (int64, error) {
	return r.GetCountByFilter(ctx, Filter{VenueID: venueID})
}

// GetLatestByVenue returns the newest row per raw name for one venue. The
// incremental history sync reconciles against these.
func (r *HistoryRepository) GetLatestByVenue(ctx context.Context, venueID uuid.UUID) ([]model.HistoryRecord, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT ON (lower(name)) %s FROM funding_history
		 WHERE venue_id = $1 ORDER BY lower(name), ts_rate DESC`, historyColumns)

	rows, err := r.db.QueryContext(ctx, query, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest rows by venue: %w", err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}
