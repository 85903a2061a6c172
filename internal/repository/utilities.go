package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"plantops.io/mis/internal/domain"
)

const utilityColumns = `id, utility_type, meter_point, reading_unit, reading_value, "timestamp",
	asset_id, business_unit_id, location_id, remarks, source, created_at`

func scanUtility(row pgx.Row) (*domain.UtilityLog, error) {
	var u domain.UtilityLog
	err := row.Scan(
		&u.ID, &u.UtilityType, &u.MeterPoint, &u.ReadingUnit, &u.ReadingValue, &u.Timestamp,
		&u.AssetID, &u.BusinessUnitID, &u.LocationID, &u.Remarks, &u.Source, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UtilityFilter narrows ListUtilityLogs. Zero times are open bounds.
type UtilityFilter struct {
	Type       domain.UtilityType
	MeterPoint string
	From       time.Time
	To         time.Time
	Limit      int
}

// ListUtilityLogs returns readings newest first.
func (q *Queries) ListUtilityLogs(ctx context.Context, f UtilityFilter) ([]domain.UtilityLog, error) {
	var from, to *time.Time
	if !f.From.IsZero() {
		from = &f.From
	}
	if !f.To.IsZero() {
		to = &f.To
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+utilityColumns+`
		FROM utility_logs
		WHERE ($1::text = '' OR utility_type = $1)
		  AND ($2::text = '' OR meter_point = $2)
		  AND ($3::timestamptz IS NULL OR "timestamp" >= $3)
		  AND ($4::timestamptz IS NULL OR "timestamp" < $4)
		ORDER BY "timestamp" DESC, id
		LIMIT $5`,
		string(f.Type), f.MeterPoint, from, to, f.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list utility logs: %w", err)
	}
	defer rows.Close()

	out := []domain.UtilityLog{}
	for rows.Next() {
		u, err := scanUtility(rows)
		if err != nil {
			return nil, fmt.Errorf("scan utility log: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// InsertUtilityParams is one validated reading.
type InsertUtilityParams struct {
	UtilityType    domain.UtilityType
	MeterPoint     string
	ReadingUnit    string
	ReadingValue   decimal.Decimal
	Timestamp      time.Time
	AssetID        *string
	BusinessUnitID *string
	LocationID     *string
	Remarks        string
	Source         string
}

// InsertUtilityLog appends a reading. Utility logs are never updated.
func (q *Queries) InsertUtilityLog(ctx context.Context, p InsertUtilityParams) (*domain.UtilityLog, error) {
	source := p.Source
	if source == "" {
		source = "manual"
	}
	return scanUtility(q.db.QueryRow(ctx, `
		INSERT INTO utility_logs (
			utility_type, meter_point, reading_unit, reading_value, "timestamp",
			asset_id, business_unit_id, location_id, remarks, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+utilityColumns,
		p.UtilityType, p.MeterPoint, p.ReadingUnit, p.ReadingValue, p.Timestamp,
		p.AssetID, p.BusinessUnitID, p.LocationID, p.Remarks, source,
	))
}
