package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"plantops.io/mis/internal/domain"
)

const spareColumns = `id, part_code, part_name, part_no, min_level, reorder_level, current_stock,
	unit_cost, supplier, spare_location, bu_name, created_at, updated_at`

func scanSpare(row pgx.Row) (*domain.SparePart, error) {
	var p domain.SparePart
	err := row.Scan(
		&p.ID, &p.PartCode, &p.PartName, &p.PartNo, &p.MinLevel, &p.ReorderLevel, &p.CurrentStock,
		&p.UnitCost, &p.Supplier, &p.SpareLocation, &p.BUName, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectSpares(rows pgx.Rows) ([]domain.SparePart, error) {
	defer rows.Close()
	out := []domain.SparePart{}
	for rows.Next() {
		p, err := scanSpare(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spare part: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SpareFilter narrows ListSpareParts.
type SpareFilter struct {
	Search   string
	LowStock bool
}

// ListSpareParts returns parts ordered by code.
func (q *Queries) ListSpareParts(ctx context.Context, f SpareFilter) ([]domain.SparePart, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+spareColumns+`
		FROM spare_parts_inventory
		WHERE ($1::text = '' OR part_code ILIKE '%' || $1 || '%' OR part_name ILIKE '%' || $1 || '%')
		  AND (NOT $2::boolean OR current_stock <= reorder_level)
		ORDER BY part_code`,
		f.Search, f.LowStock,
	)
	if err != nil {
		return nil, fmt.Errorf("list spare parts: %w", err)
	}
	return collectSpares(rows)
}

// GetSparePart returns one part by id.
func (q *Queries) GetSparePart(ctx context.Context, id string) (*domain.SparePart, error) {
	p, err := scanSpare(q.db.QueryRow(ctx, `SELECT `+spareColumns+` FROM spare_parts_inventory WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// GetSparePartForUpdate locks a part row for the rest of the transaction.
func (q *Queries) GetSparePartForUpdate(ctx context.Context, id string) (*domain.SparePart, error) {
	p, err := scanSpare(q.db.QueryRow(ctx,
		`SELECT `+spareColumns+` FROM spare_parts_inventory WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// CreateSpareParams is the validated input of CreateSparePart.
type CreateSpareParams struct {
	PartCode      string
	PartName      string
	PartNo        string
	MinLevel      int
	ReorderLevel  int
	CurrentStock  int
	UnitCost      decimal.Decimal
	Supplier      string
	SpareLocation string
	BUName        string
}

// CreateSparePart inserts a part with its opening stock.
func (q *Queries) CreateSparePart(ctx context.Context, p CreateSpareParams) (*domain.SparePart, error) {
	return scanSpare(q.db.QueryRow(ctx, `
		INSERT INTO spare_parts_inventory (
			part_code, part_name, part_no, min_level, reorder_level, current_stock,
			unit_cost, supplier, spare_location, bu_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+spareColumns,
		p.PartCode, p.PartName, p.PartNo, p.MinLevel, p.ReorderLevel, p.CurrentStock,
		p.UnitCost, p.Supplier, p.SpareLocation, p.BUName,
	))
}

// UpdateSpareParams holds a partial update. Stock is not updatable here;
// it only moves through spare transactions.
type UpdateSpareParams struct {
	ID            string
	PartCode      *string
	PartName      *string
	PartNo        *string
	MinLevel      *int
	ReorderLevel  *int
	UnitCost      *decimal.Decimal
	Supplier      *string
	SpareLocation *string
	BUName        *string
}

// UpdateSparePart applies a partial update.
func (q *Queries) UpdateSparePart(ctx context.Context, p UpdateSpareParams) (*domain.SparePart, error) {
	s, err := scanSpare(q.db.QueryRow(ctx, `
		UPDATE spare_parts_inventory SET
			part_code      = COALESCE($2::text, part_code),
			part_name      = COALESCE($3::text, part_name),
			part_no        = COALESCE($4::text, part_no),
			min_level      = COALESCE($5::integer, min_level),
			reorder_level  = COALESCE($6::integer, reorder_level),
			unit_cost      = COALESCE($7::numeric, unit_cost),
			supplier       = COALESCE($8::text, supplier),
			spare_location = COALESCE($9::text, spare_location),
			bu_name        = COALESCE($10::text, bu_name),
			updated_at     = now()
		WHERE id = $1
		RETURNING `+spareColumns,
		p.ID, p.PartCode, p.PartName, p.PartNo, p.MinLevel, p.ReorderLevel,
		p.UnitCost, p.Supplier, p.SpareLocation, p.BUName,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// DeleteSparePart removes a part. Parts with transactions are protected by
// a RESTRICT foreign key; see ForeignKeyViolation.
func (q *Queries) DeleteSparePart(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM spare_parts_inventory WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete spare part: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSpareStock writes the new balance of a locked part.
func (q *Queries) SetSpareStock(ctx context.Context, id string, stock int) (*domain.SparePart, error) {
	p, err := scanSpare(q.db.QueryRow(ctx, `
		UPDATE spare_parts_inventory SET current_stock = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+spareColumns, id, stock))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

const spareTxColumns = `id, part_id, direction, quantity, balance_after, pm_bd_type,
	reference_id, asset_id, issued_to, remarks, created_by, created_at`

func scanSpareTx(row pgx.Row) (*domain.SpareTransaction, error) {
	var t domain.SpareTransaction
	err := row.Scan(
		&t.ID, &t.PartID, &t.Direction, &t.Quantity, &t.BalanceAfter, &t.PMBDType,
		&t.ReferenceID, &t.AssetID, &t.IssuedTo, &t.Remarks, &t.CreatedBy, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertSpareTxParams is one stock movement.
type InsertSpareTxParams struct {
	PartID       string
	Direction    domain.Direction
	Quantity     int
	BalanceAfter int
	PMBDType     *domain.WorkType
	ReferenceID  *string
	AssetID      *string
	IssuedTo     string
	Remarks      string
	CreatedBy    *string
}

// InsertSpareTransaction appends a stock movement.
func (q *Queries) InsertSpareTransaction(ctx context.Context, p InsertSpareTxParams) (*domain.SpareTransaction, error) {
	return scanSpareTx(q.db.QueryRow(ctx, `
		INSERT INTO spare_transactions (
			part_id, direction, quantity, balance_after, pm_bd_type,
			reference_id, asset_id, issued_to, remarks, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+spareTxColumns,
		p.PartID, p.Direction, p.Quantity, p.BalanceAfter, p.PMBDType,
		p.ReferenceID, p.AssetID, p.IssuedTo, p.Remarks, p.CreatedBy,
	))
}

// ListSpareTransactions returns a part's movements newest first.
func (q *Queries) ListSpareTransactions(ctx context.Context, partID string, limit int) ([]domain.SpareTransaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+spareTxColumns+`
		FROM spare_transactions
		WHERE part_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, partID, limit)
	if err != nil {
		return nil, fmt.Errorf("list spare transactions: %w", err)
	}
	defer rows.Close()

	out := []domain.SpareTransaction{}
	for rows.Next() {
		t, err := scanSpareTx(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spare transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CountSpareTransactions counts a part's movements.
func (q *Queries) CountSpareTransactions(ctx context.Context, partID string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM spare_transactions WHERE part_id = $1`, partID).Scan(&n)
	return n, err
}

// OpenReorderAlert records a reorder alert for a part at its current stock.
// It is a no-op while another alert for the part is still open, and when the
// part has since been restocked above its reorder level. The bool reports
// whether a row was inserted.
func (q *Queries) OpenReorderAlert(ctx context.Context, partID string) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO spare_reorder_alerts (part_id, current_stock, reorder_level)
		SELECT id, current_stock, reorder_level
		FROM spare_parts_inventory
		WHERE id = $1 AND current_stock <= reorder_level
		ON CONFLICT (part_id) WHERE status = 'open' DO NOTHING`, partID)
	if err != nil {
		return false, fmt.Errorf("open reorder alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResolveReorderAlerts closes open alerts of a part.
func (q *Queries) ResolveReorderAlerts(ctx context.Context, partID string) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE spare_reorder_alerts SET status = 'resolved', resolved_at = now()
		WHERE part_id = $1 AND status = 'open'`, partID)
	if err != nil {
		return 0, fmt.Errorf("resolve reorder alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListReorderAlerts returns alerts newest first. An empty status lists all.
func (q *Queries) ListReorderAlerts(ctx context.Context, status string) ([]domain.ReorderAlert, error) {
	rows, err := q.db.Query(ctx, `
		SELECT r.id, r.part_id, p.part_code, p.part_name, r.current_stock, r.reorder_level,
			r.status, r.created_at, r.resolved_at
		FROM spare_reorder_alerts r
		JOIN spare_parts_inventory p ON p.id = r.part_id
		WHERE ($1::text = '' OR r.status = $1)
		ORDER BY r.created_at DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("list reorder alerts: %w", err)
	}
	defer rows.Close()

	out := []domain.ReorderAlert{}
	for rows.Next() {
		var a domain.ReorderAlert
		if err := rows.Scan(&a.ID, &a.PartID, &a.PartCode, &a.PartName, &a.CurrentStock,
			&a.ReorderLevel, &a.Status, &a.CreatedAt, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan reorder alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
