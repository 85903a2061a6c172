package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"plantops.io/mis/internal/domain"
)

const breakdownSelect = `
	SELECT id, bd_code, shift_id, entry_date, entry_time, asset_id, asset_location, bu_name,
		operator_name, key_issue, nature_of_complaint, note, bd_status, reported_by,
		created_at, updated_at, asset_code, asset_name,
		engineer_id, action_taken, engineer_findings, job_start, job_completion_date,
		responsible_person, spare_usage_id, engineer_created_at, engineer_updated_at
	FROM breakdown_entry_view`

func scanBreakdown(row pgx.Row) (*domain.Breakdown, error) {
	var (
		b          domain.Breakdown
		e          domain.BreakdownEngineerEntry
		engineerID *string
		engCreated *time.Time
		engUpdated *time.Time
	)
	err := row.Scan(
		&b.ID, &b.BDCode, &b.ShiftID, &b.EntryDate, &b.EntryTime, &b.AssetID, &b.AssetLocation, &b.BUName,
		&b.OperatorName, &b.KeyIssue, &b.NatureOfComplaint, &b.Note, &b.BDStatus, &b.ReportedBy,
		&b.CreatedAt, &b.UpdatedAt, &b.AssetCode, &b.AssetName,
		&engineerID, &e.ActionTaken, &e.EngineerFindings, &e.JobStart, &e.JobCompletionDate,
		&e.ResponsiblePerson, &e.SpareUsageID, &engCreated, &engUpdated,
	)
	if err != nil {
		return nil, err
	}
	if engineerID != nil {
		e.ID = *engineerID
		e.BDOperatorID = b.ID
		if engCreated != nil {
			e.CreatedAt = *engCreated
		}
		if engUpdated != nil {
			e.UpdatedAt = *engUpdated
		}
		b.Engineer = &e
	}
	return &b, nil
}

// BreakdownFilter narrows ListBreakdowns.
type BreakdownFilter struct {
	Date    *domain.Date
	Status  domain.BreakdownStatus
	AssetID string
}

// ListBreakdowns returns breakdowns newest first.
func (q *Queries) ListBreakdowns(ctx context.Context, f BreakdownFilter) ([]domain.Breakdown, error) {
	rows, err := q.db.Query(ctx, breakdownSelect+`
		WHERE ($1::date IS NULL OR entry_date = $1::date)
		  AND ($2::text = '' OR bd_status = $2)
		  AND ($3::text = '' OR asset_id::text = $3)
		ORDER BY entry_date DESC, entry_time DESC, created_at DESC`,
		f.Date, string(f.Status), f.AssetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list breakdowns: %w", err)
	}
	defer rows.Close()

	out := []domain.Breakdown{}
	for rows.Next() {
		b, err := scanBreakdown(rows)
		if err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// GetBreakdown returns an operator entry joined with its engineer entry.
func (q *Queries) GetBreakdown(ctx context.Context, id string) (*domain.Breakdown, error) {
	b, err := scanBreakdown(q.db.QueryRow(ctx, breakdownSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// CreateBreakdownParams is the validated operator entry.
type CreateBreakdownParams struct {
	BDCode            string
	ShiftID           domain.Shift
	EntryDate         domain.Date
	EntryTime         string
	AssetID           *string
	AssetLocation     string
	BUName            string
	OperatorName      string
	KeyIssue          string
	NatureOfComplaint string
	Note              string
	ReportedBy        *string
}

// CreateOperatorEntry inserts a new open breakdown and returns its id.
func (q *Queries) CreateOperatorEntry(ctx context.Context, p CreateBreakdownParams) (string, error) {
	var id string
	err := q.db.QueryRow(ctx, `
		INSERT INTO bd_entry_operator (
			bd_code, shift_id, entry_date, entry_time, asset_id, asset_location, bu_name,
			operator_name, key_issue, nature_of_complaint, note, reported_by
		) VALUES ($1, $2, $3, $4::time, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		p.BDCode, p.ShiftID, p.EntryDate, p.EntryTime, p.AssetID, p.AssetLocation, p.BUName,
		p.OperatorName, p.KeyIssue, p.NatureOfComplaint, p.Note, p.ReportedBy,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateBreakdownParams holds a partial operator entry update.
type UpdateBreakdownParams struct {
	ID                string
	ShiftID           *domain.Shift
	EntryDate         *domain.Date
	EntryTime         *string
	AssetID           *string
	AssetLocation     *string
	BUName            *string
	OperatorName      *string
	KeyIssue          *string
	NatureOfComplaint *string
	Note              *string
	BDStatus          *domain.BreakdownStatus
}

// UpdateOperatorEntry applies a partial update.
func (q *Queries) UpdateOperatorEntry(ctx context.Context, p UpdateBreakdownParams) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE bd_entry_operator SET
			shift_id            = COALESCE($2::text, shift_id),
			entry_date          = COALESCE($3::date, entry_date),
			entry_time          = COALESCE($4::time, entry_time),
			asset_id            = COALESCE($5::uuid, asset_id),
			asset_location      = COALESCE($6::text, asset_location),
			bu_name             = COALESCE($7::text, bu_name),
			operator_name       = COALESCE($8::text, operator_name),
			key_issue           = COALESCE($9::text, key_issue),
			nature_of_complaint = COALESCE($10::text, nature_of_complaint),
			note                = COALESCE($11::text, note),
			bd_status           = COALESCE($12::text, bd_status),
			updated_at          = now()
		WHERE id = $1`,
		p.ID, p.ShiftID, p.EntryDate, p.EntryTime, p.AssetID, p.AssetLocation, p.BUName,
		p.OperatorName, p.KeyIssue, p.NatureOfComplaint, p.Note, p.BDStatus,
	)
	if err != nil {
		return fmt.Errorf("update breakdown: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBreakdownStatusForUpdate locks the operator row and returns its status.
// Callers must be inside a transaction.
func (q *Queries) GetBreakdownStatusForUpdate(ctx context.Context, id string) (domain.BreakdownStatus, error) {
	var status domain.BreakdownStatus
	err := q.db.QueryRow(ctx, `SELECT bd_status FROM bd_entry_operator WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		return "", notFound(err)
	}
	return status, nil
}

// UpsertEngineerParams is the engineer's entry. Empty strings and nil times
// keep an existing value.
type UpsertEngineerParams struct {
	BDOperatorID      string
	ActionTaken       string
	EngineerFindings  string
	JobStart          *time.Time
	JobCompletionDate *time.Time
	ResponsiblePerson string
	SpareUsageID      *string
}

// UpsertEngineerEntry creates or merges the single engineer entry of a breakdown.
func (q *Queries) UpsertEngineerEntry(ctx context.Context, p UpsertEngineerParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO bd_entry_engineer (
			bd_operator_id, action_taken, engineer_findings, job_start,
			job_completion_date, responsible_person, spare_usage_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (bd_operator_id) DO UPDATE SET
			action_taken        = COALESCE(NULLIF(EXCLUDED.action_taken, ''), bd_entry_engineer.action_taken),
			engineer_findings   = COALESCE(NULLIF(EXCLUDED.engineer_findings, ''), bd_entry_engineer.engineer_findings),
			job_start           = COALESCE(EXCLUDED.job_start, bd_entry_engineer.job_start),
			job_completion_date = COALESCE(EXCLUDED.job_completion_date, bd_entry_engineer.job_completion_date),
			responsible_person  = COALESCE(NULLIF(EXCLUDED.responsible_person, ''), bd_entry_engineer.responsible_person),
			spare_usage_id      = COALESCE(EXCLUDED.spare_usage_id, bd_entry_engineer.spare_usage_id),
			updated_at          = now()`,
		p.BDOperatorID, p.ActionTaken, p.EngineerFindings, p.JobStart,
		p.JobCompletionDate, p.ResponsiblePerson, p.SpareUsageID,
	)
	if err != nil {
		return fmt.Errorf("upsert engineer entry: %w", err)
	}
	return nil
}

// ListKPIRecords returns the timing of breakdowns reported in [from, to].
func (q *Queries) ListKPIRecords(ctx context.Context, from, to domain.Date) ([]domain.RepairRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT COALESCE(o.asset_id::text, ''),
			(o.entry_date + o.entry_time) AT TIME ZONE 'UTC',
			e.job_start,
			e.job_completion_date
		FROM bd_entry_operator o
		LEFT JOIN bd_entry_engineer e ON e.bd_operator_id = o.id
		WHERE o.entry_date BETWEEN $1::date AND $2::date
		ORDER BY o.entry_date, o.entry_time`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list kpi records: %w", err)
	}
	defer rows.Close()

	out := []domain.RepairRecord{}
	for rows.Next() {
		var r domain.RepairRecord
		if err := rows.Scan(&r.AssetID, &r.ReportedAt, &r.StartedAt, &r.RepairedAt); err != nil {
			return nil, fmt.Errorf("scan kpi record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
