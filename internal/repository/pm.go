package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"plantops.io/mis/internal/domain"
)

const pmSelect = `
	SELECT p.id, p.asset_id, COALESCE(a.asset_code, ''), COALESCE(a.asset_name, ''),
		p.pm_title, p.frequency_interval, p.frequency_days, p.last_pm_date, p.next_pm_date,
		p.checklist_ref, p.responsible_person, p.status, p.created_at, p.updated_at
	FROM pm_schedule p
	LEFT JOIN asset_master a ON a.id = p.asset_id`

const pmReturning = `
	RETURNING id, asset_id, '', '', pm_title, frequency_interval, frequency_days,
		last_pm_date, next_pm_date, checklist_ref, responsible_person, status, created_at, updated_at`

func scanPM(row pgx.Row) (*domain.PMSchedule, error) {
	var p domain.PMSchedule
	err := row.Scan(
		&p.ID, &p.AssetID, &p.AssetCode, &p.AssetName,
		&p.PMTitle, &p.FrequencyInterval, &p.FrequencyDays, &p.LastPMDate, &p.NextPMDate,
		&p.ChecklistRef, &p.ResponsiblePerson, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PMFilter narrows ListPMSchedules.
type PMFilter struct {
	AssetID string
	Status  domain.PMStatus
}

// ListPMSchedules returns schedules ordered by next due date, soonest first.
func (q *Queries) ListPMSchedules(ctx context.Context, f PMFilter) ([]domain.PMSchedule, error) {
	rows, err := q.db.Query(ctx, pmSelect+`
		WHERE ($1::text = '' OR p.asset_id::text = $1)
		  AND ($2::text = '' OR p.status = $2)
		ORDER BY p.next_pm_date ASC NULLS LAST, p.pm_title`,
		f.AssetID, string(f.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("list pm schedules: %w", err)
	}
	defer rows.Close()

	out := []domain.PMSchedule{}
	for rows.Next() {
		p, err := scanPM(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pm schedule: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetPMSchedule returns one schedule by id.
func (q *Queries) GetPMSchedule(ctx context.Context, id string) (*domain.PMSchedule, error) {
	p, err := scanPM(q.db.QueryRow(ctx, pmSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// CreatePMParams is the validated input of CreatePMSchedule.
type CreatePMParams struct {
	AssetID           string
	PMTitle           string
	FrequencyInterval string
	FrequencyDays     int
	LastPMDate        *domain.Date
	NextPMDate        *domain.Date
	ChecklistRef      string
	ResponsiblePerson string
	Status            domain.PMStatus
}

// CreatePMSchedule inserts a schedule.
func (q *Queries) CreatePMSchedule(ctx context.Context, p CreatePMParams) (*domain.PMSchedule, error) {
	return scanPM(q.db.QueryRow(ctx, `
		INSERT INTO pm_schedule (
			asset_id, pm_title, frequency_interval, frequency_days, last_pm_date,
			next_pm_date, checklist_ref, responsible_person, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`+pmReturning,
		p.AssetID, p.PMTitle, p.FrequencyInterval, p.FrequencyDays, p.LastPMDate,
		p.NextPMDate, p.ChecklistRef, p.ResponsiblePerson, p.Status,
	))
}

// UpdatePMParams holds a partial update; nil fields keep their stored value.
type UpdatePMParams struct {
	ID                string
	AssetID           *string
	PMTitle           *string
	FrequencyInterval *string
	FrequencyDays     *int
	LastPMDate        *domain.Date
	NextPMDate        *domain.Date
	ChecklistRef      *string
	ResponsiblePerson *string
	Status            *domain.PMStatus
}

// UpdatePMSchedule applies a partial update.
func (q *Queries) UpdatePMSchedule(ctx context.Context, p UpdatePMParams) (*domain.PMSchedule, error) {
	s, err := scanPM(q.db.QueryRow(ctx, `
		UPDATE pm_schedule SET
			asset_id           = COALESCE($2::uuid, asset_id),
			pm_title           = COALESCE($3::text, pm_title),
			frequency_interval = COALESCE($4::text, frequency_interval),
			frequency_days     = COALESCE($5::integer, frequency_days),
			last_pm_date       = COALESCE($6::date, last_pm_date),
			next_pm_date       = COALESCE($7::date, next_pm_date),
			checklist_ref      = COALESCE($8::text, checklist_ref),
			responsible_person = COALESCE($9::text, responsible_person),
			status             = COALESCE($10::text, status),
			updated_at         = now()
		WHERE id = $1`+pmReturning,
		p.ID, p.AssetID, p.PMTitle, p.FrequencyInterval, p.FrequencyDays, p.LastPMDate,
		p.NextPMDate, p.ChecklistRef, p.ResponsiblePerson, p.Status,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// CompletePMSchedule records a completed PM on doneOn and rolls next_pm_date
// forward by the schedule's frequency.
func (q *Queries) CompletePMSchedule(ctx context.Context, id string, doneOn domain.Date) (*domain.PMSchedule, error) {
	s, err := scanPM(q.db.QueryRow(ctx, `
		UPDATE pm_schedule SET
			last_pm_date = $2::date,
			next_pm_date = $2::date + frequency_days,
			status       = 'scheduled',
			updated_at   = now()
		WHERE id = $1`+pmReturning,
		id, doneOn,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// MarkOverduePMSchedules flags scheduled plans whose next date is before asOf.
func (q *Queries) MarkOverduePMSchedules(ctx context.Context, asOf domain.Date) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE pm_schedule SET status = 'overdue', updated_at = now()
		WHERE status = 'scheduled' AND next_pm_date < $1::date`, asOf)
	if err != nil {
		return 0, fmt.Errorf("mark overdue pm schedules: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeletePMSchedule removes a schedule.
func (q *Queries) DeletePMSchedule(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM pm_schedule WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pm schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
