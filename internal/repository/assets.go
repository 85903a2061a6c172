package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"plantops.io/mis/internal/domain"
)

const assetColumns = `id, asset_code, asset_name, asset_location, bu_name, asset_type,
	manufacturer, model_number, model_name, install_date, asset_status, warranty_expiry,
	qr_code, created_at, updated_at`

func scanAsset(row pgx.Row) (*domain.Asset, error) {
	var a domain.Asset
	err := row.Scan(
		&a.ID, &a.AssetCode, &a.AssetName, &a.AssetLocation, &a.BUName, &a.AssetType,
		&a.Manufacturer, &a.ModelNumber, &a.ModelName, &a.InstallDate, &a.AssetStatus, &a.WarrantyExpiry,
		&a.QRCode, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AssetFilter narrows ListAssets. Empty fields match everything.
type AssetFilter struct {
	Status   domain.AssetStatus
	Type     domain.AssetType
	Location string
	Search   string
}

// ListAssets returns assets ordered by code.
func (q *Queries) ListAssets(ctx context.Context, f AssetFilter) ([]domain.Asset, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+assetColumns+`
		FROM asset_master
		WHERE ($1::text = '' OR asset_status = $1)
		  AND ($2::text = '' OR asset_type = $2)
		  AND ($3::text = '' OR asset_location ILIKE '%' || $3 || '%')
		  AND ($4::text = '' OR asset_code ILIKE '%' || $4 || '%' OR asset_name ILIKE '%' || $4 || '%')
		ORDER BY asset_code`,
		string(f.Status), string(f.Type), f.Location, f.Search,
	)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	out := []domain.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// GetAsset returns one asset by id.
func (q *Queries) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	a, err := scanAsset(q.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM asset_master WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// GetAssetByQR resolves a scanned QR label; the asset code is accepted as a fallback.
func (q *Queries) GetAssetByQR(ctx context.Context, code string) (*domain.Asset, error) {
	a, err := scanAsset(q.db.QueryRow(ctx, `
		SELECT `+assetColumns+`
		FROM asset_master
		WHERE qr_code = $1 OR asset_code = $1
		ORDER BY (qr_code = $1) DESC
		LIMIT 1`, code))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// CreateAssetParams is the validated input of CreateAsset.
type CreateAssetParams struct {
	AssetCode      string
	AssetName      string
	AssetLocation  string
	BUName         string
	AssetType      domain.AssetType
	Manufacturer   string
	ModelNumber    string
	ModelName      string
	InstallDate    *domain.Date
	AssetStatus    domain.AssetStatus
	WarrantyExpiry *domain.Date
	QRCode         string
}

// CreateAsset inserts an asset and returns the stored row.
func (q *Queries) CreateAsset(ctx context.Context, p CreateAssetParams) (*domain.Asset, error) {
	return scanAsset(q.db.QueryRow(ctx, `
		INSERT INTO asset_master (
			asset_code, asset_name, asset_location, bu_name, asset_type, manufacturer,
			model_number, model_name, install_date, asset_status, warranty_expiry, qr_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+assetColumns,
		p.AssetCode, p.AssetName, p.AssetLocation, p.BUName, p.AssetType, p.Manufacturer,
		p.ModelNumber, p.ModelName, p.InstallDate, p.AssetStatus, p.WarrantyExpiry, p.QRCode,
	))
}

// UpdateAssetParams holds a partial update; nil fields keep their stored value.
type UpdateAssetParams struct {
	ID             string
	AssetCode      *string
	AssetName      *string
	AssetLocation  *string
	BUName         *string
	AssetType      *domain.AssetType
	Manufacturer   *string
	ModelNumber    *string
	ModelName      *string
	InstallDate    *domain.Date
	AssetStatus    *domain.AssetStatus
	WarrantyExpiry *domain.Date
	QRCode         *string
}

// UpdateAsset applies a COALESCE-style partial update.
func (q *Queries) UpdateAsset(ctx context.Context, p UpdateAssetParams) (*domain.Asset, error) {
	a, err := scanAsset(q.db.QueryRow(ctx, `
		UPDATE asset_master SET
			asset_code      = COALESCE($2::text, asset_code),
			asset_name      = COALESCE($3::text, asset_name),
			asset_location  = COALESCE($4::text, asset_location),
			bu_name         = COALESCE($5::text, bu_name),
			asset_type      = COALESCE($6::text, asset_type),
			manufacturer    = COALESCE($7::text, manufacturer),
			model_number    = COALESCE($8::text, model_number),
			model_name      = COALESCE($9::text, model_name),
			install_date    = COALESCE($10::date, install_date),
			asset_status    = COALESCE($11::text, asset_status),
			warranty_expiry = COALESCE($12::date, warranty_expiry),
			qr_code         = COALESCE($13::text, qr_code),
			updated_at      = now()
		WHERE id = $1
		RETURNING `+assetColumns,
		p.ID, p.AssetCode, p.AssetName, p.AssetLocation, p.BUName, p.AssetType, p.Manufacturer,
		p.ModelNumber, p.ModelName, p.InstallDate, p.AssetStatus, p.WarrantyExpiry, p.QRCode,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// DeleteAsset removes an asset. PM schedules cascade; breakdowns keep their history.
func (q *Queries) DeleteAsset(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM asset_master WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
