// Package usecase holds the multi-step writes that must commit atomically.
//
// A stock movement, its inventory update and any reorder alert job it
// enqueues share one pgx transaction.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/governance/audit"
	"plantops.io/mis/internal/jobs"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/pkg/logger"
	"plantops.io/mis/internal/repository"
)

// JobInserter enqueues River jobs inside a caller's transaction.
// *river.Client[pgx.Tx] satisfies it.
type JobInserter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// SpareTransactionInput is the request to move stock. PMBDID and Purpose are
// the older names of ReferenceID and Remarks; the newer names win when both
// are sent.
type SpareTransactionInput struct {
	PartID      string `json:"part_id"`
	Direction   string `json:"direction"`
	Quantity    int    `json:"quantity"`
	PMBDType    string `json:"pm_bd_type"`
	ReferenceID string `json:"reference_id"`
	PMBDID      string `json:"pm_bd_id"`
	AssetID     string `json:"asset_id"`
	IssuedTo    string `json:"issued_to"`
	Remarks     string `json:"remarks"`
	Purpose     string `json:"purpose"`
	ActorID     string `json:"-"`
}

// MaxStockQuantity bounds quantities and balances to the INTEGER columns.
const MaxStockQuantity = math.MaxInt32

// SpareTransactionResult is the committed movement and the part after it.
type SpareTransactionResult struct {
	Transaction *domain.SpareTransaction `json:"transaction"`
	Inventory   *domain.SparePart        `json:"inventory"`
}

// SpareTransactionUseCase issues and returns spare parts.
type SpareTransactionUseCase struct {
	pool        *pgxpool.Pool
	jobs        JobInserter
	queries     *repository.Queries
	auditLogger *audit.Logger
}

// NewSpareTransactionUseCase creates the use case. jobs may be nil, in which
// case no reorder alerts are enqueued.
func NewSpareTransactionUseCase(pool *pgxpool.Pool, jobs JobInserter, auditLogger *audit.Logger) *SpareTransactionUseCase {
	return &SpareTransactionUseCase{
		pool:        pool,
		jobs:        jobs,
		queries:     repository.New(pool),
		auditLogger: auditLogger,
	}
}

// Validate checks and normalises the input without touching the database.
func (u *SpareTransactionUseCase) Validate(in SpareTransactionInput) (repository.InsertSpareTxParams, error) {
	var p repository.InsertSpareTxParams

	partID := strings.TrimSpace(in.PartID)
	if partID == "" {
		return p, apperrors.Validation("part_id", "part_id is required")
	}
	if _, err := uuid.Parse(partID); err != nil {
		return p, apperrors.Validation("part_id", "part_id must be a valid UUID")
	}
	p.PartID = partID

	dir, err := domain.ParseDirection(in.Direction)
	if err != nil {
		return p, err
	}
	p.Direction = dir

	if in.Quantity <= 0 {
		return p, apperrors.Validation("quantity", "quantity must be greater than 0")
	}
	if in.Quantity > MaxStockQuantity {
		return p, apperrors.Validation("quantity", fmt.Sprintf("quantity must be at most %d", MaxStockQuantity))
	}
	p.Quantity = in.Quantity

	if strings.TrimSpace(in.PMBDType) != "" {
		wt, err := domain.ParseWorkType(in.PMBDType)
		if err != nil {
			return p, err
		}
		p.PMBDType = &wt
	}

	refField, ref := "reference_id", strings.TrimSpace(in.ReferenceID)
	if ref == "" {
		refField, ref = "pm_bd_id", strings.TrimSpace(in.PMBDID)
	}
	if ref != "" {
		if _, err := uuid.Parse(ref); err != nil {
			return p, apperrors.Validation(refField, refField+" must be a valid UUID")
		}
		p.ReferenceID = &ref
	}
	if asset := strings.TrimSpace(in.AssetID); asset != "" {
		if _, err := uuid.Parse(asset); err != nil {
			return p, apperrors.Validation("asset_id", "asset_id must be a valid UUID")
		}
		p.AssetID = &asset
	}
	if actor := strings.TrimSpace(in.ActorID); actor != "" {
		p.CreatedBy = &actor
	}

	p.IssuedTo = strings.TrimSpace(in.IssuedTo)
	p.Remarks = strings.TrimSpace(in.Remarks)
	if p.Remarks == "" {
		p.Remarks = strings.TrimSpace(in.Purpose)
	}
	return p, nil
}

// Execute moves stock atomically:
// 1) locks the part row (SELECT ... FOR UPDATE),
// 2) rejects an issue larger than the stock on hand,
// 3) inserts the transaction with its balance_after,
// 4) writes the new stock,
// 5) enqueues spare_reorder_alert via InsertTx when at or below the reorder
// level, or resolves open alerts when a return lifts stock above it.
func (u *SpareTransactionUseCase) Execute(ctx context.Context, in SpareTransactionInput) (*SpareTransactionResult, error) {
	if u == nil || u.pool == nil || u.queries == nil {
		return nil, fmt.Errorf("spare transaction use case is not initialized")
	}
	params, err := u.Validate(in)
	if err != nil {
		return nil, err
	}

	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin spare transaction tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	qtx := u.queries.WithTx(tx)

	part, err := qtx.GetSparePartForUpdate(ctx, params.PartID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeSpareNotFound, "spare part not found")
		}
		return nil, fmt.Errorf("lock spare part %s: %w", params.PartID, err)
	}

	balance := part.CurrentStock
	switch params.Direction {
	case domain.DirectionIssue:
		if params.Quantity > part.CurrentStock {
			return nil, apperrors.ErrInsufficientStock(part.PartCode, part.CurrentStock, params.Quantity)
		}
		balance -= params.Quantity
	case domain.DirectionReturn:
		if part.CurrentStock > MaxStockQuantity-params.Quantity {
			return nil, apperrors.ErrStockLimitExceeded(part.PartCode, part.CurrentStock, params.Quantity, MaxStockQuantity)
		}
		balance += params.Quantity
	}
	params.BalanceAfter = balance

	txRow, err := qtx.InsertSpareTransaction(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("insert spare transaction for part %s: %w", params.PartID, err)
	}

	updated, err := qtx.SetSpareStock(ctx, params.PartID, balance)
	if err != nil {
		return nil, fmt.Errorf("update stock of part %s: %w", params.PartID, err)
	}

	if updated.NeedsReorder() {
		if u.jobs != nil {
			if _, err := u.jobs.InsertTx(ctx, tx, jobs.SpareReorderAlertArgs{
				PartID:       updated.ID,
				PartCode:     updated.PartCode,
				BalanceAfter: balance,
				ReorderLevel: updated.ReorderLevel,
			}, nil); err != nil {
				return nil, fmt.Errorf("enqueue spare_reorder_alert for part %s: %w", updated.ID, err)
			}
		}
	} else if params.Direction == domain.DirectionReturn {
		if _, err := qtx.ResolveReorderAlerts(ctx, updated.ID); err != nil {
			return nil, fmt.Errorf("resolve reorder alerts for part %s: %w", updated.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit spare transaction tx: %w", err)
	}

	logger.Info("spare stock moved",
		zap.String("part_code", updated.PartCode),
		zap.String("direction", string(params.Direction)),
		zap.Int("quantity", params.Quantity),
		zap.Int("balance_after", balance),
	)
	u.auditLogger.Record(ctx, "spare."+string(params.Direction), "spare_part", updated.ID, in.ActorID, map[string]interface{}{
		"transaction_id": txRow.ID,
		"quantity":       params.Quantity,
		"balance_after":  balance,
	})

	return &SpareTransactionResult{Transaction: txRow, Inventory: updated}, nil
}
