package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/jobs"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/pkg/logger"
	"plantops.io/mis/internal/repository"
	"plantops.io/mis/internal/testutil"
)

func init() {
	_ = logger.Init("error", "json")
}

const validPartID = "0b8f3c1e-6a57-4f7a-9d38-2f6d8b1c9e01"

func TestSpareTransactionValidate(t *testing.T) {
	t.Parallel()

	u := &SpareTransactionUseCase{}

	tests := []struct {
		name     string
		in       SpareTransactionInput
		wantCode string
	}{
		{name: "valid issue", in: SpareTransactionInput{PartID: validPartID, Direction: "issue", Quantity: 2}},
		{name: "valid return with type", in: SpareTransactionInput{PartID: validPartID, Direction: "RETURN", Quantity: 1, PMBDType: "PM"}},
		{name: "missing part", in: SpareTransactionInput{Direction: "issue", Quantity: 1}, wantCode: apperrors.CodeValidationFailed},
		{name: "malformed part", in: SpareTransactionInput{PartID: "abc", Direction: "issue", Quantity: 1}, wantCode: apperrors.CodeValidationFailed},
		{name: "bad direction", in: SpareTransactionInput{PartID: validPartID, Direction: "transfer", Quantity: 1}, wantCode: apperrors.CodeInvalidEnumValue},
		{name: "zero quantity", in: SpareTransactionInput{PartID: validPartID, Direction: "issue"}, wantCode: apperrors.CodeValidationFailed},
		{name: "quantity beyond column range", in: SpareTransactionInput{PartID: validPartID, Direction: "return", Quantity: MaxStockQuantity + 1}, wantCode: apperrors.CodeValidationFailed},
		{name: "bad legacy reference", in: SpareTransactionInput{PartID: validPartID, Direction: "issue", Quantity: 1, PMBDID: "7"}, wantCode: apperrors.CodeValidationFailed},
		{name: "bad asset", in: SpareTransactionInput{PartID: validPartID, Direction: "issue", Quantity: 1, AssetID: "press-1"}, wantCode: apperrors.CodeValidationFailed},
		{name: "negative quantity", in: SpareTransactionInput{PartID: validPartID, Direction: "issue", Quantity: -3}, wantCode: apperrors.CodeValidationFailed},
		{name: "bad work type", in: SpareTransactionInput{PartID: validPartID, Direction: "issue", Quantity: 1, PMBDType: "cm"}, wantCode: apperrors.CodeInvalidEnumValue},
		{name: "bad reference", in: SpareTransactionInput{PartID: validPartID, Direction: "issue", Quantity: 1, ReferenceID: "x"}, wantCode: apperrors.CodeValidationFailed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := u.Validate(tc.in)
			if tc.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, validPartID, p.PartID)
				return
			}
			appErr, ok := apperrors.IsAppError(err)
			require.True(t, ok, "want AppError, got %v", err)
			assert.Equal(t, tc.wantCode, appErr.Code)
			assert.Equal(t, 400, appErr.HTTPStatus)
		})
	}
}

func TestSpareTransactionValidate_Normalizes(t *testing.T) {
	t.Parallel()

	p, err := (&SpareTransactionUseCase{}).Validate(SpareTransactionInput{
		PartID: " " + validPartID + " ", Direction: " Issue ", Quantity: 1, PMBDType: "bd",
		IssuedTo: "  line 3 ", ActorID: "u-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionIssue, p.Direction)
	require.NotNil(t, p.PMBDType)
	assert.Equal(t, domain.WorkTypeBD, *p.PMBDType)
	assert.Equal(t, "line 3", p.IssuedTo)
	require.NotNil(t, p.CreatedBy)
	assert.Nil(t, p.ReferenceID)
}

func TestSpareTransactionValidate_LegacyFieldNames(t *testing.T) {
	t.Parallel()

	const bdID = "4d2b7c9a-1f3e-4a6b-8c5d-9e0f1a2b3c4d"
	const assetID = "6a1c2d3e-4f50-4617-8899-aabbccddeeff"
	u := &SpareTransactionUseCase{}

	p, err := u.Validate(SpareTransactionInput{
		PartID: validPartID, Direction: "issue", Quantity: 1,
		PMBDID: bdID, AssetID: assetID, Purpose: " spindle rebuild ",
	})
	require.NoError(t, err)
	require.NotNil(t, p.ReferenceID)
	assert.Equal(t, bdID, *p.ReferenceID)
	require.NotNil(t, p.AssetID)
	assert.Equal(t, assetID, *p.AssetID)
	assert.Equal(t, "spindle rebuild", p.Remarks)

	p, err = u.Validate(SpareTransactionInput{
		PartID: validPartID, Direction: "issue", Quantity: 1,
		ReferenceID: validPartID, PMBDID: bdID, Remarks: "new", Purpose: "old",
	})
	require.NoError(t, err)
	assert.Equal(t, validPartID, *p.ReferenceID)
	assert.Equal(t, "new", p.Remarks)
}

func TestSpareTransactionExecute_Uninitialized(t *testing.T) {
	t.Parallel()

	var u *SpareTransactionUseCase
	_, err := u.Execute(context.Background(), SpareTransactionInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

type stockFixture struct {
	pool *pgxpool.Pool
	q    *repository.Queries
	uc   *SpareTransactionUseCase
}

func newStockFixture(t *testing.T) *stockFixture {
	t.Helper()
	pool := testutil.OpenPGXPool(t, t.Name())
	q := repository.New(pool)

	workers := river.NewWorkers()
	require.NoError(t, jobs.RegisterWorkers(workers, q, nil))
	// Insert-only client: no queues, so nothing is worked during the test.
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{Workers: workers})
	require.NoError(t, err)

	return &stockFixture{pool: pool, q: q, uc: NewSpareTransactionUseCase(pool, client, nil)}
}

func (f *stockFixture) part(t *testing.T, stock, reorder int) *domain.SparePart {
	t.Helper()
	p, err := f.q.CreateSparePart(context.Background(), repository.CreateSpareParams{
		PartCode: "P-" + t.Name(), PartName: "Seal kit", CurrentStock: stock, ReorderLevel: reorder,
		UnitCost: decimal.NewFromInt(40),
	})
	require.NoError(t, err)
	return p
}

func (f *stockFixture) reorderJobs(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM river_job WHERE kind = 'spare_reorder_alert'`).Scan(&n))
	return n
}

func TestSpareTransactionExecute_IssueWithinStock(t *testing.T) {
	f := newStockFixture(t)
	ctx := context.Background()
	part := f.part(t, 10, 2)

	res, err := f.uc.Execute(ctx, SpareTransactionInput{PartID: part.ID, Direction: "issue", Quantity: 4, PMBDType: "bd"})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Inventory.CurrentStock)
	assert.Equal(t, 6, res.Transaction.BalanceAfter)
	assert.Equal(t, domain.DirectionIssue, res.Transaction.Direction)

	stored, err := f.q.GetSparePart(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.CurrentStock)

	txs, err := f.q.ListSpareTransactions(ctx, part.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 6, txs[0].BalanceAfter)
	assert.Equal(t, 0, f.reorderJobs(t))
}

func TestSpareTransactionExecute_InsufficientStockChangesNothing(t *testing.T) {
	f := newStockFixture(t)
	ctx := context.Background()
	part := f.part(t, 3, 1)

	_, err := f.uc.Execute(ctx, SpareTransactionInput{PartID: part.ID, Direction: "issue", Quantity: 4})
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 409, appErr.HTTPStatus)
	assert.Equal(t, 3, appErr.Params["available"])

	stored, err := f.q.GetSparePart(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.CurrentStock)

	n, err := f.q.CountSpareTransactions(ctx, part.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSpareTransactionExecute_ReturnPastStockLimit(t *testing.T) {
	f := newStockFixture(t)
	ctx := context.Background()
	part := f.part(t, MaxStockQuantity-2, 0)

	_, err := f.uc.Execute(ctx, SpareTransactionInput{PartID: part.ID, Direction: "return", Quantity: 5})
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok, "want AppError, got %v", err)
	assert.Equal(t, apperrors.CodeStockLimit, appErr.Code)
	assert.Equal(t, 409, appErr.HTTPStatus)

	stored, err := f.q.GetSparePart(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, MaxStockQuantity-2, stored.CurrentStock)

	n, err := f.q.CountSpareTransactions(ctx, part.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSpareTransactionExecute_RecordsAssetLink(t *testing.T) {
	f := newStockFixture(t)
	ctx := context.Background()
	part := f.part(t, 4, 0)
	asset, err := f.q.CreateAsset(ctx, repository.CreateAssetParams{
		AssetCode: "CNC-07", AssetName: "Lathe", AssetType: domain.AssetTypeMachine, AssetStatus: domain.AssetStatusActive,
	})
	require.NoError(t, err)

	res, err := f.uc.Execute(ctx, SpareTransactionInput{
		PartID: part.ID, Direction: "issue", Quantity: 1, AssetID: asset.ID, Purpose: "belt swap",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Transaction.AssetID)
	assert.Equal(t, asset.ID, *res.Transaction.AssetID)
	assert.Equal(t, "belt swap", res.Transaction.Remarks)
}

func TestSpareTransactionExecute_UnknownPart(t *testing.T) {
	f := newStockFixture(t)

	_, err := f.uc.Execute(context.Background(), SpareTransactionInput{PartID: validPartID, Direction: "return", Quantity: 1})
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeSpareNotFound, appErr.Code)
}

func TestSpareTransactionExecute_ReorderJobAndResolve(t *testing.T) {
	f := newStockFixture(t)
	ctx := context.Background()
	part := f.part(t, 5, 3)

	_, err := f.uc.Execute(ctx, SpareTransactionInput{PartID: part.ID, Direction: "issue", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, f.reorderJobs(t), "stock at reorder level enqueues an alert job")

	opened, err := f.q.OpenReorderAlert(ctx, part.ID)
	require.NoError(t, err)
	require.True(t, opened)

	res, err := f.uc.Execute(ctx, SpareTransactionInput{PartID: part.ID, Direction: "return", Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Inventory.CurrentStock)

	open, err := f.q.ListReorderAlerts(ctx, "open")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestSpareTransactionExecute_ConcurrentIssuesNeverOversell(t *testing.T) {
	f := newStockFixture(t)
	ctx := context.Background()
	part := f.part(t, 5, 0)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		other     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.Execute(ctx, SpareTransactionInput{PartID: part.ID, Direction: "issue", Quantity: 3})
			mu.Lock()
			defer mu.Unlock()
			var appErr *apperrors.AppError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &appErr) && appErr.Code == apperrors.CodeInsufficientStock:
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)

	stored, err := f.q.GetSparePart(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentStock)

	n, err := f.q.CountSpareTransactions(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

var _ JobInserter = (*river.Client[pgx.Tx])(nil)
