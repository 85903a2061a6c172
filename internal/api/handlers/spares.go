package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/repository"
	"plantops.io/mis/internal/usecase"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 500
)

type spareRequest struct {
	PartCode      *string          `json:"part_code"`
	PartName      *string          `json:"part_name"`
	PartNo        *string          `json:"part_no"`
	MinLevel      *int             `json:"min_level"`
	ReorderLevel  *int             `json:"reorder_level"`
	CurrentStock  *int             `json:"current_stock"`
	UnitCost      *decimal.Decimal `json:"unit_cost"`
	Supplier      *string          `json:"supplier"`
	SpareLocation *string          `json:"spare_location"`
	BUName        *string          `json:"bu_name"`
}

func errSpareNotFound() *apperrors.AppError {
	return apperrors.NotFound(apperrors.CodeSpareNotFound, "spare part not found")
}

func errSpareExists() *apperrors.AppError {
	return apperrors.Conflict(apperrors.CodeSpareExists, "a spare part with this code already exists")
}

func (r spareRequest) validateLevels() error {
	if err := nonNegative("min_level", r.MinLevel); err != nil {
		return err
	}
	if err := nonNegative("reorder_level", r.ReorderLevel); err != nil {
		return err
	}
	if r.UnitCost != nil && r.UnitCost.IsNegative() {
		return apperrors.Validation("unit_cost", "unit_cost must not be negative")
	}
	return nil
}

func (r spareRequest) createParams() (repository.CreateSpareParams, error) {
	p := repository.CreateSpareParams{
		PartCode:      deref(r.PartCode),
		PartName:      deref(r.PartName),
		PartNo:        deref(r.PartNo),
		Supplier:      deref(r.Supplier),
		SpareLocation: deref(r.SpareLocation),
		BUName:        deref(r.BUName),
	}
	if p.PartCode == "" {
		return p, apperrors.Validation("part_code", "part_code is required")
	}
	if p.PartName == "" {
		return p, apperrors.Validation("part_name", "part_name is required")
	}
	if err := r.validateLevels(); err != nil {
		return p, err
	}
	if err := nonNegative("current_stock", r.CurrentStock); err != nil {
		return p, err
	}
	if r.MinLevel != nil {
		p.MinLevel = *r.MinLevel
	}
	if r.ReorderLevel != nil {
		p.ReorderLevel = *r.ReorderLevel
	}
	if r.CurrentStock != nil {
		p.CurrentStock = *r.CurrentStock
	}
	if r.UnitCost != nil {
		p.UnitCost = *r.UnitCost
	}
	return p, nil
}

func (r spareRequest) updateParams(id string) (repository.UpdateSpareParams, error) {
	p := repository.UpdateSpareParams{
		ID:            id,
		PartCode:      trimmed(r.PartCode),
		PartName:      trimmed(r.PartName),
		PartNo:        trimmed(r.PartNo),
		MinLevel:      r.MinLevel,
		ReorderLevel:  r.ReorderLevel,
		UnitCost:      r.UnitCost,
		Supplier:      trimmed(r.Supplier),
		SpareLocation: trimmed(r.SpareLocation),
		BUName:        trimmed(r.BUName),
	}
	if r.CurrentStock != nil {
		return p, apperrors.Validation("current_stock", "current_stock changes only through spare transactions")
	}
	if p.PartCode != nil && *p.PartCode == "" {
		return p, apperrors.Validation("part_code", "part_code must not be empty")
	}
	if p.PartName != nil && *p.PartName == "" {
		return p, apperrors.Validation("part_name", "part_name must not be empty")
	}
	return p, r.validateLevels()
}

// ListSpareParts handles GET /api/spares. ?low_stock=true keeps parts at or
// below their reorder level.
func (s *Server) ListSpareParts(c *gin.Context) {
	f := repository.SpareFilter{Search: strings.TrimSpace(c.Query("search"))}
	if raw := strings.TrimSpace(c.Query("low_stock")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			_ = c.Error(apperrors.Validation("low_stock", "low_stock must be true or false"))
			return
		}
		f.LowStock = v
	}
	parts, err := s.store.ListSpareParts(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	c.JSON(http.StatusOK, parts)
}

// GetSparePart handles GET /api/spares/:id.
func (s *Server) GetSparePart(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	part, err := s.store.GetSparePart(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(storeError(err, errSpareNotFound(), nil))
		return
	}
	c.JSON(http.StatusOK, part)
}

// CreateSparePart handles POST /api/spares.
func (s *Server) CreateSparePart(c *gin.Context) {
	var req spareRequest
	if !bindJSON(c, &req) {
		return
	}
	params, err := req.createParams()
	if err != nil {
		_ = c.Error(err)
		return
	}
	part, err := s.store.CreateSparePart(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(storeError(err, nil, errSpareExists()))
		return
	}
	s.audit.Record(c.Request.Context(), "spare.create", "spare_part", part.ID, actorID(c), map[string]interface{}{
		"part_code":     part.PartCode,
		"opening_stock": part.CurrentStock,
	})
	c.JSON(http.StatusCreated, part)
}

// UpdateSparePart handles PUT /api/spares/:id. Stock is not writable here.
func (s *Server) UpdateSparePart(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req spareRequest
	if !bindJSON(c, &req) {
		return
	}
	params, err := req.updateParams(id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	part, err := s.store.UpdateSparePart(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(storeError(err, errSpareNotFound(), errSpareExists()))
		return
	}
	c.JSON(http.StatusOK, part)
}

// DeleteSparePart handles DELETE /api/spares/:id (admin only). Parts with
// stock history cannot be deleted.
func (s *Server) DeleteSparePart(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteSparePart(c.Request.Context(), id); err != nil {
		if _, fk := repository.ForeignKeyViolation(err); fk {
			_ = c.Error(apperrors.Conflict(apperrors.CodeSpareInUse, "spare part has stock transactions and cannot be deleted"))
			return
		}
		_ = c.Error(storeError(err, errSpareNotFound(), nil))
		return
	}
	s.audit.LogDelete(c.Request.Context(), "spare_part", id, actorID(c), nil)
	c.JSON(http.StatusOK, gin.H{"message": "Spare part deleted successfully"})
}

// CreateSpareTransaction handles POST /api/spares/transaction.
func (s *Server) CreateSpareTransaction(c *gin.Context) {
	var in usecase.SpareTransactionInput
	if !bindJSON(c, &in) {
		return
	}
	in.ActorID = actorID(c)
	result, err := s.spares.Execute(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(storeError(err, errSpareNotFound(), nil))
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListSpareTransactions handles GET /api/spares/:id/transactions.
func (s *Server) ListSpareTransactions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", defaultTransactionLimit, maxTransactionLimit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	if _, err := s.store.GetSparePart(ctx, id); err != nil {
		_ = c.Error(storeError(err, errSpareNotFound(), nil))
		return
	}
	txs, err := s.store.ListSpareTransactions(ctx, id, limit)
	if err != nil {
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	c.JSON(http.StatusOK, txs)
}

// ListReorderAlerts handles GET /api/spares/alerts. status is open (default),
// resolved or all.
func (s *Server) ListReorderAlerts(c *gin.Context) {
	status := strings.ToLower(strings.TrimSpace(c.DefaultQuery("status", "open")))
	switch status {
	case "open", "resolved":
	case "all":
		status = ""
	default:
		_ = c.Error(apperrors.ErrInvalidEnum("status", status, []string{"open", "resolved", "all"}))
		return
	}
	alerts, err := s.store.ListReorderAlerts(c.Request.Context(), status)
	if err != nil {
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	c.JSON(http.StatusOK, alerts)
}
