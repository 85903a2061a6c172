package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"plantops.io/mis/internal/api/middleware"
	"plantops.io/mis/internal/domain"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/repository"
)

type breakdownRequest struct {
	BDCode            *string `json:"bd_code"`
	ShiftID           *string `json:"shift_id"`
	EntryDate         *string `json:"entry_date"`
	EntryTime         *string `json:"entry_time"`
	AssetID           *string `json:"asset_id"`
	AssetLocation     *string `json:"asset_location"`
	BUName            *string `json:"bu_name"`
	OperatorName      *string `json:"operator_name"`
	KeyIssue          *string `json:"key_issue"`
	NatureOfComplaint *string `json:"nature_of_complaint"`
	Note              *string `json:"note"`
	BDStatus          *string `json:"bd_status"`
}

type engineerRequest struct {
	ActionTaken       string     `json:"action_taken"`
	EngineerFindings  string     `json:"engineer_findings"`
	JobStart          *time.Time `json:"job_start"`
	JobCompletionDate *time.Time `json:"job_completion_date"`
	ResponsiblePerson string     `json:"responsible_person"`
	SpareUsageID      *string    `json:"spare_usage_id"`
}

func errBreakdownNotFound() *apperrors.AppError {
	return apperrors.NotFound(apperrors.CodeBreakdownNotFound, "breakdown not found")
}

// newBDCode generates a readable breakdown code such as BD-20260504-3f9a1c.
func newBDCode(now time.Time) string {
	return fmt.Sprintf("BD-%s-%s", now.UTC().Format("20060102"), strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func (r breakdownRequest) createParams(now time.Time) (repository.CreateBreakdownParams, error) {
	p := repository.CreateBreakdownParams{
		BDCode:            deref(r.BDCode),
		AssetLocation:     deref(r.AssetLocation),
		BUName:            deref(r.BUName),
		OperatorName:      deref(r.OperatorName),
		KeyIssue:          deref(r.KeyIssue),
		NatureOfComplaint: deref(r.NatureOfComplaint),
		Note:              deref(r.Note),
		EntryDate:         domain.NewDate(now),
		EntryTime:         now.UTC().Format("15:04:05"),
	}
	if p.BDCode == "" {
		p.BDCode = newBDCode(now)
	}
	if r.ShiftID == nil || strings.TrimSpace(*r.ShiftID) == "" {
		return p, apperrors.Validation("shift_id", "shift_id is required")
	}
	var err error
	if p.ShiftID, err = domain.ParseShift(*r.ShiftID); err != nil {
		return p, err
	}
	if p.KeyIssue == "" {
		return p, apperrors.Validation("key_issue", "key_issue is required")
	}
	if r.EntryDate != nil && strings.TrimSpace(*r.EntryDate) != "" {
		if p.EntryDate, err = domain.ParseDate("entry_date", *r.EntryDate); err != nil {
			return p, err
		}
	}
	if r.EntryTime != nil && strings.TrimSpace(*r.EntryTime) != "" {
		if p.EntryTime, err = domain.ParseClock("entry_time", *r.EntryTime); err != nil {
			return p, err
		}
	}
	if p.AssetID, err = optionalUUID("asset_id", r.AssetID); err != nil {
		return p, err
	}
	if r.BDStatus != nil && strings.TrimSpace(*r.BDStatus) != "" {
		st, err := domain.ParseBreakdownStatus(*r.BDStatus)
		if err != nil {
			return p, err
		}
		if st != domain.BreakdownOpen {
			return p, apperrors.Validation("bd_status", "new breakdowns always start open")
		}
	}
	return p, nil
}

func (r breakdownRequest) updateParams(id string) (repository.UpdateBreakdownParams, error) {
	p := repository.UpdateBreakdownParams{
		ID:                id,
		AssetLocation:     trimmed(r.AssetLocation),
		BUName:            trimmed(r.BUName),
		OperatorName:      trimmed(r.OperatorName),
		KeyIssue:          trimmed(r.KeyIssue),
		NatureOfComplaint: trimmed(r.NatureOfComplaint),
		Note:              trimmed(r.Note),
	}
	if p.KeyIssue != nil && *p.KeyIssue == "" {
		return p, apperrors.Validation("key_issue", "key_issue must not be empty")
	}
	if r.ShiftID != nil {
		shift, err := domain.ParseShift(*r.ShiftID)
		if err != nil {
			return p, err
		}
		p.ShiftID = &shift
	}
	var err error
	if p.EntryDate, err = optionalDate("entry_date", r.EntryDate); err != nil {
		return p, err
	}
	if r.EntryTime != nil && strings.TrimSpace(*r.EntryTime) != "" {
		clock, err := domain.ParseClock("entry_time", *r.EntryTime)
		if err != nil {
			return p, err
		}
		p.EntryTime = &clock
	}
	if p.AssetID, err = optionalUUID("asset_id", r.AssetID); err != nil {
		return p, err
	}
	if r.BDStatus != nil {
		st, err := domain.ParseBreakdownStatus(*r.BDStatus)
		if err != nil {
			return p, err
		}
		p.BDStatus = &st
	}
	return p, nil
}

// ListBreakdowns handles GET /api/breakdowns.
func (s *Server) ListBreakdowns(c *gin.Context) {
	var f repository.BreakdownFilter
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		d, err := domain.ParseDate("date", raw)
		if err != nil {
			_ = c.Error(err)
			return
		}
		f.Date = &d
	}
	if raw := c.Query("status"); raw != "" {
		st, err := domain.ParseBreakdownStatus(raw)
		if err != nil {
			_ = c.Error(err)
			return
		}
		f.Status = st
	}
	assetID, err := queryUUID(c, "asset_id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	f.AssetID = assetID

	list, err := s.store.ListBreakdowns(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetBreakdown handles GET /api/breakdowns/:id.
func (s *Server) GetBreakdown(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := s.store.GetBreakdown(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(storeError(err, errBreakdownNotFound(), nil))
		return
	}
	c.JSON(http.StatusOK, b)
}

// CreateBreakdown handles POST /api/breakdowns. entry_date and entry_time
// default to now and the reporter is the caller.
func (s *Server) CreateBreakdown(c *gin.Context) {
	var req breakdownRequest
	if !bindJSON(c, &req) {
		return
	}
	params, err := req.createParams(s.now())
	if err != nil {
		_ = c.Error(err)
		return
	}
	params.ReportedBy = actorPtr(c)

	ctx := c.Request.Context()
	id, err := s.store.CreateOperatorEntry(ctx, params)
	if err != nil {
		if _, fk := repository.ForeignKeyViolation(err); fk {
			_ = c.Error(apperrors.Validation("asset_id", "asset_id does not reference an existing asset"))
			return
		}
		_ = c.Error(storeError(err, nil, apperrors.Conflict(apperrors.CodeValidationFailed, "bd_code is already in use").
			WithFieldErrors([]apperrors.FieldError{{Field: "bd_code", Message: "bd_code is already in use"}})))
		return
	}
	b, err := s.store.GetBreakdown(ctx, id)
	if err != nil {
		_ = c.Error(storeError(err, errBreakdownNotFound(), nil))
		return
	}
	s.audit.Record(ctx, "breakdown.create", "breakdown", id, actorID(c), map[string]interface{}{
		"bd_code": b.BDCode,
	})
	c.JSON(http.StatusCreated, b)
}

// UpdateBreakdown handles PUT /api/breakdowns/:id. Changing bd_status needs
// update_breakdown and must follow the breakdown lifecycle.
func (s *Server) UpdateBreakdown(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req breakdownRequest
	if !bindJSON(c, &req) {
		return
	}
	params, err := req.updateParams(id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if params.BDStatus != nil && !middleware.HasPermission(c, domain.PermUpdateBreakdown) {
		_ = c.Error(middleware.ErrMissingPermission(domain.PermUpdateBreakdown, middleware.GetRole(c.Request.Context())))
		return
	}

	ctx := c.Request.Context()
	var from domain.BreakdownStatus
	err = s.store.UpdateBreakdownChecked(ctx, params, func(current domain.BreakdownStatus) error {
		from = current
		return domain.CheckTransition(current, *params.BDStatus)
	})
	if err != nil {
		if _, fk := repository.ForeignKeyViolation(err); fk {
			_ = c.Error(apperrors.Validation("asset_id", "asset_id does not reference an existing asset"))
			return
		}
		_ = c.Error(storeError(err, errBreakdownNotFound(), nil))
		return
	}
	if params.BDStatus != nil && from != *params.BDStatus {
		s.audit.Record(ctx, "breakdown.status_change", "breakdown", id, actorID(c), map[string]interface{}{
			"from": string(from),
			"to":   string(*params.BDStatus),
		})
	}

	b, err := s.store.GetBreakdown(ctx, id)
	if err != nil {
		_ = c.Error(storeError(err, errBreakdownNotFound(), nil))
		return
	}
	c.JSON(http.StatusOK, b)
}

// UpsertEngineerEntry handles POST /api/breakdowns/:id/engineer. Fields left
// empty keep their stored value; responsible_person defaults to the caller.
func (s *Server) UpsertEngineerEntry(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req engineerRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.JobStart != nil && req.JobCompletionDate != nil && req.JobCompletionDate.Before(*req.JobStart) {
		_ = c.Error(apperrors.Validation("job_completion_date", "job_completion_date must not be before job_start"))
		return
	}
	spareUsage, err := optionalUUID("spare_usage_id", req.SpareUsageID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	responsible := strings.TrimSpace(req.ResponsiblePerson)
	if responsible == "" {
		responsible = actorID(c)
	}

	ctx := c.Request.Context()
	err = s.store.UpsertEngineerEntry(ctx, repository.UpsertEngineerParams{
		BDOperatorID:      id,
		ActionTaken:       strings.TrimSpace(req.ActionTaken),
		EngineerFindings:  strings.TrimSpace(req.EngineerFindings),
		JobStart:          req.JobStart,
		JobCompletionDate: req.JobCompletionDate,
		ResponsiblePerson: responsible,
		SpareUsageID:      spareUsage,
	})
	if err != nil {
		if constraint, fk := repository.ForeignKeyViolation(err); fk {
			if strings.Contains(constraint, "spare_usage") {
				_ = c.Error(apperrors.Validation("spare_usage_id", "spare_usage_id does not reference a spare transaction"))
				return
			}
			_ = c.Error(errBreakdownNotFound())
			return
		}
		_ = c.Error(storeError(err, errBreakdownNotFound(), nil))
		return
	}

	b, err := s.store.GetBreakdown(ctx, id)
	if err != nil {
		_ = c.Error(storeError(err, errBreakdownNotFound(), nil))
		return
	}
	c.JSON(http.StatusCreated, b)
}
