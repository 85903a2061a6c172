package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"plantops.io/mis/internal/domain"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/repository"
)

type pmRequest struct {
	AssetID           *string `json:"asset_id"`
	PMTitle           *string `json:"pm_title"`
	FrequencyInterval *string `json:"frequency_interval"`
	FrequencyDays     *int    `json:"frequency_days"`
	LastPMDate        *string `json:"last_pm_date"`
	NextPMDate        *string `json:"next_pm_date"`
	ChecklistRef      *string `json:"checklist_ref"`
	ResponsiblePerson *string `json:"responsible_person"`
	Status            *string `json:"status"`
}

type pmCompleteRequest struct {
	CompletedOn string `json:"completed_on"`
}

func errPMNotFound() *apperrors.AppError {
	return apperrors.NotFound(apperrors.CodePMNotFound, "PM schedule not found")
}

// frequency resolves the day count from an explicit value or the interval.
func frequency(interval string, days *int) (int, error) {
	if days != nil {
		if *days <= 0 {
			return 0, apperrors.Validation("frequency_days", "frequency_days must be positive")
		}
		return *days, nil
	}
	return domain.FrequencyDays(interval)
}

func (r pmRequest) createParams(today domain.Date) (repository.CreatePMParams, error) {
	p := repository.CreatePMParams{
		PMTitle:           deref(r.PMTitle),
		FrequencyInterval: deref(r.FrequencyInterval),
		ChecklistRef:      deref(r.ChecklistRef),
		ResponsiblePerson: deref(r.ResponsiblePerson),
		Status:            domain.PMScheduled,
	}
	assetID, err := optionalUUID("asset_id", r.AssetID)
	if err != nil {
		return p, err
	}
	if assetID == nil {
		return p, apperrors.Validation("asset_id", "asset_id is required")
	}
	p.AssetID = *assetID
	if p.PMTitle == "" {
		return p, apperrors.Validation("pm_title", "pm_title is required")
	}
	if p.FrequencyInterval == "" {
		return p, apperrors.Validation("frequency_interval", "frequency_interval is required")
	}
	if p.FrequencyDays, err = frequency(p.FrequencyInterval, r.FrequencyDays); err != nil {
		return p, err
	}
	if p.LastPMDate, err = optionalDate("last_pm_date", r.LastPMDate); err != nil {
		return p, err
	}
	if p.NextPMDate, err = optionalDate("next_pm_date", r.NextPMDate); err != nil {
		return p, err
	}
	if p.NextPMDate == nil {
		base := today
		if p.LastPMDate != nil {
			base = *p.LastPMDate
		}
		next := base.AddDays(p.FrequencyDays)
		p.NextPMDate = &next
	}
	if r.Status != nil && strings.TrimSpace(*r.Status) != "" {
		if p.Status, err = domain.ParsePMStatus(*r.Status); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (r pmRequest) updateParams(id string) (repository.UpdatePMParams, error) {
	p := repository.UpdatePMParams{
		ID:                id,
		PMTitle:           trimmed(r.PMTitle),
		FrequencyInterval: trimmed(r.FrequencyInterval),
		ChecklistRef:      trimmed(r.ChecklistRef),
		ResponsiblePerson: trimmed(r.ResponsiblePerson),
	}
	var err error
	if p.AssetID, err = optionalUUID("asset_id", r.AssetID); err != nil {
		return p, err
	}
	if p.PMTitle != nil && *p.PMTitle == "" {
		return p, apperrors.Validation("pm_title", "pm_title must not be empty")
	}
	if p.FrequencyInterval != nil || r.FrequencyDays != nil {
		interval := ""
		if p.FrequencyInterval != nil {
			if *p.FrequencyInterval == "" {
				return p, apperrors.Validation("frequency_interval", "frequency_interval must not be empty")
			}
			interval = *p.FrequencyInterval
		}
		days, err := frequency(interval, r.FrequencyDays)
		if err != nil {
			return p, err
		}
		p.FrequencyDays = &days
	}
	if p.LastPMDate, err = optionalDate("last_pm_date", r.LastPMDate); err != nil {
		return p, err
	}
	if p.NextPMDate, err = optionalDate("next_pm_date", r.NextPMDate); err != nil {
		return p, err
	}
	if r.Status != nil {
		st, err := domain.ParsePMStatus(*r.Status)
		if err != nil {
			return p, err
		}
		p.Status = &st
	}
	return p, nil
}

// withEffectiveStatus replaces the stored status with the one derived for today.
func withEffectiveStatus(p *domain.PMSchedule, today domain.Date) *domain.PMSchedule {
	p.Status = p.EffectiveStatus(today)
	return p
}

// ListPMSchedules handles GET /api/pm. The status filter matches the
// derived status, so ?status=overdue includes schedules the sweep has not
// reached yet.
func (s *Server) ListPMSchedules(c *gin.Context) {
	var (
		want domain.PMStatus
		err  error
	)
	if raw := c.Query("status"); raw != "" {
		if want, err = domain.ParsePMStatus(raw); err != nil {
			_ = c.Error(err)
			return
		}
	}
	assetID, err := queryUUID(c, "asset_id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	schedules, err := s.store.ListPMSchedules(c.Request.Context(), repository.PMFilter{AssetID: assetID})
	if err != nil {
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	today := s.today()
	out := make([]domain.PMSchedule, 0, len(schedules))
	for i := range schedules {
		p := withEffectiveStatus(&schedules[i], today)
		if want != "" && p.Status != want {
			continue
		}
		out = append(out, *p)
	}
	c.JSON(http.StatusOK, out)
}

// GetPMSchedule handles GET /api/pm/:id.
func (s *Server) GetPMSchedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := s.store.GetPMSchedule(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(storeError(err, errPMNotFound(), nil))
		return
	}
	c.JSON(http.StatusOK, withEffectiveStatus(p, s.today()))
}

// CreatePMSchedule handles POST /api/pm.
func (s *Server) CreatePMSchedule(c *gin.Context) {
	var req pmRequest
	if !bindJSON(c, &req) {
		return
	}
	params, err := req.createParams(s.today())
	if err != nil {
		_ = c.Error(err)
		return
	}
	p, err := s.store.CreatePMSchedule(c.Request.Context(), params)
	if err != nil {
		if _, fk := repository.ForeignKeyViolation(err); fk {
			_ = c.Error(apperrors.Validation("asset_id", "asset_id does not reference an existing asset"))
			return
		}
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	c.JSON(http.StatusCreated, withEffectiveStatus(p, s.today()))
}

// UpdatePMSchedule handles PUT /api/pm/:id. An empty body changes nothing.
func (s *Server) UpdatePMSchedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req pmRequest
	if !bindJSON(c, &req) {
		return
	}
	params, err := req.updateParams(id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	p, err := s.store.UpdatePMSchedule(c.Request.Context(), params)
	if err != nil {
		if _, fk := repository.ForeignKeyViolation(err); fk {
			_ = c.Error(apperrors.Validation("asset_id", "asset_id does not reference an existing asset"))
			return
		}
		_ = c.Error(storeError(err, errPMNotFound(), nil))
		return
	}
	c.JSON(http.StatusOK, withEffectiveStatus(p, s.today()))
}

// CompletePMSchedule handles POST /api/pm/:id/complete. The body is optional;
// completed_on defaults to today and rolls next_pm_date forward.
func (s *Server) CompletePMSchedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req pmCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeValidationFailed, "request body is not valid JSON for this endpoint", http.StatusBadRequest))
		return
	}
	today := s.today()
	doneOn := today
	if strings.TrimSpace(req.CompletedOn) != "" {
		d, err := domain.ParseDate("completed_on", req.CompletedOn)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if today.Before(d) {
			_ = c.Error(apperrors.Validation("completed_on", "completed_on must not be in the future"))
			return
		}
		doneOn = d
	}

	p, err := s.store.CompletePMSchedule(c.Request.Context(), id, doneOn)
	if err != nil {
		_ = c.Error(storeError(err, errPMNotFound(), nil))
		return
	}
	s.audit.Record(c.Request.Context(), "pm.complete", "pm_schedule", id, actorID(c), map[string]interface{}{
		"completed_on": doneOn.String(),
		"next_pm_date": p.NextPMDate,
	})
	c.JSON(http.StatusOK, withEffectiveStatus(p, today))
}

// DeletePMSchedule handles DELETE /api/pm/:id (admin only).
func (s *Server) DeletePMSchedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeletePMSchedule(c.Request.Context(), id); err != nil {
		_ = c.Error(storeError(err, errPMNotFound(), nil))
		return
	}
	s.audit.LogDelete(c.Request.Context(), "pm_schedule", id, actorID(c), nil)
	c.JSON(http.StatusOK, gin.H{"message": "PM schedule deleted successfully"})
}
