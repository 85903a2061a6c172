package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"plantops.io/mis/internal/domain"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/repository"
)

// assetRequest is the body of POST and PUT /api/assets. Pointers
// distinguish omitted fields from empty ones on update.
type assetRequest struct {
	AssetCode      *string `json:"asset_code"`
	AssetName      *string `json:"asset_name"`
	AssetLocation  *string `json:"asset_location"`
	BUName         *string `json:"bu_name"`
	AssetType      *string `json:"asset_type"`
	Manufacturer   *string `json:"manufacturer"`
	ModelNumber    *string `json:"model_number"`
	ModelName      *string `json:"model_name"`
	InstallDate    *string `json:"install_date"`
	AssetStatus    *string `json:"asset_status"`
	WarrantyExpiry *string `json:"warranty_expiry"`
	QRCode         *string `json:"qr_code"`
}

func errAssetNotFound() *apperrors.AppError {
	return apperrors.NotFound(apperrors.CodeAssetNotFound, "asset not found")
}

func errAssetExists() *apperrors.AppError {
	return apperrors.Conflict(apperrors.CodeAssetExists, "an asset with this code or QR label already exists")
}

func (r assetRequest) createParams() (repository.CreateAssetParams, error) {
	p := repository.CreateAssetParams{
		AssetCode:     deref(r.AssetCode),
		AssetName:     deref(r.AssetName),
		AssetLocation: deref(r.AssetLocation),
		BUName:        deref(r.BUName),
		AssetType:     domain.AssetTypeMachine,
		Manufacturer:  deref(r.Manufacturer),
		ModelNumber:   deref(r.ModelNumber),
		ModelName:     deref(r.ModelName),
		AssetStatus:   domain.AssetStatusActive,
		QRCode:        deref(r.QRCode),
	}
	if p.AssetCode == "" {
		return p, apperrors.Validation("asset_code", "asset_code is required")
	}
	if p.AssetName == "" {
		return p, apperrors.Validation("asset_name", "asset_name is required")
	}
	var err error
	if r.AssetType != nil && strings.TrimSpace(*r.AssetType) != "" {
		if p.AssetType, err = domain.ParseAssetType(*r.AssetType); err != nil {
			return p, err
		}
	}
	if r.AssetStatus != nil && strings.TrimSpace(*r.AssetStatus) != "" {
		if p.AssetStatus, err = domain.ParseAssetStatus(*r.AssetStatus); err != nil {
			return p, err
		}
	}
	if p.InstallDate, err = optionalDate("install_date", r.InstallDate); err != nil {
		return p, err
	}
	if p.WarrantyExpiry, err = optionalDate("warranty_expiry", r.WarrantyExpiry); err != nil {
		return p, err
	}
	return p, nil
}

func (r assetRequest) updateParams(id string) (repository.UpdateAssetParams, error) {
	p := repository.UpdateAssetParams{
		ID:            id,
		AssetCode:     trimmed(r.AssetCode),
		AssetName:     trimmed(r.AssetName),
		AssetLocation: trimmed(r.AssetLocation),
		BUName:        trimmed(r.BUName),
		Manufacturer:  trimmed(r.Manufacturer),
		ModelNumber:   trimmed(r.ModelNumber),
		ModelName:     trimmed(r.ModelName),
		QRCode:        trimmed(r.QRCode),
	}
	if p.AssetCode != nil && *p.AssetCode == "" {
		return p, apperrors.Validation("asset_code", "asset_code must not be empty")
	}
	if p.AssetName != nil && *p.AssetName == "" {
		return p, apperrors.Validation("asset_name", "asset_name must not be empty")
	}
	if r.AssetType != nil {
		t, err := domain.ParseAssetType(*r.AssetType)
		if err != nil {
			return p, err
		}
		p.AssetType = &t
	}
	if r.AssetStatus != nil {
		st, err := domain.ParseAssetStatus(*r.AssetStatus)
		if err != nil {
			return p, err
		}
		p.AssetStatus = &st
	}
	var err error
	if p.InstallDate, err = optionalDate("install_date", r.InstallDate); err != nil {
		return p, err
	}
	if p.WarrantyExpiry, err = optionalDate("warranty_expiry", r.WarrantyExpiry); err != nil {
		return p, err
	}
	return p, nil
}

// ListAssets handles GET /api/assets.
func (s *Server) ListAssets(c *gin.Context) {
	var f repository.AssetFilter
	if raw := c.Query("status"); raw != "" {
		st, err := domain.ParseAssetStatus(raw)
		if err != nil {
			_ = c.Error(err)
			return
		}
		f.Status = st
	}
	if raw := c.Query("type"); raw != "" {
		t, err := domain.ParseAssetType(raw)
		if err != nil {
			_ = c.Error(err)
			return
		}
		f.Type = t
	}
	f.Location = strings.TrimSpace(c.Query("location"))
	f.Search = strings.TrimSpace(c.Query("search"))

	assets, err := s.store.ListAssets(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	c.JSON(http.StatusOK, assets)
}

// GetAsset handles GET /api/assets/:id.
func (s *Server) GetAsset(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	asset, err := s.store.GetAsset(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(storeError(err, errAssetNotFound(), nil))
		return
	}
	c.JSON(http.StatusOK, asset)
}

// GetAssetByQR handles GET /api/qr/:code.
func (s *Server) GetAssetByQR(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		_ = c.Error(apperrors.Validation("code", "code is required"))
		return
	}
	asset, err := s.store.GetAssetByQR(c.Request.Context(), code)
	if err != nil {
		_ = c.Error(storeError(err, errAssetNotFound(), nil))
		return
	}
	c.JSON(http.StatusOK, asset)
}

// CreateAsset handles POST /api/assets.
func (s *Server) CreateAsset(c *gin.Context) {
	var req assetRequest
	if !bindJSON(c, &req) {
		return
	}
	params, err := req.createParams()
	if err != nil {
		_ = c.Error(err)
		return
	}
	asset, err := s.store.CreateAsset(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(storeError(err, nil, errAssetExists()))
		return
	}
	s.audit.Record(c.Request.Context(), "asset.create", "asset", asset.ID, actorID(c), map[string]interface{}{
		"asset_code": asset.AssetCode,
	})
	c.JSON(http.StatusCreated, asset)
}

// UpdateAsset handles PUT /api/assets/:id. Omitted fields are unchanged.
func (s *Server) UpdateAsset(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assetRequest
	if !bindJSON(c, &req) {
		return
	}
	params, err := req.updateParams(id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	asset, err := s.store.UpdateAsset(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(storeError(err, errAssetNotFound(), errAssetExists()))
		return
	}
	c.JSON(http.StatusOK, asset)
}

// DeleteAsset handles DELETE /api/assets/:id (admin only).
func (s *Server) DeleteAsset(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteAsset(c.Request.Context(), id); err != nil {
		_ = c.Error(storeError(err, errAssetNotFound(), nil))
		return
	}
	s.audit.LogDelete(c.Request.Context(), "asset", id, actorID(c), nil)
	c.JSON(http.StatusOK, gin.H{"message": "Asset deleted successfully"})
}
