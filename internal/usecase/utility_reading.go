package usecase

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"plantops.io/mis/internal/domain"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/repository"
)

// UtilityReadingInput is a meter reading as submitted over HTTP or MQTT.
type UtilityReadingInput struct {
	UtilityType    string           `json:"utility_type"`
	MeterPoint     string           `json:"meter_point"`
	ReadingUnit    string           `json:"reading_unit"`
	ReadingValue   *decimal.Decimal `json:"reading_value"`
	Timestamp      *time.Time       `json:"timestamp"`
	AssetID        string           `json:"asset_id"`
	BusinessUnitID string           `json:"business_unit_id"`
	LocationID     string           `json:"location_id"`
	Remarks        string           `json:"remarks"`
}

// maxReadingSkew bounds how far in the future a reading may be stamped.
const maxReadingSkew = 5 * time.Minute

// ValidateUtilityReading normalises a reading. A missing timestamp becomes
// now; the utility type is matched case-insensitively.
func ValidateUtilityReading(in UtilityReadingInput, source string, now time.Time) (repository.InsertUtilityParams, error) {
	utilityType, err := domain.ParseUtilityType(in.UtilityType)
	if err != nil {
		return repository.InsertUtilityParams{}, err
	}
	meter := strings.TrimSpace(in.MeterPoint)
	if meter == "" {
		return repository.InsertUtilityParams{}, apperrors.Validation("meter_point", "meter_point is required")
	}
	if in.ReadingValue == nil {
		return repository.InsertUtilityParams{}, apperrors.Validation("reading_value", "reading_value is required")
	}
	if in.ReadingValue.IsNegative() {
		return repository.InsertUtilityParams{}, apperrors.Validation("reading_value", "reading_value must not be negative")
	}

	ts := now.UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
		if ts.After(now.Add(maxReadingSkew)) {
			return repository.InsertUtilityParams{}, apperrors.Validation("timestamp", "timestamp must not be in the future")
		}
	}

	var assetID *string
	if id := strings.TrimSpace(in.AssetID); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return repository.InsertUtilityParams{}, apperrors.Validation("asset_id", "asset_id must be a valid UUID")
		}
		assetID = &id
	}

	return repository.InsertUtilityParams{
		UtilityType:    utilityType,
		MeterPoint:     meter,
		ReadingUnit:    strings.TrimSpace(in.ReadingUnit),
		ReadingValue:   *in.ReadingValue,
		Timestamp:      ts,
		AssetID:        assetID,
		BusinessUnitID: optionalString(in.BusinessUnitID),
		LocationID:     optionalString(in.LocationID),
		Remarks:        strings.TrimSpace(in.Remarks),
		Source:         source,
	}, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
