// Package domain holds the plant maintenance model: records, enums and the
// pure rules (status transitions, overdue derivation, KPIs) the handlers enforce.
package domain

import (
	"strings"

	apperrors "plantops.io/mis/internal/pkg/errors"
)

// AssetType classifies equipment on the asset register.
type AssetType string

const (
	AssetTypeMachine   AssetType = "machine"
	AssetTypeUtility   AssetType = "utility"
	AssetTypeAuxiliary AssetType = "auxiliary"
)

// AssetStatus is the lifecycle state of an asset.
type AssetStatus string

const (
	AssetStatusActive   AssetStatus = "active"
	AssetStatusUnderAMC AssetStatus = "under_amc" // annual maintenance contract
	AssetStatusInactive AssetStatus = "inactive"
	AssetStatusDisposed AssetStatus = "disposed"
)

// BreakdownStatus tracks a breakdown from report to closure.
type BreakdownStatus string

const (
	BreakdownOpen         BreakdownStatus = "open"
	BreakdownAcknowledged BreakdownStatus = "acknowledged"
	BreakdownInProgress   BreakdownStatus = "in_progress"
	BreakdownResolved     BreakdownStatus = "resolved"
	BreakdownClosed       BreakdownStatus = "closed"
)

// PMStatus is the state of a preventive maintenance schedule.
type PMStatus string

const (
	PMScheduled PMStatus = "scheduled"
	PMCompleted PMStatus = "completed"
	PMOverdue   PMStatus = "overdue"
)

// Direction is the movement of a spare transaction.
type Direction string

const (
	DirectionIssue  Direction = "issue"
	DirectionReturn Direction = "return"
)

// WorkType says whether a spare movement was for PM or a breakdown.
type WorkType string

const (
	WorkTypePM WorkType = "pm"
	WorkTypeBD WorkType = "bd"
)

// UtilityType is the metered medium.
type UtilityType string

const (
	UtilityPower UtilityType = "power"
	UtilityWater UtilityType = "water"
	UtilityAir   UtilityType = "air"
	UtilityGas   UtilityType = "gas"
)

// Shift identifies the production shift a breakdown was raised in.
type Shift string

const (
	ShiftA Shift = "A"
	ShiftB Shift = "B"
	ShiftC Shift = "C"
)

// Role is a user's access level.
type Role string

const (
	RoleOperator Role = "operator"
	RoleEngineer Role = "engineer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

var (
	assetTypes        = []string{"machine", "utility", "auxiliary"}
	assetStatuses     = []string{"active", "under_amc", "inactive", "disposed"}
	breakdownStatuses = []string{"open", "acknowledged", "in_progress", "resolved", "closed"}
	pmStatuses        = []string{"scheduled", "completed", "overdue"}
	directions        = []string{"issue", "return"}
	workTypes         = []string{"pm", "bd"}
	utilityTypes      = []string{"power", "water", "air", "gas"}
	shifts            = []string{"A", "B", "C"}
	roles             = []string{"operator", "engineer", "manager", "admin"}
)

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func parseEnum(field, raw string, allowed []string, aliases map[string]string) (string, error) {
	v := normalize(raw)
	if alias, ok := aliases[v]; ok {
		v = alias
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", apperrors.ErrInvalidEnum(field, raw, allowed)
}

// ParseAssetType validates and lowercases an asset type.
func ParseAssetType(raw string) (AssetType, error) {
	v, err := parseEnum("asset_type", raw, assetTypes, nil)
	return AssetType(v), err
}

// ParseAssetStatus validates and lowercases an asset status.
func ParseAssetStatus(raw string) (AssetStatus, error) {
	v, err := parseEnum("asset_status", raw, assetStatuses, map[string]string{"under amc": "under_amc"})
	return AssetStatus(v), err
}

// ParseBreakdownStatus accepts the short form "ack" used by older clients.
func ParseBreakdownStatus(raw string) (BreakdownStatus, error) {
	v, err := parseEnum("bd_status", raw, breakdownStatuses, map[string]string{"ack": "acknowledged"})
	return BreakdownStatus(v), err
}

// ParsePMStatus validates a PM schedule status.
func ParsePMStatus(raw string) (PMStatus, error) {
	v, err := parseEnum("status", raw, pmStatuses, nil)
	return PMStatus(v), err
}

// ParseDirection validates a spare transaction direction.
func ParseDirection(raw string) (Direction, error) {
	v, err := parseEnum("direction", raw, directions, nil)
	return Direction(v), err
}

// ParseWorkType validates pm_bd_type.
func ParseWorkType(raw string) (WorkType, error) {
	v, err := parseEnum("pm_bd_type", raw, workTypes, nil)
	return WorkType(v), err
}

// ParseUtilityType is case-insensitive ("Power" and "power" are equal).
func ParseUtilityType(raw string) (UtilityType, error) {
	v, err := parseEnum("utility_type", raw, utilityTypes, map[string]string{
		"compressed_air": "air",
		"compressed air": "air",
		"electricity":    "power",
	})
	return UtilityType(v), err
}

// ParseShift upper-cases the shift letter.
func ParseShift(raw string) (Shift, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	for _, s := range shifts {
		if v == s {
			return Shift(v), nil
		}
	}
	return "", apperrors.ErrInvalidEnum("shift_id", raw, shifts)
}

// ParseRole validates a user role.
func ParseRole(raw string) (Role, error) {
	v, err := parseEnum("role", raw, roles, nil)
	return Role(v), err
}

// Roles lists every role in ascending privilege.
func Roles() []Role {
	out := make([]Role, len(roles))
	for i, r := range roles {
		out[i] = Role(r)
	}
	return out
}
