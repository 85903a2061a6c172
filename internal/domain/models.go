package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a row of the asset register.
type Asset struct {
	ID             string      `json:"id"`
	AssetCode      string      `json:"asset_code"`
	AssetName      string      `json:"asset_name"`
	AssetLocation  string      `json:"asset_location"`
	BUName         string      `json:"bu_name"`
	AssetType      AssetType   `json:"asset_type"`
	Manufacturer   string      `json:"manufacturer"`
	ModelNumber    string      `json:"model_number"`
	ModelName      string      `json:"model_name"`
	InstallDate    *Date       `json:"install_date"`
	AssetStatus    AssetStatus `json:"asset_status"`
	WarrantyExpiry *Date       `json:"warranty_expiry"`
	QRCode         string      `json:"qr_code"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// PMSchedule is a recurring preventive maintenance plan for one asset.
type PMSchedule struct {
	ID                string    `json:"id"`
	AssetID           string    `json:"asset_id"`
	AssetCode         string    `json:"asset_code,omitempty"`
	AssetName         string    `json:"asset_name,omitempty"`
	PMTitle           string    `json:"pm_title"`
	FrequencyInterval string    `json:"frequency_interval"`
	FrequencyDays     int       `json:"frequency_days"`
	LastPMDate        *Date     `json:"last_pm_date"`
	NextPMDate        *Date     `json:"next_pm_date"`
	ChecklistRef      string    `json:"checklist_ref"`
	ResponsiblePerson string    `json:"responsible_person"`
	Status            PMStatus  `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BreakdownOperatorEntry is what the operator records when a machine stops.
type BreakdownOperatorEntry struct {
	ID                string          `json:"id"`
	BDCode            string          `json:"bd_code"`
	ShiftID           Shift           `json:"shift_id"`
	EntryDate         Date            `json:"entry_date"`
	EntryTime         string          `json:"entry_time"`
	AssetID           *string         `json:"asset_id"`
	AssetLocation     string          `json:"asset_location"`
	BUName            string          `json:"bu_name"`
	OperatorName      string          `json:"operator_name"`
	KeyIssue          string          `json:"key_issue"`
	NatureOfComplaint string          `json:"nature_of_complaint"`
	Note              string          `json:"note"`
	BDStatus          BreakdownStatus `json:"bd_status"`
	ReportedBy        *string         `json:"reported_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// BreakdownEngineerEntry is the engineer's diagnosis and repair record.
// There is at most one per operator entry.
type BreakdownEngineerEntry struct {
	ID                string     `json:"id"`
	BDOperatorID      string     `json:"bd_operator_id"`
	ActionTaken       string     `json:"action_taken"`
	EngineerFindings  string     `json:"engineer_findings"`
	JobStart          *time.Time `json:"job_start"`
	JobCompletionDate *time.Time `json:"job_completion_date"`
	ResponsiblePerson string     `json:"responsible_person"`
	SpareUsageID      *string    `json:"spare_usage_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Breakdown joins the operator entry with its engineer entry, if any.
type Breakdown struct {
	BreakdownOperatorEntry
	AssetCode string                  `json:"asset_code,omitempty"`
	AssetName string                  `json:"asset_name,omitempty"`
	Engineer  *BreakdownEngineerEntry `json:"engineer,omitempty"`
}

// SparePart is an inventory line.
type SparePart struct {
	ID            string          `json:"id"`
	PartCode      string          `json:"part_code"`
	PartName      string          `json:"part_name"`
	PartNo        string          `json:"part_no"`
	MinLevel      int             `json:"min_level"`
	ReorderLevel  int             `json:"reorder_level"`
	CurrentStock  int             `json:"current_stock"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Supplier      string          `json:"supplier"`
	SpareLocation string          `json:"spare_location"`
	BUName        string          `json:"bu_name"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StockValue is current stock times unit cost.
func (p SparePart) StockValue() decimal.Decimal {
	return p.UnitCost.Mul(decimal.NewFromInt(int64(p.CurrentStock)))
}

// NeedsReorder reports whether stock has fallen to the reorder level.
func (p SparePart) NeedsReorder() bool {
	return p.CurrentStock <= p.ReorderLevel
}

// SpareTransaction is an immutable stock movement.
type SpareTransaction struct {
	ID           string    `json:"id"`
	PartID       string    `json:"part_id"`
	Direction    Direction `json:"direction"`
	Quantity     int       `json:"quantity"`
	BalanceAfter int       `json:"balance_after"`
	PMBDType     *WorkType `json:"pm_bd_type"`
	ReferenceID  *string   `json:"reference_id"`
	AssetID      *string   `json:"asset_id"`
	IssuedTo     string    `json:"issued_to"`
	Remarks      string    `json:"remarks"`
	CreatedBy    *string   `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReorderAlert is raised when a part's stock falls to its reorder level.
type ReorderAlert struct {
	ID           string     `json:"id"`
	PartID       string     `json:"part_id"`
	PartCode     string     `json:"part_code"`
	PartName     string     `json:"part_name"`
	CurrentStock int        `json:"current_stock"`
	ReorderLevel int        `json:"reorder_level"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at"`
}

// UtilityLog is one append-only meter reading.
type UtilityLog struct {
	ID             string          `json:"id"`
	UtilityType    UtilityType     `json:"utility_type"`
	MeterPoint     string          `json:"meter_point"`
	ReadingUnit    string          `json:"reading_unit"`
	ReadingValue   decimal.Decimal `json:"reading_value"`
	Timestamp      time.Time       `json:"timestamp"`
	AssetID        *string         `json:"asset_id"`
	BusinessUnitID *string         `json:"business_unit_id"`
	LocationID     *string         `json:"location_id"`
	Remarks        string          `json:"remarks"`
	Source         string          `json:"source"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Profile is a user account. PasswordHash never leaves the server.
type Profile struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserSummary is the identity block returned at login.
type UserSummary struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Summary strips a profile down to what clients see at login.
func (p Profile) Summary() UserSummary {
	return UserSummary{ID: p.ID, FullName: p.FullName, Email: p.Email, Role: p.Role}
}

// DashboardStats is the landing page summary.
type DashboardStats struct {
	Assets                AssetStats     `json:"assets"`
	PreventiveMaintenance PMStats        `json:"preventiveMaintenance"`
	BreakdownMaintenance  BreakdownStats `json:"breakdownMaintenance"`
	SpareInventory        SpareStats     `json:"spareInventory"`
	UtilitiesMonitoring   UtilityStats   `json:"utilitiesMonitoring"`
}

// AssetStats counts the asset register.
type AssetStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// PMStats counts PM schedules.
type PMStats struct {
	Total   int `json:"total"`
	Overdue int `json:"overdue"`
	DueWeek int `json:"dueThisWeek"`
}

// BreakdownStats counts breakdowns.
type BreakdownStats struct {
	Open        int `json:"open"`
	InProgress  int `json:"inProgress"`
	ClosedToday int `json:"closedToday"`
}

// SpareStats summarises inventory.
type SpareStats struct {
	TotalParts int             `json:"totalParts"`
	LowStock   int             `json:"lowStock"`
	StockValue decimal.Decimal `json:"stockValue"`
}

// UtilityStats summarises meter activity in the last 24 hours.
type UtilityStats struct {
	ActiveMeters  int `json:"activeMeters"`
	ReadingsToday int `json:"readingsToday"`
}
