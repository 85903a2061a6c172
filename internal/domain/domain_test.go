package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "plantops.io/mis/internal/pkg/errors"
)

func TestParseAssetStatus_Lowercases(t *testing.T) {
	for _, raw := range []string{"ACTIVE", "active", " Active "} {
		got, err := ParseAssetStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, AssetStatusActive, got)
	}
}

func TestParseAssetStatus_RejectsUnknownWithAllowedValues(t *testing.T) {
	_, err := ParseAssetStatus("broken")
	require.Error(t, err)

	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidEnumValue, appErr.Code)
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.Contains(t, appErr.Message, "asset_status")
	assert.Contains(t, appErr.Message, "under_amc")
}

func TestParseEnums(t *testing.T) {
	tests := []struct {
		name  string
		parse func(string) (string, error)
		in    string
		want  string
		err   bool
	}{
		{"asset type", wrap(ParseAssetType), "Machine", "machine", false},
		{"asset type invalid", wrap(ParseAssetType), "robot", "", true},
		{"bd status ack alias", wrap(ParseBreakdownStatus), "ack", "acknowledged", false},
		{"bd status", wrap(ParseBreakdownStatus), "IN_PROGRESS", "in_progress", false},
		{"pm status", wrap(ParsePMStatus), "Completed", "completed", false},
		{"direction", wrap(ParseDirection), "ISSUE", "issue", false},
		{"direction invalid", wrap(ParseDirection), "transfer", "", true},
		{"work type", wrap(ParseWorkType), "BD", "bd", false},
		{"utility capitalised", wrap(ParseUtilityType), "Power", "power", false},
		{"utility compressed air", wrap(ParseUtilityType), "compressed_air", "air", false},
		{"utility invalid", wrap(ParseUtilityType), "steam", "", true},
		{"shift upper-cased", wrap(ParseShift), "b", "B", false},
		{"shift invalid", wrap(ParseShift), "D", "", true},
		{"role", wrap(ParseRole), "Admin", "admin", false},
		{"role invalid", wrap(ParseRole), "root", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parse(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func wrap[T ~string](f func(string) (T, error)) func(string) (string, error) {
	return func(s string) (string, error) {
		v, err := f(s)
		return string(v), err
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to BreakdownStatus
		want     bool
	}{
		{BreakdownOpen, BreakdownAcknowledged, true},
		{BreakdownOpen, BreakdownInProgress, true},
		{BreakdownAcknowledged, BreakdownInProgress, true},
		{BreakdownInProgress, BreakdownResolved, true},
		{BreakdownResolved, BreakdownClosed, true},
		{BreakdownResolved, BreakdownInProgress, true},
		{BreakdownOpen, BreakdownClosed, false},
		{BreakdownInProgress, BreakdownOpen, false},
		{BreakdownClosed, BreakdownOpen, false},
		{BreakdownClosed, BreakdownClosed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCheckTransition_ConflictError(t *testing.T) {
	err := CheckTransition(BreakdownClosed, BreakdownOpen)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidStatusTransition, appErr.Code)
	assert.Equal(t, 409, appErr.HTTPStatus)

	assert.NoError(t, CheckTransition(BreakdownOpen, BreakdownAcknowledged))
}

func TestPMSchedule_EffectiveStatus(t *testing.T) {
	today := NewDate(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	past := today.AddDays(-1)
	future := today.AddDays(5)

	tests := []struct {
		name   string
		status PMStatus
		next   *Date
		want   PMStatus
	}{
		{"scheduled in future", PMScheduled, &future, PMScheduled},
		{"scheduled in past", PMScheduled, &past, PMOverdue},
		{"due today is not overdue", PMScheduled, &today, PMScheduled},
		{"completed stays completed", PMCompleted, &past, PMCompleted},
		{"stored overdue but rescheduled", PMOverdue, &future, PMScheduled},
		{"no due date", PMScheduled, nil, PMScheduled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := PMSchedule{Status: tt.status, NextPMDate: tt.next}
			assert.Equal(t, tt.want, s.EffectiveStatus(today))
		})
	}
}

func TestFrequencyDays(t *testing.T) {
	tests := []struct {
		in   string
		want int
		err  bool
	}{
		{"monthly", 30, false},
		{"Weekly", 7, false},
		{"quarterly", 90, false},
		{"45", 45, false},
		{"30 days", 30, false},
		{"2 weeks", 14, false},
		{"6 months", 180, false},
		{"1 year", 365, false},
		{"0", 0, true},
		{"sometimes", 0, true},
		{"3 fortnights", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := FrequencyDays(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDate_JSON(t *testing.T) {
	d, err := ParseDate("install_date", "2025-11-03")
	require.NoError(t, err)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-11-03"`, string(b))

	var fromTimestamp Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-11-03T18:30:00Z"`), &fromTimestamp))
	assert.Equal(t, "2025-11-03", fromTimestamp.String())

	var empty struct {
		D *Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":null}`), &empty))
	assert.Nil(t, empty.D)

	_, err = ParseDate("install_date", "03/11/2025")
	assert.Error(t, err)
}

func TestDate_ScanAndValue(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)))
	assert.Equal(t, "2026-01-02", d.String())

	require.NoError(t, d.Scan("2026-02-03"))
	assert.Equal(t, "2026-02-03", d.String())

	v, err := d.Value()
	require.NoError(t, err)
	assert.IsType(t, time.Time{}, v)

	require.NoError(t, d.Scan(nil))
	v, err = d.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Error(t, d.Scan(42))
}

func TestParseClock(t *testing.T) {
	got, err := ParseClock("entry_time", "07:45")
	require.NoError(t, err)
	assert.Equal(t, "07:45:00", got)

	got, err = ParseClock("entry_time", "23:59:59")
	require.NoError(t, err)
	assert.Equal(t, "23:59:59", got)

	_, err = ParseClock("entry_time", "25:00")
	assert.Error(t, err)
}

func TestDefaultPermissions(t *testing.T) {
	perms := DefaultPermissions()

	assert.True(t, perms.Has(RoleAdmin, PermManageUsers))
	assert.True(t, perms.Has(RoleAdmin, PermDeleteAssets))
	assert.True(t, perms.Has(RoleEngineer, PermUpdateBreakdown))
	assert.True(t, perms.Has(RoleEngineer, PermIssueSpares))
	assert.False(t, perms.Has(RoleOperator, PermUpdateBreakdown))
	assert.False(t, perms.Has(RoleManager, PermUpdateBreakdown))
	assert.False(t, perms.Has(RoleManager, PermManageUsers))
	assert.False(t, perms.Has(Role("ghost"), PermViewAssets))

	// Every role sees the dashboard.
	for _, role := range Roles() {
		assert.True(t, perms.Has(role, PermViewDashboard), role)
	}
}

func TestParsePermissionTable_Rejects(t *testing.T) {
	_, err := ParsePermissionTable([]byte("operator: [view_assets]\n"))
	assert.ErrorContains(t, err, "missing")

	_, err = ParsePermissionTable([]byte("operator: [fly]\nengineer: []\nmanager: []\nadmin: []\n"))
	assert.ErrorContains(t, err, "unknown permission")

	_, err = ParsePermissionTable([]byte("superuser: []\n"))
	assert.Error(t, err)
}

func TestPermissions_Sorted(t *testing.T) {
	perms := DefaultPermissions().Permissions(RoleOperator)
	require.NotEmpty(t, perms)
	for i := 1; i < len(perms); i++ {
		assert.Less(t, perms[i-1], perms[i])
	}
}

func TestSparePart_StockHelpers(t *testing.T) {
	p := SparePart{CurrentStock: 4, ReorderLevel: 5, UnitCost: decimal.RequireFromString("12.50")}
	assert.True(t, p.NeedsReorder())
	assert.True(t, p.StockValue().Equal(decimal.RequireFromString("50")))

	p.CurrentStock = 6
	assert.False(t, p.NeedsReorder())
}

func TestComputeKPI(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(30 * 24 * time.Hour) // 720h
	at := func(h int) *time.Time {
		v := from.Add(time.Duration(h) * time.Hour)
		return &v
	}

	report := ComputeKPI(KPIInput{
		From:       from,
		To:         to,
		AssetCount: 2, // 1440h available
		Records: []RepairRecord{
			{AssetID: "a", ReportedAt: *at(10), RepairedAt: at(12)},   // 2h
			{AssetID: "b", ReportedAt: *at(100), RepairedAt: at(104)}, // 4h
		},
	})

	assert.Equal(t, 2, report.Breakdowns)
	assert.Equal(t, 2, report.Repaired)
	assert.Equal(t, 6.0, report.DowntimeHours)
	assert.Equal(t, 3.0, report.MTTR.Value)
	assert.Equal(t, KPIWarning, report.MTTR.Status)
	assert.Equal(t, 717.0, report.MTBF.Value) // (1440-6)/2
	assert.Equal(t, KPIGood, report.MTBF.Status)
	assert.Equal(t, 99.58, report.Uptime.Value)
	assert.Equal(t, report.Uptime.Value, report.OEE.Value)
}

func TestComputeKPI_NoBreakdowns(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	report := ComputeKPI(KPIInput{
		From:              from,
		To:                from.Add(24 * time.Hour),
		AssetCount:        1,
		PerformanceFactor: 0.9,
		QualityFactor:     0.9,
	})

	assert.Equal(t, 0.0, report.MTTR.Value)
	assert.Equal(t, KPIGood, report.MTTR.Status)
	assert.Equal(t, 24.0, report.MTBF.Value)
	assert.Equal(t, 100.0, report.Uptime.Value)
	assert.Equal(t, 81.0, report.OEE.Value)
	assert.Equal(t, KPIWarning, report.OEE.Status)
}

func TestRepairRecord_DowntimeOpenUntilWindowEnd(t *testing.T) {
	reported := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	end := reported.Add(5 * time.Hour)
	r := RepairRecord{ReportedAt: reported}
	assert.Equal(t, 5*time.Hour, r.Downtime(end))
}
