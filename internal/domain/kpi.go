package domain

import (
	"math"
	"time"
)

// RepairRecord is the timing of one breakdown, as needed for KPIs.
type RepairRecord struct {
	AssetID    string
	ReportedAt time.Time
	StartedAt  *time.Time
	RepairedAt *time.Time
}

// Downtime is the time from report to repair. Unrepaired records count
// until the end of the window.
func (r RepairRecord) Downtime(windowEnd time.Time) time.Duration {
	end := windowEnd
	if r.RepairedAt != nil && r.RepairedAt.Before(windowEnd) {
		end = *r.RepairedAt
	}
	if end.Before(r.ReportedAt) {
		return 0
	}
	return end.Sub(r.ReportedAt)
}

// KPIInput describes one reporting window.
type KPIInput struct {
	From              time.Time
	To                time.Time
	AssetCount        int
	PlannedDowntime   time.Duration
	PerformanceFactor float64
	QualityFactor     float64
	Records           []RepairRecord
}

// KPIStatus grades a KPI against the plant's targets.
type KPIStatus string

const (
	KPIGood     KPIStatus = "good"
	KPIWarning  KPIStatus = "warning"
	KPICritical KPIStatus = "critical"
)

// KPIValue is a figure with its grade.
type KPIValue struct {
	Value  float64   `json:"value"`
	Unit   string    `json:"unit"`
	Status KPIStatus `json:"status"`
}

// KPIReport is the body of GET /api/kpi.
type KPIReport struct {
	From          Date     `json:"from"`
	To            Date     `json:"to"`
	AssetCount    int      `json:"asset_count"`
	Breakdowns    int      `json:"breakdowns"`
	Repaired      int      `json:"repaired"`
	DowntimeHours float64  `json:"downtime_hours"`
	MTTR          KPIValue `json:"mttr"`
	MTBF          KPIValue `json:"mtbf"`
	Uptime        KPIValue `json:"uptime"`
	OEE           KPIValue `json:"oee"`
}

// ComputeKPI derives MTTR, MTBF, uptime and OEE for a window.
//
// MTTR averages report-to-repair time over repaired breakdowns. MTBF divides
// operating time (available minus downtime) by the number of failures; with no
// failures it equals the operating time. OEE is availability times the
// configured performance and quality factors.
func ComputeKPI(in KPIInput) KPIReport {
	report := KPIReport{
		From:       NewDate(in.From),
		To:         NewDate(in.To),
		AssetCount: in.AssetCount,
		Breakdowns: len(in.Records),
	}

	window := in.To.Sub(in.From)
	if window < 0 {
		window = 0
	}
	assets := in.AssetCount
	if assets < 1 {
		assets = 1
	}
	available := time.Duration(assets)*window - in.PlannedDowntime
	if available < 0 {
		available = 0
	}

	var downtime, repairTotal time.Duration
	for _, r := range in.Records {
		downtime += r.Downtime(in.To)
		if r.RepairedAt != nil {
			report.Repaired++
			if d := r.RepairedAt.Sub(r.ReportedAt); d > 0 {
				repairTotal += d
			}
		}
	}
	if downtime > available {
		downtime = available
	}
	operating := available - downtime
	report.DowntimeHours = round2(downtime.Hours())

	mttr := 0.0
	if report.Repaired > 0 {
		mttr = repairTotal.Hours() / float64(report.Repaired)
	}
	mtbf := operating.Hours()
	if report.Breakdowns > 0 {
		mtbf = operating.Hours() / float64(report.Breakdowns)
	}
	availability := 1.0
	if available > 0 {
		availability = operating.Hours() / available.Hours()
	}

	perf := factor(in.PerformanceFactor)
	quality := factor(in.QualityFactor)
	uptime := availability * 100
	oee := availability * perf * quality * 100

	report.MTTR = KPIValue{Value: round2(mttr), Unit: "hours", Status: gradeLowerIsBetter(mttr, 3, 4)}
	report.MTBF = KPIValue{Value: round2(mtbf), Unit: "hours", Status: gradeHigherIsBetter(mtbf, 150, 100)}
	report.Uptime = KPIValue{Value: round2(uptime), Unit: "percent", Status: gradeHigherIsBetter(uptime, 95, 90)}
	report.OEE = KPIValue{Value: round2(oee), Unit: "percent", Status: gradeHigherIsBetter(oee, 85, 75)}
	return report
}

func factor(f float64) float64 {
	if f <= 0 || f > 1 {
		return 1
	}
	return f
}

func gradeLowerIsBetter(v, good, warn float64) KPIStatus {
	switch {
	case v < good:
		return KPIGood
	case v < warn:
		return KPIWarning
	default:
		return KPICritical
	}
}

func gradeHigherIsBetter(v, good, warn float64) KPIStatus {
	switch {
	case v > good:
		return KPIGood
	case v > warn:
		return KPIWarning
	default:
		return KPICritical
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
