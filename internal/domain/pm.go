package domain

import (
	"strconv"
	"strings"

	apperrors "plantops.io/mis/internal/pkg/errors"
)

// EffectiveStatus derives overdue on read: a schedule that is not completed
// and whose next due date is before today is overdue regardless of what is stored.
func (s PMSchedule) EffectiveStatus(today Date) PMStatus {
	if s.Status == PMCompleted {
		return PMCompleted
	}
	if s.NextPMDate != nil && s.NextPMDate.Before(today) {
		return PMOverdue
	}
	if s.Status == PMOverdue {
		// Rescheduled into the future since the last sweep.
		return PMScheduled
	}
	return s.Status
}

var namedFrequencies = map[string]int{
	"daily":       1,
	"weekly":      7,
	"fortnightly": 14,
	"biweekly":    14,
	"monthly":     30,
	"quarterly":   90,
	"half-yearly": 182,
	"half_yearly": 182,
	"semiannual":  182,
	"yearly":      365,
	"annual":      365,
	"annually":    365,
}

// FrequencyDays converts a PM interval such as "monthly", "30", "30 days",
// "2 weeks" or "6 months" into a day count.
func FrequencyDays(interval string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(interval))
	if days, ok := namedFrequencies[v]; ok {
		return days, nil
	}

	fields := strings.Fields(v)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, invalidFrequency(interval)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0, invalidFrequency(interval)
	}
	if len(fields) == 1 {
		return n, nil
	}
	switch strings.TrimSuffix(fields[1], "s") {
	case "day":
		return n, nil
	case "week":
		return n * 7, nil
	case "month":
		return n * 30, nil
	case "year":
		return n * 365, nil
	}
	return 0, invalidFrequency(interval)
}

func invalidFrequency(interval string) error {
	return apperrors.Validation("frequency_interval",
		"frequency_interval '"+interval+"' is not a recognised interval (e.g. monthly, 30 days, 2 weeks)")
}
