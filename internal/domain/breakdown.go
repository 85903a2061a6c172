package domain

import (
	"fmt"
	"strings"

	apperrors "plantops.io/mis/internal/pkg/errors"
)

// breakdownTransitions lists the statuses reachable from each status.
// A resolved breakdown may be reopened to in_progress; closed is terminal.
var breakdownTransitions = map[BreakdownStatus][]BreakdownStatus{
	BreakdownOpen:         {BreakdownAcknowledged, BreakdownInProgress, BreakdownResolved},
	BreakdownAcknowledged: {BreakdownInProgress, BreakdownResolved},
	BreakdownInProgress:   {BreakdownResolved},
	BreakdownResolved:     {BreakdownClosed, BreakdownInProgress},
	BreakdownClosed:       nil,
}

// CanTransition reports whether a breakdown may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to BreakdownStatus) bool {
	if from == to {
		return true
	}
	for _, next := range breakdownTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a 409 AppError when CanTransition is false.
func CheckTransition(from, to BreakdownStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	allowed := make([]string, 0, len(breakdownTransitions[from]))
	for _, s := range breakdownTransitions[from] {
		allowed = append(allowed, string(s))
	}
	msg := fmt.Sprintf("breakdown cannot move from %s to %s", from, to)
	if len(allowed) > 0 {
		msg += "; allowed: " + strings.Join(allowed, ", ")
	}
	return apperrors.Conflict(apperrors.CodeInvalidStatusTransition, msg).
		WithParams(map[string]interface{}{
			"from":    string(from),
			"to":      string(to),
			"allowed": allowed,
		})
}
