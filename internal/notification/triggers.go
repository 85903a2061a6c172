package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"plantops.io/mis/internal/pkg/logger"
)

// Triggers turns maintenance events into notices. Delivery failures are
// logged and never fail the job that raised the event.
type Triggers struct {
	sender Sender
}

// NewTriggers creates triggers over sender. A nil sender logs only.
func NewTriggers(sender Sender) *Triggers {
	if sender == nil {
		sender = NewLogSender()
	}
	return &Triggers{sender: sender}
}

// OnReorderLevel fires when a new reorder alert is opened for a part.
func (t *Triggers) OnReorderLevel(ctx context.Context, partID, partCode string, balance, reorderLevel int) {
	if t == nil {
		return
	}
	params := Params{
		Type:         TypeSpareReorder,
		Title:        fmt.Sprintf("Spare part %s at reorder level", partCode),
		Message:      fmt.Sprintf("Stock of %s is %d, reorder level is %d", partCode, balance, reorderLevel),
		ResourceType: "spare_part",
		ResourceID:   partID,
	}
	if err := t.sender.Send(ctx, params); err != nil {
		logger.Error("failed to send SPARE_REORDER notification",
			zap.String("part_id", partID),
			zap.Error(err),
		)
	}
}

// OnPMOverdue fires when a sweep flags plans overdue. A zero count is silent.
func (t *Triggers) OnPMOverdue(ctx context.Context, count int64, asOf string) {
	if t == nil || count <= 0 {
		return
	}
	params := Params{
		Type:         TypePMOverdue,
		Title:        "Preventive maintenance overdue",
		Message:      fmt.Sprintf("%d PM schedule(s) became overdue as of %s", count, asOf),
		ResourceType: "pm_schedule",
	}
	if err := t.sender.Send(ctx, params); err != nil {
		logger.Error("failed to send PM_OVERDUE notification",
			zap.Int64("count", count),
			zap.Error(err),
		)
	}
}
