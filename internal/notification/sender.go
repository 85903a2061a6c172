// Package notification announces maintenance events (parts at reorder level,
// PM plans gone overdue) to the plant floor.
//
// Notices are always logged. When MQTT is enabled they are also published
// as JSON under the alert topic, one sub-topic per notice type.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"plantops.io/mis/internal/pkg/logger"
)

// Type constants.
const (
	TypeSpareReorder = "SPARE_REORDER"
	TypePMOverdue    = "PM_OVERDUE"
)

// Params holds the fields of one notice.
type Params struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	ResourceType string `json:"resource_type,omitempty"` // e.g. "spare_part"
	ResourceID   string `json:"resource_id,omitempty"`
}

// Sender delivers notices.
type Sender interface {
	Send(ctx context.Context, params Params) error
}

// LogSender writes notices to the application log.
type LogSender struct{}

// NewLogSender creates a log sender.
func NewLogSender() *LogSender { return &LogSender{} }

// Send logs the notice at warn level.
func (LogSender) Send(_ context.Context, params Params) error {
	if err := validateParams(params); err != nil {
		return fmt.Errorf("notification params invalid: %w", err)
	}
	logger.Warn(params.Title,
		zap.String("type", params.Type),
		zap.String("message", params.Message),
		zap.String("resource_type", params.ResourceType),
		zap.String("resource_id", params.ResourceID),
	)
	return nil
}

// Publisher sends a payload to a broker topic. *ingest.Subscriber
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// MQTTSender logs each notice and publishes it under topicPrefix.
type MQTTSender struct {
	pub         Publisher
	topicPrefix string
	log         LogSender
	now         func() time.Time
}

// NewMQTTSender creates a publishing sender.
func NewMQTTSender(pub Publisher, topicPrefix string) *MQTTSender {
	return &MQTTSender{
		pub:         pub,
		topicPrefix: strings.TrimRight(topicPrefix, "/"),
		now:         time.Now,
	}
}

type wireNotice struct {
	Params
	SentAt time.Time `json:"sent_at"`
}

// Send logs the notice, then publishes it. A publish failure is returned
// after the notice has been logged.
func (s *MQTTSender) Send(ctx context.Context, params Params) error {
	if err := s.log.Send(ctx, params); err != nil {
		return err
	}
	payload, err := json.Marshal(wireNotice{Params: params, SentAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := s.pub.Publish(ctx, s.Topic(params.Type), payload); err != nil {
		return fmt.Errorf("publish %s notification: %w", params.Type, err)
	}
	return nil
}

// Topic is the topic a notice of type t is published on.
func (s *MQTTSender) Topic(t string) string {
	return s.topicPrefix + "/" + strings.ToLower(t)
}

// compile-time check
var (
	_ Sender = LogSender{}
	_ Sender = (*MQTTSender)(nil)
)

func validateParams(p Params) error {
	if p.Type == "" {
		return fmt.Errorf("type is required")
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if p.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}
