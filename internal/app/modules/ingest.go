package modules

import (
	"context"
	"errors"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"plantops.io/mis/internal/api/handlers"
	"plantops.io/mis/internal/ingest"
	"plantops.io/mis/internal/notification"
	"plantops.io/mis/internal/pkg/logger"
)

var errMQTTDisconnected = errors.New("mqtt broker not connected")

// IngestModule runs the MQTT meter subscriber when mqtt.enabled is set.
type IngestModule struct {
	subscriber *ingest.Subscriber
	alertTopic string
}

// NewIngestModule returns a module that does nothing when MQTT is disabled.
func NewIngestModule(infra *Infrastructure) *IngestModule {
	if infra == nil || infra.Config == nil || !infra.Config.MQTT.Enabled || infra.Store == nil || infra.Pools == nil {
		return &IngestModule{}
	}
	return &IngestModule{
		subscriber: ingest.NewSubscriber(infra.Config.MQTT, infra.Store, infra.Pools.Ingest),
		alertTopic: infra.Config.MQTT.AlertTopic,
	}
}

// AlertSender publishes notices on the subscriber's broker connection, or
// only logs them when MQTT is disabled.
func (m *IngestModule) AlertSender() notification.Sender {
	if m.subscriber == nil {
		return notification.NewLogSender()
	}
	return notification.NewMQTTSender(m.subscriber, m.alertTopic)
}

func (m *IngestModule) Name() string { return "ingest" }

func (m *IngestModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil || m.subscriber == nil {
		return
	}
	if deps.HealthChecks == nil {
		deps.HealthChecks = map[string]handlers.HealthCheck{}
	}
	sub := m.subscriber
	deps.HealthChecks["mqtt"] = func(context.Context) error {
		if !sub.Connected() {
			return errMQTTDisconnected
		}
		return nil
	}
}

func (m *IngestModule) RegisterWorkers(_ *river.Workers) error { return nil }

// Start connects the subscriber. A broker that is down at boot is logged;
// the API keeps serving and /api/health reports mqtt as failing.
func (m *IngestModule) Start(ctx context.Context) error {
	if m.subscriber == nil {
		return nil
	}
	if err := m.subscriber.Start(ctx); err != nil {
		logger.Error("mqtt ingest not started", zap.Error(err))
	}
	return nil
}

func (m *IngestModule) Shutdown(context.Context) error {
	if m.subscriber != nil {
		m.subscriber.Stop()
	}
	return nil
}
