// Package ingest subscribes to utility meter telemetry over MQTT and stores
// each reading as a utility log.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"plantops.io/mis/internal/config"
	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/pkg/logger"
	"plantops.io/mis/internal/pkg/worker"
	"plantops.io/mis/internal/repository"
	"plantops.io/mis/internal/usecase"
)

const (
	// Source is stored on every reading that arrives over MQTT.
	Source = "mqtt"

	connectTimeout = 10 * time.Second
	insertTimeout  = 5 * time.Second
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt broker not connected")

// ReadingWriter persists validated readings. *repository.Store satisfies it.
type ReadingWriter interface {
	InsertUtilityLog(ctx context.Context, p repository.InsertUtilityParams) (*domain.UtilityLog, error)
}

// Submitter runs a task off the MQTT delivery goroutine. *worker.Pool
// satisfies it.
type Submitter interface {
	Submit(ctx context.Context, task worker.Task) error
}

// Subscriber consumes meter readings from the broker.
type Subscriber struct {
	cfg    config.MQTTConfig
	writer ReadingWriter
	pool   Submitter
	now    func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	client mqtt.Client
}

// NewSubscriber creates a subscriber. It does not connect until Start.
func NewSubscriber(cfg config.MQTTConfig, writer ReadingWriter, pool Submitter) *Subscriber {
	return &Subscriber{
		cfg:    cfg,
		writer: writer,
		pool:   pool,
		now:    time.Now,
		ctx:    context.Background(),
	}
}

// Start connects to the broker and subscribes to the reading topic. ctx
// bounds the lifetime of the inserts it schedules.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	s.ctx = ctx

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			// Subscriptions are re-established on every reconnect.
			token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage)
			if token.WaitTimeout(connectTimeout) && token.Error() != nil {
				logger.Error("mqtt subscribe failed", zap.String("topic", s.cfg.Topic), zap.Error(token.Error()))
				return
			}
			logger.Info("mqtt subscribed", zap.String("broker", s.cfg.Broker), zap.String("topic", s.cfg.Topic))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect to mqtt broker %s: timed out", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to mqtt broker %s: %w", s.cfg.Broker, err)
	}
	s.client = client
	return nil
}

// Stop unsubscribes and disconnects, waiting briefly for in-flight work.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return
	}
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	}
	s.client.Disconnect(250)
	s.client = nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.Handle(ctx, msg.Topic(), msg.Payload())
}

// Handle validates one payload and schedules its insert. Invalid payloads are
// logged and dropped, as are readings the pool has no room for.
func (s *Subscriber) Handle(ctx context.Context, topic string, payload []byte) {
	params, err := s.decode(topic, payload)
	if err != nil {
		logger.Warn("dropping invalid meter reading",
			zap.String("topic", topic),
			zap.Int("bytes", len(payload)),
			zap.Error(err),
		)
		return
	}

	err = s.pool.Submit(ctx, func(ctx context.Context) {
		insertCtx, cancel := context.WithTimeout(ctx, insertTimeout)
		defer cancel()
		if _, err := s.writer.InsertUtilityLog(insertCtx, params); err != nil {
			logger.Error("store meter reading failed",
				zap.String("meter_point", params.MeterPoint),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		level := logger.Warn
		if errors.Is(err, worker.ErrPoolClosed) {
			level = logger.Debug
		}
		level("meter reading not scheduled", zap.String("meter_point", params.MeterPoint), zap.Error(err))
	}
}

// decode parses a reading. The meter point defaults to the last topic
// segment, so mis/utilities/AIR-1 may omit it from the payload.
func (s *Subscriber) decode(topic string, payload []byte) (repository.InsertUtilityParams, error) {
	var in usecase.UtilityReadingInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return repository.InsertUtilityParams{}, fmt.Errorf("decode payload: %w", err)
	}
	if strings.TrimSpace(in.MeterPoint) == "" {
		if i := strings.LastIndex(topic, "/"); i >= 0 && i < len(topic)-1 {
			in.MeterPoint = topic[i+1:]
		}
	}
	return usecase.ValidateUtilityReading(in, Source, s.now())
}

// Publish sends payload to topic on the subscriber's connection at the
// configured QoS. It waits for the broker acknowledgement or ctx.
func (s *Subscriber) Publish(ctx context.Context, topic string, payload []byte) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := client.Publish(topic, s.cfg.QoS, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connected reports whether the broker connection is up. It is used as a
// health check.
func (s *Subscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.IsConnectionOpen()
}
