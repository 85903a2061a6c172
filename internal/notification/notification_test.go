package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantops.io/mis/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic: topic, payload: payload})
	return nil
}

type recordingSender struct {
	sent []Params
	err  error
}

func (r *recordingSender) Send(_ context.Context, p Params) error {
	r.sent = append(r.sent, p)
	return r.err
}

func TestLogSender_Validates(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewLogSender().Send(context.Background(), Params{Type: TypePMOverdue, Title: "t", Message: "m"}))
	assert.Error(t, NewLogSender().Send(context.Background(), Params{Type: TypePMOverdue, Title: "t"}))
}

func TestMQTTSender_PublishesJSON(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	s := NewMQTTSender(pub, "mis/alerts/")
	s.now = func() time.Time { return time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC) }

	err := s.Send(context.Background(), Params{
		Type: TypeSpareReorder, Title: "low", Message: "BRG at 2", ResourceType: "spare_part", ResourceID: "p-1",
	})
	require.NoError(t, err)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "mis/alerts/spare_reorder", pub.sent[0].topic)

	var body map[string]any
	require.NoError(t, json.Unmarshal(pub.sent[0].payload, &body))
	assert.Equal(t, "SPARE_REORDER", body["type"])
	assert.Equal(t, "p-1", body["resource_id"])
	assert.Equal(t, "2026-05-04T09:30:00Z", body["sent_at"])
}

func TestMQTTSender_Errors(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("not connected")}
	s := NewMQTTSender(pub, "mis/alerts")

	err := s.Send(context.Background(), Params{Type: TypePMOverdue, Title: "t", Message: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	err = s.Send(context.Background(), Params{Type: TypePMOverdue})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestTriggers(t *testing.T) {
	t.Parallel()

	t.Run("reorder level", func(t *testing.T) {
		rec := &recordingSender{}
		NewTriggers(rec).OnReorderLevel(context.Background(), "p-1", "BRG-6204", 3, 5)
		require.Len(t, rec.sent, 1)
		assert.Equal(t, TypeSpareReorder, rec.sent[0].Type)
		assert.Equal(t, "p-1", rec.sent[0].ResourceID)
		assert.Contains(t, rec.sent[0].Message, "BRG-6204 is 3")
	})

	t.Run("overdue count of zero is silent", func(t *testing.T) {
		rec := &recordingSender{}
		tr := NewTriggers(rec)
		tr.OnPMOverdue(context.Background(), 0, "2026-05-04")
		assert.Empty(t, rec.sent)

		tr.OnPMOverdue(context.Background(), 2, "2026-05-04")
		require.Len(t, rec.sent, 1)
		assert.Equal(t, TypePMOverdue, rec.sent[0].Type)
	})

	t.Run("delivery failures are swallowed", func(t *testing.T) {
		rec := &recordingSender{err: errors.New("broker down")}
		assert.NotPanics(t, func() {
			NewTriggers(rec).OnPMOverdue(context.Background(), 1, "2026-05-04")
		})
	})

	t.Run("nil triggers", func(t *testing.T) {
		var tr *Triggers
		assert.NotPanics(t, func() {
			tr.OnReorderLevel(context.Background(), "p", "c", 0, 1)
			tr.OnPMOverdue(context.Background(), 1, "d")
		})
	})
}
