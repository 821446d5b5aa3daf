package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqttcommon "wisefido-vitalsync/common/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]mqttcommon.MessageHandler
	unsubscribed []string
	subErr       error
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return f.subErr
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

func (f *fakeSubscriber) deliver(t *testing.T, topic, payload string) error {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	require.True(t, ok, "not subscribed to %s", topic)
	return h(topic, []byte(payload))
}

type nudgeCall struct {
	patientID string
	withECG   bool
}

type fakeNudger struct {
	mu    sync.Mutex
	calls []nudgeCall
}

func (f *fakeNudger) Nudge(_ context.Context, patientID string, withECG bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, nudgeCall{patientID, withECG})
	return nil
}

func (f *fakeNudger) snapshot() []nudgeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]nudgeCall{}, f.calls...)
}

func startConsumer(t *testing.T) (*fakeSubscriber, *fakeNudger, *MQTTConsumer) {
	t.Helper()
	sub := &fakeSubscriber{handlers: map[string]mqttcommon.MessageHandler{}}
	nudger := &fakeNudger{}
	c := NewMQTTConsumer(sub, nudger, []string{"patient/vitals", "patient/ecg_stream"}, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	require.Eventually(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.handlers) == 2
	}, time.Second, 5*time.Millisecond)
	return sub, nudger, c
}

func TestMQTTConsumer_NudgesPerTopic(t *testing.T) {
	sub, nudger, _ := startConsumer(t)

	require.NoError(t, sub.deliver(t, "patient/vitals", `{"patient_id":"p1","heart_rate":72}`))
	require.NoError(t, sub.deliver(t, "patient/ecg_stream", `{"PATIENT_ID":"p2","ecg_samples":[1,2]}`))

	require.Eventually(t, func() bool { return len(nudger.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []nudgeCall{{"p1", false}, {"p2", true}}, nudger.snapshot())
}

func TestMQTTConsumer_IgnoresBadMessages(t *testing.T) {
	sub, nudger, _ := startConsumer(t)

	assert.Error(t, sub.deliver(t, "patient/vitals", `not json`))
	assert.NoError(t, sub.deliver(t, "patient/vitals", `{"heart_rate":72}`))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, nudger.snapshot())
}

func TestMQTTConsumer_StartErrors(t *testing.T) {
	c := NewMQTTConsumer(&fakeSubscriber{handlers: map[string]mqttcommon.MessageHandler{}}, &fakeNudger{}, nil, 1, zap.NewNop())
	assert.Error(t, c.Start(context.Background()))

	sub := &fakeSubscriber{handlers: map[string]mqttcommon.MessageHandler{}, subErr: errors.New("not connected")}
	c = NewMQTTConsumer(sub, &fakeNudger{}, []string{"patient/vitals"}, 1, zap.NewNop())
	assert.ErrorContains(t, c.Start(context.Background()), "not connected")
}

func TestMQTTConsumer_Stop(t *testing.T) {
	_, _, c := startConsumer(t)
	require.NoError(t, c.Stop(context.Background()))
	sub := c.subscriber.(*fakeSubscriber)
	assert.Equal(t, []string{"patient/vitals", "patient/ecg_stream"}, sub.unsubscribed)
}

func TestIsECGTopic(t *testing.T) {
	assert.True(t, isECGTopic("patient/ecg_stream"))
	assert.True(t, isECGTopic("ward/ECG"))
	assert.False(t, isECGTopic("patient/vitals"))
}
