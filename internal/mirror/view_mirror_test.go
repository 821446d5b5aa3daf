package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisefido-vitalsync/internal/models"
	"wisefido-vitalsync/internal/store"
	"wisefido-vitalsync/internal/view"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeKVStore struct {
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeKVStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeKVStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	f.ttl[key] = ttl
	return nil
}

func sampleFrame() view.Frame {
	d := view.NewDashboard()
	d.SetPatients([]string{"p1"}, "p1")
	hr, level := 72.0, "warning"
	d.ApplyLatest(&models.VitalsSnapshot{HeartRate: &hr, AlertLevel: &level}, time.Now())
	v1, v2 := 0.5, -0.5
	d.ApplyECG([]*float64{&v1, &v2})
	return d.Frame()
}

func TestViewMirror_RenderWritesFrameWithTTL(t *testing.T) {
	kv := newFakeKVStore()
	m := NewViewMirror(kv, "", 30*time.Second, zap.NewNop())

	frame := sampleFrame()
	require.NoError(t, m.Render(context.Background(), frame))

	key := "vital-sync:patient:p1:view"
	assert.Contains(t, kv.data, key)
	assert.Equal(t, 30*time.Second, kv.ttl[key])

	got, ok, err := m.Load(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, frame.Fields, got.Fields)
	assert.Equal(t, frame.Badge, got.Badge)
	assert.Equal(t, frame.ECG.Labels, got.ECG.Labels)
}

func TestViewMirror_SkipsWithoutSelection(t *testing.T) {
	kv := newFakeKVStore()
	m := NewViewMirror(kv, "", time.Second, zap.NewNop())

	require.NoError(t, m.Render(context.Background(), view.NewDashboard().Frame()))
	assert.Empty(t, kv.data)
}

func TestViewMirror_SetError(t *testing.T) {
	kv := newFakeKVStore()
	kv.err = errors.New("redis down")
	m := NewViewMirror(kv, "", time.Second, zap.NewNop())

	err := m.Render(context.Background(), sampleFrame())
	assert.ErrorContains(t, err, "redis down")
}

func TestViewMirror_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	m := NewViewMirror(store.NewRedisKVStore(client), "ward:", 10*time.Second, zap.NewNop())

	require.NoError(t, m.Render(context.Background(), sampleFrame()))
	assert.True(t, mr.Exists("ward:p1:view"))
	assert.Equal(t, 10*time.Second, mr.TTL("ward:p1:view"))

	mr.FastForward(11 * time.Second)
	_, ok, err := m.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}
