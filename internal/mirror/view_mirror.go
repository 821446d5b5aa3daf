package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-vitalsync/internal/store"
	"wisefido-vitalsync/internal/view"

	"go.uber.org/zap"
)

// DefaultKeyPrefix 视图 key 格式为 "<prefix><patient_id>:view"
const DefaultKeyPrefix = "vital-sync:patient:"

// ViewMirror 将每次渲染的 frame 写入 Redis，供其他终端读取患者当前视图
// 条目在 ttl 后过期
type ViewMirror struct {
	kv     store.KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewViewMirror 创建镜像渲染端
func NewViewMirror(kv store.KVStore, prefix string, ttl time.Duration, logger *zap.Logger) *ViewMirror {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &ViewMirror{kv: kv, prefix: prefix, ttl: ttl, logger: logger}
}

// Key 患者的镜像 key
func (m *ViewMirror) Key(patientID string) string {
	return fmt.Sprintf("%s%s:view", m.prefix, patientID)
}

// Render 按当前患者写入 frame；未选择患者时跳过
func (m *ViewMirror) Render(ctx context.Context, frame view.Frame) error {
	if frame.Selected == "" {
		return nil
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal view frame: %w", err)
	}
	key := m.Key(frame.Selected)
	if err := m.kv.Set(ctx, key, string(data), m.ttl); err != nil {
		return fmt.Errorf("failed to mirror view: %w", err)
	}
	m.logger.Debug("Mirrored view",
		zap.String("patient_id", frame.Selected),
		zap.String("key", key),
		zap.Uint64("version", frame.Version),
	)
	return nil
}

// Notify 不做处理，notice 只在本地显示
func (m *ViewMirror) Notify(context.Context, view.Notice) error {
	return nil
}

// Load 读取患者的镜像 frame；不存在或已过期时 ok 为 false
func (m *ViewMirror) Load(ctx context.Context, patientID string) (frame view.Frame, ok bool, err error) {
	raw, err := m.kv.Get(ctx, m.Key(patientID))
	if errors.Is(err, store.ErrCacheMiss) {
		return view.Frame{}, false, nil
	}
	if err != nil {
		return view.Frame{}, false, fmt.Errorf("failed to read mirrored view: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		return view.Frame{}, false, fmt.Errorf("failed to unmarshal mirrored view: %w", err)
	}
	return frame, true, nil
}
