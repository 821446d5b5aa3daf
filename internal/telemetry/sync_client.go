package telemetry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"wisefido-vitalsync/internal/client"
	"wisefido-vitalsync/internal/config"
	"wisefido-vitalsync/internal/models"
	"wisefido-vitalsync/internal/view"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Backend 只读遥测接口，由 *client.TelemetryClient 实现
type Backend interface {
	ListPatients(ctx context.Context) ([]string, error)
	LatestVitals(ctx context.Context, patientID string) (*models.VitalsSnapshot, error)
	History(ctx context.Context, patientID string, limit int) ([]models.VitalsSnapshot, error)
	LatestECG(ctx context.Context, patientID string) ([]*float64, error)
}

// Trigger 刷新周期的触发原因
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerSelect  Trigger = "select"
	TriggerManual  Trigger = "manual"
	TriggerTimer   Trigger = "timer"
	TriggerNudge   Trigger = "nudge"
)

// 默认值
const (
	DefaultHistoryLimit          = 120
	DefaultRefreshInterval       = 5 * time.Second
	DefaultManualRefreshInterval = time.Second
)

// Option SyncClient 的可选项
type Option func(*SyncClient)

func WithHistoryLimit(n int) Option {
	return func(c *SyncClient) { c.historyLimit = n }
}

func WithECGRefreshMode(m config.ECGRefreshMode) Option {
	return func(c *SyncClient) { c.ecgMode = m }
}

// WithLocation 历史图表标签使用的时区
func WithLocation(loc *time.Location) Option {
	return func(c *SyncClient) { c.loc = loc }
}

func WithRefreshInterval(d time.Duration) Option {
	return func(c *SyncClient) { c.interval = d }
}

// WithManualRefreshInterval 手动刷新和推送刷新的最小间隔，0 表示不限流
func WithManualRefreshInterval(d time.Duration) Option {
	return func(c *SyncClient) { c.manualInterval = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *SyncClient) { c.now = now }
}

type inflightCycle struct {
	patientID string
	cancel    context.CancelFunc
}

// SyncClient 将当前患者的仪表盘与后端保持同步
//
// 每个刷新周期带有递增的 generation。只有当该周期的患者仍被选中、且没有更新的
// 周期已应用时，结果才会被应用，因此重叠的周期不会留下过期数据。
type SyncClient struct {
	backend Backend
	surface view.Surface
	logger  *zap.Logger

	historyLimit   int
	ecgMode        config.ECGRefreshMode
	loc            *time.Location
	interval       time.Duration
	manualInterval time.Duration
	now            func() time.Time

	manualLimiter *rate.Limiter
	nudgeLimiter  *rate.Limiter

	mu         sync.Mutex
	dash       *view.Dashboard
	patients   []string
	issued     uint64 // 最后分配的 generation
	applied    uint64 // 最后应用的 generation
	ecgPending bool
	failed     bool // 启动失败，拒绝之后的所有操作
	inflight   map[uint64]inflightCycle

	renderMu sync.Mutex
	rendered uint64 // 最后交给渲染端的 frame 版本
}

// NewSyncClient 创建同步客户端
func NewSyncClient(backend Backend, surface view.Surface, logger *zap.Logger, opts ...Option) *SyncClient {
	c := &SyncClient{
		backend:        backend,
		surface:        surface,
		logger:         logger,
		historyLimit:   DefaultHistoryLimit,
		ecgMode:        config.ECGRefreshOnSelect,
		loc:            time.Local,
		interval:       DefaultRefreshInterval,
		manualInterval: DefaultManualRefreshInterval,
		now:            time.Now,
		dash:           view.NewDashboard(),
		inflight:       make(map[uint64]inflightCycle),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.manualLimiter = newLimiter(c.manualInterval)
	c.nudgeLimiter = newLimiter(c.manualInterval)
	return c
}

func newLimiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// Start 执行启动流程：获取患者列表，再为第一个患者执行一次含 ECG 的完整刷新。
// 任何失败都以 *StartupError 返回并显示阻塞错误提示，之后所有操作返回 ErrStartupFailed
func (c *SyncClient) Start(ctx context.Context) error {
	c.logger.Info("Starting telemetry sync",
		zap.Int("history_limit", c.historyLimit),
		zap.String("ecg_refresh_mode", string(c.ecgMode)),
		zap.Duration("refresh_interval", c.interval),
	)

	c.mu.Lock()
	c.ecgPending = true
	c.mu.Unlock()

	err := c.LoadPatients(ctx)
	if err == nil {
		err = c.Refresh(ctx, TriggerStartup)
	}
	if err != nil {
		startErr := &StartupError{Err: err}
		c.mu.Lock()
		c.failed = true
		c.cancelInflightLocked("")
		c.mu.Unlock()
		c.logger.Error("Telemetry sync startup failed", zap.Error(err))
		notice := view.Notice{
			Level:    view.NoticeError,
			Message:  "Dashboard error: " + err.Error(),
			Blocking: true,
			At:       c.now(),
		}
		if nerr := c.surface.Notify(ctx, notice); nerr != nil {
			c.logger.Warn("Failed to deliver startup notice", zap.Error(nerr))
		}
		return startErr
	}
	return nil
}

// Run 定时刷新直到 ctx 结束；失败只记录日志，保留上一次的显示
func (c *SyncClient) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.cancelInflightLocked("")
			c.mu.Unlock()
			return nil
		case <-ticker.C:
			if err := c.Refresh(ctx, TriggerTimer); err != nil {
				c.logger.Warn("Periodic refresh failed, keeping last display",
					zap.String("patient_id", c.Selected()),
					zap.Error(err),
				)
			}
		}
	}
}

// LoadPatients 重新获取患者列表并刷新选择器。
// 当前患者仍在列表中则保持选中，否则选中第一个；列表为空时清除选择
func (c *SyncClient) LoadPatients(ctx context.Context) error {
	if c.startupFailed() {
		return ErrStartupFailed
	}
	ids, err := c.backend.ListPatients(ctx)
	if err != nil {
		return fmt.Errorf("failed to list patients: %w", err)
	}

	c.mu.Lock()
	if c.failed {
		c.mu.Unlock()
		return ErrStartupFailed
	}
	selected := c.dash.Selected()
	if !slices.Contains(ids, selected) {
		selected = ""
		if len(ids) > 0 {
			selected = ids[0]
		}
	}
	if selected != c.dash.Selected() {
		c.switchPatientLocked(selected)
	}
	c.patients = append([]string(nil), ids...)
	c.dash.SetPatients(ids, selected)
	frame := c.dash.Frame()
	c.mu.Unlock()

	c.logger.Info("Patients loaded",
		zap.Int("count", len(ids)),
		zap.String("selected", selected),
	)
	c.render(ctx, frame)
	return nil
}

// RefreshPatients 重新获取患者列表，选中患者变化时立即刷新
func (c *SyncClient) RefreshPatients(ctx context.Context) error {
	before := c.Selected()
	if err := c.LoadPatients(ctx); err != nil {
		return err
	}
	if after := c.Selected(); after != "" && after != before {
		return c.Refresh(ctx, TriggerSelect)
	}
	return nil
}

func (c *SyncClient) startupFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

// Select 切换患者，取消上一个患者进行中的刷新并立即刷新
func (c *SyncClient) Select(ctx context.Context, patientID string) error {
	c.mu.Lock()
	if c.failed {
		c.mu.Unlock()
		return ErrStartupFailed
	}
	if !slices.Contains(c.patients, patientID) {
		c.mu.Unlock()
		return fmt.Errorf("failed to select %q: %w", patientID, ErrUnknownPatient)
	}
	if patientID != c.dash.Selected() {
		c.switchPatientLocked(patientID)
	}
	frame := c.dash.Frame()
	c.mu.Unlock()

	c.render(ctx, frame)
	return c.Refresh(ctx, TriggerSelect)
}

// switchPatientLocked 清除上一个患者的所有数据
func (c *SyncClient) switchPatientLocked(patientID string) {
	c.cancelInflightLocked(patientID)
	c.dash.SelectPatient(patientID)
	if c.ecgMode != config.ECGRefreshOnce {
		c.ecgPending = true
	}
}

// RefreshManual 用户手动刷新，每个手动刷新间隔内最多一次
func (c *SyncClient) RefreshManual(ctx context.Context) error {
	if c.startupFailed() {
		return ErrStartupFailed
	}
	if c.Selected() == "" {
		return ErrNoPatientSelected
	}
	if !c.manualLimiter.Allow() {
		return ErrRefreshThrottled
	}
	return c.Refresh(ctx, TriggerManual)
}

// Nudge 处理某患者的遥测消息：
// - 当前患者：刷新，withECG 时强制拉取波形
// - 列表外的患者：重新获取患者列表
// 所有推送共用一个限流器，突发消息合并为一次刷新
func (c *SyncClient) Nudge(ctx context.Context, patientID string, withECG bool) error {
	c.mu.Lock()
	if c.failed {
		c.mu.Unlock()
		return ErrStartupFailed
	}
	known := slices.Contains(c.patients, patientID)
	selected := c.dash.Selected()
	if known && patientID == selected && withECG {
		c.ecgPending = true
	}
	c.mu.Unlock()

	switch {
	case !known:
		if !c.nudgeLimiter.Allow() {
			return nil
		}
		c.logger.Info("Telemetry seen for unlisted patient, reloading patients",
			zap.String("patient_id", patientID),
		)
		return c.RefreshPatients(ctx)
	case patientID != selected:
		return nil
	case !c.nudgeLimiter.Allow():
		return nil
	default:
		return c.Refresh(ctx, TriggerNudge)
	}
}

// Refresh 为当前患者执行一次刷新；未选择患者时不做处理。
// 因切换患者而作废的周期返回 nil
func (c *SyncClient) Refresh(ctx context.Context, trigger Trigger) error {
	c.mu.Lock()
	if c.failed {
		c.mu.Unlock()
		return ErrStartupFailed
	}
	patientID := c.dash.Selected()
	if patientID == "" {
		c.mu.Unlock()
		return nil
	}
	c.issued++
	gen := c.issued
	withECG := c.ecgPending || c.ecgMode == config.ECGRefreshEveryCycle
	cycleCtx, cancel := context.WithCancel(ctx)
	c.inflight[gen] = inflightCycle{patientID: patientID, cancel: cancel}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, gen)
		c.mu.Unlock()
		cancel()
	}()

	logger := c.logger.With(
		zap.String("cycle_id", uuid.NewString()),
		zap.Uint64("generation", gen),
		zap.String("trigger", string(trigger)),
		zap.String("patient_id", patientID),
	)
	start := c.now()

	res, err := c.fetch(cycleCtx, patientID, withECG)
	if err != nil {
		if cycleCtx.Err() != nil && ctx.Err() == nil {
			logger.Debug("Refresh cycle canceled by patient switch")
			return nil
		}
		return fmt.Errorf("failed to refresh patient %s: %w", patientID, err)
	}

	frame, ok := c.apply(gen, patientID, res)
	if !ok {
		logger.Debug("Discarding stale refresh cycle")
		return nil
	}
	c.render(ctx, frame)

	logger.Debug("Refresh cycle applied",
		zap.Bool("ecg", withECG),
		zap.Int("history_records", len(res.history)),
		zap.Duration("elapsed", c.now().Sub(start)),
	)
	return nil
}

type cycleResult struct {
	latest  *models.VitalsSnapshot
	history []models.VitalsSnapshot
	ecg     []*float64
	withECG bool
}

// fetch 并发请求本周期的数据；"latest" 接口返回 404 表示该患者暂无数据
func (c *SyncClient) fetch(ctx context.Context, patientID string, withECG bool) (*cycleResult, error) {
	res := &cycleResult{withECG: withECG}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		latest, err := c.backend.LatestVitals(gctx, patientID)
		if errors.Is(err, client.ErrNotFound) {
			latest, err = &models.VitalsSnapshot{}, nil
		}
		res.latest = latest
		return err
	})
	g.Go(func() error {
		history, err := c.backend.History(gctx, patientID, c.historyLimit)
		res.history = history
		return err
	})
	if withECG {
		g.Go(func() error {
			samples, err := c.backend.LatestECG(gctx, patientID)
			if errors.Is(err, client.ErrNotFound) {
				samples, err = nil, nil
			}
			res.ecg = samples
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *SyncClient) apply(gen uint64, patientID string, res *cycleResult) (view.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failed || patientID != c.dash.Selected() || gen <= c.applied {
		return view.Frame{}, false
	}
	now := c.now()
	c.dash.ApplyLatest(res.latest, now)
	c.dash.ApplyHistory(res.history, c.loc)
	if res.withECG {
		c.dash.ApplyECG(res.ecg)
		c.ecgPending = false
	}
	c.applied = gen
	c.dash.MarkApplied(gen, now)
	return c.dash.Frame(), true
}

// render 将 frame 交给渲染端，已发出更新的 frame 时丢弃
func (c *SyncClient) render(ctx context.Context, frame view.Frame) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	if frame.Version <= c.rendered {
		return
	}
	c.rendered = frame.Version
	if err := c.surface.Render(ctx, frame); err != nil {
		c.logger.Warn("Failed to render dashboard", zap.Error(err))
	}
}

// cancelInflightLocked 取消所有不属于 keep 的进行中周期
func (c *SyncClient) cancelInflightLocked(keep string) {
	for gen, cycle := range c.inflight {
		if cycle.patientID != keep {
			cycle.cancel()
			delete(c.inflight, gen)
		}
	}
}

// Frame 当前仪表盘状态
func (c *SyncClient) Frame() view.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dash.Frame()
}

// Selected 当前患者 ID，未选择时为 ""
func (c *SyncClient) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dash.Selected()
}

// Patients 最近一次获取的患者列表
func (c *SyncClient) Patients() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.patients...)
}
