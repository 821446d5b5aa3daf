package view

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Surface 渲染端，不得修改或持有未拷贝的 frame
type Surface interface {
	Render(ctx context.Context, frame Frame) error
	Notify(ctx context.Context, notice Notice) error
}

// Surfaces 分发到多个渲染端，每个都会尝试
type Surfaces []Surface

func (s Surfaces) Render(ctx context.Context, frame Frame) error {
	var errs []error
	for _, surface := range s {
		if err := surface.Render(ctx, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s Surfaces) Notify(ctx context.Context, notice Notice) error {
	var errs []error
	for _, surface := range s {
		if err := surface.Notify(ctx, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSurface 将每个 frame 的摘要写入日志
type LogSurface struct {
	logger *zap.Logger
}

func NewLogSurface(logger *zap.Logger) *LogSurface {
	return &LogSurface{logger: logger}
}

func (l *LogSurface) Render(_ context.Context, frame Frame) error {
	l.logger.Debug("Dashboard rendered",
		zap.String("patient_id", frame.Selected),
		zap.Uint64("generation", frame.Generation),
		zap.String("alert", frame.Badge.Text),
		zap.String("heart_rate", frame.Fields.HeartRate),
		zap.String("spo2", frame.Fields.SpO2),
		zap.String("temperature", frame.Fields.Temperature),
		zap.Int("history_points", len(frame.HeartRate.Labels)),
		zap.Int("ecg_samples", len(frame.ECG.Labels)),
	)
	return nil
}

func (l *LogSurface) Notify(_ context.Context, notice Notice) error {
	l.logger.Error(notice.Message,
		zap.String("level", string(notice.Level)),
		zap.Bool("blocking", notice.Blocking),
	)
	return nil
}
