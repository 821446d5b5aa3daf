package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPatient 患者不在当前列表中
	ErrUnknownPatient = errors.New("unknown patient")
	// ErrNoPatientSelected 未选择患者
	ErrNoPatientSelected = errors.New("no patient selected")
	// ErrRefreshThrottled 手动刷新过于频繁
	ErrRefreshThrottled = errors.New("refresh throttled")
	// ErrStartupFailed 启动失败后拒绝所有操作，显示保持不变
	ErrStartupFailed = errors.New("dashboard unavailable after startup failure")
)

// StartupError 启动流程失败，之后仪表盘无法显示有效数据
type StartupError struct {
	Err error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed: %v", e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}
