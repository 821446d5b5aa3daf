package view

import (
	"strconv"
	"strings"
	"time"

	"wisefido-vitalsync/internal/models"

	"github.com/dustin/go-humanize"
)

// Unknown 缺失值的显示文本，不能与真实读数混淆
const Unknown = "—"

// 数值字段的显示单位
const (
	UnitBPM     = " bpm"
	UnitPercent = " %"
	UnitCelsius = " °C"
)

// FormatNumber 数值加单位，nil 时为 Unknown
func FormatNumber(v *float64, suffix string) string {
	if v == nil {
		return Unknown
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + suffix
}

// FormatFlag 输出 "Label: YES|NO"，缺失时为 "Label: " 加 Unknown
func FormatFlag(label string, v *bool) string {
	if v == nil {
		return label + ": " + Unknown
	}
	if *v {
		return label + ": YES"
	}
	return label + ": NO"
}

// FormatLabeledNumber 输出 "Label: v"，nil 时为 Unknown
func FormatLabeledNumber(label string, v *float64) string {
	return label + ": " + FormatNumber(v, "")
}

// FormatLabeledScalar 输出 "Label: v"，nil 或空白时为 Unknown
func FormatLabeledScalar(label string, v *models.Scalar) string {
	if v == nil || v.String() == "" {
		return label + ": " + Unknown
	}
	return label + ": " + v.String()
}

// FormatReceived 原始接收时间
func FormatReceived(receivedAt *string) string {
	if receivedAt == nil || *receivedAt == "" {
		return Unknown
	}
	return "received: " + *receivedAt
}

// FormatReceivedAgo 距今多久前接收
func FormatReceivedAgo(receivedAt *string, now time.Time) string {
	if receivedAt == nil {
		return Unknown
	}
	t, ok := ParseReceivedAt(*receivedAt)
	if !ok {
		return Unknown
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

var receivedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseReceivedAt 解析后端的 ISO 时间；无时区偏移的按 UTC 处理（后端按 UTC 存储）
func ParseReceivedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range receivedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
