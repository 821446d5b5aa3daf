package view

import (
	"strconv"
	"time"

	"wisefido-vitalsync/internal/models"
)

// 图表序列名称
const (
	SeriesHeartRate   = "HR (bpm)"
	SeriesSpO2        = "SpO₂ (%)"
	SeriesTemperature = "Temp (°C)"
	SeriesECG         = "ECG"
)

// Series 一个图表的数据，更新时整体替换 labels 和 values
type Series struct {
	Name   string
	labels []string
	values []*float64
}

// NewSeries 创建空序列
func NewSeries(name string) *Series {
	return &Series{Name: name, labels: []string{}, values: []*float64{}}
}

// Replace 拷贝并替换 labels 和 values，两者长度必须相同
func (s *Series) Replace(labels []string, values []*float64) {
	s.labels = append(make([]string, 0, len(labels)), labels...)
	s.values = append(make([]*float64, 0, len(values)), values...)
}

// Reset 清空序列
func (s *Series) Reset() {
	s.Replace(nil, nil)
}

// Len 数据点数量
func (s *Series) Len() int {
	return len(s.labels)
}

// Frame 返回可交给渲染端的拷贝
func (s *Series) Frame() SeriesFrame {
	f := SeriesFrame{
		Name:   s.Name,
		Labels: append([]string{}, s.labels...),
		Values: make([]*float64, len(s.values)),
	}
	for i, v := range s.values {
		if v != nil {
			x := *v
			f.Values[i] = &x
		}
	}
	return f
}

// HistoryProjection 按时间正序排列的历史数据（用于图表）
type HistoryProjection struct {
	Labels      []string
	HeartRate   []*float64
	SpO2        []*float64
	Temperature []*float64
}

// ProjectHistory 将最新在前的记录反转为图表顺序，并以 loc 时区的接收时间作为标签。
// 数据跨天时标签带日期
func ProjectHistory(records []models.VitalsSnapshot, loc *time.Location) HistoryProjection {
	n := len(records)
	p := HistoryProjection{
		Labels:      make([]string, n),
		HeartRate:   make([]*float64, n),
		SpO2:        make([]*float64, n),
		Temperature: make([]*float64, n),
	}

	times := make([]time.Time, n)
	parsed := make([]bool, n)
	for i := 0; i < n; i++ {
		r := records[n-1-i]
		p.HeartRate[i] = r.HeartRate
		p.SpO2[i] = r.SpO2
		p.Temperature[i] = r.Temperature
		if r.ReceivedAt != nil {
			times[i], parsed[i] = ParseReceivedAt(*r.ReceivedAt)
		}
	}

	layout := "15:04:05"
	if spansDays(times, parsed, loc) {
		layout = "01-02 15:04:05"
	}
	for i := 0; i < n; i++ {
		switch {
		case parsed[i]:
			p.Labels[i] = times[i].In(loc).Format(layout)
		case records[n-1-i].ReceivedAt != nil:
			p.Labels[i] = *records[n-1-i].ReceivedAt
		default:
			p.Labels[i] = Unknown
		}
	}
	return p
}

func spansDays(times []time.Time, parsed []bool, loc *time.Location) bool {
	first := ""
	for i, t := range times {
		if !parsed[i] {
			continue
		}
		day := t.In(loc).Format("2006-01-02")
		if first == "" {
			first = day
		} else if day != first {
			return true
		}
	}
	return false
}

// ProjectECG 以下标作为标签，数值原样保留，nil 采样点保留为空缺
func ProjectECG(samples []*float64) ([]string, []*float64) {
	labels := make([]string, len(samples))
	values := make([]*float64, len(samples))
	for i, s := range samples {
		labels[i] = strconv.Itoa(i)
		if s != nil {
			v := *s
			values[i] = &v
		}
	}
	return labels, values
}
