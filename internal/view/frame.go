package view

import "time"

// Option 患者选择器的一项
type Option struct {
	Value    string `json:"value"`
	Text     string `json:"text"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Fields 带标签的显示字段
type Fields struct {
	ReceivedAt   string `json:"received_at"`
	ReceivedAgo  string `json:"received_ago"`
	HeartRate    string `json:"heart_rate"`
	SpO2         string `json:"spo2"`
	Temperature  string `json:"temperature"`
	ECGHeartRate string `json:"ecg_heart_rate"`
	Battery      string `json:"battery"`
	Fall         string `json:"fall"`
	LeadOff      string `json:"lead_off"`
	ECGQuality   string `json:"ecg_quality"`
	RSSI         string `json:"rssi"`
}

// SeriesFrame 图表序列的不可变拷贝
type SeriesFrame struct {
	Name   string     `json:"name"`
	Labels []string   `json:"labels"`
	Values []*float64 `json:"values"`
}

// Frame 用于渲染的仪表盘完整快照（不可变）
type Frame struct {
	Version     uint64       `json:"version"`
	Generation  uint64       `json:"generation"`
	Options     []Option     `json:"options"`
	Selected    string       `json:"selected"`
	Badge       Badge        `json:"badge"`
	Fields      Fields       `json:"fields"`
	HeartRate   SeriesFrame  `json:"heart_rate"`
	SpO2        SeriesFrame  `json:"spo2"`
	Temperature SeriesFrame  `json:"temperature"`
	ECG         SeriesFrame  `json:"ecg"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NoticeLevel 用户提示的级别
type NoticeLevel string

// NoticeError 目前唯一的级别：启动失败
const NoticeError NoticeLevel = "error"

// Notice 用户提示；阻塞提示需要用户确认，仅用于不可恢复的错误
type Notice struct {
	Level    NoticeLevel `json:"level"`
	Message  string      `json:"message"`
	Blocking bool        `json:"blocking"`
	At       time.Time   `json:"at"`
}
