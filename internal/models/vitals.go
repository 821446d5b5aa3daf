package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// VitalsSnapshot 患者的一条体征数据（/latest/vitals、/history/vitals）
// 所有字段均可为空，nil 与 0 含义不同
type VitalsSnapshot struct {
	HeartRate    *float64 `json:"heart_rate"`     // bpm
	SpO2         *float64 `json:"spo2"`           // %
	Temperature  *float64 `json:"temperature"`    // °C
	ECGHeartRate *float64 `json:"ecg_heart_rate"` // 由 ECG 计算的心率
	Battery      *float64 `json:"battery"`        // %
	AlertLevel   *string  `json:"alert_level"`
	ReceivedAt   *string  `json:"received_at"`
	FallDetected *bool    `json:"fall_detected"`
	LeadOff      *bool    `json:"lead_off"`
	ECGQuality   *Scalar  `json:"ecg_quality"`
	RSSI         *float64 `json:"rssi"`
}

// Scalar JSON 字符串、数字或布尔值，保留其显示形式
type Scalar struct {
	text string
}

// NewScalar 包装已格式化的值
func NewScalar(text string) *Scalar {
	return &Scalar{text: text}
}

// String 显示用的文本
func (s Scalar) String() string {
	return s.text
}

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty scalar")
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.text = v
	case '{', '[':
		return fmt.Errorf("scalar expected, got %s", string(b))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err == nil {
			s.text = n.String()
			return nil
		}
		v, err := strconv.ParseBool(string(b))
		if err != nil {
			return fmt.Errorf("invalid scalar %s", string(b))
		}
		s.text = strconv.FormatBool(v)
	}
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.text)
}

// PatientsResponse GET /patients
type PatientsResponse struct {
	Patients []string `json:"patients"`
}

// LatestVitalsResponse GET /latest/vitals/{patientId}
type LatestVitalsResponse struct {
	PatientID string          `json:"patient_id,omitempty"`
	Latest    *VitalsSnapshot `json:"latest"`
}

// HistoryResponse GET /history/vitals/{patientId}，最新在前
type HistoryResponse struct {
	PatientID string           `json:"patient_id,omitempty"`
	Count     int              `json:"count,omitempty"`
	Records   []VitalsSnapshot `json:"records"`
}

// ECGResponse GET /latest/ecg/{patientId}
// 采样点可能在顶层，也可能在 "latest" 中（后端保存的原始 ecg_stream）；null 保留为 nil
type ECGResponse struct {
	ECGSamples []*float64 `json:"ecg_samples"`
	Latest     *struct {
		ECGSamples []*float64 `json:"ecg_samples"`
	} `json:"latest"`
}

// Samples 返回任一格式中的波形
func (r *ECGResponse) Samples() []*float64 {
	if r.ECGSamples != nil {
		return r.ECGSamples
	}
	if r.Latest != nil {
		return r.Latest.ECGSamples
	}
	return nil
}

// TelemetryMessage MQTT 遥测消息中需要的字段
type TelemetryMessage struct {
	PatientID      string `json:"patient_id"`
	PatientIDUpper string `json:"PATIENT_ID"`
}

// ID 消息所属患者，未知时为 ""
func (m TelemetryMessage) ID() string {
	if m.PatientID != "" {
		return m.PatientID
	}
	return m.PatientIDUpper
}
