package view

import (
	"time"

	"wisefido-vitalsync/internal/models"
)

// NoPatientsText 没有患者时的占位文本
const NoPatientsText = "No patients yet"

// Dashboard 同步客户端持有的显示状态，非并发安全，由持有者串行访问
type Dashboard struct {
	options    []Option
	selected   string
	badge      Badge
	fields     Fields
	generation uint64
	version    uint64
	updatedAt  time.Time

	HeartRate   *Series
	SpO2        *Series
	Temperature *Series
	ECG         *Series
}

// NewDashboard 创建仪表盘（含四个图表序列）
func NewDashboard() *Dashboard {
	d := &Dashboard{
		HeartRate:   NewSeries(SeriesHeartRate),
		SpO2:        NewSeries(SeriesSpO2),
		Temperature: NewSeries(SeriesTemperature),
		ECG:         NewSeries(SeriesECG),
	}
	d.clearReadings()
	return d
}

// SetPatients 刷新患者选择器；列表为空时只放一个禁用的占位项
func (d *Dashboard) SetPatients(ids []string, selected string) {
	d.options = make([]Option, 0, len(ids))
	for _, id := range ids {
		d.options = append(d.options, Option{Value: id, Text: id})
	}
	if len(ids) == 0 {
		d.options = append(d.options, Option{Value: "", Text: NoPatientsText, Disabled: true})
	}
	d.selected = selected
	d.touch()
}

// SelectPatient 切换患者并清除上一个患者的所有数据
func (d *Dashboard) SelectPatient(id string) {
	d.selected = id
	d.clearReadings()
	d.touch()
}

// ApplyLatest 用 v 更新所有字段和 badge
func (d *Dashboard) ApplyLatest(v *models.VitalsSnapshot, now time.Time) {
	if v == nil {
		v = &models.VitalsSnapshot{}
	}
	d.badge = NewBadge(v.AlertLevel)
	d.fields = Fields{
		ReceivedAt:   FormatReceived(v.ReceivedAt),
		ReceivedAgo:  FormatReceivedAgo(v.ReceivedAt, now),
		HeartRate:    FormatNumber(v.HeartRate, UnitBPM),
		SpO2:         FormatNumber(v.SpO2, UnitPercent),
		Temperature:  FormatNumber(v.Temperature, UnitCelsius),
		ECGHeartRate: FormatNumber(v.ECGHeartRate, UnitBPM),
		Battery:      FormatNumber(v.Battery, UnitPercent),
		Fall:         FormatFlag("Fall", v.FallDetected),
		LeadOff:      FormatFlag("Lead-off", v.LeadOff),
		ECGQuality:   FormatLabeledScalar("ECG", v.ECGQuality),
		RSSI:         FormatLabeledNumber("RSSI", v.RSSI),
	}
	d.touch()
}

// ApplyHistory 替换心率、血氧、体温序列
func (d *Dashboard) ApplyHistory(records []models.VitalsSnapshot, loc *time.Location) {
	p := ProjectHistory(records, loc)
	d.HeartRate.Replace(p.Labels, p.HeartRate)
	d.SpO2.Replace(p.Labels, p.SpO2)
	d.Temperature.Replace(p.Labels, p.Temperature)
	d.touch()
}

// ApplyECG 替换 ECG 序列
func (d *Dashboard) ApplyECG(samples []*float64) {
	labels, values := ProjectECG(samples)
	d.ECG.Replace(labels, values)
	d.touch()
}

// MarkApplied 记录最后应用的 generation
func (d *Dashboard) MarkApplied(generation uint64, at time.Time) {
	d.generation = generation
	d.updatedAt = at
	d.touch()
}

// Selected 当前患者 ID
func (d *Dashboard) Selected() string {
	return d.selected
}

// Frame 返回当前状态的深拷贝
func (d *Dashboard) Frame() Frame {
	return Frame{
		Version:     d.version,
		Generation:  d.generation,
		Options:     append([]Option{}, d.options...),
		Selected:    d.selected,
		Badge:       Badge{Text: d.badge.Text, Classes: append([]string{}, d.badge.Classes...)},
		Fields:      d.fields,
		HeartRate:   d.HeartRate.Frame(),
		SpO2:        d.SpO2.Frame(),
		Temperature: d.Temperature.Frame(),
		ECG:         d.ECG.Frame(),
		UpdatedAt:   d.updatedAt,
	}
}

func (d *Dashboard) clearReadings() {
	d.badge = NewBadge(nil)
	d.fields = Fields{
		ReceivedAt:   Unknown,
		ReceivedAgo:  Unknown,
		HeartRate:    Unknown,
		SpO2:         Unknown,
		Temperature:  Unknown,
		ECGHeartRate: Unknown,
		Battery:      Unknown,
		Fall:         FormatFlag("Fall", nil),
		LeadOff:      FormatFlag("Lead-off", nil),
		ECGQuality:   FormatLabeledScalar("ECG", nil),
		RSSI:         FormatLabeledNumber("RSSI", nil),
	}
	d.HeartRate.Reset()
	d.SpO2.Reset()
	d.Temperature.Reset()
	d.ECG.Reset()
}

// touch 递增版本号，渲染端据此丢弃乱序的 frame
func (d *Dashboard) touch() {
	d.version++
}
