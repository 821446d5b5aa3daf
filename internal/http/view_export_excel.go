package httpapi

import (
	"bytes"
	"fmt"

	"wisefido-vitalsync/internal/view"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary = "Summary"
	sheetVitals  = "Vitals"
	sheetECG     = "ECG"
)

// VitalsExportHeader Vitals 工作表表头
var VitalsExportHeader = []string{
	"Time",
	view.SeriesHeartRate,
	view.SeriesSpO2,
	view.SeriesTemperature,
}

// ECGExportHeader ECG 工作表表头
var ECGExportHeader = []string{"Index", "Sample"}

// GenerateViewExport 将 frame 中的图表数据导出为 xlsx
// 包含 Summary、Vitals、ECG 三个工作表，缺失值留空
func GenerateViewExport(frame view.Frame) ([]byte, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{sheetVitals, sheetECG} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// Summary：每行一个字段
	summary := [][2]string{
		{"Patient", frame.Selected},
		{"Alert", frame.Badge.Text},
		{"Received", frame.Fields.ReceivedAt},
		{"Heart rate", frame.Fields.HeartRate},
		{"SpO2", frame.Fields.SpO2},
		{"Temperature", frame.Fields.Temperature},
		{"ECG heart rate", frame.Fields.ECGHeartRate},
		{"Battery", frame.Fields.Battery},
		{"Fall", frame.Fields.Fall},
		{"Lead-off", frame.Fields.LeadOff},
		{"ECG quality", frame.Fields.ECGQuality},
		{"RSSI", frame.Fields.RSSI},
	}
	for i, kv := range summary {
		if err := setCellValue(f, sheetSummary, 1, i+1, kv[0]); err != nil {
			f.Close()
			return nil, err
		}
		if err := setCellValue(f, sheetSummary, 2, i+1, kv[1]); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.SetColWidth(sheetSummary, "A", "B", 20); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	if err := writeHeader(f, sheetVitals, VitalsExportHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	columns := [][]*float64{frame.HeartRate.Values, frame.SpO2.Values, frame.Temperature.Values}
	for i, label := range frame.HeartRate.Labels {
		row := i + 2
		if err := setCellValue(f, sheetVitals, 1, row, label); err != nil {
			f.Close()
			return nil, err
		}
		for col, values := range columns {
			if i >= len(values) || values[i] == nil {
				continue
			}
			if err := setCellValue(f, sheetVitals, col+2, row, *values[i]); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	if err := writeHeader(f, sheetECG, ECGExportHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	for i, v := range frame.ECG.Values {
		if v == nil {
			continue
		}
		if err := setCellValue(f, sheetECG, 1, i+2, i); err != nil {
			f.Close()
			return nil, err
		}
		if err := setCellValue(f, sheetECG, 2, i+2, *v); err != nil {
			f.Close()
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// writeHeader 写入带样式的表头并冻结首行
func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", last, 15); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s!%s: %w", sheet, cell, err)
	}
	return nil
}
