package httpapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"wisefido-telemetry/internal/models"
)

const exportSheetName = "Telemetry"

// TelemetryExportHeader export column order
var TelemetryExportHeader = []string{
	"Device ID",
	"Device Name",
	"Category",
	"Status",
	"Timestamp",
	"Heart Rate",
	"SpO2",
	"Systolic",
	"Diastolic",
	"Temperature",
}

// ExportRow one reading of one device
type ExportRow struct {
	DeviceID    string   `json:"device_id"`
	DeviceName  string   `json:"device_name"`
	Category    string   `json:"category"`
	Status      string   `json:"status"`
	Timestamp   string   `json:"timestamp"`
	HeartRate   *int     `json:"heart_rate,omitempty"`
	SpO2        *int     `json:"spo2,omitempty"`
	Systolic    *int     `json:"systolic,omitempty"`
	Diastolic   *int     `json:"diastolic,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// BuildExportRows flattens devices in registry order, readings oldest first.
// A device without readings still gets one row with empty vitals.
func BuildExportRows(devices []models.Device) []ExportRow {
	rows := []ExportRow{}
	for _, d := range devices {
		base := ExportRow{
			DeviceID:   d.ID,
			DeviceName: d.Name,
			Category:   string(d.Category),
			Status:     string(d.Status),
		}
		if len(d.Vitals) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, r := range d.Vitals {
			row := base
			row.Timestamp = time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339)
			row.HeartRate = r.HeartRate
			row.SpO2 = r.SpO2
			row.Systolic = r.Systolic
			row.Diastolic = r.Diastolic
			row.Temperature = r.Temperature
			rows = append(rows, row)
		}
	}
	return rows
}

// GenerateTelemetryExport renders rows as an xlsx workbook
func GenerateTelemetryExport(rows []ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(TelemetryExportHeader))
	for i, h := range TelemetryExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(TelemetryExportHeader))
	if err != nil {
		return nil, fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(exportSheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	columnWidths := []float64{20, 28, 12, 10, 22, 12, 8, 10, 10, 12}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(exportSheetName, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, row := range rows {
		values := []interface{}{
			row.DeviceID,
			row.DeviceName,
			row.Category,
			row.Status,
			row.Timestamp,
			intCell(row.HeartRate),
			intCell(row.SpO2),
			intCell(row.Systolic),
			intCell(row.Diastolic),
			floatCell(row.Temperature),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(exportSheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func intCell(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// WriteTelemetryCSV writes rows with the same columns as the xlsx export.
// Absent vitals are empty fields.
func WriteTelemetryCSV(w io.Writer, rows []ExportRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(TelemetryExportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.DeviceID,
			row.DeviceName,
			row.Category,
			row.Status,
			row.Timestamp,
			intField(row.HeartRate),
			intField(row.SpO2),
			intField(row.Systolic),
			intField(row.Diastolic),
			floatField(row.Temperature),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
