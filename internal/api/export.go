package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/birising/OT-honey/internal/audit"
	"github.com/birising/OT-honey/internal/tags"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	trendSheet      = "Trends"
)

// exportTrends streams the downsampled trend window as an XLSX workbook:
// one header row, RFC3339 timestamps, one column per trended tag.
func (s *Server) exportTrends(c *gin.Context) {
	rangeName := c.DefaultQuery("range", "1h")
	window, ok := trendWindows[rangeName]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid range - must be 1h, 8h or 24h"})
		return
	}

	tracked := s.trends.Tags()
	rows := s.trendRows(window)

	book := excelize.NewFile()
	defer book.Close()
	if err := book.SetSheetName("Sheet1", trendSheet); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	setCell := func(col, row int, value any) {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return
		}
		_ = book.SetCellValue(trendSheet, cell, value)
	}

	setCell(1, 1, "timestamp")
	for i, tag := range tracked {
		setCell(i+2, 1, tag)
	}
	for r, row := range rows {
		setCell(1, r+2, row.At.UTC().Format(time.RFC3339))
		for i, tag := range tracked {
			if value, ok := row.Values[tag]; ok {
				setCell(i+2, r+2, value)
			}
		}
	}

	s.logOp(c, audit.ActionExport, "trends.xlsx", rangeName, audit.ResultAccepted, fmt.Sprintf("%d rows", len(rows)))
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "trends_"+rangeName+".xlsx"))
	c.Status(http.StatusOK)
	if err := book.Write(c.Writer); err != nil {
		s.log.Warn().Err(err).Msg("trend export write failed")
	}
}

// exportReport renders the shift report PDF: plant header, operating
// state, the active alarm table and the key process values.
func (s *Server) exportReport(c *gin.Context) {
	h := s.engine.Health()
	now := s.clock.Now().UTC()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Shift Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Shift Report")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, s.facility)
	pdf.Ln(6)
	pdf.Cell(0, 6, "Operator: "+plantOperator)
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s   Mode %s   Kill switch %t", now.Format(time.RFC3339), h.Mode, h.KillSwitch))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Active alarms")
	pdf.Ln(8)

	active := s.alarms.Active()
	if len(active) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 6, "none")
		pdf.Ln(10)
	} else {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(22, 7, "Severity", "1", 0, "L", false, 0, "")
		pdf.CellFormat(58, 7, "Tag", "1", 0, "L", false, 0, "")
		pdf.CellFormat(75, 7, "Text", "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, "Raised", "1", 0, "L", false, 0, "")
		pdf.Ln(7)

		pdf.SetFont("Helvetica", "", 9)
		for _, alarm := range active {
			pdf.CellFormat(22, 7, alarm.Severity.String(), "1", 0, "L", false, 0, "")
			pdf.CellFormat(58, 7, clip(alarm.Tag, 38), "1", 0, "L", false, 0, "")
			pdf.CellFormat(75, 7, clip(alarm.Text, 50), "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 7, alarm.RaisedAt.UTC().Format("15:04:05"), "1", 0, "L", false, 0, "")
			pdf.Ln(7)
		}
		pdf.Ln(3)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Process values")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)

	readings := []struct {
		label string
		tag   string
		unit  string
	}{
		{"Influent flow", tags.QIn, "m3/h"},
		{"Wet well level", tags.LT101, "m"},
		{"Dissolved oxygen", tags.DO301, "mg/L"},
		{"DO setpoint", tags.DO301SP, "mg/L"},
		{"Blower speed", tags.BLW201PV, "%"},
		{"Aeration pH", tags.PH302, "pH"},
		{"Aeration temp", tags.Temp303, "degC"},
		{"Clarifier level", tags.LT401, "m"},
		{"Turbidity", tags.TUR501, "NTU"},
		{"Effluent flow", tags.QOut, "m3/h"},
		{"Effluent COD", tags.COD501, "mg/L"},
		{"Effluent pH", tags.PH501, "pH"},
		{"FeCl3 dosing", tags.DoseFeCl3, "L/h"},
		{"Chemical tank", tags.Tank501Level, "%"},
	}
	names := make([]string, len(readings))
	for i, r := range readings {
		names[i] = r.tag
	}
	view := s.registry.Values(names)

	for i, r := range readings {
		line := fmt.Sprintf("%s: %.2f %s", r.label, view[r.tag].AsFloat(), r.unit)
		pdf.CellFormat(95, 6, line, "", 0, "L", false, 0, "")
		if i%2 == 1 {
			pdf.Ln(6)
		}
	}
	if len(readings)%2 == 1 {
		pdf.Ln(6)
	}

	s.logOp(c, audit.ActionExport, "report.pdf", "", audit.ResultAccepted, fmt.Sprintf("%d alarms", len(active)))
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="shift_report.pdf"`)
	c.Status(http.StatusOK)
	if err := pdf.Output(c.Writer); err != nil {
		s.log.Warn().Err(err).Msg("report export write failed")
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
