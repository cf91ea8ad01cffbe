package apihttp

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alertapp "cityreport/internal/alerts/application"
	alerts "cityreport/internal/alerts/domain"
	incidentapp "cityreport/internal/incidents/application"
	incidents "cityreport/internal/incidents/domain"
)

// ExportHandler serves dashboard report exports.
type ExportHandler struct {
	incidents *incidentapp.Service
	alerts    *alertapp.Service
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(incidentService *incidentapp.Service, alertService *alertapp.Service) (*ExportHandler, error) {
	if incidentService == nil || alertService == nil {
		return nil, errors.New("exports handler: nil service")
	}
	return &ExportHandler{incidents: incidentService, alerts: alertService}, nil
}

// ServeHTTP handles GET /api/v1/exports/{incidents,alerts}.{xlsx,pdf}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var (
		payload     []byte
		contentType string
		filename    string
		err         error
	)
	switch r.URL.Path {
	case "/api/v1/exports/incidents.xlsx":
		payload, err = h.buildIncidentsXLSX(r)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "incidents.xlsx"
	case "/api/v1/exports/incidents.pdf":
		payload, err = h.buildIncidentsPDF(r)
		contentType = "application/pdf"
		filename = "incidents.pdf"
	case "/api/v1/exports/alerts.xlsx":
		payload, err = h.buildAlertsXLSX(r)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "alerts.xlsx"
	case "/api/v1/exports/alerts.pdf":
		payload, err = h.buildAlertsPDF(r)
		contentType = "application/pdf"
		filename = "alerts.pdf"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(payload)
}

func (h *ExportHandler) buildIncidentsXLSX(r *http.Request) ([]byte, error) {
	stats, err := h.incidents.Statistics(r.Context())
	if err != nil {
		return nil, err
	}
	list, err := h.incidents.List(r.Context(), incidents.Filter{})
	if err != nil {
		return nil, err
	}
	return BuildIncidentsXLSX(stats, list)
}

func (h *ExportHandler) buildIncidentsPDF(r *http.Request) ([]byte, error) {
	stats, err := h.incidents.Statistics(r.Context())
	if err != nil {
		return nil, err
	}
	return BuildIncidentStatsPDF(stats)
}

func (h *ExportHandler) buildAlertsXLSX(r *http.Request) ([]byte, error) {
	list, err := h.alerts.List(r.Context(), alerts.ListFilter{})
	if err != nil {
		return nil, err
	}
	return BuildAlertsXLSX(list)
}

func (h *ExportHandler) buildAlertsPDF(r *http.Request) ([]byte, error) {
	stats, err := h.alerts.Statistics(r.Context())
	if err != nil {
		return nil, err
	}
	list, err := h.alerts.List(r.Context(), alerts.ListFilter{})
	if err != nil {
		return nil, err
	}
	return BuildAlertsPDF(stats, list)
}

// BuildIncidentsXLSX renders incident statistics and the incident list.
func BuildIncidentsXLSX(stats *incidents.Statistics, list []incidents.Incident) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	itemsSheet := "incidents"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(itemsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Incident Report")
	_ = f.SetCellValue(summarySheet, "A3", "Total")
	_ = f.SetCellValue(summarySheet, "B3", stats.TotalIncidents)
	row := 5
	writeCounts := func(title string, counts map[string]int) {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), title)
		row++
		for key, count := range counts {
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), key)
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), count)
			row++
		}
		row++
	}
	writeCounts("By Status", stats.ByStatus)
	writeCounts("By Source", stats.BySource)
	writeCounts("By Priority", stats.ByPriority)

	headers := []string{"ID", "Type", "Location", "Status", "Priority", "Source", "Created"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, header)
	}
	for i, incident := range list {
		values := []any{
			incident.ID, incident.Type, incident.Location, incident.Status,
			incident.Priority, incident.Source, incident.CreatedAt.Format(time.RFC3339),
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(itemsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildIncidentStatsPDF renders a minimal PDF of incident statistics.
func BuildIncidentStatsPDF(stats *incidents.Statistics) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Incident Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Total incidents: %d", stats.TotalIncidents))
	pdf.Ln(8)

	writeCounts := func(title string, counts map[string]int) {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, title)
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 10)
		for key, count := range counts {
			pdf.Cell(0, 6, fmt.Sprintf("%s: %d", key, count))
			pdf.Ln(5)
		}
		pdf.Ln(3)
	}
	writeCounts("By Status", stats.ByStatus)
	writeCounts("By Source", stats.BySource)
	writeCounts("By Priority", stats.ByPriority)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsXLSX renders the current alert inventory.
func BuildAlertsXLSX(list []alerts.Alert) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "alerts"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Title", "Type", "Priority", "Active", "Start", "End", "Created By"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, alert := range list {
		values := []any{
			alert.ID, alert.Title, alert.Type, alert.Priority, alert.IsActive,
			alert.StartTime.Format(time.RFC3339), alert.EndTime.Format(time.RFC3339),
			alert.CreatedBy,
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsPDF renders alert statistics followed by the inventory table.
func BuildAlertsPDF(stats alerts.Statistics, list []alerts.Alert) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Alert Inventory")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Total: %d  Active: %d  Expired: %d  Upcoming: %d",
		stats.Total, stats.Active, stats.Expired, stats.Upcoming))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Title", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Priority", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Start", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "End", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, alert := range list {
		pdf.CellFormat(60, 6, alert.Title, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, alert.Type, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", alert.Priority), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, alert.StartTime.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, alert.EndTime.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
