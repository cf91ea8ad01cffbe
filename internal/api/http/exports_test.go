package apihttp

import (
	"bytes"
	"testing"
	"time"

	alerts "cityreport/internal/alerts/domain"
	incidents "cityreport/internal/incidents/domain"
)

func TestBuildIncidentsXLSX(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	stats := &incidents.Statistics{
		TotalIncidents: 1,
		ByStatus:       map[string]int{incidents.StatusNew: 1},
		BySource:       map[string]int{incidents.SourceWeb: 1},
		ByPriority:     map[string]int{incidents.PriorityMedium: 1},
	}
	list := []incidents.Incident{{
		ID: "inc-1", Type: "pothole", Location: "a",
		Status: incidents.StatusNew, Priority: incidents.PriorityMedium,
		Source: incidents.SourceWeb, CreatedAt: now,
	}}

	payload, err := BuildIncidentsXLSX(stats, list)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(payload, []byte("PK")) {
		t.Fatalf("payload does not look like an xlsx file")
	}
}

func TestBuildAlertsPDF(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	stats := alerts.Statistics{Total: 1, Active: 1}
	list := []alerts.Alert{{
		ID: "alert-1", Title: "storm warning", Type: alerts.TypeUrgent,
		Priority: 1, IsActive: true,
		StartTime: now, EndTime: now.Add(time.Hour),
		CreatedAt: now,
	}}

	payload, err := BuildAlertsPDF(stats, list)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !bytes.HasPrefix(payload, []byte("%PDF")) {
		t.Fatalf("payload does not look like a pdf")
	}
}
