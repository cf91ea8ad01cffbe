package incidents

import "time"

// Well-known incident statuses. The set is not enforced on transitions:
// any non-empty status may follow any other, mirroring the permissive
// lifecycle of the reporting flow.
const (
	StatusNew        = "NEW"
	StatusAssigned   = "ASSIGNED"
	StatusProcessing = "PROCESSING"
	StatusResolved   = "RESOLVED"
)

// Incident priorities.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// Reporting channels.
const (
	SourceWeb          = "WEB"
	SourceMobile       = "MOBILE"
	SourceMiniApp      = "ZALO_MINI_APP"
	SourceMiniAppQuick = "ZALO_MINI_APP_QUICK"
)

// HistoryEntry records one status change of an incident.
type HistoryEntry struct {
	Time   time.Time `json:"time"`
	Status string    `json:"status"`
	Note   string    `json:"note,omitempty"`
}

// Incident represents a citizen-reported incident.
// Status always equals the status of the most recent history entry,
// and history holds at least one entry once the record exists.
type Incident struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Location    string         `json:"location"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Priority    string         `json:"priority"`
	Source      string         `json:"source"`
	UserID      string         `json:"userId,omitempty"`
	Media       []string       `json:"media,omitempty"`
	History     []HistoryEntry `json:"history"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// CreateInput carries the fields accepted at incident creation.
type CreateInput struct {
	Type        string   `json:"type"`
	Location    string   `json:"location"`
	Description string   `json:"description,omitempty"`
	Media       []string `json:"media,omitempty"`
	Source      string   `json:"source,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Status      string   `json:"status,omitempty"`
	UserID      string   `json:"userId,omitempty"`
}

// Filter selects incidents by exact field match. Zero-value fields
// are unconstrained; provided fields are a conjunction.
type Filter struct {
	Status string
	Type   string
	Source string
}

// Matches reports whether an incident satisfies the filter.
func (f Filter) Matches(incident Incident) bool {
	if f.Status != "" && incident.Status != f.Status {
		return false
	}
	if f.Type != "" && incident.Type != f.Type {
		return false
	}
	if f.Source != "" && incident.Source != f.Source {
		return false
	}
	return true
}

// Statistics summarizes the incident collection by status, source and priority.
type Statistics struct {
	TotalIncidents int            `json:"totalIncidents"`
	ByStatus       map[string]int `json:"byStatus"`
	BySource       map[string]int `json:"bySource"`
	ByPriority     map[string]int `json:"byPriority"`
}
