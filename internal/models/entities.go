package models

import "time"

// User is the local profile owning scans and notifications.
type User struct {
	Syncable
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Region string `json:"region,omitempty"`
}

// Scan is a single leaf photo taken in the field. ImagePath references the
// image in external storage; capture and upload of the image itself happen
// outside this module.
type Scan struct {
	Syncable
	UserLocalID string  `json:"user_local_id"`
	ImagePath   string  `json:"image_path"`
	Crop        string  `json:"crop,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
}

// Severity tiers a diagnosis by how urgently it needs treatment.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Diagnosis is the classification produced for a scan. Confidence is in
// [0, 1]. Recommendations are stored as a JSON array in the same row.
type Diagnosis struct {
	Syncable
	ScanLocalID     string   `json:"scan_local_id"`
	Disease         string   `json:"disease"`
	Confidence      float64  `json:"confidence"`
	Severity        Severity `json:"severity"`
	Recommendations []string `json:"recommendations"`
}

// Tip is a server-authoritative agronomy broadcast cached locally.
type Tip struct {
	Syncable
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatedTime is the ordering key for merged tip lists.
func (t *Tip) CreatedTime() time.Time { return t.CreatedAt }

// Notification is a per-user message. Notifications are mixed-mode: the
// server pushes them down, and the app also creates them locally (e.g. a
// completed offline diagnosis), so they both pull and push.
type Notification struct {
	Syncable
	UserLocalID string    `json:"user_local_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Category    string    `json:"category,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreatedTime is the ordering key for merged notification lists.
func (n *Notification) CreatedTime() time.Time { return n.CreatedAt }

// ScanWithDiagnosis is the joined read shape the UI lists: a scan and its
// diagnosis, when one exists.
type ScanWithDiagnosis struct {
	Scan      Scan
	Diagnosis *Diagnosis
}
