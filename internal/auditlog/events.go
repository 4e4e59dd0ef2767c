package auditlog

import "time"

type EventType string

const (
	EventSearch       EventType = "search"
	EventDelivery     EventType = "delivery"
	EventVerification EventType = "verification"
	EventIngest       EventType = "ingest"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	SubjectID int64     `json:"subject_id"`
	Query     string    `json:"query"`
	Results   int       `json:"results"`
	Timestamp time.Time `json:"timestamp"`
}

type DeliveryEvent struct {
	Type       EventType `json:"type"`
	SubjectID  int64     `json:"subject_id"`
	ResourceID int64     `json:"resource_id"`
	Outcome    string    `json:"outcome"`
	Timestamp  time.Time `json:"timestamp"`
}

type VerificationEvent struct {
	Type      EventType `json:"type"`
	SubjectID int64     `json:"subject_id"`
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

type IngestEvent struct {
	Type       EventType `json:"type"`
	UploadedBy int64     `json:"uploaded_by"`
	EntryTitle string    `json:"entry_title"`
	Timestamp  time.Time `json:"timestamp"`
}
