package domain

type EventKind string

const (
	EventUsernamePrompt EventKind = "username_prompt"
	EventPasswordPrompt EventKind = "password_prompt"
	EventVitals         EventKind = "vitals"
	EventPagination     EventKind = "pagination"
	EventRemoteClose    EventKind = "remote_close"
	EventHazard         EventKind = "hazard"
	EventProgress       EventKind = "progress"
	EventStatus         EventKind = "status"
	EventSighting       EventKind = "sighting"
	EventPrompt         EventKind = "prompt"
)

// Event is what a detector extracts from the protocol text.
type Event struct {
	Kind EventKind
	// Reason is short oracle-facing context ("movement blocked").
	Reason string
	// Text is the matched server text, trimmed.
	Text   string
	Vitals Vitals
	Field  StatusField
	Value  string
	// Name is the sighted entity, already normalized.
	Name string
}
