package types

// EventKind is the closed set of webhook events the dispatcher handles
type EventKind int

const (
	EventUnknown EventKind = iota
	EventUserCreated
	EventUserUpdated
	EventUserDeleted
)

// legacyEventLabels maps older provider labels to the canonical ones
var legacyEventLabels = map[string]string{
	"UserCreate": "UserCreated",
	"UserUpdate": "UserUpdated",
	"UserDelete": "UserDeleted",
}

// NormalizeEventLabel maps provider label variants to canonical labels.
// Unrecognized labels are returned unchanged.
func NormalizeEventLabel(label string) string {
	if canonical, ok := legacyEventLabels[label]; ok {
		return canonical
	}
	return label
}

// ParseEventKind normalizes label and resolves it to an EventKind
func ParseEventKind(label string) EventKind {
	switch NormalizeEventLabel(label) {
	case "UserCreated":
		return EventUserCreated
	case "UserUpdated":
		return EventUserUpdated
	case "UserDeleted":
		return EventUserDeleted
	default:
		return EventUnknown
	}
}

// String returns the canonical label of the kind
func (k EventKind) String() string {
	switch k {
	case EventUserCreated:
		return "UserCreated"
	case EventUserUpdated:
		return "UserUpdated"
	case EventUserDeleted:
		return "UserDeleted"
	default:
		return "Unknown"
	}
}
