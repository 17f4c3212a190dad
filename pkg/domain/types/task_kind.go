package types

import "fmt"

// TaskKind identifies background work published to the task queue
type TaskKind string

const (
	TaskProjectAssignment TaskKind = "project_assignment"
	TaskRefreshContact    TaskKind = "refresh_contact"
)

// IsValid checks if the task kind is known
func (k TaskKind) IsValid() bool {
	switch k {
	case TaskProjectAssignment,
		TaskRefreshContact:
		return true
	default:
		return false
	}
}

// String returns the string representation of the task kind
func (k TaskKind) String() string {
	return string(k)
}

// ParseTaskKind parses a string into a TaskKind
func ParseTaskKind(s string) (TaskKind, error) {
	kind := TaskKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid task kind: %s", s)
	}
	return kind, nil
}
