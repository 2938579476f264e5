package serviceorder

import "fmt"

// Status is the closed set of service-order lifecycle states. The wire and
// column values keep the historical casing of the schema.
type Status string

const (
	StatusReceived   Status = "Received"
	StatusInProgress Status = "inProgress"
	StatusCompleted  Status = "completed"
	StatusDelivered  Status = "delivered"
)

// transitions defines every legal edge of the lifecycle. Completed can
// revert to inProgress (releasing its stock reservation) or advance to
// delivered; delivered has no outgoing edges.
var transitions = map[Status][]Status{
	StatusReceived:   {StatusInProgress},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {StatusInProgress, StatusDelivered},
	StatusDelivered:  {},
}

// ParseStatus validates a raw string against the closed set.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Terminal reports whether the status admits no further mutation.
func (s Status) Terminal() bool {
	return s == StatusDelivered
}

// CanTransitionTo reports whether the edge s -> target is part of the
// lifecycle.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}
