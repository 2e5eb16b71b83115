package lifecycle

import "fmt"

// Status is the processing state shared by tasks and documents.
// Tasks start at Queued, documents at Pending; both move through
// Processing into exactly one terminal state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

func Parse(s string) (Status, error) {
	switch Status(s) {
	case StatusQueued, StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the work the status tracks is still in flight.
func (s Status) Active() bool {
	switch s {
	case StatusQueued, StatusPending, StatusProcessing:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal step in the
// lifecycle graph. Terminal states accept nothing; cancellation is the only
// transition allowed from both pre-processing and processing states.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued, StatusPending:
		return next == StatusProcessing || next == StatusCancelled
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	}
	return false
}
