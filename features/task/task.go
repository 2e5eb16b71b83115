package task

import (
	"errors"
	"time"

	"paperbase/apps/backend/internal/lifecycle"
)

const TypeDocumentIngestion = "document_ingestion"

// ErrAlreadyClaimed is returned when a claim races another worker and loses.
var ErrAlreadyClaimed = errors.New("task already claimed")

// ErrAlreadyTerminal is returned for transitions out of a finished task.
var ErrAlreadyTerminal = errors.New("task already in a terminal state")

type Task struct {
	ID              string           `json:"id"`
	DocumentID      string           `json:"document_id"`
	OwnerID         int              `json:"owner_id"`
	Type            string           `json:"type"`
	Filename        string           `json:"filename"`
	Status          lifecycle.Status `json:"status"`
	ProgressMessage string           `json:"progress_message"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
