// Package events defines the job stage-change message exchanged between the
// API and the worker over RabbitMQ.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/google/uuid"
)

const ContentType = "application/json"

var ErrInvalidEvent = errors.New("invalid job event")

type JobEvent struct {
	EventID    uuid.UUID    `json:"event_id"`
	JobID      int64        `json:"job_id"`
	ActorID    int64        `json:"actor_id"`
	ActorRole  domain.Role  `json:"actor_role"`
	Event      string       `json:"event"`
	FromStage  domain.Stage `json:"from_stage"`
	ToStage    domain.Stage `json:"to_stage"`
	AssignedTo *int64       `json:"assigned_to,omitempty"`
	FollowUp   bool         `json:"follow_up"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Validate checks the fields the worker relies on
func (e *JobEvent) Validate() error {
	switch {
	case e.EventID == uuid.Nil:
		return fmt.Errorf("%w: missing event_id", ErrInvalidEvent)
	case e.JobID <= 0:
		return fmt.Errorf("%w: job_id must be positive", ErrInvalidEvent)
	case e.Event == "":
		return fmt.Errorf("%w: missing event", ErrInvalidEvent)
	case !e.FromStage.Valid():
		return fmt.Errorf("%w: unknown from_stage %q", ErrInvalidEvent, e.FromStage)
	case !e.ToStage.Valid():
		return fmt.Errorf("%w: unknown to_stage %q", ErrInvalidEvent, e.ToStage)
	case e.OccurredAt.IsZero():
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	return nil
}

// NeedsFollowUp reports whether the event left the job waiting on an admin
func (e *JobEvent) NeedsFollowUp() bool {
	return e.ToStage == domain.StageCancelledInDelivery && e.FromStage != e.ToStage
}

func (e *JobEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses and validates a message body
func Decode(body []byte) (*JobEvent, error) {
	var e JobEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
