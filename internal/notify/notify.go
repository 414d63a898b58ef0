// Package notify carries domain events out of the core. The core hands each
// sink a plain record after the state change has committed; delivery failures
// never fail the originating operation.
package notify

import (
	"context"
	"log"
	"time"
)

type EventType string

const (
	EventTaskCreated       EventType = "task_created"
	EventTaskFinished      EventType = "task_finished"
	EventTaskLate          EventType = "task_late"
	EventTaskRectified     EventType = "task_rectified"
	EventDocumentSubmitted EventType = "document_submitted"
	EventApprovalPending   EventType = "approval_pending"
	EventDocumentApproved  EventType = "document_approved"
	EventDocumentRejected  EventType = "document_rejected"
)

type Event struct {
	Type       EventType `json:"type"`
	TaskID     int64     `json:"task_id,omitempty"`
	DocumentID int64     `json:"document_id,omitempty"`
	UserID     int64     `json:"user_id,omitempty"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// LogNotifier writes every event to the standard logger.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, e Event) error {
	log.Printf("[event][%s] task=%d document=%d user=%d %s",
		e.Type, e.TaskID, e.DocumentID, e.UserID, e.Message)
	return nil
}

// Multi fans one event out to several sinks. A failing sink is logged and
// skipped so one broken channel does not mute the others.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			log.Printf("[event][sink][err] %s: %v", e.Type, err)
		}
	}
	return nil
}
