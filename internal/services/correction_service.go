package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taxtrack/internal/models"
	"taxtrack/internal/notify"
	"taxtrack/internal/repositories"
)

var ErrNotRectifiable = errors.New("only finished or late tasks can be rectified")

// CorrectionService supersedes a closed task with a fresh linked one.
// History is never mutated: the original row stays, marked rectified, and
// the new task points back at it through corrected_from.
type CorrectionService struct {
	tasks    repositories.TaskRepository
	notifier notify.Notifier

	thresholdDays int
}

func NewCorrectionService(tasks repositories.TaskRepository, notifier notify.Notifier, thresholdDays int) *CorrectionService {
	return &CorrectionService{tasks: tasks, notifier: notifier, thresholdDays: thresholdDays}
}

// Rectify creates the superseding task with the caller-supplied deadline.
// Documents are not regenerated; the surrounding workflow decides what the
// corrected task needs.
func (s *CorrectionService) Rectify(ctx context.Context, taskID int64, newDeadline time.Time, now time.Time) (*models.Task, error) {
	original, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if original.Status != models.StatusFinished && original.Status != models.StatusLate {
		return nil, ErrNotRectifiable
	}

	correctedFrom := original.ID
	replacement := &models.Task{
		ObligationID:      original.ObligationID,
		ObligationVersion: original.ObligationVersion,
		CompanyID:         original.CompanyID,
		GroupID:           original.GroupID,
		ResponsibleID:     original.ResponsibleID,
		Title:             original.Title,
		Competence:        original.Competence,
		Deadline:          newDeadline,
		Status:            StatusForDeadline(newDeadline, now, s.thresholdDays),
		CorrectedFromID:   &correctedFrom,
		ExtraFields:       original.ExtraFields,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Insert the replacement first: if it fails the original keeps its
	// status and stays rectifiable. The corrected_from reference keeps the
	// replacement outside the materialization uniqueness key, so this order
	// never conflicts with the original row.
	if err := s.tasks.Store(ctx, replacement); err != nil {
		return nil, fmt.Errorf("create replacement task: %w", err)
	}
	if err := s.tasks.UpdateStatus(ctx, original.ID, models.StatusRectified); err != nil {
		return nil, fmt.Errorf("mark original rectified: %w", err)
	}

	ev := notify.Event{
		Type:    notify.EventTaskRectified,
		TaskID:  replacement.ID,
		Message: fmt.Sprintf("Task %q rectified, new deadline %s", original.Title, newDeadline.Format("02/01/2006")),
		At:      now,
	}
	if replacement.ResponsibleID != nil {
		ev.UserID = *replacement.ResponsibleID
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		log.Printf("[correction][notify][err] task=%d: %v", replacement.ID, err)
	}
	return replacement, nil
}

// Chain returns the task and every ancestor it corrects, newest first.
func (s *CorrectionService) Chain(ctx context.Context, taskID int64) ([]models.Task, error) {
	return s.tasks.CorrectionChain(ctx, taskID)
}
