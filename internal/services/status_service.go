package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"taxtrack/internal/models"
	"taxtrack/internal/notify"
	"taxtrack/internal/repositories"
)

// Allowed time-driven transitions. Forward only: a late task never goes back
// to pending, whatever happens to its deadline afterwards.
var statusAdvances = map[models.TaskStatus]map[models.TaskStatus]bool{
	models.StatusNew:     {models.StatusPending: true, models.StatusLate: true},
	models.StatusPending: {models.StatusLate: true},
	models.StatusLate:    {},
}

func canAdvance(current, to models.TaskStatus) bool {
	return statusAdvances[current][to]
}

// StatusForDeadline computes the time-driven status of a task: late past the
// deadline, pending inside the threshold window, new otherwise.
func StatusForDeadline(deadline, now time.Time, thresholdDays int) models.TaskStatus {
	days := daysBetween(now, deadline)
	switch {
	case days < 0:
		return models.StatusLate
	case days <= thresholdDays:
		return models.StatusPending
	default:
		return models.StatusNew
	}
}

// daysBetween counts whole calendar days from a to b, negative when b is in
// the past. Time-of-day is discarded on both sides.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

type SweepSummary struct {
	Scanned    int `json:"scanned"`
	TurnedLate int `json:"turned_late"`
	TurnedPend int `json:"turned_pending"`
}

// StatusService drives the periodic task status sweep. The clock is an
// explicit parameter so the transitions stay testable.
type StatusService struct {
	tasks         repositories.TaskRepository
	notifier      notify.Notifier
	thresholdDays int
}

func NewStatusService(tasks repositories.TaskRepository, notifier notify.Notifier, thresholdDays int) *StatusService {
	return &StatusService{tasks: tasks, notifier: notifier, thresholdDays: thresholdDays}
}

// Sweep re-evaluates every active task against now. Late tasks keep their
// delayed-day counter current on every pass.
func (s *StatusService) Sweep(ctx context.Context, now time.Time) (SweepSummary, error) {
	var sum SweepSummary

	active, err := s.tasks.ListActive(ctx)
	if err != nil {
		return sum, fmt.Errorf("list active tasks: %w", err)
	}
	sum.Scanned = len(active)

	for _, t := range active {
		target := StatusForDeadline(t.Deadline, now, s.thresholdDays)

		if target == models.StatusLate && (t.Status == models.StatusLate || canAdvance(t.Status, target)) {
			delayed := -daysBetween(now, t.Deadline)
			if delayed == t.DaysDelayed && t.Status == models.StatusLate {
				continue
			}
			if err := s.tasks.MarkLate(ctx, t.ID, delayed); err != nil {
				return sum, fmt.Errorf("mark task %d late: %w", t.ID, err)
			}
			if t.Status != models.StatusLate {
				sum.TurnedLate++
				s.emitLate(ctx, t, now)
			}
			continue
		}

		if canAdvance(t.Status, target) {
			if err := s.tasks.UpdateStatus(ctx, t.ID, target); err != nil {
				return sum, fmt.Errorf("update task %d status: %w", t.ID, err)
			}
			if target == models.StatusPending {
				sum.TurnedPend++
			}
		}
	}
	return sum, nil
}

func (s *StatusService) emitLate(ctx context.Context, t models.Task, now time.Time) {
	ev := notify.Event{
		Type:    notify.EventTaskLate,
		TaskID:  t.ID,
		Message: fmt.Sprintf("Task %q missed its deadline of %s", t.Title, t.Deadline.Format("02/01/2006")),
		At:      now,
	}
	if t.ResponsibleID != nil {
		ev.UserID = *t.ResponsibleID
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		log.Printf("[status][sweep][notify][err] task=%d: %v", t.ID, err)
	}
}
