package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"taxtrack/internal/services"
)

// Scheduler runs the two periodic passes: the status sweep that turns tasks
// pending/late over time and the generation pass that materializes upcoming
// tasks for auto-generation obligations.
type Scheduler struct {
	cronScheduler *cron.Cron
	status        *services.StatusService
	generation    *services.GenerationService

	sweepSpec    string
	generateSpec string
}

func NewScheduler(status *services.StatusService, generation *services.GenerationService, sweepSpec, generateSpec string) *Scheduler {
	return &Scheduler{
		cronScheduler: cron.New(),
		status:        status,
		generation:    generation,
		sweepSpec:     sweepSpec,
		generateSpec:  generateSpec,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cronScheduler.AddFunc(s.sweepSpec, s.runSweep); err != nil {
		return fmt.Errorf("schedule status sweep: %w", err)
	}
	if _, err := s.cronScheduler.AddFunc(s.generateSpec, s.runGeneration); err != nil {
		return fmt.Errorf("schedule generation: %w", err)
	}

	s.cronScheduler.Start()
	log.Printf("[jobs] scheduler started, sweep=%q generation=%q", s.sweepSpec, s.generateSpec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cronScheduler != nil {
		ctx := s.cronScheduler.Stop()
		<-ctx.Done()
		log.Println("[jobs] scheduler stopped")
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	sum, err := s.status.Sweep(ctx, time.Now())
	if err != nil {
		log.Printf("[jobs][sweep][err] %v", err)
		return
	}
	log.Printf("[jobs][sweep] scanned=%d late=%d pending=%d", sum.Scanned, sum.TurnedLate, sum.TurnedPend)
}

func (s *Scheduler) runGeneration() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	sum, err := s.generation.RunAutomatic(ctx, time.Now())
	if err != nil {
		log.Printf("[jobs][generate][err] %v", err)
		return
	}
	log.Printf("[jobs][generate] processed=%d created=%d errors=%d", sum.Processed, sum.Created, len(sum.Errors))
}
