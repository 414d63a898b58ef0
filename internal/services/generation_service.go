package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taxtrack/internal/calendar"
	"taxtrack/internal/models"
	"taxtrack/internal/notify"
	"taxtrack/internal/repositories"
)

var (
	ErrObligationNotFound = errors.New("obligation not found")
	ErrNoCompetencies     = errors.New("no competencies to generate")
)

// GenerationResult summarizes one materializer run. Skipped counts the
// idempotency no-ops: pairs that already had a task.
type GenerationResult struct {
	Created []models.Task `json:"created"`
	Skipped int           `json:"skipped"`
}

// PreviewRow is one would-be task, with Exists flagging pairs the run would
// skip. Nothing is written during a preview.
type PreviewRow struct {
	CompanyID  int64             `json:"company_id"`
	Competence time.Time         `json:"competence"`
	Title      string            `json:"title"`
	Deadline   time.Time         `json:"deadline"`
	Status     models.TaskStatus `json:"status"`
	Exists     bool              `json:"exists"`
}

type ObligationError struct {
	ObligationID int64  `json:"obligation_id"`
	Message      string `json:"message"`
}

// BatchSummary reports an automatic generation pass over all flagged
// obligations. One obligation failing never aborts its siblings.
type BatchSummary struct {
	Processed int               `json:"processed"`
	Created   int               `json:"created"`
	Errors    []ObligationError `json:"errors,omitempty"`
}

// GenerationService materializes obligation occurrences into tasks with
// their document checklists. At most one task exists per
// (obligation, company, competence); the repository's conflict-detecting
// insert enforces that under concurrent runs.
type GenerationService struct {
	obligations repositories.ObligationRepository
	companies   repositories.CompanyRepository
	tasks       repositories.TaskRepository
	docTypes    repositories.DocumentTypeRepository
	notifier    notify.Notifier

	thresholdDays int
	defaultMonths int
}

func NewGenerationService(
	obligations repositories.ObligationRepository,
	companies repositories.CompanyRepository,
	tasks repositories.TaskRepository,
	docTypes repositories.DocumentTypeRepository,
	notifier notify.Notifier,
	thresholdDays int,
	defaultMonths int,
) *GenerationService {
	return &GenerationService{
		obligations:   obligations,
		companies:     companies,
		tasks:         tasks,
		docTypes:      docTypes,
		notifier:      notifier,
		thresholdDays: thresholdDays,
		defaultMonths: defaultMonths,
	}
}

// Generate creates at most one task per (company, competence) pair for the
// obligation, attaches the active document checklist and advances the
// watermark over what the run actually covered.
func (s *GenerationService) Generate(
	ctx context.Context,
	obligationID int64,
	companyIDs []int64,
	competencies []time.Time,
	responsibleOverride *int64,
	now time.Time,
) (GenerationResult, error) {
	var res GenerationResult

	o, err := s.obligations.FindByID(ctx, obligationID)
	if err != nil {
		return res, ErrObligationNotFound
	}
	if !o.Frequency.Valid() {
		return res, calendar.ErrInvalidFrequency
	}
	if len(competencies) == 0 {
		return res, ErrNoCompetencies
	}

	docTypes, err := s.docTypes.ListActive(ctx, o.ID)
	if err != nil {
		return res, fmt.Errorf("list document types: %w", err)
	}

	for _, companyID := range companyIDs {
		company, err := s.companies.FindByID(ctx, companyID)
		if err != nil || company == nil {
			log.Printf("[generate][skip] obligation=%d company=%d not found", o.ID, companyID)
			continue
		}
		// Cross-tenant safety: never materialize into another group.
		if company.GroupID != o.GroupID {
			log.Printf("[generate][skip] obligation=%d company=%d group mismatch", o.ID, companyID)
			continue
		}

		responsible := responsibleOverride
		if responsible == nil {
			responsible, err = s.obligations.ResponsibleFor(ctx, o.ID, companyID)
			if err != nil {
				return res, fmt.Errorf("resolve responsible: %w", err)
			}
		}

		for _, competence := range competencies {
			task, err := s.buildTask(o, company, competence, responsible, now)
			if err != nil {
				return res, err
			}
			docs := buildDocuments(docTypes)

			err = s.tasks.CreateWithDocuments(ctx, task, docs)
			if errors.Is(err, repositories.ErrTaskExists) {
				res.Skipped++
				continue
			}
			if err != nil {
				return res, fmt.Errorf("create task for company %d competence %s: %w",
					companyID, competence.Format("2006-01-02"), err)
			}

			res.Created = append(res.Created, *task)
			s.emitCreated(ctx, task, now)
		}
	}

	if len(res.Created) > 0 {
		if err := s.obligations.AdvanceWatermark(ctx, o.ID, maxDate(competencies)); err != nil {
			return res, fmt.Errorf("advance watermark: %w", err)
		}
	}
	return res, nil
}

// Preview computes what Generate would do without writing anything.
func (s *GenerationService) Preview(
	ctx context.Context,
	obligationID int64,
	companyIDs []int64,
	competencies []time.Time,
	responsibleOverride *int64,
	now time.Time,
) ([]PreviewRow, error) {
	o, err := s.obligations.FindByID(ctx, obligationID)
	if err != nil {
		return nil, ErrObligationNotFound
	}
	if !o.Frequency.Valid() {
		return nil, calendar.ErrInvalidFrequency
	}

	var rows []PreviewRow
	for _, companyID := range companyIDs {
		company, err := s.companies.FindByID(ctx, companyID)
		if err != nil || company == nil || company.GroupID != o.GroupID {
			continue
		}
		for _, competence := range competencies {
			deadline, err := calendar.DeadlineFor(o.Frequency, competence, o.DayDeadline, o.MonthDeadline)
			if err != nil {
				return nil, err
			}
			existing, err := s.tasks.FindByKey(ctx, o.ID, companyID, competence)
			if err != nil {
				return nil, err
			}
			rows = append(rows, PreviewRow{
				CompanyID:  companyID,
				Competence: competence,
				Title:      calendar.TaskTitle(o.Title, o.Frequency, competence),
				Deadline:   deadline,
				Status:     StatusForDeadline(deadline, now, s.thresholdDays),
				Exists:     existing != nil,
			})
		}
	}
	return rows, nil
}

// RunAutomatic materializes every auto-generation obligation over its own
// window. Obligations are independent units of work: a failure is recorded
// against its obligation and the pass moves on.
func (s *GenerationService) RunAutomatic(ctx context.Context, now time.Time) (BatchSummary, error) {
	var sum BatchSummary

	obligations, err := s.obligations.ListAutoGeneratable(ctx)
	if err != nil {
		return sum, fmt.Errorf("list auto-generation obligations: %w", err)
	}

	for _, o := range obligations {
		created, err := s.runOne(ctx, o, now)
		sum.Processed++
		sum.Created += created
		if err != nil {
			log.Printf("[generate][auto][err] obligation=%d: %v", o.ID, err)
			sum.Errors = append(sum.Errors, ObligationError{ObligationID: o.ID, Message: err.Error()})
		}
	}
	return sum, nil
}

func (s *GenerationService) runOne(ctx context.Context, o models.Obligation, now time.Time) (int, error) {
	start := o.InitialDate
	if o.LastCompetence != nil {
		next, err := calendar.NextCompetence(o.Frequency, *o.LastCompetence)
		if err != nil {
			return 0, err
		}
		start = next
	}

	months := o.MonthsAdvanced
	if months <= 0 {
		months = s.defaultMonths
	}
	end := now.AddDate(0, months, 0)
	if o.FinalDate != nil && o.FinalDate.Before(end) {
		end = *o.FinalDate
	}
	if end.Before(start) {
		return 0, nil
	}

	competencies, err := calendar.CompetenciesInRange(o.Frequency, start, end)
	if err != nil {
		return 0, err
	}
	if len(competencies) == 0 {
		return 0, nil
	}

	links, err := s.obligations.Companies(ctx, o.ID)
	if err != nil {
		return 0, err
	}
	companyIDs := make([]int64, 0, len(links))
	for _, l := range links {
		companyIDs = append(companyIDs, l.CompanyID)
	}
	if len(companyIDs) == 0 {
		return 0, nil
	}

	res, err := s.Generate(ctx, o.ID, companyIDs, competencies, nil, now)
	return len(res.Created), err
}

func (s *GenerationService) buildTask(
	o *models.Obligation,
	company *models.Company,
	competence time.Time,
	responsible *int64,
	now time.Time,
) (*models.Task, error) {
	deadline, err := calendar.DeadlineFor(o.Frequency, competence, o.DayDeadline, o.MonthDeadline)
	if err != nil {
		return nil, err
	}

	// Snapshot of the obligation at this version; later edits to the
	// template never touch tasks already written.
	extra := make(models.JSONMap, len(o.ExtraFields))
	for k, v := range o.ExtraFields {
		extra[k] = v
	}

	obligationID := o.ID
	return &models.Task{
		ObligationID:      &obligationID,
		ObligationVersion: o.Version,
		CompanyID:         company.ID,
		GroupID:           o.GroupID,
		ResponsibleID:     responsible,
		Title:             calendar.TaskTitle(o.Title, o.Frequency, competence),
		Competence:        competence,
		Deadline:          deadline,
		Status:            StatusForDeadline(deadline, now, s.thresholdDays),
		ExtraFields:       extra,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func buildDocuments(types []models.DocumentType) []models.Document {
	docs := make([]models.Document, 0, len(types))
	for _, dt := range types {
		docs = append(docs, models.Document{
			DocumentTypeID: dt.ID,
			Name:           dt.Name,
			Status:         models.DocUnstarted,
			Obligatory:     dt.Obligatory,
			RequiresFile:   dt.RequiresFile,
			ApprovalMode:   dt.ApprovalMode,
			EstimatedDays:  dt.EstimatedDays,
			OrderIndex:     dt.OrderIndex,
		})
	}
	return docs
}

func (s *GenerationService) emitCreated(ctx context.Context, task *models.Task, now time.Time) {
	ev := notify.Event{
		Type:    notify.EventTaskCreated,
		TaskID:  task.ID,
		Message: fmt.Sprintf("Task %q created, due %s", task.Title, task.Deadline.Format("02/01/2006")),
		At:      now,
	}
	if task.ResponsibleID != nil {
		ev.UserID = *task.ResponsibleID
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		log.Printf("[generate][notify][err] task=%d: %v", task.ID, err)
	}
}

func maxDate(dates []time.Time) time.Time {
	max := dates[0]
	for _, d := range dates[1:] {
		if d.After(max) {
			max = d
		}
	}
	return max
}
