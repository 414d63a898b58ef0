package services

import (
	"context"
	"errors"
	"time"

	"taxtrack/internal/calendar"
	"taxtrack/internal/models"
	"taxtrack/internal/repositories"
)

var (
	ErrInvalidDayDeadline   = errors.New("day_deadline must be between 1 and 31")
	ErrInvalidMonthDeadline = errors.New("month_deadline must be between 1 and 12")
)

// ObligationService owns the obligation template lifecycle. Structural edits
// bump the version so tasks stay stamped with the template they came from.
type ObligationService interface {
	Create(ctx context.Context, o *models.Obligation) (*models.Obligation, error)
	GetByID(ctx context.Context, id int64) (*models.Obligation, error)
	GetAll(ctx context.Context, groupID int64) ([]models.Obligation, error)
	Update(ctx context.Context, id int64, updateData *models.Obligation) (*models.Obligation, error)
	Delete(ctx context.Context, id int64) error

	SetCompanies(ctx context.Context, id int64, links []models.ObligationCompany) error
	Companies(ctx context.Context, id int64) ([]models.ObligationCompany, error)

	AddDocumentType(ctx context.Context, dt *models.DocumentType) (*models.DocumentType, error)
	DocumentTypes(ctx context.Context, obligationID int64) ([]models.DocumentType, error)
	UpdateDocumentType(ctx context.Context, id int64, updateData *models.DocumentType) (*models.DocumentType, error)
	DeactivateDocumentType(ctx context.Context, id int64) error
	AddApprover(ctx context.Context, a *models.Approver) (*models.Approver, error)
	RemoveApprover(ctx context.Context, id int64) error
}

type obligationService struct {
	repo     repositories.ObligationRepository
	docTypes repositories.DocumentTypeRepository
	sigs     repositories.SignatureRepository
}

func NewObligationService(
	repo repositories.ObligationRepository,
	docTypes repositories.DocumentTypeRepository,
	sigs repositories.SignatureRepository,
) ObligationService {
	return &obligationService{repo: repo, docTypes: docTypes, sigs: sigs}
}

func validateObligation(o *models.Obligation) error {
	if !o.Frequency.Valid() {
		return calendar.ErrInvalidFrequency
	}
	if o.DayDeadline < 1 || o.DayDeadline > 31 {
		return ErrInvalidDayDeadline
	}
	if o.MonthDeadline != nil && (*o.MonthDeadline < 1 || *o.MonthDeadline > 12) {
		return ErrInvalidMonthDeadline
	}
	return nil
}

func (s *obligationService) Create(ctx context.Context, o *models.Obligation) (*models.Obligation, error) {
	if err := validateObligation(o); err != nil {
		return nil, err
	}
	o.Version = 1
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := s.repo.Store(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *obligationService) GetByID(ctx context.Context, id int64) (*models.Obligation, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *obligationService) GetAll(ctx context.Context, groupID int64) ([]models.Obligation, error) {
	return s.repo.FindAll(ctx, groupID)
}

// structuralChange reports whether an edit alters fields that flow into
// generated tasks. Only those bump the version.
func structuralChange(old, upd *models.Obligation) bool {
	if old.Title != upd.Title || old.Frequency != upd.Frequency || old.DayDeadline != upd.DayDeadline {
		return true
	}
	if (old.MonthDeadline == nil) != (upd.MonthDeadline == nil) {
		return true
	}
	if old.MonthDeadline != nil && *old.MonthDeadline != *upd.MonthDeadline {
		return true
	}
	return false
}

func (s *obligationService) Update(ctx context.Context, id int64, updateData *models.Obligation) (*models.Obligation, error) {
	if err := validateObligation(updateData); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if structuralChange(existing, updateData) {
		existing.Version++
	}
	existing.Title = updateData.Title
	existing.Frequency = updateData.Frequency
	existing.DayDeadline = updateData.DayDeadline
	existing.MonthDeadline = updateData.MonthDeadline
	existing.InitialDate = updateData.InitialDate
	existing.FinalDate = updateData.FinalDate
	existing.MonthsAdvanced = updateData.MonthsAdvanced
	existing.AutoGenerate = updateData.AutoGenerate
	existing.ShowInDashboard = updateData.ShowInDashboard
	existing.ExtraFields = updateData.ExtraFields
	existing.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *obligationService) Delete(ctx context.Context, id int64) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *obligationService) SetCompanies(ctx context.Context, id int64, links []models.ObligationCompany) error {
	return s.repo.SetCompanies(ctx, id, links)
}

func (s *obligationService) Companies(ctx context.Context, id int64) ([]models.ObligationCompany, error) {
	return s.repo.Companies(ctx, id)
}

func (s *obligationService) AddDocumentType(ctx context.Context, dt *models.DocumentType) (*models.DocumentType, error) {
	o, err := s.repo.FindByID(ctx, dt.ObligationID)
	if err != nil {
		return nil, err
	}
	if !dt.ApprovalMode.Valid() {
		dt.ApprovalMode = models.ApprovalNone
	}
	dt.ObligationVersion = o.Version
	dt.Active = true
	if err := s.docTypes.Store(ctx, dt); err != nil {
		return nil, err
	}
	return dt, nil
}

func (s *obligationService) DocumentTypes(ctx context.Context, obligationID int64) ([]models.DocumentType, error) {
	return s.docTypes.ListActive(ctx, obligationID)
}

// UpdateDocumentType edits the template in place. Documents already
// materialized from it are snapshots and stay as they are.
func (s *obligationService) UpdateDocumentType(ctx context.Context, id int64, updateData *models.DocumentType) (*models.DocumentType, error) {
	existing, err := s.docTypes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !updateData.ApprovalMode.Valid() {
		updateData.ApprovalMode = existing.ApprovalMode
	}
	existing.Name = updateData.Name
	existing.Obligatory = updateData.Obligatory
	existing.RequiresFile = updateData.RequiresFile
	existing.ApprovalMode = updateData.ApprovalMode
	existing.EstimatedDays = updateData.EstimatedDays
	existing.OrderIndex = updateData.OrderIndex

	if err := s.docTypes.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeactivateDocumentType retires the template; tasks already materialized
// keep their copied documents.
func (s *obligationService) DeactivateDocumentType(ctx context.Context, id int64) error {
	return s.docTypes.Deactivate(ctx, id)
}

func (s *obligationService) AddApprover(ctx context.Context, a *models.Approver) (*models.Approver, error) {
	if err := s.sigs.AddApprover(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *obligationService) RemoveApprover(ctx context.Context, id int64) error {
	return s.sigs.RemoveApprover(ctx, id)
}
