package services

import (
	"context"
	"time"

	"taxtrack/internal/models"
	"taxtrack/internal/repositories"
)

type CompanyService interface {
	Create(ctx context.Context, c *models.Company) (*models.Company, error)
	GetByID(ctx context.Context, id int64) (*models.Company, error)
	GetAll(ctx context.Context, groupID int64) ([]models.Company, error)
	Update(ctx context.Context, id int64, updateData *models.Company) (*models.Company, error)
	Delete(ctx context.Context, id int64) error
}

type companyService struct {
	repo repositories.CompanyRepository
}

func NewCompanyService(repo repositories.CompanyRepository) CompanyService {
	return &companyService{repo: repo}
}

func (s *companyService) Create(ctx context.Context, c *models.Company) (*models.Company, error) {
	c.CreatedAt = time.Now()
	if err := s.repo.Store(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *companyService) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *companyService) GetAll(ctx context.Context, groupID int64) ([]models.Company, error) {
	return s.repo.FindAll(ctx, groupID)
}

func (s *companyService) Update(ctx context.Context, id int64, updateData *models.Company) (*models.Company, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Name = updateData.Name
	existing.TaxID = updateData.TaxID

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *companyService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
