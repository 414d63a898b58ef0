package services

import (
	"context"
	"time"

	"taxtrack/internal/models"
	"taxtrack/internal/repositories"
)

// TaskService is the thin read/maintenance surface over tasks. Creation goes
// through the generation service, closing through the approval service.
type TaskService interface {
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	GetAll(ctx context.Context, groupID int64, filter models.TaskFilter) ([]models.Task, error)
	Documents(ctx context.Context, taskID int64) ([]models.Document, error)
	Reassign(ctx context.Context, id int64, responsibleID *int64) (*models.Task, error)
	Archive(ctx context.Context, id int64) error
	Unarchive(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type taskService struct {
	repo repositories.TaskRepository
	docs repositories.DocumentRepository
}

func NewTaskService(repo repositories.TaskRepository, docs repositories.DocumentRepository) TaskService {
	return &taskService{repo: repo, docs: docs}
}

func (s *taskService) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *taskService) GetAll(ctx context.Context, groupID int64, filter models.TaskFilter) ([]models.Task, error) {
	return s.repo.FindAll(ctx, groupID, filter)
}

func (s *taskService) Documents(ctx context.Context, taskID int64) ([]models.Document, error) {
	return s.docs.FindByTask(ctx, taskID)
}

func (s *taskService) Reassign(ctx context.Context, id int64, responsibleID *int64) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	task.ResponsibleID = responsibleID
	task.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) Archive(ctx context.Context, id int64) error {
	return s.repo.SetArchived(ctx, id, true)
}

func (s *taskService) Unarchive(ctx context.Context, id int64) error {
	return s.repo.SetArchived(ctx, id, false)
}

func (s *taskService) Delete(ctx context.Context, id int64) error {
	return s.repo.SoftDelete(ctx, id)
}
