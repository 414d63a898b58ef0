package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taxtrack/internal/models"
)

var ErrDocumentNotFound = errors.New("document not found")

type DocumentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Document, error)
	FindByTask(ctx context.Context, taskID int64) ([]models.Document, error)

	UpdateStatus(ctx context.Context, id int64, to models.DocumentStatus) error
	SetFile(ctx context.Context, id int64, path string, size int64, startedAt time.Time) error
	SetFinished(ctx context.Context, id int64, finishedAt time.Time) error
	ClearFile(ctx context.Context, id int64) error
}

type documentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) DocumentRepository {
	return &documentRepository{db: db}
}

const documentColumns = `id, task_id, document_type_id, name, status, obligatory, requires_file,
       approval_mode, estimated_days, order_index, file_path, file_size, started_at, finished_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	d := &models.Document{}
	var filePath sql.NullString
	var fileSize sql.NullInt64
	err := row.Scan(
		&d.ID, &d.TaskID, &d.DocumentTypeID, &d.Name, &d.Status, &d.Obligatory, &d.RequiresFile,
		&d.ApprovalMode, &d.EstimatedDays, &d.OrderIndex, &filePath, &fileSize,
		&d.StartedAt, &d.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	d.FilePath = filePath.String
	d.FileSize = fileSize.Int64
	return d, nil
}

func (r *documentRepository) FindByID(ctx context.Context, id int64) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	return d, err
}

func (r *documentRepository) FindByTask(ctx context.Context, taskID int64) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE task_id = $1 ORDER BY order_index, id`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *documentRepository) UpdateStatus(ctx context.Context, id int64, to models.DocumentStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status=$1 WHERE id=$2`, to, id)
	return err
}

// SetFile registers the upload and moves the document to started. The
// follow-up transition (finished or on_approval) is a separate write, so a
// failure between the two leaves the document started with its file intact.
func (r *documentRepository) SetFile(ctx context.Context, id int64, path string, size int64, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET file_path=$1, file_size=$2,
			started_at = COALESCE(started_at, $3), status=$4
		WHERE id=$5`,
		path, size, startedAt, models.DocStarted, id)
	return err
}

func (r *documentRepository) SetFinished(ctx context.Context, id int64, finishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status=$1, finished_at=$2 WHERE id=$3`,
		models.DocFinished, finishedAt, id)
	return err
}

func (r *documentRepository) ClearFile(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET file_path=NULL, file_size=NULL,
			started_at=NULL, finished_at=NULL, status=$1
		WHERE id=$2`,
		models.DocUnstarted, id)
	return err
}
