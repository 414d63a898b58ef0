package repositories

import (
	"context"
	"database/sql"

	"taxtrack/internal/models"
)

type DocumentTypeRepository interface {
	Store(ctx context.Context, dt *models.DocumentType) error
	FindByID(ctx context.Context, id int64) (*models.DocumentType, error)
	ListActive(ctx context.Context, obligationID int64) ([]models.DocumentType, error)
	Update(ctx context.Context, dt *models.DocumentType) error
	Deactivate(ctx context.Context, id int64) error
}

type documentTypeRepository struct {
	db *sql.DB
}

func NewDocumentTypeRepository(db *sql.DB) DocumentTypeRepository {
	return &documentTypeRepository{db: db}
}

const documentTypeColumns = `id, obligation_id, obligation_version, name, obligatory,
       requires_file, approval_mode, estimated_days, order_index, active`

func (r *documentTypeRepository) Store(ctx context.Context, dt *models.DocumentType) error {
	query := `
		INSERT INTO document_types (
			obligation_id, obligation_version, name, obligatory, requires_file,
			approval_mode, estimated_days, order_index, active
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		dt.ObligationID, dt.ObligationVersion, dt.Name, dt.Obligatory, dt.RequiresFile,
		dt.ApprovalMode, dt.EstimatedDays, dt.OrderIndex, dt.Active,
	).Scan(&dt.ID)
}

func (r *documentTypeRepository) FindByID(ctx context.Context, id int64) (*models.DocumentType, error) {
	dt := &models.DocumentType{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+documentTypeColumns+` FROM document_types WHERE id = $1`, id,
	).Scan(
		&dt.ID, &dt.ObligationID, &dt.ObligationVersion, &dt.Name, &dt.Obligatory,
		&dt.RequiresFile, &dt.ApprovalMode, &dt.EstimatedDays, &dt.OrderIndex, &dt.Active,
	)
	if err != nil {
		return nil, err
	}
	return dt, nil
}

func (r *documentTypeRepository) ListActive(ctx context.Context, obligationID int64) ([]models.DocumentType, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentTypeColumns+` FROM document_types
		 WHERE obligation_id = $1 AND active = TRUE ORDER BY order_index, id`, obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentType
	for rows.Next() {
		var dt models.DocumentType
		if err := rows.Scan(
			&dt.ID, &dt.ObligationID, &dt.ObligationVersion, &dt.Name, &dt.Obligatory,
			&dt.RequiresFile, &dt.ApprovalMode, &dt.EstimatedDays, &dt.OrderIndex, &dt.Active,
		); err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

func (r *documentTypeRepository) Update(ctx context.Context, dt *models.DocumentType) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE document_types SET
			name=$1, obligatory=$2, requires_file=$3, approval_mode=$4,
			estimated_days=$5, order_index=$6, active=$7, obligation_version=$8
		WHERE id=$9`,
		dt.Name, dt.Obligatory, dt.RequiresFile, dt.ApprovalMode,
		dt.EstimatedDays, dt.OrderIndex, dt.Active, dt.ObligationVersion, dt.ID,
	)
	return err
}

func (r *documentTypeRepository) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE document_types SET active = FALSE WHERE id = $1`, id)
	return err
}
