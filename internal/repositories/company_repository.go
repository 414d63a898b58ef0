package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"taxtrack/internal/models"
)

type CompanyRepository interface {
	Store(ctx context.Context, c *models.Company) error
	FindByID(ctx context.Context, id int64) (*models.Company, error)
	FindAll(ctx context.Context, groupID int64) ([]models.Company, error)
	Update(ctx context.Context, c *models.Company) error
	Delete(ctx context.Context, id int64) error
}

type companyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Store(ctx context.Context, c *models.Company) error {
	query := `
		INSERT INTO companies (group_id, name, tax_id, created_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query,
		c.GroupID, c.Name, c.TaxID, c.CreatedAt,
	).Scan(&c.ID, &c.CreatedAt)
}

func (r *companyRepository) FindByID(ctx context.Context, id int64) (*models.Company, error) {
	c := &models.Company{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, group_id, name, tax_id, created_at FROM companies WHERE id = $1`, id,
	).Scan(&c.ID, &c.GroupID, &c.Name, &c.TaxID, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("company not found")
		}
		return nil, err
	}
	return c, nil
}

func (r *companyRepository) FindAll(ctx context.Context, groupID int64) ([]models.Company, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, name, tax_id, created_at FROM companies
		 WHERE group_id = $1 ORDER BY name`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.GroupID, &c.Name, &c.TaxID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *companyRepository) Update(ctx context.Context, c *models.Company) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE companies SET name=$1, tax_id=$2 WHERE id=$3`,
		c.Name, c.TaxID, c.ID)
	return err
}

func (r *companyRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, id)
	return err
}
