package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taxtrack/internal/models"
)

type ObligationRepository interface {
	Store(ctx context.Context, o *models.Obligation) error
	FindByID(ctx context.Context, id int64) (*models.Obligation, error)
	FindAll(ctx context.Context, groupID int64) ([]models.Obligation, error)
	Update(ctx context.Context, o *models.Obligation) error
	SoftDelete(ctx context.Context, id int64) error

	ListAutoGeneratable(ctx context.Context) ([]models.Obligation, error)
	AdvanceWatermark(ctx context.Context, id int64, competence time.Time) error

	Companies(ctx context.Context, obligationID int64) ([]models.ObligationCompany, error)
	SetCompanies(ctx context.Context, obligationID int64, links []models.ObligationCompany) error
	ResponsibleFor(ctx context.Context, obligationID, companyID int64) (*int64, error)
}

type obligationRepository struct {
	db *sql.DB
}

func NewObligationRepository(db *sql.DB) ObligationRepository {
	return &obligationRepository{db: db}
}

const obligationColumns = `id, group_id, title, frequency, day_deadline, month_deadline,
       initial_date, final_date, months_advanced, auto_generate, show_in_dashboard,
       last_competence, version, extra_fields, deleted, created_at, updated_at`

func (r *obligationRepository) Store(ctx context.Context, o *models.Obligation) error {
	query := `
		INSERT INTO obligations (
			group_id, title, frequency, day_deadline, month_deadline,
			initial_date, final_date, months_advanced, auto_generate,
			show_in_dashboard, version, extra_fields, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		o.GroupID, o.Title, o.Frequency, o.DayDeadline, o.MonthDeadline,
		o.InitialDate, o.FinalDate, o.MonthsAdvanced, o.AutoGenerate,
		o.ShowInDashboard, o.Version, o.ExtraFields, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func scanObligation(row interface{ Scan(...any) error }) (*models.Obligation, error) {
	o := &models.Obligation{}
	err := row.Scan(
		&o.ID, &o.GroupID, &o.Title, &o.Frequency, &o.DayDeadline, &o.MonthDeadline,
		&o.InitialDate, &o.FinalDate, &o.MonthsAdvanced, &o.AutoGenerate, &o.ShowInDashboard,
		&o.LastCompetence, &o.Version, &o.ExtraFields, &o.Deleted, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *obligationRepository) FindByID(ctx context.Context, id int64) (*models.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE id = $1 AND deleted = FALSE`
	o, err := scanObligation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("obligation not found")
	}
	return o, err
}

func (r *obligationRepository) FindAll(ctx context.Context, groupID int64) ([]models.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations
		WHERE group_id = $1 AND deleted = FALSE ORDER BY title`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *obligationRepository) Update(ctx context.Context, o *models.Obligation) error {
	query := `
		UPDATE obligations SET
			title=$1, frequency=$2, day_deadline=$3, month_deadline=$4,
			initial_date=$5, final_date=$6, months_advanced=$7, auto_generate=$8,
			show_in_dashboard=$9, version=$10, extra_fields=$11, updated_at=$12
		WHERE id=$13 AND deleted = FALSE`
	_, err := r.db.ExecContext(ctx, query,
		o.Title, o.Frequency, o.DayDeadline, o.MonthDeadline,
		o.InitialDate, o.FinalDate, o.MonthsAdvanced, o.AutoGenerate,
		o.ShowInDashboard, o.Version, o.ExtraFields, o.UpdatedAt, o.ID,
	)
	return err
}

func (r *obligationRepository) SoftDelete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE obligations SET deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *obligationRepository) ListAutoGeneratable(ctx context.Context) ([]models.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations
		WHERE auto_generate = TRUE AND deleted = FALSE ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// AdvanceWatermark only ever moves last_competence forward; a concurrent run
// that already covered a later period wins.
func (r *obligationRepository) AdvanceWatermark(ctx context.Context, id int64, competence time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE obligations SET last_competence = $1, updated_at = NOW()
		WHERE id = $2 AND (last_competence IS NULL OR last_competence < $1)`,
		competence, id)
	return err
}

func (r *obligationRepository) Companies(ctx context.Context, obligationID int64) ([]models.ObligationCompany, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT obligation_id, company_id, responsible_user_id
		FROM obligation_companies WHERE obligation_id = $1 ORDER BY company_id`, obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ObligationCompany
	for rows.Next() {
		var oc models.ObligationCompany
		if err := rows.Scan(&oc.ObligationID, &oc.CompanyID, &oc.ResponsibleUserID); err != nil {
			return nil, err
		}
		out = append(out, oc)
	}
	return out, rows.Err()
}

func (r *obligationRepository) SetCompanies(ctx context.Context, obligationID int64, links []models.ObligationCompany) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM obligation_companies WHERE obligation_id = $1`, obligationID); err != nil {
		return err
	}
	for _, l := range links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO obligation_companies (obligation_id, company_id, responsible_user_id)
			VALUES ($1,$2,$3)`, obligationID, l.CompanyID, l.ResponsibleUserID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *obligationRepository) ResponsibleFor(ctx context.Context, obligationID, companyID int64) (*int64, error) {
	var responsible *int64
	err := r.db.QueryRowContext(ctx, `
		SELECT responsible_user_id FROM obligation_companies
		WHERE obligation_id = $1 AND company_id = $2`, obligationID, companyID).Scan(&responsible)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return responsible, err
}
