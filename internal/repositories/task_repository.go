package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taxtrack/internal/models"
)

// ErrTaskExists signals the idempotency gate: a non-deleted task for the same
// (obligation, company, competence) already exists. Callers treat it as a
// skip, not a failure.
var ErrTaskExists = errors.New("task already exists for competence")

var ErrTaskNotFound = errors.New("task not found")

type TaskRepository interface {
	// CreateWithDocuments inserts the task and its document checklist in one
	// transaction. The insert goes through the partial unique index on
	// (obligation_id, company_id, competence) WHERE NOT deleted AND
	// corrected_from_id IS NULL, so a concurrent duplicate surfaces as
	// ErrTaskExists instead of a second row. Correction tasks carry a
	// corrected_from_id and sit outside the index on purpose.
	CreateWithDocuments(ctx context.Context, task *models.Task, docs []models.Document) error
	Store(ctx context.Context, task *models.Task) error

	FindByID(ctx context.Context, id int64) (*models.Task, error)
	FindByKey(ctx context.Context, obligationID, companyID int64, competence time.Time) (*models.Task, error)
	FindAll(ctx context.Context, groupID int64, filter models.TaskFilter) ([]models.Task, error)
	CorrectionChain(ctx context.Context, id int64) ([]models.Task, error)

	Update(ctx context.Context, task *models.Task) error
	UpdateStatus(ctx context.Context, id int64, to models.TaskStatus) error
	Finish(ctx context.Context, id int64, conclusion time.Time) error
	MarkLate(ctx context.Context, id int64, daysDelayed int) error
	SetCompletion(ctx context.Context, id int64, pct int) error
	SetArchived(ctx context.Context, id int64, archived bool) error
	SoftDelete(ctx context.Context, id int64) error

	ListActive(ctx context.Context) ([]models.Task, error)
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, obligation_id, obligation_version, company_id, group_id, responsible_id,
       title, competence, deadline, status, completion_pct, days_delayed,
       corrected_from_id, conclusion_date, extra_fields, archived, deleted,
       created_at, updated_at`

const taskInsert = `
	INSERT INTO tasks (
		obligation_id, obligation_version, company_id, group_id, responsible_id,
		title, competence, deadline, status, completion_pct, days_delayed,
		corrected_from_id, extra_fields, created_at, updated_at
	)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	ON CONFLICT (obligation_id, company_id, competence) WHERE NOT deleted AND corrected_from_id IS NULL DO NOTHING
	RETURNING id`

func insertTask(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, task *models.Task) error {
	err := q.QueryRowContext(ctx, taskInsert,
		task.ObligationID, task.ObligationVersion, task.CompanyID, task.GroupID, task.ResponsibleID,
		task.Title, task.Competence, task.Deadline, task.Status, task.CompletionPct, task.DaysDelayed,
		task.CorrectedFromID, task.ExtraFields, task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID)
	if err == sql.ErrNoRows {
		return ErrTaskExists
	}
	return err
}

func (r *taskRepository) Store(ctx context.Context, task *models.Task) error {
	return insertTask(ctx, r.db, task)
}

func (r *taskRepository) CreateWithDocuments(ctx context.Context, task *models.Task, docs []models.Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertTask(ctx, tx, task); err != nil {
		return err
	}
	for i := range docs {
		docs[i].TaskID = task.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO documents (
				task_id, document_type_id, name, status, obligatory, requires_file,
				approval_mode, estimated_days, order_index
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING id`,
			docs[i].TaskID, docs[i].DocumentTypeID, docs[i].Name, docs[i].Status,
			docs[i].Obligatory, docs[i].RequiresFile, docs[i].ApprovalMode,
			docs[i].EstimatedDays, docs[i].OrderIndex,
		).Scan(&docs[i].ID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID, &t.ObligationID, &t.ObligationVersion, &t.CompanyID, &t.GroupID, &t.ResponsibleID,
		&t.Title, &t.Competence, &t.Deadline, &t.Status, &t.CompletionPct, &t.DaysDelayed,
		&t.CorrectedFromID, &t.ConclusionDate, &t.ExtraFields, &t.Archived, &t.Deleted,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *taskRepository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND deleted = FALSE`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	return t, err
}

func (r *taskRepository) FindByKey(ctx context.Context, obligationID, companyID int64, competence time.Time) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE obligation_id = $1 AND company_id = $2 AND competence = $3
		  AND deleted = FALSE AND corrected_from_id IS NULL`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, obligationID, companyID, competence))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *taskRepository) FindAll(ctx context.Context, groupID int64, filter models.TaskFilter) ([]models.Task, error) {
	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`

	conditions := []string{"group_id = $1", "deleted = FALSE"}
	args := []any{groupID}
	argID := 2

	if filter.CompanyID != nil {
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", argID))
		args = append(args, *filter.CompanyID)
		argID++
	}
	if filter.ObligationID != nil {
		conditions = append(conditions, fmt.Sprintf("obligation_id = $%d", argID))
		args = append(args, *filter.ObligationID)
		argID++
	}
	if filter.ResponsibleID != nil {
		conditions = append(conditions, fmt.Sprintf("responsible_id = $%d", argID))
		args = append(args, *filter.ResponsibleID)
		argID++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Archived != nil {
		conditions = append(conditions, fmt.Sprintf("archived = $%d", argID))
		args = append(args, *filter.Archived)
		argID++
	}

	baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	baseQuery += " ORDER BY deadline, id"

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// CorrectionChain walks corrected_from links backward from the given task.
// The recursive CTE is bounded by the id inequality, so a (theoretically
// impossible) cycle cannot hang the query.
func (r *taskRepository) CorrectionChain(ctx context.Context, id int64) ([]models.Task, error) {
	query := `
		WITH RECURSIVE chain AS (
			SELECT ` + taskColumns + ` FROM tasks WHERE id = $1
			UNION ALL
			SELECT ` + prefixedTaskColumns("t") + `
			FROM tasks t JOIN chain c ON t.id = c.corrected_from_id AND t.id <> c.id
		)
		SELECT ` + taskColumns + ` FROM chain`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func prefixedTaskColumns(alias string) string {
	cols := strings.Split(taskColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks SET
			responsible_id=$1, title=$2, deadline=$3, status=$4, completion_pct=$5,
			days_delayed=$6, conclusion_date=$7, extra_fields=$8, updated_at=$9
		WHERE id=$10 AND deleted = FALSE`
	_, err := r.db.ExecContext(ctx, query,
		task.ResponsibleID, task.Title, task.Deadline, task.Status, task.CompletionPct,
		task.DaysDelayed, task.ConclusionDate, task.ExtraFields, task.UpdatedAt, task.ID,
	)
	return err
}

func (r *taskRepository) UpdateStatus(ctx context.Context, id int64, to models.TaskStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status=$1, updated_at=NOW() WHERE id=$2 AND deleted = FALSE`, to, id)
	return err
}

func (r *taskRepository) Finish(ctx context.Context, id int64, conclusion time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET status=$1, completion_pct=100, conclusion_date=$2, updated_at=NOW()
		WHERE id=$3 AND deleted = FALSE`,
		models.StatusFinished, conclusion, id)
	return err
}

func (r *taskRepository) MarkLate(ctx context.Context, id int64, daysDelayed int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET status=$1, days_delayed=$2, updated_at=NOW()
		WHERE id=$3 AND deleted = FALSE`,
		models.StatusLate, daysDelayed, id)
	return err
}

func (r *taskRepository) SetCompletion(ctx context.Context, id int64, pct int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET completion_pct=$1, updated_at=NOW() WHERE id=$2 AND deleted = FALSE`, pct, id)
	return err
}

func (r *taskRepository) SetArchived(ctx context.Context, id int64, archived bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET archived=$1, updated_at=NOW() WHERE id=$2 AND deleted = FALSE`, archived, id)
	return err
}

func (r *taskRepository) SoftDelete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// ListActive returns the sweep working set: tasks whose status can still move
// forward over time.
func (r *taskRepository) ListActive(ctx context.Context) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status IN ($1,$2,$3) AND deleted = FALSE AND archived = FALSE
		ORDER BY deadline, id`
	rows, err := r.db.QueryContext(ctx, query,
		models.StatusNew, models.StatusPending, models.StatusLate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
