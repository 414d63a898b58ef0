package repositories

import (
	"context"
	"database/sql"
	"time"

	"taxtrack/internal/models"
)

type SignatureRepository interface {
	ApproversForType(ctx context.Context, documentTypeID int64) ([]models.Approver, error)
	AddApprover(ctx context.Context, a *models.Approver) error
	RemoveApprover(ctx context.Context, id int64) error

	CreateForDocument(ctx context.Context, documentID int64, approvers []models.Approver) error
	FindByDocument(ctx context.Context, documentID int64) ([]models.ApproverSignature, error)
	PendingForUser(ctx context.Context, userID int64) ([]models.ApproverSignature, error)

	MarkSigned(ctx context.Context, id int64, signedAt time.Time) error
	MarkRejected(ctx context.Context, id int64, comment string, decidedAt time.Time) error
	DeletePending(ctx context.Context, documentID int64) error
	DeleteForDocument(ctx context.Context, documentID int64) error
}

type signatureRepository struct {
	db *sql.DB
}

func NewSignatureRepository(db *sql.DB) SignatureRepository {
	return &signatureRepository{db: db}
}

func (r *signatureRepository) ApproversForType(ctx context.Context, documentTypeID int64) ([]models.Approver, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, document_type_id, user_id, sequence FROM approvers
		WHERE document_type_id = $1 ORDER BY sequence, id`, documentTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Approver
	for rows.Next() {
		var a models.Approver
		if err := rows.Scan(&a.ID, &a.DocumentTypeID, &a.UserID, &a.Sequence); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *signatureRepository) AddApprover(ctx context.Context, a *models.Approver) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO approvers (document_type_id, user_id, sequence)
		VALUES ($1,$2,$3) RETURNING id`,
		a.DocumentTypeID, a.UserID, a.Sequence,
	).Scan(&a.ID)
}

func (r *signatureRepository) RemoveApprover(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM approvers WHERE id = $1`, id)
	return err
}

// CreateForDocument instantiates one pending signature per configured
// approver inside a single transaction, so a document never enters
// on_approval with half its signer set.
func (r *signatureRepository) CreateForDocument(ctx context.Context, documentID int64, approvers []models.Approver) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range approvers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO approver_signatures (document_id, user_id, sequence, status)
			VALUES ($1,$2,$3,$4)`,
			documentID, a.UserID, a.Sequence, models.SignaturePending); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const signatureColumns = `id, document_id, user_id, sequence, status, comment, signed_at`

func scanSignature(row interface{ Scan(...any) error }) (*models.ApproverSignature, error) {
	s := &models.ApproverSignature{}
	var comment sql.NullString
	err := row.Scan(&s.ID, &s.DocumentID, &s.UserID, &s.Sequence, &s.Status, &comment, &s.SignedAt)
	if err != nil {
		return nil, err
	}
	s.Comment = comment.String
	return s, nil
}

func (r *signatureRepository) FindByDocument(ctx context.Context, documentID int64) ([]models.ApproverSignature, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+signatureColumns+` FROM approver_signatures
		 WHERE document_id = $1 ORDER BY sequence, id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ApproverSignature
	for rows.Next() {
		s, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *signatureRepository) PendingForUser(ctx context.Context, userID int64) ([]models.ApproverSignature, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+signatureColumns+` FROM approver_signatures
		 WHERE user_id = $1 AND status = $2 ORDER BY id`, userID, models.SignaturePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ApproverSignature
	for rows.Next() {
		s, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// MarkSigned flips pending → signed. The status guard in the WHERE clause is
// the commit-time precondition: a signature already decided by a concurrent
// actor is not overwritten, the caller sees no row updated.
func (r *signatureRepository) MarkSigned(ctx context.Context, id int64, signedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE approver_signatures SET status=$1, signed_at=$2
		WHERE id=$3 AND status=$4`,
		models.SignatureSigned, signedAt, id, models.SignaturePending)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *signatureRepository) MarkRejected(ctx context.Context, id int64, comment string, decidedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE approver_signatures SET status=$1, comment=$2, signed_at=$3
		WHERE id=$4 AND status=$5`,
		models.SignatureRejected, comment, decidedAt, id, models.SignaturePending)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *signatureRepository) DeletePending(ctx context.Context, documentID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM approver_signatures WHERE document_id = $1 AND status = $2`,
		documentID, models.SignaturePending)
	return err
}

func (r *signatureRepository) DeleteForDocument(ctx context.Context, documentID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM approver_signatures WHERE document_id = $1`, documentID)
	return err
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
