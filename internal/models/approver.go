package models

import "time"

// Approver is a configured signer for a document type. Sequence orders
// signers in sequential mode; parallel mode ignores the order.
type Approver struct {
	ID             int64 `json:"id"`
	DocumentTypeID int64 `json:"document_type_id"`
	UserID         int64 `json:"user_id"`
	Sequence       int   `json:"sequence"`
}

type SignatureStatus string

const (
	SignaturePending  SignatureStatus = "pending"
	SignatureSigned   SignatureStatus = "signed"
	SignatureRejected SignatureStatus = "rejected"
)

// ApproverSignature is one signer's approval instance on one document.
// Rows are created when the document enters on_approval and cleared when it
// is reset; a rejected row survives for audit.
type ApproverSignature struct {
	ID         int64           `json:"id"`
	DocumentID int64           `json:"document_id"`
	UserID     int64           `json:"user_id"`
	Sequence   int             `json:"sequence"`
	Status     SignatureStatus `json:"status"`
	Comment    string          `json:"comment,omitempty"`
	SignedAt   *time.Time      `json:"signed_at,omitempty"`
}
