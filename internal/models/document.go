package models

import "time"

// ApprovalMode defines who has to sign a document before it can finish.
type ApprovalMode string

const (
	ApprovalNone       ApprovalMode = "none"
	ApprovalSequential ApprovalMode = "sequential"
	ApprovalParallel   ApprovalMode = "parallel"
)

func (m ApprovalMode) Valid() bool {
	switch m {
	case ApprovalNone, ApprovalSequential, ApprovalParallel:
		return true
	}
	return false
}

// DocumentStatus defines the document lifecycle. restarted is the
// post-rejection state; a new upload puts the document back on the
// started → on_approval path.
type DocumentStatus string

const (
	DocUnstarted  DocumentStatus = "unstarted"
	DocStarted    DocumentStatus = "started"
	DocOnApproval DocumentStatus = "on_approval"
	DocFinished   DocumentStatus = "finished"
	DocRestarted  DocumentStatus = "restarted"
)

// DocumentType is a checklist template belonging to one obligation version.
type DocumentType struct {
	ID                int64        `json:"id"`
	ObligationID      int64        `json:"obligation_id"`
	ObligationVersion int          `json:"obligation_version"`
	Name              string       `json:"name"`
	Obligatory        bool         `json:"obligatory"`
	RequiresFile      bool         `json:"requires_file"`
	ApprovalMode      ApprovalMode `json:"approval_mode"`
	EstimatedDays     int          `json:"estimated_days"`
	OrderIndex        int          `json:"order_index"`
	Active            bool         `json:"active"`
}

// Document is one required artifact attached to a task. Template fields are
// copied from the DocumentType at task creation; later template edits never
// reach documents already materialized.
type Document struct {
	ID             int64          `json:"id"`
	TaskID         int64          `json:"task_id"`
	DocumentTypeID int64          `json:"document_type_id"`
	Name           string         `json:"name"`
	Status         DocumentStatus `json:"status"`
	Obligatory     bool           `json:"obligatory"`
	RequiresFile   bool           `json:"requires_file"`
	ApprovalMode   ApprovalMode   `json:"approval_mode"`
	EstimatedDays  int            `json:"estimated_days"`
	OrderIndex     int            `json:"order_index"`
	FilePath       string         `json:"file_path,omitempty"`
	FileSize       int64          `json:"file_size,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}
