package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"taxtrack/internal/models"
	"taxtrack/internal/notify"
	"taxtrack/internal/pdf"
	"taxtrack/internal/repositories"
)

var (
	ErrNotASigner      = errors.New("user has no pending signature on this document")
	ErrOutOfSequence   = errors.New("not this signer's turn in the sequence")
	ErrCommentRequired = errors.New("rejection requires a comment")
	ErrFileRequired    = errors.New("document requires a file before finishing")
	ErrDocumentState   = errors.New("operation not allowed in current document state")
	ErrSignatureRace   = errors.New("signature was decided concurrently, retry")
)

// ApprovalService owns the document lifecycle and the per-document signer
// sequences. Documents move unstarted → started → on_approval → finished,
// with restarted as the post-rejection re-entry point.
type ApprovalService struct {
	docs       repositories.DocumentRepository
	tasks      repositories.TaskRepository
	signatures repositories.SignatureRepository
	companies  repositories.CompanyRepository
	users      repositories.UserRepository
	notifier   notify.Notifier
	pdfGen     pdf.Generator
}

func NewApprovalService(
	docs repositories.DocumentRepository,
	tasks repositories.TaskRepository,
	signatures repositories.SignatureRepository,
	companies repositories.CompanyRepository,
	users repositories.UserRepository,
	notifier notify.Notifier,
	pdfGen pdf.Generator,
) *ApprovalService {
	return &ApprovalService{
		docs:       docs,
		tasks:      tasks,
		signatures: signatures,
		companies:  companies,
		users:      users,
		notifier:   notifier,
		pdfGen:     pdfGen,
	}
}

// SubmitFile registers an upload and routes the document by its approval
// mode: none finishes it outright, sequential/parallel open the signature
// round.
func (s *ApprovalService) SubmitFile(ctx context.Context, documentID int64, filePath string, fileSize int64, now time.Time) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case models.DocUnstarted, models.DocStarted, models.DocRestarted:
	default:
		return nil, ErrDocumentState
	}

	// SetFile also persists the started state, so a failure while routing
	// below still leaves the upload registered.
	if err := s.docs.SetFile(ctx, doc.ID, filePath, fileSize, now); err != nil {
		return nil, fmt.Errorf("register file: %w", err)
	}
	doc.FilePath = filePath
	doc.FileSize = fileSize
	doc.Status = models.DocStarted
	if doc.StartedAt == nil {
		doc.StartedAt = &now
	}

	s.emit(ctx, notify.Event{
		Type:       notify.EventDocumentSubmitted,
		TaskID:     doc.TaskID,
		DocumentID: doc.ID,
		Message:    fmt.Sprintf("File submitted for document %q", doc.Name),
		At:         now,
	})

	if doc.ApprovalMode == models.ApprovalNone {
		if err := s.finishDocument(ctx, doc, now); err != nil {
			return nil, err
		}
		doc.Status = models.DocFinished
		return doc, nil
	}
	if err := s.openApproval(ctx, doc, now); err != nil {
		return nil, err
	}
	doc.Status = models.DocOnApproval
	return doc, nil
}

// MarkFinished completes a document that carries no evidence file. Only
// valid for requires_file=false documents outside an approval round.
func (s *ApprovalService) MarkFinished(ctx context.Context, documentID int64, now time.Time) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.RequiresFile && doc.FilePath == "" {
		return nil, ErrFileRequired
	}
	switch doc.Status {
	case models.DocUnstarted, models.DocStarted, models.DocRestarted:
	default:
		return nil, ErrDocumentState
	}

	if doc.ApprovalMode != models.ApprovalNone {
		if err := s.openApproval(ctx, doc, now); err != nil {
			return nil, err
		}
		doc.Status = models.DocOnApproval
		return doc, nil
	}
	if err := s.finishDocument(ctx, doc, now); err != nil {
		return nil, err
	}
	doc.Status = models.DocFinished
	return doc, nil
}

// Sign records one signer's approval. Sequential mode only accepts the
// lowest pending sequence; signing out of turn is an error, not a no-op.
func (s *ApprovalService) Sign(ctx context.Context, documentID, userID int64, now time.Time) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.DocOnApproval {
		return nil, ErrDocumentState
	}

	sigs, err := s.signatures.FindByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	mine, pending := pickSignature(sigs, userID)
	if mine == nil {
		return nil, ErrNotASigner
	}
	if doc.ApprovalMode == models.ApprovalSequential && mine.Sequence != lowestSequence(pending) {
		return nil, ErrOutOfSequence
	}

	if err := s.signatures.MarkSigned(ctx, mine.ID, now); err != nil {
		// The WHERE status='pending' guard failed: someone else decided it.
		return nil, ErrSignatureRace
	}

	// The "all others signed" check has to hold after the update commits,
	// not at the read above: a concurrent signer may have decided another
	// row in between. Re-read and count what is actually left.
	after, err := s.signatures.FindByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if countPending(after) == 0 {
		if err := s.finishDocument(ctx, doc, now); err != nil {
			return nil, err
		}
		doc.Status = models.DocFinished
		s.writeProtocol(ctx, doc, now)
		return doc, nil
	}

	if doc.ApprovalMode == models.ApprovalSequential {
		s.notifyNextSigner(ctx, doc, after, mine.Sequence, now)
	}
	return doc, nil
}

// Reject marks the signer's signature rejected with the mandatory comment,
// drops the other pending signatures and sends the document to restarted.
// The uploaded file stays on the record for audit.
func (s *ApprovalService) Reject(ctx context.Context, documentID, userID int64, comment string, now time.Time) (*models.Document, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, ErrCommentRequired
	}

	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.DocOnApproval {
		return nil, ErrDocumentState
	}

	sigs, err := s.signatures.FindByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	mine, _ := pickSignature(sigs, userID)
	if mine == nil {
		return nil, ErrNotASigner
	}

	if err := s.signatures.MarkRejected(ctx, mine.ID, comment, now); err != nil {
		return nil, ErrSignatureRace
	}
	if err := s.signatures.DeletePending(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("invalidate pending signatures: %w", err)
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, models.DocRestarted); err != nil {
		return nil, err
	}
	doc.Status = models.DocRestarted

	s.emit(ctx, notify.Event{
		Type:       notify.EventDocumentRejected,
		TaskID:     doc.TaskID,
		DocumentID: doc.ID,
		Message:    fmt.Sprintf("Document %q rejected: %s", doc.Name, comment),
		At:         now,
	})
	return doc, nil
}

// Reset wipes the file and every signature and puts the document back to
// unstarted, whatever state it is in. Recovery hatch for mistaken uploads.
func (s *ApprovalService) Reset(ctx context.Context, documentID int64) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.signatures.DeleteForDocument(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("clear signatures: %w", err)
	}
	if err := s.docs.ClearFile(ctx, doc.ID); err != nil {
		return nil, err
	}
	doc.Status = models.DocUnstarted
	doc.FilePath = ""
	doc.FileSize = 0
	doc.StartedAt = nil
	doc.FinishedAt = nil
	return doc, nil
}

func (s *ApprovalService) PendingForUser(ctx context.Context, userID int64) ([]models.ApproverSignature, error) {
	return s.signatures.PendingForUser(ctx, userID)
}

func (s *ApprovalService) Signatures(ctx context.Context, documentID int64) ([]models.ApproverSignature, error) {
	return s.signatures.FindByDocument(ctx, documentID)
}

// openApproval instantiates the signature round from the document type's
// configured approvers and moves the document to on_approval.
func (s *ApprovalService) openApproval(ctx context.Context, doc *models.Document, now time.Time) error {
	approvers, err := s.signatures.ApproversForType(ctx, doc.DocumentTypeID)
	if err != nil {
		return fmt.Errorf("load approvers: %w", err)
	}
	if len(approvers) == 0 {
		// Approval mode with nobody configured: nothing to wait for.
		return s.finishDocument(ctx, doc, now)
	}

	if err := s.signatures.CreateForDocument(ctx, doc.ID, approvers); err != nil {
		return fmt.Errorf("create signatures: %w", err)
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, models.DocOnApproval); err != nil {
		return err
	}

	if doc.ApprovalMode == models.ApprovalSequential {
		s.emitApprovalPending(ctx, doc, approvers[0].UserID, now)
	} else {
		for _, a := range approvers {
			s.emitApprovalPending(ctx, doc, a.UserID, now)
		}
	}
	return nil
}

// finishDocument closes the document and, when it was the last obligatory
// item, the task with it.
func (s *ApprovalService) finishDocument(ctx context.Context, doc *models.Document, now time.Time) error {
	if err := s.docs.SetFinished(ctx, doc.ID, now); err != nil {
		return err
	}

	s.emit(ctx, notify.Event{
		Type:       notify.EventDocumentApproved,
		TaskID:     doc.TaskID,
		DocumentID: doc.ID,
		Message:    fmt.Sprintf("Document %q finished", doc.Name),
		At:         now,
	})

	return s.refreshTaskCompletion(ctx, doc.TaskID, now)
}

// refreshTaskCompletion recomputes the task's completion percentage over its
// obligatory documents and finishes the task once they are all done.
func (s *ApprovalService) refreshTaskCompletion(ctx context.Context, taskID int64, now time.Time) error {
	docs, err := s.docs.FindByTask(ctx, taskID)
	if err != nil {
		return err
	}

	obligatory, done := 0, 0
	for _, d := range docs {
		if !d.Obligatory {
			continue
		}
		obligatory++
		if d.Status == models.DocFinished {
			done++
		}
	}
	if obligatory == 0 {
		return nil
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status == models.StatusFinished || task.Status == models.StatusRectified {
		return nil
	}

	if done == obligatory {
		if err := s.tasks.Finish(ctx, taskID, now); err != nil {
			return err
		}
		ev := notify.Event{
			Type:    notify.EventTaskFinished,
			TaskID:  taskID,
			Message: fmt.Sprintf("Task %q completed", task.Title),
			At:      now,
		}
		if task.ResponsibleID != nil {
			ev.UserID = *task.ResponsibleID
		}
		s.emit(ctx, ev)
		return nil
	}
	return s.tasks.SetCompletion(ctx, taskID, done*100/obligatory)
}

func (s *ApprovalService) notifyNextSigner(ctx context.Context, doc *models.Document, sigs []models.ApproverSignature, afterSeq int, now time.Time) {
	next := 0
	var nextUser int64
	for _, sig := range sigs {
		if sig.Status != models.SignaturePending || sig.Sequence <= afterSeq {
			continue
		}
		if next == 0 || sig.Sequence < next {
			next = sig.Sequence
			nextUser = sig.UserID
		}
	}
	if nextUser != 0 {
		s.emitApprovalPending(ctx, doc, nextUser, now)
	}
}

func (s *ApprovalService) emitApprovalPending(ctx context.Context, doc *models.Document, userID int64, now time.Time) {
	s.emit(ctx, notify.Event{
		Type:       notify.EventApprovalPending,
		TaskID:     doc.TaskID,
		DocumentID: doc.ID,
		UserID:     userID,
		Message:    fmt.Sprintf("Document %q is waiting for your signature", doc.Name),
		At:         now,
	})
}

func (s *ApprovalService) emit(ctx context.Context, e notify.Event) {
	if err := s.notifier.Notify(ctx, e); err != nil {
		log.Printf("[approval][notify][err] document=%d: %v", e.DocumentID, err)
	}
}

// writeProtocol renders the signed-off audit PDF. Best effort: a rendering
// failure is logged, the approval itself already committed.
func (s *ApprovalService) writeProtocol(ctx context.Context, doc *models.Document, now time.Time) {
	if s.pdfGen == nil {
		return
	}
	task, err := s.tasks.FindByID(ctx, doc.TaskID)
	if err != nil {
		log.Printf("[approval][protocol][err] document=%d: %v", doc.ID, err)
		return
	}
	company, err := s.companies.FindByID(ctx, task.CompanyID)
	if err != nil {
		log.Printf("[approval][protocol][err] document=%d: %v", doc.ID, err)
		return
	}
	sigs, err := s.signatures.FindByDocument(ctx, doc.ID)
	if err != nil {
		log.Printf("[approval][protocol][err] document=%d: %v", doc.ID, err)
		return
	}

	data := pdf.ProtocolData{
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		TaskTitle:    task.Title,
		CompanyName:  company.Name,
		Deadline:     task.Deadline,
		FinishedAt:   now,
	}
	for _, sig := range sigs {
		if sig.Status != models.SignatureSigned {
			continue
		}
		name := fmt.Sprintf("user %d", sig.UserID)
		if u, err := s.users.FindByID(ctx, sig.UserID); err == nil && u != nil {
			name = u.Name
		}
		signedAt := now
		if sig.SignedAt != nil {
			signedAt = *sig.SignedAt
		}
		data.Signatures = append(data.Signatures, pdf.ProtocolSignature{
			SignerName: name,
			Sequence:   sig.Sequence,
			SignedAt:   signedAt,
		})
	}

	if _, err := s.pdfGen.GenerateApprovalProtocol(data); err != nil {
		log.Printf("[approval][protocol][err] document=%d: %v", doc.ID, err)
	}
}

func pickSignature(sigs []models.ApproverSignature, userID int64) (*models.ApproverSignature, []models.ApproverSignature) {
	var mine *models.ApproverSignature
	var pending []models.ApproverSignature
	for i, sig := range sigs {
		if sig.Status != models.SignaturePending {
			continue
		}
		pending = append(pending, sig)
		if sig.UserID == userID {
			mine = &sigs[i]
		}
	}
	return mine, pending
}

func countPending(sigs []models.ApproverSignature) int {
	n := 0
	for _, sig := range sigs {
		if sig.Status == models.SignaturePending {
			n++
		}
	}
	return n
}

func lowestSequence(pending []models.ApproverSignature) int {
	low := 0
	for _, sig := range pending {
		if low == 0 || sig.Sequence < low {
			low = sig.Sequence
		}
	}
	return low
}
