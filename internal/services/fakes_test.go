package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taxtrack/internal/models"
	"taxtrack/internal/notify"
	"taxtrack/internal/repositories"
)

// In-memory fakes standing in for the pq repositories. They enforce the same
// contracts the SQL layer does, notably the materialization uniqueness key.

type fakeObligationRepo struct {
	mu          sync.Mutex
	obligations map[int64]*models.Obligation
	links       map[int64][]models.ObligationCompany
	nextID      int64
}

func newFakeObligationRepo() *fakeObligationRepo {
	return &fakeObligationRepo{
		obligations: map[int64]*models.Obligation{},
		links:       map[int64][]models.ObligationCompany{},
		nextID:      1,
	}
}

func (r *fakeObligationRepo) Store(_ context.Context, o *models.Obligation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = r.nextID
	r.nextID++
	cp := *o
	r.obligations[o.ID] = &cp
	return nil
}

func (r *fakeObligationRepo) FindByID(_ context.Context, id int64) (*models.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.obligations[id]
	if !ok || o.Deleted {
		return nil, fmt.Errorf("obligation not found")
	}
	cp := *o
	return &cp, nil
}

func (r *fakeObligationRepo) FindAll(_ context.Context, groupID int64) ([]models.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Obligation
	for _, o := range r.obligations {
		if o.GroupID == groupID && !o.Deleted {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeObligationRepo) Update(_ context.Context, o *models.Obligation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.obligations[o.ID] = &cp
	return nil
}

func (r *fakeObligationRepo) SoftDelete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.obligations[id]; ok {
		o.Deleted = true
	}
	return nil
}

func (r *fakeObligationRepo) ListAutoGeneratable(_ context.Context) ([]models.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Obligation
	for _, o := range r.obligations {
		if o.AutoGenerate && !o.Deleted {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeObligationRepo) AdvanceWatermark(_ context.Context, id int64, competence time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.obligations[id]
	if !ok {
		return fmt.Errorf("obligation not found")
	}
	if o.LastCompetence == nil || o.LastCompetence.Before(competence) {
		c := competence
		o.LastCompetence = &c
	}
	return nil
}

func (r *fakeObligationRepo) Companies(_ context.Context, obligationID int64) ([]models.ObligationCompany, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ObligationCompany(nil), r.links[obligationID]...), nil
}

func (r *fakeObligationRepo) SetCompanies(_ context.Context, obligationID int64, links []models.ObligationCompany) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[obligationID] = append([]models.ObligationCompany(nil), links...)
	return nil
}

func (r *fakeObligationRepo) ResponsibleFor(_ context.Context, obligationID, companyID int64) (*int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links[obligationID] {
		if l.CompanyID == companyID {
			return l.ResponsibleUserID, nil
		}
	}
	return nil, nil
}

type fakeCompanyRepo struct {
	companies map[int64]*models.Company
}

func newFakeCompanyRepo(companies ...*models.Company) *fakeCompanyRepo {
	r := &fakeCompanyRepo{companies: map[int64]*models.Company{}}
	for _, c := range companies {
		r.companies[c.ID] = c
	}
	return r
}

func (r *fakeCompanyRepo) Store(_ context.Context, c *models.Company) error {
	r.companies[c.ID] = c
	return nil
}

func (r *fakeCompanyRepo) FindByID(_ context.Context, id int64) (*models.Company, error) {
	c, ok := r.companies[id]
	if !ok {
		return nil, fmt.Errorf("company not found")
	}
	return c, nil
}

func (r *fakeCompanyRepo) FindAll(_ context.Context, groupID int64) ([]models.Company, error) {
	var out []models.Company
	for _, c := range r.companies {
		if c.GroupID == groupID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCompanyRepo) Update(_ context.Context, c *models.Company) error {
	r.companies[c.ID] = c
	return nil
}

func (r *fakeCompanyRepo) Delete(_ context.Context, id int64) error {
	delete(r.companies, id)
	return nil
}

type taskKey struct {
	obligationID int64
	companyID    int64
	competence   string
}

type fakeTaskRepo struct {
	mu     sync.Mutex
	tasks  map[int64]*models.Task
	byKey  map[taskKey]int64
	docs   *fakeDocumentRepo
	nextID int64

	// storeErr fails the next Store call once, then clears.
	storeErr error
}

func newFakeTaskRepo(docs *fakeDocumentRepo) *fakeTaskRepo {
	return &fakeTaskRepo{
		tasks:  map[int64]*models.Task{},
		byKey:  map[taskKey]int64{},
		docs:   docs,
		nextID: 1,
	}
}

func keyOf(t *models.Task) taskKey {
	var obligationID int64
	if t.ObligationID != nil {
		obligationID = *t.ObligationID
	}
	return taskKey{obligationID, t.CompanyID, t.Competence.Format("2006-01-02")}
}

func (r *fakeTaskRepo) insert(t *models.Task) error {
	// Mirrors the partial unique index: only non-corrected, non-deleted
	// tasks occupy the key.
	if t.CorrectedFromID == nil {
		k := keyOf(t)
		if _, exists := r.byKey[k]; exists {
			return repositories.ErrTaskExists
		}
		t.ID = r.nextID
		r.nextID++
		r.byKey[k] = t.ID
	} else {
		t.ID = r.nextID
		r.nextID++
	}
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) Store(_ context.Context, t *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.storeErr != nil {
		err := r.storeErr
		r.storeErr = nil
		return err
	}
	return r.insert(t)
}

func (r *fakeTaskRepo) CreateWithDocuments(_ context.Context, t *models.Task, docs []models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.insert(t); err != nil {
		return err
	}
	for i := range docs {
		docs[i].TaskID = t.ID
		r.docs.add(&docs[i])
	}
	return nil
}

func (r *fakeTaskRepo) FindByID(_ context.Context, id int64) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Deleted {
		return nil, repositories.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) FindByKey(_ context.Context, obligationID, companyID int64, competence time.Time) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[taskKey{obligationID, companyID, competence.Format("2006-01-02")}]
	if !ok {
		return nil, nil
	}
	cp := *r.tasks[id]
	return &cp, nil
}

func (r *fakeTaskRepo) FindAll(_ context.Context, groupID int64, filter models.TaskFilter) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks {
		if t.GroupID != groupID || t.Deleted {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTaskRepo) CorrectionChain(_ context.Context, id int64) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	seen := map[int64]bool{}
	for cur, ok := r.tasks[id]; ok && !seen[cur.ID]; {
		seen[cur.ID] = true
		out = append(out, *cur)
		if cur.CorrectedFromID == nil {
			break
		}
		cur, ok = r.tasks[*cur.CorrectedFromID]
	}
	return out, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, t *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) UpdateStatus(_ context.Context, id int64, to models.TaskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return repositories.ErrTaskNotFound
	}
	t.Status = to
	return nil
}

func (r *fakeTaskRepo) Finish(_ context.Context, id int64, conclusion time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return repositories.ErrTaskNotFound
	}
	t.Status = models.StatusFinished
	t.CompletionPct = 100
	c := conclusion
	t.ConclusionDate = &c
	return nil
}

func (r *fakeTaskRepo) MarkLate(_ context.Context, id int64, daysDelayed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return repositories.ErrTaskNotFound
	}
	t.Status = models.StatusLate
	t.DaysDelayed = daysDelayed
	return nil
}

func (r *fakeTaskRepo) SetCompletion(_ context.Context, id int64, pct int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.CompletionPct = pct
	}
	return nil
}

func (r *fakeTaskRepo) SetArchived(_ context.Context, id int64, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.Archived = archived
	}
	return nil
}

func (r *fakeTaskRepo) SoftDelete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.Deleted = true
		if t.CorrectedFromID == nil {
			delete(r.byKey, keyOf(t))
		}
	}
	return nil
}

func (r *fakeTaskRepo) ListActive(_ context.Context) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks {
		if t.Deleted || t.Archived {
			continue
		}
		switch t.Status {
		case models.StatusNew, models.StatusPending, models.StatusLate:
			out = append(out, *t)
		}
	}
	return out, nil
}

type fakeDocumentRepo struct {
	mu     sync.Mutex
	docs   map[int64]*models.Document
	nextID int64
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: map[int64]*models.Document{}, nextID: 1}
}

func (r *fakeDocumentRepo) add(d *models.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = r.nextID
	r.nextID++
	cp := *d
	r.docs[d.ID] = &cp
}

func (r *fakeDocumentRepo) FindByID(_ context.Context, id int64) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, repositories.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDocumentRepo) FindByTask(_ context.Context, taskID int64) ([]models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Document
	for _, d := range r.docs {
		if d.TaskID == taskID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) UpdateStatus(_ context.Context, id int64, to models.DocumentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; ok {
		d.Status = to
	}
	return nil
}

func (r *fakeDocumentRepo) SetFile(_ context.Context, id int64, path string, size int64, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return repositories.ErrDocumentNotFound
	}
	d.FilePath = path
	d.FileSize = size
	d.Status = models.DocStarted
	if d.StartedAt == nil {
		t := startedAt
		d.StartedAt = &t
	}
	return nil
}

func (r *fakeDocumentRepo) SetFinished(_ context.Context, id int64, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return repositories.ErrDocumentNotFound
	}
	d.Status = models.DocFinished
	t := finishedAt
	d.FinishedAt = &t
	return nil
}

func (r *fakeDocumentRepo) ClearFile(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return repositories.ErrDocumentNotFound
	}
	d.FilePath = ""
	d.FileSize = 0
	d.StartedAt = nil
	d.FinishedAt = nil
	d.Status = models.DocUnstarted
	return nil
}

type fakeDocTypeRepo struct {
	types map[int64][]models.DocumentType
}

func newFakeDocTypeRepo() *fakeDocTypeRepo {
	return &fakeDocTypeRepo{types: map[int64][]models.DocumentType{}}
}

func (r *fakeDocTypeRepo) Store(_ context.Context, dt *models.DocumentType) error {
	dt.ID = int64(len(r.types[dt.ObligationID]) + 1)
	r.types[dt.ObligationID] = append(r.types[dt.ObligationID], *dt)
	return nil
}

func (r *fakeDocTypeRepo) FindByID(_ context.Context, id int64) (*models.DocumentType, error) {
	for _, list := range r.types {
		for _, dt := range list {
			if dt.ID == id {
				return &dt, nil
			}
		}
	}
	return nil, fmt.Errorf("document type not found")
}

func (r *fakeDocTypeRepo) ListActive(_ context.Context, obligationID int64) ([]models.DocumentType, error) {
	var out []models.DocumentType
	for _, dt := range r.types[obligationID] {
		if dt.Active {
			out = append(out, dt)
		}
	}
	return out, nil
}

func (r *fakeDocTypeRepo) Update(_ context.Context, dt *models.DocumentType) error {
	list := r.types[dt.ObligationID]
	for i := range list {
		if list[i].ID == dt.ID {
			list[i] = *dt
		}
	}
	return nil
}

func (r *fakeDocTypeRepo) Deactivate(_ context.Context, id int64) error {
	for _, list := range r.types {
		for i := range list {
			if list[i].ID == id {
				list[i].Active = false
			}
		}
	}
	return nil
}

type fakeSignatureRepo struct {
	mu        sync.Mutex
	approvers map[int64][]models.Approver
	sigs      map[int64]*models.ApproverSignature
	nextID    int64

	// approversErr fails the next ApproversForType call once, then clears.
	approversErr error
}

func newFakeSignatureRepo() *fakeSignatureRepo {
	return &fakeSignatureRepo{
		approvers: map[int64][]models.Approver{},
		sigs:      map[int64]*models.ApproverSignature{},
		nextID:    1,
	}
}

func (r *fakeSignatureRepo) ApproversForType(_ context.Context, documentTypeID int64) ([]models.Approver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.approversErr != nil {
		err := r.approversErr
		r.approversErr = nil
		return nil, err
	}
	return append([]models.Approver(nil), r.approvers[documentTypeID]...), nil
}

func (r *fakeSignatureRepo) AddApprover(_ context.Context, a *models.Approver) error {
	a.ID = int64(len(r.approvers[a.DocumentTypeID]) + 1)
	r.approvers[a.DocumentTypeID] = append(r.approvers[a.DocumentTypeID], *a)
	return nil
}

func (r *fakeSignatureRepo) RemoveApprover(_ context.Context, id int64) error {
	return nil
}

func (r *fakeSignatureRepo) CreateForDocument(_ context.Context, documentID int64, approvers []models.Approver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range approvers {
		s := &models.ApproverSignature{
			ID:         r.nextID,
			DocumentID: documentID,
			UserID:     a.UserID,
			Sequence:   a.Sequence,
			Status:     models.SignaturePending,
		}
		r.nextID++
		r.sigs[s.ID] = s
	}
	return nil
}

func (r *fakeSignatureRepo) FindByDocument(_ context.Context, documentID int64) ([]models.ApproverSignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ApproverSignature
	for _, s := range r.sigs {
		if s.DocumentID == documentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSignatureRepo) PendingForUser(_ context.Context, userID int64) ([]models.ApproverSignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ApproverSignature
	for _, s := range r.sigs {
		if s.UserID == userID && s.Status == models.SignaturePending {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSignatureRepo) MarkSigned(_ context.Context, id int64, signedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sigs[id]
	if !ok || s.Status != models.SignaturePending {
		return fmt.Errorf("signature not pending")
	}
	s.Status = models.SignatureSigned
	t := signedAt
	s.SignedAt = &t
	return nil
}

func (r *fakeSignatureRepo) MarkRejected(_ context.Context, id int64, comment string, decidedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sigs[id]
	if !ok || s.Status != models.SignaturePending {
		return fmt.Errorf("signature not pending")
	}
	s.Status = models.SignatureRejected
	s.Comment = comment
	t := decidedAt
	s.SignedAt = &t
	return nil
}

func (r *fakeSignatureRepo) DeletePending(_ context.Context, documentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sigs {
		if s.DocumentID == documentID && s.Status == models.SignaturePending {
			delete(r.sigs, id)
		}
	}
	return nil
}

func (r *fakeSignatureRepo) DeleteForDocument(_ context.Context, documentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sigs {
		if s.DocumentID == documentID {
			delete(r.sigs, id)
		}
	}
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) byType(t notify.EventType) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
