package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxtrack/internal/models"
	"taxtrack/internal/notify"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type generationFixture struct {
	obligations *fakeObligationRepo
	companies   *fakeCompanyRepo
	docs        *fakeDocumentRepo
	tasks       *fakeTaskRepo
	docTypes    *fakeDocTypeRepo
	notifier    *recordingNotifier
	svc         *GenerationService
}

func newGenerationFixture(t *testing.T) *generationFixture {
	t.Helper()
	f := &generationFixture{
		obligations: newFakeObligationRepo(),
		companies: newFakeCompanyRepo(
			&models.Company{ID: 1, GroupID: 10, Name: "Acme Ltda"},
			&models.Company{ID: 2, GroupID: 10, Name: "Beta SA"},
			&models.Company{ID: 3, GroupID: 99, Name: "Other Group Corp"},
		),
		docs:     newFakeDocumentRepo(),
		docTypes: newFakeDocTypeRepo(),
		notifier: &recordingNotifier{},
	}
	f.tasks = newFakeTaskRepo(f.docs)
	f.svc = NewGenerationService(f.obligations, f.companies, f.tasks, f.docTypes, f.notifier, 7, 1)
	return f
}

func (f *generationFixture) addObligation(t *testing.T, o *models.Obligation) *models.Obligation {
	t.Helper()
	require.NoError(t, f.obligations.Store(context.Background(), o))
	return o
}

func monthlyObligation() *models.Obligation {
	return &models.Obligation{
		GroupID:     10,
		Title:       "ICMS Declaration",
		Frequency:   models.FrequencyMonthly,
		DayDeadline: 15,
		InitialDate: date(2024, 1, 1),
		Version:     3,
		ExtraFields: models.JSONMap{"regime": "simples"},
	}
}

func TestGenerateCreatesTasksWithDocuments(t *testing.T) {
	f := newGenerationFixture(t)
	o := f.addObligation(t, monthlyObligation())
	ctx := context.Background()

	require.NoError(t, f.docTypes.Store(ctx, &models.DocumentType{
		ObligationID: o.ID, Name: "Payment receipt", Obligatory: true,
		RequiresFile: true, ApprovalMode: models.ApprovalSequential, Active: true,
	}))
	require.NoError(t, f.docTypes.Store(ctx, &models.DocumentType{
		ObligationID: o.ID, Name: "Inactive extra", Active: false,
	}))

	now := date(2024, 11, 1)
	res, err := f.svc.Generate(ctx, o.ID, []int64{1, 2}, []time.Time{date(2024, 12, 1)}, nil, now)
	require.NoError(t, err)

	require.Len(t, res.Created, 2)
	assert.Zero(t, res.Skipped)

	task := res.Created[0]
	assert.Equal(t, "ICMS Declaration 12/2024", task.Title)
	assert.Equal(t, date(2025, 1, 15), task.Deadline)
	assert.Equal(t, models.StatusNew, task.Status)
	assert.Equal(t, 3, task.ObligationVersion)
	assert.Equal(t, "simples", task.ExtraFields["regime"])

	docs, err := f.docs.FindByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1, "inactive types must not spawn documents")
	assert.Equal(t, models.DocUnstarted, docs[0].Status)
	assert.Equal(t, models.ApprovalSequential, docs[0].ApprovalMode)

	assert.Len(t, f.notifier.byType(notify.EventTaskCreated), 2)
}

func TestGenerateIsIdempotent(t *testing.T) {
	f := newGenerationFixture(t)
	o := f.addObligation(t, monthlyObligation())
	ctx := context.Background()
	now := date(2024, 11, 1)
	competencies := []time.Time{date(2024, 10, 1), date(2024, 11, 1)}

	first, err := f.svc.Generate(ctx, o.ID, []int64{1}, competencies, nil, now)
	require.NoError(t, err)
	require.Len(t, first.Created, 2)

	second, err := f.svc.Generate(ctx, o.ID, []int64{1}, competencies, nil, now)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 2, second.Skipped)
}

func TestGenerateSkipsForeignAndUnknownCompanies(t *testing.T) {
	f := newGenerationFixture(t)
	o := f.addObligation(t, monthlyObligation())
	ctx := context.Background()

	res, err := f.svc.Generate(ctx, o.ID, []int64{3, 42, 1}, []time.Time{date(2024, 12, 1)}, nil, date(2024, 11, 1))
	require.NoError(t, err)

	require.Len(t, res.Created, 1)
	assert.Equal(t, int64(1), res.Created[0].CompanyID)
}

func TestGenerateResolvesResponsible(t *testing.T) {
	f := newGenerationFixture(t)
	o := f.addObligation(t, monthlyObligation())
	ctx := context.Background()

	configured := int64(55)
	require.NoError(t, f.obligations.SetCompanies(ctx, o.ID, []models.ObligationCompany{
		{ObligationID: o.ID, CompanyID: 1, ResponsibleUserID: &configured},
	}))

	res, err := f.svc.Generate(ctx, o.ID, []int64{1}, []time.Time{date(2024, 12, 1)}, nil, date(2024, 11, 1))
	require.NoError(t, err)
	require.NotNil(t, res.Created[0].ResponsibleID)
	assert.Equal(t, configured, *res.Created[0].ResponsibleID)

	override := int64(77)
	res, err = f.svc.Generate(ctx, o.ID, []int64{1}, []time.Time{date(2025, 1, 1)}, &override, date(2024, 11, 1))
	require.NoError(t, err)
	require.NotNil(t, res.Created[0].ResponsibleID)
	assert.Equal(t, override, *res.Created[0].ResponsibleID)
}

func TestGenerateAdvancesWatermarkToCoveredMax(t *testing.T) {
	f := newGenerationFixture(t)
	o := f.addObligation(t, monthlyObligation())
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, o.ID, []int64{1},
		[]time.Time{date(2024, 11, 1), date(2024, 10, 1)}, nil, date(2024, 11, 1))
	require.NoError(t, err)

	stored, err := f.obligations.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastCompetence)
	assert.Equal(t, date(2024, 11, 1), *stored.LastCompetence)

	// A fully skipped run must not move the watermark back or forward.
	_, err = f.svc.Generate(ctx, o.ID, []int64{1}, []time.Time{date(2024, 10, 1)}, nil, date(2024, 11, 1))
	require.NoError(t, err)
	stored, _ = f.obligations.FindByID(ctx, o.ID)
	assert.Equal(t, date(2024, 11, 1), *stored.LastCompetence)
}

func TestPreviewReportsExistingWithoutWriting(t *testing.T) {
	f := newGenerationFixture(t)
	o := f.addObligation(t, monthlyObligation())
	ctx := context.Background()
	now := date(2024, 11, 1)

	_, err := f.svc.Generate(ctx, o.ID, []int64{1}, []time.Time{date(2024, 10, 1)}, nil, now)
	require.NoError(t, err)

	rows, err := f.svc.Preview(ctx, o.ID, []int64{1},
		[]time.Time{date(2024, 10, 1), date(2024, 11, 1)}, nil, now)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.True(t, rows[0].Exists)
	assert.False(t, rows[1].Exists)
	assert.Equal(t, date(2024, 12, 15), rows[1].Deadline)

	// Preview must not have materialized the second competence.
	existing, err := f.tasks.FindByKey(ctx, o.ID, 1, date(2024, 11, 1))
	require.NoError(t, err)
	assert.Nil(t, existing)
}

func TestRunAutomaticUsesWatermarkAndHorizon(t *testing.T) {
	f := newGenerationFixture(t)
	o := monthlyObligation()
	o.AutoGenerate = true
	last := date(2024, 9, 1)
	o.LastCompetence = &last
	f.addObligation(t, o)
	ctx := context.Background()

	require.NoError(t, f.obligations.SetCompanies(ctx, o.ID, []models.ObligationCompany{
		{ObligationID: o.ID, CompanyID: 1},
	}))

	sum, err := f.svc.RunAutomatic(ctx, date(2024, 11, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Empty(t, sum.Errors)
	// watermark+1 through now+1 month: Oct, Nov, Dec.
	assert.Equal(t, 3, sum.Created)

	stored, _ := f.obligations.FindByID(ctx, o.ID)
	assert.Equal(t, date(2024, 12, 1), *stored.LastCompetence)
}

func TestRunAutomaticIsolatesFailures(t *testing.T) {
	f := newGenerationFixture(t)

	bad := monthlyObligation()
	bad.AutoGenerate = true
	bad.Frequency = "weekly"
	f.addObligation(t, bad)

	good := monthlyObligation()
	good.AutoGenerate = true
	f.addObligation(t, good)
	ctx := context.Background()
	require.NoError(t, f.obligations.SetCompanies(ctx, good.ID, []models.ObligationCompany{
		{ObligationID: good.ID, CompanyID: 1},
	}))

	sum, err := f.svc.RunAutomatic(ctx, date(2024, 2, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, bad.ID, sum.Errors[0].ObligationID)
	assert.Greater(t, sum.Created, 0)
}

func TestRunAutomaticRespectsFinalDate(t *testing.T) {
	f := newGenerationFixture(t)
	o := monthlyObligation()
	o.AutoGenerate = true
	final := date(2024, 2, 29)
	o.FinalDate = &final
	f.addObligation(t, o)
	ctx := context.Background()
	require.NoError(t, f.obligations.SetCompanies(ctx, o.ID, []models.ObligationCompany{
		{ObligationID: o.ID, CompanyID: 1},
	}))

	sum, err := f.svc.RunAutomatic(ctx, date(2024, 6, 1))
	require.NoError(t, err)
	// initial_date Jan through final_date Feb only.
	assert.Equal(t, 2, sum.Created)
}
