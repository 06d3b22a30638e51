package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	"github.com/grantos/grantos-api/internal/repository"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
	"github.com/grantos/grantos-api/pkg/jobs"
)

type reportJobStoreStub struct {
	jobs   map[string]*models.ReportJob
	nextID int
}

func newReportJobStoreStub() *reportJobStoreStub {
	return &reportJobStoreStub{jobs: make(map[string]*models.ReportJob)}
}

func (s *reportJobStoreStub) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		s.nextID++
		job.ID = fmt.Sprintf("job-%d", s.nextID)
	}
	job.CreatedAt = time.Now().UTC()
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *reportJobStoreStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *job
	return &clone, nil
}

func (s *reportJobStoreStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *reportJobStoreStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var result []models.ReportJob
	for _, job := range s.jobs {
		if job.Status == models.ReportStatusQueued {
			result = append(result, *job)
		}
	}
	return result, nil
}

func (s *reportJobStoreStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type queueStub struct {
	enqueued []jobs.Job
	fail     bool
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.fail {
		return errors.New("queue full")
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

type generatorStub struct {
	result *ExportResult
	err    error
	calls  int
}

func (g *generatorStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func TestCreateJobEnqueuesQueuedJob(t *testing.T) {
	store := newReportJobStoreStub()
	queue := &queueStub{}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeContracts,
		Format: models.ReportFormatCSV,
	}, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	require.Equal(t, resp.ID, queue.enqueued[0].ID)
	require.Equal(t, "pm-1", store.jobs[resp.ID].CreatedBy)
}

func TestCreateJobValidation(t *testing.T) {
	svc := NewReportService(newReportJobStoreStub(), &queueStub{}, nil, nil, ReportServiceConfig{})
	actor := claimsFor("pm-1", models.RoleProjectManager)

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{Type: "payroll", Format: models.ReportFormatCSV}, actor)
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), dto.ReportRequest{Type: models.ReportTypeContracts, Format: "xlsx"}, actor)
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeContracts,
		Format: models.ReportFormatCSV,
		Status: []models.ContractStatus{"retired"},
	}, actor)
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestCreateJobMarksFailedWhenEnqueueFails(t *testing.T) {
	store := newReportJobStoreStub()
	queue := &queueStub{fail: true}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeContracts,
		Format: models.ReportFormatCSV,
	}, claimsFor("pm-1", models.RoleProjectManager))
	require.Error(t, err)

	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		require.Equal(t, models.ReportStatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
	}
}

func TestGetStatusEnforcesOwnership(t *testing.T) {
	store := newReportJobStoreStub()
	job := &models.ReportJob{Type: models.ReportTypeContracts, Status: models.ReportStatusQueued, CreatedBy: "pm-1"}
	require.NoError(t, store.Create(context.Background(), job))

	svc := NewReportService(store, &queueStub{}, nil, nil, ReportServiceConfig{})

	_, err := svc.GetStatus(context.Background(), job.ID, claimsFor("pm-2", models.RoleProjectManager))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	resp, err := svc.GetStatus(context.Background(), job.ID, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusQueued, resp.Status)

	_, err = svc.GetStatus(context.Background(), job.ID, claimsFor("root", models.RoleSuperAdmin))
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "missing", claimsFor("pm-1", models.RoleProjectManager))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRecoverPendingJobsRequeues(t *testing.T) {
	store := newReportJobStoreStub()
	require.NoError(t, store.Create(context.Background(), &models.ReportJob{Type: models.ReportTypeContracts, Status: models.ReportStatusQueued, CreatedBy: "pm-1"}))
	require.NoError(t, store.Create(context.Background(), &models.ReportJob{Type: models.ReportTypeArchive, Status: models.ReportStatusFinished, CreatedBy: "pm-1"}))

	queue := &queueStub{}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})
	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.enqueued, 1)
}

func TestReportWorkerFinishesJob(t *testing.T) {
	store := newReportJobStoreStub()
	job := &models.ReportJob{
		Type:      models.ReportTypeContracts,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		Status:    models.ReportStatusQueued,
		CreatedBy: "pm-1",
	}
	require.NoError(t, store.Create(context.Background(), job))

	gen := &generatorStub{result: &ExportResult{
		RelativePath: "contracts_20260314_093000.csv",
		URL:          "/api/v1/export/token-abc",
		Format:       models.ReportFormatCSV,
	}}
	worker := NewReportWorker(store, gen, 3, nil)
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID}))

	stored := store.jobs[job.ID]
	require.Equal(t, models.ReportStatusFinished, stored.Status)
	require.Equal(t, 100, stored.Progress)
	require.Equal(t, "/api/v1/export/token-abc", *stored.ResultURL)
	require.NotNil(t, stored.FinishedAt)

	// Finished jobs are not reprocessed.
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID}))
	require.Equal(t, 1, gen.calls)
}

func TestReportWorkerRecordsFailure(t *testing.T) {
	store := newReportJobStoreStub()
	job := &models.ReportJob{
		Type:      models.ReportTypeContracts,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		Status:    models.ReportStatusQueued,
		CreatedBy: "pm-1",
	}
	require.NoError(t, store.Create(context.Background(), job))

	gen := &generatorStub{err: errors.New("dataset unavailable")}
	worker := NewReportWorker(store, gen, 3, nil)
	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID}))

	stored := store.jobs[job.ID]
	require.Equal(t, models.ReportStatusFailed, stored.Status)
	require.Equal(t, "dataset unavailable", *stored.ErrorMessage)
}
