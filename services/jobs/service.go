package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"causelist-backend/lib/notify"
	"causelist-backend/lib/portal"
	"causelist-backend/services/jobs/db"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
	ErrClosed      = errors.New("job service is closed")

	errCancelRequested = errors.New("cancelled by request")
)

type Job struct {
	Id         string               `json:"id"`
	Status     Status               `json:"status"`
	Request    portal.LookupRequest `json:"request"`
	OutputFile string               `json:"output_file,omitempty"`
	Pdfs       []string             `json:"pdfs"`
	Error      string               `json:"error,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// Outcome is what a finished run produced. OutputFile and Pdfs are relative
// to the output directory.
type Outcome struct {
	OutputFile string
	Pdfs       []string
	Judges     int
}

type Runner interface {
	Run(ctx context.Context, jobId string, req portal.LookupRequest) (Outcome, error)
}

type Options struct {
	Runner Runner
	// MaxConcurrent caps running jobs, others stay pending. Defaults to 2.
	MaxConcurrent int
	// JobTimeout bounds a job from submission, including time spent pending.
	// Defaults to 10 minutes.
	JobTimeout time.Duration
	// Mailer may be nil.
	Mailer *notify.Mailer
	// OutputDir is where runners save records, finished job mails attach the
	// record from it when set.
	OutputDir string
}

type Service struct {
	db      *sql.DB
	qry     *db.Queries
	runner  Runner
	slots   *semaphore.Weighted
	timeout time.Duration
	mailer  *notify.Mailer
	outDir  string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running map[string]context.CancelCauseFunc
}

func NewService(ctx context.Context, database *sql.DB, opts Options) (*Service, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("a job runner was not specified")
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 10 * time.Minute
	}

	_, err := database.ExecContext(ctx, db.Schema)
	if err != nil {
		return nil, fmt.Errorf("create job schema: %w", err)
	}

	qry := db.New(database)
	interrupted, err := qry.FailUnfinishedJobs(ctx, db.FailUnfinishedJobsParams{
		Error:     "interrupted by a restart",
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}
	if interrupted > 0 {
		slog.WarnContext(ctx, "marked interrupted jobs as failed", "count", interrupted)
	}

	serviceCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Service{
		db:      database,
		qry:     qry,
		runner:  opts.Runner,
		slots:   semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		timeout: opts.JobTimeout,
		mailer:  opts.Mailer,
		outDir:  opts.OutputDir,
		ctx:     serviceCtx,
		cancel:  cancel,
		running: map[string]context.CancelCauseFunc{},
	}, nil
}

func toJob(row db.Job) (Job, error) {
	job := Job{
		Id:         row.ID,
		Status:     Status(row.Status),
		OutputFile: row.OutputFile,
		Error:      row.Error,
		CreatedAt:  time.Unix(row.CreatedAt, 0).UTC(),
		UpdatedAt:  time.Unix(row.UpdatedAt, 0).UTC(),
	}
	err := json.Unmarshal([]byte(row.Request), &job.Request)
	if err != nil {
		return Job{}, fmt.Errorf("decode request of job %s: %w", row.ID, err)
	}
	err = json.Unmarshal([]byte(row.Pdfs), &job.Pdfs)
	if err != nil {
		return Job{}, fmt.Errorf("decode pdfs of job %s: %w", row.ID, err)
	}
	if job.Pdfs == nil {
		job.Pdfs = []string{}
	}
	return job, nil
}

// Submit records a pending job and starts it in the background.
func (s *Service) Submit(ctx context.Context, req portal.LookupRequest) (Job, error) {
	ctx, span := tracer.Start(ctx, "jobs:Submit")
	defer span.End()

	err := req.Validate()
	if err != nil {
		return Job{}, err
	}

	id, err := random.String(10)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate job id")
		return Job{}, err
	}
	span.SetAttributes(attribute.String("job_id", id))

	encoded, err := json.Marshal(req)
	if err != nil {
		return Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Job{}, ErrClosed
	}

	now := time.Now().Unix()
	err = s.qry.CreateJob(ctx, db.CreateJobParams{
		ID:        id,
		Status:    string(StatusPending),
		Request:   string(encoded),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create job row")
		return Job{}, err
	}

	jobCtx, cancel := context.WithCancelCause(s.ctx)
	s.running[id] = cancel
	s.wg.Add(1)
	go s.run(jobCtx, id, req)

	return Job{
		Id:        id,
		Status:    StatusPending,
		Request:   req,
		Pdfs:      []string{},
		CreatedAt: time.Unix(now, 0).UTC(),
		UpdatedAt: time.Unix(now, 0).UTC(),
	}, nil
}

func (s *Service) run(ctx context.Context, id string, req portal.LookupRequest) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		cancel := s.running[id]
		delete(s.running, id)
		s.mu.Unlock()
		if cancel != nil {
			cancel(nil)
		}
	}()

	ctx, span := tracer.Start(ctx, "jobs:run")
	defer span.End()
	span.SetAttributes(attribute.String("job_id", id))

	ctx, cancelTimeout := context.WithTimeout(ctx, s.timeout)
	defer cancelTimeout()

	var outcome Outcome
	err := s.slots.Acquire(ctx, 1)
	if err == nil {
		outcome, err = s.execute(ctx, id, req)
		s.slots.Release(1)
	}

	status, message := s.classify(ctx, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job did not complete")
	}
	pdfs := outcome.Pdfs
	if pdfs == nil {
		pdfs = []string{}
	}
	encodedPdfs, _ := json.Marshal(pdfs)

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err = s.qry.FinishJob(finishCtx, db.FinishJobParams{
		ID:         id,
		Status:     string(status),
		OutputFile: outcome.OutputFile,
		Pdfs:       string(encodedPdfs),
		Error:      message,
		UpdatedAt:  time.Now().Unix(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record finished job", "job_id", id, "err", err)
	}
	finishedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
	slog.InfoContext(ctx, "job finished", "job_id", id, "status", status, "judges", outcome.Judges, "pdfs", len(pdfs))

	summary := notify.Summary{
		JobId:      id,
		Status:     string(status),
		Request:    req,
		Judges:     outcome.Judges,
		Pdfs:       len(pdfs),
		OutputFile: outcome.OutputFile,
		Error:      message,
	}
	var attachments []string
	if s.outDir != "" && outcome.OutputFile != "" {
		attachments = append(attachments, filepath.Join(s.outDir, outcome.OutputFile))
	}
	err = s.mailer.Send(finishCtx, summary, attachments...)
	if err != nil {
		slog.WarnContext(ctx, "failed to send job notification", "job_id", id, "err", err)
	}
}

func (s *Service) execute(ctx context.Context, id string, req portal.LookupRequest) (Outcome, error) {
	updated, err := s.qry.SetJobStatus(ctx, db.SetJobStatusParams{
		ID:        id,
		Status:    string(StatusRunning),
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return Outcome{}, err
	}
	if updated == 0 {
		return Outcome{}, ErrJobFinished
	}
	return s.runner.Run(ctx, id, req)
}

func (s *Service) classify(ctx context.Context, err error) (Status, string) {
	if err == nil {
		return StatusCompleted, ""
	}
	if errors.Is(context.Cause(ctx), errCancelRequested) {
		return StatusCancelled, "cancelled by request"
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StatusFailed, fmt.Sprintf("job timed out after %s", s.timeout)
	}
	if ctx.Err() != nil {
		return StatusCancelled, "cancelled by shutdown"
	}
	if errors.Is(err, portal.ErrCancelled) {
		return StatusCancelled, portal.UserMessage(err)
	}
	var navErr *portal.NavigationError
	if errors.As(err, &navErr) {
		return StatusFailed, fmt.Sprintf("%s (%v)", portal.UserMessage(err), err)
	}
	return StatusFailed, err.Error()
}

func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	ctx, span := tracer.Start(ctx, "jobs:Get")
	defer span.End()

	row, err := s.qry.GetJob(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get job")
		return Job{}, err
	}
	return toJob(row)
}

// List returns the most recent jobs first.
func (s *Service) List(ctx context.Context, limit int) ([]Job, error) {
	ctx, span := tracer.Start(ctx, "jobs:List")
	defer span.End()

	jobs, err := listJobs(ctx, s.qry, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list jobs")
	}
	return jobs, err
}

// ReadJobs lists jobs straight from a job database, without owning it like a
// Service does. It is safe to use while a server is running on the database.
func ReadJobs(ctx context.Context, database *sql.DB, limit int) ([]Job, error) {
	_, err := database.ExecContext(ctx, db.Schema)
	if err != nil {
		return nil, fmt.Errorf("create job schema: %w", err)
	}
	return listJobs(ctx, db.New(database), limit)
}

func listJobs(ctx context.Context, qry *db.Queries, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := qry.ListJobs(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(rows))
	for _, row := range rows {
		job, err := toJob(row)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Cancel stops a pending or running job. The job records its cancelled
// status once it has released its browser session.
func (s *Service) Cancel(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "jobs:Cancel")
	defer span.End()

	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel(errCancelRequested)
		return nil
	}

	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Finished() {
		return ErrJobFinished
	}
	// unfinished but not owned by this process
	return s.qry.FinishJob(ctx, db.FinishJobParams{
		ID:        id,
		Status:    string(StatusCancelled),
		Pdfs:      "[]",
		Error:     "cancelled by request",
		UpdatedAt: time.Now().Unix(),
	})
}

// Close cancels every job that is still running and waits for them to finish.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
