// Package researchsvc implements the research agent: it accepts jobs from
// the action router, runs them asynchronously through the LLM gateway, and
// reports results back.
package researchsvc

import (
	"context"
	stderrors "errors"

	"github.com/intexuraos/agents/internal/clients/llm"
	"github.com/intexuraos/agents/internal/domain"
	"github.com/intexuraos/agents/internal/domain/research"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/metrics"
	"github.com/intexuraos/agents/internal/storage"
)

const researchSystemPrompt = `You are a research assistant. Produce a thorough,
sourced report answering the user's question. Structure the report with a
summary first, then detail.`

// StatusReporter posts job outcomes back to the action router. Tests use a
// fake; production posts to the actions service.
type StatusReporter interface {
	ReportStatus(ctx context.Context, actionID string, status research.Status, detail string, errInfo *domain.ErrorInfo) error
}

// NopReporter drops reports. Used when the router callback is unconfigured.
type NopReporter struct{}

func (NopReporter) ReportStatus(context.Context, string, research.Status, string, *domain.ErrorInfo) error {
	return nil
}

// FakeReporter records reports for tests.
type FakeReporter struct {
	Reports []FakeReport
	Err     error
}

// FakeReport is one recorded report.
type FakeReport struct {
	ActionID string
	Status   research.Status
	Detail   string
	Error    *domain.ErrorInfo
}

// ReportStatus implements StatusReporter.
func (f *FakeReporter) ReportStatus(_ context.Context, actionID string, status research.Status, detail string, errInfo *domain.ErrorInfo) error {
	if f.Err != nil {
		return f.Err
	}
	f.Reports = append(f.Reports, FakeReport{ActionID: actionID, Status: status, Detail: detail, Error: errInfo})
	return nil
}

// Service owns the research agent rules.
type Service struct {
	store    storage.ResearchStore
	llm      llm.Client
	reporter StatusReporter
	model    string
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewService builds the research agent service. An empty model falls back to
// the deep-research default.
func NewService(store storage.ResearchStore, llmClient llm.Client, reporter StatusReporter, model string, logger *logging.Logger, m *metrics.Metrics) *Service {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if model == "" {
		model = llm.ModelO4MiniDeepResearch
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, llm: llmClient, reporter: reporter, model: model, logger: logger, metrics: m}
}

// CreateJobRequest is a job request from the action router.
type CreateJobRequest struct {
	ActionID string `json:"actionId"`
	UserID   string `json:"userId"`
	Query    string `json:"query"`
	Model    string `json:"model,omitempty"`
}

// CreateJob records a research job. Redelivery for an action that already
// has a job returns the existing job unchanged.
func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (research.Job, bool, error) {
	if existing, err := s.store.FindResearchJobByAction(ctx, req.UserID, req.ActionID); err == nil {
		s.recordDedup()
		return existing, true, nil
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return research.Job{}, false, errors.Downstream("look up research job", err)
	}

	model := req.Model
	if model == "" {
		model = s.model
	}
	job, err := s.store.CreateResearchJob(ctx, research.Job{
		UserID:   req.UserID,
		ActionID: req.ActionID,
		Query:    req.Query,
		Model:    model,
		Status:   research.StatusPending,
	})
	if err != nil {
		// A redelivery racing this create can land the job first; the loser
		// answers with the winner's job, same as the lookup above.
		if stderrors.Is(err, storage.ErrDuplicate) {
			if existing, findErr := s.store.FindResearchJobByAction(ctx, req.UserID, req.ActionID); findErr == nil {
				s.recordDedup()
				return existing, true, nil
			}
		}
		return research.Job{}, false, errors.Downstream("create research job", err)
	}
	s.recordTransition(string(job.Status))
	s.logger.WithContext(ctx).WithField("job_id", job.ID).Info("research job created")
	return job, false, nil
}

// Get returns a job owned by userID; another owner's job is not found.
func (s *Service) Get(ctx context.Context, userID, id string) (research.Job, error) {
	job, err := s.store.GetResearchJob(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return research.Job{}, errors.NotFound("research job")
		}
		return research.Job{}, errors.Downstream("get research job", err)
	}
	if job.UserID != userID {
		return research.Job{}, errors.NotFound("research job")
	}
	return job, nil
}

// List returns the caller's jobs, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]research.Job, error) {
	jobs, err := s.store.ListResearchJobs(ctx, userID)
	if err != nil {
		return nil, errors.Downstream("list research jobs", err)
	}
	return jobs, nil
}

// ProcessPending claims up to limit pending jobs and runs each to a
// terminal state. It returns the number of jobs processed. The claim is
// atomic: a job reaches at most one worker even with several pollers.
func (s *Service) ProcessPending(ctx context.Context, limit int) (int, error) {
	jobs, err := s.store.ClaimPendingResearchJobs(ctx, limit)
	if err != nil {
		return 0, errors.Downstream("claim pending research jobs", err)
	}

	for _, job := range jobs {
		s.recordTransition(string(research.StatusProcessing))
		s.runJob(ctx, job)
	}
	return len(jobs), nil
}

// runJob executes one claimed job to completion or failure.
func (s *Service) runJob(ctx context.Context, job research.Job) {
	log := s.logger.WithContext(ctx).WithField("job_id", job.ID)

	resp, err := s.llm.Generate(ctx, llm.Request{
		Model:        job.Model,
		SystemPrompt: researchSystemPrompt,
		Prompt:       job.Query,
		UserID:       job.UserID,
	})
	if err != nil {
		log.WithError(err).Warn("research generation failed")
		job.Status = research.StatusFailed
		job.Error = &domain.ErrorInfo{
			Code:        string(errors.CodeDownstream),
			Message:     "research generation failed",
			Remediation: "retry the action later",
		}
	} else {
		job.Status = research.StatusCompleted
		job.Report = resp.Text
		job.Error = nil
	}

	if _, err := s.store.UpdateResearchJob(ctx, job); err != nil {
		log.WithError(err).Error("persist research job result")
		return
	}
	s.recordTransition(string(job.Status))

	if err := s.reporter.ReportStatus(ctx, job.ActionID, job.Status, "research job "+string(job.Status), job.Error); err != nil {
		log.WithError(err).Warn("report research status to router")
	}
	log.WithField("status", job.Status).Info("research job finished")
}

func (s *Service) recordDedup() {
	if s.metrics != nil {
		s.metrics.RecordDedupHit("research_jobs", string(storage.DedupReturnExisting))
	}
}

func (s *Service) recordTransition(status string) {
	if s.metrics != nil {
		s.metrics.RecordStatusTransition("research_job", status)
	}
}
