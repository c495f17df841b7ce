package researchsvc

import (
	"context"
	"testing"

	"github.com/intexuraos/agents/internal/clients/llm"
	"github.com/intexuraos/agents/internal/domain/research"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/storage"
	"github.com/intexuraos/agents/internal/storage/memory"
)

func newTestService(llmClient llm.Client, reporter StatusReporter) (*Service, *memory.Store) {
	store := memory.New()
	return NewService(store, llmClient, reporter, "", logging.NewNop(), nil), store
}

func TestCreateJobReturnsExistingOnRedelivery(t *testing.T) {
	svc, _ := newTestService(&llm.Fake{Text: "report"}, nil)
	req := CreateJobRequest{ActionID: "action-1", UserID: "user-1", Query: "how does QUIC recover losses"}

	first, existed, err := svc.CreateJob(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if existed {
		t.Fatal("first delivery should not report existing")
	}
	if first.Status != research.StatusPending {
		t.Fatalf("expected pending, got %s", first.Status)
	}
	if first.Model != llm.ModelO4MiniDeepResearch {
		t.Fatalf("expected default model, got %s", first.Model)
	}

	second, existed, err := svc.CreateJob(context.Background(), req)
	if err != nil {
		t.Fatalf("redelivered CreateJob failed: %v", err)
	}
	if !existed {
		t.Fatal("redelivery should report the existing job")
	}
	if second.ID != first.ID {
		t.Fatal("redelivery returned a different job")
	}
}

func TestProcessPendingCompletesJob(t *testing.T) {
	reporter := &FakeReporter{}
	fake := &llm.Fake{Text: "QUIC uses packet numbers and ACK ranges."}
	svc, _ := newTestService(fake, reporter)

	job, _, err := svc.CreateJob(context.Background(), CreateJobRequest{
		ActionID: "action-1", UserID: "user-1", Query: "how does QUIC recover losses",
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	processed, err := svc.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessPending failed: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected one processed job, got %d", processed)
	}

	done, err := svc.Get(context.Background(), "user-1", job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if done.Status != research.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.Report == "" {
		t.Fatal("expected a report on the completed job")
	}

	if len(reporter.Reports) != 1 {
		t.Fatalf("expected one status report, got %d", len(reporter.Reports))
	}
	if reporter.Reports[0].ActionID != "action-1" || reporter.Reports[0].Status != research.StatusCompleted {
		t.Fatalf("unexpected report %+v", reporter.Reports[0])
	}

	if len(fake.Requests) != 1 || fake.Requests[0].Prompt != job.Query {
		t.Fatalf("unexpected generation requests %+v", fake.Requests)
	}

	// Nothing left to claim.
	processed, err = svc.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("second ProcessPending failed: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected no jobs on second pass, got %d", processed)
	}
}

func TestProcessPendingMarksFailureAndReports(t *testing.T) {
	reporter := &FakeReporter{}
	svc, _ := newTestService(&llm.Fake{Err: context.DeadlineExceeded}, reporter)

	job, _, err := svc.CreateJob(context.Background(), CreateJobRequest{
		ActionID: "action-1", UserID: "user-1", Query: "q",
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	if _, err := svc.ProcessPending(context.Background(), 10); err != nil {
		t.Fatalf("ProcessPending failed: %v", err)
	}

	failed, err := svc.Get(context.Background(), "user-1", job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if failed.Status != research.StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.Error == nil || failed.Error.Code != string(errors.CodeDownstream) {
		t.Fatalf("expected downstream error recorded, got %+v", failed.Error)
	}

	if len(reporter.Reports) != 1 || reporter.Reports[0].Status != research.StatusFailed {
		t.Fatalf("expected a failed report, got %+v", reporter.Reports)
	}
}

func TestProcessPendingRespectsLimit(t *testing.T) {
	svc, _ := newTestService(&llm.Fake{Text: "r"}, nil)
	for i := 0; i < 3; i++ {
		if _, _, err := svc.CreateJob(context.Background(), CreateJobRequest{
			ActionID: "action-" + string(rune('a'+i)), UserID: "user-1", Query: "q",
		}); err != nil {
			t.Fatalf("CreateJob failed: %v", err)
		}
	}

	processed, err := svc.ProcessPending(context.Background(), 2)
	if err != nil {
		t.Fatalf("ProcessPending failed: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected limit of 2, got %d", processed)
	}
}

func TestGetOwnershipMismatchIsNotFound(t *testing.T) {
	svc, _ := newTestService(&llm.Fake{Text: "r"}, nil)
	job, _, err := svc.CreateJob(context.Background(), CreateJobRequest{
		ActionID: "action-1", UserID: "user-1", Query: "q",
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), "user-2", job.ID); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

// racingResearchStore simulates a redelivery racing the first delivery: the
// lookup misses, the insert collides, and the second lookup sees the job the
// other delivery created.
type racingResearchStore struct {
	storage.ResearchStore
	winner  research.Job
	lookups int
}

func (s *racingResearchStore) FindResearchJobByAction(_ context.Context, _, _ string) (research.Job, error) {
	s.lookups++
	if s.lookups == 1 {
		return research.Job{}, storage.ErrNotFound
	}
	return s.winner, nil
}

func (s *racingResearchStore) CreateResearchJob(_ context.Context, _ research.Job) (research.Job, error) {
	return research.Job{}, storage.ErrDuplicate
}

func TestCreateJobRaceRedeliveryAnswersExisting(t *testing.T) {
	store := &racingResearchStore{winner: research.Job{ID: "job-1", UserID: "user-1", ActionID: "action-1"}}
	svc := NewService(store, &llm.Fake{}, nil, "", logging.NewNop(), nil)

	job, existed, err := svc.CreateJob(context.Background(), CreateJobRequest{
		ActionID: "action-1", UserID: "user-1", Query: "q",
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if !existed {
		t.Fatal("race loser must report the job as existing")
	}
	if job.ID != "job-1" {
		t.Fatalf("expected the winner's job, got %q", job.ID)
	}
}
