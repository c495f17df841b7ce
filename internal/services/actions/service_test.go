package actions

import (
	"context"
	"testing"

	"github.com/intexuraos/agents/internal/clients/llm"
	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/storage/memory"
)

func newTestService(classifierText string, forwarders map[action.Type]Forwarder) (*Service, *memory.Store) {
	store := memory.New()
	classifier := NewClassifier(&llm.Fake{Text: classifierText}, "", logging.NewNop())
	return NewService(store, classifier, forwarders, logging.NewNop(), nil), store
}

func TestCreateClassifiesAndDispatches(t *testing.T) {
	forwarder := &FakeForwarder{}
	svc, _ := newTestService("research", map[action.Type]Forwarder{action.TypeResearch: forwarder})

	act, err := svc.Create(context.Background(), "user-1", "find out how QUIC handles loss")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if act.Type != action.TypeResearch {
		t.Fatalf("expected research, got %s", act.Type)
	}
	if act.Status != action.StatusCreated {
		t.Fatalf("expected created, got %s", act.Status)
	}
	if len(forwarder.Events) != 1 {
		t.Fatalf("expected one forwarded event, got %d", len(forwarder.Events))
	}
	event := forwarder.Events[0]
	if event.EventType != "action.created" || event.ActionID != act.ID || event.UserID != "user-1" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestCreateUnknownClassifierAnswerFallsBackToHeuristic(t *testing.T) {
	svc, _ := newTestService("banana", nil)

	act, err := svc.Create(context.Background(), "user-1", "schedule a meeting with the infra team")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if act.Type != action.TypeCalendar {
		t.Fatalf("expected heuristic calendar, got %s", act.Type)
	}
}

func TestCreateWithoutForwarderCompletesImmediately(t *testing.T) {
	svc, _ := newTestService("note", nil)

	act, err := svc.Create(context.Background(), "user-1", "remember that staging uses the blue database")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if act.Status != action.StatusCompleted {
		t.Fatalf("expected completed for unrouted type, got %s", act.Status)
	}
	if len(act.StatusUpdates) != 2 {
		t.Fatalf("expected created+completed updates, got %d", len(act.StatusUpdates))
	}
}

func TestCreateDispatchFailureMarksActionFailed(t *testing.T) {
	svc, _ := newTestService("research", map[action.Type]Forwarder{
		action.TypeResearch: &FakeForwarder{Err: context.DeadlineExceeded},
	})

	act, err := svc.Create(context.Background(), "user-1", "research something")
	if err != nil {
		t.Fatalf("Create should not fail the request on dispatch failure: %v", err)
	}
	if act.Status != action.StatusFailed {
		t.Fatalf("expected failed, got %s", act.Status)
	}
	if act.Error == nil || act.Error.Code != string(errors.CodeDownstream) {
		t.Fatalf("expected downstream error recorded, got %+v", act.Error)
	}
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	forwarder := &FakeForwarder{}
	svc, _ := newTestService("research", map[action.Type]Forwarder{action.TypeResearch: forwarder})

	act, err := svc.Create(context.Background(), "user-1", "research something")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), StatusUpdateRequest{
		ActionID: act.ID, Status: action.StatusProcessing, Detail: "picked up",
	})
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated.Status != action.StatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}

	// Same status again is a redelivery, not an error.
	again, err := svc.UpdateStatus(context.Background(), StatusUpdateRequest{
		ActionID: act.ID, Status: action.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("redelivered status should be accepted: %v", err)
	}
	if len(again.StatusUpdates) != len(updated.StatusUpdates) {
		t.Fatal("redelivery must not append another update")
	}

	if _, err := svc.UpdateStatus(context.Background(), StatusUpdateRequest{
		ActionID: act.ID, Status: action.StatusCompleted,
	}); err != nil {
		t.Fatalf("UpdateStatus to completed failed: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), StatusUpdateRequest{
		ActionID: act.ID, Status: action.StatusProcessing,
	})
	if !errors.IsCode(err, errors.CodeUnprocessable) {
		t.Fatalf("expected UNPROCESSABLE_ENTITY for backward transition, got %v", err)
	}
}

func TestUpdateStatusUnknownActionIsNotFound(t *testing.T) {
	svc, _ := newTestService("note", nil)
	_, err := svc.UpdateStatus(context.Background(), StatusUpdateRequest{
		ActionID: "missing", Status: action.StatusCompleted,
	})
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetOwnershipMismatchIsNotFound(t *testing.T) {
	svc, _ := newTestService("note", nil)
	act, err := svc.Create(context.Background(), "user-1", "a note")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), "user-2", act.ID); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for another user's action, got %v", err)
	}
}

func TestHandleResearchEventForwardsOnce(t *testing.T) {
	forwarder := &FakeForwarder{}
	svc, store := newTestService("research", map[action.Type]Forwarder{action.TypeResearch: forwarder})

	act, err := store.CreateAction(context.Background(), action.Action{
		UserID:    "user-1",
		Type:      action.TypeResearch,
		InputText: "research QUIC loss recovery",
		Status:    action.StatusCreated,
	})
	if err != nil {
		t.Fatalf("seed action failed: %v", err)
	}

	event := action.Event{
		EventType:  "action.created",
		ActionID:   act.ID,
		UserID:     "user-1",
		ActionType: action.TypeResearch,
		InputText:  act.InputText,
	}

	processed, err := svc.HandleResearchEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("HandleResearchEvent failed: %v", err)
	}
	if processed.Status != action.StatusProcessing {
		t.Fatalf("expected processing, got %s", processed.Status)
	}
	if len(forwarder.Events) != 1 {
		t.Fatalf("expected one forward, got %d", len(forwarder.Events))
	}

	// Redelivery returns the stored action without forwarding again.
	redelivered, err := svc.HandleResearchEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if redelivered.Status != action.StatusProcessing {
		t.Fatalf("expected processing on redelivery, got %s", redelivered.Status)
	}
	if len(forwarder.Events) != 1 {
		t.Fatalf("redelivery must not forward again, got %d forwards", len(forwarder.Events))
	}
}

func TestHandleResearchEventRejectsWrongType(t *testing.T) {
	svc, _ := newTestService("research", nil)
	_, err := svc.HandleResearchEvent(context.Background(), action.Event{
		ActionID: "a", UserID: "u", ActionType: action.TypeCode,
	})
	if !errors.IsCode(err, errors.CodeUnprocessable) {
		t.Fatalf("expected UNPROCESSABLE_ENTITY, got %v", err)
	}
}
