package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
	"tally/internal/store/memory"
)

type fakeQueue struct {
	published []uuid.UUID
}

func (q *fakeQueue) PublishImportJob(_ context.Context, runID uuid.UUID) error {
	q.published = append(q.published, runID)
	return nil
}

func seedUser(t *testing.T, st store.Store) core.User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), core.User{
		Username: "martina",
		Email:    "m@example.com",
		Role:     "regular",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestImportService_SubmitSync(t *testing.T) {
	st := memory.New()
	u := seedUser(t, st)
	svc := NewImportService(st, nil, nil, 0)

	payload := "item\tvendor\tprice\tday\n" +
		"Coffee\tBar\t1.20\t3\n" +
		"Book\tShop\t15\t20"

	run, deferred, err := svc.Submit(context.Background(), u.ID, time.March, 2024, payload)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if deferred {
		t.Error("without a queue the run must execute inline")
	}
	if run.Status != core.RunCompleted {
		t.Errorf("status: got %s, want completed", run.Status)
	}
	if run.Attempted != 2 || run.Succeeded != 2 || run.Failed != 0 {
		t.Errorf("counts: %+v", run)
	}
	if run.CompletedAt == nil {
		t.Error("completed run should carry a completion time")
	}
	if run.Errors != "" {
		t.Errorf("a clean run must record no errors, got %q", run.Errors)
	}

	expenses, _ := st.ListExpenses(context.Background(), store.ExpenseFilter{UserID: &u.ID})
	if len(expenses) != 2 {
		t.Errorf("expected 2 expenses in the store, got %d", len(expenses))
	}
}

func TestImportService_SubmitSync_RowErrorsRecorded(t *testing.T) {
	st := memory.New()
	u := seedUser(t, st)
	svc := NewImportService(st, nil, nil, 0)

	payload := "item\tvendor\tprice\nCoffee\tBar\t1\nTea\tBar\tbad"

	run, _, err := svc.Submit(context.Background(), u.ID, time.March, 2024, payload)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.Status != core.RunCompleted {
		t.Errorf("row errors must not fail the run, got %s", run.Status)
	}
	if run.Succeeded != 1 || run.Failed != 1 {
		t.Errorf("counts: %+v", run)
	}
	if run.Errors == "" {
		t.Error("row errors should be recorded on the run")
	}
	if run.Payload == "" {
		t.Error("a run with failures keeps its payload for retry")
	}
}

func TestImportService_SubmitSync_StructuralFailure(t *testing.T) {
	st := memory.New()
	u := seedUser(t, st)
	svc := NewImportService(st, nil, nil, 0)

	run, _, err := svc.Submit(context.Background(), u.ID, time.March, 2024, "foo\tbar\nx\ty")
	if err == nil {
		t.Fatal("unusable header should surface an error")
	}
	if run.Status != core.RunFailed {
		t.Errorf("status: got %s, want failed", run.Status)
	}
}

func TestImportService_SubmitAsync(t *testing.T) {
	st := memory.New()
	u := seedUser(t, st)
	q := &fakeQueue{}
	svc := NewImportService(st, q, nil, 0)

	run, deferred, err := svc.Submit(context.Background(), u.ID, time.March, 2024, "item\tprice\nCoffee\t1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !deferred {
		t.Error("with a queue the run must be deferred")
	}
	if run.Status != core.RunPending {
		t.Errorf("status: got %s, want pending", run.Status)
	}
	if len(q.published) != 1 || q.published[0] != run.ID {
		t.Errorf("published jobs: %v", q.published)
	}

	// The worker side: executing the recorded run finishes it.
	done, err := svc.Execute(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if done.Status != core.RunCompleted || done.Succeeded != 1 {
		t.Errorf("run after execute: %+v", done)
	}
}

func TestImportService_Submit_UnknownUser(t *testing.T) {
	svc := NewImportService(memory.New(), nil, nil, 0)

	_, _, err := svc.Submit(context.Background(), uuid.New(), time.March, 2024, "item\nCoffee")
	if err == nil {
		t.Fatal("unknown user should be rejected before a run is recorded")
	}
}
