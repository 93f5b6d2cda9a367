package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/jobs"
)

func TestStore_SaveAndGetReturnCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.MirrorExpenseJob{JobID: "j1", Status: jobs.JobStatusPending}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	job.Status = jobs.JobStatusFailed

	got, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("stored job changed through caller pointer: %s", got.Status)
	}

	if err := store.SaveJob(ctx, &jobs.MirrorExpenseJob{}); err == nil {
		t.Error("expected error for empty job ID")
	}
	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, tc := range []struct {
		id, expense, ledger string
		status              jobs.JobStatus
	}{
		{"j1", "e1", "sheet-a", jobs.JobStatusCompleted},
		{"j2", "e2", "sheet-a", jobs.JobStatusFailed},
		{"j3", "e3", "sheet-b", jobs.JobStatusCompleted},
		{"j4", "e1", "sheet-a", jobs.JobStatusPending},
	} {
		_ = store.SaveJob(ctx, &jobs.MirrorExpenseJob{
			JobID:     tc.id,
			LedgerID:  tc.ledger,
			Expense:   domain.FinalizedExpense{ID: tc.expense},
			Status:    tc.status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all oldest first", jobs.JobFilter{}, []string{"j1", "j2", "j3", "j4"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"j1", "j3"}},
		{"by expense", jobs.JobFilter{ExpenseID: "e1"}, []string{"j1", "j4"}},
		{"by ledger", jobs.JobFilter{LedgerID: "sheet-b"}, []string{"j3"}},
		{"limit and offset", jobs.JobFilter{Offset: 1, Limit: 2}, []string{"j2", "j3"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d jobs, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].JobID != id {
					t.Errorf("job %d = %s, want %s", i, got[i].JobID, id)
				}
			}
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.SaveJob(ctx, &jobs.MirrorExpenseJob{JobID: "j1", Status: jobs.JobStatusRunning})

	if err := store.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}
	got, _ := store.GetJob(ctx, "j1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("unexpected job: %+v", got)
	}

	if err := store.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, ""); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
