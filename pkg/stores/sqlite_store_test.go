package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/imageforge/imageforge/pkg/sequencer"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "forge.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	completed := started.Add(30 * time.Second)
	cause := "step 3 [fetch]: network: download failed"

	run := &Run{
		ID:              "run-1",
		Recipe:          "flotilla-notebook",
		Status:          "failed",
		StartedAt:       started,
		CompletedAt:     &completed,
		DurationMS:      30000,
		FailedStepIndex: 3,
		Error:           &cause,
		CreatedAt:       time.Now(),
	}
	class := "network"
	steps := []StepRecord{
		{RunID: "run-1", StepIndex: 0, Kind: "user.create", Status: "succeeded", Changed: true},
		{RunID: "run-1", StepIndex: 1, Kind: "fetch", Status: "succeeded", Changed: true},
		{RunID: "run-1", StepIndex: 2, Kind: "chmod", Status: "succeeded", Changed: true},
		{RunID: "run-1", StepIndex: 3, Kind: "fetch", Status: "failed", ErrorClass: &class, Error: &cause},
		{RunID: "run-1", StepIndex: 4, Kind: "pkg.install", Status: "not_run"},
	}

	if err := store.SaveRun(ctx, run, steps); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Recipe != "flotilla-notebook" || got.Status != "failed" {
		t.Errorf("got run %+v", got)
	}
	if got.FailedStepIndex != 3 {
		t.Errorf("FailedStepIndex = %d, want 3", got.FailedStepIndex)
	}
	if got.Error == nil || *got.Error != cause {
		t.Errorf("Error = %v, want %q", got.Error, cause)
	}

	gotSteps, err := store.GetStepResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetStepResults: %v", err)
	}
	if len(gotSteps) != 5 {
		t.Fatalf("len(steps) = %d, want 5", len(gotSteps))
	}
	for i, step := range gotSteps {
		if step.StepIndex != i {
			t.Errorf("steps out of order: position %d holds index %d", i, step.StepIndex)
		}
	}
	if gotSteps[3].ErrorClass == nil || *gotSteps[3].ErrorClass != "network" {
		t.Errorf("steps[3].ErrorClass = %v, want network", gotSteps[3].ErrorClass)
	}
	if gotSteps[4].Status != "not_run" {
		t.Errorf("steps[4].Status = %q, want not_run", gotSteps[4].Status)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := &Run{
			ID:              id,
			Recipe:          "notebook",
			Status:          "succeeded",
			StartedAt:       base.Add(time.Duration(i) * time.Minute),
			FailedStepIndex: -1,
			CreatedAt:       time.Now(),
		}
		if err := store.SaveRun(ctx, run, nil); err != nil {
			t.Fatalf("SaveRun(%s): %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	if runs[0].ID != "run-c" || runs[2].ID != "run-a" {
		t.Errorf("order = %s, %s, %s; want run-c first", runs[0].ID, runs[1].ID, runs[2].ID)
	}

	limited, err := store.ListRuns(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ListRuns paginated: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "run-b" {
		t.Errorf("paginated = %v, want [run-b]", limited)
	}
}

func TestDeleteRunCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &Run{ID: "run-del", Recipe: "notebook", Status: "succeeded", StartedAt: time.Now(), FailedStepIndex: -1, CreatedAt: time.Now()}
	steps := []StepRecord{{RunID: "run-del", StepIndex: 0, Kind: "env.set", Status: "succeeded"}}
	if err := store.SaveRun(ctx, run, steps); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	if err := store.DeleteRun(ctx, "run-del"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := store.GetRun(ctx, "run-del"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("run still present after delete: %v", err)
	}
	remaining, err := store.GetStepResults(ctx, "run-del")
	if err != nil {
		t.Fatalf("GetStepResults: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("%d step rows survived the cascade", len(remaining))
	}

	if err := store.DeleteRun(ctx, "run-del"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second delete = %v, want ErrRunNotFound", err)
	}
}

func TestRunRecorder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().Add(-10 * time.Second)
	result := &sequencer.ExecutionResult{
		RunID:       "run-rec",
		Recipe:      "flotilla-notebook",
		Status:      sequencer.RunStatusFailed,
		StartedAt:   started,
		CompletedAt: started.Add(5 * time.Second),
		Duration:    5 * time.Second,
		Steps: []sequencer.StepResult{
			{Index: 0, Kind: "user.create", Status: sequencer.StepStatusSucceeded, Changed: true, StartedAt: started, CompletedAt: started.Add(time.Second), Duration: time.Second},
			{Index: 1, Kind: "fetch", Status: sequencer.StepStatusFailed, StartedAt: started.Add(time.Second), CompletedAt: started.Add(5 * time.Second), Duration: 4 * time.Second,
				Error: sequencer.NewNetworkError("download failed", nil).WithStep(1, "fetch")},
			{Index: 2, Kind: "chmod", Status: sequencer.StepStatusNotRun},
		},
		FailedStepIndex: 1,
		Cause:           sequencer.NewNetworkError("download failed", nil).WithStep(1, "fetch"),
	}

	if err := NewRunRecorder(store).Record(ctx, result); err != nil {
		t.Fatalf("Record: %v", err)
	}

	run, err := store.GetRun(ctx, "run-rec")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != "failed" || run.FailedStepIndex != 1 {
		t.Errorf("run = %+v", run)
	}
	if run.DurationMS != 5000 {
		t.Errorf("DurationMS = %d, want 5000", run.DurationMS)
	}

	steps, err := store.GetStepResults(ctx, "run-rec")
	if err != nil {
		t.Fatalf("GetStepResults: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("len(steps) = %d, want 3", len(steps))
	}
	if steps[1].ErrorClass == nil || *steps[1].ErrorClass != "network" {
		t.Errorf("steps[1].ErrorClass = %v, want network", steps[1].ErrorClass)
	}
	if steps[2].Status != "not_run" || steps[2].StartedAt != nil {
		t.Errorf("steps[2] = %+v, want untouched not_run record", steps[2])
	}
}
