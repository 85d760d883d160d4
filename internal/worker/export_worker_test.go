package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tipsplit/internal/amqp"
	"tipsplit/internal/sheets/memory"
	"tipsplit/internal/storage"
)

var base = time.Date(2025, 7, 4, 22, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *storage.MemoryRepository, ids ...string) {
	t.Helper()
	for i, id := range ids {
		err := repo.Save(context.Background(), storage.DistributionRecord{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Request:   []byte(`{}`),
			Response:  []byte(fmt.Sprintf(`{"id":%q,"status":"ok","employees":[{"name":"A","total":50,"cash_given":50,"bills":{"50":1},"coins":{}}],"bit_transfers":[]}`, id)),
			Payees:    1,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func newWorker(repo storage.Repository, exp *memory.Exporter, batch int) *ExportWorker {
	w := NewExportWorker(repo, exp, nil, nil, batch)
	w.now = func() time.Time { return base.Add(time.Hour) }
	return w
}

func TestHandleRecordedMessage_ExportsAndMarks(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seed(t, repo, "d-1")
	exp := memory.New()
	w := newWorker(repo, exp, 10)

	msg := amqp.NewDistributionRecordedMessage("d-1")
	if err := w.HandleRecordedMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleRecordedMessage() error = %v", err)
	}

	if got := exp.Exported(); len(got) != 1 || got[0] != "d-1" {
		t.Fatalf("exported = %v", got)
	}
	rec, _ := repo.Get(context.Background(), "d-1")
	if !rec.Exported() || !rec.ExportedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("ExportedAt = %v", rec.ExportedAt)
	}

	// redelivery is a no-op
	if err := w.HandleRecordedMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if len(exp.Exported()) != 1 {
		t.Errorf("already exported record was exported again")
	}
}

func TestHandleRecordedMessage_UnknownIDDropped(t *testing.T) {
	exp := memory.New()
	w := newWorker(storage.NewMemoryRepository(), exp, 10)

	if err := w.HandleRecordedMessage(context.Background(), amqp.NewDistributionRecordedMessage("ghost")); err != nil {
		t.Fatalf("unknown id should be dropped, got %v", err)
	}
	if len(exp.Exported()) != 0 {
		t.Error("nothing should be exported")
	}
}

func TestHandleRecordedMessage_ExportErrorRequeues(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seed(t, repo, "d-1")
	exp := memory.New()
	exp.FailWith(errors.New("quota exceeded"))
	w := newWorker(repo, exp, 10)

	err := w.HandleRecordedMessage(context.Background(), amqp.NewDistributionRecordedMessage("d-1"))
	if err == nil {
		t.Fatal("export failure must be returned")
	}
	rec, _ := repo.Get(context.Background(), "d-1")
	if rec.Exported() {
		t.Error("failed export must not be marked")
	}
}

func TestProcessPending_BatchesOldestFirst(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seed(t, repo, "d-1", "d-2", "d-3")
	exp := memory.New()
	w := newWorker(repo, exp, 2)

	n, err := w.ProcessPending(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("ProcessPending() = %d, %v", n, err)
	}
	if got := exp.Exported(); len(got) != 2 || got[0] != "d-1" || got[1] != "d-2" {
		t.Fatalf("exported = %v", got)
	}

	n, err = w.ProcessPending(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("second ProcessPending() = %d, %v", n, err)
	}

	n, err = w.ProcessPending(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("third ProcessPending() = %d, %v", n, err)
	}
}

func TestProcessPending_ContinuesPastFailures(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seed(t, repo, "d-1")
	if err := repo.Save(context.Background(), storage.DistributionRecord{
		ID: "broken", CreatedAt: base.Add(-time.Minute), Response: []byte("{"),
	}); err != nil {
		t.Fatal(err)
	}
	exp := memory.New()
	w := newWorker(repo, exp, 10)

	n, err := w.ProcessPending(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ProcessPending() = %d, %v", n, err)
	}
	pending, _ := repo.ListPendingExport(context.Background(), 0)
	if len(pending) != 1 || pending[0].ID != "broken" {
		t.Errorf("pending = %v", pending)
	}
}

// slowExporter holds each export long enough for a second caller to race it.
type slowExporter struct {
	mu    sync.Mutex
	calls map[string]int
	delay time.Duration
}

func (e *slowExporter) ExportDistribution(_ context.Context, record storage.DistributionRecord) error {
	e.mu.Lock()
	e.calls[record.ID]++
	e.mu.Unlock()
	time.Sleep(e.delay)
	return nil
}

func (e *slowExporter) count(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[id]
}

func TestExport_ConsumerAndSweeperRace(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seed(t, repo, "d-1")
	exp := &slowExporter{calls: make(map[string]int), delay: 50 * time.Millisecond}
	w := NewExportWorker(repo, exp, nil, nil, 10)

	ctx := context.Background()
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		if err := w.HandleRecordedMessage(ctx, amqp.NewDistributionRecordedMessage("d-1")); err != nil {
			t.Errorf("HandleRecordedMessage() error = %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		<-start
		if _, err := w.ProcessPending(ctx); err != nil {
			t.Errorf("ProcessPending() error = %v", err)
		}
	}()
	close(start)
	wg.Wait()

	if got := exp.count("d-1"); got != 1 {
		t.Errorf("exports of d-1 = %d, want 1", got)
	}
	rec, _ := repo.Get(ctx, "d-1")
	if !rec.Exported() {
		t.Error("record should be marked exported")
	}
}

func TestProcessPending_SkipsClaimedRecords(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seed(t, repo, "d-1")
	exp := memory.New()
	w := newWorker(repo, exp, 10)

	now := w.now()
	if ok, err := repo.ClaimExport(context.Background(), "d-1", now, now.Add(-DefaultClaimTTL)); err != nil || !ok {
		t.Fatalf("ClaimExport() = %v, %v", ok, err)
	}

	n, err := w.ProcessPending(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("ProcessPending() = %d, %v; want 0 while claimed elsewhere", n, err)
	}
	if len(exp.Exported()) != 0 {
		t.Errorf("claimed record exported: %v", exp.Exported())
	}

	// once the claim goes stale the sweeper takes it over
	w.now = func() time.Time { return now.Add(DefaultClaimTTL + time.Minute) }
	n, err = w.ProcessPending(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ProcessPending() after claim expiry = %d, %v", n, err)
	}
}

func TestExport_FailureReleasesClaim(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seed(t, repo, "d-1")
	exp := memory.New()
	exp.FailWith(errors.New("quota exceeded"))
	w := newWorker(repo, exp, 10)

	if err := w.HandleRecordedMessage(context.Background(), amqp.NewDistributionRecordedMessage("d-1")); err == nil {
		t.Fatal("expected export error")
	}

	exp.FailWith(nil)
	n, err := w.ProcessPending(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ProcessPending() = %d, %v; want the released record exported", n, err)
	}
	if got := exp.Exported(); len(got) != 1 || got[0] != "d-1" {
		t.Errorf("exported = %v", got)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seed(t, repo, "d-1")
	exp := memory.New()
	s := NewSweeper(newWorker(repo, exp, 10), SweeperConfig{Interval: 10 * time.Millisecond})

	if s.IsRunning() {
		t.Fatal("sweeper should not be running initially")
	}
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(exp.Exported()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(exp.Exported()) != 1 {
		t.Fatalf("startup sweep did not export, got %v", exp.Exported())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("sweeper should be stopped")
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
