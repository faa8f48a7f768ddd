package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"sms-hub/internal/checkpoint"
	"sms-hub/internal/models"
)

type failingStore struct {
	checkpoint.Nop
	loadErr error
	saveErr error
	saves   int
}

func (s *failingStore) Load(context.Context, string) (checkpoint.State, error) {
	return checkpoint.State{}, s.loadErr
}

func (s *failingStore) Save(context.Context, string, checkpoint.State) error {
	s.saves++
	return s.saveErr
}

func TestInstanceDedupAcrossCycles(t *testing.T) {
	f := &fakeFetcher{entries: []models.RawInboundMessage{rawMessage("77", "0912", "code 1")}}
	cfg := models.PollConfiguration{Name: "otp", LineNumber: "1000"}
	inst := NewInstance(newTestEngine(cfg, f, 100), checkpoint.NewMemoryStore(), zap.NewNop())

	batch, err := inst.Poll(context.Background())
	if err != nil || batch == nil {
		t.Fatalf("Expected a batch on first poll, got %v, %v", batch, err)
	}

	// The gateway returns the same message again, e.g. after a delayed mark-as-read.
	batch, err = inst.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if batch != nil {
		t.Errorf("Expected repeated message to be suppressed, got %+v", batch.Events)
	}
}

func TestInstanceCheckpointLoadFailureSkipsFetch(t *testing.T) {
	f := &fakeFetcher{}
	store := &failingStore{loadErr: errors.New("redis down")}
	inst := NewInstance(newTestEngine(models.PollConfiguration{Name: "otp", LineNumber: "1000"}, f, 10), store, zap.NewNop())

	_, err := inst.Poll(context.Background())
	var cpErr *CheckpointError
	if !errors.As(err, &cpErr) {
		t.Fatalf("Expected CheckpointError, got %v", err)
	}
	if f.calls != 0 {
		t.Errorf("Expected no gateway read, got %d", f.calls)
	}
}

func TestInstanceCheckpointSaveFailureKeepsBatch(t *testing.T) {
	f := &fakeFetcher{entries: []models.RawInboundMessage{rawMessage("1", "0912", "hi")}}
	store := &failingStore{saveErr: errors.New("disk full")}
	inst := NewInstance(newTestEngine(models.PollConfiguration{Name: "otp", LineNumber: "1000"}, f, 10), store, zap.NewNop())

	batch, err := inst.Poll(context.Background())
	if err != nil {
		t.Fatalf("Expected save failure to be logged only, got %v", err)
	}
	if batch == nil || len(batch.Events) != 1 {
		t.Errorf("Expected the batch to survive, got %+v", batch)
	}
	if store.saves != 1 {
		t.Errorf("Expected one save attempt, got %d", store.saves)
	}
}

type cancellingFetcher struct {
	fakeFetcher
	cancel context.CancelFunc
}

func (c *cancellingFetcher) FetchUnreadInbound(ctx context.Context, lineNumber string) ([]models.RawInboundMessage, error) {
	c.cancel()
	return c.fakeFetcher.FetchUnreadInbound(ctx, lineNumber)
}

// contextStore fails like a network-backed store once ctx is done.
type contextStore struct {
	*checkpoint.MemoryStore
}

func (s contextStore) Save(ctx context.Context, trigger string, state checkpoint.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Save(ctx, trigger, state)
}

func TestInstanceSavesCheckpointAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &cancellingFetcher{
		fakeFetcher: fakeFetcher{entries: []models.RawInboundMessage{rawMessage("77", "0912", "code 1")}},
		cancel:      cancel,
	}
	store := contextStore{checkpoint.NewMemoryStore()}
	inst := NewInstance(newTestEngine(models.PollConfiguration{Name: "otp", LineNumber: "1000"}, f, 10), store, zap.NewNop())

	batch, err := inst.Poll(ctx)
	if err != nil || batch == nil {
		t.Fatalf("Expected the fetched batch, got %v, %v", batch, err)
	}

	state, err := store.Load(context.Background(), "otp")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !state.Contains("77") {
		t.Errorf("Expected checkpoint to record 77, got %v", state.Seen)
	}
}

type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingFetcher) FetchUnreadInbound(ctx context.Context, _ string) ([]models.RawInboundMessage, error) {
	close(b.started)
	<-b.release
	return nil, nil
}

func TestInstanceTryPollRejectsOverlap(t *testing.T) {
	b := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	inst := NewInstance(newTestEngine(models.PollConfiguration{Name: "otp", LineNumber: "1000"}, b, 0), nil, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := inst.Poll(context.Background()); err != nil {
			t.Errorf("Poll: %v", err)
		}
	}()

	<-b.started
	if _, err := inst.TryPoll(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Errorf("Expected ErrCycleInProgress, got %v", err)
	}
	close(b.release)
	wg.Wait()
}
