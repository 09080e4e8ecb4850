package regen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meme-report/internal/domain"
	"github.com/tbourn/go-meme-report/internal/repo"
)

// memRecords is an in-memory RecordStore.
type memRecords struct {
	mu      sync.Mutex
	recs    map[string]domain.Artifact
	seq     int
	getErr  error
	saveErr error
	onGet   func()
}

func newMemRecords() *memRecords { return &memRecords{recs: map[string]domain.Artifact{}} }

func (m *memRecords) Get(_ context.Context, name string) (*domain.Artifact, error) {
	if m.onGet != nil {
		m.onGet()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.recs[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &r, nil
}

func (m *memRecords) Save(_ context.Context, name, path string, at time.Time) (*domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.seq++
	r := domain.Artifact{ID: fmt.Sprintf("a%d", m.seq), Name: name, Path: path, ProducedAt: at}
	m.recs[name] = r
	return &r, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time { c.mu.Lock(); defer c.mu.Unlock(); return c.t }
func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestDebouncer(recs RecordStore, c *clock) *Debouncer {
	d := New(recs)
	d.Now = c.Now
	d.Exists = func(string) bool { return true }
	return d
}

func countingProduce(n *int32) ProduceFunc {
	return func(context.Context) (string, error) {
		k := atomic.AddInt32(n, 1)
		return fmt.Sprintf("reports/report-%d.html", k), nil
	}
}

func TestGetOrRegenerate_DebounceProperty(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	d := newTestDebouncer(newMemRecords(), c)
	ctx := context.Background()
	var calls int32
	w := time.Minute

	first, err := d.GetOrRegenerate(ctx, "report", w, countingProduce(&calls))
	if err != nil || !first.Regenerated {
		t.Fatalf("first call should regenerate: %+v err=%v", first, err)
	}

	c.Advance(30 * time.Second)
	second, err := d.GetOrRegenerate(ctx, "report", w, countingProduce(&calls))
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.Regenerated || second.ID != first.ID || calls != 1 {
		t.Fatalf("call within window should reuse: %+v calls=%d", second, calls)
	}

	c.Advance(31 * time.Second)
	third, err := d.GetOrRegenerate(ctx, "report", w, countingProduce(&calls))
	if err != nil {
		t.Fatalf("third call: %v", err)
	}
	if !third.Regenerated || calls != 2 || third.Path != "reports/report-2.html" {
		t.Fatalf("call past window should regenerate: %+v calls=%d", third, calls)
	}
}

func TestGetOrRegenerate_NonPositiveWindowForces(t *testing.T) {
	c := &clock{t: time.Now().UTC()}
	d := newTestDebouncer(newMemRecords(), c)
	var calls int32
	for i := 0; i < 3; i++ {
		if _, err := d.GetOrRegenerate(context.Background(), "report", 0, countingProduce(&calls)); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 productions, got %d", calls)
	}
}

func TestGetOrRegenerate_MissingFileRegenerates(t *testing.T) {
	c := &clock{t: time.Now().UTC()}
	d := newTestDebouncer(newMemRecords(), c)
	var calls int32

	if _, err := d.GetOrRegenerate(context.Background(), "report", time.Hour, countingProduce(&calls)); err != nil {
		t.Fatal(err)
	}
	d.Exists = func(string) bool { return false }
	out, err := d.GetOrRegenerate(context.Background(), "report", time.Hour, countingProduce(&calls))
	if err != nil || !out.Regenerated || calls != 2 {
		t.Fatalf("expected regeneration when artifact file is gone: %+v calls=%d err=%v", out, calls, err)
	}
}

func TestGetOrRegenerate_FailureKeepsPreviousRecord(t *testing.T) {
	c := &clock{t: time.Now().UTC()}
	recs := newMemRecords()
	d := newTestDebouncer(recs, c)
	ctx := context.Background()
	var calls int32

	prev, err := d.GetOrRegenerate(ctx, "report", time.Second, countingProduce(&calls))
	if err != nil {
		t.Fatal(err)
	}
	c.Advance(time.Hour)

	renderErr := fmt.Errorf("%w: boom", domain.ErrRender)
	_, err = d.GetOrRegenerate(ctx, "report", time.Second, func(context.Context) (string, error) {
		return "", renderErr
	})
	if !errors.Is(err, domain.ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	rec, _ := recs.Get(ctx, "report")
	if rec.ID != prev.ID || rec.Path != prev.Path {
		t.Fatalf("previous record modified: %+v", rec)
	}
}

func TestGetOrRegenerate_RecordErrorsAreStorageErrors(t *testing.T) {
	c := &clock{t: time.Now().UTC()}
	recs := newMemRecords()
	d := newTestDebouncer(recs, c)
	var calls int32

	recs.getErr = errors.New("db down")
	if _, err := d.GetOrRegenerate(context.Background(), "report", time.Second, countingProduce(&calls)); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage on Get failure, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("produce must not run when the record cannot be read")
	}

	recs.getErr = nil
	recs.saveErr = errors.New("disk full")
	if _, err := d.GetOrRegenerate(context.Background(), "report", time.Second, countingProduce(&calls)); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage on Save failure, got %v", err)
	}
}

func TestGetOrRegenerate_ConcurrentCallersShareOneProduction(t *testing.T) {
	c := &clock{t: time.Now().UTC()}
	d := newTestDebouncer(newMemRecords(), c)

	var calls int32
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	produce := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		once.Do(func() { close(started) })
		<-release
		return "reports/report.html", nil
	}

	const n = 8
	var wg sync.WaitGroup
	var regenerated int32
	errs := make(chan error, n)
	call := func() {
		defer wg.Done()
		out, err := d.GetOrRegenerate(context.Background(), "report", 0, produce)
		if out.Regenerated {
			atomic.AddInt32(&regenerated, 1)
		}
		errs <- err
	}
	wg.Add(1)
	go call()
	<-started
	for i := 1; i < n; i++ {
		wg.Add(1)
		go call()
	}
	// give the followers time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Followers that arrive after the first flight completes start a new one
	// (window 0 forces), so at least the overlapping ones were collapsed.
	got := atomic.LoadInt32(&calls)
	if got >= n {
		t.Fatalf("expected concurrent calls to be collapsed, got %d productions", got)
	}
	if r := atomic.LoadInt32(&regenerated); r != got {
		t.Fatalf("regenerated outcomes = %d; want one per production (%d)", r, got)
	}
}

func TestGetOrRegenerate_ForcedCallDoesNotJoinReuse(t *testing.T) {
	c := &clock{t: time.Now().UTC()}
	recs := newMemRecords()
	d := newTestDebouncer(recs, c)
	if _, err := recs.Save(context.Background(), "report", "reports/old.html", c.Now()); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	recs.onGet = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	var calls int32
	reused := make(chan Outcome, 1)
	go func() {
		out, _ := d.GetOrRegenerate(context.Background(), "report", time.Hour, countingProduce(&calls))
		reused <- out
	}()
	<-entered

	forced := make(chan Outcome, 1)
	errs := make(chan error, 1)
	go func() {
		out, err := d.GetOrRegenerate(context.Background(), "report", 0, countingProduce(&calls))
		errs <- err
		forced <- out
	}()
	// let the forced call join the reuse flight
	time.Sleep(50 * time.Millisecond)
	close(release)

	if out := <-reused; out.Regenerated {
		t.Fatalf("fresh record should be reused: %+v", out)
	}
	if err := <-errs; err != nil {
		t.Fatalf("forced call: %v", err)
	}
	out := <-forced
	if !out.Regenerated || out.Path == "reports/old.html" {
		t.Fatalf("forced call must regenerate, got %+v", out)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one production, got %d", got)
	}
}

func TestGormRecords_RoundTrip(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:regen_records?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Artifact{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	d := newTestDebouncer(GormRecords{DB: db}, c)
	var calls int32

	first, err := d.GetOrRegenerate(context.Background(), "report", time.Minute, countingProduce(&calls))
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	// a new debouncer (fresh process) still sees the persisted record
	d2 := newTestDebouncer(GormRecords{DB: db}, c)
	c.Advance(10 * time.Second)
	second, err := d2.GetOrRegenerate(context.Background(), "report", time.Minute, countingProduce(&calls))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Regenerated || second.ID != first.ID || calls != 1 {
		t.Fatalf("persisted record should be reused across instances: %+v calls=%d", second, calls)
	}
}
