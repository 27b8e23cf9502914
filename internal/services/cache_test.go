package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"aktis-analytics-jira/internal/clock"
	"aktis-analytics-jira/internal/common"
	"aktis-analytics-jira/internal/models"

	"github.com/ternarybob/arbor"
)

var cacheEpoch = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

// countingLoader returns a one-issue set named after the call number.
// When gate is set each call waits for it to close.
type countingLoader struct {
	mu      sync.Mutex
	calls   int
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (l *countingLoader) Load(ctx context.Context, query string) ([]models.Issue, models.Diagnostics, error) {
	l.mu.Lock()
	l.calls++
	call := l.calls
	err := l.err
	gate := l.gate
	entered := l.entered
	l.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, models.Diagnostics{}, err
	}

	issues := []models.Issue{{Key: fmt.Sprintf("PROJ-%d", call), Priority: models.PriorityMajor, Status: "To Do"}}
	return issues, models.Diagnostics{RunID: fmt.Sprintf("run-%d", call), Query: query, Normalized: 1}, nil
}

func (l *countingLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *countingLoader) Fail(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func TestCacheServesWithinTTL(t *testing.T) {
	loader := &countingLoader{}
	clk := clock.Fake(cacheEpoch)
	cache := NewCache(loader, nil, clk, 5*time.Minute, arbor.NewLogger())
	ctx := context.Background()

	first, err := cache.Get(ctx, "q", false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if first.Diagnostics.FromCache {
		t.Error("First read must come from the loader")
	}
	if !first.FetchedAt.Equal(cacheEpoch) || !first.Diagnostics.FetchedAt.Equal(cacheEpoch) {
		t.Errorf("Expected fetch stamped at %v, got %v", cacheEpoch, first.FetchedAt)
	}

	clk.Advance(3 * time.Minute)
	second, err := cache.Get(ctx, "q", false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loader.Calls() != 1 {
		t.Errorf("Expected 1 load within TTL, got %d", loader.Calls())
	}
	if !second.Diagnostics.FromCache || second.Issues[0].Key != "PROJ-1" {
		t.Errorf("Expected cached PROJ-1, got %+v", second)
	}

	clk.Advance(3 * time.Minute)
	third, err := cache.Get(ctx, "q", false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loader.Calls() != 2 {
		t.Errorf("Expected reload after TTL, got %d loads", loader.Calls())
	}
	if third.Issues[0].Key != "PROJ-2" {
		t.Errorf("Expected refreshed PROJ-2, got %s", third.Issues[0].Key)
	}
}

func TestCacheForceRefreshAndInvalidate(t *testing.T) {
	loader := &countingLoader{}
	cache := NewCache(loader, nil, clock.Fake(cacheEpoch), time.Hour, arbor.NewLogger())
	ctx := context.Background()

	if _, err := cache.Get(ctx, "q", false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := cache.Get(ctx, "q", true); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loader.Calls() != 2 {
		t.Errorf("Expected forced refresh to load, got %d loads", loader.Calls())
	}

	cache.Invalidate("q")
	if len(cache.Status()) != 0 {
		t.Errorf("Expected no entries after invalidate, got %v", cache.Status())
	}
	if _, err := cache.Get(ctx, "q", false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loader.Calls() != 3 {
		t.Errorf("Expected load after invalidate, got %d loads", loader.Calls())
	}
}

func TestCacheKeysByQuery(t *testing.T) {
	loader := &countingLoader{}
	cache := NewCache(loader, nil, clock.Fake(cacheEpoch), time.Hour, arbor.NewLogger())
	ctx := context.Background()

	cache.Get(ctx, "a", false)
	cache.Get(ctx, "b", false)
	cache.Get(ctx, "a", false)

	if loader.Calls() != 2 {
		t.Errorf("Expected one load per query, got %d", loader.Calls())
	}

	cache.Clear()
	if len(cache.Status()) != 0 {
		t.Error("Expected Clear to drop every entry")
	}
}

func TestCacheCoalescesConcurrentReads(t *testing.T) {
	loader := &countingLoader{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	cache := NewCache(loader, nil, clock.Fake(cacheEpoch), time.Hour, arbor.NewLogger())

	var wg sync.WaitGroup
	results := make([]*CachedSet, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set, err := cache.Get(context.Background(), "q", false)
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			results[i] = set
		}(i)
	}

	<-loader.entered
	close(loader.gate)
	wg.Wait()

	if loader.Calls() != 1 {
		t.Errorf("Expected a single load, got %d", loader.Calls())
	}
	for i, set := range results {
		if set == nil || set.Issues[0].Key != "PROJ-1" {
			t.Errorf("Caller %d got %+v", i, set)
		}
	}
}

func TestCacheForcedRefreshReusesInFlightResult(t *testing.T) {
	loader := &countingLoader{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	cache := NewCache(loader, nil, clock.Fake(cacheEpoch), time.Hour, arbor.NewLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cache.Get(context.Background(), "q", true)
	}()
	<-loader.entered

	var second *CachedSet
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, _ = cache.Get(context.Background(), "q", true)
	}()

	// let the second caller queue behind the running refresh
	time.Sleep(100 * time.Millisecond)
	close(loader.gate)
	wg.Wait()

	if loader.Calls() != 1 {
		t.Errorf("Expected the queued forced refresh to reuse the result, got %d loads", loader.Calls())
	}
	if second == nil || second.Issues[0].Key != "PROJ-1" {
		t.Errorf("Unexpected second result %+v", second)
	}
}

func TestCacheQueuedRefreshKeepsSnapshotStaleness(t *testing.T) {
	store, err := NewSnapshotStore(&common.StorageConfig{SnapshotPath: filepath.Join(t.TempDir(), "snapshots.db")})
	if err != nil {
		t.Fatalf("NewSnapshotStore failed: %v", err)
	}
	defer store.Close()

	if _, err := NewCache(&countingLoader{}, store, clock.Fake(cacheEpoch), time.Hour, arbor.NewLogger()).Get(context.Background(), "q", false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	failing := &countingLoader{err: errors.New("down"), gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	cold := NewCache(failing, store, clock.Fake(cacheEpoch.Add(time.Hour)), time.Hour, arbor.NewLogger())

	var wg sync.WaitGroup
	var first, second *CachedSet
	var secondErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, _ = cold.Get(context.Background(), "q", false)
	}()
	<-failing.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		second, secondErr = cold.Get(context.Background(), "q", true)
	}()

	time.Sleep(100 * time.Millisecond)
	close(failing.gate)
	wg.Wait()

	if failing.Calls() != 1 {
		t.Errorf("Expected the queued refresh to reuse the first run, got %d loads", failing.Calls())
	}
	if first == nil || !first.Diagnostics.Stale {
		t.Fatalf("Expected the first caller to get stale data, got %+v", first)
	}
	if secondErr != nil || second == nil {
		t.Fatalf("Expected snapshot data for the queued caller, got %v", secondErr)
	}
	if !second.Diagnostics.Stale || second.Diagnostics.RefreshError != "down" {
		t.Errorf("Expected the queued caller to see the failed refresh, got %+v", second.Diagnostics)
	}
}

func TestCacheServesStaleEntryOnFailure(t *testing.T) {
	loader := &countingLoader{}
	clk := clock.Fake(cacheEpoch)
	cache := NewCache(loader, nil, clk, time.Minute, arbor.NewLogger())
	ctx := context.Background()

	if _, err := cache.Get(ctx, "q", false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	loader.Fail(errors.New("jira unavailable"))
	clk.Advance(2 * time.Minute)

	set, err := cache.Get(ctx, "q", false)
	if err != nil {
		t.Fatalf("Expected stale data instead of an error, got %v", err)
	}
	if !set.Diagnostics.Stale || set.Diagnostics.RefreshError == "" {
		t.Errorf("Expected stale diagnostics, got %+v", set.Diagnostics)
	}
	if set.Issues[0].Key != "PROJ-1" || !set.FetchedAt.Equal(cacheEpoch) {
		t.Errorf("Expected the previous set, got %+v", set)
	}
}

func TestCacheFallsBackToSnapshot(t *testing.T) {
	store, err := NewSnapshotStore(&common.StorageConfig{SnapshotPath: filepath.Join(t.TempDir(), "snapshots.db")})
	if err != nil {
		t.Fatalf("NewSnapshotStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	warm := NewCache(&countingLoader{}, store, clock.Fake(cacheEpoch), time.Hour, arbor.NewLogger())
	if _, err := warm.Get(ctx, "q", false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// a restarted process with Jira down
	failing := &countingLoader{err: errors.New("dial tcp: connection refused")}
	cold := NewCache(failing, store, clock.Fake(cacheEpoch.Add(time.Hour)), time.Hour, arbor.NewLogger())

	set, err := cold.Get(ctx, "q", false)
	if err != nil {
		t.Fatalf("Expected snapshot fallback, got %v", err)
	}
	if !set.Diagnostics.Stale {
		t.Error("Expected snapshot data to be marked stale")
	}
	if len(set.Issues) != 1 || set.Issues[0].Key != "PROJ-1" {
		t.Errorf("Unexpected snapshot issues %+v", set.Issues)
	}
	if !set.FetchedAt.Equal(cacheEpoch) {
		t.Errorf("Expected original fetch time, got %v", set.FetchedAt)
	}
}

func TestCacheFailsWithoutFallback(t *testing.T) {
	cause := errors.New("jira unavailable")
	cache := NewCache(&countingLoader{err: cause}, nil, clock.Fake(cacheEpoch), time.Hour, arbor.NewLogger())

	set, err := cache.Get(context.Background(), "q", false)
	if err == nil {
		t.Fatalf("Expected an error, got %+v", set)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected loader error, got %v", err)
	}
}

func TestCacheReturnsIndependentSlices(t *testing.T) {
	cache := NewCache(&countingLoader{}, nil, clock.Fake(cacheEpoch), time.Hour, arbor.NewLogger())
	ctx := context.Background()

	first, _ := cache.Get(ctx, "q", false)
	first.Issues[0].Key = "MUTATED"

	second, _ := cache.Get(ctx, "q", false)
	if second.Issues[0].Key != "PROJ-1" {
		t.Errorf("Cached set was mutated through a result: %s", second.Issues[0].Key)
	}
}

func TestCacheStatus(t *testing.T) {
	clk := clock.Fake(cacheEpoch)
	cache := NewCache(&countingLoader{}, nil, clk, 5*time.Minute, arbor.NewLogger())
	cache.Get(context.Background(), "q", false)

	clk.Advance(6 * time.Minute)
	statuses := cache.Status()
	if len(statuses) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(statuses))
	}
	if statuses[0].Issues != 1 || statuses[0].AgeSecs != 360 || !statuses[0].Expired {
		t.Errorf("Unexpected status %+v", statuses[0])
	}
}
