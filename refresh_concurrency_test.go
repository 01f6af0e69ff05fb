package econtact

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	h := newTestHarness(t)
	refresh := h.login(t).RefreshToken

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	start := make(chan struct{})
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := h.engine.Refresh(context.Background(), refresh)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrRefreshTokenInvalid) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected]; got != n-1 {
		t.Fatalf("expected %d reuse detections, got %d", n-1, got)
	}
}
