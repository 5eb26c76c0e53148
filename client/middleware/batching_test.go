package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBatchingCoalescesCallsWithinWindow(t *testing.T) {
	var mu sync.Mutex
	var gotPaths []string

	send := func(ctx context.Context, paths []string, args []json.RawMessage) ([]json.RawMessage, []error, error) {
		mu.Lock()
		gotPaths = append(gotPaths, paths...)
		mu.Unlock()

		results := make([]json.RawMessage, len(paths))
		errs := make([]error, len(paths))
		for i := range paths {
			results[i] = json.RawMessage(fmt.Sprintf(`%d`, i))
		}
		return results, errs, nil
	}

	b := NewBatching(send)
	b.MaxBatchSize = 10
	b.MaxWait = 20 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]json.RawMessage, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := b.Call(context.Background(), fmt.Sprintf("path%d", i), nil)
			require.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gotPaths, 3)
}

func TestBatchingFlushesImmediatelyAtMaxBatchSize(t *testing.T) {
	flushed := make(chan int, 1)
	send := func(ctx context.Context, paths []string, args []json.RawMessage) ([]json.RawMessage, []error, error) {
		flushed <- len(paths)
		results := make([]json.RawMessage, len(paths))
		errs := make([]error, len(paths))
		for i := range paths {
			results[i] = json.RawMessage(`null`)
		}
		return results, errs, nil
	}

	b := NewBatching(send)
	b.MaxBatchSize = 2
	b.MaxWait = time.Hour

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Call(context.Background(), "x", nil)
		}()
	}

	select {
	case n := <-flushed:
		require.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("batch never flushed at MaxBatchSize")
	}
	wg.Wait()
}

func TestBatchingPropagatesSendFailureToAllCallers(t *testing.T) {
	send := func(ctx context.Context, paths []string, args []json.RawMessage) ([]json.RawMessage, []error, error) {
		return nil, nil, fmt.Errorf("send failed")
	}
	b := NewBatching(send)
	b.MaxBatchSize = 1
	b.MaxWait = time.Millisecond

	_, err := b.Call(context.Background(), "x", nil)
	require.Error(t, err)
}

func TestBatchingDemuxesResultsByIndex(t *testing.T) {
	send := func(ctx context.Context, paths []string, args []json.RawMessage) ([]json.RawMessage, []error, error) {
		results := make([]json.RawMessage, len(paths))
		errs := make([]error, len(paths))
		for i, p := range paths {
			results[i] = json.RawMessage(fmt.Sprintf(`"%s"`, p))
		}
		return results, errs, nil
	}

	b := NewBatching(send)
	b.MaxBatchSize = 2
	b.MaxWait = time.Hour

	var wg sync.WaitGroup
	got := make([]string, 2)
	paths := []string{"a", "b"}
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			r, err := b.Call(context.Background(), p, nil)
			require.NoError(t, err)
			var s string
			require.NoError(t, json.Unmarshal(r, &s))
			got[i] = s
		}(i, p)
	}
	wg.Wait()

	require.ElementsMatch(t, paths, got)
}
