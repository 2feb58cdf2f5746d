package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var seen []string
	changed := make(chan struct{}, 1)

	w, err := New(dir, func(names []string) {
		mu.Lock()
		seen = append(seen, names...)
		mu.Unlock()
		select {
		case changed <- struct{}{}:
		default:
		}
	}, WithDebounceTime(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	// Give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("content"), 0644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never reported the change")
	}

	mu.Lock()
	assert.Contains(t, seen, "doc.txt")
	mu.Unlock()

	cancel()
	<-done
}

func TestWatcherIgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var seen []string

	w, err := New(dir, func(names []string) {
		mu.Lock()
		seen = append(seen, names...)
		mu.Unlock()
	}, WithDebounceTime(30*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644))
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	assert.NotContains(t, seen, ".hidden")
	mu.Unlock()
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	calls := 0

	w, err := New(dir, func(names []string) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, WithDebounceTime(200*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	time.Sleep(100 * time.Millisecond)

	// A burst of writes inside one debounce window
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("content"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)

	mu.Lock()
	assert.LessOrEqual(t, calls, 2)
	assert.GreaterOrEqual(t, calls, 1)
	mu.Unlock()
}
