package changes_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/StbLinux/Fody/pkg/changes"
	"github.com/StbLinux/Fody/pkg/logger"
)

func newWatcher(t *testing.T) *changes.Watcher {
	t.Helper()
	w, err := changes.NewWatcher(logger.CreateLoggerWithOutput("error", io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })
	w.SetSettlingDelay(50 * time.Millisecond)
	return w
}

func TestWatcher_ReportsWriteToWatchedFile(t *testing.T) {
	dir := t.TempDir()
	weaver := writeWeaver(t, dir, "PropertyChanged.Fody.dll", "v1")

	w := newWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []string, 1)
	err := w.Watch(ctx, []string{weaver}, func(changed []string) {
		select {
		case got <- changed:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	writeWeaver(t, dir, "PropertyChanged.Fody.dll", "v2")

	select {
	case changed := <-got:
		if len(changed) != 1 || filepath.Clean(changed[0]) != filepath.Clean(weaver) {
			t.Errorf("unexpected change set: %v", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("change was never reported")
	}
}

func TestWatcher_IgnoresUnwatchedSiblings(t *testing.T) {
	dir := t.TempDir()
	weaver := writeWeaver(t, dir, "PropertyChanged.Fody.dll", "v1")

	w := newWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var calls int
	err := w.Watch(ctx, []string{weaver}, func([]string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	// A sibling in the same directory generates events on the watched
	// directory, but no callback may fire for it.
	writeWeaver(t, dir, "unrelated.txt", "noise")

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("callback fired %d time(s) for an unwatched file", calls)
	}
}

func TestWatcher_ObservesReplaceByRename(t *testing.T) {
	dir := t.TempDir()
	weaver := writeWeaver(t, dir, "PropertyChanged.Fody.dll", "v1")
	staged := writeWeaver(t, dir, "incoming.tmp", "v2")

	w := newWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []string, 1)
	err := w.Watch(ctx, []string{weaver}, func(changed []string) {
		select {
		case got <- changed:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	// Build tools typically stage the new assembly and rename it over
	// the old one.
	if err := os.Rename(staged, weaver); err != nil {
		t.Fatal(err)
	}

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("rename over the watched file was never reported")
	}
}
