package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/wikisync/internal/pipeline"
	"github.com/starford/wikisync/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestRelevant(t *testing.T) {
	docDir := "/docs"
	index := "/root/index.md"
	cases := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "/docs/a.md", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/docs/a.md", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/docs/a.md", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/docs/a.txt", Op: fsnotify.Create}, false},
		{fsnotify.Event{Name: "/docs/sub/a.md", Op: fsnotify.Create}, false},
		{fsnotify.Event{Name: "/root/index.md", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/root/other.md", Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		if got := relevant(tc.ev, docDir, index); got != tc.want {
			t.Errorf("relevant(%v) = %v, want %v", tc.ev, got, tc.want)
		}
	}
}

func TestRun_TriggersOnNewDocument(t *testing.T) {
	dir, _ := testutil.TestDocs(t, nil)
	indexPath := filepath.Join(t.TempDir(), "index.md")
	testutil.WriteFile(t, indexPath, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, dir, indexPath, 50*time.Millisecond, testutil.Logger(), func(context.Context) map[string]string {
			calls.Add(1)
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond)
	testutil.WriteFile(t, filepath.Join(dir, "new.md"), "# New")
	testutil.WriteFile(t, filepath.Join(dir, "other.md"), "# Other")

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "trigger not fired for new document")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop after cancel")
	}
}

func TestRun_IgnoresUnrelatedFiles(t *testing.T) {
	dir, _ := testutil.TestDocs(t, nil)
	indexPath := filepath.Join(t.TempDir(), "index.md")
	testutil.WriteFile(t, indexPath, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Run(ctx, dir, indexPath, 20*time.Millisecond, testutil.Logger(), func(context.Context) map[string]string {
		calls.Add(1)
		return nil
	})

	time.Sleep(100 * time.Millisecond)
	testutil.WriteFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	time.Sleep(300 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("trigger fired %d times for a non-document", n)
	}
}

// watchPipeline starts Run with a trigger that reconciles for real and counts
// passes. It returns the counter and the document directory. The watcher is
// stopped before the test's temp dirs are removed.
func watchPipeline(t *testing.T, find, replace string, docs map[string]string) (*atomic.Int32, string) {
	t.Helper()
	dir, _ := testutil.TestDocs(t, docs)
	indexPath := filepath.Join(t.TempDir(), "index.md")
	testutil.WriteFile(t, indexPath, "")

	opts := pipeline.Options{
		TargetDirectory: dir,
		IndexFilePath:   indexPath,
		FindString:      find,
		ReplaceString:   replace,
	}
	calls := &atomic.Int32{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Run(ctx, dir, indexPath, 50*time.Millisecond, testutil.Logger(), func(ctx context.Context) map[string]string {
			calls.Add(1)
			rep, _ := pipeline.Run(ctx, opts, testutil.Logger())
			return rep.Written()
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
	return calls, dir
}

func TestRun_PipelineTriggerSettles(t *testing.T) {
	calls, dir := watchPipeline(t, "/wiki/", "/x/", map[string]string{
		"foo.md": "see /wiki/foo",
	})

	// One external edit; the pass it causes rewrites documents and the index.
	testutil.WriteFile(t, filepath.Join(dir, "bar.md"), "see /wiki/bar")

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "trigger not fired for external edit")
	time.Sleep(600 * time.Millisecond)

	if n := calls.Load(); n > 2 {
		t.Errorf("pipeline ran %d times after one edit, want at most 2", n)
	}
	if got := testutil.ReadFile(t, filepath.Join(dir, "bar.md")); got != "see /x/bar" {
		t.Errorf("bar.md = %q", got)
	}
}

func TestRun_SelfFeedingReplaceDoesNotLoop(t *testing.T) {
	calls, dir := watchPipeline(t, "/wiki/", "/ar-omega/wiki/", map[string]string{
		"foo.md": "see /wiki/foo",
	})

	testutil.WriteFile(t, filepath.Join(dir, "bar.md"), "nothing here")

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "trigger not fired for external edit")
	time.Sleep(600 * time.Millisecond)

	if n := calls.Load(); n > 2 {
		t.Errorf("pipeline ran %d times after one edit, want at most 2", n)
	}
	foo := testutil.ReadFile(t, filepath.Join(dir, "foo.md"))
	if n := strings.Count(foo, "ar-omega"); n > 2 {
		t.Errorf("foo.md rewritten %d times: %q", n, foo)
	}
}
