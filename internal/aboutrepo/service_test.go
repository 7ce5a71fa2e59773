package aboutrepo

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestAboutRepoLifecycle(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.Ensure("# About me\n\nHello.\n", "Avery"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	// Second call is a no-op.
	if err := svc.Ensure("something else", "Avery"); err != nil {
		t.Fatalf("Ensure() second call error = %v", err)
	}

	content, head, err := svc.Head()
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if !strings.Contains(content, "Hello.") {
		t.Fatalf("unexpected head content: %q", content)
	}
	if head.Hash == "" {
		t.Fatal("expected head commit hash")
	}

	commit, err := svc.Commit("# About me\n\nUpdated.\n", "Avery", "Update about page")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if commit.Author != "Avery" {
		t.Errorf("commit author = %q", commit.Author)
	}

	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Hash != commit.Hash {
		t.Error("history not newest-first")
	}

	old, err := svc.GetByHash(history[1].Hash)
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if !strings.Contains(old, "Hello.") {
		t.Fatalf("unexpected old content: %q", old)
	}
}

func TestRestoreBringsBackOldContent(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.Ensure("version one", "Avery"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	first, _, err := svc.Head()
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}

	history, _ := svc.History(1)
	if _, err := svc.Commit("version two", "Avery", "Second version"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	restored, info, err := svc.Restore(history[0].Hash, "Avery")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored != first {
		t.Errorf("restored content = %q, want %q", restored, first)
	}
	if !strings.Contains(info.Message, history[0].Hash) {
		t.Errorf("restore commit message = %q", info.Message)
	}

	// Restore adds a commit rather than rewriting history.
	all, err := svc.History(0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 commits after restore, got %d", len(all))
	}
}

func TestConcurrentCommits(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.Ensure("start", "Avery"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if _, err := svc.Commit(fmt.Sprintf("content-%02d", idx), "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("Commit() concurrent error = %v", err)
		}
	}

	history, err := svc.History(100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) < writers+1 {
		t.Fatalf("expected at least %d commits, got %d", writers+1, len(history))
	}

	head, _, err := svc.Head()
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if !strings.HasPrefix(head, "content-") {
		t.Fatalf("unexpected head content: %q", head)
	}
}
