package audit

import (
	"sync"
	"testing"
)

func TestChainVerifies(t *testing.T) {
	l := New()
	l.Append("signup alice")
	l.Appendf("vault %s created by %s", "v1", "alice")
	l.Append("share v1 -> bob")
	if err := l.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := len(l.Entries()); got != 3 {
		t.Fatalf("entries = %d, want 3", got)
	}
}

func TestTamperBreaksChain(t *testing.T) {
	l := New()
	l.Append("signup alice")
	l.Append("signup bob")
	l.entries[0].What = "signup mallory"
	if err := l.Verify(); err == nil {
		t.Fatal("expected broken chain after edit")
	}
}

func TestConcurrentAppend(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Append("event")
			}
		}()
	}
	wg.Wait()
	if err := l.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := len(l.Entries()); got != 800 {
		t.Fatalf("entries = %d, want 800", got)
	}
}
