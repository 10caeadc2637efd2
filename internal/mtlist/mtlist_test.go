package mtlist

import (
	"sync"
	"testing"
	"time"
)

func TestPushTryPopFIFO(t *testing.T) {
	l := New[int]()

	if _, ok := l.TryPop(); ok {
		t.Fatal("TryPop on empty list returned ok")
	}

	for i := 0; i < 100; i++ {
		l.Push(i)
	}

	if got := l.Len(); got != 100 {
		t.Fatalf("Len = %d, want 100", got)
	}

	for i := 0; i < 100; i++ {
		v, ok := l.TryPop()
		if !ok {
			t.Fatalf("TryPop %d returned !ok", i)
		}
		if v != i {
			t.Fatalf("TryPop returned %d, want %d (FIFO order violated)", v, i)
		}
	}

	if got := l.Len(); got != 0 {
		t.Fatalf("Len after draining = %d, want 0", got)
	}
}

func TestPopWaitDeliversPushedItem(t *testing.T) {
	l := New[string]()

	done := make(chan string, 1)
	go func() {
		v, ok := l.PopWait()
		if !ok {
			done <- "!ok"
			return
		}
		done <- v
	}()

	// Give the goroutine a moment to block in PopWait.
	time.Sleep(10 * time.Millisecond)
	l.Push("hello")

	select {
	case v := <-done:
		if v != "hello" {
			t.Fatalf("PopWait returned %q, want %q", v, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PopWait did not wake after Push")
	}
}

func TestCloseWakesAllWaiters(t *testing.T) {
	l := New[int]()

	const waiters = 4
	var wg sync.WaitGroup
	results := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := l.PopWait()
			results <- ok
		}()
	}

	time.Sleep(10 * time.Millisecond)
	l.Close()

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("waiters did not wake after Close")
	}

	for i := 0; i < waiters; i++ {
		if ok := <-results; ok {
			t.Fatal("PopWait returned ok=true after Close on empty list")
		}
	}
}

func TestPopWaitAfterCloseIgnoresQueuedItems(t *testing.T) {
	l := New[int]()
	l.Push(1)
	l.Push(2)
	l.Close()

	if _, ok := l.PopWait(); ok {
		t.Fatal("PopWait returned an item after Close")
	}

	// TryPop still drains leftovers so callers can account for them.
	if v, ok := l.TryPop(); !ok || v != 1 {
		t.Fatalf("TryPop after Close = (%d, %v), want (1, true)", v, ok)
	}
	if v, ok := l.TryPop(); !ok || v != 2 {
		t.Fatalf("TryPop after Close = (%d, %v), want (2, true)", v, ok)
	}
	if !l.Closed() {
		t.Fatal("Closed() = false after Close")
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	l := New[int]()

	const (
		producers        = 4
		itemsPerProducer = 1000
		consumers        = 4
	)

	var produced sync.WaitGroup
	for p := 0; p < producers; p++ {
		produced.Add(1)
		go func(p int) {
			defer produced.Done()
			for i := 0; i < itemsPerProducer; i++ {
				l.Push(p*itemsPerProducer + i)
			}
		}(p)
	}

	var mu sync.Mutex
	seen := make(map[int]bool)
	var consumed sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consumed.Add(1)
		go func() {
			defer consumed.Done()
			for {
				v, ok := l.PopWait()
				if !ok {
					return
				}
				mu.Lock()
				if seen[v] {
					mu.Unlock()
					t.Errorf("item %d consumed twice", v)
					return
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}

	produced.Wait()
	// Wait for consumers to drain the list, then release them.
	deadline := time.Now().Add(5 * time.Second)
	for l.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	l.Close()
	consumed.Wait()

	if len(seen) != producers*itemsPerProducer {
		t.Fatalf("consumed %d distinct items, want %d", len(seen), producers*itemsPerProducer)
	}
}
