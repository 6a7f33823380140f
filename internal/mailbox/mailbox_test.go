package mailbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSendRecv_FIFO(t *testing.T) {
	tx, rx := New[int]()

	for i := 0; i < 100; i++ {
		if err := tx.Send(i); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
	}

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		v, ok := rx.Recv(ctx)
		if !ok {
			t.Fatalf("Recv() ok = false at %d", i)
		}
		if v != i {
			t.Fatalf("Recv() = %d, want %d", v, i)
		}
	}
	if rx.Len() != 0 {
		t.Errorf("Len() = %d, want 0", rx.Len())
	}
}

func TestRecv_BlocksUntilSend(t *testing.T) {
	tx, rx := New[string]()

	got := make(chan string, 1)
	go func() {
		v, _ := rx.Recv(context.Background())
		got <- v
	}()

	time.Sleep(10 * time.Millisecond)
	if err := tx.Send("hello"); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-got:
		if v != "hello" {
			t.Errorf("Recv() = %q, want hello", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv() did not return after Send")
	}
}

func TestClose_RejectsSendsKeepsBuffered(t *testing.T) {
	tx, rx := New[int]()
	_ = tx.Send(1)
	_ = tx.Send(2)

	rx.Close()

	if err := tx.Send(3); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close error = %v, want ErrClosed", err)
	}
	if !tx.Closed() {
		t.Error("Closed() = false after receiver Close")
	}

	ctx := context.Background()
	for _, want := range []int{1, 2} {
		v, ok := rx.Recv(ctx)
		if !ok || v != want {
			t.Fatalf("Recv() = (%d, %v), want (%d, true)", v, ok, want)
		}
	}
	if _, ok := rx.Recv(ctx); ok {
		t.Error("Recv() ok = true on closed empty queue")
	}
}

func TestDrop_LastHandleEndsStream(t *testing.T) {
	tx, rx := New[int]()
	clone := tx.Clone()

	_ = clone.Send(7)
	tx.Drop()
	tx.Drop() // no-op

	if err := tx.Send(1); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() on dropped handle error = %v, want ErrClosed", err)
	}
	if err := clone.Send(8); err != nil {
		t.Fatalf("Send() on live clone error = %v", err)
	}

	done := make(chan []int, 1)
	go func() {
		var got []int
		for {
			v, ok := rx.Recv(context.Background())
			if !ok {
				done <- got
				return
			}
			got = append(got, v)
		}
	}()

	clone.Drop()

	select {
	case got := <-done:
		if len(got) != 2 || got[0] != 7 || got[1] != 8 {
			t.Errorf("received %v, want [7 8]", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv() did not finish after last Drop")
	}
}

func TestClone_AfterAllDroppedIsDead(t *testing.T) {
	tx, rx := New[int]()
	tx.Drop()

	revived := tx.Clone()
	if err := revived.Send(1); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() on clone of finished queue error = %v, want ErrClosed", err)
	}
	if _, ok := rx.TryRecv(); ok {
		t.Error("TryRecv() ok = true on finished queue")
	}
}

func TestRecv_ContextCanceled(t *testing.T) {
	_, rx := New[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := rx.Recv(ctx); ok {
		t.Error("Recv() ok = true after context deadline")
	}
}

func TestConcurrentProducers(t *testing.T) {
	tx, rx := New[int]()
	const producers, perProducer = 8, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		h := tx.Clone()
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			defer h.Drop()
			for i := 0; i < perProducer; i++ {
				if err := h.Send(base*perProducer + i); err != nil {
					t.Errorf("Send() error = %v", err)
					return
				}
			}
		}(p)
	}
	tx.Drop()

	// Per-producer order must be preserved even though producers interleave.
	last := make(map[int]int)
	count := 0
	for {
		v, ok := rx.Recv(context.Background())
		if !ok {
			break
		}
		p := v / perProducer
		if prev, seen := last[p]; seen && v <= prev {
			t.Fatalf("producer %d out of order: %d after %d", p, v, prev)
		}
		last[p] = v
		count++
	}
	wg.Wait()

	if count != producers*perProducer {
		t.Errorf("received %d items, want %d", count, producers*perProducer)
	}
}
