package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/muxship/internal/stage"
)

type chanSubmitter struct {
	reqs chan stage.Request
}

func newChanSubmitter() *chanSubmitter {
	return &chanSubmitter{reqs: make(chan stage.Request, 16)}
}

func (c *chanSubmitter) Submit(req stage.Request) error {
	c.reqs <- req
	return nil
}

func (c *chanSubmitter) next(t *testing.T) stage.Request {
	t.Helper()
	select {
	case r := <-c.reqs:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no request submitted")
		return stage.Request{}
	}
}

func (c *chanSubmitter) none(t *testing.T) {
	t.Helper()
	select {
	case r := <-c.reqs:
		t.Fatalf("unexpected request %q", r.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func startSpool(t *testing.T, dir string, targets ...Submitter) *Spool {
	t.Helper()
	s := NewSpool(dir, targets, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	return s
}

func publish(t *testing.T, dir, name, body string) {
	t.Helper()
	tmp := filepath.Join(dir, name+".tmp")
	if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		t.Fatal(err)
	}
}

func TestSpool_BacklogThenWatched(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.bin"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := newChanSubmitter()
	startSpool(t, dir, sub)

	if r := sub.next(t); r.ID != "old.bin" || string(r.Body) != "old" {
		t.Errorf("backlog request = %q %q", r.ID, r.Body)
	}

	publish(t, dir, "new.bin", "fresh")
	if r := sub.next(t); r.ID != "new.bin" || string(r.Body) != "fresh" {
		t.Errorf("watched request = %q %q", r.ID, r.Body)
	}
	sub.none(t)
}

func TestSpool_RoundRobin(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1", "2", "3", "4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	a, b := newChanSubmitter(), newChanSubmitter()
	startSpool(t, dir, a, b)

	for _, want := range []string{"1", "3"} {
		if r := a.next(t); r.ID != want {
			t.Errorf("target a got %q, want %q", r.ID, want)
		}
	}
	for _, want := range []string{"2", "4"} {
		if r := b.next(t); r.ID != want {
			t.Errorf("target b got %q, want %q", r.ID, want)
		}
	}
}

func TestSpool_Outcomes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ok.bin", "bad.bin"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sub := newChanSubmitter()
	s := startSpool(t, dir, sub)

	reqs := map[string]stage.Request{}
	for i := 0; i < 2; i++ {
		r := sub.next(t)
		reqs[r.ID] = r
	}

	s.OnDelivered(reqs["ok.bin"])
	s.OnFailed(reqs["bad.bin"], errors.New("gave up"))

	if _, err := os.Stat(filepath.Join(dir, "ok.bin")); !os.IsNotExist(err) {
		t.Error("delivered file still present")
	}
	if _, err := os.Stat(filepath.Join(dir, FailedDir, "bad.bin")); err != nil {
		t.Errorf("failed file not parked: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.bin")); !os.IsNotExist(err) {
		t.Error("failed file still in spool")
	}
}

func TestSpool_NoTargets(t *testing.T) {
	if err := NewSpool(t.TempDir(), nil, nil).Run(context.Background()); err == nil {
		t.Error("Run() without targets succeeded")
	}
}
