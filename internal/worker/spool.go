// Package worker holds the producers that feed reporters.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/muxship/internal/stage"
	"github.com/bft-labs/muxship/pkg/log"
)

// FailedDir is the spool subdirectory that receives undeliverable files.
const FailedDir = "failed"

// Submitter accepts requests. *stage.Reporter implements it.
type Submitter interface {
	Submit(req stage.Request) error
}

// Spool ships every file that appears in a directory, one payload per file.
// Producers publish a file by renaming it into the directory; dotfiles and
// *.tmp names are ignored. Delivered files are removed, undeliverable ones
// are moved to FailedDir.
type Spool struct {
	dir     string
	targets []Submitter
	log     log.Logger

	mu   sync.Mutex
	seen map[string]bool
	next int
}

// NewSpool creates a spool over dir that spreads files across targets in
// round-robin order.
func NewSpool(dir string, targets []Submitter, logger log.Logger) *Spool {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Spool{
		dir:     dir,
		targets: targets,
		log:     logger.With(log.String("component", "spool"), log.String("dir", dir)),
		seen:    make(map[string]bool),
	}
}

// Run submits the files already present, then watches for new ones until
// ctx is done.
func (s *Spool) Run(ctx context.Context) error {
	if len(s.targets) == 0 {
		return fmt.Errorf("spool: no reporters")
	}
	if err := os.MkdirAll(filepath.Join(s.dir, FailedDir), 0o755); err != nil {
		return fmt.Errorf("spool: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("spool: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("spool: watch %s: %w", s.dir, err)
	}

	// Files renamed in between the Add and the scan are picked up twice; seen
	// filters the duplicate.
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("spool: scan: %w", err)
	}
	backlog := 0
	for _, e := range entries {
		if e.Type().IsRegular() && !ignored(e.Name()) {
			backlog++
			s.submit(e.Name())
		}
	}
	s.log.Info("spool watching", log.Int("backlog", backlog))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			if filepath.Dir(event.Name) != filepath.Clean(s.dir) {
				continue
			}
			s.submit(filepath.Base(event.Name))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watcher error", log.Err(err))
		}
	}
}

func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") || name == FailedDir
}

func (s *Spool) submit(name string) {
	if ignored(name) {
		return
	}

	s.mu.Lock()
	if s.seen[name] {
		s.mu.Unlock()
		return
	}
	s.seen[name] = true
	target := s.targets[s.next%len(s.targets)]
	s.next++
	s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.forget(name)
		return
	}
	body, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn("read spooled file", log.String("file", name), log.Err(err))
		s.forget(name)
		return
	}

	if err := target.Submit(stage.Request{ID: name, Body: body, Worker: s}); err != nil {
		s.log.Error("reporter rejected file", log.String("file", name), log.Err(err))
		s.forget(name)
		return
	}
	s.log.Debug("file submitted", log.String("file", name), log.Int("bytes", len(body)))
}

func (s *Spool) forget(name string) {
	s.mu.Lock()
	delete(s.seen, name)
	s.mu.Unlock()
}

// OnDelivered removes the delivered file.
func (s *Spool) OnDelivered(req stage.Request) {
	if err := os.Remove(filepath.Join(s.dir, req.ID)); err != nil && !os.IsNotExist(err) {
		s.log.Warn("remove delivered file", log.String("file", req.ID), log.Err(err))
	}
	s.forget(req.ID)
	s.log.Debug("file delivered", log.String("file", req.ID))
}

// OnFailed parks the file in FailedDir.
func (s *Spool) OnFailed(req stage.Request, err error) {
	dst := filepath.Join(s.dir, FailedDir, req.ID)
	if mvErr := os.Rename(filepath.Join(s.dir, req.ID), dst); mvErr != nil {
		s.log.Error("park failed file", log.String("file", req.ID), log.Err(mvErr))
	}
	s.forget(req.ID)
	s.log.Warn("file undeliverable", log.String("file", req.ID), log.Err(err))
}
