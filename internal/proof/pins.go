package proof

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceInterval is how long the watcher waits after a filesystem event
// before re-hashing, so that write+rename deploys settle first.
const DebounceInterval = 100 * time.Millisecond

// Pins records the SHA-256 of each proving artifact. Once an artifact's
// content differs from its pin, requests using it fail with
// ErrArtifactChanged until Repin is called.
type Pins struct {
	mu      sync.Mutex
	hashes  map[string][sha256.Size]byte
	changed map[string]bool
}

// NewPins hashes every path. Missing files are an error.
func NewPins(paths ...string) (*Pins, error) {
	p := &Pins{
		hashes:  make(map[string][sha256.Size]byte, len(paths)),
		changed: make(map[string]bool),
	}
	for _, path := range paths {
		sum, err := HashFile(path)
		if err != nil {
			return nil, err
		}
		p.hashes[filepath.Clean(path)] = sum
	}
	return p, nil
}

func HashFile(path string) ([sha256.Size]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("hash %s: %w", path, err)
	}

	var result [sha256.Size]byte
	copy(result[:], h.Sum(nil))
	return result, nil
}

// Check fails when any pinned path among paths has changed. Unpinned paths
// pass.
func (p *Pins) Check(paths ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, path := range paths {
		if p.changed[filepath.Clean(path)] {
			return ErrArtifactChanged.Wrap(fmt.Errorf("%s", path))
		}
	}
	return nil
}

// Verify re-hashes path and marks it changed when the content differs from
// its pin. It reports whether the artifact is still intact.
func (p *Pins) Verify(path string) bool {
	path = filepath.Clean(path)
	p.mu.Lock()
	want, ok := p.hashes[path]
	p.mu.Unlock()
	if !ok {
		return true
	}
	got, err := HashFile(path)
	intact := err == nil && got == want

	p.mu.Lock()
	defer p.mu.Unlock()
	if !intact {
		p.changed[path] = true
	}
	return !p.changed[path]
}

// Repin re-hashes every pinned artifact and clears the changed marks.
func (p *Pins) Repin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	hashes := make(map[string][sha256.Size]byte, len(p.hashes))
	for path := range p.hashes {
		sum, err := HashFile(path)
		if err != nil {
			return err
		}
		hashes[path] = sum
	}
	p.hashes = hashes
	clear(p.changed)
	return nil
}

// Watch watches the directories of the pinned artifacts until ctx is done
// and verifies an artifact whenever it is written, created, renamed or
// removed.
func (p *Pins) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	p.mu.Lock()
	dirs := make(map[string]struct{})
	for path := range p.hashes {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	p.mu.Unlock()
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(event.Name)
			if !p.pinned(path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(DebounceInterval, func() {
				if !p.Verify(path) {
					slog.WarnContext(ctx, "proving artifact changed", "path", path)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.ErrorContext(ctx, "artifact watcher error", "error", err)
		}
	}
}

func (p *Pins) pinned(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.hashes[path]
	return ok
}
