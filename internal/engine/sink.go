package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/ivlev/stellarfield/internal/capture"
)

const lockName = ".stellarfield.lock"

// DirSink writes artifacts into a directory. Lock keeps a second batch from
// writing into the same directory at the same time.
type DirSink struct {
	Dir  string
	lock *flock.Flock
}

func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DirSink{Dir: dir, lock: flock.New(filepath.Join(dir, lockName))}, nil
}

// Lock takes the directory lock without waiting.
func (d *DirSink) Lock() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", d.Dir, err)
	}
	if !ok {
		return fmt.Errorf("output dir %s is used by another batch", d.Dir)
	}
	return nil
}

func (d *DirSink) Unlock() error {
	return d.lock.Unlock()
}

func (d *DirSink) Save(name string, a *capture.Artifact) (string, error) {
	path := filepath.Join(d.Dir, capture.Filename(name, a))
	if err := os.WriteFile(path, a.Data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// MemorySink keeps artifacts in memory, keyed by file name.
type MemorySink struct {
	mu    sync.Mutex
	Files map[string][]byte
}

func (m *MemorySink) Save(name string, a *capture.Artifact) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Files == nil {
		m.Files = make(map[string][]byte)
	}
	fn := capture.Filename(name, a)
	m.Files[fn] = a.Data
	return fn, nil
}
