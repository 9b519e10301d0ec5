package os

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Flock guards a recording output path against concurrent writers,
// including ones from another process.
type Flock struct {
	f *flock.Flock
}

func NewFileLock(path string) (*Flock, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "glim_recorder.lock")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return nil, err
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		_ = f.Close()
	}

	return &Flock{f: flock.New(path)}, nil
}

// TryLock grabs the lock without blocking, so a second session can be
// rejected immediately instead of queueing behind the first.
func (f *Flock) TryLock() (bool, error) { return f.f.TryLock() }

func (f *Flock) Unlock() error { return f.f.Unlock() }

func (f *Flock) Path() string { return f.f.Path() }
