package recorder

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

var defaultBufferSize = 4096

type file struct {
	sync.Mutex

	f *os.File
	w *bufio.Writer
}

func newFile(path string) (*file, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return &file{f: f, w: bufio.NewWriterSize(f, defaultBufferSize)}, nil
}

func (f *file) Flush() error {
	f.Lock()
	defer f.Unlock()
	return f.w.Flush()
}

func (f *file) Close() error { return f.f.Close() }

func (f *file) Size() (int64, error) {
	f.Lock()
	defer f.Unlock()
	inf, err := f.f.Stat()
	if err != nil {
		return -1, err
	}
	return inf.Size(), nil
}

func (f *file) Write(data []byte) error {
	f.Lock()
	n, err := f.w.Write(data)
	f.Unlock()
	if err != nil {
		if n < len(data) {
			return fmt.Errorf("write size mismatch [%v!=%v], %v", n, len(data), err)
		}
		return err
	}
	return nil
}

// WriteAtStart writes data into beginning of the file.
// Make sure that underlying file doesn't use the O_APPEND directive.
func (f *file) WriteAtStart(data []byte) error {
	if err := f.Flush(); err != nil {
		return err
	}
	if _, err := f.f.Seek(0, 0); err != nil {
		return err
	}
	return f.Write(data)
}
