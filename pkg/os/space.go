package os

import (
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// FreeSpace reports free bytes on the volume holding path.
// The path doesn't have to exist, its closest existing parent is probed.
func FreeSpace(path string) (uint64, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	for !Exists(p) {
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	usage, err := disk.Usage(p)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
