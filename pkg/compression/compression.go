package compression

import (
	"path/filepath"

	"github.com/glimlang/glimlang-recorder-dev/pkg/compression/zip"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

type Extractor interface {
	Extract(src string, dest string) ([]string, error)
}

// NewFromExt returns an extractor suitable for the given archive file
// or nil if the format is not supported.
func NewFromExt(path string, log *logger.Logger) Extractor {
	switch filepath.Ext(path) {
	case zip.Ext:
		return zip.New(log)
	default:
		return nil
	}
}
