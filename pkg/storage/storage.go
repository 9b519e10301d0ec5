// Package storage uploads finished recordings to a cloud bucket.
// Uploads happen after a session completed and are best effort, a
// failed upload never touches the local deliverable.
package storage

import (
	"fmt"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

type Storage interface {
	// Save uploads the file at srcFile under the given object name.
	Save(name string, srcFile string) error
}

// Store picks the upload backend for the configured provider. An
// empty provider means keep everything local.
func Store(conf config.Storage, log *logger.Logger) (Storage, error) {
	switch conf.Provider {
	case "gcs":
		return NewGoogleClient(conf.Bucket, log)
	case "oracle":
		return NewOracleClient(conf.Url, log)
	case "":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %v", conf.Provider)
	}
}
