package storage

import (
	"context"
	"errors"
	"io"
	"os"

	"cloud.google.com/go/storage"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

// GoogleClient streams recordings into a Google Cloud Storage bucket.
// Credentials come from the usual application default chain.
type GoogleClient struct {
	bucket *storage.BucketHandle
	log    *logger.Logger
}

func NewGoogleClient(bucket string, log *logger.Logger) (*GoogleClient, error) {
	if bucket == "" {
		return nil, errors.New("no bucket configured")
	}
	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, err
	}
	return &GoogleClient{bucket: client.Bucket(bucket), log: log}, nil
}

func (c *GoogleClient) Save(name string, srcFile string) error {
	if c == nil {
		return errors.New("cloud storage was not initialized")
	}

	f, err := os.Open(srcFile)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	wc := c.bucket.Object(name).NewWriter(context.Background())
	n, err := io.Copy(wc, f)
	if err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	c.log.Info().Msgf("uploaded %v (%d bytes)", name, n)
	return nil
}
