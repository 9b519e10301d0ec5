// Package downloader fetches external tool builds and unpacks them in
// place.
package downloader

import (
	"os"

	"github.com/glimlang/glimlang-recorder-dev/pkg/compression"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

// Download is one file to fetch. The key names it in logs and error
// reports.
type Download struct {
	Key     string
	Address string
}

type client interface {
	request(dest string, urls ...Download) (files []string, fails []string)
}

// process is one post-download step, it returns the files that
// survived it
type process func(dest string, files []string, log *logger.Logger) []string

type Downloader struct {
	client client
	pipe   []process
	log    *logger.Logger
}

func NewDefaultDownloader(log *logger.Logger) Downloader {
	return Downloader{
		client: newGrabClient(log),
		pipe:   []process{unpack, clean},
		log:    log,
	}
}

// Download fetches the given files into the destination folder. It
// returns the successfully processed files and the failed keys.
func (d *Downloader) Download(dest string, urls ...Download) ([]string, []string) {
	files, fails := d.client.request(dest, urls...)
	for _, op := range d.pipe {
		files = op(dest, files, d.log)
	}
	return files, fails
}

// unpack extracts each downloaded archive into the destination.
func unpack(dest string, files []string, log *logger.Logger) []string {
	var res []string
	for _, file := range files {
		ex := compression.NewFromExt(file, log)
		if ex == nil {
			continue
		}
		if _, err := ex.Extract(file, dest); err != nil {
			log.Error().Err(err).Msgf("couldn't extract %v", file)
			continue
		}
		res = append(res, file)
	}
	return res
}

// clean removes the archives that went through unpack.
func clean(_ string, files []string, _ *logger.Logger) []string {
	var res []string
	for _, file := range files {
		if err := os.Remove(file); err == nil {
			res = append(res, file)
		}
	}
	return res
}
