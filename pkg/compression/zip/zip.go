package zip

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

const Ext = ".zip"

type Extractor struct {
	log *logger.Logger
}

func New(log *logger.Logger) Extractor {
	return Extractor{log: log}
}

// Extract unpacks the source archive into the destination folder and
// returns the list of extracted files.
func (e Extractor) Extract(src string, dest string) (files []string, err error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return files, err
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		path := filepath.Join(dest, f.Name)

		// negate ZipSlip vulnerability (http://bit.ly/2MsjAWE)
		if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
			e.log.Warn().Msgf("%s is an illegal path", path)
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, os.ModePerm); err != nil {
				e.log.Error().Err(err).Msgf("couldn't make the dir %v", path)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			e.log.Error().Err(err).Msgf("couldn't make the dir for %v", path)
			continue
		}
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			e.log.Error().Err(err).Msgf("couldn't open the file %v", path)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			e.log.Error().Err(err).Msgf("couldn't read the archive file %v", f.Name)
			_ = out.Close()
			continue
		}

		if _, err = io.Copy(out, rc); err != nil {
			e.log.Error().Err(err).Msgf("couldn't copy the file %v", path)
			_ = out.Close()
			_ = rc.Close()
			continue
		}

		_ = out.Close()
		_ = rc.Close()

		files = append(files, path)
	}
	return files, nil
}
