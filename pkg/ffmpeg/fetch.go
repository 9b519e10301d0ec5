package ffmpeg

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/downloader"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	"github.com/glimlang/glimlang-recorder-dev/pkg/os"
)

// Fetch downloads an ffmpeg build into the app data folder and
// returns the path of the unpacked binary.
func Fetch(conf config.Ffmpeg, log *logger.Logger) (string, error) {
	if conf.DownloadUrl == "" {
		return "", fmt.Errorf("no known ffmpeg builds for %v, install it manually", runtime.GOOS)
	}
	dest, err := downloadDir()
	if err != nil {
		return "", err
	}
	if err := os.CheckCreateDir(dest); err != nil {
		return "", err
	}
	log.Info().Msgf("downloading ffmpeg from %v", conf.DownloadUrl)
	d := downloader.NewDefaultDownloader(log)
	if _, fails := d.Download(dest, downloader.Download{Key: "ffmpeg", Address: conf.DownloadUrl}); len(fails) > 0 {
		return "", fmt.Errorf("couldn't download ffmpeg from %v", conf.DownloadUrl)
	}
	if p := findBinary(dest); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("no ffmpeg binary found in the downloaded archive")
}

func downloadDir() (string, error) {
	dir, err := os.AppDataDir("glim-recorder")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ffmpeg"), nil
}

// findBinary walks the folder looking for the ffmpeg executable.
func findBinary(dir string) (found string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == exeName() {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return
}
