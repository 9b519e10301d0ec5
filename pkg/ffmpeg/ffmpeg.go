// Package ffmpeg drives the external transcoder binary. Device
// capture, interim encoding, and the final mux are all ffmpeg child
// processes consumed at the CLI boundary, nothing here decodes or
// encodes media by itself.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

const probeTimeout = 5 * time.Second

// Ffmpeg is a located and probed binary.
type Ffmpeg struct {
	Path    string
	Version string
	// how the binary was found, for the logs
	Source string

	log      *logger.Logger
	encoders map[string]struct{}
}

func exeName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// Locate finds a working ffmpeg binary: the configured path first,
// then the FFMPEG_PATH env var, the system PATH, and a few common
// install locations. Every candidate is probed with -version, a
// binary that is present but broken is skipped.
func Locate(conf config.Ffmpeg, log *logger.Logger) (*Ffmpeg, error) {
	type candidate struct {
		path   string
		source string
	}
	var cands []candidate

	if p := strings.TrimSpace(conf.Path); p != "" {
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			p = filepath.Join(p, exeName())
		}
		cands = append(cands, candidate{p, "config"})
	}
	if p := strings.TrimSpace(os.Getenv("FFMPEG_PATH")); p != "" {
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			p = filepath.Join(p, exeName())
		}
		cands = append(cands, candidate{p, "env FFMPEG_PATH"})
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		cands = append(cands, candidate{p, "system PATH"})
	}
	if dir, err := downloadDir(); err == nil {
		if p := findBinary(dir); p != "" {
			cands = append(cands, candidate{p, "downloaded"})
		}
	}
	for _, p := range commonLocations() {
		cands = append(cands, candidate{p, "common location"})
	}

	var searched []string
	for _, c := range cands {
		if !fileExists(c.path) {
			searched = append(searched, c.path)
			continue
		}
		version, err := probe(c.path)
		if err != nil {
			log.Warn().Err(err).Msgf("skipping broken ffmpeg at %v", c.path)
			searched = append(searched, c.path)
			continue
		}
		log.Info().Msgf("ffmpeg %v (%v)", c.path, c.source)
		return &Ffmpeg{Path: c.path, Version: version, Source: c.source, log: log}, nil
	}

	return nil, fmt.Errorf("ffmpeg not found, searched: %v", strings.Join(searched, ", "))
}

func commonLocations() []string {
	switch runtime.GOOS {
	case "windows":
		home, _ := os.UserHomeDir()
		return []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files (x86)\ffmpeg\bin\ffmpeg.exe`,
			filepath.Join(home, `ffmpeg\bin\ffmpeg.exe`),
			filepath.Join(home, `Downloads\ffmpeg\bin\ffmpeg.exe`),
		}
	case "darwin":
		return []string{"/opt/homebrew/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	default:
		return []string{"/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg", "/snap/bin/ffmpeg"}
	}
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// probe runs -version and returns its first line.
func probe(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg probe failed: %w", err)
	}
	version, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(version), nil
}

// hardware encoders in preference order
var hwEncoders = []string{"h264_nvenc", "h264_qsv", "h264_amf", "h264_videotoolbox"}

// H264Encoder picks the video encoder for the interim container.
// With hwAccel the available hardware encoders are preferred,
// libx264 is the fallback that every build carries.
func (f *Ffmpeg) H264Encoder(hwAccel bool) string {
	if !hwAccel {
		return "libx264"
	}
	if f.encoders == nil {
		f.encoders = f.listEncoders()
	}
	for _, enc := range hwEncoders {
		if _, ok := f.encoders[enc]; ok {
			f.log.Info().Msgf("using hardware encoder %v", enc)
			return enc
		}
	}
	return "libx264"
}

func (f *Ffmpeg) listEncoders() map[string]struct{} {
	res := map[string]struct{}{}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, f.Path, "-hide_banner", "-encoders").Output()
	if err != nil {
		f.log.Warn().Err(err).Msg("encoder list failed, keeping libx264")
		return res
	}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		// " V....D h264_nvenc  NVIDIA NVENC H.264 encoder"
		if len(fields) >= 2 && strings.HasPrefix(fields[0], "V") {
			res[fields[1]] = struct{}{}
		}
	}
	return res
}
