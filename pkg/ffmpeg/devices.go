package ffmpeg

import (
	"context"
	"regexp"
	"strings"
)

// Device is one capture device as the platform backend names it.
// Ids are opaque and go back into capture commands verbatim.
type Device struct {
	ID   string
	Name string
	Kind string // audio | video
}

// ListDevices enumerates capture devices through the platform
// grabber. Never fails hard: a recorder without devices still records
// the screen.
func (f *Ffmpeg) ListDevices(ctx context.Context) []Device {
	out, err := f.Output(ctx, ListDevicesArgs())
	if err != nil {
		f.log.Warn().Err(err).Msg("device listing failed")
		return nil
	}
	return ParseDevices(out)
}

var (
	dshowDev  = regexp.MustCompile(`"([^"]+)"(?:\s+\((audio|video)\))?`)
	avfDev    = regexp.MustCompile(`\[(\d+)\]\s+(.+)`)
	pulseName = regexp.MustCompile(`^(\S+)\s+\[([^\]]*)\]`)
)

// ParseDevices scrapes the enumeration output of the platform
// grabber. Three formats exist and all of them arrive as plain log
// lines on stderr, hence the line scraping.
func ParseDevices(out string) (devices []Device) {
	kind := ""
	for _, line := range strings.Split(out, "\n") {
		low := strings.ToLower(line)
		switch {
		case strings.Contains(low, "video devices"):
			kind = "video"
			continue
		case strings.Contains(low, "audio devices"):
			kind = "audio"
			continue
		case strings.Contains(low, "sources for pulse"):
			kind = "audio"
			continue
		}

		if strings.Contains(line, "Alternative name") {
			continue
		}

		if i := strings.Index(line, "] "); i >= 0 && strings.HasPrefix(line, "[") {
			line = line[i+2:]
		}
		// the default pulse source is marked with a star
		line = strings.TrimPrefix(strings.TrimSpace(line), "* ")
		if line == "" || kind == "" {
			continue
		}

		if m := dshowDev.FindStringSubmatch(line); m != nil {
			k := kind
			if m[2] != "" {
				k = m[2]
			}
			devices = append(devices, Device{ID: m[1], Name: m[1], Kind: k})
			continue
		}
		if m := avfDev.FindStringSubmatch(line); m != nil {
			devices = append(devices, Device{ID: m[1], Name: strings.TrimSpace(m[2]), Kind: kind})
			continue
		}
		if m := pulseName.FindStringSubmatch(line); m != nil {
			name := m[2]
			if name == "" {
				name = m[1]
			}
			devices = append(devices, Device{ID: m[1], Name: name, Kind: kind})
		}
	}
	return
}
