package config

import "strings"

// QualityPreset maps a named quality level onto concrete encoder
// parameters. Scale divides the capture resolution, Crf and Speed
// feed libx264, Bitrate (kbps) feeds hardware encoders which have no
// usable constant-quality mode across vendors.
type QualityPreset struct {
	Name    string
	Scale   int
	Speed   string
	Crf     int
	Bitrate int
}

var qualityPresets = map[string]QualityPreset{
	"low":    {Name: "low", Scale: 2, Speed: "ultrafast", Crf: 28, Bitrate: 4000},
	"medium": {Name: "medium", Scale: 1, Speed: "fast", Crf: 25, Bitrate: 8000},
	"high":   {Name: "high", Scale: 1, Speed: "medium", Crf: 23, Bitrate: 12000},
	"ultra":  {Name: "ultra", Scale: 1, Speed: "slow", Crf: 20, Bitrate: 20000},
}

// Preset resolves the configured quality name, falling back to high
// for unknown values.
func (v Video) Preset() QualityPreset {
	if p, ok := qualityPresets[strings.ToLower(v.Quality)]; ok {
		return p
	}
	return qualityPresets["high"]
}

func KnownQuality(name string) bool {
	_, ok := qualityPresets[strings.ToLower(name)]
	return ok
}
