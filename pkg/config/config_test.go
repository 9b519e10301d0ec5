package config

import (
	"os"
	"strings"
	"testing"
)

func TestConfigEnvOverride(t *testing.T) {
	_ = os.Setenv("GLIM_RECORDER_VIDEO_FPS", "60")
	defer func() { _ = os.Unsetenv("GLIM_RECORDER_VIDEO_FPS") }()

	var out RecorderConfig
	if err := LoadConfig(&out, ""); err != nil {
		t.Fatal(err)
	}
	if out.Recorder.Video.Fps != 60 {
		t.Errorf("fps %v, want the env override", out.Recorder.Video.Fps)
	}
}

func TestFixValuesDefaults(t *testing.T) {
	var c RecorderConfig
	c.fixValues()

	r := c.Recorder
	if r.Video.Fps != 30 || r.Video.Quality != "high" {
		t.Errorf("video defaults: %+v", r.Video)
	}
	if r.Audio.Rate != 44100 || r.Audio.Channels != 2 || r.Audio.Queue != 64 {
		t.Errorf("audio defaults: %+v", r.Audio)
	}
	if r.Output.Name == "" || r.Output.MinFreeMb != 500 {
		t.Errorf("output defaults: %+v", r.Output)
	}
	if r.Hotkey.Rawcode != 121 {
		t.Errorf("hotkey default: %+v", r.Hotkey)
	}
	if c.Preview.Codec != "vp8" || c.Preview.Fps != 15 {
		t.Errorf("preview defaults: %+v", c.Preview)
	}
}

func TestSegmentDurationGuard(t *testing.T) {
	var c RecorderConfig
	c.Recorder.Video.Segment.Enabled = true
	c.fixValues()
	if c.Recorder.Video.Segment.MaxDuration <= 0 {
		t.Error("enabled segmentation with no duration")
	}
}

func TestExpandUserTag(t *testing.T) {
	var c RecorderConfig
	c.Recorder.Output.Dir = "{user}/Videos"
	c.expandSpecialTags()
	if strings.Contains(c.Recorder.Output.Dir, "{user}") {
		t.Errorf("tag left in %v", c.Recorder.Output.Dir)
	}
	if !strings.HasSuffix(c.Recorder.Output.Dir, "Videos") {
		t.Errorf("suffix lost in %v", c.Recorder.Output.Dir)
	}
}

func TestAudioDeviceOrder(t *testing.T) {
	ids := Audio{Device: "", Loopback: "monitor"}.Devices()
	if len(ids) != 2 || ids[0] != "" || ids[1] != "monitor" {
		t.Errorf("devices %v, the default mic goes first", ids)
	}
	if ids := (Audio{}).Devices(); len(ids) != 1 {
		t.Errorf("devices %v without loopback", ids)
	}
}

func TestQualityPresets(t *testing.T) {
	if p := (Video{Quality: "ULTRA"}).Preset(); p.Name != "ultra" {
		t.Errorf("preset %v, case should not matter", p.Name)
	}
	if p := (Video{Quality: "cinematic"}).Preset(); p.Name != "high" {
		t.Errorf("preset %v, unknown falls back to high", p.Name)
	}
	if KnownQuality("cinematic") || !KnownQuality("Low") {
		t.Error("known quality check")
	}
}
