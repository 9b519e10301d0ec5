package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/os"
	flag "github.com/spf13/pflag"
)

type RecorderConfig struct {
	Recorder   Recorder
	Api        Api
	Monitoring Monitoring
	Preview    Preview
	Storage    Storage
	Version    Version
}

type Version int

type Recorder struct {
	Debug bool
	Tag   string
	// hard session length cap, 0 means unbounded
	MaxDuration time.Duration
	Video       Video
	Audio       Audio
	Overlay     Overlay
	Output      Output
	Ffmpeg      Ffmpeg
	Hotkey      Hotkey
}

// Snapshot is the per-session copy of the recorder settings. The
// struct is a plain value, so a copy fully detaches a running session
// from any further config edits.
type Snapshot = Recorder

type Hotkey struct {
	Enabled bool
	// raw key code of the stop key, 121 is F10
	Rawcode uint16
}

type Video struct {
	Fps     int
	Monitor int
	Region  Region
	Quality string
	HwAccel bool
	// single screen grab time limit
	CaptureTimeout time.Duration
	// consecutive hard grab failures before the session dies
	FailLimit int
	Segment   Segment
}

type Region struct {
	X int
	Y int
	W int
	H int
}

func (r Region) Defined() bool { return r.W > 0 && r.H > 0 }

type Segment struct {
	Enabled     bool
	MaxDuration time.Duration
}

type Audio struct {
	Enabled  bool
	Device   string
	Loopback string
	Rate     int
	Channels int
	// block queue capacity, oldest blocks are dropped on overflow
	Queue          int
	SaveSeparately bool
}

// Devices lists enabled device ids, the default mic first.
func (a Audio) Devices() (ids []string) {
	ids = append(ids, a.Device)
	if a.Loopback != "" {
		ids = append(ids, a.Loopback)
	}
	return
}

type Overlay struct {
	Cursor Cursor
	Webcam Webcam
	Stamp  bool
}

type Cursor struct {
	Enabled bool
	Radius  int
	Alpha   float64
	Color   RGB
}

type RGB struct {
	R uint8
	G uint8
	B uint8
}

type Webcam struct {
	Enabled  bool
	Device   string
	Fps      int
	Width    int
	Height   int
	Position string
	WidthPct int
	// reuse the buffered webcam frame for this many video ticks
	Refresh int
}

type Output struct {
	Dir       string
	Name      string
	MinFreeMb uint64
}

type Ffmpeg struct {
	Path        string
	Download    bool
	DownloadUrl string
	MuxTimeout  time.Duration
}

type Api struct {
	Enabled bool
	Server  Server
}

type Server struct {
	Address string
	Https   bool
	Tls     struct {
		Address   string
		Domain    string
		HttpsKey  string
		HttpsCert string
	}
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}

type Monitoring struct {
	Port             int
	URLPrefix        string
	MetricEnabled    bool `json:"metric_enabled"`
	ProfilingEnabled bool `json:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

type Preview struct {
	Enabled bool
	Codec   string
	// kbps for the preview stream, not the recording
	Bitrate int
	Fps     int
	Height  int
	Webrtc  Webrtc
}

type Webrtc struct {
	DisableDefaultInterceptors bool
	IceServers                 []IceServer
	IcePorts                   struct {
		Min uint16
		Max uint16
	}
	IceIpMap   string
	SinglePort int
	LogLevel   int
}

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

func (w *Webrtc) HasPortRange() bool  { return w.IcePorts.Min > 0 && w.IcePorts.Max > 0 }
func (w *Webrtc) HasSinglePort() bool { return w.SinglePort > 0 }
func (w *Webrtc) HasIceIpMap() bool   { return w.IceIpMap != "" }

type Storage struct {
	Provider string
	Bucket   string
	// Url is the pre-authenticated request endpoint for the oracle provider
	Url string
}

// allows custom config path
var recorderConfigPath string

func NewRecorderConfig() (conf RecorderConfig) {
	if err := LoadConfig(&conf, recorderConfigPath); err != nil {
		panic(err)
	}
	conf.expandSpecialTags()
	conf.fixValues()
	return
}

// ParseFlags updates config values from passed runtime flags.
// Define own flags with default value set to the current config param.
// Don't forget to call flag.Parse().
func (c *RecorderConfig) ParseFlags() {
	flag.StringVar(&c.Recorder.Output.Dir, "folder", c.Recorder.Output.Dir, "Recording output folder")
	flag.StringVar(&c.Recorder.Output.Name, "name", c.Recorder.Output.Name, "Recording file name template")
	flag.IntVar(&c.Recorder.Video.Fps, "fps", c.Recorder.Video.Fps, "Target frame rate")
	flag.StringVar(&c.Recorder.Video.Quality, "quality", c.Recorder.Video.Quality, "Quality preset (low, medium, high, ultra)")
	flag.IntVar(&c.Recorder.Video.Monitor, "monitor", c.Recorder.Video.Monitor, "Monitor index to capture")
	flag.BoolVar(&c.Recorder.Audio.Enabled, "audio", c.Recorder.Audio.Enabled, "Record audio")
	flag.DurationVar(&c.Recorder.MaxDuration, "duration", c.Recorder.MaxDuration, "Stop after this long (0 = run until stopped)")
	flag.BoolVar(&c.Recorder.Debug, "debug", c.Recorder.Debug, "Enable debug logging")
	flag.IntVar(&c.Monitoring.Port, "monitoring.port", c.Monitoring.Port, "Monitoring server port")
	flag.StringVar(&recorderConfigPath, "conf", recorderConfigPath, "Set custom configuration file path")
}

// expandSpecialTags replaces all the special tags in the config.
func (c *RecorderConfig) expandSpecialTags() {
	tag := "{user}"
	for _, dir := range []*string{&c.Recorder.Output.Dir, &c.Recorder.Ffmpeg.Path} {
		if *dir == "" || !strings.Contains(*dir, tag) {
			continue
		}
		home, err := os.GetUserHome()
		if err != nil {
			panic(fmt.Sprintf("couldn't read user home directory, %v", err))
		}
		*dir = filepath.FromSlash(strings.Replace(*dir, tag, home, -1))
	}
}

// fixValues tries to fix some values otherwise hard to set externally.
func (c *RecorderConfig) fixValues() {
	r := &c.Recorder
	if r.Video.Fps <= 0 {
		r.Video.Fps = 30
	}
	if r.Video.Quality == "" {
		r.Video.Quality = "high"
	}
	if r.Video.CaptureTimeout <= 0 {
		r.Video.CaptureTimeout = 250 * time.Millisecond
	}
	if r.Video.FailLimit <= 0 {
		r.Video.FailLimit = 30
	}
	if r.Audio.Rate <= 0 {
		r.Audio.Rate = 44100
	}
	if r.Audio.Channels <= 0 {
		r.Audio.Channels = 2
	}
	if r.Audio.Queue <= 0 {
		r.Audio.Queue = 64
	}
	if r.Overlay.Cursor.Radius <= 0 {
		r.Overlay.Cursor.Radius = 20
	}
	if r.Overlay.Cursor.Alpha <= 0 {
		r.Overlay.Cursor.Alpha = 0.35
	}
	if r.Overlay.Cursor.Color == (RGB{}) {
		r.Overlay.Cursor.Color = RGB{R: 255, G: 255, B: 0}
	}
	if r.Overlay.Webcam.Position == "" {
		r.Overlay.Webcam.Position = "bottom-right"
	}
	if r.Overlay.Webcam.WidthPct <= 0 {
		r.Overlay.Webcam.WidthPct = 20
	}
	if r.Overlay.Webcam.Refresh <= 0 {
		r.Overlay.Webcam.Refresh = 3
	}
	if r.Overlay.Webcam.Fps <= 0 {
		r.Overlay.Webcam.Fps = 10
	}
	if r.Output.Name == "" {
		r.Output.Name = "rec_%date:20060102_150405%.mp4"
	}
	if r.Output.MinFreeMb == 0 {
		r.Output.MinFreeMb = 500
	}
	if r.Ffmpeg.MuxTimeout <= 0 {
		r.Ffmpeg.MuxTimeout = 300 * time.Second
	}
	if r.Hotkey.Rawcode == 0 {
		r.Hotkey.Rawcode = 121
	}
	if r.Ffmpeg.DownloadUrl == "" {
		switch runtime.GOOS {
		case "windows":
			r.Ffmpeg.DownloadUrl = "https://www.gyan.dev/ffmpeg/builds/ffmpeg-release-essentials.zip"
		case "darwin":
			r.Ffmpeg.DownloadUrl = "https://evermeet.cx/ffmpeg/getrelease/zip"
		}
	}
	if r.Video.Segment.Enabled && r.Video.Segment.MaxDuration <= 0 {
		r.Video.Segment.MaxDuration = time.Hour
	}
	if c.Preview.Codec == "" {
		c.Preview.Codec = "vp8"
	}
	if c.Preview.Bitrate <= 0 {
		c.Preview.Bitrate = 1000
	}
	if c.Preview.Fps <= 0 {
		c.Preview.Fps = 15
	}
	if c.Preview.Height <= 0 {
		c.Preview.Height = 360
	}
}
