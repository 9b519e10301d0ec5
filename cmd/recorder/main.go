package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/glimlang/glimlang-recorder-dev/pkg/api"
	"github.com/glimlang/glimlang-recorder-dev/pkg/capture"
	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/ffmpeg"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	"github.com/glimlang/glimlang-recorder-dev/pkg/monitoring"
	"github.com/glimlang/glimlang-recorder-dev/pkg/os"
	"github.com/glimlang/glimlang-recorder-dev/pkg/preview"
	"github.com/glimlang/glimlang-recorder-dev/pkg/recorder"
	"github.com/glimlang/glimlang-recorder-dev/pkg/service"
	"github.com/glimlang/glimlang-recorder-dev/pkg/session"
	"github.com/glimlang/glimlang-recorder-dev/pkg/storage"
)

var Version = "?"

func main() {
	conf := config.NewRecorderConfig()
	conf.ParseFlags()
	listDevices := flag.Bool("list-devices", false, "List displays and capture devices, then exit")
	flag.Parse()

	log := logger.NewConsole(conf.Recorder.Debug, "rec", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	ff, err := ffmpeg.Locate(conf.Recorder.Ffmpeg, log)
	if err != nil && conf.Recorder.Ffmpeg.Download {
		log.Warn().Err(err).Msg("no usable ffmpeg, fetching a build")
		if _, err = ffmpeg.Fetch(conf.Recorder.Ffmpeg, log); err == nil {
			ff, err = ffmpeg.Locate(conf.Recorder.Ffmpeg, log)
		}
	}
	if *listDevices {
		printDevices(ff)
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("ffmpeg is required")
	}

	ctrl := session.NewController(conf.Recorder, ff, log)

	if hk := inputHook(conf.Recorder, ctrl, log); hk != nil {
		defer func() { _ = hk.Close() }()
	}

	var services service.Group

	var pv *preview.Preview
	if conf.Preview.Enabled {
		if pv, err = preview.New(conf.Preview, ctrl, log); err != nil {
			log.Error().Err(err).Msg("preview is off")
			pv = nil
		} else {
			ctrl.EnablePreview(pv.Out())
		}
	}

	if conf.Api.Enabled {
		var opts []api.Option
		if pv != nil {
			opts = append(opts, api.WithSignal(pv.Signal))
		}
		srv, err := api.New(conf.Api, ctrl, log, opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("api server failed")
		}
		services.Add(srv)
	}

	if conf.Monitoring.IsEnabled() {
		if m, err := monitoring.New(conf.Monitoring, log); err != nil {
			log.Error().Err(err).Msg("monitoring failed")
		} else {
			services.Add(m)
		}
	}

	watcher := config.NewWatcher(log, func(next config.RecorderConfig) {
		if ctrl.SetConfig(next.Recorder) {
			log.Info().Msg("config reloaded")
		} else {
			log.Warn().Msg("config change ignored, stop the recording first")
		}
	})
	watcher.Start()
	defer watcher.Stop()

	services.Start()
	defer func() {
		if err := services.Stop(); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()

	s, err := ctrl.Start()
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't start recording")
	}

	select {
	case <-os.ExpectTermination():
		log.Info().Msg("termination signal, stopping")
		ctrl.Stop()
		<-s.Done()
	case <-s.Done():
	}

	res, err := s.Wait()
	if err != nil {
		log.Fatal().Err(err).Msg("recording failed")
	}
	log.Info().Msgf("saved %v (%v frames, %v)", res.Path, res.Frames, res.Duration.Round(time.Millisecond))
	upload(conf.Storage, res, log)
}

// inputHook starts the global input hook when the cursor overlay or
// the stop hotkey needs it, nil otherwise.
func inputHook(conf config.Recorder, ctrl *session.Controller, log *logger.Logger) *capture.Hook {
	if !conf.Overlay.Cursor.Enabled && !conf.Hotkey.Enabled {
		return nil
	}
	hk := capture.NewHook(log)
	if conf.Overlay.Cursor.Enabled {
		ctrl.TrackCursor(hk.Position)
	}
	if conf.Hotkey.Enabled {
		hk.OnKeyDown(conf.Hotkey.Rawcode, func() {
			log.Info().Msgf("stop key (rawcode %v)", conf.Hotkey.Rawcode)
			ctrl.Stop()
		})
	}
	hk.Start()
	return hk
}

func printDevices(ff *ffmpeg.Ffmpeg) {
	fmt.Println("Displays:")
	for i, d := range capture.Displays() {
		fmt.Printf("  %d: %dx%d at (%d,%d)\n", i, d.W, d.H, d.X, d.Y)
	}
	if ff == nil {
		fmt.Println("No ffmpeg found, audio and webcam devices can't be listed.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	devices := ff.ListDevices(ctx)
	for _, g := range []struct{ kind, label string }{{"audio", "Audio"}, {"video", "Video"}} {
		fmt.Printf("%s devices:\n", g.label)
		n := 0
		for _, d := range devices {
			if d.Kind != g.kind {
				continue
			}
			if d.Name != "" && d.Name != d.ID {
				fmt.Printf("  %s (%s)\n", d.ID, d.Name)
			} else {
				fmt.Printf("  %s\n", d.ID)
			}
			n++
		}
		if n == 0 {
			fmt.Println("  none found")
		}
	}
}

// upload pushes the finished files to the configured bucket. Best
// effort: the local deliverable is the source of truth either way.
func upload(conf config.Storage, res recorder.Result, log *logger.Logger) {
	if conf.Provider == "" {
		return
	}
	st, err := storage.Store(conf, log)
	if err != nil {
		log.Error().Err(err).Msg("cloud storage is unavailable")
		return
	}
	for _, f := range []string{res.Path, res.AudioPath} {
		if f == "" {
			continue
		}
		if err := st.Save(filepath.Base(f), f); err != nil {
			log.Error().Err(err).Msgf("upload of %v failed", f)
			continue
		}
		log.Info().Msgf("uploaded %v", filepath.Base(f))
	}
}
