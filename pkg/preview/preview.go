// Package preview streams a low-rate copy of the active recording to
// a browser over WebRTC. The encoder child tees an IVF stream on its
// stdout, the pump cuts it into samples for the viewer's video track
// and the websocket endpoint carries the offer/answer/ice exchange.
package preview

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/ivfreader"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/ffmpeg"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	"github.com/glimlang/glimlang-recorder-dev/pkg/network/httpx"
	"github.com/glimlang/glimlang-recorder-dev/pkg/network/websocket"
	"github.com/glimlang/glimlang-recorder-dev/pkg/session"
)

// packet is the signaling envelope, a type tag and a raw payload.
type packet struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p,omitempty"`
}

type sampleWriter interface {
	WriteSample(media.Sample) error
}

// Preview hands out at most one viewer at a time, the tee is a single
// stream and splitting it would tear both copies.
type Preview struct {
	conf config.Preview
	api  *ApiFactory
	ctrl *session.Controller
	log  *logger.Logger

	mu   sync.Mutex
	busy bool
}

func New(conf config.Preview, ctrl *session.Controller, log *logger.Logger) (*Preview, error) {
	api, err := NewApiFactory(conf.Webrtc, log)
	if err != nil {
		return nil, err
	}
	return &Preview{conf: conf, api: api, ctrl: ctrl, log: log}, nil
}

// Out is what the encoder needs to know to produce the tee.
func (p *Preview) Out() ffmpeg.PreviewOut {
	return ffmpeg.PreviewOut{BitrateKbps: p.conf.Bitrate, Fps: p.conf.Fps, Height: p.conf.Height}
}

// Signal upgrades the request and starts the viewer exchange.
func (p *Preview) Signal(w httpx.ResponseWriter, r *httpx.Request) {
	s := p.ctrl.Session()
	if s == nil || s.Preview() == nil || s.State() != session.Recording {
		http.Error(w, "no active recording to preview", http.StatusConflict)
		return
	}
	if !p.acquire() {
		http.Error(w, "another viewer is connected", http.StatusConflict)
		return
	}
	conn, err := websocket.Upgrade(w, r)
	if err != nil {
		p.release()
		p.log.Error().Err(err).Msg("preview upgrade")
		return
	}
	go p.serve(conn, s)
}

func (p *Preview) serve(conn *websocket.Conn, s *session.Session) {
	defer p.release()
	defer func() { _ = conn.Close() }()

	peer := NewPeer(p.api, p.log)
	defer peer.Disconnect()

	offer, err := peer.NewCall(p.conf.Codec, func(ice any) {
		if err := p.push(conn, "ice", ice); err != nil {
			p.log.Debug().Err(err).Msg("ice push")
		}
	})
	if err != nil {
		p.log.Error().Err(err).Msg("preview call")
		return
	}
	if err := p.push(conn, "offer", offer); err != nil {
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	go p.pump(s.Preview(), peer, stop)

	for {
		data, err := conn.Read()
		if err != nil {
			return
		}
		var pkt packet
		if err := json.Unmarshal(data, &pkt); err != nil {
			p.log.Warn().Err(err).Msg("bad signal packet")
			continue
		}
		switch pkt.T {
		case "answer":
			if err := peer.SetRemoteSDP(pkt.P); err != nil {
				return
			}
		case "ice":
			if err := peer.AddCandidate(pkt.P); err != nil {
				p.log.Warn().Err(err).Msg("viewer candidate")
			}
		default:
			p.log.Warn().Msgf("unknown signal %v", pkt.T)
		}
	}
}

func (p *Preview) push(conn *websocket.Conn, t string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(packet{T: t, P: data})
}

// pump feeds IVF frames from the tee into the track until the stream
// ends with the session or the viewer leaves. Samples written before
// the track is bound fall through, which is fine for a live preview.
func (p *Preview) pump(src io.Reader, out sampleWriter, stop <-chan struct{}) {
	ivf, head, err := ivfreader.NewWith(src)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			p.log.Error().Err(err).Msg("preview stream")
		}
		return
	}
	dur := time.Second / time.Duration(p.conf.Fps)
	if head.TimebaseDenominator > 0 {
		dur = time.Duration(float64(head.TimebaseNumerator) / float64(head.TimebaseDenominator) * float64(time.Second))
	}
	for {
		select {
		case <-stop:
			return
		default:
		}
		frame, _, err := ivf.ParseNextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.log.Debug().Err(err).Msg("preview stream ended")
			}
			return
		}
		if err := out.WriteSample(media.Sample{Data: frame, Duration: dur}); err != nil {
			p.log.Debug().Err(err).Msg("preview write")
			return
		}
	}
}

func (p *Preview) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return false
	}
	p.busy = true
	return true
}

func (p *Preview) release() {
	p.mu.Lock()
	p.busy = false
	p.mu.Unlock()
}
