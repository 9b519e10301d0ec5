package preview

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

// Peer is one preview viewer: a single outgoing video track fed from
// the encoder's low-rate tee.
type Peer struct {
	api  *ApiFactory
	conn *webrtc.PeerConnection
	v    *webrtc.TrackLocalStaticSample
	log  *logger.Logger
}

func NewPeer(api *ApiFactory, log *logger.Logger) *Peer { return &Peer{api: api, log: log} }

// NewCall opens the connection, plugs the video track in and returns
// the local offer. ICE candidates stream through the callback, a nil
// candidate marks the end of gathering.
func (p *Peer) NewCall(codec string, onICECandidate func(ice any)) (any, error) {
	p.log.Debug().Msg("WebRTC start")
	conn, err := p.api.NewPeer()
	if err != nil {
		return nil, err
	}
	p.conn = conn
	p.conn.OnICECandidate(p.handleICECandidate(onICECandidate))

	video, err := newTrack(codec)
	if err != nil {
		return nil, err
	}
	vs, err := p.conn.AddTrack(video)
	if err != nil {
		return nil, err
	}
	// drain incoming RTCP
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := vs.Read(buf); err != nil {
				return
			}
		}
	}()
	p.v = video
	p.log.Debug().Msgf("Added [%s] track", video.Codec().MimeType)

	p.conn.OnICEConnectionStateChange(p.handleICEState(func() { p.log.Info().Msg("Viewer connected") }))

	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err = p.conn.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return offer, nil
}

func (p *Peer) WriteSample(s media.Sample) error { return p.v.WriteSample(s) }

func (p *Peer) SetRemoteSDP(data []byte) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(data, &answer); err != nil {
		return err
	}
	if err := p.conn.SetRemoteDescription(answer); err != nil {
		p.log.Error().Err(err).Msg("Set remote description from peer failed")
		return err
	}
	p.log.Debug().Msg("Set Remote Description")
	return nil
}

func (p *Peer) AddCandidate(data []byte) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(data, &candidate); err != nil {
		return err
	}
	if err := p.conn.AddICECandidate(candidate); err != nil {
		return err
	}
	p.log.Debug().Str("candidate", candidate.Candidate).Msg("Ice")
	return nil
}

func (p *Peer) Disconnect() {
	if p.conn == nil {
		return
	}
	if p.conn.ConnectionState() < webrtc.PeerConnectionStateDisconnected {
		// ignore this due to DTLS fatal: conn is closed
		_ = p.conn.Close()
	}
	p.log.Debug().Msg("WebRTC stop")
}

func newTrack(codec string) (*webrtc.TrackLocalStaticSample, error) {
	var mime string
	switch strings.ToLower(codec) {
	case "h264":
		mime = webrtc.MimeTypeH264
	case "vpx", "vp8":
		mime = webrtc.MimeTypeVP8
	case "vp9":
		mime = webrtc.MimeTypeVP9
	}
	if mime == "" {
		return nil, fmt.Errorf("unsupported preview codec %s", codec)
	}
	return webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, "video", "preview")
}

func (p *Peer) handleICECandidate(callback func(any)) func(*webrtc.ICECandidate) {
	return func(ice *webrtc.ICECandidate) {
		// ICE gathering finish condition
		if ice == nil {
			callback(nil)
			p.log.Debug().Msg("ICE gathering was complete probably")
			return
		}
		candidate := ice.ToJSON()
		p.log.Debug().Str("candidate", candidate.Candidate).Msg("ICE")
		callback(&candidate)
	}
}

func (p *Peer) handleICEState(onConnect func()) func(webrtc.ICEConnectionState) {
	return func(state webrtc.ICEConnectionState) {
		p.log.Debug().Str(".state", state.String()).Msg("ICE")
		switch state {
		case webrtc.ICEConnectionStateChecking:
			// nothing
		case webrtc.ICEConnectionStateConnected:
			onConnect()
		case webrtc.ICEConnectionStateFailed,
			webrtc.ICEConnectionStateClosed,
			webrtc.ICEConnectionStateDisconnected:
			p.Disconnect()
		default:
			p.log.Debug().Msg("ICE state is not handled!")
		}
	}
}
