// Package api is the local control surface of the recorder: a JSON
// status snapshot, a stop trigger, and the preview signaling socket,
// for scripts and anything else that wants to poke a running instance.
package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	"github.com/glimlang/glimlang-recorder-dev/pkg/network/httpx"
	"github.com/glimlang/glimlang-recorder-dev/pkg/session"
)

type Api struct {
	server *httpx.Server
	ctrl   *session.Controller
	signal httpx.HandlerFunc
	log    *logger.Logger
}

type Option func(*Api)

// WithSignal mounts a websocket signaling endpoint for the live
// preview next to the control routes.
func WithSignal(h httpx.HandlerFunc) Option { return func(a *Api) { a.signal = h } }

// Status is the over-the-wire session snapshot.
type Status struct {
	State      string  `json:"state"`
	Session    string  `json:"session,omitempty"`
	Output     string  `json:"output,omitempty"`
	Frames     uint64  `json:"frames"`
	Gaps       uint64  `json:"gaps"`
	AudioSec   float64 `json:"audio_sec"`
	ElapsedSec float64 `json:"elapsed_sec"`
	Events     []Event `json:"events,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type Event struct {
	OffsetSec float64 `json:"offset_sec"`
	Kind      string  `json:"kind"`
	Error     string  `json:"error,omitempty"`
}

func New(conf config.Api, ctrl *session.Controller, log *logger.Logger, options ...Option) (*Api, error) {
	api := &Api{ctrl: ctrl, log: log}
	for _, opt := range options {
		opt(api)
	}
	server, err := httpx.NewServer(
		conf.Server.GetAddr(),
		func(*httpx.Server) httpx.Handler { return api.handler() },
		httpx.WithServerConfig(conf.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	api.server = server
	return api, nil
}

func (a *Api) handler() *httpx.Mux {
	h := httpx.NewServeMux("/api")
	h.HandleFunc("/status", a.status)
	h.HandleFunc("/stop", a.stop)
	if a.signal != nil {
		h.HandleFunc("/preview", a.signal)
	}
	return h
}

func (a *Api) status(w httpx.ResponseWriter, _ *httpx.Request) {
	a.reply(w, a.snapshot())
}

func (a *Api) stop(w httpx.ResponseWriter, r *httpx.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	a.ctrl.Stop()
	a.reply(w, a.snapshot())
}

func (a *Api) snapshot() Status {
	s := a.ctrl.Session()
	if s == nil {
		return Status{State: session.Idle.String()}
	}
	st := Status{
		State:      s.State().String(),
		Session:    s.ID,
		Output:     s.Output(),
		Frames:     s.Frames(),
		Gaps:       s.Gaps(),
		AudioSec:   s.AudioDuration().Seconds(),
		ElapsedSec: s.Elapsed().Seconds(),
	}
	for _, e := range s.Events() {
		ev := Event{OffsetSec: e.Offset.Seconds(), Kind: e.Kind.String()}
		if e.Err != nil {
			ev.Error = e.Err.Error()
		}
		st.Events = append(st.Events, ev)
	}
	if err := s.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (a *Api) reply(w httpx.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error().Err(err).Msg("status encode")
	}
}

func (a *Api) Run() {
	a.log.Info().Msgf("Starting api server at %v", a.server.Addr)
	a.server.Run()
}

func (a *Api) Stop() error { return a.server.Stop() }

func (a *Api) String() string { return fmt.Sprintf("api::%s", a.server.Addr) }
