// Package web exposes a small status API so long sequences can be watched,
// and aborted, from another machine.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"github.com/calvinmclean/motorseq"
	"github.com/calvinmclean/motorseq/controller"
)

// Sequencer is the slice of the sequence controller the API consumes.
type Sequencer interface {
	Status() controller.Status
	Cancel()
}

// Readback supplies the latest poll sample.
type Readback interface {
	Last() controller.Sample
}

type Server struct {
	seq Sequencer
	rb  Readback
}

func New(seq Sequencer, rb Readback) *Server {
	return &Server{seq: seq, rb: rb}
}

// Router builds the handler. Separate from Serve so tests can drive it with
// httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.getStatus)
	r.Post("/cancel", s.postCancel)

	return r
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("status API listening on %s", addr)

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	if err := render.Render(w, r, newStatusResponse(s.seq.Status(), s.rb.Last())); err != nil {
		log.Errorf("error rendering status: %v", err)
	}
}

func (s *Server) postCancel(w http.ResponseWriter, r *http.Request) {
	s.seq.Cancel()
	render.NoContent(w, r)
}

type statusResponse struct {
	State     string            `json:"state"`
	Detail    string            `json:"detail"`
	RunID     string            `json:"runID,omitempty"`
	Phase     string            `json:"phase,omitempty"`
	Cycle     int               `json:"cycle,omitempty"`
	Cycles    int               `json:"cycles,omitempty"`
	TargetRPM float64           `json:"targetRPM,omitempty"`
	Error     string            `json:"error,omitempty"`
	Readback  *readbackResponse `json:"readback,omitempty"`
}

type readbackResponse struct {
	MeasuredRPM    float64   `json:"measuredRPM"`
	CommandRPM     float64   `json:"commandRPM"`
	MeasuredCounts int32     `json:"measuredCounts"`
	CommandCounts  int32     `json:"commandCounts"`
	Time           time.Time `json:"time"`
}

func newStatusResponse(st controller.Status, sample controller.Sample) *statusResponse {
	resp := &statusResponse{
		State:  st.State.String(),
		Detail: st.String(),
		RunID:  st.RunID,
	}

	if st.State == motorseq.StateRunning || st.State == motorseq.StateStopping {
		resp.Phase = st.Phase.String()
		resp.Cycle = st.Cycle
		resp.Cycles = st.Cycles
		resp.TargetRPM = st.TargetRPM
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	if sample.Valid {
		resp.Readback = &readbackResponse{
			MeasuredRPM:    sample.MeasuredRPM,
			CommandRPM:     sample.CommandRPM,
			MeasuredCounts: sample.MeasuredCounts,
			CommandCounts:  sample.CommandCounts,
			Time:           sample.Time,
		}
	}

	return resp
}

// Render implements render.Renderer.
func (sr *statusResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}
