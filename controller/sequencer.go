// Package controller drives a motor target through timed run/stop
// sequences over a variable channel and polls the speed readbacks. It is
// the layer between the UI (desktop or HTTP) and the link to the firmware.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"

	"github.com/calvinmclean/motorseq"
	"github.com/calvinmclean/motorseq/channel"
	"github.com/calvinmclean/motorseq/runlog"
)

var (
	// ErrSequenceRunning is returned by Start while a sequence is active.
	ErrSequenceRunning = errors.New("sequence already running")

	// ErrNotConnected is returned by Start when the variable channel does
	// not answer the probe read.
	ErrNotConnected = errors.New("target not connected")
)

// Status is a snapshot of the sequencer. Cycle is 1-based and only
// meaningful while a run is active; Err is set when a link failure ended
// the run early.
type Status struct {
	RunID     string
	State     motorseq.State
	Phase     motorseq.Phase
	Cycle     int
	Cycles    int
	TargetRPM float64
	Err       error
}

// String renders the status line the displays show.
func (st Status) String() string {
	switch st.State {
	case motorseq.StateRunning:
		if st.Phase == motorseq.PhaseRun {
			return fmt.Sprintf("Cycle %d/%d: RUN @ %.0f RPM", st.Cycle, st.Cycles, st.TargetRPM)
		}
		return fmt.Sprintf("Cycle %d/%d: STOP", st.Cycle, st.Cycles)
	case motorseq.StateStopping:
		return "Stopping..."
	case motorseq.StateCompleted:
		return "Done - motor idle"
	case motorseq.StateStoppedByUser:
		if st.Err != nil {
			return fmt.Sprintf("Stopped - %v", st.Err)
		}
		return "Stopped by user"
	default:
		return st.State.String()
	}
}

// Sequencer owns the run/stop state machine. Its loop goroutine is the only
// writer of the command and request variables while a sequence is active;
// everything else observes Status values.
type Sequencer struct {
	ch     channel.Channel
	vars   channel.Vars
	runLog runLogClient

	mu      sync.Mutex
	status  Status
	active  *run
	updates chan Status
}

// run is the per-Start bookkeeping shared between the loop goroutine and
// Cancel.
type run struct {
	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
}

func (r *run) requestCancel() {
	r.cancelOnce.Do(func() { close(r.cancel) })
}

func (r *run) cancelled() bool {
	select {
	case <-r.cancel:
		return true
	default:
		return false
	}
}

func NewSequencer(ch channel.Channel, vars channel.Vars) *Sequencer {
	return &Sequencer{
		ch:      ch,
		vars:    vars,
		runLog:  noopRunLogClient{},
		status:  Status{State: motorseq.StateIdle},
		updates: make(chan Status, 1),
	}
}

// Start validates params, probes the link, and launches the sequence loop.
// It returns once the loop is running; progress and the terminal outcome
// arrive through Updates. A probe failure leaves the sequencer idle with
// nothing written to the target. ctx bounds only the probe read.
func (s *Sequencer) Start(ctx context.Context, params SequenceParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return ErrSequenceRunning
	}

	if _, err := s.ch.Get(ctx, s.vars.VelocityCommand); err != nil {
		return fmt.Errorf("%w: %s", ErrNotConnected, err)
	}

	r := &run{cancel: make(chan struct{}), done: make(chan struct{})}
	s.active = r
	s.status = Status{
		RunID:     xid.New().String(),
		State:     motorseq.StateRunning,
		Phase:     motorseq.PhaseRun,
		Cycle:     1,
		Cycles:    params.Cycles,
		TargetRPM: params.TargetRPM,
	}
	s.publishLocked()

	log.Infof("sequence %s: %.0f RPM (%d counts), run %s, stop %s, %d cycle(s)",
		s.status.RunID, params.TargetRPM, params.Counts(), params.RunTime, params.StopTime, params.Cycles)

	go s.loop(r, params, s.status.RunID)

	return nil
}

// Cancel requests the active run to stop. It is idempotent, safe from any
// goroutine, and a no-op when nothing is running.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return
	}
	s.active.requestCancel()

	if s.status.State == motorseq.StateRunning {
		log.Info("cancel requested")
		s.status.State = motorseq.StateStopping
		s.publishLocked()
	}
}

// Status returns the current snapshot.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Updates delivers status transitions. The channel buffers the most recent
// value only: a slow reader misses intermediate states, never blocks the
// loop, and always sees the terminal status last.
func (s *Sequencer) Updates() <-chan Status {
	return s.updates
}

// Wait blocks until the active run reaches a terminal state. It returns
// immediately when nothing is running.
func (s *Sequencer) Wait() {
	s.mu.Lock()
	r := s.active
	s.mu.Unlock()

	if r == nil {
		return
	}
	<-r.done
}

// loop executes the sequence. Every exit path that aborts a cycle asserts
// the stop request once more, so the motor is never left commanded to run.
func (s *Sequencer) loop(r *run, params SequenceParams, runID string) {
	ctx := context.Background()
	counts := params.Counts()

	logID, err := s.runLog.CreateRun(ctx, runID, runlog.Params{
		TargetRPM: params.TargetRPM,
		Scale:     params.Scale,
		RunTime:   params.RunTime,
		StopTime:  params.StopTime,
		Cycles:    params.Cycles,
	})
	if err != nil {
		log.Warnf("run log unavailable: %v", err)
	} else if logID != "" {
		log.Debugf("run log entry %s", logID)
	}

	var failure error

	for cycle := 1; cycle <= params.Cycles; cycle++ {
		if r.cancelled() {
			break
		}

		st := s.setPhase(motorseq.PhaseRun, cycle)
		log.Info(st.String())
		s.logStage(ctx, st.String())

		if err := s.ch.Set(ctx, s.vars.VelocityCommand, counts); err != nil {
			failure = fmt.Errorf("writing command speed: %w", err)
			break
		}
		if err := s.ch.Set(ctx, s.vars.RunRequest, 1); err != nil {
			failure = fmt.Errorf("asserting run request: %w", err)
			break
		}
		if !wait(params.RunTime, r.cancel) {
			break
		}

		if r.cancelled() {
			break
		}

		st = s.setPhase(motorseq.PhaseStop, cycle)
		log.Info(st.String())
		s.logStage(ctx, st.String())

		if err := s.ch.Set(ctx, s.vars.StopRequest, 1); err != nil {
			failure = fmt.Errorf("asserting stop request: %w", err)
			break
		}
		if !wait(params.StopTime, r.cancel) {
			break
		}
	}

	aborted := failure != nil || r.cancelled()
	if aborted {
		// A clean finish already asserted stop as the last write of the
		// final cycle; aborted runs assert it here.
		if err := s.ch.Set(ctx, s.vars.StopRequest, 1); err != nil {
			log.Errorf("stop assertion on abort failed: %v", err)
		}
	}

	end := motorseq.StateCompleted
	if aborted {
		end = motorseq.StateStoppedByUser
	}

	s.mu.Lock()
	s.status.State = end
	s.status.Err = failure
	s.active = nil
	st := s.status
	s.publishLocked()
	s.mu.Unlock()

	log.Info(st.String())

	if failure != nil {
		if err := s.runLog.AddEvent(ctx, failure.Error(), time.Now()); err != nil {
			log.Warnf("recording event: %v", err)
		}
	}
	if err := s.runLog.Done(ctx, st.String(), time.Now()); err != nil {
		log.Warnf("closing run log: %v", err)
	}

	close(r.done)
}

// setPhase moves the active run to the given phase and cycle. A cancel can
// land between the loop's check and this call; Stopping is kept so state
// never moves backwards.
func (s *Sequencer) setPhase(phase motorseq.Phase, cycle int) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Phase = phase
	s.status.Cycle = cycle
	if s.status.State == motorseq.StateRunning {
		s.publishLocked()
	}
	return s.status
}

func (s *Sequencer) logStage(ctx context.Context, name string) {
	if err := s.runLog.AddStage(ctx, name, time.Now()); err != nil {
		log.Warnf("recording stage %q: %v", name, err)
	}
}

// publishLocked replaces any pending update with the current status.
// Callers hold mu, so sends are serialized and the channel can be kept
// drained without blocking.
func (s *Sequencer) publishLocked() {
	select {
	case s.updates <- s.status:
	default:
		select {
		case <-s.updates:
		default:
		}
		s.updates <- s.status
	}
}

// wait sleeps for d unless cancel closes first. A non-positive d returns
// immediately so zero-length stop phases cost nothing.
func wait(d time.Duration, cancel <-chan struct{}) bool {
	if d <= 0 {
		return true
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-cancel:
		return false
	}
}
