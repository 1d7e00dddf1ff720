package controller

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/calvinmclean/motorseq/channel"
	"github.com/calvinmclean/motorseq/runlog"
)

// Session ties one open variable channel to the Sequencer and Poller built
// on top of it and owns the teardown ordering between them.
type Session struct {
	Sequencer *Sequencer
	Poller    *Poller

	ch   channel.Channel
	vars channel.Vars

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewSession prepares a freshly opened channel and starts the readback
// poller. The one-time setup disables the target's hardware UI so the
// board's own buttons cannot fight the sequencer. On error the channel is
// left open for the caller to close.
func NewSession(ctx context.Context, ch channel.Channel, cfg Config) (*Session, error) {
	if err := cfg.Vars.Validate(); err != nil {
		return nil, err
	}

	if err := ch.Set(ctx, cfg.Vars.HardwareUI, 0); err != nil {
		return nil, fmt.Errorf("disabling hardware UI: %w", err)
	}

	seq := NewSequencer(ch, cfg.Vars)
	if cfg.RunLogAddr != "" {
		seq.runLog = runlog.NewClient(cfg.RunLogAddr)
		log.Debugf("posting run records to %s", cfg.RunLogAddr)
	}

	poller := NewPoller(ch, cfg.Vars, cfg.PollInterval)
	poller.Go()

	log.Info("session ready")

	return &Session{
		Sequencer: seq,
		Poller:    poller,
		ch:        ch,
		vars:      cfg.Vars,
		done:      make(chan struct{}),
	}, nil
}

// Done is closed once the session is fully torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down: cancel any active run and wait for its
// terminal state, stop the poller, then assert stop once more and release
// the channel. Nothing touches the channel afterwards. Close is idempotent
// and always returns the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.Sequencer.Cancel()
		s.Sequencer.Wait()

		s.Poller.Stop()

		if err := s.ch.Set(context.Background(), s.vars.StopRequest, 1); err != nil {
			log.Errorf("stop assertion on disconnect failed: %v", err)
		}
		s.closeErr = s.ch.Close()

		close(s.done)
		log.Info("session closed")
	})

	return s.closeErr
}
