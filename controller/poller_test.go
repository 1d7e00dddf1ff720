package controller

import (
	"errors"
	"testing"
	"time"

	"github.com/calvinmclean/motorseq"
	"github.com/calvinmclean/motorseq/channel"
)

// awaitSample reads the sample stream until cond holds or the deadline
// passes.
func awaitSample(t *testing.T, p *Poller, timeout time.Duration, cond func(Sample) bool) Sample {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case s := <-p.Samples():
			if cond(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for sample")
		}
	}
}

func TestPollerPublishesConvertedSamples(t *testing.T) {
	ch := newFakeChannel()
	vars := channel.DefaultVars()
	ch.plant(vars.VelocityMeasured, 7530)
	ch.plant(vars.VelocityCommand, 7533)

	p := NewPoller(ch, vars, 5*time.Millisecond)
	p.SetScale(0.19913)
	p.Go()
	defer p.Stop()

	s := awaitSample(t, p, time.Second, func(s Sample) bool { return s.Valid })

	if s.MeasuredCounts != 7530 || s.CommandCounts != 7533 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if expected := motorseq.ToRPM(7530, 0.19913); s.MeasuredRPM != expected {
		t.Errorf("expected=%v, got=%v", expected, s.MeasuredRPM)
	}
	if expected := motorseq.ToRPM(7533, 0.19913); s.CommandRPM != expected {
		t.Errorf("expected=%v, got=%v", expected, s.CommandRPM)
	}
	if s.Time.IsZero() {
		t.Error("expected sample time to be set")
	}
}

func TestPollerRecoversFromReadFailures(t *testing.T) {
	ch := newFakeChannel()
	vars := channel.DefaultVars()
	ch.plant(vars.VelocityMeasured, 100)

	p := NewPoller(ch, vars, 2*time.Millisecond)
	p.SetScale(1)
	p.Go()
	defer p.Stop()

	awaitSample(t, p, time.Second, func(s Sample) bool { return s.Valid })

	// Outage: samples become unavailable but the poller keeps ticking.
	ch.failGets(vars.VelocityMeasured, errors.New("link out"))
	awaitSample(t, p, time.Second, func(s Sample) bool { return !s.Valid })

	// Recovery needs no restart.
	ch.failGets(vars.VelocityMeasured, nil)
	s := awaitSample(t, p, time.Second, func(s Sample) bool { return s.Valid })

	if s.MeasuredCounts != 100 || s.MeasuredRPM != 100 {
		t.Errorf("unexpected sample after recovery: %+v", s)
	}
}

func TestPollerScaleChanges(t *testing.T) {
	ch := newFakeChannel()
	vars := channel.DefaultVars()
	ch.plant(vars.VelocityMeasured, 50)

	p := NewPoller(ch, vars, 2*time.Millisecond)
	p.SetScale(0)
	p.Go()
	defer p.Stop()

	// No usable scale: counts are read but the sample is unavailable.
	s := awaitSample(t, p, time.Second, func(s Sample) bool {
		return !s.Valid && s.MeasuredCounts == 50
	})
	if s.MeasuredRPM != 0 {
		t.Errorf("expected no RPM conversion, got %v", s.MeasuredRPM)
	}

	p.SetScale(2)
	s = awaitSample(t, p, time.Second, func(s Sample) bool { return s.Valid })
	if s.MeasuredRPM != 100 {
		t.Errorf("expected=100, got=%v", s.MeasuredRPM)
	}
}

func TestPollerStop(t *testing.T) {
	ch := newFakeChannel()
	vars := channel.DefaultVars()
	ch.plant(vars.VelocityMeasured, 50)

	p := NewPoller(ch, vars, time.Millisecond)
	p.SetScale(1)
	p.Go()

	awaitSample(t, p, time.Second, func(s Sample) bool { return s.Valid })

	p.Stop()
	p.Stop() // second Stop must not panic or hang

	last := p.Last()
	if !last.Valid {
		t.Errorf("expected last sample retained after stop, got %+v", last)
	}
}

func TestPollerDefaultInterval(t *testing.T) {
	p := NewPoller(newFakeChannel(), channel.DefaultVars(), 0)

	if p.period != DefaultPollInterval {
		t.Errorf("expected=%v, got=%v", DefaultPollInterval, p.period)
	}
}

func TestSampleStrings(t *testing.T) {
	s := Sample{
		MeasuredCounts: 7530,
		CommandCounts:  -7533,
		MeasuredRPM:    1499.45,
		CommandRPM:     -1500.05,
		Valid:          true,
	}

	if got := s.MeasuredString(); got != "+1499 RPM (7530)" {
		t.Errorf("expected=%q, got=%q", "+1499 RPM (7530)", got)
	}
	if got := s.CommandString(); got != "-1500 RPM (-7533)" {
		t.Errorf("expected=%q, got=%q", "-1500 RPM (-7533)", got)
	}

	unavailable := Sample{Time: time.Now()}
	if got := unavailable.MeasuredString(); got != "-" {
		t.Errorf("expected=%q, got=%q", "-", got)
	}
	if got := unavailable.CommandString(); got != "-" {
		t.Errorf("expected=%q, got=%q", "-", got)
	}
}
