package main_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calvinmclean/motorseq"
	"github.com/calvinmclean/motorseq/channel"
	"github.com/calvinmclean/motorseq/controller"
)

// End-to-end run against the simulator: everything goes through the same
// surface the commands use, from Opener to session teardown.

func checkVar(t *testing.T, ch channel.Channel, name string, expected int32) {
	t.Helper()

	value, err := ch.Get(context.Background(), name)
	if err != nil {
		t.Errorf("unexpected error reading %q: %v", name, err)
		return
	}
	if value != expected {
		t.Errorf("%s: expected=%d, got=%d", name, expected, value)
	}
}

func awaitValidSample(t *testing.T, session *controller.Session) controller.Sample {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		sample := session.Poller.Last()
		if sample.Valid {
			return sample
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no valid sample before deadline")
	return controller.Sample{}
}

func TestSimulatedSequence(t *testing.T) {
	ctx := context.Background()

	ch, err := channel.SimOpener(channel.DefaultVars()).Open(ctx, controller.SerialPortNone, "")
	if err != nil {
		t.Fatalf("unexpected error opening channel: %v", err)
	}

	// fake a spinning motor since the loopback has no plant behind it
	ch.(*channel.Sim).Plant(channel.DefaultVelocityMeasured, 7533)

	cfg := controller.DefaultConfig()
	cfg.Sim = true
	cfg.PollInterval = time.Millisecond

	session, err := controller.NewSession(ctx, ch, cfg)
	if err != nil {
		t.Fatalf("unexpected error creating session: %v", err)
	}

	checkVar(t, ch, channel.DefaultHardwareUI, 0)

	params := controller.SequenceParams{
		TargetRPM: 1500,
		Scale:     0.19913,
		RunTime:   5 * time.Millisecond,
		StopTime:  2 * time.Millisecond,
		Cycles:    2,
	}
	err = session.Sequencer.Start(ctx, params)
	if err != nil {
		t.Fatalf("unexpected error starting sequence: %v", err)
	}
	session.Poller.SetScale(params.Scale)
	session.Sequencer.Wait()

	st := session.Sequencer.Status()
	if st.State != motorseq.StateCompleted {
		t.Errorf("expected=%v, got=%v", motorseq.StateCompleted, st.State)
	}
	if st.String() != "Done - motor idle" {
		t.Errorf("expected=%q, got=%q", "Done - motor idle", st.String())
	}

	checkVar(t, ch, channel.DefaultVelocityCommand, 7533)
	checkVar(t, ch, channel.DefaultRunRequest, 1)
	checkVar(t, ch, channel.DefaultStopRequest, 1)

	sample := awaitValidSample(t, session)
	if sample.MeasuredCounts != 7533 {
		t.Errorf("expected=%d, got=%d", 7533, sample.MeasuredCounts)
	}
	if sample.MeasuredString() != "+1500 RPM (7533)" {
		t.Errorf("expected=%q, got=%q", "+1500 RPM (7533)", sample.MeasuredString())
	}

	err = session.Close()
	if err != nil {
		t.Errorf("unexpected error closing session: %v", err)
	}

	_, err = ch.Get(ctx, channel.DefaultStopRequest)
	if !errors.Is(err, channel.ErrClosed) {
		t.Errorf("expected=%v, got=%v", channel.ErrClosed, err)
	}
}
