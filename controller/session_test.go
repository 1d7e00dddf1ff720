package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calvinmclean/motorseq"
	"github.com/calvinmclean/motorseq/channel"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	return cfg
}

func TestNewSessionDisablesHardwareUI(t *testing.T) {
	ch := newFakeChannel()

	session, err := NewSession(context.Background(), ch, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	writes := ch.writesTo(channel.DefaultHardwareUI)
	if len(writes) != 1 || writes[0] != 0 {
		t.Errorf("expected single hardwareUI=0 write, got %v", writes)
	}
}

func TestNewSessionSetupFailure(t *testing.T) {
	ch := newFakeChannel()
	ch.failSets(channel.DefaultHardwareUI, errors.New("no response"))

	_, err := NewSession(context.Background(), ch, testConfig())
	if err == nil {
		t.Fatal("expected error")
	}

	// The caller opened the channel, the caller closes it.
	if ch.closeCalls != 0 {
		t.Errorf("expected channel left open, closes=%d", ch.closeCalls)
	}
}

func TestNewSessionRejectsIncompleteVars(t *testing.T) {
	cfg := testConfig()
	cfg.Vars.StopRequest = ""

	_, err := NewSession(context.Background(), newFakeChannel(), cfg)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSessionCloseTearsDownInOrder(t *testing.T) {
	ch := newFakeChannel()
	vars := channel.DefaultVars()

	session, err := NewSession(context.Background(), ch, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params := testParams()
	params.RunTime = 5 * time.Second

	if err := session.Sequencer.Start(context.Background(), params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForWrites(t, ch, vars.RunRequest, 1, time.Second)

	if err := session.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The active run was cancelled and reached its terminal state.
	if st := session.Sequencer.Status(); st.State != motorseq.StateStoppedByUser {
		t.Errorf("expected=%v, got=%v", motorseq.StateStoppedByUser, st.State)
	}

	// Stop was the final write before the channel was released.
	all := ch.allWrites()
	if last := all[len(all)-1]; last != vars.StopRequest+"=1" {
		t.Errorf("expected stop request as final write, got %q", last)
	}
	if !ch.closed || ch.closeCalls != 1 {
		t.Errorf("expected channel closed once, closed=%v closes=%d", ch.closed, ch.closeCalls)
	}

	select {
	case <-session.Done():
	default:
		t.Error("expected Done to be closed")
	}

	// Idempotent: same result, no second channel close.
	if err := session.Close(); err != nil {
		t.Errorf("unexpected error on second close: %v", err)
	}
	if ch.closeCalls != 1 {
		t.Errorf("expected exactly 1 channel close, got %d", ch.closeCalls)
	}
}

func TestSessionCloseWithoutRun(t *testing.T) {
	ch := newFakeChannel()
	vars := channel.DefaultVars()

	session, err := NewSession(context.Background(), ch, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Even with no sequence run, disconnect leaves the stop request
	// asserted.
	if stops := ch.writesTo(vars.StopRequest); len(stops) != 1 {
		t.Errorf("expected 1 stop write, got %d", len(stops))
	}
	if !ch.closed {
		t.Error("expected channel closed")
	}
}
