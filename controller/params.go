package controller

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/calvinmclean/motorseq"
)

// Bench defaults for the parameter form and the headless run command.
const (
	DefaultTargetRPM = 1500
	DefaultScale     = 0.19913 // RPM per count
	DefaultRunTime   = 10 * time.Second
	DefaultStopTime  = 50 * time.Second
	DefaultCycles    = 3
)

// ErrInvalidParams is wrapped by every parameter validation failure.
var ErrInvalidParams = errors.New("invalid sequence parameters")

// SequenceParams describes one run/stop sequence. Start copies the value,
// so changing fields after a run begins has no effect on it.
type SequenceParams struct {
	TargetRPM float64       // commanded speed in RPM
	Scale     float64       // RPM per count
	RunTime   time.Duration // length of each run phase
	StopTime  time.Duration // length of each stop phase
	Cycles    int           // number of run/stop pairs
}

// DefaultParams returns the usual bench sequence: 3 cycles of 10s running
// at 1500 RPM followed by 50s stopped.
func DefaultParams() SequenceParams {
	return SequenceParams{
		TargetRPM: DefaultTargetRPM,
		Scale:     DefaultScale,
		RunTime:   DefaultRunTime,
		StopTime:  DefaultStopTime,
		Cycles:    DefaultCycles,
	}
}

// Validate rejects out-of-range parameters. Values are never clamped; one
// bad field fails the whole set.
func (p SequenceParams) Validate() error {
	switch {
	case math.IsNaN(p.TargetRPM) || math.IsInf(p.TargetRPM, 0) || p.TargetRPM <= 0:
		return fmt.Errorf("%w: target speed must be a positive number of RPM, got %v", ErrInvalidParams, p.TargetRPM)
	case math.IsNaN(p.Scale) || math.IsInf(p.Scale, 0) || p.Scale <= 0:
		return fmt.Errorf("%w: scale must be a positive number of RPM per count, got %v", ErrInvalidParams, p.Scale)
	case p.RunTime <= 0:
		return fmt.Errorf("%w: run time must be > 0, got %s", ErrInvalidParams, p.RunTime)
	case p.StopTime < 0:
		return fmt.Errorf("%w: stop time must be >= 0, got %s", ErrInvalidParams, p.StopTime)
	case p.Cycles <= 0:
		return fmt.Errorf("%w: cycles must be > 0, got %d", ErrInvalidParams, p.Cycles)
	}
	return nil
}

// Counts returns the raw value written to the velocity command variable.
func (p SequenceParams) Counts() int32 {
	return motorseq.ToCounts(p.TargetRPM, p.Scale)
}
