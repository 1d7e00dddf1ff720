// Package channel is the link to the remote motor controller: named
// variables that can be read and written while the firmware runs.
//
// The wire protocol behind the link is not implemented here. An
// X2Cscope-style client satisfies Channel to drive real hardware; Sim is
// the in-memory loopback used for simulator mode and tests.
package channel

import (
	"context"
	"errors"
	"fmt"
)

// Variable paths exposed by the MCAF motor firmware.
const (
	DefaultHardwareUI       = "app.hardwareUiEnabled"
	DefaultVelocityCommand  = "motor.apiData.velocityReference"
	DefaultVelocityMeasured = "motor.apiData.velocityMeasured"
	DefaultRunRequest       = "motor.apiData.runMotorRequest"
	DefaultStopRequest      = "motor.apiData.stopMotorRequest"
)

var (
	// ErrClosed is returned for operations on a closed channel
	ErrClosed = errors.New("channel closed")

	// ErrUnknownVariable is returned when the firmware does not expose the
	// requested variable path
	ErrUnknownVariable = errors.New("unknown variable")
)

// Channel reads and writes named variables in the target's live memory.
// Values are raw counts; the run/stop request variables hold 0 or 1.
type Channel interface {
	Get(ctx context.Context, name string) (int32, error)
	Set(ctx context.Context, name string, value int32) error
	Close() error
}

// Opener dials a target and returns a live Channel. The transport behind it
// (an X2Cscope serial client, the Sim loopback) owns connection details like
// baud rate and variable address lookup from the definition file.
type Opener interface {
	Open(ctx context.Context, port, definitionFile string) (Channel, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, port, definitionFile string) (Channel, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, port, definitionFile string) (Channel, error) {
	return f(ctx, port, definitionFile)
}

// Vars names the variables the sequencer writes and the poller reads
type Vars struct {
	HardwareUI       string `env:"MOTORSEQ_VAR_HARDWARE_UI" yaml:"hardwareUI"`
	VelocityCommand  string `env:"MOTORSEQ_VAR_VELOCITY_COMMAND" yaml:"velocityCommand"`
	VelocityMeasured string `env:"MOTORSEQ_VAR_VELOCITY_MEASURED" yaml:"velocityMeasured"`
	RunRequest       string `env:"MOTORSEQ_VAR_RUN_REQUEST" yaml:"runRequest"`
	StopRequest      string `env:"MOTORSEQ_VAR_STOP_REQUEST" yaml:"stopRequest"`
}

// DefaultVars returns the standard MCAF variable paths
func DefaultVars() Vars {
	return Vars{
		HardwareUI:       DefaultHardwareUI,
		VelocityCommand:  DefaultVelocityCommand,
		VelocityMeasured: DefaultVelocityMeasured,
		RunRequest:       DefaultRunRequest,
		StopRequest:      DefaultStopRequest,
	}
}

// Names returns every variable path in the set
func (v Vars) Names() []string {
	return []string{v.HardwareUI, v.VelocityCommand, v.VelocityMeasured, v.RunRequest, v.StopRequest}
}

// Validate makes sure no variable path is empty
func (v Vars) Validate() error {
	for _, name := range v.Names() {
		if name == "" {
			return fmt.Errorf("incomplete variable set: %+v", v)
		}
	}
	return nil
}
