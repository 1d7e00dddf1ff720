package channel

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Sim is an in-memory loopback Channel for running without hardware. Set
// stores the value and Get returns whatever was stored last, so the
// commanded speed reads back immediately. There is no motor model behind
// it; tests plant measured values directly with Plant.
type Sim struct {
	mu     sync.Mutex
	values map[string]int32
	closed bool
}

var _ Channel = &Sim{}

// NewSim builds a Sim exposing exactly the named variables, all zero
func NewSim(vars Vars) *Sim {
	values := make(map[string]int32)
	for _, name := range vars.Names() {
		values[name] = 0
	}
	return &Sim{values: values}
}

func (s *Sim) Get(ctx context.Context, name string) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	value, ok := s.values[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	return value, nil
}

func (s *Sim) Set(ctx context.Context, name string, value int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if _, ok := s.values[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}

	s.values[name] = value
	log.Debugf("[sim] %s = %d", name, value)

	return nil
}

// Plant stores a value directly, creating the variable if needed. It is how
// tests and demos fake a measured readback since Sim has no motor model.
func (s *Sim) Plant(name string, value int32) {
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
}

func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// SimOpener returns an Opener that ignores the endpoint and hands out a
// fresh Sim, the way the tool connects when no hardware is on the bench.
func SimOpener(vars Vars) Opener {
	return OpenerFunc(func(ctx context.Context, port, definitionFile string) (Channel, error) {
		log.Debug("[sim] opening loopback channel")
		return NewSim(vars), nil
	})
}
