package controller

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/calvinmclean/motorseq"
	"github.com/calvinmclean/motorseq/channel"
)

// DefaultPollInterval is the display refresh the tool has always used.
const DefaultPollInterval = 500 * time.Millisecond

// Sample is one readback of the measured and commanded speed. Valid is
// false when a read failed or no usable scale was set; counts may still be
// present in the scale case.
type Sample struct {
	MeasuredCounts int32
	CommandCounts  int32
	MeasuredRPM    float64
	CommandRPM     float64
	Time           time.Time
	Valid          bool
}

// MeasuredString formats the measured readback for display, "-" when the
// sample is unavailable.
func (s Sample) MeasuredString() string {
	if !s.Valid {
		return "-"
	}
	return fmt.Sprintf("%+.0f RPM (%d)", s.MeasuredRPM, s.MeasuredCounts)
}

// CommandString formats the commanded readback for display.
func (s Sample) CommandString() string {
	if !s.Valid {
		return "-"
	}
	return fmt.Sprintf("%+.0f RPM (%d)", s.CommandRPM, s.CommandCounts)
}

// Poller reads the measured and commanded speed on a fixed cadence. Its
// lifecycle follows the connection, not the sequencer: it keeps ticking
// through idle periods, runs, and read outages. It never writes.
type Poller struct {
	ch     channel.Channel
	vars   channel.Vars
	period time.Duration

	scaleBits atomic.Uint64

	mu   sync.Mutex
	last Sample

	samples  chan Sample
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewPoller builds a Poller; a non-positive period falls back to
// DefaultPollInterval. Call Go to start it.
func NewPoller(ch channel.Channel, vars channel.Vars, period time.Duration) *Poller {
	if period <= 0 {
		period = DefaultPollInterval
	}

	p := &Poller{
		ch:      ch,
		vars:    vars,
		period:  period,
		samples: make(chan Sample, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.SetScale(DefaultScale)

	return p
}

// SetScale updates the RPM-per-count factor applied to readbacks. Safe from
// any goroutine; a non-positive scale marks samples invalid until a usable
// one arrives.
func (p *Poller) SetScale(scale float64) {
	p.scaleBits.Store(math.Float64bits(scale))
}

func (p *Poller) scale() float64 {
	return math.Float64frombits(p.scaleBits.Load())
}

// Go starts the tick loop. Stop must only be called after Go.
func (p *Poller) Go() {
	go p.run()
}

// Samples delivers readbacks as they are taken. The channel buffers the
// most recent sample only, so a stalled display never backs up the loop.
func (p *Poller) Samples() <-chan Sample {
	return p.samples
}

// Last returns the most recent sample, zero before the first tick. It keeps
// answering after Stop.
func (p *Poller) Last() Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Stop halts the tick loop and waits for it to finish, so no reads are in
// flight afterwards. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *Poller) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		p.publish(p.sample())

		select {
		case <-ticker.C:
		case <-p.stop:
			return
		}
	}
}

// sample performs one poll. Read failures produce an unavailable sample
// instead of an error: the display goes stale, nothing else is touched, and
// polling continues so recovery needs no restart.
func (p *Poller) sample() Sample {
	ctx := context.Background()
	now := time.Now()

	measured, err := p.ch.Get(ctx, p.vars.VelocityMeasured)
	if err != nil {
		log.Debugf("readback poll: %v", err)
		return Sample{Time: now}
	}
	command, err := p.ch.Get(ctx, p.vars.VelocityCommand)
	if err != nil {
		log.Debugf("readback poll: %v", err)
		return Sample{Time: now}
	}

	scale := p.scale()
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return Sample{MeasuredCounts: measured, CommandCounts: command, Time: now}
	}

	return Sample{
		MeasuredCounts: measured,
		CommandCounts:  command,
		MeasuredRPM:    motorseq.ToRPM(measured, scale),
		CommandRPM:     motorseq.ToRPM(command, scale),
		Time:           now,
		Valid:          true,
	}
}

func (p *Poller) publish(s Sample) {
	p.mu.Lock()
	p.last = s
	p.mu.Unlock()

	select {
	case p.samples <- s:
	default:
		select {
		case <-p.samples:
		default:
		}
		p.samples <- s
	}
}
