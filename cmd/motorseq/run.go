package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/calvinmclean/motorseq"
	"github.com/calvinmclean/motorseq/controller"
	"github.com/calvinmclean/motorseq/web"
)

var (
	flagSpeed   float64
	flagScale   float64
	flagRunFor  time.Duration
	flagStopFor time.Duration
	flagCycles  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sequence without the GUI",
	RunE:  runSequence,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.Float64Var(&flagSpeed, "speed", controller.DefaultTargetRPM, "target speed in RPM")
	flags.Float64Var(&flagScale, "scale", controller.DefaultScale, "RPM per count scale")
	flags.DurationVar(&flagRunFor, "run-for", controller.DefaultRunTime, "length of each run phase")
	flags.DurationVar(&flagStopFor, "stop-for", controller.DefaultStopTime, "length of each stop phase")
	flags.IntVar(&flagCycles, "cycles", controller.DefaultCycles, "number of run/stop cycles")
}

// runSequence executes one full sequence and blocks until it reaches a
// terminal state. An interrupt cancels the sequence; teardown still asserts
// the stop request.
func runSequence(_ *cobra.Command, _ []string) error {
	params := controller.SequenceParams{
		TargetRPM: flagSpeed,
		Scale:     flagScale,
		RunTime:   flagRunFor,
		StopTime:  flagStopFor,
		Cycles:    flagCycles,
	}
	if err := params.Validate(); err != nil {
		return err
	}

	ctx := context.Background()

	ch, err := newOpener().Open(ctx, cfg.SerialPort, cfg.DefinitionFile)
	if err != nil {
		return fmt.Errorf("error connecting: %w", err)
	}

	session, err := controller.NewSession(ctx, ch, cfg)
	if err != nil {
		_ = ch.Close()
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Errorf("error closing session: %v", err)
		}
	}()

	if cfg.HTTPAddr != "" {
		go func() {
			err := web.New(session.Sequencer, session.Poller).Serve(ctx, cfg.HTTPAddr)
			if err != nil {
				log.Errorf("status server error: %v", err)
			}
		}()
	}

	if err := session.Sequencer.Start(ctx, params); err != nil {
		return err
	}
	session.Poller.SetScale(params.Scale)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Info("interrupt received, stopping")
		session.Sequencer.Cancel()
	}()

	session.Sequencer.Wait()

	st := session.Sequencer.Status()
	log.Info(st.String())

	switch {
	case st.Err != nil:
		return st.Err
	case st.State == motorseq.StateStoppedByUser:
		return errors.New("stopped by user")
	}
	return nil
}
