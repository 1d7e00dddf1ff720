package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/calvinmclean/motorseq/ui"
)

var guiCmd = &cobra.Command{
	Use:   "gui",
	Short: "Open the sequencer window (the default command)",
	RunE:  runGUI,
}

func init() {
	rootCmd.AddCommand(guiCmd)
}

// runGUI blocks until the window closes. An interrupt disconnects first so
// the motor is left stopped.
func runGUI(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	ui.New(cfg, newOpener()).Run(ctx)
	return nil
}
