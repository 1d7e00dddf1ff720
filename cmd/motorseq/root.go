package main

import (
	"context"
	"errors"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/calvinmclean/motorseq/channel"
	"github.com/calvinmclean/motorseq/controller"
)

var (
	cfgFile string
	verbose bool

	flagPort         string
	flagDefinition   string
	flagSim          bool
	flagPollInterval time.Duration
	flagHTTPAddr     string
	flagRunLogAddr   string

	// cfg is loaded by loadConfig before any command runs
	cfg controller.Config
)

var rootCmd = &cobra.Command{
	Use:               "motorseq",
	Short:             "Drive timed run/stop sequences on a motor controller",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runGUI,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.StringVar(&flagPort, "port", "", "serial port of the motor controller")
	flags.StringVar(&flagDefinition, "definition", "", "firmware definition (ELF) file")
	flags.BoolVar(&flagSim, "sim", false, "use the in-memory loopback instead of hardware")
	flags.DurationVar(&flagPollInterval, "poll-interval", controller.DefaultPollInterval, "readback poll cadence")
	flags.StringVar(&flagHTTPAddr, "http-addr", "", "serve the status API on this address")
	flags.StringVar(&flagRunLogAddr, "runlog-addr", "", "post run records to this bench-log server")
}

// loadConfig builds the Config from defaults, file, and environment, then
// overlays explicit flags so they always win.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	var err error
	cfg, err = controller.ConfigFromEnv(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.SerialPort = flagPort
	}
	if flags.Changed("definition") {
		cfg.DefinitionFile = flagDefinition
	}
	if flags.Changed("sim") {
		cfg.Sim = flagSim
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = flagPollInterval
	}
	if flags.Changed("http-addr") {
		cfg.HTTPAddr = flagHTTPAddr
	}
	if flags.Changed("runlog-addr") {
		cfg.RunLogAddr = flagRunLogAddr
	}

	return nil
}

// newOpener picks the transport for the loaded config. Only the loopback
// ships today; an X2Cscope serial driver would plug in here.
func newOpener() channel.Opener {
	if cfg.Sim {
		return channel.SimOpener(cfg.Vars)
	}
	return channel.OpenerFunc(func(context.Context, string, string) (channel.Channel, error) {
		return nil, errors.New("no X2Cscope link driver in this build; rerun with --sim")
	})
}

// Execute runs the root command and exits non-zero on any error.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
