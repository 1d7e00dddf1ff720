package controller

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/calvinmclean/motorseq/channel"
)

// Config collects everything needed to bring a connection up: where the
// target is, which firmware variables to drive, and the optional
// integrations. Values come from defaults, then a YAML file, then the
// environment; command flags overlay on top of the loaded Config.
type Config struct {
	// SerialPort the link dials, e.g. /dev/ttyACM0.
	SerialPort string `env:"MOTORSEQ_SERIAL_PORT" yaml:"serialPort"`
	// DefinitionFile is the firmware ELF the link resolves variable
	// addresses from.
	DefinitionFile string `env:"MOTORSEQ_DEFINITION_FILE" yaml:"definitionFile"`
	// Sim swaps the real link for the in-memory loopback.
	Sim bool `env:"MOTORSEQ_SIM" yaml:"sim"`

	// PollInterval is the readback cadence.
	PollInterval time.Duration `env:"MOTORSEQ_POLL_INTERVAL" envDefault:"500ms" yaml:"-"`

	// RunLogAddr, when set, posts run records to a bench-log server.
	RunLogAddr string `env:"MOTORSEQ_RUNLOG_ADDR" yaml:"runLogAddr"`
	// HTTPAddr, when set, serves the status API on that address.
	HTTPAddr string `env:"MOTORSEQ_HTTP_ADDR" yaml:"httpAddr"`

	Vars channel.Vars `yaml:"vars"`
}

// DefaultConfig returns a Config with the standard MCAF variable paths and
// poll cadence, no target selected.
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		Vars:         channel.DefaultVars(),
	}
}

// ConfigFromEnv builds the Config from the environment. A .env file in the
// working directory is folded in when present. configFile names an optional
// YAML file applied before environment variables.
func ConfigFromEnv(configFile string) (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if configFile != "" {
		raw, err := os.ReadFile(configFile)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := cfg.Vars.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
