package controller

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calvinmclean/motorseq/channel"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MOTORSEQ_SERIAL_PORT", "/dev/ttyACM3")
	t.Setenv("MOTORSEQ_SIM", "true")
	t.Setenv("MOTORSEQ_POLL_INTERVAL", "250ms")
	t.Setenv("MOTORSEQ_VAR_STOP_REQUEST", "motor.apiData.stopNow")

	cfg, err := ConfigFromEnv("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SerialPort != "/dev/ttyACM3" {
		t.Errorf("expected=%q, got=%q", "/dev/ttyACM3", cfg.SerialPort)
	}
	if !cfg.Sim {
		t.Error("expected sim mode")
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("expected=%v, got=%v", 250*time.Millisecond, cfg.PollInterval)
	}
	if cfg.Vars.StopRequest != "motor.apiData.stopNow" {
		t.Errorf("expected=%q, got=%q", "motor.apiData.stopNow", cfg.Vars.StopRequest)
	}
	if cfg.Vars.RunRequest != channel.DefaultRunRequest {
		t.Errorf("expected untouched default, got=%q", cfg.Vars.RunRequest)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("expected=%v, got=%v", DefaultPollInterval, cfg.PollInterval)
	}
	if err := cfg.Vars.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.Sim {
		t.Error("expected hardware mode by default")
	}
}

func TestConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motorseq.yaml")
	content := `serialPort: /dev/ttyUSB7
definitionFile: /srv/firmware/mcaf.elf
runLogAddr: http://bench:8080
vars:
  stopRequest: motor.apiData.stopNow
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := ConfigFromEnv(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SerialPort != "/dev/ttyUSB7" {
		t.Errorf("expected=%q, got=%q", "/dev/ttyUSB7", cfg.SerialPort)
	}
	if cfg.DefinitionFile != "/srv/firmware/mcaf.elf" {
		t.Errorf("expected=%q, got=%q", "/srv/firmware/mcaf.elf", cfg.DefinitionFile)
	}
	if cfg.RunLogAddr != "http://bench:8080" {
		t.Errorf("expected=%q, got=%q", "http://bench:8080", cfg.RunLogAddr)
	}
	if cfg.Vars.StopRequest != "motor.apiData.stopNow" {
		t.Errorf("expected=%q, got=%q", "motor.apiData.stopNow", cfg.Vars.StopRequest)
	}
	// Variables the file does not name keep their defaults.
	if cfg.Vars.HardwareUI != channel.DefaultHardwareUI {
		t.Errorf("expected untouched default, got=%q", cfg.Vars.HardwareUI)
	}
}

func TestConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motorseq.yaml")
	if err := os.WriteFile(path, []byte("serialPort: /dev/ttyUSB7\n"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("MOTORSEQ_SERIAL_PORT", "/dev/ttyACM0")

	cfg, err := ConfigFromEnv(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SerialPort != "/dev/ttyACM0" {
		t.Errorf("expected=%q, got=%q", "/dev/ttyACM0", cfg.SerialPort)
	}
}

func TestConfigMissingFile(t *testing.T) {
	_, err := ConfigFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error")
	}
}
