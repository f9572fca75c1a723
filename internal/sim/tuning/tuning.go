package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"avatarkit.gg/internal/protocol"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	DefaultEaseTicks   int `yaml:"default_ease_ticks"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	ResumeWindowTicks  int `yaml:"resume_window_ticks"`

	AutoRetryStored bool `yaml:"auto_retry_stored"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	CmdWindowTicks       int `yaml:"cmd_window_ticks"`
	CmdMax               int `yaml:"cmd_max"`
	SetOutfitWindowTicks int `yaml:"set_outfit_window_ticks"`
	SetOutfitMax         int `yaml:"set_outfit_max"`
}

// Default returns the tuning used when no file is given.
func Default() Tuning {
	return Tuning{
		ProtocolVersion:    protocol.Version,
		TickRateHz:         20,
		DefaultEaseTicks:   6,
		SnapshotEveryTicks: 1200,
		ResumeWindowTicks:  600,
		AutoRetryStored:    true,
		RateLimits: RateLimits{
			CmdWindowTicks:       20,
			CmdMax:               30,
			SetOutfitWindowTicks: 100,
			SetOutfitMax:         5,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) validate() error {
	if t.ProtocolVersion != protocol.Version {
		return fmt.Errorf("protocol_version %q does not match server version %q", t.ProtocolVersion, protocol.Version)
	}
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %d", t.TickRateHz)
	}
	if t.DefaultEaseTicks < 0 {
		return fmt.Errorf("default_ease_ticks must not be negative, got %d", t.DefaultEaseTicks)
	}
	if t.SnapshotEveryTicks <= 0 {
		return fmt.Errorf("snapshot_every_ticks must be positive, got %d", t.SnapshotEveryTicks)
	}
	if t.ResumeWindowTicks < 0 {
		return fmt.Errorf("resume_window_ticks must not be negative, got %d", t.ResumeWindowTicks)
	}
	return nil
}
