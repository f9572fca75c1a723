package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeTuning(t, "tick_rate_hz: 10\ndefault_ease_ticks: 3\n")
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 10 {
		t.Fatalf("TickRateHz = %d, want 10", got.TickRateHz)
	}
	if got.DefaultEaseTicks != 3 {
		t.Fatalf("DefaultEaseTicks = %d, want 3", got.DefaultEaseTicks)
	}
	// Fields the file omits keep their defaults.
	def := Default()
	if got.SnapshotEveryTicks != def.SnapshotEveryTicks {
		t.Fatalf("SnapshotEveryTicks = %d, want default %d", got.SnapshotEveryTicks, def.SnapshotEveryTicks)
	}
	if got.ProtocolVersion != def.ProtocolVersion {
		t.Fatalf("ProtocolVersion = %q, want default %q", got.ProtocolVersion, def.ProtocolVersion)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"zero tick rate":         "tick_rate_hz: 0\n",
		"negative ease":          "default_ease_ticks: -1\n",
		"zero snapshot ticks":    "snapshot_every_ticks: 0\n",
		"negative resume window": "resume_window_ticks: -1\n",
		"wrong protocol version": "protocol_version: \"0.9\"\n",
		"not yaml":               "{{{\n",
	} {
		path := writeTuning(t, body)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().validate(); err != nil {
		t.Fatalf("default tuning invalid: %v", err)
	}
}
