package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find repo root from %s", dir)
		}
		dir = parent
	}
}

func TestLoadRepoConfigs(t *testing.T) {
	root := findRepoRoot(t)
	c, err := Load(filepath.Join(root, "configs"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Locations.Palette) == 0 {
		t.Fatalf("empty location palette")
	}
	if c.Locations.Digest == "" || c.Accessories.Digest == "" || c.Outfits.Digest == "" {
		t.Fatalf("missing digest: %q %q %q", c.Locations.Digest, c.Accessories.Digest, c.Outfits.Digest)
	}
	if len(c.Accessories.Order) != len(c.Accessories.ByID) {
		t.Fatalf("accessory order/map mismatch: %d vs %d", len(c.Accessories.Order), len(c.Accessories.ByID))
	}
	hat, ok := c.Accessories.ByID["ACC_HAT_STRAW"]
	if !ok {
		t.Fatalf("ACC_HAT_STRAW missing")
	}
	if hat.Location != "HEAD" {
		t.Fatalf("ACC_HAT_STRAW location = %q", hat.Location)
	}
	robe, ok := c.Outfits.ByID["OUT_CEREMONIAL"]
	if !ok {
		t.Fatalf("OUT_CEREMONIAL missing")
	}
	if !robe.AccessoriesLimited {
		t.Fatalf("OUT_CEREMONIAL should be accessories_limited")
	}
	var blocked bool
	for _, p := range robe.Points {
		if p.Location == "BACK" && p.Blocked {
			blocked = true
		}
	}
	if !blocked {
		t.Fatalf("OUT_CEREMONIAL BACK point should be blocked")
	}
}

func TestDigestStable(t *testing.T) {
	root := findRepoRoot(t)
	a, err := Load(filepath.Join(root, "configs"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b, err := Load(filepath.Join(root, "configs"))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if a.Locations.Digest != b.Locations.Digest ||
		a.Accessories.Digest != b.Accessories.Digest ||
		a.Outfits.Digest != b.Outfits.Digest {
		t.Fatalf("digests changed between loads")
	}
}

func writeConfigs(t *testing.T, locations, accessories, outfits string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"locations.json":   locations,
		"accessories.json": accessories,
		"outfits.json":     outfits,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestValidateUnknownLocation(t *testing.T) {
	dir := writeConfigs(t,
		`["HEAD"]`,
		`[{"id":"A","name":"A","location":"TAIL"}]`,
		`[]`,
	)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for unknown accessory location")
	}
}

func TestValidateDuplicatePoint(t *testing.T) {
	dir := writeConfigs(t,
		`["HEAD"]`,
		`[]`,
		`[{"id":"O","name":"O","points":[{"location":"HEAD"},{"location":"HEAD"}]}]`,
	)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for duplicate outfit point")
	}
}

func TestValidateUnknownMounter(t *testing.T) {
	dir := writeConfigs(t,
		`["HEAD"]`,
		`[{"id":"A","name":"A","location":"HEAD","mounters":["WARP"]}]`,
		`[]`,
	)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for unknown mounter kind")
	}
}

func TestValidateDuplicateAccessoryID(t *testing.T) {
	dir := writeConfigs(t,
		`["HEAD"]`,
		`[{"id":"A","name":"A","location":"HEAD"},{"id":"A","name":"B","location":"HEAD"}]`,
		`[]`,
	)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for duplicate accessory id")
	}
}
