package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Catalogs struct {
	Locations   LocationCatalog
	Accessories AccessoryCatalog
	Outfits     OutfitCatalog
}

type LocationCatalog struct {
	Palette []string
	Index   map[string]uint16
	Digest  string
}

type AccessoryCatalog struct {
	ByID   map[string]AccessoryDef
	Order  []string
	Digest string
}

type AccessoryDef struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location string   `json:"location"`
	Coverage []string `json:"coverage,omitempty"`
	// Mounters is the ordered candidate list: "IMMEDIATE" or "EASED".
	Mounters             []string `json:"mounters,omitempty"`
	EaseTicks            int      `json:"ease_ticks,omitempty"`
	IgnoreLimited        bool     `json:"ignore_limited,omitempty"`
	DeactivateWhenStored bool     `json:"deactivate_when_stored,omitempty"`
	InternalMount        bool     `json:"internal_mount,omitempty"`
}

type OutfitCatalog struct {
	ByID   map[string]OutfitDef
	Order  []string
	Digest string
}

type OutfitDef struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	CoverageBlocks     []string      `json:"coverage_blocks,omitempty"`
	AccessoriesLimited bool          `json:"accessories_limited,omitempty"`
	Points             []PointDef    `json:"points"`
	Parts              []PartDef     `json:"parts,omitempty"`
	Materials          []MaterialDef `json:"materials,omitempty"`
	Animator           string        `json:"animator,omitempty"`
}

type PointDef struct {
	Location string `json:"location"`
	Blocked  bool   `json:"blocked,omitempty"`
}

type PartDef struct {
	Region string `json:"region"`
}

type MaterialDef struct {
	Slot    string `json:"slot"`
	Shader  string `json:"shader,omitempty"`
	Texture string `json:"texture,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadLocations(filepath.Join(configDir, "locations.json"), &c.Locations); err != nil {
		return nil, err
	}
	if err := loadAccessories(filepath.Join(configDir, "accessories.json"), &c.Accessories); err != nil {
		return nil, err
	}
	if err := loadOutfits(filepath.Join(configDir, "outfits.json"), &c.Outfits); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadLocations(path string, out *LocationCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var palette []string
	if err := json.Unmarshal(raw, &palette); err != nil {
		return fmt.Errorf("locations.json: %w", err)
	}
	out.Index = make(map[string]uint16, len(palette))
	for i, id := range palette {
		if id == "" {
			return fmt.Errorf("locations.json: empty id at %d", i)
		}
		if _, dup := out.Index[id]; dup {
			return fmt.Errorf("locations.json: duplicate id %q", id)
		}
		out.Index[id] = uint16(i)
	}
	out.Palette = palette
	return nil
}

func loadAccessories(path string, out *AccessoryCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []AccessoryDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("accessories.json: %w", err)
	}
	out.ByID = make(map[string]AccessoryDef, len(defs))
	out.Order = make([]string, 0, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("accessories.json: empty id")
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("accessories.json: duplicate id %q", d.ID)
		}
		out.ByID[d.ID] = d
		out.Order = append(out.Order, d.ID)
	}
	return nil
}

func loadOutfits(path string, out *OutfitCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []OutfitDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("outfits.json: %w", err)
	}
	out.ByID = make(map[string]OutfitDef, len(defs))
	out.Order = make([]string, 0, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("outfits.json: empty id")
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("outfits.json: duplicate id %q", d.ID)
		}
		out.ByID[d.ID] = d
		out.Order = append(out.Order, d.ID)
	}
	return nil
}

// validate cross-checks references: every location an accessory or outfit
// names must be in the palette, and an outfit holds at most one point per
// location.
func (c *Catalogs) validate() error {
	for _, id := range c.Accessories.Order {
		d := c.Accessories.ByID[id]
		if _, ok := c.Locations.Index[d.Location]; !ok {
			return fmt.Errorf("accessory %q: unknown location %q", id, d.Location)
		}
		for _, m := range d.Mounters {
			if m != "IMMEDIATE" && m != "EASED" {
				return fmt.Errorf("accessory %q: unknown mounter %q", id, m)
			}
		}
	}
	for _, id := range c.Outfits.Order {
		d := c.Outfits.ByID[id]
		seen := map[string]bool{}
		for _, p := range d.Points {
			if _, ok := c.Locations.Index[p.Location]; !ok {
				return fmt.Errorf("outfit %q: unknown location %q", id, p.Location)
			}
			if seen[p.Location] {
				return fmt.Errorf("outfit %q: duplicate point %q", id, p.Location)
			}
			seen[p.Location] = true
		}
	}
	return nil
}
