// Package snapshot persists full wardrobe state as zstd-compressed gob
// with a one-line JSON header so tooling can identify a file without
// decoding the whole payload.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	RoomID  string `json:"room_id"`
	Tick    uint64 `json:"tick"`
}

type WardrobeV1 struct {
	Header Header `json:"header"`

	TickRate           int `json:"tick_rate_hz"`
	DefaultEaseTicks   int `json:"default_ease_ticks"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	AutoRetryStored bool `json:"auto_retry_stored"`

	Bodies      []BodyV1      `json:"bodies"`
	Outfits     []OutfitV1    `json:"outfits"`
	Accessories []AccessoryV1 `json:"accessories"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextBody      uint64 `json:"next_body"`
	NextOutfit    uint64 `json:"next_outfit"`
	NextAccessory uint64 `json:"next_accessory"`
}

type BodyV1 struct {
	ID       string     `json:"id"`
	OutfitID string     `json:"outfit_id,omitempty"`
	Pos      [3]float64 `json:"pos"`
	Rot      [3]float64 `json:"rot"`

	// Registration order is mount priority and must survive resume.
	Managed []ManagedV1 `json:"managed,omitempty"`
}

type ManagedV1 struct {
	AccessoryID        string   `json:"accessory_id"`
	Location           string   `json:"location"`
	IgnoreRestrictions bool     `json:"ignore_restrictions,omitempty"`
	Mounter            string   `json:"mounter,omitempty"`
	EaseTicks          int      `json:"ease_ticks,omitempty"`
	AdditionalCoverage []string `json:"additional_coverage,omitempty"`
}

type OutfitV1 struct {
	ID     string `json:"id"`
	DefID  string `json:"def_id"`
	Status string `json:"status"`
	BodyID string `json:"body_id,omitempty"`
}

type AccessoryV1 struct {
	ID     string `json:"id"`
	DefID  string `json:"def_id"`
	Status string `json:"status"`
	// StoredLoose marks accessories held in room storage without a body.
	StoredLoose bool `json:"stored_loose,omitempty"`
}

func WriteSnapshot(path string, snap WardrobeV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (WardrobeV1, error) {
	var snap WardrobeV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is informational only; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// LatestPath returns the snapshot with the highest tick under
// <dir>/snapshots, or "" when none exist.
func LatestPath(dir string) string {
	entries, err := os.ReadDir(filepath.Join(dir, "snapshots"))
	if err != nil {
		return ""
	}
	type cand struct {
		tick uint64
		name string
	}
	var cands []cand
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		cands = append(cands, cand{tick: n, name: name})
	}
	if len(cands) == 0 {
		return ""
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].tick > cands[j].tick })
	return filepath.Join(dir, "snapshots", cands[0].name)
}
