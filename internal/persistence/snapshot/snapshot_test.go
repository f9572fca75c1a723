package snapshot

import (
	"fmt"
	"path/filepath"
	"testing"
)

func sample() WardrobeV1 {
	return WardrobeV1{
		Header:           Header{Version: 1, RoomID: "room_1", Tick: 42},
		TickRate:         20,
		DefaultEaseTicks: 6,
		AutoRetryStored:  true,
		Bodies: []BodyV1{
			{
				ID:       "B0001",
				OutfitID: "O0001",
				Pos:      [3]float64{1, 2, 3},
				Managed: []ManagedV1{
					{AccessoryID: "A0001", Location: "HEAD"},
					{AccessoryID: "A0002", Location: "BACK", IgnoreRestrictions: true, Mounter: "EASED", EaseTicks: 4},
				},
			},
		},
		Outfits: []OutfitV1{
			{ID: "O0001", DefID: "OUT_TRAVELER", Status: "IN_USE", BodyID: "B0001"},
			{ID: "O0002", DefID: "OUT_PLATE", Status: "STORED"},
		},
		Accessories: []AccessoryV1{
			{ID: "A0001", DefID: "ACC_HAT_STRAW", Status: "MOUNTED"},
			{ID: "A0002", DefID: "ACC_CAPE_RED", Status: "MOUNTED"},
			{ID: "A0003", DefID: "ACC_LANTERN", Status: "STORED", StoredLoose: true},
		},
		Counters: CountersV1{NextBody: 1, NextOutfit: 2, NextAccessory: 3},
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "42.snap.zst")
	want := sample()
	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header != want.Header {
		t.Fatalf("header = %+v, want %+v", got.Header, want.Header)
	}
	if len(got.Bodies) != 1 || got.Bodies[0].ID != "B0001" {
		t.Fatalf("bodies = %+v", got.Bodies)
	}
	if len(got.Bodies[0].Managed) != 2 || got.Bodies[0].Managed[1].Mounter != "EASED" {
		t.Fatalf("managed = %+v", got.Bodies[0].Managed)
	}
	if len(got.Outfits) != 2 || got.Outfits[1].Status != "STORED" {
		t.Fatalf("outfits = %+v", got.Outfits)
	}
	if len(got.Accessories) != 3 || !got.Accessories[2].StoredLoose {
		t.Fatalf("accessories = %+v", got.Accessories)
	}
	if got.Counters != want.Counters {
		t.Fatalf("counters = %+v, want %+v", got.Counters, want.Counters)
	}
}

func TestLatestPath(t *testing.T) {
	dir := t.TempDir()
	if p := LatestPath(dir); p != "" {
		t.Fatalf("empty dir: got %q", p)
	}
	for _, tick := range []uint64{10, 300, 25} {
		s := sample()
		s.Header.Tick = tick
		path := filepath.Join(dir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
		if err := WriteSnapshot(path, s); err != nil {
			t.Fatalf("write %d: %v", tick, err)
		}
	}
	want := filepath.Join(dir, "snapshots", "300.snap.zst")
	if got := LatestPath(dir); got != want {
		t.Fatalf("latest = %q, want %q", got, want)
	}
}
