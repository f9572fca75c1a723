package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"avatarkit.gg/internal/persistence/snapshot"
	"avatarkit.gg/internal/protocol"
	"avatarkit.gg/internal/sim/fitting"
	"avatarkit.gg/internal/sim/tuning"
)

// Close drains the writer queue and commits, so queries against the raw
// file afterwards are deterministic.
func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTickAndCmdIndexing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "room.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	entry := fitting.TickLogEntry{
		Tick:   5,
		Joins:  []string{"S0001"},
		Digest: "abc",
		Cmds: []fitting.RecordedCmd{
			{SessionID: "S0001", Cmd: protocol.CmdMsg{CmdID: "c1", Verb: protocol.VerbSpawnBody}},
			{SessionID: "S0001", Cmd: protocol.CmdMsg{CmdID: "c2", Verb: protocol.VerbCreateOutfit, DefID: "OUT_TRAVELER"}},
		},
	}
	if err := idx.WriteTick(entry); err != nil {
		t.Fatalf("write tick: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db := openRaw(t, path)
	var digest string
	var cmds int
	if err := db.QueryRow(`SELECT digest,cmds FROM ticks WHERE tick=5`).Scan(&digest, &cmds); err != nil {
		t.Fatalf("query tick: %v", err)
	}
	if digest != "abc" || cmds != 2 {
		t.Fatalf("tick row = %s/%d", digest, cmds)
	}
	var verb string
	if err := db.QueryRow(`SELECT verb FROM cmds WHERE tick=5 AND seq=1`).Scan(&verb); err != nil {
		t.Fatalf("query cmd: %v", err)
	}
	if verb != protocol.VerbCreateOutfit {
		t.Fatalf("verb = %s", verb)
	}
}

func TestAuditIndexing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "room.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	audits := []fitting.AuditEntry{
		{Tick: 3, Actor: "S0001", Action: "add_accessory", BodyID: "B0001", AccessoryID: "A0001", Result: "MOUNTED"},
		{Tick: 3, Actor: "S0001", Action: "store_accessory", AccessoryID: "A0002"},
		{Tick: 4, Actor: "S0002", Action: "set_outfit", BodyID: "B0001", OutfitID: "O0001", Code: "E_RATE_LIMIT"},
	}
	for _, a := range audits {
		if err := idx.WriteAudit(a); err != nil {
			t.Fatalf("write audit: %v", err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db := openRaw(t, path)
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audits WHERE actor='S0001'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("S0001 audits = %d, want 2", n)
	}
	// Per-tick sequence restarts.
	var seq int
	if err := db.QueryRow(`SELECT seq FROM audits WHERE tick=4`).Scan(&seq); err != nil {
		t.Fatalf("seq: %v", err)
	}
	if seq != 0 {
		t.Fatalf("seq = %d, want 0", seq)
	}
}

func TestSnapshotMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "room.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	snap := snapshot.WardrobeV1{
		Header:      snapshot.Header{Version: 1, RoomID: "room_1", Tick: 100},
		Bodies:      []snapshot.BodyV1{{ID: "B0001"}},
		Outfits:     []snapshot.OutfitV1{{ID: "O0001"}, {ID: "O0002"}},
		Accessories: []snapshot.AccessoryV1{{ID: "A0001"}},
	}
	idx.RecordSnapshot("/data/rooms/room_1/snapshots/100.snap.zst", snap)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db := openRaw(t, path)
	var p string
	var bodies, outfits, accessories int
	if err := db.QueryRow(`SELECT path,bodies,outfits,accessories FROM snapshots WHERE tick=100`).Scan(&p, &bodies, &outfits, &accessories); err != nil {
		t.Fatalf("query: %v", err)
	}
	if bodies != 1 || outfits != 2 || accessories != 1 {
		t.Fatalf("counts = %d/%d/%d", bodies, outfits, accessories)
	}
}

func TestUpsertCatalogsWritesTuning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "room.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.UpsertCatalogs("", nil, tuning.Default()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db := openRaw(t, path)
	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='tuning'`).Scan(&digest); err != nil {
		t.Fatalf("query: %v", err)
	}
	if digest == "" {
		t.Fatalf("empty tuning digest")
	}
}
