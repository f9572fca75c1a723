package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"avatarkit.gg/internal/persistence/indexdb"
	"avatarkit.gg/internal/persistence/snapshot"
	"avatarkit.gg/internal/sim/catalogs"
	"avatarkit.gg/internal/sim/fitting"
	"avatarkit.gg/internal/sim/tuning"
)

type runtimeIndex interface {
	fitting.TickLogger
	fitting.AuditLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.WardrobeV1)
}

func openRuntimeIndex(roomDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("AK_INDEX_BACKEND")))
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "", "sqlite":
		dbPath := filepath.Join(roomDir, "index", "room.sqlite")
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported AK_INDEX_BACKEND: %s", backend)
	}
}

// multiTickLogger fans tick entries out to the JSONL file and the index.
type multiTickLogger struct {
	a fitting.TickLogger
	b runtimeIndex
}

func (m multiTickLogger) WriteTick(entry fitting.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a fitting.AuditLogger
	b runtimeIndex
}

func (m multiAuditLogger) WriteAudit(entry fitting.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
