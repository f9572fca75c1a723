package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"avatarkit.gg/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	roomID := fs.String("room", "", "room id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "rooms")
	if *roomID != "" {
		base = filepath.Join(base, *roomID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// inspectCmd dumps a wardrobe snapshot as JSON, either a specific file or
// the latest one under the room's data directory.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	roomID := fs.String("room", "", "room id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	headerOnly := fs.Bool("header", false, "print only the snapshot header")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*roomID) == "" {
			fmt.Fprintln(os.Stderr, "missing -room or -snapshot")
			os.Exit(2)
		}
		path = snapshot.LatestPath(filepath.Join(*dataDir, "rooms", *roomID))
		if path == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
			os.Exit(2)
		}
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	if *headerOnly {
		printJSON(struct {
			Path        string `json:"path"`
			Version     int    `json:"version"`
			RoomID      string `json:"room_id"`
			Tick        uint64 `json:"tick"`
			Bodies      int    `json:"bodies"`
			Outfits     int    `json:"outfits"`
			Accessories int    `json:"accessories"`
		}{
			Path:        path,
			Version:     snap.Header.Version,
			RoomID:      snap.Header.RoomID,
			Tick:        snap.Header.Tick,
			Bodies:      len(snap.Bodies),
			Outfits:     len(snap.Outfits),
			Accessories: len(snap.Accessories),
		})
		return
	}
	printJSON(snap)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
