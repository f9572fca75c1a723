package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	roomID := fs.String("room", "", "room id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "lower tick bound (inclusive)")
	limit := fs.Int("limit", 20, "result limit")
	actor := fs.String("actor", "", "actor filter (audits)")
	body := fs.String("body", "", "body_id filter (audits)")
	session := fs.String("session", "", "session_id filter (cmds)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*roomID) == "" {
			fmt.Fprintln(os.Stderr, "missing -room or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "rooms", *roomID, "index", "room.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,bodies,outfits,accessories FROM snapshots ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick        int64  `json:"tick"`
				Path        string `json:"path"`
				Bodies      int    `json:"bodies"`
				Outfits     int    `json:"outfits"`
				Accessories int    `json:"accessories"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Bodies, &r.Outfits, &r.Accessories); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,joins,leaves,cmds FROM ticks WHERE tick>=? ORDER BY tick DESC LIMIT ?`, *sinceTick, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   int64  `json:"tick"`
				Digest string `json:"digest"`
				Joins  int    `json:"joins"`
				Leaves int    `json:"leaves"`
				Cmds   int    `json:"cmds"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Joins, &r.Leaves, &r.Cmds); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "cmds":
		query := `SELECT tick,seq,session_id,verb,cmd_json FROM cmds WHERE tick>=? ORDER BY tick DESC, seq ASC LIMIT ?`
		qargs := []any{*sinceTick, *limit}
		if strings.TrimSpace(*session) != "" {
			query = `SELECT tick,seq,session_id,verb,cmd_json FROM cmds WHERE tick>=? AND session_id=? ORDER BY tick DESC, seq ASC LIMIT ?`
			qargs = []any{*sinceTick, strings.TrimSpace(*session), *limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick      int64  `json:"tick"`
				Seq       int64  `json:"seq"`
				SessionID string `json:"session_id"`
				Verb      string `json:"verb"`
				CmdJSON   string `json:"cmd_json"`
			}
			if err := rows.Scan(&r.Tick, &r.Seq, &r.SessionID, &r.Verb, &r.CmdJSON); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "audits":
		query := `SELECT tick,seq,actor,action,body_id,outfit_id,accessory_id,result,code,reason FROM audits WHERE tick>=?`
		qargs := []any{*sinceTick}
		if strings.TrimSpace(*actor) != "" {
			query += ` AND actor=?`
			qargs = append(qargs, strings.TrimSpace(*actor))
		}
		if strings.TrimSpace(*body) != "" {
			query += ` AND body_id=?`
			qargs = append(qargs, strings.TrimSpace(*body))
		}
		query += ` ORDER BY tick DESC, seq ASC LIMIT ?`
		qargs = append(qargs, *limit)
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick        int64          `json:"tick"`
				Seq         int64          `json:"seq"`
				Actor       string         `json:"actor"`
				Action      string         `json:"action"`
				BodyID      sql.NullString `json:"-"`
				OutfitID    sql.NullString `json:"-"`
				AccessoryID sql.NullString `json:"-"`
				Result      sql.NullString `json:"-"`
				Code        sql.NullString `json:"-"`
				Reason      sql.NullString `json:"-"`
			}
			if err := rows.Scan(&r.Tick, &r.Seq, &r.Actor, &r.Action, &r.BodyID, &r.OutfitID, &r.AccessoryID, &r.Result, &r.Code, &r.Reason); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(map[string]any{
				"tick":         r.Tick,
				"seq":          r.Seq,
				"actor":        r.Actor,
				"action":       r.Action,
				"body_id":      r.BodyID.String,
				"outfit_id":    r.OutfitID.String,
				"accessory_id": r.AccessoryID.String,
				"result":       r.Result.String,
				"code":         r.Code.String,
				"reason":       r.Reason.String,
			})
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-room ROOM|-db PATH] [-since_tick T] [-limit N] snapshots|ticks|cmds|audits|catalogs")
		os.Exit(2)
	}
}
