package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "avatarkit.gg/internal/persistence/log"
	"avatarkit.gg/internal/persistence/snapshot"
	"avatarkit.gg/internal/sim/catalogs"
	"avatarkit.gg/internal/sim/fitting"
	"avatarkit.gg/internal/sim/tuning"
	"avatarkit.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		roomID     = flag.String("room", "room_1", "room id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable sqlite indexing (tick/audit/catalogs/snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	roomDir := filepath.Join(*dataDir, "rooms", *roomID)
	_ = os.MkdirAll(roomDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.LatestPath(roomDir)
	}

	// Tuning is required for a fresh room; snapshot resumes carry their own
	// effective values, so a missing file falls back to defaults there.
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Default()
	}

	// Optional read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(roomDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	cfg := fitting.RoomConfig{
		ID:                       *roomID,
		TickRateHz:               tune.TickRateHz,
		DefaultEaseTicks:         tune.DefaultEaseTicks,
		AutoRetryStored:          tune.AutoRetryStored,
		SnapshotEveryTicks:       tune.SnapshotEveryTicks,
		ResumeWindowTicks:        tune.ResumeWindowTicks,
		RateCmdWindowTicks:       tune.RateLimits.CmdWindowTicks,
		RateCmdMax:               tune.RateLimits.CmdMax,
		RateSetOutfitWindowTicks: tune.RateLimits.SetOutfitWindowTicks,
		RateSetOutfitMax:         tune.RateLimits.SetOutfitMax,
	}

	var resumed *snapshot.WardrobeV1
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.RoomID != "" && snap.Header.RoomID != *roomID {
			logger.Fatalf("snapshot room id mismatch: flag=%s snap=%s", *roomID, snap.Header.RoomID)
		}
		// The snapshot's effective values win over the tuning file.
		cfg.TickRateHz = snap.TickRate
		cfg.DefaultEaseTicks = snap.DefaultEaseTicks
		cfg.AutoRetryStored = snap.AutoRetryStored
		cfg.SnapshotEveryTicks = snap.SnapshotEveryTicks
		resumed = &snap
	}

	room := fitting.New(cfg, cats, logger)
	if resumed != nil {
		if err := room.ImportSnapshot(*resumed); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), room.CurrentTick())
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(roomDir)
	auditLog := persistlog.NewAuditLogger(roomDir)
	defer tickLog.Close()
	defer auditLog.Close()
	room.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	room.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	// Snapshot writer.
	snapCh := make(chan snapshot.WardrobeV1, 2)
	room.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(roomDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	go func() {
		if err := room.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("room stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := room.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP avatarkit_room_tick Current room tick.\n")
		fmt.Fprintf(rw, "# TYPE avatarkit_room_tick gauge\n")
		fmt.Fprintf(rw, "avatarkit_room_tick{room=%q} %d\n", *roomID, m.Tick)

		fmt.Fprintf(rw, "# HELP avatarkit_room_sessions Current number of connected sessions.\n")
		fmt.Fprintf(rw, "# TYPE avatarkit_room_sessions gauge\n")
		fmt.Fprintf(rw, "avatarkit_room_sessions{room=%q} %d\n", *roomID, m.Sessions)

		fmt.Fprintf(rw, "# HELP avatarkit_room_entities Live entity counts by kind.\n")
		fmt.Fprintf(rw, "# TYPE avatarkit_room_entities gauge\n")
		fmt.Fprintf(rw, "avatarkit_room_entities{room=%q,kind=%q} %d\n", *roomID, "body", m.Bodies)
		fmt.Fprintf(rw, "avatarkit_room_entities{room=%q,kind=%q} %d\n", *roomID, "outfit", m.Outfits)
		fmt.Fprintf(rw, "avatarkit_room_entities{room=%q,kind=%q} %d\n", *roomID, "accessory", m.Accessories)

		fmt.Fprintf(rw, "# HELP avatarkit_room_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE avatarkit_room_queue_depth gauge\n")
		fmt.Fprintf(rw, "avatarkit_room_queue_depth{room=%q,queue=%q} %d\n", *roomID, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "avatarkit_room_queue_depth{room=%q,queue=%q} %d\n", *roomID, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "avatarkit_room_queue_depth{room=%q,queue=%q} %d\n", *roomID, "leave", m.QueueDepths.Leave)

		fmt.Fprintf(rw, "# HELP avatarkit_room_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE avatarkit_room_step_ms gauge\n")
		fmt.Fprintf(rw, "avatarkit_room_step_ms{room=%q} %.3f\n", *roomID, m.StepMS)
	})

	enableAdminHTTP := envBool("AK_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("AK_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				RoomID  string              `json:"room_id"`
				Tick    uint64              `json:"tick"`
				Metrics fitting.RoomMetrics `json:"metrics"`
			}{
				RoomID:  *roomID,
				Tick:    room.CurrentTick(),
				Metrics: room.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			tick, err := room.RequestSnapshot(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
		})
	} else {
		logger.Printf("admin endpoints disabled (AK_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (AK_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(room, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
