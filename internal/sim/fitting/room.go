// Package fitting runs a single-threaded authoritative fitting room.
// All wardrobe state is owned by the room loop goroutine; clients talk
// to it through channels only.
package fitting

import (
	"context"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"avatarkit.gg/internal/persistence/snapshot"
	"avatarkit.gg/internal/protocol"
	"avatarkit.gg/internal/sim/avatar"
	"avatarkit.gg/internal/sim/catalogs"
)

type RoomConfig struct {
	ID                 string
	TickRateHz         int
	DefaultEaseTicks   int
	AutoRetryStored    bool
	SnapshotEveryTicks int

	// ResumeWindowTicks keeps a disconnected session resumable by its token
	// for this many ticks. Zero disables resume; leaves drop the session.
	ResumeWindowTicks int

	RateCmdWindowTicks       int
	RateCmdMax               int
	RateSetOutfitWindowTicks int
	RateSetOutfitMax         int
}

type JoinRequest struct {
	ClientName string
	// ResumeToken, when set, asks to reattach to the detached session that
	// was issued the token instead of creating a new one.
	ResumeToken string
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
}

type CmdEnvelope struct {
	SessionID string
	Cmd       protocol.CmdMsg
}

type RecordedCmd struct {
	SessionID string          `json:"session_id"`
	Cmd       protocol.CmdMsg `json:"cmd"`
}

type TickLogEntry struct {
	Tick   uint64        `json:"tick"`
	Joins  []string      `json:"joins,omitempty"`
	Leaves []string      `json:"leaves,omitempty"`
	Cmds   []RecordedCmd `json:"cmds,omitempty"`
	Digest string        `json:"digest"`
}

type AuditEntry struct {
	Tick        uint64 `json:"tick"`
	Actor       string `json:"actor"`
	Action      string `json:"action"`
	BodyID      string `json:"body_id,omitempty"`
	OutfitID    string `json:"outfit_id,omitempty"`
	AccessoryID string `json:"accessory_id,omitempty"`
	Result      string `json:"result,omitempty"`
	Code        string `json:"code,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type session struct {
	ID          string
	ClientName  string
	ResumeToken string
	Out         chan []byte

	detached   bool
	detachedAt uint64

	cmdWindowStart uint64
	cmdCount       int
	outfitWinStart uint64
	outfitCount    int
}

// Room is a single-threaded authoritative wardrobe simulation.
// All state must be accessed only from the room loop goroutine.
type Room struct {
	cfg      RoomConfig
	catalogs *catalogs.Catalogs
	log      *log.Logger

	tick  atomic.Uint64
	sched *avatar.Scheduler

	bodies      map[string]*avatar.Body
	outfits     map[string]*avatar.Outfit
	accessories map[string]*avatar.Accessory
	// def ids behind each instantiated entity, for inspect and snapshots.
	accessoryDef map[string]string
	outfitDef    map[string]string

	sessions map[string]*session

	inbox   chan CmdEnvelope
	join    chan JoinRequest
	leave   chan string
	snapReq chan chan uint64
	stop    chan struct{}

	nextBodyNum    atomic.Uint64
	nextOutfitNum  atomic.Uint64
	nextAccNum     atomic.Uint64
	nextSessionNum atomic.Uint64

	// Events emitted by avatar observers during the current tick,
	// broadcast to every session at the tick boundary.
	eventsThisTick []protocol.EventMsg

	tickLogger   TickLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.WardrobeV1

	sessionCount   atomic.Int64
	bodyCount      atomic.Int64
	outfitCount    atomic.Int64
	accessoryCount atomic.Int64
	lastStepMS     atomic.Uint64
}

// QueueDepths reports channel backlog at sample time.
type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

// RoomMetrics is a loop-safe snapshot of runtime counters for /metrics.
type RoomMetrics struct {
	Tick        uint64      `json:"tick"`
	Sessions    int64       `json:"sessions"`
	Bodies      int64       `json:"bodies"`
	Accessories int64       `json:"accessories"`
	Outfits     int64       `json:"outfits"`
	StepMS      float64     `json:"step_ms"`
	QueueDepths QueueDepths `json:"queue_depths"`
}

func New(cfg RoomConfig, cats *catalogs.Catalogs, logger *log.Logger) *Room {
	if logger == nil {
		logger = log.Default()
	}
	return &Room{
		cfg:          cfg,
		catalogs:     cats,
		log:          logger,
		sched:        avatar.NewScheduler(),
		bodies:       map[string]*avatar.Body{},
		outfits:      map[string]*avatar.Outfit{},
		accessories:  map[string]*avatar.Accessory{},
		accessoryDef: map[string]string{},
		outfitDef:    map[string]string{},
		sessions:     map[string]*session{},
		inbox:        make(chan CmdEnvelope, 1024),
		join:         make(chan JoinRequest, 64),
		leave:        make(chan string, 64),
		snapReq:      make(chan chan uint64, 4),
		stop:         make(chan struct{}),
	}
}

// OwnerID makes the room itself a valid storage owner for accessories
// that are stored but not managed by any body.
func (r *Room) OwnerID() string { return "room:" + r.cfg.ID }

func (r *Room) ID() string { return r.cfg.ID }

func (r *Room) SetTickLogger(l TickLogger)   { r.tickLogger = l }
func (r *Room) SetAuditLogger(l AuditLogger) { r.auditLogger = l }

func (r *Room) SetSnapshotSink(ch chan<- snapshot.WardrobeV1) { r.snapshotSink = ch }

func (r *Room) Inbox() chan<- CmdEnvelope { return r.inbox }
func (r *Room) Join() chan<- JoinRequest  { return r.join }
func (r *Room) Leave() chan<- string      { return r.leave }

func (r *Room) CurrentTick() uint64 { return r.tick.Load() }

// Metrics may be called from any goroutine.
func (r *Room) Metrics() RoomMetrics {
	return RoomMetrics{
		Tick:        r.tick.Load(),
		Sessions:    r.sessionCount.Load(),
		Bodies:      r.bodyCount.Load(),
		Accessories: r.accessoryCount.Load(),
		Outfits:     r.outfitCount.Load(),
		StepMS:      float64(r.lastStepMS.Load()) / 1000.0,
		QueueDepths: QueueDepths{
			Inbox: len(r.inbox),
			Join:  len(r.join),
			Leave: len(r.leave),
		},
	}
}

func (r *Room) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCmds []CmdEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case req := <-r.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-r.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-r.inbox:
			pendingCmds = append(pendingCmds, env)
		case resp := <-r.snapReq:
			// Safe here: the loop goroutine owns all room state.
			nowTick := r.tick.Load()
			if r.snapshotSink != nil {
				select {
				case r.snapshotSink <- r.exportSnapshot(nowTick):
				default:
					r.log.Printf("room %s: snapshot sink full, dropped requested snapshot", r.cfg.ID)
				}
			}
			resp <- nowTick
		case <-ticker.C:
			r.step(pendingJoins, pendingLeaves, pendingCmds)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCmds = pendingCmds[:0]
		}
	}
}

func (r *Room) Stop() { close(r.stop) }

// RequestSnapshot asks the loop to export a snapshot out of band and
// returns the tick it was taken at.
func (r *Room) RequestSnapshot(ctx context.Context) (uint64, error) {
	resp := make(chan uint64, 1)
	select {
	case r.snapReq <- resp:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case tick := <-resp:
		return tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// StepOnce advances the room by a single tick using the same ordering
// semantics as the server loop. Intended for deterministic tests.
func (r *Room) StepOnce(joins []JoinRequest, leaves []string, cmds []CmdEnvelope) (tick uint64, digest string) {
	tick = r.tick.Load()
	r.step(joins, leaves, cmds)
	return tick, r.stateDigest()
}

func (r *Room) step(joins []JoinRequest, leaves []string, cmds []CmdEnvelope) {
	started := time.Now()
	nowTick := r.tick.Load()

	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		s := r.sessions[id]
		if s == nil || s.detached {
			continue
		}
		if r.cfg.ResumeWindowTicks > 0 {
			// Keep the session resumable; the token holder can reattach.
			s.detached = true
			s.detachedAt = nowTick
			s.Out = nil
			continue
		}
		delete(r.sessions, id)
		recordedLeaves = append(recordedLeaves, id)
	}
	if r.cfg.ResumeWindowTicks > 0 {
		var expired []string
		for id, s := range r.sessions {
			if s.detached && nowTick-s.detachedAt > uint64(r.cfg.ResumeWindowTicks) {
				expired = append(expired, id)
			}
		}
		sort.Strings(expired)
		for _, id := range expired {
			delete(r.sessions, id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]string, 0, len(joins))
	for _, req := range joins {
		resp, sid, resumed := r.joinSession(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
		if !resumed {
			recordedJoins = append(recordedJoins, sid)
		}
	}

	// Apply commands in server receive order.
	recorded := make([]RecordedCmd, 0, len(cmds))
	for _, env := range cmds {
		s := r.sessions[env.SessionID]
		if s == nil {
			continue
		}
		recorded = append(recorded, RecordedCmd{SessionID: env.SessionID, Cmd: env.Cmd})
		r.applyCmd(s, env.Cmd, nowTick)
	}

	// Drive in-flight mounts one step.
	r.sched.Tick()

	// Broadcast events that accumulated during this tick.
	if len(r.eventsThisTick) > 0 {
		for i := range r.eventsThisTick {
			r.eventsThisTick[i].Tick = nowTick
			b := mustJSON(r.eventsThisTick[i])
			for _, s := range r.sessions {
				sendLatest(s.Out, b)
			}
		}
		r.eventsThisTick = r.eventsThisTick[:0]
	}

	if r.tickLogger != nil {
		entry := TickLogEntry{
			Tick:   nowTick,
			Joins:  recordedJoins,
			Leaves: recordedLeaves,
			Cmds:   recorded,
			Digest: r.stateDigest(),
		}
		if err := r.tickLogger.WriteTick(entry); err != nil {
			r.log.Printf("room %s: tick log write failed: %v", r.cfg.ID, err)
		}
	}

	if r.snapshotSink != nil && r.cfg.SnapshotEveryTicks > 0 &&
		nowTick > 0 && nowTick%uint64(r.cfg.SnapshotEveryTicks) == 0 {
		snap := r.exportSnapshot(nowTick)
		select {
		case r.snapshotSink <- snap:
		default:
			r.log.Printf("room %s: snapshot sink full, dropped snapshot at tick %d", r.cfg.ID, nowTick)
		}
	}

	attached := 0
	for _, s := range r.sessions {
		if !s.detached {
			attached++
		}
	}
	r.sessionCount.Store(int64(attached))
	r.bodyCount.Store(int64(len(r.bodies)))
	r.outfitCount.Store(int64(len(r.outfits)))
	r.accessoryCount.Store(int64(len(r.accessories)))
	r.lastStepMS.Store(uint64(time.Since(started).Microseconds()))
	r.tick.Store(nowTick + 1)
}

func (r *Room) audit(e AuditEntry) {
	if r.auditLogger == nil {
		return
	}
	if err := r.auditLogger.WriteAudit(e); err != nil {
		r.log.Printf("room %s: audit write failed: %v", r.cfg.ID, err)
	}
}

// sendLatest never blocks the room loop: if the client buffer is full it
// drops the oldest queued message to make space for the newest.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
