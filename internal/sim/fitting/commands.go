package fitting

import (
	"encoding/json"
	"errors"

	"avatarkit.gg/internal/protocol"
	"avatarkit.gg/internal/sim/avatar"
)

type cmdHandler func(*Room, *session, protocol.CmdMsg, uint64) protocol.AckMsg

var cmdDispatch = map[string]cmdHandler{
	protocol.VerbSpawnBody:        (*Room).handleSpawnBody,
	protocol.VerbCreateOutfit:     (*Room).handleCreateOutfit,
	protocol.VerbCreateAccessory:  (*Room).handleCreateAccessory,
	protocol.VerbSetOutfit:        (*Room).handleSetOutfit,
	protocol.VerbAddAccessory:     (*Room).handleAddAccessory,
	protocol.VerbModifyAccessory:  (*Room).handleModifyAccessory,
	protocol.VerbRemoveAccessory:  (*Room).handleRemoveAccessory,
	protocol.VerbStoreAccessory:   (*Room).handleStoreAccessory,
	protocol.VerbReleaseAccessory: (*Room).handleReleaseAccessory,
	protocol.VerbDestroyAccessory: (*Room).handleDestroyAccessory,
	protocol.VerbInspect:          (*Room).handleInspect,
}

func (r *Room) applyCmd(s *session, cmd protocol.CmdMsg, nowTick uint64) {
	ack := r.dispatchCmd(s, cmd, nowTick)
	ack.Type = protocol.TypeAck
	ack.ProtocolVersion = protocol.Version
	ack.AckFor = cmd.CmdID
	ack.ServerTick = nowTick
	sendLatest(s.Out, mustJSON(ack))

	r.audit(AuditEntry{
		Tick:        nowTick,
		Actor:       s.ID,
		Action:      cmd.Verb,
		BodyID:      cmd.BodyID,
		OutfitID:    cmd.OutfitID,
		AccessoryID: cmd.AccessoryID,
		Result:      ack.Result,
		Code:        ack.Code,
		Reason:      ack.Reason,
	})
}

func (r *Room) dispatchCmd(s *session, cmd protocol.CmdMsg, nowTick uint64) protocol.AckMsg {
	if cmd.ProtocolVersion != protocol.Version {
		return reject(protocol.ErrProtoBadRequest, "unsupported protocol version: "+cmd.ProtocolVersion)
	}
	h := cmdDispatch[cmd.Verb]
	if h == nil {
		return reject(protocol.ErrBadRequest, "unknown verb: "+cmd.Verb)
	}
	if code := r.checkRate(s, cmd.Verb, nowTick); code != "" {
		return reject(code, "rate limit exceeded")
	}
	return h(r, s, cmd, nowTick)
}

func (r *Room) checkRate(s *session, verb string, nowTick uint64) string {
	if r.cfg.RateCmdMax > 0 {
		win := uint64(r.cfg.RateCmdWindowTicks)
		if nowTick-s.cmdWindowStart >= win {
			s.cmdWindowStart = nowTick
			s.cmdCount = 0
		}
		s.cmdCount++
		if s.cmdCount > r.cfg.RateCmdMax {
			return protocol.ErrRateLimit
		}
	}
	if verb == protocol.VerbSetOutfit && r.cfg.RateSetOutfitMax > 0 {
		win := uint64(r.cfg.RateSetOutfitWindowTicks)
		if nowTick-s.outfitWinStart >= win {
			s.outfitWinStart = nowTick
			s.outfitCount = 0
		}
		s.outfitCount++
		if s.outfitCount > r.cfg.RateSetOutfitMax {
			return protocol.ErrRateLimit
		}
	}
	return ""
}

func reject(code, reason string) protocol.AckMsg {
	return protocol.AckMsg{Accepted: false, Code: code, Reason: reason}
}

func accept() protocol.AckMsg {
	return protocol.AckMsg{Accepted: true}
}

func (r *Room) handleSpawnBody(_ *session, _ protocol.CmdMsg, _ uint64) protocol.AckMsg {
	b := r.spawnBody()
	ack := accept()
	ack.EntityID = b.ID()
	return ack
}

func (r *Room) handleCreateOutfit(_ *session, cmd protocol.CmdMsg, _ uint64) protocol.AckMsg {
	def, ok := r.catalogs.Outfits.ByID[cmd.DefID]
	if !ok {
		return reject(protocol.ErrNotFound, "unknown outfit def: "+cmd.DefID)
	}
	o, err := r.instantiateOutfit(def)
	if err != nil {
		return reject(protocol.ErrInternal, err.Error())
	}
	ack := accept()
	ack.EntityID = o.ID()
	return ack
}

func (r *Room) handleCreateAccessory(_ *session, cmd protocol.CmdMsg, _ uint64) protocol.AckMsg {
	def, ok := r.catalogs.Accessories.ByID[cmd.DefID]
	if !ok {
		return reject(protocol.ErrNotFound, "unknown accessory def: "+cmd.DefID)
	}
	a, err := r.instantiateAccessory(def)
	if err != nil {
		return reject(protocol.ErrInternal, err.Error())
	}
	ack := accept()
	ack.EntityID = a.ID()
	return ack
}

func (r *Room) handleSetOutfit(_ *session, cmd protocol.CmdMsg, _ uint64) protocol.AckMsg {
	b := r.bodies[cmd.BodyID]
	if b == nil {
		return reject(protocol.ErrNotFound, "unknown body: "+cmd.BodyID)
	}
	var next *avatar.Outfit
	if cmd.OutfitID != "" {
		next = r.outfits[cmd.OutfitID]
		if next == nil {
			return reject(protocol.ErrNotFound, "unknown outfit: "+cmd.OutfitID)
		}
	}
	if err := b.SetOutfit(next, cmd.ForceRelease); err != nil {
		return reject(codeFor(err), err.Error())
	}
	return accept()
}

func (r *Room) mountInfo(cmd protocol.CmdMsg) (avatar.MountInfo, string) {
	var info avatar.MountInfo

	loc := cmd.Location
	if loc == "" {
		// Fall back to the def's home location.
		defID := r.accessoryDef[cmd.AccessoryID]
		if def, ok := r.catalogs.Accessories.ByID[defID]; ok {
			loc = def.Location
		}
	}
	if loc == "" {
		return info, "no mount location"
	}
	info.Location = avatar.Location(loc)
	info.IgnoreRestrictions = cmd.IgnoreRestrictions

	if cmd.Mounter != "" {
		m, err := r.buildMounter(cmd.Mounter, cmd.EaseTicks)
		if err != nil {
			return info, err.Error()
		}
		info.Mounter = m
	}
	if len(cmd.AdditionalCoverage) > 0 {
		extra, err := avatar.ParseCoverage(cmd.AdditionalCoverage)
		if err != nil {
			return info, err.Error()
		}
		info.AdditionalCoverage = extra
	}
	return info, ""
}

func (r *Room) handleAddAccessory(_ *session, cmd protocol.CmdMsg, _ uint64) protocol.AckMsg {
	b := r.bodies[cmd.BodyID]
	if b == nil {
		return reject(protocol.ErrNotFound, "unknown body: "+cmd.BodyID)
	}
	a := r.accessories[cmd.AccessoryID]
	if a == nil {
		return reject(protocol.ErrNotFound, "unknown accessory: "+cmd.AccessoryID)
	}
	info, errReason := r.mountInfo(cmd)
	if errReason != "" {
		return reject(protocol.ErrBadRequest, errReason)
	}

	mgr := b.Accessories()
	outcome, err := mgr.Add(a, info, cmd.MustMount)
	if err != nil {
		ack := reject(codeFor(err), err.Error())
		ack.Result = outcome.String()
		return ack
	}
	if outcome == avatar.OutcomeFailed {
		// mustMount and the mount did not take; nothing was registered.
		ack := reject(protocol.ErrMustMount, "mount required but failed: "+mgr.LastMountResult().String())
		ack.Result = outcome.String()
		return ack
	}
	ack := accept()
	ack.Result = outcome.String()
	if outcome == avatar.OutcomeStored {
		// Stored is a fallback; the code says why the mount itself failed.
		ack.Code = mountCode(mgr.LastMountResult())
	}
	return ack
}

func (r *Room) handleModifyAccessory(_ *session, cmd protocol.CmdMsg, _ uint64) protocol.AckMsg {
	b := r.bodies[cmd.BodyID]
	if b == nil {
		return reject(protocol.ErrNotFound, "unknown body: "+cmd.BodyID)
	}
	a := r.accessories[cmd.AccessoryID]
	if a == nil {
		return reject(protocol.ErrNotFound, "unknown accessory: "+cmd.AccessoryID)
	}
	info, errReason := r.mountInfo(cmd)
	if errReason != "" {
		return reject(protocol.ErrBadRequest, errReason)
	}

	mgr := b.Accessories()
	outcome, err := mgr.Modify(a, info)
	if err != nil {
		ack := reject(codeFor(err), err.Error())
		ack.Result = outcome.String()
		return ack
	}
	ack := accept()
	ack.Result = outcome.String()
	if outcome == avatar.OutcomeStored {
		ack.Code = mountCode(mgr.LastMountResult())
	}
	return ack
}

func (r *Room) handleRemoveAccessory(_ *session, cmd protocol.CmdMsg, _ uint64) protocol.AckMsg {
	b := r.bodies[cmd.BodyID]
	if b == nil {
		return reject(protocol.ErrNotFound, "unknown body: "+cmd.BodyID)
	}
	a := r.accessories[cmd.AccessoryID]
	if a == nil {
		return reject(protocol.ErrNotFound, "unknown accessory: "+cmd.AccessoryID)
	}
	if err := b.Accessories().Remove(a); err != nil {
		return reject(codeFor(err), err.Error())
	}
	return accept()
}

func (r *Room) handleStoreAccessory(_ *session, cmd protocol.CmdMsg, _ uint64) protocol.AckMsg {
	a := r.accessories[cmd.AccessoryID]
	if a == nil {
		return reject(protocol.ErrNotFound, "unknown accessory: "+cmd.AccessoryID)
	}
	owner := a.Owner()
	if owner == nil {
		// Loose accessories go into room storage.
		owner = r
	}
	if err := a.Store(owner); err != nil {
		return reject(codeFor(err), err.Error())
	}
	return accept()
}

func (r *Room) handleReleaseAccessory(_ *session, cmd protocol.CmdMsg, _ uint64) protocol.AckMsg {
	a := r.accessories[cmd.AccessoryID]
	if a == nil {
		return reject(protocol.ErrNotFound, "unknown accessory: "+cmd.AccessoryID)
	}
	if a.Defunct() {
		return reject(protocol.ErrNotLive, "accessory destroyed")
	}
	a.Release()
	return accept()
}

func (r *Room) handleDestroyAccessory(_ *session, cmd protocol.CmdMsg, _ uint64) protocol.AckMsg {
	a := r.accessories[cmd.AccessoryID]
	if a == nil {
		return reject(protocol.ErrNotFound, "unknown accessory: "+cmd.AccessoryID)
	}
	// Wire destroys always tear down; prepare-only destroys exist for
	// in-process owners that manage teardown themselves.
	a.Destroy(avatar.DestroyExplicit, false)
	return accept()
}

func (r *Room) handleInspect(s *session, cmd protocol.CmdMsg, nowTick uint64) protocol.AckMsg {
	b := r.bodies[cmd.BodyID]
	if b == nil {
		return reject(protocol.ErrNotFound, "unknown body: "+cmd.BodyID)
	}
	msg := r.wardrobeMsg(b, cmd.CmdID, nowTick)
	sendLatest(s.Out, mustJSON(msg))
	return accept()
}

// mountCode maps a recoverable mount-resolution failure to its wire code.
func mountCode(r avatar.MountResult) string {
	switch r {
	case avatar.MountNoPoint:
		return protocol.ErrNoPoint
	case avatar.MountPointBlocked:
		return protocol.ErrPointBlocked
	case avatar.MountLimited:
		return protocol.ErrLimited
	case avatar.MountBlocked:
		return protocol.ErrBlocked
	case avatar.MountRejected:
		return protocol.ErrRejected
	}
	return ""
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, avatar.ErrNotLive):
		return protocol.ErrNotLive
	case errors.Is(err, avatar.ErrPurged):
		return protocol.ErrNotLive
	case errors.Is(err, avatar.ErrAlreadyManaged):
		return protocol.ErrAlreadyManaged
	case errors.Is(err, avatar.ErrAlreadyAdded):
		return protocol.ErrDuplicate
	case errors.Is(err, avatar.ErrNotRegistered):
		return protocol.ErrNotFound
	case errors.Is(err, avatar.ErrNilAccessory),
		errors.Is(err, avatar.ErrNilMountPoint),
		errors.Is(err, avatar.ErrNilOwner),
		errors.Is(err, avatar.ErrNilOutfit):
		return protocol.ErrBadRequest
	}
	return protocol.ErrInternal
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
