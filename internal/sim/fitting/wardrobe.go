package fitting

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"avatarkit.gg/internal/protocol"
	"avatarkit.gg/internal/sim/avatar"
)

func (r *Room) wardrobeMsg(b *avatar.Body, reqID string, nowTick uint64) protocol.WardrobeMsg {
	msg := protocol.WardrobeMsg{
		Type:            protocol.TypeWardrobe,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Tick:            nowTick,
		Body:            r.bodyState(b),
	}
	for _, a := range b.Accessories().Accessories() {
		msg.Accessories = append(msg.Accessories, r.accessoryState(a))
	}
	return msg
}

func (r *Room) bodyState(b *avatar.Body) protocol.BodyState {
	st := protocol.BodyState{
		ID:              b.ID(),
		DefaultPosition: b.DefaultPosition().ToArray(),
		DefaultRotation: b.DefaultRotation().ToArray(),
	}
	if o := b.Outfit(); o != nil {
		st.OutfitID = o.ID()
		st.OutfitStatus = o.Status().String()
		st.OutfitCoverage = o.CurrentCoverage().Regions()
	}
	return st
}

func (r *Room) accessoryState(a *avatar.Accessory) protocol.AccessoryState {
	st := protocol.AccessoryState{
		ID:      a.ID(),
		DefID:   r.accessoryDef[a.ID()],
		Status:  a.Status().String(),
		Mounted: a.Status().Attached(),
	}
	if owner := a.Owner(); owner != nil {
		st.OwnerID = owner.OwnerID()
	}
	if p := a.Point(); p != nil {
		st.Location = string(p.Location)
	}
	if a.Status().Attached() {
		st.Coverage = a.Coverage().Regions()
	}
	return st
}

// stateDigest hashes the full wardrobe state in deterministic order. Two
// rooms that processed the same commands at the same ticks produce the
// same digest.
func (r *Room) stateDigest() string {
	h := sha256.New()
	w := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}

	bodyIDs := sortedKeys(r.bodies)
	for _, id := range bodyIDs {
		b := r.bodies[id]
		w("body", id)
		if o := b.Outfit(); o != nil {
			w(o.ID(), o.Status().String())
		}
		for _, a := range b.Accessories().Accessories() {
			w(a.ID(), a.Status().String())
		}
	}
	for _, id := range sortedKeys(r.outfits) {
		o := r.outfits[id]
		w("outfit", id, r.outfitDef[id], o.Status().String())
	}
	for _, id := range sortedKeys(r.accessories) {
		a := r.accessories[id]
		w("accessory", id, r.accessoryDef[id], a.Status().String())
		if p := a.Point(); p != nil {
			w(string(p.Location))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
