package fitting

import (
	"fmt"

	"avatarkit.gg/internal/persistence/snapshot"
	"avatarkit.gg/internal/sim/avatar"
)

func (r *Room) exportSnapshot(nowTick uint64) snapshot.WardrobeV1 {
	snap := snapshot.WardrobeV1{
		Header: snapshot.Header{
			Version: 1,
			RoomID:  r.cfg.ID,
			Tick:    nowTick,
		},
		TickRate:           r.cfg.TickRateHz,
		DefaultEaseTicks:   r.cfg.DefaultEaseTicks,
		SnapshotEveryTicks: r.cfg.SnapshotEveryTicks,
		AutoRetryStored:    r.cfg.AutoRetryStored,
		Counters: snapshot.CountersV1{
			NextBody:      r.nextBodyNum.Load(),
			NextOutfit:    r.nextOutfitNum.Load(),
			NextAccessory: r.nextAccNum.Load(),
		},
	}

	for _, id := range sortedKeys(r.bodies) {
		b := r.bodies[id]
		bv := snapshot.BodyV1{
			ID:  id,
			Pos: b.DefaultPosition().ToArray(),
			Rot: b.DefaultRotation().ToArray(),
		}
		if o := b.Outfit(); o != nil {
			bv.OutfitID = o.ID()
		}
		mgr := b.Accessories()
		for _, a := range mgr.Accessories() {
			info, ok := mgr.Info(a)
			if !ok {
				continue
			}
			mv := snapshot.ManagedV1{
				AccessoryID:        a.ID(),
				Location:           string(info.Location),
				IgnoreRestrictions: info.IgnoreRestrictions,
				AdditionalCoverage: info.AdditionalCoverage.Regions(),
			}
			switch m := info.Mounter.(type) {
			case *avatar.ImmediateMounter:
				mv.Mounter = "IMMEDIATE"
			case *avatar.EasedMounter:
				mv.Mounter = "EASED"
				mv.EaseTicks = m.DurationTicks
			}
			bv.Managed = append(bv.Managed, mv)
		}
		snap.Bodies = append(snap.Bodies, bv)
	}

	for _, id := range sortedKeys(r.outfits) {
		o := r.outfits[id]
		ov := snapshot.OutfitV1{
			ID:     id,
			DefID:  r.outfitDef[id],
			Status: o.Status().String(),
		}
		if b, ok := o.Owner().(*avatar.Body); ok {
			ov.BodyID = b.ID()
		}
		snap.Outfits = append(snap.Outfits, ov)
	}

	for _, id := range sortedKeys(r.accessories) {
		a := r.accessories[id]
		av := snapshot.AccessoryV1{
			ID:     id,
			DefID:  r.accessoryDef[id],
			Status: a.Status().String(),
		}
		if a.Owner() == avatar.Owner(r) {
			av.StoredLoose = true
		}
		snap.Accessories = append(snap.Accessories, av)
	}

	return snap
}

// ImportSnapshot rebuilds room state from a snapshot. Must run before the
// room loop starts.
func (r *Room) ImportSnapshot(snap snapshot.WardrobeV1) error {
	if snap.Header.Version != 1 {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}

	r.tick.Store(snap.Header.Tick)
	r.nextBodyNum.Store(snap.Counters.NextBody)
	r.nextOutfitNum.Store(snap.Counters.NextOutfit)
	r.nextAccNum.Store(snap.Counters.NextAccessory)

	for _, av := range snap.Accessories {
		def, ok := r.catalogs.Accessories.ByID[av.DefID]
		if !ok {
			return fmt.Errorf("snapshot accessory %s: unknown def %s", av.ID, av.DefID)
		}
		a, err := r.instantiateAccessoryWithID(av.ID, def)
		if err != nil {
			return err
		}
		if av.StoredLoose {
			if err := a.Store(r); err != nil {
				return fmt.Errorf("snapshot accessory %s: %w", av.ID, err)
			}
		}
	}

	for _, ov := range snap.Outfits {
		def, ok := r.catalogs.Outfits.ByID[ov.DefID]
		if !ok {
			return fmt.Errorf("snapshot outfit %s: unknown def %s", ov.ID, ov.DefID)
		}
		if _, err := r.instantiateOutfitWithID(ov.ID, def); err != nil {
			return err
		}
	}

	for _, bv := range snap.Bodies {
		b := r.spawnBodyWithID(bv.ID)
		b.SetDefaultTransform(
			avatar.Vec3{X: bv.Pos[0], Y: bv.Pos[1], Z: bv.Pos[2]},
			avatar.Vec3{X: bv.Rot[0], Y: bv.Rot[1], Z: bv.Rot[2]},
		)
		if bv.OutfitID != "" {
			o := r.outfits[bv.OutfitID]
			if o == nil {
				return fmt.Errorf("snapshot body %s: unknown outfit %s", bv.ID, bv.OutfitID)
			}
			if err := b.SetOutfit(o, false); err != nil {
				return fmt.Errorf("snapshot body %s: %w", bv.ID, err)
			}
		}
		for _, mv := range bv.Managed {
			a := r.accessories[mv.AccessoryID]
			if a == nil {
				return fmt.Errorf("snapshot body %s: unknown accessory %s", bv.ID, mv.AccessoryID)
			}
			info := avatar.MountInfo{
				Location:           avatar.Location(mv.Location),
				IgnoreRestrictions: mv.IgnoreRestrictions,
			}
			if mv.Mounter != "" {
				m, err := r.buildMounter(mv.Mounter, mv.EaseTicks)
				if err != nil {
					return fmt.Errorf("snapshot body %s: %w", bv.ID, err)
				}
				info.Mounter = m
			}
			if len(mv.AdditionalCoverage) > 0 {
				extra, err := avatar.ParseCoverage(mv.AdditionalCoverage)
				if err != nil {
					return fmt.Errorf("snapshot body %s: %w", bv.ID, err)
				}
				info.AdditionalCoverage = extra
			}
			if _, err := b.Accessories().Add(a, info, false); err != nil {
				return fmt.Errorf("snapshot body %s: add %s: %w", bv.ID, mv.AccessoryID, err)
			}
		}
	}

	// Mounts resumed above finish over the next ticks; no one was listening
	// during the rebuild.
	r.eventsThisTick = r.eventsThisTick[:0]
	return nil
}
