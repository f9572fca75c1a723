package fitting

import (
	"fmt"

	"avatarkit.gg/internal/protocol"
	"avatarkit.gg/internal/sim/avatar"
	"avatarkit.gg/internal/sim/catalogs"
)

func (r *Room) spawnBody() *avatar.Body {
	return r.spawnBodyWithID(fmt.Sprintf("B%04d", r.nextBodyNum.Add(1)))
}

func (r *Room) spawnBodyWithID(id string) *avatar.Body {
	b := avatar.NewBody(id, avatar.NewBasicNode("body:"+id), r.log)
	b.Accessories().AutoRetryStored = r.cfg.AutoRetryStored

	// Presentation sync plus outward outfit-change events.
	b.ObserveOutfit(avatar.MaterialSync{}.OnOutfitChange)
	b.ObserveOutfit(avatar.AnimatorSync{}.OnOutfitChange)
	b.ObserveOutfit(func(bb *avatar.Body, previous *avatar.Outfit, forced bool) {
		ev := protocol.EventMsg{
			Type:            protocol.TypeEvent,
			ProtocolVersion: protocol.Version,
			Kind:            protocol.EventOutfitChange,
			BodyID:          bb.ID(),
			Forced:          forced,
		}
		if cur := bb.Outfit(); cur != nil {
			ev.OutfitID = cur.ID()
		}
		if previous != nil {
			ev.PrevOutfitID = previous.ID()
		}
		r.eventsThisTick = append(r.eventsThisTick, ev)
	})

	r.bodies[id] = b
	return b
}

func (r *Room) instantiateOutfit(def catalogs.OutfitDef) (*avatar.Outfit, error) {
	return r.instantiateOutfitWithID(fmt.Sprintf("O%04d", r.nextOutfitNum.Add(1)), def)
}

func (r *Room) instantiateOutfitWithID(id string, def catalogs.OutfitDef) (*avatar.Outfit, error) {
	blocks, err := avatar.ParseCoverage(def.CoverageBlocks)
	if err != nil {
		return nil, fmt.Errorf("outfit %s: %w", def.ID, err)
	}

	o := avatar.NewOutfit(id, def.Name, avatar.NewBasicNode("outfit:"+id), avatar.OutfitConfig{
		CoverageBlocks:     blocks,
		AccessoriesLimited: def.AccessoriesLimited,
	})

	for _, p := range def.Points {
		node := avatar.NewBasicNode("pt:" + p.Location)
		if _, err := o.AddPoint(avatar.Location(p.Location), node, p.Blocked); err != nil {
			return nil, fmt.Errorf("outfit %s: %w", def.ID, err)
		}
	}
	for _, part := range def.Parts {
		region, err := avatar.ParseCoverage([]string{part.Region})
		if err != nil {
			return nil, fmt.Errorf("outfit %s: %w", def.ID, err)
		}
		o.AddPart(region, avatar.NewBasicNode("part:"+part.Region))
	}

	if len(def.Materials) > 0 {
		ms := make([]avatar.Material, 0, len(def.Materials))
		for _, m := range def.Materials {
			ms = append(ms, avatar.Material{Slot: m.Slot, Shader: m.Shader, Texture: m.Texture})
		}
		o.SetMaterials(ms)
	}
	o.SetAnimatorController(def.Animator)

	o.ObserveState(func(oo *avatar.Outfit, prev avatar.OutfitStatus) {
		ev := protocol.EventMsg{
			Type:            protocol.TypeEvent,
			ProtocolVersion: protocol.Version,
			Kind:            protocol.EventOutfitState,
			OutfitID:        oo.ID(),
			From:            prev.String(),
			To:              oo.Status().String(),
		}
		if owner := oo.Owner(); owner != nil {
			ev.OwnerID = owner.OwnerID()
		}
		r.eventsThisTick = append(r.eventsThisTick, ev)
	})

	r.outfits[id] = o
	r.outfitDef[id] = def.ID
	return o, nil
}

func (r *Room) instantiateAccessory(def catalogs.AccessoryDef) (*avatar.Accessory, error) {
	return r.instantiateAccessoryWithID(fmt.Sprintf("A%04d", r.nextAccNum.Add(1)), def)
}

func (r *Room) instantiateAccessoryWithID(id string, def catalogs.AccessoryDef) (*avatar.Accessory, error) {
	coverage, err := avatar.ParseCoverage(def.Coverage)
	if err != nil {
		return nil, fmt.Errorf("accessory %s: %w", def.ID, err)
	}

	var group avatar.MounterGroup
	for _, kind := range def.Mounters {
		m, err := r.buildMounter(kind, def.EaseTicks)
		if err != nil {
			return nil, fmt.Errorf("accessory %s: %w", def.ID, err)
		}
		group = append(group, m)
	}

	a := avatar.NewAccessory(id, def.Name, avatar.NewBasicNode("acc:"+id), avatar.AccessoryConfig{
		Coverage:             coverage,
		IgnoreLimited:        def.IgnoreLimited,
		DeactivateWhenStored: def.DeactivateWhenStored,
		AllowInternalMount:   def.InternalMount,
		Mounters:             group,
	}, r.sched)

	a.ObserveState(func(aa *avatar.Accessory, prev avatar.Status) {
		ev := protocol.EventMsg{
			Type:            protocol.TypeEvent,
			ProtocolVersion: protocol.Version,
			Kind:            protocol.EventAccessoryState,
			AccessoryID:     aa.ID(),
			From:            prev.String(),
			To:              aa.Status().String(),
			Coverage:        aa.Coverage().Regions(),
		}
		if owner := aa.Owner(); owner != nil {
			ev.OwnerID = owner.OwnerID()
		}
		if p := aa.Point(); p != nil {
			ev.Location = string(p.Location)
		}
		r.eventsThisTick = append(r.eventsThisTick, ev)
	})
	a.ObserveDestroy(func(aa *avatar.Accessory, kind avatar.DestroyKind) {
		ev := protocol.EventMsg{
			Type:            protocol.TypeEvent,
			ProtocolVersion: protocol.Version,
			Kind:            protocol.EventAccessoryGone,
			AccessoryID:     aa.ID(),
			From:            aa.Status().String(),
			To:              kind.String(),
		}
		r.eventsThisTick = append(r.eventsThisTick, ev)
		delete(r.accessories, aa.ID())
		delete(r.accessoryDef, aa.ID())
	})

	r.accessories[id] = a
	r.accessoryDef[id] = def.ID
	return a, nil
}

func (r *Room) buildMounter(kind string, easeTicks int) (avatar.Mounter, error) {
	switch kind {
	case "IMMEDIATE":
		return &avatar.ImmediateMounter{}, nil
	case "EASED":
		if easeTicks <= 0 {
			easeTicks = r.cfg.DefaultEaseTicks
		}
		return &avatar.EasedMounter{DurationTicks: easeTicks}, nil
	}
	return nil, fmt.Errorf("unknown mounter kind %q", kind)
}
