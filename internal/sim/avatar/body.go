package avatar

import "log"

// OutfitChangeFunc observes outfit replacement on a body. It fires after the
// accessory registry has been reconciled but before the previous outfit's
// ownership is formally released, so previous is always fully valid (if
// soon-to-be-released) inside the callback. forced marks a bake/takeover
// swap: observers should skip non-essential reset behavior.
type OutfitChangeFunc func(b *Body, previous *Outfit, forced bool)

// Body is the top-level persistent entity: the current outfit plus a
// cross-outfit accessory registry.
type Body struct {
	id   string
	root Node

	outfit *Outfit
	mgr    *BodyAccessoryManager

	// defaultPos/defaultRot carry the worn outfit's local transform across
	// swaps: written from the outgoing outfit, seeded into the incoming one.
	defaultPos Vec3
	defaultRot Vec3

	outfitObs observers[OutfitChangeFunc]
}

func NewBody(id string, root Node, logger *log.Logger) *Body {
	b := &Body{id: id, root: root}
	b.mgr = newBodyAccessoryManager(b, logger)
	return b
}

func (b *Body) ID() string { return b.id }

// OwnerID implements Owner for the worn outfit.
func (b *Body) OwnerID() string { return b.id }

func (b *Body) Root() Node { return b.root }

func (b *Body) Outfit() *Outfit { return b.outfit }

// Accessories is the body's persistent accessory registry.
func (b *Body) Accessories() *BodyAccessoryManager { return b.mgr }

func (b *Body) DefaultPosition() Vec3 { return b.defaultPos }
func (b *Body) DefaultRotation() Vec3 { return b.defaultRot }

// SetDefaultTransform seeds the transform applied to the next worn outfit.
func (b *Body) SetDefaultTransform(pos, rot Vec3) {
	b.defaultPos = pos
	b.defaultRot = rot
}

func (b *Body) ObserveOutfit(fn OutfitChangeFunc) Handle { return b.outfitObs.Add(fn) }
func (b *Body) UnobserveOutfit(h Handle) bool            { return b.outfitObs.Remove(h) }

// SetOutfit is the single choke point for outfit replacement. In order: the
// outgoing outfit is detached and its transform written into the body-local
// default, its context markers are cleared (always, even when forced), the
// incoming outfit is taken into use and seeded from the default, the
// accessory registry reconciles, observers fire, and only then is the old
// outfit's ownership formally released.
//
// forceRelease marks a bake/takeover: the outgoing outfit keeps its mounted
// accessories (the registry discards those links) and observers skip
// non-essential resets.
func (b *Body) SetOutfit(next *Outfit, forceRelease bool) error {
	if next != nil {
		if next == b.outfit {
			return nil
		}
		if next.Managed() && next.Owner() != Owner(b) {
			return ErrAlreadyManaged
		}
		if next.Root() == nil || !next.Root().Valid() {
			return ErrNotLive
		}
	}

	prev := b.outfit
	if prev != nil {
		if root := prev.Root(); root != nil && root.Valid() {
			b.defaultPos = root.LocalPosition()
			b.defaultRot = root.LocalRotation()
			root.SetParent(nil, false)
		}
		// Context markers are rarely valid to leave in place; cleared even
		// on a forced swap.
		clearContext(prev)
	}

	b.outfit = next
	if next != nil {
		if err := next.SetState(OutfitInUse, b); err != nil {
			b.outfit = prev
			return err
		}
		root := next.Root()
		root.SetParent(b.root, false)
		root.SetLocalPosition(b.defaultPos)
		root.SetLocalRotation(b.defaultRot)
		setContext(next, b)
	}

	b.mgr.SetOutfit(next, forceRelease)

	b.outfitObs.Each(func(fn OutfitChangeFunc) { fn(b, prev, forceRelease) })

	if prev != nil {
		_ = prev.SetState(OutfitUnmanaged, nil)
	}
	return nil
}

// Destroy tears the body down: accessories are destroyed with the owner
// kind, the outfit is released.
func (b *Body) Destroy() {
	for _, a := range b.mgr.Accessories() {
		_ = b.mgr.Remove(a)
		a.Destroy(DestroyOwner, false)
	}
	_ = b.SetOutfit(nil, false)
}

func setContext(o *Outfit, b *Body) {
	for _, p := range o.Points() {
		p.Context = b
	}
	for _, part := range o.Parts() {
		part.Context = b
	}
}

func clearContext(o *Outfit) {
	for _, p := range o.Points() {
		p.Context = nil
	}
	for _, part := range o.Parts() {
		part.Context = nil
	}
}
