package avatar

// Outfit-change collaborators that keep presentation state consistent across
// swaps. They consume only the outfit-change event and the outfit accessor
// API; they are not part of the state machines.

// MaterialSync copies the outgoing outfit's material set onto the incoming
// one. Copying is non-essential reset behavior, so forced swaps skip it.
type MaterialSync struct{}

func (MaterialSync) OnOutfitChange(b *Body, previous *Outfit, forced bool) {
	if forced || previous == nil {
		return
	}
	next := b.Outfit()
	if next == nil {
		return
	}
	ms := previous.Materials()
	if len(ms) == 0 {
		return
	}
	cp := make([]Material, len(ms))
	copy(cp, ms)
	next.SetMaterials(cp)
}

// AnimatorSync carries the animator controller reference across swaps.
type AnimatorSync struct{}

func (AnimatorSync) OnOutfitChange(b *Body, previous *Outfit, forced bool) {
	if forced || previous == nil {
		return
	}
	next := b.Outfit()
	if next == nil || previous.AnimatorController() == "" {
		return
	}
	next.SetAnimatorController(previous.AnimatorController())
}
