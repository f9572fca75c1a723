package avatar

// Mounter is a pluggable strategy that performs the actual attach, possibly
// across multiple ticks.
//
// InitializeMount is authoritative: CanMount is a cheap pre-filter and the
// two are not redundant. InitializeMount may have side effects (reserving
// resources); if the mount is later aborted those must be undone in
// CancelMount.
type Mounter interface {
	CanMount(a *Accessory, p *MountPoint) bool
	// InitializeMount accepts or rejects the attach. Must be cheap and
	// side-effect-minimal on reject.
	InitializeMount(a *Accessory, p *MountPoint) bool
	// UpdateMount advances the attach one step. finishNow demands completion
	// within this call. Returns true while more updates are needed.
	UpdateMount(a *Accessory, p *MountPoint, finishNow bool) bool
	// CancelMount undoes InitializeMount side effects after an abort.
	CancelMount(a *Accessory, p *MountPoint)
	OnAccessoryDestroyed(a *Accessory)
}

// MounterGroup resolves to the first member whose InitializeMount accepts.
type MounterGroup []Mounter

func (g MounterGroup) Resolve(a *Accessory, p *MountPoint) Mounter {
	for _, m := range g {
		if m == nil {
			continue
		}
		if m.InitializeMount(a, p) {
			return m
		}
	}
	return nil
}

// ImmediateMounter reparents the accessory onto the point in a single tick.
// It is also the engine's internal fallback.
type ImmediateMounter struct {
	// KeepLocalOffset leaves the accessory's local transform alone instead
	// of resetting it onto the point.
	KeepLocalOffset bool
}

func (m *ImmediateMounter) CanMount(a *Accessory, p *MountPoint) bool {
	return a != nil && a.Node() != nil && a.Node().Valid() && p.usable()
}

func (m *ImmediateMounter) InitializeMount(a *Accessory, p *MountPoint) bool {
	return m.CanMount(a, p)
}

func (m *ImmediateMounter) UpdateMount(a *Accessory, p *MountPoint, finishNow bool) bool {
	a.Node().SetParent(p.Node, !m.KeepLocalOffset)
	return false
}

func (m *ImmediateMounter) CancelMount(a *Accessory, p *MountPoint) {}

func (m *ImmediateMounter) OnAccessoryDestroyed(a *Accessory) {}

// EasedMounter interpolates the accessory's local offset toward the point
// over a fixed number of ticks. Instances hold per-mount state and must not
// be shared between accessories that mount concurrently.
type EasedMounter struct {
	DurationTicks int

	elapsed  int
	startPos Vec3
	startRot Vec3
	active   bool
}

func (m *EasedMounter) CanMount(a *Accessory, p *MountPoint) bool {
	return a != nil && a.Node() != nil && a.Node().Valid() && p.usable()
}

func (m *EasedMounter) InitializeMount(a *Accessory, p *MountPoint) bool {
	if !m.CanMount(a, p) {
		return false
	}
	n := a.Node()
	// Reparent first, keeping the current local offset as the ease origin.
	n.SetParent(p.Node, false)
	m.startPos = n.LocalPosition()
	m.startRot = n.LocalRotation()
	m.elapsed = 0
	m.active = true
	return true
}

func (m *EasedMounter) UpdateMount(a *Accessory, p *MountPoint, finishNow bool) bool {
	if !m.active {
		return false
	}
	n := a.Node()
	if finishNow || m.DurationTicks <= 0 || m.elapsed >= m.DurationTicks {
		n.SetLocalPosition(Vec3{})
		n.SetLocalRotation(Vec3{})
		m.active = false
		return false
	}
	m.elapsed++
	t := float64(m.elapsed) / float64(m.DurationTicks)
	n.SetLocalPosition(m.startPos.Lerp(Vec3{}, t))
	n.SetLocalRotation(m.startRot.Lerp(Vec3{}, t))
	if m.elapsed >= m.DurationTicks {
		m.active = false
		return false
	}
	return true
}

func (m *EasedMounter) CancelMount(a *Accessory, p *MountPoint) {
	m.active = false
	m.elapsed = 0
}

func (m *EasedMounter) OnAccessoryDestroyed(a *Accessory) {
	m.active = false
}
