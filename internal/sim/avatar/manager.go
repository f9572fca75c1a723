package avatar

import "log"

// MountInfo is the persisted per-accessory mount preference. Created on Add,
// mutated on Modify, dropped on Remove.
type MountInfo struct {
	Location           Location
	IgnoreRestrictions bool
	// Mounter, when set, is passed as the priority mounter on every attempt.
	Mounter Mounter
	// AdditionalCoverage is granted on top of the accessory's own coverage.
	AdditionalCoverage BodyCoverage
}

type managedAccessory struct {
	acc     *Accessory
	info    MountInfo
	mounted bool
	state   Handle
	destroy Handle
}

// BodyAccessoryManager is the per-body persistent accessory registry. It
// outlives any single outfit, which is what lets accessories ride along
// across outfit swaps. Registration order is mount priority: reconciliation
// always iterates forward, so later entries see the post-mutation state of
// earlier ones and repeated swaps produce the same mounted/stored partition.
type BodyAccessoryManager struct {
	body   *Body
	outfit *Outfit
	log    *log.Logger

	entries []*managedAccessory

	// AutoRetryStored re-attempts every stored accessory whenever a mount
	// point may have been freed (a mounted accessory removed, modified into
	// storage, or lost externally).
	AutoRetryStored bool

	// suspended suppresses the external-change handler while the manager is
	// mutating accessory state itself.
	suspended int

	lastMount MountResult
}

func newBodyAccessoryManager(body *Body, logger *log.Logger) *BodyAccessoryManager {
	return &BodyAccessoryManager{body: body, log: logger}
}

// OwnerID implements Owner for stored accessories.
func (m *BodyAccessoryManager) OwnerID() string { return m.body.ID() + "/wardrobe" }

func (m *BodyAccessoryManager) Body() *Body     { return m.body }
func (m *BodyAccessoryManager) Outfit() *Outfit { return m.outfit }

func (m *BodyAccessoryManager) Len() int { return len(m.entries) }

// Accessories returns the registered accessories in registration order.
func (m *BodyAccessoryManager) Accessories() []*Accessory {
	out := make([]*Accessory, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.acc)
	}
	return out
}

// Info returns the stored mount preference for a registered accessory.
func (m *BodyAccessoryManager) Info(a *Accessory) (MountInfo, bool) {
	if e := m.find(a); e != nil {
		return e.info, true
	}
	return MountInfo{}, false
}

// Has reports whether a is registered.
func (m *BodyAccessoryManager) Has(a *Accessory) bool { return m.find(a) != nil }

// Add registers a with the given preference. With an outfit set it attempts
// an immediate mount; on failure it stores the accessory, or fails the whole
// operation when mustMount is set. The registry link and the state
// subscription are established only after the outcome is determined.
func (m *BodyAccessoryManager) Add(a *Accessory, info MountInfo, mustMount bool) (Outcome, error) {
	if a == nil {
		return OutcomeFailed, ErrNilAccessory
	}
	if a.Defunct() {
		if a.Status() == StatusPurged {
			return OutcomeFailed, ErrPurged
		}
		return OutcomeFailed, ErrNotLive
	}
	if m.find(a) != nil {
		return OutcomeFailed, ErrAlreadyAdded
	}
	if a.Managed() && a.Owner() != Owner(m) {
		return OutcomeFailed, ErrAlreadyManaged
	}

	outcome := OutcomeStored
	m.suspended++
	if m.outfit != nil {
		res, err := m.outfit.Mount(a, info.Location, info.IgnoreRestrictions, info.Mounter, info.AdditionalCoverage)
		m.lastMount = res
		if err != nil {
			m.suspended--
			return OutcomeFailed, err
		}
		if res.Success() {
			outcome = OutcomeMounted
		} else if mustMount {
			m.suspended--
			return OutcomeFailed, nil
		}
	} else {
		m.lastMount = MountNoPoint
		if mustMount {
			m.suspended--
			return OutcomeFailed, nil
		}
	}
	if outcome != OutcomeMounted {
		if err := a.Store(m); err != nil {
			m.suspended--
			return OutcomeFailed, err
		}
	}
	m.suspended--

	m.link(a, info, outcome == OutcomeMounted)
	return outcome, nil
}

// Modify re-applies settings and re-attempts a mount even when the change
// looks mount-irrelevant; correctness is prioritized over skipping redundant
// remounts. Failure degrades to storage, never to removal, so the result is
// only ever Mounted or Stored.
func (m *BodyAccessoryManager) Modify(a *Accessory, info MountInfo) (Outcome, error) {
	e := m.find(a)
	if e == nil {
		return OutcomeFailed, ErrNotRegistered
	}
	if m.purgeIfDefunct(e) {
		return OutcomeFailed, ErrNotLive
	}
	e.info = info
	wasMounted := e.mounted

	outcome := m.applyEntry(e)
	if wasMounted && outcome == OutcomeStored && m.AutoRetryStored {
		// The old point may be free now; give everything stored a chance.
		m.retryStored()
	}
	return outcome, nil
}

// Remove unlinks and releases a. With auto-retry enabled, removing a
// mounted accessory triggers a retry pass: its point may now be claimable.
func (m *BodyAccessoryManager) Remove(a *Accessory) error {
	e := m.find(a)
	if e == nil {
		return ErrNotRegistered
	}
	wasMounted := e.mounted
	m.unlink(e)
	m.suspended++
	a.Release()
	m.suspended--
	if wasMounted && m.AutoRetryStored {
		m.retryStored()
	}
	return nil
}

// SetOutfit reconciles every registered accessory against a new outfit, in
// registration order. Per entry: with discardMounted set, an accessory
// mounted to anything but the manager itself is unlinked and left behind;
// otherwise it is mounted to the new outfit or stored on failure; with no
// new outfit everything ends up stored.
func (m *BodyAccessoryManager) SetOutfit(next *Outfit, discardMounted bool) {
	m.outfit = next

	for _, e := range m.snapshot() {
		if m.find(e.acc) == nil {
			continue // unlinked by an earlier entry's side effects
		}
		if m.purgeIfDefunct(e) {
			continue
		}
		if discardMounted && e.acc.Status().Attached() && e.acc.Owner() != Owner(m) {
			m.unlink(e)
			continue
		}
		m.applyEntry(e)
	}
}

// LastMountResult reports why the mount attempt inside the most recent
// Add or Modify call did not take. Meaningful only right after a call
// whose outcome was Stored or Failed.
func (m *BodyAccessoryManager) LastMountResult() MountResult { return m.lastMount }

// RetryStored re-attempts a mount for every stored accessory, in
// registration order. Exposed for callers that free points outside the
// manager's sight (e.g. unblocking a mount point).
func (m *BodyAccessoryManager) RetryStored() { m.retryStored() }

// applyEntry mounts the entry against the current outfit, falling back to
// storage. Never leaves the accessory Unmanaged.
func (m *BodyAccessoryManager) applyEntry(e *managedAccessory) Outcome {
	m.suspended++
	defer func() { m.suspended-- }()

	if m.outfit != nil {
		res, err := m.outfit.Mount(e.acc, e.info.Location, e.info.IgnoreRestrictions, e.info.Mounter, e.info.AdditionalCoverage)
		m.lastMount = res
		if err == nil && res.Success() {
			e.mounted = true
			return OutcomeMounted
		}
	} else {
		m.lastMount = MountNoPoint
	}
	_ = e.acc.Store(m)
	e.mounted = false
	return OutcomeStored
}

func (m *BodyAccessoryManager) retryStored() {
	for _, e := range m.snapshot() {
		if m.find(e.acc) == nil || e.mounted {
			continue
		}
		if m.purgeIfDefunct(e) {
			continue
		}
		if e.acc.Status() != StatusStored || e.acc.Owner() != Owner(m) {
			continue
		}
		if m.outfit == nil {
			continue
		}
		m.suspended++
		res, err := m.outfit.Mount(e.acc, e.info.Location, e.info.IgnoreRestrictions, e.info.Mounter, e.info.AdditionalCoverage)
		m.suspended--
		if err == nil && res.Success() {
			e.mounted = true
		}
	}
}

// onAccessoryState handles externally triggered changes: a status the
// manager did not produce and does not expect means something else took (or
// dropped) ownership, which is treated as an implicit removal.
func (m *BodyAccessoryManager) onAccessoryState(a *Accessory, prev Status) {
	if m.suspended > 0 {
		return
	}
	e := m.find(a)
	if e == nil {
		return
	}

	lost := false
	switch a.Status() {
	case StatusStored:
		if a.Owner() == Owner(m) {
			// Stored back under us externally; the point is free again.
			e.mounted = false
		} else {
			lost = true
		}
	case StatusMounting, StatusMounted:
		if m.outfit != nil && a.Owner() == Owner(m.outfit) {
			e.mounted = true
		} else {
			lost = true
		}
	case StatusUnmanaged, StatusPurged:
		lost = true
	}
	if !lost {
		return
	}

	wasMounted := e.mounted
	m.unlink(e)
	if m.log != nil {
		m.log.Printf("wardrobe %s: accessory %s ownership lost externally (status %s), dropped from registry", m.OwnerID(), a.ID(), a.Status())
	}
	if wasMounted && m.AutoRetryStored {
		m.retryStored()
	}
}

func (m *BodyAccessoryManager) onAccessoryDestroyed(a *Accessory, kind DestroyKind) {
	e := m.find(a)
	if e == nil {
		return
	}
	wasMounted := e.mounted
	m.unlink(e)
	if wasMounted && m.AutoRetryStored {
		m.retryStored()
	}
}

// purgeIfDefunct detects destruction that bypassed the formal API, forces a
// release of the dangling entry and drops it with a loud diagnostic.
func (m *BodyAccessoryManager) purgeIfDefunct(e *managedAccessory) bool {
	if !e.acc.Defunct() {
		return false
	}
	if m.log != nil {
		m.log.Printf("wardrobe %s: accessory %s destroyed outside the lifecycle API, purging dangling entry", m.OwnerID(), e.acc.ID())
	}
	m.unlink(e)
	m.suspended++
	e.acc.Release()
	m.suspended--
	return true
}

func (m *BodyAccessoryManager) find(a *Accessory) *managedAccessory {
	for _, e := range m.entries {
		if e.acc == a {
			return e
		}
	}
	return nil
}

func (m *BodyAccessoryManager) snapshot() []*managedAccessory {
	out := make([]*managedAccessory, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *BodyAccessoryManager) link(a *Accessory, info MountInfo, mounted bool) {
	e := &managedAccessory{acc: a, info: info, mounted: mounted}
	e.state = a.ObserveState(m.onAccessoryState)
	e.destroy = a.ObserveDestroy(m.onAccessoryDestroyed)
	m.entries = append(m.entries, e)
}

func (m *BodyAccessoryManager) unlink(e *managedAccessory) {
	for i, cur := range m.entries {
		if cur == e {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	e.acc.UnobserveState(e.state)
	e.acc.UnobserveDestroy(e.destroy)
}
