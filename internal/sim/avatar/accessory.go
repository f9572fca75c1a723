package avatar

// Status is an accessory's lifecycle state. Exactly one holds at any time;
// transitions go only through Mount/Store/Release/Destroy, never through
// direct field writes. The discipline matters even though the model is
// single-threaded: observer callbacks can re-enter the state machine while
// an earlier call is still unwinding.
type Status uint8

const (
	StatusUnmanaged Status = iota
	StatusStored
	StatusMounting
	StatusMounted
	StatusPurged
)

func (s Status) String() string {
	switch s {
	case StatusUnmanaged:
		return "UNMANAGED"
	case StatusStored:
		return "STORED"
	case StatusMounting:
		return "MOUNTING"
	case StatusMounted:
		return "MOUNTED"
	case StatusPurged:
		return "PURGED"
	}
	return "UNKNOWN"
}

// Attached reports whether s is Mounting or Mounted.
func (s Status) Attached() bool { return s == StatusMounting || s == StatusMounted }

// DestroyKind tells destroy observers why the accessory is going away.
type DestroyKind uint8

const (
	// DestroyExplicit: a direct Destroy call.
	DestroyExplicit DestroyKind = iota
	// DestroyOwner: the owning entity is tearing down and cascaded.
	DestroyOwner
)

func (k DestroyKind) String() string {
	switch k {
	case DestroyExplicit:
		return "EXPLICIT"
	case DestroyOwner:
		return "OWNER"
	}
	return "UNKNOWN"
}

// StateChangeFunc observes accessory status transitions. The accessory is
// fully consistent when it fires: coverage, owner and point already reflect
// the new state, and activation (if any) has already happened.
type StateChangeFunc func(a *Accessory, prev Status)

// DestroyFunc observes accessory destruction. It fires before teardown, so
// the accessory is still intact when inspected.
type DestroyFunc func(a *Accessory, kind DestroyKind)

// AccessoryConfig is the per-definition, immutable part of an accessory.
type AccessoryConfig struct {
	// Coverage is granted (OR'd with any additional coverage the caller
	// passes) while the accessory is mounting or mounted.
	Coverage BodyCoverage
	// IgnoreLimited opts out of an outfit's accessories-limited flag.
	IgnoreLimited bool
	// DeactivateWhenStored hides the presentation while stored. Deactivation
	// happens strictly after the state-change broadcast; activation strictly
	// before it.
	DeactivateWhenStored bool
	// AllowInternalMount gates the built-in immediate-attach fallback used
	// when no mounter accepts.
	AllowInternalMount bool
	// PriorityMounter is tried before the candidate list.
	PriorityMounter Mounter
	// Mounters is the ordered candidate list.
	Mounters MounterGroup
}

// Accessory is an attachable entity with its own lifecycle state machine.
type Accessory struct {
	id   string
	name string
	node Node
	cfg  AccessoryConfig

	status   Status
	owner    Owner
	point    *MountPoint
	coverage BodyCoverage
	mounter  Mounter

	// gen invalidates scheduled continuations; bumped by every transition.
	gen   uint64
	sched *Scheduler

	internal ImmediateMounter

	stateObs   observers[StateChangeFunc]
	destroyObs observers[DestroyFunc]
	// preDestroy fires before the destroy broadcast; used by owners that
	// need to unhook before anyone else hears about it.
	preDestroy DestroyFunc
}

// NewAccessory creates a detached (Unmanaged) accessory. sched may be nil;
// multi-tick mounters are then forced to complete within the Mount call.
func NewAccessory(id, name string, node Node, cfg AccessoryConfig, sched *Scheduler) *Accessory {
	return &Accessory{id: id, name: name, node: node, cfg: cfg, sched: sched}
}

func (a *Accessory) ID() string   { return a.id }
func (a *Accessory) Name() string { return a.name }
func (a *Accessory) Node() Node   { return a.node }

func (a *Accessory) Status() Status     { return a.status }
func (a *Accessory) Owner() Owner       { return a.owner }
func (a *Accessory) Point() *MountPoint { return a.point }

// Coverage is the currently granted coverage: zero unless mounting/mounted.
func (a *Accessory) Coverage() BodyCoverage { return a.coverage }

// BaseCoverage is the coverage the accessory grants on its own.
func (a *Accessory) BaseCoverage() BodyCoverage { return a.cfg.Coverage }

func (a *Accessory) IgnoresLimited() bool { return a.cfg.IgnoreLimited }

// Mounter is the strategy performing or having performed the current mount.
func (a *Accessory) Mounter() Mounter { return a.mounter }

func (a *Accessory) Managed() bool {
	return a.owner != nil && a.status != StatusUnmanaged && a.status != StatusPurged
}

// Defunct reports destruction that bypassed the formal API: a purged status
// is normal, a dead node under a live status is an invariant violation the
// registries purge on next access.
func (a *Accessory) Defunct() bool {
	return a.status == StatusPurged || a.node == nil || !a.node.Valid()
}

func (a *Accessory) ObserveState(fn StateChangeFunc) Handle { return a.stateObs.Add(fn) }

func (a *Accessory) UnobserveState(h Handle) bool { return a.stateObs.Remove(h) }

func (a *Accessory) ObserveDestroy(fn DestroyFunc) Handle { return a.destroyObs.Add(fn) }

func (a *Accessory) UnobserveDestroy(h Handle) bool { return a.destroyObs.Remove(h) }

// SetPreDestroyHook installs the hook that fires before the destroy
// broadcast. One owner at a time.
func (a *Accessory) SetPreDestroyHook(fn DestroyFunc) { a.preDestroy = fn }

// Mount attaches the accessory to p under owner. Resolution order: the
// caller's priority mounter, then the accessory's own priority mounter, then
// its candidate list, then the internal immediate fallback. The first
// acceptor wins; its granted coverage is recorded before the first update
// runs, so observers never see a stale coverage value mid-mount.
//
// Mount is lazy-callable: invoking it speculatively is fine, a false return
// with a nil error means no mounter accepted and nothing changed.
// Re-attachment to the same point is permitted and not optimized away.
func (a *Accessory) Mount(p *MountPoint, owner Owner, priority Mounter, additional BodyCoverage) (bool, error) {
	if a.status == StatusPurged {
		return false, ErrPurged
	}
	if p == nil {
		return false, ErrNilMountPoint
	}
	if owner == nil {
		return false, ErrNilOwner
	}
	if a.node == nil || !a.node.Valid() {
		return false, ErrNotLive
	}

	m := a.resolveMounter(p, priority)
	if m == nil {
		// Resolution failure: no state change, the previous state (including
		// an in-flight mount) stands.
		return false, nil
	}

	prev := a.status
	a.cancelInFlight()
	a.gen++

	a.owner = owner
	a.point = p
	a.mounter = m
	a.coverage = a.cfg.Coverage | additional

	// Activation strictly before the state-change broadcast.
	if !a.node.Active() {
		a.node.SetActive(true)
	}

	if m.UpdateMount(a, p, a.sched == nil) && a.sched != nil {
		a.setStatus(StatusMounting, prev)
		a.sched.schedule(continuation{acc: a, mounter: m, point: p, gen: a.gen})
	} else {
		a.setStatus(StatusMounted, prev)
	}
	return true, nil
}

// resolveMounter runs the fixed resolution pipeline. The priority mounter
// may be tested more than once per attempt (caller-supplied and stored can
// be the same instance); InitializeMount must therefore be idempotent-safe.
func (a *Accessory) resolveMounter(p *MountPoint, priority Mounter) Mounter {
	if priority != nil && priority.InitializeMount(a, p) {
		return priority
	}
	if pm := a.cfg.PriorityMounter; pm != nil && pm.InitializeMount(a, p) {
		return pm
	}
	if m := a.cfg.Mounters.Resolve(a, p); m != nil {
		return m
	}
	if a.canMountInternally(p) {
		return &a.internal
	}
	return nil
}

func (a *Accessory) canMountInternally(p *MountPoint) bool {
	return a.cfg.AllowInternalMount && a.internal.CanMount(a, p)
}

// finishMount completes a multi-tick mount: Mounting -> Mounted.
func (a *Accessory) finishMount() {
	if a.status != StatusMounting {
		return
	}
	a.setStatus(StatusMounted, StatusMounting)
}

// Store parks the accessory under owner. Idempotent when already stored
// under the same owner; stored under a different owner only the owner is
// refreshed, with no broadcast either way.
func (a *Accessory) Store(owner Owner) error {
	if owner == nil {
		return ErrNilOwner
	}
	if a.status == StatusPurged {
		return ErrPurged
	}
	if a.node == nil || !a.node.Valid() {
		return ErrNotLive
	}
	if a.status == StatusStored {
		a.owner = owner
		return nil
	}

	prev := a.status
	a.detach()
	a.owner = owner
	a.setStatus(StatusStored, prev)
	// Deactivation strictly after the broadcast.
	if a.cfg.DeactivateWhenStored && a.node != nil && a.node.Valid() {
		a.node.SetActive(false)
	}
	return nil
}

// Release unconditionally returns the accessory to Unmanaged, performing
// the same cleanup as Store first.
func (a *Accessory) Release() {
	if a.status == StatusPurged {
		return
	}
	if a.status == StatusUnmanaged {
		a.owner = nil
		return
	}
	prev := a.status
	a.detach()
	a.owner = nil
	a.setStatus(StatusUnmanaged, prev)
}

// Destroy notifies observers first (pre-destroy hook, then the broadcast,
// with the accessory still intact), marks the state terminal, and performs
// teardown unless prepareOnly leaves that to the caller.
func (a *Accessory) Destroy(kind DestroyKind, prepareOnly bool) {
	if a.status == StatusPurged {
		return
	}
	if a.preDestroy != nil {
		a.preDestroy(a, kind)
	}
	a.destroyObs.Each(func(fn DestroyFunc) { fn(a, kind) })
	if a.mounter != nil {
		a.mounter.OnAccessoryDestroyed(a)
	}

	prev := a.status
	a.gen++
	a.owner = nil
	a.mounter = nil
	a.point = nil
	a.coverage = 0
	a.status = StatusPurged
	a.stateObs.Each(func(fn StateChangeFunc) { fn(a, prev) })

	if prepareOnly {
		return
	}
	if a.node != nil && a.node.Valid() {
		a.node.SetParent(nil, false)
		a.node.SetActive(false)
	}
}

// detach cancels any in-flight mount, clears granted coverage and unparents
// the node. Shared cleanup for Store and Release.
func (a *Accessory) detach() {
	a.cancelInFlight()
	a.gen++
	a.mounter = nil
	a.point = nil
	a.coverage = 0
	if a.node != nil && a.node.Valid() {
		a.node.SetParent(nil, false)
	}
}

func (a *Accessory) cancelInFlight() {
	if a.status == StatusMounting && a.mounter != nil {
		a.mounter.CancelMount(a, a.point)
	}
}

func (a *Accessory) setStatus(next, prev Status) {
	a.status = next
	a.stateObs.Each(func(fn StateChangeFunc) { fn(a, prev) })
}
