package avatar

// OutfitStatus mirrors the accessory lifecycle but is tracked independently:
// an outfit can be InUse while none of its own accessories are mounted.
type OutfitStatus uint8

const (
	OutfitUnmanaged OutfitStatus = iota
	OutfitInUse
	OutfitStored
)

func (s OutfitStatus) String() string {
	switch s {
	case OutfitUnmanaged:
		return "UNMANAGED"
	case OutfitInUse:
		return "IN_USE"
	case OutfitStored:
		return "STORED"
	}
	return "UNKNOWN"
}

// Material is an opaque presentation slot copied between outfits by the
// material-sync collaborator. The engine never interprets the fields.
type Material struct {
	Slot    string
	Shader  string
	Texture string
}

// OutfitStateFunc observes outfit status transitions with the same
// consistency contract as accessory observers: activation happens before
// the broadcast, deactivation after it.
type OutfitStateFunc func(o *Outfit, prev OutfitStatus)

// OutfitConfig is the per-definition part of an outfit.
type OutfitConfig struct {
	// CoverageBlocks is built-in blocked coverage, independent of anything
	// mounted.
	CoverageBlocks BodyCoverage
	// AccessoriesLimited rejects accessories that do not opt out.
	AccessoriesLimited   bool
	DeactivateWhenStored bool
}

// Outfit is the aggregate body representation: mount points, body parts and
// the accessories currently attached to it. It owns an accessory while that
// accessory is mounted to one of its points.
type Outfit struct {
	id   string
	name string
	root Node
	cfg  OutfitConfig

	status OutfitStatus
	owner  Owner

	points     map[Location]*MountPoint
	pointOrder []Location
	parts      []*BodyPart

	mounted []*Accessory
	// watch tracks the state-change subscription per mounted accessory so
	// ownership loss drops it from the mounted set.
	watch map[*Accessory]Handle

	materials []Material
	animator  string

	stateObs observers[OutfitStateFunc]
}

func NewOutfit(id, name string, root Node, cfg OutfitConfig) *Outfit {
	return &Outfit{
		id:     id,
		name:   name,
		root:   root,
		cfg:    cfg,
		points: map[Location]*MountPoint{},
		watch:  map[*Accessory]Handle{},
	}
}

func (o *Outfit) ID() string   { return o.id }
func (o *Outfit) Name() string { return o.name }
func (o *Outfit) Root() Node   { return o.root }

// OwnerID implements Owner for mounted accessories.
func (o *Outfit) OwnerID() string { return o.id }

func (o *Outfit) Status() OutfitStatus { return o.status }
func (o *Outfit) Owner() Owner         { return o.owner }

func (o *Outfit) Managed() bool { return o.owner != nil && o.status != OutfitUnmanaged }

func (o *Outfit) AccessoriesLimited() bool     { return o.cfg.AccessoriesLimited }
func (o *Outfit) CoverageBlocks() BodyCoverage { return o.cfg.CoverageBlocks }

func (o *Outfit) Materials() []Material          { return o.materials }
func (o *Outfit) SetMaterials(ms []Material)     { o.materials = ms }
func (o *Outfit) AnimatorController() string     { return o.animator }
func (o *Outfit) SetAnimatorController(c string) { o.animator = c }

func (o *Outfit) ObserveState(fn OutfitStateFunc) Handle { return o.stateObs.Add(fn) }
func (o *Outfit) UnobserveState(h Handle) bool           { return o.stateObs.Remove(h) }

// AddPoint registers a mount point; at most one per location.
func (o *Outfit) AddPoint(loc Location, node Node, blocked bool) (*MountPoint, error) {
	if _, exists := o.points[loc]; exists {
		return nil, ErrAlreadyAdded
	}
	p := &MountPoint{Location: loc, Node: node, Blocked: blocked, outfit: o}
	o.points[loc] = p
	o.pointOrder = append(o.pointOrder, loc)
	return p, nil
}

func (o *Outfit) Point(loc Location) *MountPoint { return o.points[loc] }

// Points returns the mount points in registration order.
func (o *Outfit) Points() []*MountPoint {
	out := make([]*MountPoint, 0, len(o.pointOrder))
	for _, loc := range o.pointOrder {
		out = append(out, o.points[loc])
	}
	return out
}

func (o *Outfit) AddPart(region BodyCoverage, node Node) *BodyPart {
	part := &BodyPart{Region: region, Node: node}
	o.parts = append(o.parts, part)
	return part
}

func (o *Outfit) Parts() []*BodyPart { return o.parts }

// Mounted returns the mounted accessories in mount order.
func (o *Outfit) Mounted() []*Accessory {
	out := make([]*Accessory, len(o.mounted))
	copy(out, o.mounted)
	return out
}

func (o *Outfit) Has(a *Accessory) bool { return o.indexOf(a) >= 0 }

// CurrentCoverage is the outfit's built-in blocks OR'd with the coverage
// granted to everything mounted.
func (o *Outfit) CurrentCoverage() BodyCoverage {
	c := o.cfg.CoverageBlocks
	for _, a := range o.mounted {
		c |= a.Coverage()
	}
	return c
}

// SetState moves the outfit between Unmanaged/InUse/Stored. Every status
// except Unmanaged requires an owner. No-op transitions are idempotent and
// broadcast nothing.
func (o *Outfit) SetState(status OutfitStatus, owner Owner) error {
	if status != OutfitUnmanaged && owner == nil {
		return ErrNilOwner
	}
	if status == OutfitUnmanaged {
		owner = nil
	}
	if o.status == status && o.owner == owner {
		return nil
	}

	prev := o.status
	leavingStored := prev == OutfitStored && status != OutfitStored
	enteringStored := prev != OutfitStored && status == OutfitStored

	// Activation before the broadcast: observers never see an
	// inactive-but-InUse outfit.
	if leavingStored && o.cfg.DeactivateWhenStored && o.root != nil && o.root.Valid() {
		o.root.SetActive(true)
	}

	o.status = status
	o.owner = owner
	if prev != status {
		o.stateObs.Each(func(fn OutfitStateFunc) { fn(o, prev) })
	}

	// Deactivation after the broadcast.
	if enteringStored && o.cfg.DeactivateWhenStored && o.root != nil && o.root.Valid() {
		o.root.SetActive(false)
	}
	return nil
}

// Mount attaches a to the point named by loc. Restriction checks (the
// accessories-limited flag and coverage overlap) are skipped when
// ignoreRestrictions is set. A failed re-mount of an accessory this outfit
// already holds releases it rather than leaving it on a stale point: several
// independent actors participate in a mount and none can roll it back alone.
func (o *Outfit) Mount(a *Accessory, loc Location, ignoreRestrictions bool, priority Mounter, additional BodyCoverage) (MountResult, error) {
	if a == nil {
		return MountUsageError, ErrNilAccessory
	}
	if a.Defunct() {
		if a.Status() == StatusPurged {
			return MountUsageError, ErrPurged
		}
		return MountUsageError, ErrNotLive
	}
	p := o.points[loc]
	if p == nil {
		return o.remountFailed(a, MountNoPoint), nil
	}
	if p.Blocked {
		return o.remountFailed(a, MountPointBlocked), nil
	}

	if !ignoreRestrictions {
		if o.cfg.AccessoriesLimited && !a.IgnoresLimited() {
			return o.remountFailed(a, MountLimited), nil
		}
		want := a.BaseCoverage() | additional
		held := o.cfg.CoverageBlocks
		for _, m := range o.mounted {
			if m != a {
				held |= m.Coverage()
			}
		}
		if want.Overlaps(held) {
			return o.remountFailed(a, MountBlocked), nil
		}
	}

	ok, err := a.Mount(p, o, priority, additional)
	if err != nil {
		return MountUsageError, err
	}
	if !ok {
		return o.remountFailed(a, MountRejected), nil
	}
	o.track(a)
	return MountOK, nil
}

// remountFailed applies the consistency policy: a failed re-mount of an
// already-held accessory releases it.
func (o *Outfit) remountFailed(a *Accessory, r MountResult) MountResult {
	if o.Has(a) {
		o.Release(a)
	}
	return r
}

// Release unmounts and releases a. Lazy-safe: returns false without effect
// when this outfit does not hold a.
func (o *Outfit) Release(a *Accessory) bool {
	i := o.indexOf(a)
	if i < 0 {
		return false
	}
	o.untrack(a, i)
	a.Release()
	return true
}

// ReleaseAll releases every mounted accessory, in mount order.
func (o *Outfit) ReleaseAll() {
	for _, a := range o.Mounted() {
		o.Release(a)
	}
}

func (o *Outfit) indexOf(a *Accessory) int {
	for i, m := range o.mounted {
		if m == a {
			return i
		}
	}
	return -1
}

func (o *Outfit) track(a *Accessory) {
	if o.indexOf(a) >= 0 {
		return
	}
	o.mounted = append(o.mounted, a)
	o.watch[a] = a.ObserveState(o.onAccessoryState)
}

func (o *Outfit) untrack(a *Accessory, i int) {
	o.mounted = append(o.mounted[:i], o.mounted[i+1:]...)
	if h, ok := o.watch[a]; ok {
		a.UnobserveState(h)
		delete(o.watch, a)
	}
}

// onAccessoryState drops an accessory from the mounted set once it no
// longer reports this outfit as its owner (stored, released, destroyed, or
// migrated to another outfit). Keeps the exclusivity invariant: at most one
// outfit's mounted set contains an accessory.
func (o *Outfit) onAccessoryState(a *Accessory, prev Status) {
	if a.Status().Attached() && a.Owner() == Owner(o) {
		return
	}
	if i := o.indexOf(a); i >= 0 {
		o.untrack(a, i)
	}
}
