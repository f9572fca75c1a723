package avatar

import "testing"

func TestAccessoryMount_Immediate(t *testing.T) {
	a := testAccessory(t, "hat", CoverHead)
	o := testOutfit(t, "o1", CoverNone, LocHead)

	ok, err := a.Mount(o.Point(LocHead), o, nil, CoverNone)
	if err != nil || !ok {
		t.Fatalf("mount: ok=%v err=%v", ok, err)
	}
	if a.Status() != StatusMounted {
		t.Fatalf("status = %s, want MOUNTED", a.Status())
	}
	if a.Owner() != Owner(o) {
		t.Fatalf("owner = %v, want outfit", a.Owner())
	}
	if a.Coverage() != CoverHead {
		t.Fatalf("coverage = %s, want HEAD", a.Coverage())
	}
	if a.Node().Parent() != o.Point(LocHead).Node {
		t.Fatalf("node not reparented onto the point")
	}
}

func TestAccessoryMount_UsageErrors(t *testing.T) {
	a := testAccessory(t, "hat", CoverHead)
	o := testOutfit(t, "o1", CoverNone, LocHead)

	if _, err := a.Mount(nil, o, nil, CoverNone); err != ErrNilMountPoint {
		t.Fatalf("nil point: err = %v", err)
	}
	if _, err := a.Mount(o.Point(LocHead), nil, nil, CoverNone); err != ErrNilOwner {
		t.Fatalf("nil owner: err = %v", err)
	}
	if a.Status() != StatusUnmanaged {
		t.Fatalf("usage error mutated state: %s", a.Status())
	}

	dead := NewAccessory("dead", "dead", nil, AccessoryConfig{}, nil)
	if _, err := dead.Mount(o.Point(LocHead), o, nil, CoverNone); err != ErrNotLive {
		t.Fatalf("asset mount: err = %v", err)
	}
}

func TestAccessoryMount_NoMounterNoStateChange(t *testing.T) {
	// No candidate mounters and internal fallback disabled.
	a := NewAccessory("pin", "pin", NewBasicNode("n"), AccessoryConfig{Coverage: CoverTorso}, nil)
	o := testOutfit(t, "o1", CoverNone, LocNeck)
	owner := &fakeOwner{id: "x"}
	if err := a.Store(owner); err != nil {
		t.Fatalf("store: %v", err)
	}

	ok, err := a.Mount(o.Point(LocNeck), o, nil, CoverNone)
	if err != nil || ok {
		t.Fatalf("mount accepted with no mounter: ok=%v err=%v", ok, err)
	}
	if a.Status() != StatusStored || a.Owner() != Owner(owner) {
		t.Fatalf("failed mount changed state: %s owner=%v", a.Status(), a.Owner())
	}
}

func TestAccessoryMount_AdditionalCoverageRecordedBeforeFirstUpdate(t *testing.T) {
	var seen BodyCoverage
	m := &observingMounter{onUpdate: func(a *Accessory) { seen = a.Coverage() }}
	a := NewAccessory("veil", "veil", NewBasicNode("n"), AccessoryConfig{
		Coverage: CoverFace,
		Mounters: MounterGroup{m},
	}, nil)
	o := testOutfit(t, "o1", CoverNone, LocFace)

	ok, err := a.Mount(o.Point(LocFace), o, nil, CoverNeck)
	if err != nil || !ok {
		t.Fatalf("mount: ok=%v err=%v", ok, err)
	}
	if want := CoverFace | CoverNeck; seen != want {
		t.Fatalf("coverage during first update = %s, want %s", seen, want)
	}
}

// observingMounter completes immediately and reports what it saw.
type observingMounter struct {
	onUpdate func(a *Accessory)
}

func (m *observingMounter) CanMount(a *Accessory, p *MountPoint) bool        { return true }
func (m *observingMounter) InitializeMount(a *Accessory, p *MountPoint) bool { return true }
func (m *observingMounter) UpdateMount(a *Accessory, p *MountPoint, finishNow bool) bool {
	if m.onUpdate != nil {
		m.onUpdate(a)
	}
	a.Node().SetParent(p.Node, true)
	return false
}
func (m *observingMounter) CancelMount(a *Accessory, p *MountPoint) {}
func (m *observingMounter) OnAccessoryDestroyed(a *Accessory)       {}

func TestAccessoryStore_DeadNodeRejected(t *testing.T) {
	owner := &fakeOwner{id: "box"}

	dead := NewAccessory("dead", "dead", nil, AccessoryConfig{DeactivateWhenStored: true}, nil)
	if err := dead.Store(owner); err != ErrNotLive {
		t.Fatalf("store with nil node: err = %v, want ErrNotLive", err)
	}
	if dead.Status() != StatusUnmanaged || dead.Owner() != nil {
		t.Fatalf("failed store mutated state: %s owner=%v", dead.Status(), dead.Owner())
	}

	node := NewBasicNode("n")
	a := NewAccessory("a", "a", node, AccessoryConfig{DeactivateWhenStored: true}, nil)
	node.Destroy()
	if err := a.Store(owner); err != ErrNotLive {
		t.Fatalf("store with dead node: err = %v, want ErrNotLive", err)
	}
}

func TestAccessoryStore_Idempotent(t *testing.T) {
	a := testAccessory(t, "hat", CoverHead)
	owner := &fakeOwner{id: "w"}

	events := 0
	a.ObserveState(func(_ *Accessory, _ Status) { events++ })

	if err := a.Store(owner); err != nil {
		t.Fatalf("store: %v", err)
	}
	if events != 1 {
		t.Fatalf("events after first store = %d, want 1", events)
	}
	if err := a.Store(owner); err != nil {
		t.Fatalf("second store: %v", err)
	}
	if events != 1 {
		t.Fatalf("second store broadcast an event (%d total)", events)
	}

	// A different owner refreshes ownership without a broadcast.
	other := &fakeOwner{id: "w2"}
	if err := a.Store(other); err != nil {
		t.Fatalf("store other: %v", err)
	}
	if events != 1 || a.Owner() != Owner(other) {
		t.Fatalf("owner refresh: events=%d owner=%v", events, a.Owner())
	}
}

func TestAccessoryStore_DeactivationAfterBroadcast(t *testing.T) {
	a := NewAccessory("hat", "hat", NewBasicNode("n"), AccessoryConfig{
		Coverage:             CoverHead,
		AllowInternalMount:   true,
		DeactivateWhenStored: true,
	}, nil)
	o := testOutfit(t, "o1", CoverNone, LocHead)
	if _, err := a.Mount(o.Point(LocHead), o, nil, CoverNone); err != nil {
		t.Fatalf("mount: %v", err)
	}

	activeDuringStoreEvent := false
	a.ObserveState(func(acc *Accessory, _ Status) {
		if acc.Status() == StatusStored {
			activeDuringStoreEvent = acc.Node().Active()
		}
	})
	if err := a.Store(&fakeOwner{id: "w"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if !activeDuringStoreEvent {
		t.Fatalf("observer saw a deactivated accessory during the store broadcast")
	}
	if a.Node().Active() {
		t.Fatalf("accessory still active after store")
	}

	// Mounting again must re-activate before the broadcast.
	activeDuringMountEvent := false
	a.ObserveState(func(acc *Accessory, _ Status) {
		if acc.Status() == StatusMounted {
			activeDuringMountEvent = acc.Node().Active()
		}
	})
	if _, err := a.Mount(o.Point(LocHead), o, nil, CoverNone); err != nil {
		t.Fatalf("remount: %v", err)
	}
	if !activeDuringMountEvent {
		t.Fatalf("observer saw an inactive accessory during the mount broadcast")
	}
}

func TestAccessoryRelease_CleansUp(t *testing.T) {
	a := testAccessory(t, "hat", CoverHead)
	o := testOutfit(t, "o1", CoverNone, LocHead)
	if _, err := a.Mount(o.Point(LocHead), o, nil, CoverNone); err != nil {
		t.Fatalf("mount: %v", err)
	}

	a.Release()
	if a.Status() != StatusUnmanaged || a.Owner() != nil {
		t.Fatalf("release left %s owner=%v", a.Status(), a.Owner())
	}
	if a.Coverage() != 0 || a.Point() != nil || a.Node().Parent() != nil {
		t.Fatalf("release leaked coverage/point/parent")
	}
}

func TestAccessoryMountRoundTrip(t *testing.T) {
	// Mount, release, mount again: identical result, no leaked coverage or
	// stale point block.
	a := testAccessory(t, "hat", CoverHead)
	o := testOutfit(t, "o1", CoverNone, LocHead)

	for i := 0; i < 3; i++ {
		res, err := o.Mount(a, LocHead, false, nil, CoverNone)
		if err != nil || res != MountOK {
			t.Fatalf("round %d mount: res=%s err=%v", i, res, err)
		}
		if a.Coverage() != CoverHead || !o.CurrentCoverage().Has(CoverHead) {
			t.Fatalf("round %d coverage wrong", i)
		}
		if !o.Release(a) {
			t.Fatalf("round %d release returned false", i)
		}
		if o.CurrentCoverage() != CoverNone {
			t.Fatalf("round %d leaked coverage: %s", i, o.CurrentCoverage())
		}
	}
}

func TestAccessoryDestroy_ObserversBeforeTeardown(t *testing.T) {
	a := testAccessory(t, "hat", CoverHead)
	o := testOutfit(t, "o1", CoverNone, LocHead)
	if _, err := a.Mount(o.Point(LocHead), o, nil, CoverNone); err != nil {
		t.Fatalf("mount: %v", err)
	}

	var order []string
	a.SetPreDestroyHook(func(acc *Accessory, _ DestroyKind) {
		order = append(order, "pre")
		if acc.Status() != StatusMounted {
			t.Errorf("pre-destroy hook saw torn-down state %s", acc.Status())
		}
	})
	a.ObserveDestroy(func(acc *Accessory, kind DestroyKind) {
		order = append(order, "broadcast")
		if kind != DestroyExplicit {
			t.Errorf("kind = %s", kind)
		}
		if acc.Owner() == nil {
			t.Errorf("destroy broadcast saw cleared owner")
		}
	})

	a.Destroy(DestroyExplicit, false)
	if len(order) != 2 || order[0] != "pre" || order[1] != "broadcast" {
		t.Fatalf("order = %v", order)
	}
	if a.Status() != StatusPurged {
		t.Fatalf("status = %s, want PURGED", a.Status())
	}
	if a.Node().Parent() != nil || a.Node().Active() {
		t.Fatalf("teardown did not detach/deactivate")
	}

	// Terminal: all entry points refuse.
	if _, err := a.Mount(o.Point(LocHead), o, nil, CoverNone); err != ErrPurged {
		t.Fatalf("mount after destroy: %v", err)
	}
	if err := a.Store(&fakeOwner{id: "w"}); err != ErrPurged {
		t.Fatalf("store after destroy: %v", err)
	}
}

func TestAccessoryDestroy_PrepareOnly(t *testing.T) {
	a := testAccessory(t, "hat", CoverHead)
	o := testOutfit(t, "o1", CoverNone, LocHead)
	if _, err := a.Mount(o.Point(LocHead), o, nil, CoverNone); err != nil {
		t.Fatalf("mount: %v", err)
	}

	a.Destroy(DestroyExplicit, true)
	if a.Status() != StatusPurged {
		t.Fatalf("prepare-only destroy must still be terminal, got %s", a.Status())
	}
	// Physical teardown is the caller's job in prepare-only mode.
	if a.Node().Parent() == nil {
		t.Fatalf("prepare-only destroy detached the node")
	}
}

func TestAccessoryResolutionOrder(t *testing.T) {
	callerPriority := &recordingMounter{}
	ownPriority := &recordingMounter{}
	candidate := &recordingMounter{}

	a := NewAccessory("hat", "hat", NewBasicNode("n"), AccessoryConfig{
		Coverage:           CoverHead,
		PriorityMounter:    ownPriority,
		Mounters:           MounterGroup{candidate},
		AllowInternalMount: true,
	}, nil)
	o := testOutfit(t, "o1", CoverNone, LocHead)
	p := o.Point(LocHead)

	// Caller-supplied priority wins.
	if ok, _ := a.Mount(p, o, callerPriority, CoverNone); !ok {
		t.Fatal("mount failed")
	}
	if a.Mounter() != Mounter(callerPriority) || ownPriority.initCalls != 0 {
		t.Fatalf("caller priority not preferred")
	}
	a.Release()

	// Without it, the accessory's own priority mounter is next.
	if ok, _ := a.Mount(p, o, nil, CoverNone); !ok {
		t.Fatal("mount failed")
	}
	if a.Mounter() != Mounter(ownPriority) || candidate.initCalls != 0 {
		t.Fatalf("own priority not preferred")
	}
	a.Release()

	// Rejecting priorities fall through to the candidate list.
	callerPriority.rejectInit = true
	ownPriority.rejectInit = true
	if ok, _ := a.Mount(p, o, callerPriority, CoverNone); !ok {
		t.Fatal("mount failed")
	}
	if a.Mounter() != Mounter(candidate) {
		t.Fatalf("candidate list not used")
	}
	a.Release()

	// Everything rejecting leaves the internal fallback.
	candidate.rejectInit = true
	if ok, _ := a.Mount(p, o, callerPriority, CoverNone); !ok {
		t.Fatal("internal fallback did not engage")
	}
	if a.Status() != StatusMounted {
		t.Fatalf("status = %s", a.Status())
	}
}
