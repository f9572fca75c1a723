package avatar

import "testing"

// Shared fixtures for the package tests.

func testAccessory(t *testing.T, id string, cover BodyCoverage) *Accessory {
	t.Helper()
	return NewAccessory(id, id, NewBasicNode("node_"+id), AccessoryConfig{
		Coverage:           cover,
		AllowInternalMount: true,
	}, nil)
}

func testOutfit(t *testing.T, id string, blocks BodyCoverage, locs ...Location) *Outfit {
	t.Helper()
	o := NewOutfit(id, id, NewBasicNode("root_"+id), OutfitConfig{CoverageBlocks: blocks})
	for _, loc := range locs {
		if _, err := o.AddPoint(loc, NewBasicNode("pt_"+string(loc)), false); err != nil {
			t.Fatalf("add point %s: %v", loc, err)
		}
	}
	return o
}

type fakeOwner struct{ id string }

func (f *fakeOwner) OwnerID() string { return f.id }

// recordingMounter counts calls and can be told to reject, to need extra
// ticks, or to refuse only at init time.
type recordingMounter struct {
	rejectInit  bool
	ticksNeeded int

	canCalls    int
	initCalls   int
	updateCalls int
	cancels     int
	destroyed   int
}

func (m *recordingMounter) CanMount(a *Accessory, p *MountPoint) bool {
	m.canCalls++
	return !m.rejectInit
}

func (m *recordingMounter) InitializeMount(a *Accessory, p *MountPoint) bool {
	m.initCalls++
	return !m.rejectInit
}

func (m *recordingMounter) UpdateMount(a *Accessory, p *MountPoint, finishNow bool) bool {
	m.updateCalls++
	if finishNow {
		a.Node().SetParent(p.Node, true)
		return false
	}
	if m.updateCalls <= m.ticksNeeded {
		return true
	}
	a.Node().SetParent(p.Node, true)
	return false
}

func (m *recordingMounter) CancelMount(a *Accessory, p *MountPoint) { m.cancels++ }

func (m *recordingMounter) OnAccessoryDestroyed(a *Accessory) { m.destroyed++ }
