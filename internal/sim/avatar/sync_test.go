package avatar

import "testing"

func TestMaterialSyncCopiesAcrossSwap(t *testing.T) {
	b := NewBody("b1", NewBasicNode("body"), nil)
	b.ObserveOutfit(MaterialSync{}.OnOutfitChange)

	o1 := testOutfit(t, "o1", CoverNone, LocHead)
	o1.SetMaterials([]Material{{Slot: "skin", Shader: "toon", Texture: "skin_01"}})
	o2 := testOutfit(t, "o2", CoverNone, LocHead)

	if err := b.SetOutfit(o1, false); err != nil {
		t.Fatal(err)
	}
	if err := b.SetOutfit(o2, false); err != nil {
		t.Fatal(err)
	}

	ms := o2.Materials()
	if len(ms) != 1 || ms[0].Texture != "skin_01" {
		t.Fatalf("materials = %+v", ms)
	}
	// A copy, not a shared slice.
	ms[0].Texture = "mutated"
	if o1.Materials()[0].Texture != "skin_01" {
		t.Fatalf("sync aliased the source materials")
	}
}

func TestMaterialSyncSkipsForcedSwap(t *testing.T) {
	b := NewBody("b1", NewBasicNode("body"), nil)
	b.ObserveOutfit(MaterialSync{}.OnOutfitChange)

	o1 := testOutfit(t, "o1", CoverNone, LocHead)
	o1.SetMaterials([]Material{{Slot: "skin"}})
	o2 := testOutfit(t, "o2", CoverNone, LocHead)

	if err := b.SetOutfit(o1, false); err != nil {
		t.Fatal(err)
	}
	if err := b.SetOutfit(o2, true); err != nil {
		t.Fatal(err)
	}
	if len(o2.Materials()) != 0 {
		t.Fatalf("forced swap still copied materials")
	}
}

func TestAnimatorSync(t *testing.T) {
	b := NewBody("b1", NewBasicNode("body"), nil)
	b.ObserveOutfit(AnimatorSync{}.OnOutfitChange)

	o1 := testOutfit(t, "o1", CoverNone, LocHead)
	o1.SetAnimatorController("humanoid_idle")
	o2 := testOutfit(t, "o2", CoverNone, LocHead)

	if err := b.SetOutfit(o1, false); err != nil {
		t.Fatal(err)
	}
	if err := b.SetOutfit(o2, false); err != nil {
		t.Fatal(err)
	}
	if o2.AnimatorController() != "humanoid_idle" {
		t.Fatalf("controller = %q", o2.AnimatorController())
	}
}
