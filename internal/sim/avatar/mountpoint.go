package avatar

// Owner is an opaque reference to whatever currently holds an accessory or
// outfit: an Outfit while mounted, a BodyAccessoryManager while stored, a
// Body for a worn outfit.
type Owner interface {
	OwnerID() string
}

// MountPoint is a named attachment socket on an outfit. Identity is the
// (outfit, location) pair: an outfit holds at most one point per location.
type MountPoint struct {
	Location Location
	Node     Node
	Blocked  bool

	outfit *Outfit
	// Context is the body-assigned marker, set while the owning outfit is
	// worn and always cleared when it is taken off.
	Context *Body
}

func (p *MountPoint) Outfit() *Outfit { return p.outfit }

func (p *MountPoint) usable() bool {
	return p != nil && !p.Blocked && p.Node != nil && p.Node.Valid()
}

// BodyPart is a region of an outfit's own geometry. The engine only tracks
// it for context marking and coverage bookkeeping; meshes are external.
type BodyPart struct {
	Region  BodyCoverage
	Node    Node
	Context *Body
}
