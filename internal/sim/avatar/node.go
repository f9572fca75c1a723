package avatar

// Vec3 is a local-space position or euler rotation in degrees.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Lerp interpolates toward o; t is clamped to [0,1].
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	if t <= 0 {
		return v
	}
	if t >= 1 {
		return o
	}
	return Vec3{
		X: v.X + (o.X-v.X)*t,
		Y: v.Y + (o.Y-v.Y)*t,
		Z: v.Z + (o.Z-v.Z)*t,
	}
}

func (v Vec3) ToArray() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Node is the narrow spatial collaborator the engine manipulates. The engine
// never does transform math beyond offset interpolation during eased mounts;
// rendering and physics live behind whatever implements this.
type Node interface {
	Name() string
	Parent() Node
	// SetParent reparents the node. resetLocal zeroes the local position and
	// rotation after the move.
	SetParent(parent Node, resetLocal bool)
	Active() bool
	SetActive(active bool)
	LocalPosition() Vec3
	SetLocalPosition(Vec3)
	LocalRotation() Vec3
	SetLocalRotation(Vec3)
	// Valid reports whether the underlying scene object still exists. A node
	// destroyed behind the engine's back is detected lazily through this.
	Valid() bool
}

// BasicNode is the in-memory Node used by the simulation and tests.
type BasicNode struct {
	name      string
	parent    Node
	active    bool
	pos, rot  Vec3
	destroyed bool
}

func NewBasicNode(name string) *BasicNode {
	return &BasicNode{name: name, active: true}
}

func (n *BasicNode) Name() string { return n.name }

func (n *BasicNode) Parent() Node { return n.parent }

func (n *BasicNode) SetParent(parent Node, resetLocal bool) {
	n.parent = parent
	if resetLocal {
		n.pos = Vec3{}
		n.rot = Vec3{}
	}
}

func (n *BasicNode) Active() bool { return n.active }

func (n *BasicNode) SetActive(active bool) { n.active = active }

func (n *BasicNode) LocalPosition() Vec3 { return n.pos }

func (n *BasicNode) SetLocalPosition(v Vec3) { n.pos = v }

func (n *BasicNode) LocalRotation() Vec3 { return n.rot }

func (n *BasicNode) SetLocalRotation(v Vec3) { n.rot = v }

func (n *BasicNode) Valid() bool { return n != nil && !n.destroyed }

// Destroy marks the node dead. Engine state referencing it is purged lazily
// on next access.
func (n *BasicNode) Destroy() {
	n.destroyed = true
	n.parent = nil
	n.active = false
}
