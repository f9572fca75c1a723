package avatar

// Handle identifies an observer registration. Handles stay valid across
// other registrations and removals; a stale handle is simply ignored.
type Handle struct {
	idx int
	gen uint32
}

// Zero reports whether h was never issued.
func (h Handle) Zero() bool { return h.gen == 0 }

// observers is an arena of callbacks with generation-checked handles.
// Removal during iteration is allowed: Each checks liveness per slot, and
// callbacks added mid-iteration are not visited until the next broadcast.
type observers[T any] struct {
	slots []obSlot[T]
	free  []int
}

type obSlot[T any] struct {
	fn   T
	gen  uint32
	live bool
}

func (o *observers[T]) Add(fn T) Handle {
	if n := len(o.free); n > 0 {
		idx := o.free[n-1]
		o.free = o.free[:n-1]
		s := &o.slots[idx]
		s.fn = fn
		s.gen++
		s.live = true
		return Handle{idx: idx, gen: s.gen}
	}
	o.slots = append(o.slots, obSlot[T]{fn: fn, gen: 1, live: true})
	return Handle{idx: len(o.slots) - 1, gen: 1}
}

func (o *observers[T]) Remove(h Handle) bool {
	if h.idx < 0 || h.idx >= len(o.slots) {
		return false
	}
	s := &o.slots[h.idx]
	if !s.live || s.gen != h.gen {
		return false
	}
	s.live = false
	var zero T
	s.fn = zero
	o.free = append(o.free, h.idx)
	return true
}

func (o *observers[T]) Each(visit func(T)) {
	// Snapshot length and generations: observers added during the broadcast
	// wait for the next one, even when they land in a freed slot.
	n := len(o.slots)
	gens := make([]uint32, n)
	for i := 0; i < n; i++ {
		gens[i] = o.slots[i].gen
	}
	for i := 0; i < n; i++ {
		if o.slots[i].live && o.slots[i].gen == gens[i] {
			visit(o.slots[i].fn)
		}
	}
}

func (o *observers[T]) Len() int {
	n := 0
	for i := range o.slots {
		if o.slots[i].live {
			n++
		}
	}
	return n
}
