package avatar

// Scheduler pumps multi-tick mounts, one UpdateMount per continuation per
// Tick. It is frame-synchronous and must only be used from the goroutine
// that owns the avatar state.
//
// Cancellation is the generation token: every state transition on an
// accessory bumps its generation, so a stale continuation observes a
// mismatch on its next tick and terminates silently. There is no task
// handle to cancel directly.
type Scheduler struct {
	queue []continuation
}

type continuation struct {
	acc     *Accessory
	mounter Mounter
	point   *MountPoint
	gen     uint64
}

func NewScheduler() *Scheduler { return &Scheduler{} }

func (s *Scheduler) schedule(c continuation) {
	s.queue = append(s.queue, c)
}

// Pending reports how many continuations are waiting for the next tick.
func (s *Scheduler) Pending() int { return len(s.queue) }

// Tick runs every pending continuation once. Continuations scheduled during
// the tick (re-entrant mounts from observer callbacks) run on the next one.
// Returns the number of mounts that completed this tick.
func (s *Scheduler) Tick() int {
	if len(s.queue) == 0 {
		return 0
	}
	running := s.queue
	s.queue = nil

	completed := 0
	for _, c := range running {
		if c.acc == nil || c.acc.gen != c.gen || c.acc.mounter != c.mounter {
			// Stale: a Store/Release/new Mount intervened. CancelMount
			// already ran as part of that transition.
			continue
		}
		if c.mounter.UpdateMount(c.acc, c.point, false) {
			s.queue = append(s.queue, c)
			continue
		}
		completed++
		c.acc.finishMount()
	}
	return completed
}
