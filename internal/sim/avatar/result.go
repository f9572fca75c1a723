package avatar

// MountResult is the outcome of an Outfit.Mount call. Everything but
// MountOK is recoverable; callers with a storage fallback degrade to Stored.
type MountResult uint8

const (
	MountOK MountResult = iota
	// MountNoPoint: the outfit has no mount point for the location.
	MountNoPoint
	// MountPointBlocked: the point exists but is flagged blocked.
	MountPointBlocked
	// MountLimited: the outfit limits accessories and this one does not opt out.
	MountLimited
	// MountBlocked: requested coverage overlaps the outfit's blocks or
	// coverage already granted to mounted accessories.
	MountBlocked
	// MountRejected: no mounter accepted the attach.
	MountRejected
	// MountUsageError: a usage error aborted the call (nil argument, dead
	// node); see the returned error.
	MountUsageError
)

func (r MountResult) Success() bool { return r == MountOK }

func (r MountResult) String() string {
	switch r {
	case MountOK:
		return "OK"
	case MountNoPoint:
		return "NO_POINT"
	case MountPointBlocked:
		return "POINT_BLOCKED"
	case MountLimited:
		return "LIMITED"
	case MountBlocked:
		return "BLOCKED"
	case MountRejected:
		return "REJECTED"
	case MountUsageError:
		return "USAGE_ERROR"
	}
	return "UNKNOWN"
}

// Outcome is the manager-level result of Add/Modify: the accessory ended up
// mounted, ended up stored (fallback), or the operation failed outright
// (only possible with mustMount).
type Outcome uint8

const (
	OutcomeMounted Outcome = iota
	OutcomeStored
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMounted:
		return "MOUNTED"
	case OutcomeStored:
		return "STORED"
	case OutcomeFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}
