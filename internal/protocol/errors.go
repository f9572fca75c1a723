package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Usage errors: operation aborted, no state change.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrNotFound       = "E_NOT_FOUND"
	ErrDuplicate      = "E_DUPLICATE"
	ErrAlreadyManaged = "E_ALREADY_MANAGED"
	ErrNotLive        = "E_NOT_LIVE"

	// Mount-resolution failures: recoverable, the caller sees the fallback.
	ErrNoPoint      = "E_NO_POINT"
	ErrPointBlocked = "E_POINT_BLOCKED"
	ErrBlocked      = "E_BLOCKED"
	ErrLimited      = "E_LIMITED"
	ErrRejected     = "E_REJECTED"
	ErrMustMount    = "E_MUST_MOUNT"

	ErrRateLimit = "E_RATE_LIMIT"
	ErrInternal  = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrNotFound:        {},
	ErrDuplicate:       {},
	ErrAlreadyManaged:  {},
	ErrNotLive:         {},
	ErrNoPoint:         {},
	ErrPointBlocked:    {},
	ErrBlocked:         {},
	ErrLimited:         {},
	ErrRejected:        {},
	ErrMustMount:       {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
