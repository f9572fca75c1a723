package avatar

import "errors"

// Usage errors abort the operation with no state change. Mount-resolution
// failures are not errors; they surface as MountResult codes and degrade to
// storage where a fallback exists.
var (
	ErrNilAccessory   = errors.New("avatar: nil accessory")
	ErrNilMountPoint  = errors.New("avatar: nil mount point")
	ErrNilOwner       = errors.New("avatar: nil owner")
	ErrNilOutfit      = errors.New("avatar: nil outfit")
	ErrNotLive        = errors.New("avatar: entity has no live node")
	ErrPurged         = errors.New("avatar: entity was destroyed")
	ErrAlreadyManaged = errors.New("avatar: entity is already managed by another owner")
	ErrAlreadyAdded   = errors.New("avatar: accessory is already registered")
	ErrNotRegistered  = errors.New("avatar: accessory is not registered")
)
