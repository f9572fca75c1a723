package avatar

// Location identifies a mount-point slot on an outfit. The set is open:
// catalogs may register additional locations beyond the built-ins, so the
// type is a plain string id (same approach as catalog palettes elsewhere).
type Location string

const (
	LocHead      Location = "HEAD"
	LocFace      Location = "FACE"
	LocNeck      Location = "NECK"
	LocBack      Location = "BACK"
	LocWaist     Location = "WAIST"
	LocHandLeft  Location = "HAND_L"
	LocHandRight Location = "HAND_R"
	LocFeet      Location = "FEET"
)

// BuiltinLocations lists the locations every location catalog must contain,
// in palette order.
func BuiltinLocations() []Location {
	return []Location{LocHead, LocFace, LocNeck, LocBack, LocWaist, LocHandLeft, LocHandRight, LocFeet}
}
