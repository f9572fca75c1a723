package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	ResumeToken     string `json:"resume_token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	ResumeToken     string         `json:"resume_token"`
	RoomParams      RoomParams     `json:"room_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type RoomParams struct {
	RoomID           string `json:"room_id"`
	TickRateHz       int    `json:"tick_rate_hz"`
	AutoRetryStored  bool   `json:"auto_retry_stored"`
	DefaultEaseTicks int    `json:"default_ease_ticks"`
}

type CatalogDigests struct {
	Locations   DigestRef `json:"locations"`
	Accessories DigestRef `json:"accessories"`
	Outfits     DigestRef `json:"outfits"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client), one per catalog after WELCOME.
type CatalogMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	Digest          string `json:"digest"`
	Data            any    `json:"data"`
}

// Command verbs.
const (
	VerbSpawnBody        = "spawn_body"
	VerbCreateOutfit     = "create_outfit"
	VerbCreateAccessory  = "create_accessory"
	VerbSetOutfit        = "set_outfit"
	VerbAddAccessory     = "add_accessory"
	VerbModifyAccessory  = "modify_accessory"
	VerbRemoveAccessory  = "remove_accessory"
	VerbStoreAccessory   = "store_accessory"
	VerbReleaseAccessory = "release_accessory"
	VerbDestroyAccessory = "destroy_accessory"
	VerbInspect          = "inspect"
)

// CMD (client -> server)
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CmdID           string `json:"cmd_id"`
	Verb            string `json:"verb"`

	BodyID      string `json:"body_id,omitempty"`
	OutfitID    string `json:"outfit_id,omitempty"`
	AccessoryID string `json:"accessory_id,omitempty"`
	// DefID names a catalog definition for the create verbs.
	DefID string `json:"def_id,omitempty"`

	Location           string   `json:"location,omitempty"`
	IgnoreRestrictions bool     `json:"ignore_restrictions,omitempty"`
	MustMount          bool     `json:"must_mount,omitempty"`
	AdditionalCoverage []string `json:"additional_coverage,omitempty"`
	// Mounter overrides the accessory's own selection ("IMMEDIATE"/"EASED").
	Mounter   string `json:"mounter,omitempty"`
	EaseTicks int    `json:"ease_ticks,omitempty"`

	ForceRelease bool `json:"force_release,omitempty"`
}

// ACK (server -> client)
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Reason          string `json:"reason,omitempty"`
	// Result is the mount-level outcome for mount-ish verbs
	// ("MOUNTED"/"STORED"/"FAILED").
	Result     string `json:"result,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	ServerTick uint64 `json:"server_tick"`
}

// Event kinds.
const (
	EventAccessoryState = "accessory_state"
	EventOutfitState    = "outfit_state"
	EventOutfitChange   = "outfit_change"
	EventAccessoryGone  = "accessory_destroyed"
)

// EVENT (server -> client), broadcast at tick boundaries.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Kind            string `json:"kind"`

	BodyID      string `json:"body_id,omitempty"`
	OutfitID    string `json:"outfit_id,omitempty"`
	AccessoryID string `json:"accessory_id,omitempty"`

	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	OwnerID  string   `json:"owner_id,omitempty"`
	Location string   `json:"location,omitempty"`
	Coverage []string `json:"coverage,omitempty"`
	Forced   bool     `json:"forced,omitempty"`
	// PrevOutfitID is set on outfit_change events.
	PrevOutfitID string `json:"prev_outfit_id,omitempty"`
}

// WARDROBE (server -> client): the full state of one body, reply to inspect.
type WardrobeMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	ReqID           string           `json:"req_id"`
	Tick            uint64           `json:"tick"`
	Body            BodyState        `json:"body"`
	Accessories     []AccessoryState `json:"accessories"`
}

type BodyState struct {
	ID              string     `json:"id"`
	OutfitID        string     `json:"outfit_id,omitempty"`
	OutfitStatus    string     `json:"outfit_status,omitempty"`
	OutfitCoverage  []string   `json:"outfit_coverage,omitempty"`
	DefaultPosition [3]float64 `json:"default_position"`
	DefaultRotation [3]float64 `json:"default_rotation"`
}

type AccessoryState struct {
	ID       string   `json:"id"`
	DefID    string   `json:"def_id"`
	Status   string   `json:"status"`
	OwnerID  string   `json:"owner_id,omitempty"`
	Location string   `json:"location,omitempty"`
	Coverage []string `json:"coverage,omitempty"`
	Mounted  bool     `json:"mounted"`
}
