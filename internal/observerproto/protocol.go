package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeMove      = "MOVE"
	TypeWalk      = "WALK"
	TypeStep      = "STEP"
	TypeError     = "ERROR"
)

// Envelope is decoded first to route an inbound message by type.
type Envelope struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the object radius.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Radius selects which objects (by center distance from the observer)
	// are listed in each STEP. Zero sends counts only.
	Radius float64 `json:"radius,omitempty"`
}

// Client -> Server. Teleports the observer to X.
type MoveMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	X               float64 `json:"x"`
}

// Client -> Server. Sets a constant observer speed in units per second.
type WalkMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Speed           float64 `json:"speed"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	RunID           string      `json:"run_id"`
	Step            uint64      `json:"step"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz      int     `json:"tick_rate_hz"`
	Seed            int64   `json:"seed"`
	ViewWidth       float64 `json:"view_width"`
	ViewHeight      float64 `json:"view_height"`
	BlockSize       float64 `json:"block_size"`
	AddThreshold    float64 `json:"add_threshold"`
	DeleteThreshold float64 `json:"delete_threshold"`
	VegetationMode  string  `json:"vegetation_mode"`
}

// Server -> Client. Sent every step.
type StepMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Step            uint64 `json:"step"`

	ObserverX float64    `json:"observer_x"`
	Window    [2]float64 `json:"window"`

	Growth    *GrowthInfo    `json:"growth,omitempty"`
	Sweep     *SweepInfo     `json:"sweep,omitempty"`
	Reclaimed int            `json:"reclaimed,omitempty"`
	Counts    map[string]int `json:"counts"`
	Digest    string         `json:"digest"`

	Objects []ObjectState `json:"objects,omitempty"`
}

type GrowthInfo struct {
	Dir   string     `json:"dir"`
	Range [2]float64 `json:"range"`
	Units int        `json:"units"`
}

type SweepInfo struct {
	Left    bool `json:"left"`
	Right   bool `json:"right"`
	Evicted int  `json:"evicted"`
}

type ObjectState struct {
	ID      uint64  `json:"id"`
	Kind    string  `json:"kind"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity,omitempty"`
}

// Server -> Client. Sent when an inbound message is rejected.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
