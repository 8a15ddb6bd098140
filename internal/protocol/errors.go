package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// World routing/state.
	ErrWorldBusy     = "E_WORLD_BUSY"
	ErrWorldNotFound = "E_WORLD_NOT_FOUND"
	ErrWorldDenied   = "E_WORLD_DENIED"

	// Observer commands.
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrInvalidCoordinate = "E_INVALID_COORDINATE"
	ErrRateLimit         = "E_RATE_LIMIT"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrProtoVersion:      {},
	ErrWorldBusy:         {},
	ErrWorldNotFound:     {},
	ErrWorldDenied:       {},
	ErrBadRequest:        {},
	ErrInvalidCoordinate: {},
	ErrRateLimit:         {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
