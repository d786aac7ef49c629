package groupcall

import "errors"

// Sentinel errors for group call client operations.
var (
	// ErrAlreadyJoined indicates Join was called on a client that is not disconnected.
	ErrAlreadyJoined = errors.New("group call client already joined or joining")

	// ErrNotJoined indicates an operation that requires an active session.
	ErrNotJoined = errors.New("group call client not joined")

	// ErrInvalidRelayURL indicates an empty or unusable relay URL.
	ErrInvalidRelayURL = errors.New("invalid relay url")

	// ErrMalformedResponse indicates a relay response that could not be decoded.
	ErrMalformedResponse = errors.New("malformed relay response")
)
