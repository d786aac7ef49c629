package signaling

import "errors"

// Sentinel errors for signaling payload construction and decoding.
var (
	// ErrInvalidMediaType indicates a media type outside Audio and Video.
	ErrInvalidMediaType = errors.New("invalid call media type")

	// ErrInvalidDeviceID indicates a zero device id where a real device is required.
	ErrInvalidDeviceID = errors.New("invalid device id")

	// ErrMalformedParameters indicates the opaque blob is not a valid parameter block.
	ErrMalformedParameters = errors.New("malformed connection parameters")

	// ErrMissingPublicKey indicates a V4 parameter block without a public key.
	ErrMissingPublicKey = errors.New("connection parameters missing public key")
)
