package bridge

import "errors"

var (
	// ErrClosed indicates the adapter has shut down.
	ErrClosed = errors.New("bridge closed")

	// ErrUnknownKind indicates a host frame of an unsupported kind.
	ErrUnknownKind = errors.New("unknown frame kind")

	// ErrNotBound indicates a frame arrived before Bind.
	ErrNotBound = errors.New("bridge not bound to a call manager")

	// ErrBadPayload indicates a host frame whose payload could not be decoded.
	ErrBadPayload = errors.New("bad frame payload")
)
