package media

import "errors"

var (
	// ErrClosed indicates an operation on a closed handle or engine.
	ErrClosed = errors.New("media handle closed")

	// ErrNoSessionDescription indicates an offer or answer without SDP.
	ErrNoSessionDescription = errors.New("session description missing")

	// ErrMissingICECredentials indicates an SDP without ice-ufrag or ice-pwd.
	ErrMissingICECredentials = errors.New("sdp carries no ice credentials")
)
