package call

import "errors"

// Sentinel errors for call package operations.
// These errors enable reliable error classification using errors.Is().

// User command errors.
var (
	// ErrAlreadyInCall indicates a 1:1 call already occupies the active slot.
	ErrAlreadyInCall = errors.New("already in a call")

	// ErrNoActiveCall indicates no call matches the command.
	ErrNoActiveCall = errors.New("no active call")

	// ErrInvalidMediaType indicates a media type outside audio and video.
	ErrInvalidMediaType = errors.New("invalid media type")

	// ErrManagerClosed indicates the manager has been closed.
	ErrManagerClosed = errors.New("call manager is closed")
)

// Protocol outcomes. Inbound handlers return these when a message was dropped
// by state machine policy; hosts may log and otherwise ignore them.
var (
	// ErrStale indicates an inbound offer or call message older than the freshness threshold.
	ErrStale = errors.New("stale message")

	// ErrStaleCallID indicates a message for an ended or unknown call id.
	ErrStaleCallID = errors.New("stale call id")

	// ErrNoSuchDevice indicates a message addressed at a device with no connection.
	ErrNoSuchDevice = errors.New("no such device")

	// ErrGlare indicates an offer dropped because the local call won glare resolution.
	ErrGlare = errors.New("offer lost glare resolution")

	// ErrUnexpectedMessage indicates a message that does not fit the call direction or state.
	ErrUnexpectedMessage = errors.New("unexpected message for call state")

	// ErrUnknownHTTPRequest indicates an HTTP completion for a request id nobody owns.
	ErrUnknownHTTPRequest = errors.New("unknown http request id")

	// ErrUnknownParticipant indicates a group video track for a demux id outside the roster.
	ErrUnknownParticipant = errors.New("unknown group participant")
)

// Platform boundary errors.
var (
	// ErrConnectionCreation indicates the platform failed to create a native connection.
	ErrConnectionCreation = errors.New("connection creation failed")

	// ErrNoSuchClient indicates an unknown group call client id.
	ErrNoSuchClient = errors.New("no such group call client")
)

var protocolErrors = []error{
	ErrStale,
	ErrStaleCallID,
	ErrNoSuchDevice,
	ErrGlare,
	ErrUnexpectedMessage,
	ErrUnknownHTTPRequest,
	ErrUnknownParticipant,
}

// IsProtocolError reports whether err is an expected protocol outcome rather
// than a failure.
func IsProtocolError(err error) bool {
	for _, target := range protocolErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
