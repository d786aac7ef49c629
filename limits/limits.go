// Package limits provides centralized size limits for call signaling payloads.
// This ensures consistent validation across different components of the system.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxOpaqueSignaling is the limit for the opaque blob of one signaling message.
	MaxOpaqueSignaling = 2048

	// MaxLegacySDP is the limit for the legacy plaintext SDP form of an offer or answer.
	MaxLegacySDP = 16384

	// MaxIceCandidatesPerMessage bounds the number of candidates in one ICE message.
	MaxIceCandidatesPerMessage = 64

	// MaxCallMessage is the limit for opaque application call messages.
	MaxCallMessage = 4096

	// MaxHTTPBody is the absolute maximum for a proxied HTTP request or response body.
	MaxHTTPBody = 1024 * 1024
)

var (
	// ErrMessageEmpty indicates an empty payload was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates a payload exceeds its maximum size
	ErrMessageTooLarge = errors.New("message too large")

	// ErrTooManyCandidates indicates an ICE batch exceeds MaxIceCandidatesPerMessage
	ErrTooManyCandidates = errors.New("too many ice candidates")
)

// ValidateMessageSize validates a payload against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateOpaque validates an opaque signaling blob against MaxOpaqueSignaling.
func ValidateOpaque(opaque []byte) error {
	if len(opaque) == 0 {
		return ErrMessageEmpty
	}
	if len(opaque) > MaxOpaqueSignaling {
		return fmt.Errorf("%w: opaque size %d exceeds limit %d", ErrMessageTooLarge, len(opaque), MaxOpaqueSignaling)
	}
	return nil
}

// ValidateLegacySDP validates a legacy SDP string. An empty string is allowed
// because the legacy form is optional.
func ValidateLegacySDP(sdp string) error {
	if len(sdp) > MaxLegacySDP {
		return fmt.Errorf("%w: sdp size %d exceeds limit %d", ErrMessageTooLarge, len(sdp), MaxLegacySDP)
	}
	return nil
}

// ValidateCandidateCount validates the size of an ICE candidate batch.
func ValidateCandidateCount(n int) error {
	if n == 0 {
		return ErrMessageEmpty
	}
	if n > MaxIceCandidatesPerMessage {
		return fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyCandidates, n, MaxIceCandidatesPerMessage)
	}
	return nil
}

// ValidateCallMessage validates an application call message against MaxCallMessage.
func ValidateCallMessage(message []byte) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > MaxCallMessage {
		return fmt.Errorf("%w: call message size %d exceeds limit %d", ErrMessageTooLarge, len(message), MaxCallMessage)
	}
	return nil
}

// ValidateHTTPBody validates a proxied HTTP body. Empty bodies are allowed.
func ValidateHTTPBody(body []byte) error {
	if len(body) > MaxHTTPBody {
		return fmt.Errorf("%w: body size %d exceeds limit %d", ErrMessageTooLarge, len(body), MaxHTTPBody)
	}
	return nil
}
