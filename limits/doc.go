// Package limits provides centralized size constants and validation functions
// for call signaling payloads. It keeps size enforcement consistent between the
// signaling constructors, the call manager and the host adapters.
//
// # Size Hierarchy
//
//   - MaxOpaqueSignaling (2048 bytes): the largest opaque blob accepted inside an
//     Offer, Answer or IceCandidate. The encrypted connection parameters are far
//     smaller in practice; anything larger is treated as malformed.
//
//   - MaxLegacySDP (16384 bytes): the largest legacy plaintext SDP string form.
//
//   - MaxIceCandidatesPerMessage (64): the largest candidate batch carried by a
//     single ICE message. Larger batches are split by the sender.
//
//   - MaxCallMessage (4096 bytes): the largest opaque application call message
//     relayed through SendCallMessage.
//
//   - MaxHTTPBody (1MB): the absolute maximum for a proxied relay HTTP body.
//
// # Validation Functions
//
// Each validation function checks for empty payloads and size limit violations:
//
//	err := limits.ValidateOpaque(opaque)
//	if err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
//
// For custom size limits, use the generic ValidateMessageSize function:
//
//	err := limits.ValidateMessageSize(data, 4096)
package limits
