// Package signaling defines the call signaling message model.
//
// Every 1:1 call is negotiated with six message kinds: Offer, Answer,
// IceCandidate batches (Ice), Hangup, Busy and the generic CallMessage. Each
// payload carries an opaque blob produced by the excluded cryptographic layer
// and, for backward compatibility, an optional legacy plaintext SDP form.
// Payloads are immutable once constructed; accessors return copies.
//
// # Inbound and Outbound Wrappers
//
// Inbound messages are wrapped in Received* types that add the sender and
// receiver DeviceID, the message age and the sender's FeatureLevel. Outbound
// messages are wrapped in Send* types that record the delivery mode:
//
//   - Offer, Hangup and Busy are always broadcast to every device of the remote.
//   - Answer is always targeted at exactly one DeviceID.
//   - Ice is broadcast until a specific responder is known, then targeted.
//
// # Connection Parameters
//
// ConnectionParametersV4 is the structured content of the opaque blob for
// offers and answers. It is encoded with protowire so that it stays wire
// compatible with protobuf peers without generated code:
//
//	params := signaling.ConnectionParametersV4{PublicKey: pub, IceUfrag: "abcd"}
//	offer, err := signaling.OfferFromV4(signaling.MediaTypeAudio, params)
package signaling
