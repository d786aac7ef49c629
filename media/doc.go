// Package media is a native connection engine backed by pion/webrtc.
//
// An Engine hands out call.ConnectionHandle values. All legs of one call
// share a single PeerConnection: the offer is created once and whichever
// device answers first completes it. The PeerConnection is closed when the
// last leg is closed.
//
// Offers and answers carry both the V4 parameter block (X25519 public key,
// ICE credentials extracted from the SDP, receivable video codecs and the
// bitrate cap) and the full SDP in the legacy field, which is what the
// remote engine applies.
//
// Engine events (gathered candidates, ICE state changes, remote tracks) are
// reported to an Events sink, normally the call.Manager:
//
//	engine, err := media.NewEngine(media.Config{ICEServers: []string{"stun:stun.example.org"}})
//	if err != nil {
//		return err
//	}
//	engine.Attach(manager)
package media
