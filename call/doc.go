// Package call implements the 1:1 calling session state machine.
//
// A Manager owns the single active call slot. Each Call aggregates one
// Connection per remote device: an outgoing call rings every known device
// of the callee with one broadcast offer, and the first device to answer
// becomes the active Connection while its siblings are torn down.
//
// # Call Lifecycle
//
//	Idle -> Ringing -> Negotiating -> Connected -> Ended(reason)
//
// Ended is terminal. Messages that arrive for an ended call id are rejected
// with ErrStaleCallID and never reopen the call.
//
// # Connection Lifecycle
//
//	Idle -> OfferSent | OfferReceived -> IceExchanging -> Connected -> Ended
//
// A Connection only reaches Connected when signaling is complete and the
// native engine reports a usable media path through
// Manager.OnConnectionMediaConnected.
//
// # Glare
//
// When both parties call each other at once, each side receives an offer
// from the same remote while its own outgoing call is unanswered. The call
// with the lower CallID survives on both sides; the other is ended with
// EndReasonGlareLost.
//
// # Concurrency
//
// User commands, inbound signaling and native callbacks may arrive on any
// goroutine. Every Call serializes its transitions with its own lock, and
// the Manager guards the active slot with a second, coarser lock. Neither
// lock is held while calling into the Platform, so a Platform may call back
// into the Manager synchronously.
//
// Example:
//
//	mgr, err := call.NewManager(platform, call.DefaultConfig(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go mgr.Run(ctx)
//
//	callID, err := mgr.PlaceCall(peer, signaling.MediaTypeVideo, 1, 2)
package call
