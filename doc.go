// Package callcore is a calling-session engine for 1:1 and group calls.
//
// The engine owns call state: it decides what to send to which device of a
// remote user, how to resolve glare when both sides call each other, and when
// a call is ringing, connected or over. Signaling transport, media and user
// interface stay with the host, which plugs in through call.Platform.
//
// # Getting Started
//
// Load a configuration, build a platform and create the manager:
//
//	cfg, err := config.Load("callcore.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mgr, err := callcore.NewManager(cfg, platform, prometheus.DefaultRegisterer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Close()
//
//	callID, err := mgr.PlaceCall("bob", signaling.MediaTypeVideo, 1, 2)
//
// Inbound signaling is fed to the manager as it arrives:
//
//	err = mgr.ReceiveAnswer(callID, received)
//
// and the manager's Run loop evaluates timeouts:
//
//	go mgr.Run(ctx)
//
// # Packages
//
//   - call: the manager, calls, connections and the platform contract
//   - signaling: message types and the V4 connection parameter codec
//   - groupcall: group call clients driven through a relay
//   - media: a pion/webrtc implementation of connection handles
//   - bridge: a websocket platform for hosts in another process
//   - config: TOML and environment configuration
//   - metrics: Prometheus collectors
//   - sim: an in-memory platform for tests and simulations
//
// Command callnode wires these packages into a standalone process.
package callcore
