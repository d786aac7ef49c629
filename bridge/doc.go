// Package bridge connects a call.Manager to a host application over a
// websocket.
//
// The Adapter implements call.Platform. Every platform call becomes one
// JSON frame sent to the host:
//
//	{"id": "<uuid>", "kind": "send_offer", "call_id": "1234", "payload": {...}}
//
// Frames received from the host (remote signaling, user commands, group
// call inputs) are dispatched into the manager. Commands that fail are
// answered with an "error" frame whose ref names the failing frame.
//
// Proxied HTTP requests of group call clients are executed by the adapter
// itself with net/http and completed back into the manager.
package bridge
