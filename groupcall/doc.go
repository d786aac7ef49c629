// Package groupcall implements the client side of relay-mediated group calls.
//
// A Client moves through two coupled state machines. ConnectionState tracks
// the link to the relay (NotConnected, Connecting, Connected, Reconnecting)
// and JoinState tracks membership in the call (NotJoined, Joining, Joined).
// A client only reaches Joined after it has reached Connected.
//
// Joining is asynchronous. Join asks the Observer for a membership proof and
// the group member list and returns immediately. The proof later arrives via
// SetMembershipProof, which issues the relay join request through a
// RequestSender; the relay response arrives via HandleHTTPResponse keyed by the
// request id. Any of these late events may arrive after Leave, in which case
// they are discarded.
//
// The roster of remote devices is keyed by DemuxID and every update replaces
// a device's state wholesale:
//
//	client.UpdateRemoteDevice(groupcall.RemoteDeviceState{
//	    DemuxID:    32,
//	    UserID:     alice,
//	    AudioMuted: groupcall.Bool(true),
//	})
//
// Optional fields left nil are reported as unknown, never carried over from
// a previous update.
package groupcall
