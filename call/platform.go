package call

import (
	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/signaling"
)

// ConnectionHandle is the native media connection bound to one device leg.
// Handles are created by Platform.CreateConnection and driven by the call
// state machine; the core never holds a lock while calling into a handle.
type ConnectionHandle interface {
	// CreateOffer produces the local offer for an outgoing leg.
	CreateOffer(mediaType signaling.MediaType) (signaling.Offer, error)

	// AcceptOffer applies a remote offer and produces the local answer.
	AcceptOffer(offer signaling.Offer) (signaling.Answer, error)

	// AcceptAnswer applies the remote answer to a leg that sent an offer.
	AcceptAnswer(answer signaling.Answer) error

	// AddRemoteIce applies remote candidates in order.
	AddRemoteIce(candidates []signaling.IceCandidate) error

	// Close releases the native resources of the leg.
	Close() error
}

// Platform is the host capability the core depends on. Every notification
// is fire-and-forget: errors are logged and dropped and never unwind a
// state transition. Group call requests and notifications arrive through the
// embedded groupcall.Observer.
type Platform interface {
	groupcall.Observer

	CreateConnection(call *Call, remoteDeviceID signaling.DeviceID, connectionType ConnectionType, version signaling.Version) (ConnectionHandle, error)

	OnStartCall(remote RemotePeer, callID signaling.CallID, direction Direction, mediaType signaling.MediaType) error
	OnEvent(remote RemotePeer, event ApplicationEvent) error
	OnCallConcluded(remote RemotePeer, callID signaling.CallID) error

	OnSendOffer(remote RemotePeer, callID signaling.CallID, msg signaling.SendOffer) error
	OnSendAnswer(remote RemotePeer, callID signaling.CallID, msg signaling.SendAnswer) error
	OnSendIce(remote RemotePeer, callID signaling.CallID, msg signaling.SendIce) error
	OnSendHangup(remote RemotePeer, callID signaling.CallID, msg signaling.SendHangup) error
	OnSendBusy(remote RemotePeer, callID signaling.CallID, msg signaling.SendBusy) error

	OnReceivedCallMessage(senderUUID []byte, senderDeviceID signaling.DeviceID, message signaling.CallMessage) error
	SendCallMessage(recipientUUID []byte, message signaling.CallMessage) error
	SendHTTPRequest(requestID uint32, req groupcall.HTTPRequest) error

	CreateIncomingMedia(call *Call, stream MediaStream) (IncomingMedia, error)
	ConnectIncomingMedia(remote RemotePeer, call *Call, media IncomingMedia) error
	DisconnectIncomingMedia(call *Call) error

	CompareRemotes(a, b RemotePeer) (bool, error)
}
