package bridge

import (
	"fmt"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/signaling"
	"github.com/sirupsen/logrus"
)

var _ call.Platform = (*Adapter)(nil)

// Remotes are host user ids carried as strings.
func remoteName(remote call.RemotePeer) string {
	if s, ok := remote.(string); ok {
		return s
	}
	return fmt.Sprint(remote)
}

// CreateConnection implements call.Platform.
func (a *Adapter) CreateConnection(c *call.Call, remoteDeviceID signaling.DeviceID, _ call.ConnectionType, _ signaling.Version) (call.ConnectionHandle, error) {
	return a.factory.NewHandle(c.ID(), remoteDeviceID, c.MediaType())
}

// OnStartCall implements call.Platform.
func (a *Adapter) OnStartCall(remote call.RemotePeer, callID signaling.CallID, direction call.Direction, mediaType signaling.MediaType) error {
	return a.emit(KindStartCall, callID, StartCallPayload{
		Remote:    remoteName(remote),
		Direction: direction.String(),
		Media:     mediaType.String(),
	})
}

// OnEvent implements call.Platform.
func (a *Adapter) OnEvent(remote call.RemotePeer, event call.ApplicationEvent) error {
	return a.emit(KindEvent, 0, EventPayload{Remote: remoteName(remote), Event: event.String()})
}

// OnCallConcluded implements call.Platform.
func (a *Adapter) OnCallConcluded(remote call.RemotePeer, callID signaling.CallID) error {
	return a.emit(KindCallConcluded, callID, RemotePayload{Remote: remoteName(remote)})
}

// OnSendOffer implements call.Platform.
func (a *Adapter) OnSendOffer(remote call.RemotePeer, callID signaling.CallID, msg signaling.SendOffer) error {
	return a.emit(KindSendOffer, callID, SendOfferPayload{
		Remote: remoteName(remote),
		Media:  msg.Offer.MediaType().String(),
		Opaque: msg.Offer.Opaque(),
		SDP:    msg.Offer.SDP(),
	})
}

// OnSendAnswer implements call.Platform.
func (a *Adapter) OnSendAnswer(remote call.RemotePeer, callID signaling.CallID, msg signaling.SendAnswer) error {
	return a.emit(KindSendAnswer, callID, SendAnswerPayload{
		Remote:           remoteName(remote),
		ReceiverDeviceID: msg.ReceiverDeviceID,
		Opaque:           msg.Answer.Opaque(),
		SDP:              msg.Answer.SDP(),
	})
}

// OnSendIce implements call.Platform.
func (a *Adapter) OnSendIce(remote call.RemotePeer, callID signaling.CallID, msg signaling.SendIce) error {
	return a.emit(KindSendIce, callID, SendIcePayload{
		Remote:           remoteName(remote),
		ReceiverDeviceID: msg.ReceiverDeviceID,
		Candidates:       candidatesToJSON(msg.Ice.Candidates),
	})
}

// OnSendHangup implements call.Platform.
func (a *Adapter) OnSendHangup(remote call.RemotePeer, callID signaling.CallID, msg signaling.SendHangup) error {
	return a.emit(KindSendHangup, callID, SendHangupPayload{
		Remote:   remoteName(remote),
		Type:     msg.Hangup.Type.String(),
		DeviceID: msg.Hangup.DeviceID,
	})
}

// OnSendBusy implements call.Platform.
func (a *Adapter) OnSendBusy(remote call.RemotePeer, callID signaling.CallID, _ signaling.SendBusy) error {
	return a.emit(KindSendBusy, callID, RemotePayload{Remote: remoteName(remote)})
}

// OnReceivedCallMessage implements call.Platform.
func (a *Adapter) OnReceivedCallMessage(senderUUID []byte, senderDeviceID signaling.DeviceID, message signaling.CallMessage) error {
	return a.emit(KindReceivedCallMessage, 0, CallMessagePayload{
		Peer:     senderUUID,
		DeviceID: senderDeviceID,
		Message:  message.Opaque(),
	})
}

// SendCallMessage implements call.Platform.
func (a *Adapter) SendCallMessage(recipientUUID []byte, message signaling.CallMessage) error {
	return a.emit(KindSendCallMessage, 0, CallMessagePayload{Peer: recipientUUID, Message: message.Opaque()})
}

// CreateIncomingMedia implements call.Platform. The stream itself is the
// bound media.
func (a *Adapter) CreateIncomingMedia(_ *call.Call, stream call.MediaStream) (call.IncomingMedia, error) {
	return stream, nil
}

// ConnectIncomingMedia implements call.Platform.
func (a *Adapter) ConnectIncomingMedia(remote call.RemotePeer, c *call.Call, media call.IncomingMedia) error {
	return a.emit(KindIncomingMedia, c.ID(), IncomingMediaPayload{Remote: remoteName(remote), Stream: streamName(media)})
}

// DisconnectIncomingMedia implements call.Platform.
func (a *Adapter) DisconnectIncomingMedia(c *call.Call) error {
	return a.emit(KindIncomingMediaStopped, c.ID(), nil)
}

func streamName(media call.IncomingMedia) string {
	if named, ok := media.(interface{ ID() string }); ok {
		return named.ID()
	}
	return fmt.Sprint(media)
}

// CompareRemotes implements call.Platform. Remotes are equal when they name
// the same host user.
func (a *Adapter) CompareRemotes(x, y call.RemotePeer) (bool, error) {
	return remoteName(x) == remoteName(y), nil
}

func (a *Adapter) emitGroup(kind string, clientID groupcall.ClientID, payload any) {
	f, err := newFrame(kind, payload)
	if err == nil {
		f.ClientID = clientID
		err = a.enqueue(f)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "emitGroup",
			"kind":      kind,
			"client_id": clientID,
			"error":     err.Error(),
		}).Warn("Group notification not delivered")
	}
}

// RequestMembershipProof implements groupcall.Observer.
func (a *Adapter) RequestMembershipProof(clientID groupcall.ClientID) {
	a.emitGroup(KindRequestProof, clientID, nil)
}

// RequestGroupMembers implements groupcall.Observer.
func (a *Adapter) RequestGroupMembers(clientID groupcall.ClientID) {
	a.emitGroup(KindRequestMembers, clientID, nil)
}

// HandleConnectionStateChanged implements groupcall.Observer.
func (a *Adapter) HandleConnectionStateChanged(clientID groupcall.ClientID, state groupcall.ConnectionState) {
	a.emitGroup(KindGroupConnection, clientID, GroupStatePayload{State: state.String()})
}

// HandleJoinStateChanged implements groupcall.Observer.
func (a *Adapter) HandleJoinStateChanged(clientID groupcall.ClientID, state groupcall.JoinState, demuxID groupcall.DemuxID) {
	a.emitGroup(KindGroupJoin, clientID, GroupStatePayload{State: state.String(), DemuxID: demuxID})
}

// HandleRemoteDevicesChanged implements groupcall.Observer.
func (a *Adapter) HandleRemoteDevicesChanged(clientID groupcall.ClientID, devices []groupcall.RemoteDeviceState) {
	a.emitGroup(KindGroupRoster, clientID, GroupDevicesPayload{Devices: devicesToJSON(devices)})
}

// HandleIncomingVideoTrack implements groupcall.Observer.
func (a *Adapter) HandleIncomingVideoTrack(clientID groupcall.ClientID, demuxID groupcall.DemuxID, track groupcall.VideoTrack) {
	handle, _ := track.(string)
	a.emitGroup(KindGroupVideoTrack, clientID, GroupVideoTrackPayload{DemuxID: demuxID, Track: handle})
}

// HandleJoinedMembersChanged implements groupcall.Observer.
func (a *Adapter) HandleJoinedMembersChanged(clientID groupcall.ClientID, ms []groupcall.UserID) {
	a.emitGroup(KindGroupJoinedMembers, clientID, GroupMembersPayload{Members: membersToJSON(ms)})
}

// HandleEnded implements groupcall.Observer.
func (a *Adapter) HandleEnded(clientID groupcall.ClientID, reason groupcall.EndReason) {
	a.emitGroup(KindGroupEnded, clientID, GroupEndedPayload{Reason: reason.String()})
}
