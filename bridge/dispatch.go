package bridge

import (
	"fmt"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/signaling"
)

type handlerFunc func(a *Adapter, mgr *call.Manager, f Frame) error

var handlers = map[string]handlerFunc{
	KindOffer:              handleOffer,
	KindAnswer:             handleAnswer,
	KindIce:                handleIce,
	KindHangup:             handleHangup,
	KindBusy:               handleBusy,
	KindCallMessage:        handleCallMessage,
	KindMessageSent:        handleMessageSent,
	KindMessageSendFailure: handleMessageSendFailure,
	KindPlaceCall:          handlePlaceCall,
	KindAccept:             func(_ *Adapter, mgr *call.Manager, f Frame) error { return mgr.AcceptCall(f.CallID) },
	KindDecline:            func(_ *Adapter, mgr *call.Manager, f Frame) error { return mgr.DeclineCall(f.CallID) },
	KindHangupLocal:        func(_ *Adapter, mgr *call.Manager, f Frame) error { return mgr.HangupCall(f.CallID) },
	KindGroupCreate:        handleGroupCreate,
	KindGroupJoinCall:      func(_ *Adapter, mgr *call.Manager, f Frame) error { return mgr.JoinGroupCall(f.ClientID) },
	KindGroupLeave:         func(_ *Adapter, mgr *call.Manager, f Frame) error { return mgr.LeaveGroupCall(f.ClientID) },
	KindGroupDelete:        func(_ *Adapter, mgr *call.Manager, f Frame) error { return mgr.DeleteGroupCallClient(f.ClientID) },
	KindGroupProof:         handleGroupProof,
	KindGroupMembers:       handleGroupMembers,
	KindGroupDevices:       handleGroupDevices,
	KindGroupRelayEvent:    handleGroupRelayEvent,
	KindGroupDeviceUpdate:  handleGroupDeviceUpdate,
	KindGroupDeviceRemove:  handleGroupDeviceRemove,
	KindGroupRemoteVideo:   handleGroupRemoteVideo,
	KindGroupMembersJoined: handleGroupMembersJoined,
}

func (a *Adapter) dispatch(f Frame) error {
	h, ok := handlers[f.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, f.Kind)
	}
	mgr, err := a.manager()
	if err != nil {
		return err
	}
	return h(a, mgr, f)
}

func handleOffer(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p OfferPayload
	if err := f.decode(&p); err != nil {
		return err
	}
	mediaType, err := parseMediaType(p.Media)
	if err != nil {
		return err
	}
	offer, err := signaling.NewOffer(mediaType, p.Opaque, p.SDP)
	if err != nil {
		return err
	}
	return mgr.ReceiveOffer(p.Sender, f.CallID, signaling.ReceivedOffer{
		Offer:                   offer,
		Age:                     age(p.AgeMs),
		SenderDeviceID:          p.DeviceID,
		SenderFeatureLevel:      featureLevel(p.MultiRing),
		ReceiverDeviceID:        p.ReceiverDeviceID,
		ReceiverDeviceIsPrimary: p.ReceiverPrimary,
	})
}

func handleAnswer(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p AnswerPayload
	if err := f.decode(&p); err != nil {
		return err
	}
	answer, err := signaling.NewAnswer(p.Opaque, p.SDP)
	if err != nil {
		return err
	}
	return mgr.ReceiveAnswer(f.CallID, signaling.ReceivedAnswer{
		Answer:             answer,
		SenderDeviceID:     p.DeviceID,
		SenderFeatureLevel: featureLevel(p.MultiRing),
	})
}

func handleIce(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p IcePayload
	if err := f.decode(&p); err != nil {
		return err
	}
	cands, err := candidatesFromJSON(p.Candidates)
	if err != nil {
		return err
	}
	ice, err := signaling.NewIce(cands)
	if err != nil {
		return err
	}
	return mgr.ReceiveIce(f.CallID, signaling.ReceivedIce{Ice: ice, SenderDeviceID: p.DeviceID})
}

func handleHangup(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p HangupPayload
	if err := f.decode(&p); err != nil {
		return err
	}
	hangupType, err := parseHangupType(p.Type)
	if err != nil {
		return err
	}
	return mgr.ReceiveHangup(f.CallID, signaling.ReceivedHangup{
		Hangup:         signaling.NewHangup(hangupType, p.HangupDeviceID),
		SenderDeviceID: p.DeviceID,
	})
}

func handleBusy(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p DevicePayload
	if err := f.decode(&p); err != nil {
		return err
	}
	return mgr.ReceiveBusy(f.CallID, signaling.ReceivedBusy{SenderDeviceID: p.DeviceID})
}

func handleCallMessage(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p CallMessagePayload
	if err := f.decode(&p); err != nil {
		return err
	}
	msg, err := signaling.NewCallMessage(p.Message)
	if err != nil {
		return err
	}
	return mgr.ReceivedCallMessage(signaling.ReceivedCallMessage{
		SenderUUID:     p.Peer,
		SenderDeviceID: p.DeviceID,
		LocalDeviceID:  mgr.Config().LocalDeviceID,
		Message:        msg,
		Age:            age(p.AgeMs),
	})
}

func handleMessageSent(_ *Adapter, mgr *call.Manager, f Frame) error {
	mgr.MessageSent(f.CallID)
	return nil
}

func handleMessageSendFailure(_ *Adapter, mgr *call.Manager, f Frame) error {
	return mgr.MessageSendFailure(f.CallID)
}

func handlePlaceCall(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p PlaceCallPayload
	if err := f.decode(&p); err != nil {
		return err
	}
	mediaType, err := parseMediaType(p.Media)
	if err != nil {
		return err
	}
	_, err = mgr.PlaceCall(p.Remote, mediaType, p.DeviceIDs...)
	return err
}

func handleGroupCreate(a *Adapter, mgr *call.Manager, f Frame) error {
	var p GroupCreatePayload
	if err := f.decode(&p); err != nil {
		return err
	}
	relayURL := p.RelayURL
	if relayURL == "" {
		relayURL = a.defaultRelayURL()
	}
	id, err := mgr.CreateGroupCallClient(groupcall.GroupID(p.GroupID), relayURL)
	if err != nil {
		return err
	}
	reply, err := newFrame(KindGroupCreated, nil)
	if err != nil {
		return err
	}
	reply.Ref = f.ID
	reply.ClientID = id
	return a.enqueue(reply)
}

func handleGroupProof(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p GroupProofPayload
	if err := f.decode(&p); err != nil {
		return err
	}
	return mgr.SetMembershipProof(f.ClientID, p.Proof)
}

func handleGroupMembers(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p GroupMembersPayload
	if err := f.decode(&p); err != nil {
		return err
	}
	return mgr.SetGroupMembers(f.ClientID, members(p.Members))
}

func handleGroupDevices(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p GroupDevicesPayload
	if err := f.decode(&p); err != nil {
		return err
	}
	return mgr.SetGroupRemoteDevices(f.ClientID, devicesFromJSON(p.Devices))
}

func handleGroupDeviceUpdate(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p RemoteDevice
	if err := f.decode(&p); err != nil {
		return err
	}
	return mgr.UpdateGroupRemoteDevice(f.ClientID, p.state())
}

func handleGroupDeviceRemove(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p RemoteDevice
	if err := f.decode(&p); err != nil {
		return err
	}
	return mgr.RemoveGroupRemoteDevice(f.ClientID, p.DemuxID)
}

func handleGroupRemoteVideo(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p GroupVideoTrackPayload
	if err := f.decode(&p); err != nil {
		return err
	}
	return mgr.GroupIncomingVideoTrack(f.ClientID, p.DemuxID, p.Track)
}

func handleGroupMembersJoined(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p GroupMembersPayload
	if err := f.decode(&p); err != nil {
		return err
	}
	return mgr.SetGroupJoinedMembers(f.ClientID, members(p.Members))
}

func handleGroupRelayEvent(_ *Adapter, mgr *call.Manager, f Frame) error {
	var p GroupRelayEventPayload
	if err := f.decode(&p); err != nil {
		return err
	}
	client, err := mgr.GroupClient(f.ClientID)
	if err != nil {
		return err
	}
	switch p.Event {
	case "disconnected":
		client.OnRelayDisconnected()
	case "reconnected":
		client.OnRelayReconnected()
	case "removed":
		return client.OnRemovedFromCall()
	case "error":
		return client.OnRelayError()
	default:
		return fmt.Errorf("%w: relay event %q", ErrBadPayload, p.Event)
	}
	return nil
}
