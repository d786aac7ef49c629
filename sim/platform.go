package sim

import (
	"errors"
	"reflect"
	"sync"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/signaling"
)

// ErrInjected is returned by injected failures that carry no explicit error.
var ErrInjected = errors.New("injected failure")

// Message kinds accepted by FailSend.
const (
	KindOffer  = "offer"
	KindAnswer = "answer"
	KindIce    = "ice"
	KindHangup = "hangup"
	KindBusy   = "busy"
)

// Sent is one recorded outbound signaling message.
type Sent[T any] struct {
	Remote call.RemotePeer
	CallID signaling.CallID
	Msg    T
}

// Started is one recorded OnStartCall.
type Started struct {
	Remote    call.RemotePeer
	CallID    signaling.CallID
	Direction call.Direction
	MediaType signaling.MediaType
}

// Event is one recorded OnEvent.
type Event struct {
	Remote call.RemotePeer
	Event  call.ApplicationEvent
}

// HTTPRequest is one recorded proxied request.
type HTTPRequest struct {
	RequestID uint32
	Request   groupcall.HTTPRequest
}

// GroupState is one recorded group state notification.
type GroupState struct {
	ClientID   groupcall.ClientID
	Connection *groupcall.ConnectionState
	Join       *groupcall.JoinState
	DemuxID    groupcall.DemuxID
}

// Platform records everything the core asks of its host.
type Platform struct {
	mu sync.Mutex

	handles     []*Handle
	started     []Started
	events      []Event
	concluded   []signaling.CallID
	offers      []Sent[signaling.SendOffer]
	answers     []Sent[signaling.SendAnswer]
	ices        []Sent[signaling.SendIce]
	hangups     []Sent[signaling.SendHangup]
	busys       []Sent[signaling.SendBusy]
	callMsgs    [][]byte
	receivedMsg [][]byte
	http        []HTTPRequest
	incoming    []call.MediaStream
	connected   []call.IncomingMedia
	disconnects int
	comparisons int

	proofRequests  []groupcall.ClientID
	memberRequests []groupcall.ClientID
	groupStates    []GroupState
	rosters        map[groupcall.ClientID][]groupcall.RemoteDeviceState
	tracks         []groupcall.DemuxID
	joinedMembers  map[groupcall.ClientID][]groupcall.UserID
	groupEnded     map[groupcall.ClientID][]groupcall.EndReason

	failConnection map[signaling.DeviceID]bool
	failOffer      map[signaling.DeviceID]error
	failAccept     map[signaling.DeviceID]error
	failSend       map[string]error
	failHTTP       error
}

// NewPlatform creates an empty recorder.
func NewPlatform() *Platform {
	return &Platform{
		rosters:        make(map[groupcall.ClientID][]groupcall.RemoteDeviceState),
		joinedMembers:  make(map[groupcall.ClientID][]groupcall.UserID),
		groupEnded:     make(map[groupcall.ClientID][]groupcall.EndReason),
		failConnection: make(map[signaling.DeviceID]bool),
		failOffer:      make(map[signaling.DeviceID]error),
		failAccept:     make(map[signaling.DeviceID]error),
		failSend:       make(map[string]error),
	}
}

// FailConnection makes CreateConnection fail for a device.
func (p *Platform) FailConnection(deviceID signaling.DeviceID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failConnection[deviceID] = true
}

// FailOffer makes CreateOffer fail on handles created for a device.
func (p *Platform) FailOffer(deviceID signaling.DeviceID, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOffer[deviceID] = err
}

// FailAccept makes AcceptOffer and AcceptAnswer fail on handles created for a device.
func (p *Platform) FailAccept(deviceID signaling.DeviceID, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failAccept[deviceID] = err
}

// FailSend makes sends of one message kind fail. A nil err clears it.
func (p *Platform) FailSend(kind string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failSend, kind)
		return
	}
	p.failSend[kind] = err
}

// FailHTTP makes SendHTTPRequest fail. A nil err clears it.
func (p *Platform) FailHTTP(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failHTTP = err
}

// CreateConnection implements call.Platform.
func (p *Platform) CreateConnection(c *call.Call, deviceID signaling.DeviceID, connType call.ConnectionType, _ signaling.Version) (call.ConnectionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failConnection[deviceID] {
		return nil, ErrInjected
	}
	h := &Handle{
		CallID:         c.ID(),
		DeviceID:       deviceID,
		ConnectionType: connType,
		failOffer:      p.failOffer[deviceID],
		failAccept:     p.failAccept[deviceID],
	}
	p.handles = append(p.handles, h)
	return h, nil
}

// OnStartCall implements call.Platform.
func (p *Platform) OnStartCall(remote call.RemotePeer, callID signaling.CallID, direction call.Direction, mediaType signaling.MediaType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, Started{Remote: remote, CallID: callID, Direction: direction, MediaType: mediaType})
	return nil
}

// OnEvent implements call.Platform.
func (p *Platform) OnEvent(remote call.RemotePeer, event call.ApplicationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{Remote: remote, Event: event})
	return nil
}

// OnCallConcluded implements call.Platform.
func (p *Platform) OnCallConcluded(_ call.RemotePeer, callID signaling.CallID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.concluded = append(p.concluded, callID)
	return nil
}

func (p *Platform) sendErr(kind string) error {
	return p.failSend[kind]
}

// OnSendOffer implements call.Platform.
func (p *Platform) OnSendOffer(remote call.RemotePeer, callID signaling.CallID, msg signaling.SendOffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sendErr(KindOffer); err != nil {
		return err
	}
	p.offers = append(p.offers, Sent[signaling.SendOffer]{Remote: remote, CallID: callID, Msg: msg})
	return nil
}

// OnSendAnswer implements call.Platform.
func (p *Platform) OnSendAnswer(remote call.RemotePeer, callID signaling.CallID, msg signaling.SendAnswer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sendErr(KindAnswer); err != nil {
		return err
	}
	p.answers = append(p.answers, Sent[signaling.SendAnswer]{Remote: remote, CallID: callID, Msg: msg})
	return nil
}

// OnSendIce implements call.Platform.
func (p *Platform) OnSendIce(remote call.RemotePeer, callID signaling.CallID, msg signaling.SendIce) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sendErr(KindIce); err != nil {
		return err
	}
	p.ices = append(p.ices, Sent[signaling.SendIce]{Remote: remote, CallID: callID, Msg: msg})
	return nil
}

// OnSendHangup implements call.Platform.
func (p *Platform) OnSendHangup(remote call.RemotePeer, callID signaling.CallID, msg signaling.SendHangup) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sendErr(KindHangup); err != nil {
		return err
	}
	p.hangups = append(p.hangups, Sent[signaling.SendHangup]{Remote: remote, CallID: callID, Msg: msg})
	return nil
}

// OnSendBusy implements call.Platform.
func (p *Platform) OnSendBusy(remote call.RemotePeer, callID signaling.CallID, msg signaling.SendBusy) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sendErr(KindBusy); err != nil {
		return err
	}
	p.busys = append(p.busys, Sent[signaling.SendBusy]{Remote: remote, CallID: callID, Msg: msg})
	return nil
}

// OnReceivedCallMessage implements call.Platform.
func (p *Platform) OnReceivedCallMessage(_ []byte, _ signaling.DeviceID, message signaling.CallMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receivedMsg = append(p.receivedMsg, message.Opaque())
	return nil
}

// SendCallMessage implements call.Platform.
func (p *Platform) SendCallMessage(_ []byte, message signaling.CallMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callMsgs = append(p.callMsgs, message.Opaque())
	return nil
}

// SendHTTPRequest implements call.Platform.
func (p *Platform) SendHTTPRequest(requestID uint32, req groupcall.HTTPRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failHTTP != nil {
		return p.failHTTP
	}
	p.http = append(p.http, HTTPRequest{RequestID: requestID, Request: req})
	return nil
}

// CreateIncomingMedia implements call.Platform.
func (p *Platform) CreateIncomingMedia(_ *call.Call, stream call.MediaStream) (call.IncomingMedia, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.incoming = append(p.incoming, stream)
	return stream, nil
}

// ConnectIncomingMedia implements call.Platform.
func (p *Platform) ConnectIncomingMedia(_ call.RemotePeer, _ *call.Call, media call.IncomingMedia) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = append(p.connected, media)
	return nil
}

// DisconnectIncomingMedia implements call.Platform.
func (p *Platform) DisconnectIncomingMedia(_ *call.Call) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects++
	return nil
}

// CompareRemotes implements call.Platform with deep equality.
func (p *Platform) CompareRemotes(a, b call.RemotePeer) (bool, error) {
	p.mu.Lock()
	p.comparisons++
	p.mu.Unlock()
	return reflect.DeepEqual(a, b), nil
}

// RequestMembershipProof implements groupcall.Observer.
func (p *Platform) RequestMembershipProof(clientID groupcall.ClientID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.proofRequests = append(p.proofRequests, clientID)
}

// RequestGroupMembers implements groupcall.Observer.
func (p *Platform) RequestGroupMembers(clientID groupcall.ClientID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memberRequests = append(p.memberRequests, clientID)
}

// HandleConnectionStateChanged implements groupcall.Observer.
func (p *Platform) HandleConnectionStateChanged(clientID groupcall.ClientID, state groupcall.ConnectionState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groupStates = append(p.groupStates, GroupState{ClientID: clientID, Connection: &state})
}

// HandleJoinStateChanged implements groupcall.Observer.
func (p *Platform) HandleJoinStateChanged(clientID groupcall.ClientID, state groupcall.JoinState, demuxID groupcall.DemuxID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groupStates = append(p.groupStates, GroupState{ClientID: clientID, Join: &state, DemuxID: demuxID})
}

// HandleRemoteDevicesChanged implements groupcall.Observer.
func (p *Platform) HandleRemoteDevicesChanged(clientID groupcall.ClientID, devices []groupcall.RemoteDeviceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rosters[clientID] = devices
}

// HandleIncomingVideoTrack implements groupcall.Observer.
func (p *Platform) HandleIncomingVideoTrack(_ groupcall.ClientID, demuxID groupcall.DemuxID, _ groupcall.VideoTrack) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, demuxID)
}

// HandleJoinedMembersChanged implements groupcall.Observer.
func (p *Platform) HandleJoinedMembersChanged(clientID groupcall.ClientID, members []groupcall.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joinedMembers[clientID] = members
}

// HandleEnded implements groupcall.Observer.
func (p *Platform) HandleEnded(clientID groupcall.ClientID, reason groupcall.EndReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groupEnded[clientID] = append(p.groupEnded[clientID], reason)
}
