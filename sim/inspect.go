package sim

import (
	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/signaling"
)

// Handles returns every handle created, in order.
func (p *Platform) Handles() []*Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Handle(nil), p.handles...)
}

// HandleFor returns the most recent handle for a call and device.
func (p *Platform) HandleFor(callID signaling.CallID, deviceID signaling.DeviceID) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.handles) - 1; i >= 0; i-- {
		if h := p.handles[i]; h.CallID == callID && h.DeviceID == deviceID {
			return h
		}
	}
	return nil
}

// Started returns the recorded call starts.
func (p *Platform) Started() []Started {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Started(nil), p.started...)
}

// Events returns the recorded application events.
func (p *Platform) Events() []call.ApplicationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]call.ApplicationEvent, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event
	}
	return out
}

// Concluded returns the call ids reported as concluded.
func (p *Platform) Concluded() []signaling.CallID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]signaling.CallID(nil), p.concluded...)
}

// Offers returns the recorded offers.
func (p *Platform) Offers() []Sent[signaling.SendOffer] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent[signaling.SendOffer](nil), p.offers...)
}

// Answers returns the recorded answers.
func (p *Platform) Answers() []Sent[signaling.SendAnswer] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent[signaling.SendAnswer](nil), p.answers...)
}

// Ices returns the recorded candidate batches.
func (p *Platform) Ices() []Sent[signaling.SendIce] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent[signaling.SendIce](nil), p.ices...)
}

// Hangups returns the recorded hangups.
func (p *Platform) Hangups() []Sent[signaling.SendHangup] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent[signaling.SendHangup](nil), p.hangups...)
}

// Busys returns the recorded busy messages.
func (p *Platform) Busys() []Sent[signaling.SendBusy] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent[signaling.SendBusy](nil), p.busys...)
}

// SignalingCount returns the number of outbound signaling messages.
func (p *Platform) SignalingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.offers) + len(p.answers) + len(p.ices) + len(p.hangups) + len(p.busys)
}

// CallMessages returns the relayed outbound call messages.
func (p *Platform) CallMessages() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.callMsgs...)
}

// ReceivedCallMessages returns the call messages handed to the host.
func (p *Platform) ReceivedCallMessages() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.receivedMsg...)
}

// HTTPRequests returns the proxied HTTP requests.
func (p *Platform) HTTPRequests() []HTTPRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]HTTPRequest(nil), p.http...)
}

// IncomingMedia returns the streams bound with CreateIncomingMedia and how
// many were connected and disconnected.
func (p *Platform) IncomingMedia() (created, connected, disconnected int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.incoming), len(p.connected), p.disconnects
}

// ProofRequests returns the clients that asked for a membership proof.
func (p *Platform) ProofRequests() []groupcall.ClientID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]groupcall.ClientID(nil), p.proofRequests...)
}

// MemberRequests returns the clients that asked for the group member list.
func (p *Platform) MemberRequests() []groupcall.ClientID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]groupcall.ClientID(nil), p.memberRequests...)
}

// GroupStates returns the group state notifications in order.
func (p *Platform) GroupStates() []GroupState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]GroupState(nil), p.groupStates...)
}

// Roster returns the last roster reported for a client.
func (p *Platform) Roster(clientID groupcall.ClientID) []groupcall.RemoteDeviceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rosters[clientID]
}

// VideoTracks returns the demux ids of routed video tracks.
func (p *Platform) VideoTracks() []groupcall.DemuxID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]groupcall.DemuxID(nil), p.tracks...)
}

// JoinedMembers returns the last joined member set reported for a client.
func (p *Platform) JoinedMembers(clientID groupcall.ClientID) []groupcall.UserID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.joinedMembers[clientID]
}

// GroupEnded returns the end reasons reported for a client.
func (p *Platform) GroupEnded(clientID groupcall.ClientID) []groupcall.EndReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]groupcall.EndReason(nil), p.groupEnded[clientID]...)
}

// Comparisons returns how many times CompareRemotes was called.
func (p *Platform) Comparisons() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.comparisons
}

// Reset clears every recording but keeps injected failures.
func (p *Platform) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles = nil
	p.started = nil
	p.events = nil
	p.concluded = nil
	p.offers = nil
	p.answers = nil
	p.ices = nil
	p.hangups = nil
	p.busys = nil
	p.callMsgs = nil
	p.receivedMsg = nil
	p.http = nil
	p.incoming = nil
	p.connected = nil
	p.disconnects = 0
	p.comparisons = 0
	p.proofRequests = nil
	p.memberRequests = nil
	p.groupStates = nil
	p.rosters = make(map[groupcall.ClientID][]groupcall.RemoteDeviceState)
	p.tracks = nil
	p.joinedMembers = make(map[groupcall.ClientID][]groupcall.UserID)
	p.groupEnded = make(map[groupcall.ClientID][]groupcall.EndReason)
}

var _ call.Platform = (*Platform)(nil)
