package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/signaling"
)

// Frame is one websocket message in either direction.
type Frame struct {
	ID       string             `json:"id"`
	Kind     string             `json:"kind"`
	Ref      string             `json:"ref,omitempty"`
	ClientID groupcall.ClientID `json:"client_id,omitempty"`
	CallID   signaling.CallID   `json:"call_id,omitempty,string"`
	Payload  json.RawMessage    `json:"payload,omitempty"`
}

func newFrame(kind string, payload any) (Frame, error) {
	f := Frame{ID: uuid.NewString(), Kind: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Frame{}, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		f.Payload = raw
	}
	return f, nil
}

func (f Frame) decode(v any) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("%w: %s frame has no payload", ErrBadPayload, f.Kind)
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, f.Kind, err)
	}
	return nil
}

// Outbound kinds.
const (
	KindStartCall            = "start_call"
	KindEvent                = "event"
	KindCallConcluded        = "call_concluded"
	KindSendOffer            = "send_offer"
	KindSendAnswer           = "send_answer"
	KindSendIce              = "send_ice"
	KindSendHangup           = "send_hangup"
	KindSendBusy             = "send_busy"
	KindSendCallMessage      = "send_call_message"
	KindReceivedCallMessage  = "received_call_message"
	KindIncomingMedia        = "incoming_media"
	KindIncomingMediaStopped = "incoming_media_stopped"
	KindRequestProof         = "request_proof"
	KindRequestMembers       = "request_members"
	KindGroupCreated         = "group_created"
	KindGroupConnection      = "group_connection_state"
	KindGroupJoin            = "group_join_state"
	KindGroupRoster          = "group_remote_devices"
	KindGroupVideoTrack      = "group_video_track"
	KindGroupJoinedMembers   = "group_joined_members"
	KindGroupEnded           = "group_ended"
	KindError                = "error"
)

// Inbound kinds.
const (
	KindOffer              = "offer"
	KindAnswer             = "answer"
	KindIce                = "ice"
	KindHangup             = "hangup"
	KindBusy               = "busy"
	KindCallMessage        = "call_message"
	KindMessageSent        = "message_sent"
	KindMessageSendFailure = "message_send_failure"
	KindPlaceCall          = "place_call"
	KindAccept             = "accept"
	KindDecline            = "decline"
	KindHangupLocal        = "hangup_local"
	KindGroupCreate        = "group_create"
	KindGroupJoinCall      = "group_join"
	KindGroupLeave         = "group_leave"
	KindGroupDelete        = "group_delete"
	KindGroupProof         = "group_proof"
	KindGroupMembers       = "group_members"
	KindGroupDevices       = "group_devices"
	KindGroupRelayEvent    = "group_relay_event"
	KindGroupDeviceUpdate  = "group_device_update"
	KindGroupDeviceRemove  = "group_device_remove"
	KindGroupRemoteVideo   = "group_remote_video"
	KindGroupMembersJoined = "group_members_joined"
)

// Candidate is the JSON form of one ICE candidate.
type Candidate struct {
	Opaque []byte `json:"opaque,omitempty"`
	SDP    string `json:"sdp,omitempty"`
}

func candidatesToJSON(cands []signaling.IceCandidate) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, Candidate{Opaque: c.Opaque(), SDP: c.SDP()})
	}
	return out
}

func candidatesFromJSON(cands []Candidate) ([]signaling.IceCandidate, error) {
	out := make([]signaling.IceCandidate, 0, len(cands))
	for _, c := range cands {
		ic, err := signaling.NewIceCandidate(c.Opaque, c.SDP)
		if err != nil {
			return nil, err
		}
		out = append(out, ic)
	}
	return out, nil
}

// StartCallPayload announces a new call.
type StartCallPayload struct {
	Remote    string `json:"remote"`
	Direction string `json:"direction"`
	Media     string `json:"media"`
}

// EventPayload carries an application event.
type EventPayload struct {
	Remote string `json:"remote"`
	Event  string `json:"event"`
}

// RemotePayload names the remote of a call.
type RemotePayload struct {
	Remote string `json:"remote"`
}

// SendOfferPayload asks the host to broadcast an offer.
type SendOfferPayload struct {
	Remote string `json:"remote"`
	Media  string `json:"media"`
	Opaque []byte `json:"opaque,omitempty"`
	SDP    string `json:"sdp,omitempty"`
}

// SendAnswerPayload asks the host to send an answer to one device.
type SendAnswerPayload struct {
	Remote           string             `json:"remote"`
	ReceiverDeviceID signaling.DeviceID `json:"receiver_device_id"`
	Opaque           []byte             `json:"opaque,omitempty"`
	SDP              string             `json:"sdp,omitempty"`
}

// SendIcePayload asks the host to send candidates. A missing receiver means
// broadcast.
type SendIcePayload struct {
	Remote           string              `json:"remote"`
	ReceiverDeviceID *signaling.DeviceID `json:"receiver_device_id,omitempty"`
	Candidates       []Candidate         `json:"candidates"`
}

// SendHangupPayload asks the host to broadcast a hangup.
type SendHangupPayload struct {
	Remote   string             `json:"remote"`
	Type     string             `json:"type"`
	DeviceID signaling.DeviceID `json:"device_id,omitempty"`
}

// CallMessagePayload carries an opaque application call message.
type CallMessagePayload struct {
	Peer     []byte             `json:"peer"`
	DeviceID signaling.DeviceID `json:"device_id,omitempty"`
	Message  []byte             `json:"message"`
	AgeMs    int64              `json:"age_ms,omitempty"`
}

// IncomingMediaPayload names a bound remote stream.
type IncomingMediaPayload struct {
	Remote string `json:"remote,omitempty"`
	Stream string `json:"stream,omitempty"`
}

// OfferPayload is a received offer.
type OfferPayload struct {
	Sender           string             `json:"sender"`
	DeviceID         signaling.DeviceID `json:"device_id"`
	Media            string             `json:"media"`
	Opaque           []byte             `json:"opaque,omitempty"`
	SDP              string             `json:"sdp,omitempty"`
	AgeMs            int64              `json:"age_ms"`
	MultiRing        bool               `json:"multi_ring"`
	ReceiverDeviceID signaling.DeviceID `json:"receiver_device_id"`
	ReceiverPrimary  bool               `json:"receiver_primary"`
}

// AnswerPayload is a received answer.
type AnswerPayload struct {
	DeviceID  signaling.DeviceID `json:"device_id"`
	Opaque    []byte             `json:"opaque,omitempty"`
	SDP       string             `json:"sdp,omitempty"`
	MultiRing bool               `json:"multi_ring"`
}

// IcePayload is a received candidate batch.
type IcePayload struct {
	DeviceID   signaling.DeviceID `json:"device_id"`
	Candidates []Candidate        `json:"candidates"`
}

// HangupPayload is a received hangup.
type HangupPayload struct {
	DeviceID       signaling.DeviceID `json:"device_id"`
	Type           string             `json:"type"`
	HangupDeviceID signaling.DeviceID `json:"hangup_device_id,omitempty"`
}

// DevicePayload names the sending device of a busy.
type DevicePayload struct {
	DeviceID signaling.DeviceID `json:"device_id"`
}

// PlaceCallPayload starts an outgoing call.
type PlaceCallPayload struct {
	Remote    string               `json:"remote"`
	Media     string               `json:"media"`
	DeviceIDs []signaling.DeviceID `json:"device_ids,omitempty"`
}

// GroupCreatePayload registers a group call client.
type GroupCreatePayload struct {
	GroupID  []byte `json:"group_id"`
	RelayURL string `json:"relay_url,omitempty"`
}

// GroupProofPayload delivers a membership proof.
type GroupProofPayload struct {
	Proof []byte `json:"proof"`
}

// GroupMembersPayload carries a member list.
type GroupMembersPayload struct {
	Members [][]byte `json:"members"`
}

// GroupStatePayload reports a group connection or join state.
type GroupStatePayload struct {
	State   string            `json:"state"`
	DemuxID groupcall.DemuxID `json:"demux_id,omitempty"`
}

// RemoteDevice is the JSON form of one roster entry.
type RemoteDevice struct {
	DemuxID          groupcall.DemuxID `json:"demux_id"`
	UserID           []byte            `json:"user_id,omitempty"`
	AudioMuted       *bool             `json:"audio_muted,omitempty"`
	VideoMuted       *bool             `json:"video_muted,omitempty"`
	SpeakerRank      *uint16           `json:"speaker_rank,omitempty"`
	VideoAspectRatio *float32          `json:"video_aspect_ratio,omitempty"`
	AudioLevel       *uint16           `json:"audio_level,omitempty"`
}

// GroupDevicesPayload carries a full roster.
type GroupDevicesPayload struct {
	Devices []RemoteDevice `json:"devices"`
}

// GroupVideoTrackPayload names the participant of a video track. Track is
// the host's handle for the track.
type GroupVideoTrackPayload struct {
	DemuxID groupcall.DemuxID `json:"demux_id"`
	Track   string            `json:"track,omitempty"`
}

// GroupEndedPayload reports why a group session ended.
type GroupEndedPayload struct {
	Reason string `json:"reason"`
}

// GroupRelayEventPayload reports a relay link event: "disconnected",
// "reconnected", "removed" or "error".
type GroupRelayEventPayload struct {
	Event string `json:"event"`
}

// ErrorPayload answers a failed host frame.
type ErrorPayload struct {
	Message  string `json:"message"`
	Protocol bool   `json:"protocol"`
}

func devicesToJSON(devices []groupcall.RemoteDeviceState) []RemoteDevice {
	out := make([]RemoteDevice, 0, len(devices))
	for _, d := range devices {
		out = append(out, RemoteDevice{
			DemuxID:          d.DemuxID,
			UserID:           d.UserID,
			AudioMuted:       d.AudioMuted,
			VideoMuted:       d.VideoMuted,
			SpeakerRank:      d.SpeakerRank,
			VideoAspectRatio: d.VideoAspectRatio,
			AudioLevel:       d.AudioLevel,
		})
	}
	return out
}

func devicesFromJSON(devices []RemoteDevice) []groupcall.RemoteDeviceState {
	out := make([]groupcall.RemoteDeviceState, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.state())
	}
	return out
}

func (d RemoteDevice) state() groupcall.RemoteDeviceState {
	return groupcall.RemoteDeviceState{
		DemuxID:          d.DemuxID,
		UserID:           groupcall.UserID(d.UserID),
		AudioMuted:       d.AudioMuted,
		VideoMuted:       d.VideoMuted,
		SpeakerRank:      d.SpeakerRank,
		VideoAspectRatio: d.VideoAspectRatio,
		AudioLevel:       d.AudioLevel,
	}
}

func parseMediaType(s string) (signaling.MediaType, error) {
	switch s {
	case "audio":
		return signaling.MediaTypeAudio, nil
	case "video":
		return signaling.MediaTypeVideo, nil
	default:
		return 0, fmt.Errorf("%w: media %q", ErrBadPayload, s)
	}
}

var hangupTypes = map[string]signaling.HangupType{}

func init() {
	for t := signaling.HangupNormal; t <= signaling.HangupNeedPermission; t++ {
		hangupTypes[t.String()] = t
	}
}

func parseHangupType(s string) (signaling.HangupType, error) {
	if s == "" {
		return signaling.HangupNormal, nil
	}
	t, ok := hangupTypes[s]
	if !ok {
		return 0, fmt.Errorf("%w: hangup type %q", ErrBadPayload, s)
	}
	return t, nil
}

func featureLevel(multiRing bool) signaling.FeatureLevel {
	if multiRing {
		return signaling.FeatureLevelMultiRing
	}
	return signaling.FeatureLevelLegacy
}

func age(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

func members(raw [][]byte) []groupcall.UserID {
	out := make([]groupcall.UserID, 0, len(raw))
	for _, m := range raw {
		out = append(out, groupcall.UserID(m))
	}
	return out
}

func membersToJSON(ms []groupcall.UserID) [][]byte {
	out := make([][]byte, 0, len(ms))
	for _, m := range ms {
		out = append(out, []byte(m))
	}
	return out
}
