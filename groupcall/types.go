package groupcall

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// ClientID is the process-local handle of a group call client.
type ClientID uint32

// GroupID identifies the group whose call is joined.
type GroupID []byte

// String returns the hex form of the group id.
func (g GroupID) String() string { return hex.EncodeToString(g) }

// DemuxID is the relay-assigned identifier of one participant's media
// streams. It is only meaningful within one joined session.
type DemuxID uint32

// UserID is the opaque participant user id.
type UserID []byte

// VideoTrack is an opaque native video track handed to the host.
type VideoTrack interface{}

// ConnectionState is the state of the link to the relay.
type ConnectionState uint8

const (
	// ConnectionStateNotConnected means no relay session exists.
	ConnectionStateNotConnected ConnectionState = iota
	// ConnectionStateConnecting means the relay handshake is in progress.
	ConnectionStateConnecting
	// ConnectionStateConnected means the relay session is established.
	ConnectionStateConnected
	// ConnectionStateReconnecting means the relay link dropped and is being restored.
	ConnectionStateReconnecting
)

// String returns the string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateNotConnected:
		return "not_connected"
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("ConnectionState(%d)", uint8(s))
	}
}

// JoinState is the membership state of the local device.
type JoinState uint8

const (
	// JoinStateNotJoined means the local device is not a participant.
	JoinStateNotJoined JoinState = iota
	// JoinStateJoining means a join request is pending.
	JoinStateJoining
	// JoinStateJoined means the relay accepted the local device.
	JoinStateJoined
)

// String returns the string representation of the join state.
func (s JoinState) String() string {
	switch s {
	case JoinStateNotJoined:
		return "not_joined"
	case JoinStateJoining:
		return "joining"
	case JoinStateJoined:
		return "joined"
	default:
		return fmt.Sprintf("JoinState(%d)", uint8(s))
	}
}

// EndReason describes why a client returned to NotConnected.
type EndReason uint8

const (
	// EndReasonUserLeft is a local leave.
	EndReasonUserLeft EndReason = iota
	// EndReasonKicked means the relay removed the local device.
	EndReasonKicked
	// EndReasonRelayError means the relay failed or rejected the session.
	EndReasonRelayError
	// EndReasonAuthFailure means every membership proof was rejected.
	EndReasonAuthFailure
	// EndReasonTimeout means the relay never completed the join.
	EndReasonTimeout
	// EndReasonClientDeleted means the owner deleted the client.
	EndReasonClientDeleted
)

// String returns the string representation of the end reason.
func (r EndReason) String() string {
	switch r {
	case EndReasonUserLeft:
		return "user_left"
	case EndReasonKicked:
		return "kicked"
	case EndReasonRelayError:
		return "relay_error"
	case EndReasonAuthFailure:
		return "auth_failure"
	case EndReasonTimeout:
		return "timeout"
	case EndReasonClientDeleted:
		return "client_deleted"
	default:
		return fmt.Sprintf("EndReason(%d)", uint8(r))
	}
}

// RemoteDeviceState is the media-level state of one remote participant.
// Nil optional fields mean unknown.
type RemoteDeviceState struct {
	DemuxID          DemuxID
	UserID           UserID
	AudioMuted       *bool
	VideoMuted       *bool
	SpeakerRank      *uint16
	VideoAspectRatio *float32
	AudioLevel       *uint16
}

func (s RemoteDeviceState) clone() RemoteDeviceState {
	out := s
	out.UserID = append(UserID(nil), s.UserID...)
	if s.AudioMuted != nil {
		out.AudioMuted = Bool(*s.AudioMuted)
	}
	if s.VideoMuted != nil {
		out.VideoMuted = Bool(*s.VideoMuted)
	}
	if s.SpeakerRank != nil {
		out.SpeakerRank = Uint16(*s.SpeakerRank)
	}
	if s.VideoAspectRatio != nil {
		v := *s.VideoAspectRatio
		out.VideoAspectRatio = &v
	}
	if s.AudioLevel != nil {
		out.AudioLevel = Uint16(*s.AudioLevel)
	}
	return out
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Uint16 returns a pointer to v.
func Uint16(v uint16) *uint16 { return &v }

// Float32 returns a pointer to v.
func Float32(v float32) *float32 { return &v }

func sameMembers(a, b []UserID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func cloneMembers(members []UserID) []UserID {
	out := make([]UserID, len(members))
	for i, m := range members {
		out[i] = append(UserID(nil), m...)
	}
	return out
}
