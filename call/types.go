package call

import "fmt"

// RemotePeer is the host's opaque identity of the remote party. Two peers
// are compared only through Platform.CompareRemotes.
type RemotePeer interface{}

// MediaStream is an opaque remote media stream reported by the native engine.
type MediaStream interface{}

// IncomingMedia is the host's binding of a remote stream to a render surface.
type IncomingMedia interface{}

// CallState is the lifecycle state of a Call. Ended is terminal.
type CallState uint8

const (
	// CallStateIdle is a call that has not started signaling yet.
	CallStateIdle CallState = iota
	// CallStateRinging means the offer was sent or received and is unanswered.
	CallStateRinging
	// CallStateNegotiating means an answer exists and media is being set up.
	CallStateNegotiating
	// CallStateConnected means the active connection has usable media.
	CallStateConnected
	// CallStateEnded is terminal.
	CallStateEnded
)

// String returns the string representation of the call state.
func (s CallState) String() string {
	switch s {
	case CallStateIdle:
		return "idle"
	case CallStateRinging:
		return "ringing"
	case CallStateNegotiating:
		return "negotiating"
	case CallStateConnected:
		return "connected"
	case CallStateEnded:
		return "ended"
	default:
		return fmt.Sprintf("CallState(%d)", uint8(s))
	}
}

// ConnectionState is the negotiation state of one device leg. Ended is terminal.
type ConnectionState uint8

const (
	// ConnectionStateIdle is a leg whose native handle exists but has not negotiated.
	ConnectionStateIdle ConnectionState = iota
	// ConnectionStateOfferSent means the local offer went out on this leg.
	ConnectionStateOfferSent
	// ConnectionStateOfferReceived means a remote offer was received on this leg.
	ConnectionStateOfferReceived
	// ConnectionStateIceExchanging means offer and answer are both applied.
	ConnectionStateIceExchanging
	// ConnectionStateConnected means the native engine reported usable media.
	ConnectionStateConnected
	// ConnectionStateEnded is terminal.
	ConnectionStateEnded
)

// String returns the string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateIdle:
		return "idle"
	case ConnectionStateOfferSent:
		return "offer_sent"
	case ConnectionStateOfferReceived:
		return "offer_received"
	case ConnectionStateIceExchanging:
		return "ice_exchanging"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateEnded:
		return "ended"
	default:
		return fmt.Sprintf("ConnectionState(%d)", uint8(s))
	}
}

// Direction is fixed when a Call is created.
type Direction uint8

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	if d == DirectionIncoming {
		return "incoming"
	}
	return "outgoing"
}

// ConnectionType distinguishes regular legs from probe legs that must not
// be answered.
type ConnectionType uint8

const (
	ConnectionTypeNormal ConnectionType = iota
	ConnectionTypeShouldNotAnswer
)

// EndReason is the terminal reason of a Call, surfaced to the host verbatim.
type EndReason uint8

const (
	EndReasonNone EndReason = iota
	EndReasonNormal
	EndReasonDeclined
	EndReasonBusy
	EndReasonGlareLost
	EndReasonTimeout
	EndReasonError
	EndReasonAcceptedElsewhere
	EndReasonNeedPermission
)

// String returns the string representation of the end reason.
func (r EndReason) String() string {
	switch r {
	case EndReasonNone:
		return "none"
	case EndReasonNormal:
		return "normal"
	case EndReasonDeclined:
		return "declined"
	case EndReasonBusy:
		return "busy"
	case EndReasonGlareLost:
		return "glare_lost"
	case EndReasonTimeout:
		return "timeout"
	case EndReasonError:
		return "error"
	case EndReasonAcceptedElsewhere:
		return "accepted_elsewhere"
	case EndReasonNeedPermission:
		return "need_permission"
	default:
		return fmt.Sprintf("EndReason(%d)", uint8(r))
	}
}

// ApplicationEvent is one entry of the call-level event stream delivered to
// the host through Platform.OnEvent.
type ApplicationEvent uint8

const (
	EventLocalRinging ApplicationEvent = iota
	EventRemoteRinging
	EventLocalAccepted
	EventRemoteAccepted
	EventConnected
	EventReconnecting
	EventReconnected
	EventRemoteVideoEnable
	EventRemoteVideoDisable
	EventEndedLocalHangup
	EventEndedRemoteHangup
	EventEndedRemoteHangupAccepted
	EventEndedRemoteHangupDeclined
	EventEndedRemoteHangupBusy
	EventEndedRemoteHangupNeedPermission
	EventEndedRemoteBusy
	EventEndedRemoteGlare
	EventEndedTimeout
	EventEndedInternalFailure
	EventEndedSignalingFailure
	EventEndedConnectionFailure
	EventEndedAppDroppedCall
	EventReceivedOfferExpired
	EventReceivedOfferWhileActive
	EventReceivedOfferWithGlare
	EventIgnoreCallsFromNonMultiringCallers
)

var eventNames = [...]string{
	EventLocalRinging:                       "local_ringing",
	EventRemoteRinging:                      "remote_ringing",
	EventLocalAccepted:                      "local_accepted",
	EventRemoteAccepted:                     "remote_accepted",
	EventConnected:                          "connected",
	EventReconnecting:                       "reconnecting",
	EventReconnected:                        "reconnected",
	EventRemoteVideoEnable:                  "remote_video_enable",
	EventRemoteVideoDisable:                 "remote_video_disable",
	EventEndedLocalHangup:                   "ended_local_hangup",
	EventEndedRemoteHangup:                  "ended_remote_hangup",
	EventEndedRemoteHangupAccepted:          "ended_remote_hangup_accepted",
	EventEndedRemoteHangupDeclined:          "ended_remote_hangup_declined",
	EventEndedRemoteHangupBusy:              "ended_remote_hangup_busy",
	EventEndedRemoteHangupNeedPermission:    "ended_remote_hangup_need_permission",
	EventEndedRemoteBusy:                    "ended_remote_busy",
	EventEndedRemoteGlare:                   "ended_remote_glare",
	EventEndedTimeout:                       "ended_timeout",
	EventEndedInternalFailure:               "ended_internal_failure",
	EventEndedSignalingFailure:              "ended_signaling_failure",
	EventEndedConnectionFailure:             "ended_connection_failure",
	EventEndedAppDroppedCall:                "ended_app_dropped_call",
	EventReceivedOfferExpired:               "received_offer_expired",
	EventReceivedOfferWhileActive:           "received_offer_while_active",
	EventReceivedOfferWithGlare:             "received_offer_with_glare",
	EventIgnoreCallsFromNonMultiringCallers: "ignore_calls_from_non_multiring_callers",
}

// String returns the string representation of the event.
func (e ApplicationEvent) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("ApplicationEvent(%d)", uint8(e))
}

// IsEnded reports whether the event announces the end of a call.
func (e ApplicationEvent) IsEnded() bool {
	return e >= EventEndedLocalHangup && e <= EventEndedAppDroppedCall
}
