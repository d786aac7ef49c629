package signaling

import (
	"fmt"
	"time"

	"github.com/opd-ai/callcore/limits"
)

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Offer is the session offer of the caller.
type Offer struct {
	mediaType MediaType
	opaque    []byte
	sdp       string
}

// NewOffer validates and builds an offer. The legacy sdp form may be empty.
func NewOffer(mediaType MediaType, opaque []byte, sdp string) (Offer, error) {
	if !mediaType.Valid() {
		return Offer{}, fmt.Errorf("%w: %d", ErrInvalidMediaType, mediaType)
	}
	if err := limits.ValidateOpaque(opaque); err != nil {
		return Offer{}, fmt.Errorf("offer opaque: %w", err)
	}
	if err := limits.ValidateLegacySDP(sdp); err != nil {
		return Offer{}, fmt.Errorf("offer sdp: %w", err)
	}
	return Offer{mediaType: mediaType, opaque: cloneBytes(opaque), sdp: sdp}, nil
}

// MediaType returns the media type fixed by this offer.
func (o Offer) MediaType() MediaType { return o.mediaType }

// Opaque returns a copy of the opaque blob.
func (o Offer) Opaque() []byte { return cloneBytes(o.opaque) }

// SDP returns the legacy plaintext form, or "" when absent.
func (o Offer) SDP() string { return o.sdp }

// Answer is the callee's reply to an offer.
type Answer struct {
	opaque []byte
	sdp    string
}

// NewAnswer validates and builds an answer.
func NewAnswer(opaque []byte, sdp string) (Answer, error) {
	if err := limits.ValidateOpaque(opaque); err != nil {
		return Answer{}, fmt.Errorf("answer opaque: %w", err)
	}
	if err := limits.ValidateLegacySDP(sdp); err != nil {
		return Answer{}, fmt.Errorf("answer sdp: %w", err)
	}
	return Answer{opaque: cloneBytes(opaque), sdp: sdp}, nil
}

// Opaque returns a copy of the opaque blob.
func (a Answer) Opaque() []byte { return cloneBytes(a.opaque) }

// SDP returns the legacy plaintext form, or "" when absent.
func (a Answer) SDP() string { return a.sdp }

// IceCandidate is one ICE candidate.
type IceCandidate struct {
	opaque []byte
	sdp    string
}

// NewIceCandidate builds a candidate from its opaque form and optional legacy sdp.
func NewIceCandidate(opaque []byte, sdp string) (IceCandidate, error) {
	if len(opaque) == 0 && sdp == "" {
		return IceCandidate{}, fmt.Errorf("ice candidate: %w", limits.ErrMessageEmpty)
	}
	if len(opaque) > 0 {
		if err := limits.ValidateOpaque(opaque); err != nil {
			return IceCandidate{}, fmt.Errorf("ice candidate opaque: %w", err)
		}
	}
	if err := limits.ValidateLegacySDP(sdp); err != nil {
		return IceCandidate{}, fmt.Errorf("ice candidate sdp: %w", err)
	}
	return IceCandidate{opaque: cloneBytes(opaque), sdp: sdp}, nil
}

// Opaque returns a copy of the opaque blob.
func (c IceCandidate) Opaque() []byte { return cloneBytes(c.opaque) }

// SDP returns the legacy plaintext form, or "" when absent.
func (c IceCandidate) SDP() string { return c.sdp }

// Key identifies the candidate content. Two candidates with equal keys are
// duplicates of each other.
func (c IceCandidate) Key() string {
	return string(c.opaque) + "\x00" + c.sdp
}

// Ice is a batch of candidates. Order within a batch is significant.
type Ice struct {
	Candidates []IceCandidate
}

// NewIce validates the batch size and copies the candidate slice.
func NewIce(candidates []IceCandidate) (Ice, error) {
	if err := limits.ValidateCandidateCount(len(candidates)); err != nil {
		return Ice{}, err
	}
	out := make([]IceCandidate, len(candidates))
	copy(out, candidates)
	return Ice{Candidates: out}, nil
}

// Busy reports that the callee is already in another call.
type Busy struct{}

// CallMessage is an opaque application-level message relayed alongside calls.
type CallMessage struct {
	opaque []byte
}

// NewCallMessage validates and builds a call message.
func NewCallMessage(opaque []byte) (CallMessage, error) {
	if err := limits.ValidateCallMessage(opaque); err != nil {
		return CallMessage{}, err
	}
	return CallMessage{opaque: cloneBytes(opaque)}, nil
}

// Opaque returns a copy of the message bytes.
func (m CallMessage) Opaque() []byte { return cloneBytes(m.opaque) }

// ReceivedOffer is an inbound offer with delivery metadata.
type ReceivedOffer struct {
	Offer                   Offer
	Age                     time.Duration
	SenderDeviceID          DeviceID
	SenderFeatureLevel      FeatureLevel
	ReceiverDeviceID        DeviceID
	ReceiverDeviceIsPrimary bool
	SenderIdentityKey       []byte
	ReceiverIdentityKey     []byte
}

// ReceivedAnswer is an inbound answer with delivery metadata.
type ReceivedAnswer struct {
	Answer              Answer
	SenderDeviceID      DeviceID
	SenderFeatureLevel  FeatureLevel
	SenderIdentityKey   []byte
	ReceiverIdentityKey []byte
}

// ReceivedIce is an inbound candidate batch.
type ReceivedIce struct {
	Ice            Ice
	SenderDeviceID DeviceID
}

// ReceivedHangup is an inbound hangup.
type ReceivedHangup struct {
	Hangup         Hangup
	SenderDeviceID DeviceID
}

// ReceivedBusy is an inbound busy.
type ReceivedBusy struct {
	SenderDeviceID DeviceID
}

// ReceivedCallMessage is an inbound opaque application message.
type ReceivedCallMessage struct {
	SenderUUID     []byte
	SenderDeviceID DeviceID
	LocalDeviceID  DeviceID
	Message        CallMessage
	Age            time.Duration
}

// SendOffer is an outbound offer. Offers are always broadcast.
type SendOffer struct {
	Offer Offer
}

// Broadcast reports the delivery mode of the message.
func (SendOffer) Broadcast() bool { return true }

// SendAnswer is an outbound answer targeted at one device.
type SendAnswer struct {
	Answer           Answer
	ReceiverDeviceID DeviceID
}

// Broadcast reports the delivery mode of the message.
func (SendAnswer) Broadcast() bool { return false }

// SendIce is an outbound candidate batch. A nil ReceiverDeviceID means the
// batch is broadcast because no specific responder is known yet.
type SendIce struct {
	Ice              Ice
	ReceiverDeviceID *DeviceID
}

// Broadcast reports the delivery mode of the message.
func (s SendIce) Broadcast() bool { return s.ReceiverDeviceID == nil }

// SendHangup is an outbound hangup. Hangups are always broadcast.
type SendHangup struct {
	Hangup Hangup
}

// Broadcast reports the delivery mode of the message.
func (SendHangup) Broadcast() bool { return true }

// SendBusy is an outbound busy. Busy messages are always broadcast.
type SendBusy struct{}

// Broadcast reports the delivery mode of the message.
func (SendBusy) Broadcast() bool { return true }
