package media

import (
	"fmt"

	"github.com/opd-ai/callcore/signaling"
	"github.com/pion/webrtc/v3"
)

// Handle is one device leg of a call. It implements call.ConnectionHandle.
type Handle struct {
	session  *session
	deviceID signaling.DeviceID
	closed   bool
}

// DeviceID returns the remote device of the leg.
func (h *Handle) DeviceID() signaling.DeviceID { return h.deviceID }

func (h *Handle) live() error {
	h.session.mu.Lock()
	defer h.session.mu.Unlock()
	if h.closed || h.session.closed {
		return ErrClosed
	}
	return nil
}

func (h *Handle) addTransceivers(mediaType signaling.MediaType) error {
	if _, err := h.session.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		return fmt.Errorf("add audio transceiver: %w", err)
	}
	if mediaType == signaling.MediaTypeVideo {
		if _, err := h.session.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo); err != nil {
			return fmt.Errorf("add video transceiver: %w", err)
		}
	}
	return nil
}

// CreateOffer creates the offer of the call. Every leg of the call returns
// the same offer.
func (h *Handle) CreateOffer(mediaType signaling.MediaType) (signaling.Offer, error) {
	if err := h.live(); err != nil {
		return signaling.Offer{}, err
	}
	s := h.session
	s.mu.Lock()
	if s.offer != nil {
		offer := *s.offer
		s.mu.Unlock()
		return offer, nil
	}
	s.mu.Unlock()

	if err := h.addTransceivers(mediaType); err != nil {
		return signaling.Offer{}, err
	}
	desc, err := s.pc.CreateOffer(nil)
	if err != nil {
		return signaling.Offer{}, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(desc); err != nil {
		return signaling.Offer{}, fmt.Errorf("failed to set local description: %w", err)
	}
	params, err := s.parameters(desc.SDP)
	if err != nil {
		return signaling.Offer{}, err
	}
	offer, err := signaling.NewOffer(mediaType, params.Encode(), desc.SDP)
	if err != nil {
		return signaling.Offer{}, err
	}

	s.mu.Lock()
	s.offer = &offer
	s.mu.Unlock()
	return offer, nil
}

// AcceptOffer applies a remote offer and returns the local answer.
func (h *Handle) AcceptOffer(offer signaling.Offer) (signaling.Answer, error) {
	if err := h.live(); err != nil {
		return signaling.Answer{}, err
	}
	if offer.SDP() == "" {
		return signaling.Answer{}, ErrNoSessionDescription
	}
	if _, err := offer.ToV4(); err != nil {
		return signaling.Answer{}, fmt.Errorf("remote offer: %w", err)
	}
	s := h.session
	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP()}); err != nil {
		return signaling.Answer{}, fmt.Errorf("failed to set remote description: %w", err)
	}
	desc, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return signaling.Answer{}, fmt.Errorf("failed to create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(desc); err != nil {
		return signaling.Answer{}, fmt.Errorf("failed to set local description: %w", err)
	}
	params, err := s.parameters(desc.SDP)
	if err != nil {
		return signaling.Answer{}, err
	}
	s.setResponder(h.deviceID)
	return signaling.NewAnswer(params.Encode(), desc.SDP)
}

// AcceptAnswer applies the answer of the device this leg dials.
func (h *Handle) AcceptAnswer(answer signaling.Answer) error {
	if err := h.live(); err != nil {
		return err
	}
	if answer.SDP() == "" {
		return ErrNoSessionDescription
	}
	if _, err := answer.ToV4(); err != nil {
		return fmt.Errorf("remote answer: %w", err)
	}
	s := h.session
	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP()}); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	s.setResponder(h.deviceID)
	return nil
}

// AddRemoteIce applies remote candidates in order.
func (h *Handle) AddRemoteIce(candidates []signaling.IceCandidate) error {
	if err := h.live(); err != nil {
		return err
	}
	for _, cand := range candidates {
		line, err := cand.ToSDP()
		if err != nil {
			return err
		}
		if err := h.session.pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: line}); err != nil {
			return fmt.Errorf("failed to add ice candidate: %w", err)
		}
	}
	return nil
}

// Close releases the leg. The shared PeerConnection closes with the last leg.
func (h *Handle) Close() error {
	s := h.session
	s.mu.Lock()
	if h.closed {
		s.mu.Unlock()
		return nil
	}
	h.closed = true
	s.mu.Unlock()
	return s.release(h.deviceID)
}
