package sim

import (
	"fmt"

	"github.com/opd-ai/callcore/signaling"
)

// NewOffer builds a well-formed offer as a remote device would send it.
func NewOffer(mediaType signaling.MediaType) (signaling.Offer, error) {
	params, err := newKeyParams("remote")
	if err != nil {
		return signaling.Offer{}, err
	}
	return signaling.OfferFromV4(mediaType, params)
}

// NewAnswer builds a well-formed answer as a remote device would send it.
func NewAnswer() (signaling.Answer, error) {
	params, err := newKeyParams("remote")
	if err != nil {
		return signaling.Answer{}, err
	}
	return signaling.AnswerFromV4(params)
}

// NewCandidate builds a distinct host candidate numbered n.
func NewCandidate(n int) (signaling.IceCandidate, error) {
	line := fmt.Sprintf("candidate:%d 1 udp 2122260223 192.0.2.%d %d typ host", n, n%250+1, 50000+n)
	return signaling.IceCandidateFromSDP(line)
}
