package sim

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/signaling"
	"golang.org/x/crypto/curve25519"
)

// Handle is a simulated native connection. Offers and answers carry a fresh
// X25519 public key in a V4 parameter block.
type Handle struct {
	CallID         signaling.CallID
	DeviceID       signaling.DeviceID
	ConnectionType call.ConnectionType

	mu             sync.Mutex
	offersCreated  int
	acceptedOffer  *signaling.Offer
	acceptedAnswer *signaling.Answer
	remoteIce      []signaling.IceCandidate
	closed         bool
	failOffer      error
	failAccept     error
	onClose        func()
}

func newKeyParams(ufrag string) (signaling.ConnectionParametersV4, error) {
	var priv [curve25519.ScalarSize]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return signaling.ConnectionParametersV4{}, err
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return signaling.ConnectionParametersV4{}, err
	}
	return signaling.ConnectionParametersV4{
		PublicKey: pub,
		IceUfrag:  ufrag,
		IcePwd:    "sim-password-0123456789",
		ReceiveVideoCodecs: []signaling.VideoCodec{
			{Type: signaling.VideoCodecVP8},
		},
		MaxBitrateBps: 2_000_000,
	}, nil
}

// CreateOffer implements call.ConnectionHandle.
func (h *Handle) CreateOffer(mediaType signaling.MediaType) (signaling.Offer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failOffer != nil {
		return signaling.Offer{}, h.failOffer
	}
	params, err := newKeyParams(fmt.Sprintf("o%d", h.DeviceID))
	if err != nil {
		return signaling.Offer{}, err
	}
	h.offersCreated++
	return signaling.OfferFromV4(mediaType, params)
}

// AcceptOffer implements call.ConnectionHandle.
func (h *Handle) AcceptOffer(offer signaling.Offer) (signaling.Answer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failAccept != nil {
		return signaling.Answer{}, h.failAccept
	}
	if _, err := offer.ToV4(); err != nil {
		return signaling.Answer{}, fmt.Errorf("remote offer: %w", err)
	}
	params, err := newKeyParams(fmt.Sprintf("a%d", h.DeviceID))
	if err != nil {
		return signaling.Answer{}, err
	}
	h.acceptedOffer = &offer
	return signaling.AnswerFromV4(params)
}

// AcceptAnswer implements call.ConnectionHandle.
func (h *Handle) AcceptAnswer(answer signaling.Answer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failAccept != nil {
		return h.failAccept
	}
	h.acceptedAnswer = &answer
	return nil
}

// AddRemoteIce implements call.ConnectionHandle.
func (h *Handle) AddRemoteIce(candidates []signaling.IceCandidate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remoteIce = append(h.remoteIce, candidates...)
	return nil
}

// Close implements call.ConnectionHandle.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	hook := h.onClose
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

// OnClose installs a function run by Close after the handle is marked
// closed. Tests use it to hold a call between ending and release.
func (h *Handle) OnClose(hook func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClose = hook
}

// Closed reports whether the handle was closed.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// OffersCreated returns how many offers the handle produced.
func (h *Handle) OffersCreated() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offersCreated
}

// AcceptedAnswer reports whether a remote answer was applied.
func (h *Handle) AcceptedAnswer() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acceptedAnswer != nil
}

// AcceptedOffer reports whether a remote offer was applied.
func (h *Handle) AcceptedOffer() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acceptedOffer != nil
}

// RemoteIce returns the candidates applied to the handle in order.
func (h *Handle) RemoteIce() []signaling.IceCandidate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]signaling.IceCandidate(nil), h.remoteIce...)
}
