package media

import (
	"crypto/rand"
	"fmt"

	"github.com/opd-ai/callcore/signaling"
	"github.com/pion/sdp/v3"
	"golang.org/x/crypto/curve25519"
)

// iceCredentials returns the ICE ufrag and password of a session
// description, preferring session-level attributes.
func iceCredentials(raw string) (ufrag, pwd string, err error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return "", "", fmt.Errorf("parse sdp: %w", err)
	}
	ufrag, _ = desc.Attribute("ice-ufrag")
	pwd, _ = desc.Attribute("ice-pwd")
	for _, m := range desc.MediaDescriptions {
		if ufrag == "" {
			ufrag, _ = m.Attribute("ice-ufrag")
		}
		if pwd == "" {
			pwd, _ = m.Attribute("ice-pwd")
		}
	}
	if ufrag == "" || pwd == "" {
		return "", "", ErrMissingICECredentials
	}
	return ufrag, pwd, nil
}

func newPublicKey() ([]byte, error) {
	var priv [curve25519.ScalarSize]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, err
	}
	return curve25519.X25519(priv[:], curve25519.Basepoint)
}

// parameters builds the V4 block describing a local description.
func (s *session) parameters(raw string) (signaling.ConnectionParametersV4, error) {
	ufrag, pwd, err := iceCredentials(raw)
	if err != nil {
		return signaling.ConnectionParametersV4{}, err
	}
	params := signaling.ConnectionParametersV4{
		PublicKey:     s.publicKey,
		IceUfrag:      ufrag,
		IcePwd:        pwd,
		MaxBitrateBps: s.engine.maxBitrate,
	}
	if s.mediaType == signaling.MediaTypeVideo {
		params.ReceiveVideoCodecs = []signaling.VideoCodec{
			{Type: signaling.VideoCodecVP8},
			{Type: signaling.VideoCodecVP9},
		}
	}
	return params, nil
}
