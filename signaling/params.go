package signaling

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// VideoCodecType names a video codec the sender can receive.
type VideoCodecType uint32

const (
	// VideoCodecVP8 is the VP8 codec.
	VideoCodecVP8 VideoCodecType = 8
	// VideoCodecVP9 is the VP9 codec.
	VideoCodecVP9 VideoCodecType = 9
)

// VideoCodec is one receivable codec with an optional level.
type VideoCodec struct {
	Type  VideoCodecType
	Level uint32
}

// ConnectionParametersV4 is the structured content of the opaque blob of a
// V4 offer or answer.
//
// Wire format (protobuf field numbers):
//
//	1: public_key            bytes
//	2: ice_ufrag             string
//	3: ice_pwd               string
//	4: receive_video_codecs  repeated message {1: type varint, 2: level varint}
//	5: max_bitrate_bps       varint
type ConnectionParametersV4 struct {
	PublicKey          []byte
	IceUfrag           string
	IcePwd             string
	ReceiveVideoCodecs []VideoCodec
	MaxBitrateBps      uint64
}

const (
	fieldPublicKey     protowire.Number = 1
	fieldIceUfrag      protowire.Number = 2
	fieldIcePwd        protowire.Number = 3
	fieldVideoCodecs   protowire.Number = 4
	fieldMaxBitrateBps protowire.Number = 5

	fieldCodecType  protowire.Number = 1
	fieldCodecLevel protowire.Number = 2

	fieldCandidateSDP protowire.Number = 1
)

// Encode serializes the parameters. Zero-valued fields are omitted.
func (p ConnectionParametersV4) Encode() []byte {
	var b []byte
	if len(p.PublicKey) > 0 {
		b = protowire.AppendTag(b, fieldPublicKey, protowire.BytesType)
		b = protowire.AppendBytes(b, p.PublicKey)
	}
	if p.IceUfrag != "" {
		b = protowire.AppendTag(b, fieldIceUfrag, protowire.BytesType)
		b = protowire.AppendString(b, p.IceUfrag)
	}
	if p.IcePwd != "" {
		b = protowire.AppendTag(b, fieldIcePwd, protowire.BytesType)
		b = protowire.AppendString(b, p.IcePwd)
	}
	for _, codec := range p.ReceiveVideoCodecs {
		var inner []byte
		inner = protowire.AppendTag(inner, fieldCodecType, protowire.VarintType)
		inner = protowire.AppendVarint(inner, uint64(codec.Type))
		if codec.Level != 0 {
			inner = protowire.AppendTag(inner, fieldCodecLevel, protowire.VarintType)
			inner = protowire.AppendVarint(inner, uint64(codec.Level))
		}
		b = protowire.AppendTag(b, fieldVideoCodecs, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	if p.MaxBitrateBps != 0 {
		b = protowire.AppendTag(b, fieldMaxBitrateBps, protowire.VarintType)
		b = protowire.AppendVarint(b, p.MaxBitrateBps)
	}
	return b
}

// DecodeConnectionParametersV4 parses an opaque blob. Unknown fields are
// skipped so newer peers can extend the block.
func DecodeConnectionParametersV4(b []byte) (ConnectionParametersV4, error) {
	var p ConnectionParametersV4
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, fmt.Errorf("%w: %v", ErrMalformedParameters, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldPublicKey && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return p, fmt.Errorf("%w: public_key: %v", ErrMalformedParameters, protowire.ParseError(m))
			}
			p.PublicKey = cloneBytes(v)
			n = m
		case num == fieldIceUfrag && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return p, fmt.Errorf("%w: ice_ufrag: %v", ErrMalformedParameters, protowire.ParseError(m))
			}
			p.IceUfrag = v
			n = m
		case num == fieldIcePwd && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return p, fmt.Errorf("%w: ice_pwd: %v", ErrMalformedParameters, protowire.ParseError(m))
			}
			p.IcePwd = v
			n = m
		case num == fieldVideoCodecs && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return p, fmt.Errorf("%w: receive_video_codecs: %v", ErrMalformedParameters, protowire.ParseError(m))
			}
			codec, err := decodeVideoCodec(v)
			if err != nil {
				return p, err
			}
			p.ReceiveVideoCodecs = append(p.ReceiveVideoCodecs, codec)
			n = m
		case num == fieldMaxBitrateBps && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return p, fmt.Errorf("%w: max_bitrate_bps: %v", ErrMalformedParameters, protowire.ParseError(m))
			}
			p.MaxBitrateBps = v
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, fmt.Errorf("%w: field %d: %v", ErrMalformedParameters, num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return p, nil
}

func decodeVideoCodec(b []byte) (VideoCodec, error) {
	var c VideoCodec
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, fmt.Errorf("%w: codec: %v", ErrMalformedParameters, protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.VarintType && (num == fieldCodecType || num == fieldCodecLevel) {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return c, fmt.Errorf("%w: codec: %v", ErrMalformedParameters, protowire.ParseError(m))
			}
			if num == fieldCodecType {
				c.Type = VideoCodecType(v)
			} else {
				c.Level = uint32(v)
			}
			n = m
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return c, fmt.Errorf("%w: codec: %v", ErrMalformedParameters, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return c, nil
}

// OfferFromV4 builds an offer whose opaque blob carries params.
func OfferFromV4(mediaType MediaType, params ConnectionParametersV4) (Offer, error) {
	if len(params.PublicKey) == 0 {
		return Offer{}, ErrMissingPublicKey
	}
	return NewOffer(mediaType, params.Encode(), "")
}

// ToV4 decodes the opaque blob of the offer.
func (o Offer) ToV4() (ConnectionParametersV4, error) {
	return decodeV4(o.opaque)
}

// AnswerFromV4 builds an answer whose opaque blob carries params.
func AnswerFromV4(params ConnectionParametersV4) (Answer, error) {
	if len(params.PublicKey) == 0 {
		return Answer{}, ErrMissingPublicKey
	}
	return NewAnswer(params.Encode(), "")
}

// ToV4 decodes the opaque blob of the answer.
func (a Answer) ToV4() (ConnectionParametersV4, error) {
	return decodeV4(a.opaque)
}

func decodeV4(opaque []byte) (ConnectionParametersV4, error) {
	p, err := DecodeConnectionParametersV4(opaque)
	if err != nil {
		return p, err
	}
	if len(p.PublicKey) == 0 {
		return p, ErrMissingPublicKey
	}
	return p, nil
}

// IceCandidateFromSDP wraps a candidate line in the V3 opaque form.
func IceCandidateFromSDP(sdp string) (IceCandidate, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldCandidateSDP, protowire.BytesType)
	b = protowire.AppendString(b, sdp)
	return NewIceCandidate(b, "")
}

// ToSDP returns the candidate line, preferring the opaque V3 form and falling
// back to the legacy sdp string.
func (c IceCandidate) ToSDP() (string, error) {
	if len(c.opaque) == 0 {
		return c.sdp, nil
	}
	b := c.opaque
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", fmt.Errorf("%w: candidate: %v", ErrMalformedParameters, protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldCandidateSDP && typ == protowire.BytesType {
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return "", fmt.Errorf("%w: candidate: %v", ErrMalformedParameters, protowire.ParseError(m))
			}
			return v, nil
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return "", fmt.Errorf("%w: candidate: %v", ErrMalformedParameters, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return "", fmt.Errorf("%w: candidate has no sdp", ErrMalformedParameters)
}
