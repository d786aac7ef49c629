package media

import (
	"sync"
	"testing"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEvents struct {
	mu         sync.Mutex
	candidates map[signaling.DeviceID]int
}

func newRecordingEvents() *recordingEvents {
	return &recordingEvents{candidates: make(map[signaling.DeviceID]int)}
}

func (r *recordingEvents) OnLocalIceCandidates(_ signaling.CallID, deviceID signaling.DeviceID, candidates []signaling.IceCandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates[deviceID] += len(candidates)
	return nil
}

func (r *recordingEvents) OnConnectionMediaConnected(signaling.CallID, signaling.DeviceID) error {
	return nil
}

func (r *recordingEvents) OnConnectionMediaDisconnected(signaling.CallID, signaling.DeviceID) error {
	return nil
}

func (r *recordingEvents) OnConnectionFailed(signaling.CallID, signaling.DeviceID) error {
	return nil
}

func (r *recordingEvents) OnIncomingMediaStream(signaling.CallID, signaling.DeviceID, call.MediaStream) error {
	return nil
}

func (r *recordingEvents) OnRemoteVideoStatus(signaling.CallID, signaling.DeviceID, bool) error {
	return nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(Config{MaxBitrateBps: 1_000_000})
	require.NoError(t, err)
	engine.Attach(newRecordingEvents())
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

const testSDP = "v=0\r\n" +
	"o=- 1 1 IN IP4 0.0.0.0\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=ice-ufrag:abcd\r\n" +
	"a=ice-pwd:0123456789abcdef01234567\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n"

func TestICECredentials(t *testing.T) {
	ufrag, pwd, err := iceCredentials(testSDP)
	require.NoError(t, err)
	assert.Equal(t, "abcd", ufrag)
	assert.Equal(t, "0123456789abcdef01234567", pwd)

	_, _, err = iceCredentials("v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n")
	assert.ErrorIs(t, err, ErrMissingICECredentials)

	_, _, err = iceCredentials("not sdp")
	assert.Error(t, err)
}

// TestOfferAnswerBetweenEngines runs a full description exchange between a
// caller engine with two legs and a callee engine.
func TestOfferAnswerBetweenEngines(t *testing.T) {
	caller := newTestEngine(t)
	callee := newTestEngine(t)

	leg1, err := caller.NewHandle(7, 1, signaling.MediaTypeVideo)
	require.NoError(t, err)
	leg2, err := caller.NewHandle(7, 2, signaling.MediaTypeVideo)
	require.NoError(t, err)
	assert.Equal(t, 1, caller.Sessions(), "legs share one peer connection")

	offer, err := leg1.CreateOffer(signaling.MediaTypeVideo)
	require.NoError(t, err)
	again, err := leg2.CreateOffer(signaling.MediaTypeVideo)
	require.NoError(t, err)
	assert.Equal(t, offer, again, "one offer per call")

	params, err := offer.ToV4()
	require.NoError(t, err)
	assert.Len(t, params.PublicKey, 32)
	assert.NotEmpty(t, params.IceUfrag)
	assert.NotEmpty(t, params.IcePwd)
	assert.Equal(t, uint64(1_000_000), params.MaxBitrateBps)
	assert.Contains(t, params.ReceiveVideoCodecs, signaling.VideoCodec{Type: signaling.VideoCodecVP8})
	assert.Contains(t, offer.SDP(), "m=video")

	responder, err := callee.NewHandle(7, 1, signaling.MediaTypeVideo)
	require.NoError(t, err)
	answer, err := responder.AcceptOffer(offer)
	require.NoError(t, err)
	answerParams, err := answer.ToV4()
	require.NoError(t, err)
	assert.NotEqual(t, params.PublicKey, answerParams.PublicKey)

	require.NoError(t, leg1.AcceptAnswer(answer))

	require.NoError(t, leg2.Close())
	assert.Equal(t, 1, caller.Sessions())
	require.NoError(t, leg1.Close())
	assert.Zero(t, caller.Sessions(), "last leg closes the peer connection")
	require.NoError(t, leg1.Close(), "close is idempotent")

	_, err = leg1.CreateOffer(signaling.MediaTypeVideo)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAcceptRequiresSDP(t *testing.T) {
	engine := newTestEngine(t)
	handle, err := engine.NewHandle(9, 1, signaling.MediaTypeAudio)
	require.NoError(t, err)

	offer, err := signaling.OfferFromV4(signaling.MediaTypeAudio, signaling.ConnectionParametersV4{PublicKey: make([]byte, 32)})
	require.NoError(t, err)
	_, err = handle.AcceptOffer(offer)
	assert.ErrorIs(t, err, ErrNoSessionDescription)

	answer, err := signaling.AnswerFromV4(signaling.ConnectionParametersV4{PublicKey: make([]byte, 32)})
	require.NoError(t, err)
	assert.ErrorIs(t, handle.AcceptAnswer(answer), ErrNoSessionDescription)
}

func TestClosedEngineRejectsHandles(t *testing.T) {
	engine := newTestEngine(t)
	handle, err := engine.NewHandle(9, 1, signaling.MediaTypeAudio)
	require.NoError(t, err)

	require.NoError(t, engine.Close())
	_, err = engine.NewHandle(10, 1, signaling.MediaTypeAudio)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, handle.AddRemoteIce(nil), ErrClosed)
	assert.NoError(t, handle.Close())
}

func TestHandleSatisfiesConnectionHandle(t *testing.T) {
	var _ call.ConnectionHandle = (*Handle)(nil)
	var _ Events = (*call.Manager)(nil)
}
