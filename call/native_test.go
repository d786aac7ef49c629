package call_test

import (
	"testing"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectOutgoing places a call to bob, accepts it from device 1 and
// reports connected media.
func connectOutgoing(t *testing.T, mgr *call.Manager) *call.Call {
	t.Helper()
	id, err := mgr.PlaceCall(bob, signaling.MediaTypeAudio)
	require.NoError(t, err)
	require.NoError(t, mgr.ReceiveAnswer(id, receivedAnswer(t, 1)))
	require.NoError(t, mgr.OnConnectionMediaConnected(id, 1))
	c := mgr.ActiveCall()
	require.NotNil(t, c)
	require.Equal(t, call.CallStateConnected, c.State())
	return c
}

func countEvents(events []call.ApplicationEvent, want call.ApplicationEvent) int {
	n := 0
	for _, e := range events {
		if e == want {
			n++
		}
	}
	return n
}

func TestReconnecting(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := connectOutgoing(t, mgr)

	require.NoError(t, mgr.OnConnectionMediaDisconnected(c.ID(), 1))
	require.NoError(t, mgr.OnConnectionMediaDisconnected(c.ID(), 1))
	assert.Equal(t, 1, countEvents(platform.Events(), call.EventReconnecting), "reported once")
	assert.Equal(t, call.CallStateConnected, c.State(), "call stays up")

	require.NoError(t, mgr.OnConnectionMediaConnected(c.ID(), 1))
	require.NoError(t, mgr.OnConnectionMediaConnected(c.ID(), 1))
	assert.Equal(t, 1, countEvents(platform.Events(), call.EventReconnected))
	assert.Equal(t, 1, countEvents(platform.Events(), call.EventConnected))
}

func TestActiveConnectionFailureEndsCall(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := connectOutgoing(t, mgr)

	require.NoError(t, mgr.OnConnectionFailed(c.ID(), 1))

	assert.Equal(t, call.EndReasonError, c.EndReason())
	assert.Contains(t, platform.Events(), call.EventEndedConnectionFailure)
	hangups := platform.Hangups()
	require.NotEmpty(t, hangups)
	assert.Equal(t, signaling.HangupNormal, hangups[len(hangups)-1].Msg.Hangup.Type)
}

func TestRingingLegFailure(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	id, err := mgr.PlaceCall(bob, signaling.MediaTypeAudio, 1, 2)
	require.NoError(t, err)
	c := mgr.ActiveCall()

	require.NoError(t, mgr.OnConnectionFailed(id, 1))
	assert.Equal(t, call.CallStateRinging, c.State(), "other leg still rings")
	conn, err := c.Connection(1)
	require.NoError(t, err)
	assert.Equal(t, call.ConnectionStateEnded, conn.State())

	require.NoError(t, mgr.OnConnectionFailed(id, 2))
	assert.Equal(t, call.EndReasonError, c.EndReason())
}

func TestUnknownLegCallbacks(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	c := connectOutgoing(t, mgr)

	assert.ErrorIs(t, mgr.OnConnectionMediaConnected(c.ID(), 9), call.ErrNoSuchDevice)
	assert.ErrorIs(t, mgr.OnConnectionFailed(c.ID()+1, 1), call.ErrStaleCallID)
}

func TestIncomingMediaBinding(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := connectOutgoing(t, mgr)

	require.NoError(t, mgr.OnIncomingMediaStream(c.ID(), 1, "stream-1"))
	created, connected, disconnected := platform.IncomingMedia()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, connected)
	assert.Zero(t, disconnected)

	require.NoError(t, mgr.OnIncomingMediaStream(c.ID(), 1, "stream-2"))
	created, _, _ = platform.IncomingMedia()
	assert.Equal(t, 1, created, "one stream per call")

	require.NoError(t, mgr.HangupCall(c.ID()))
	_, _, disconnected = platform.IncomingMedia()
	assert.Equal(t, 1, disconnected)
}

func TestIncomingMediaWaitsForConnect(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	id, err := mgr.PlaceCall(bob, signaling.MediaTypeAudio, 1, 2)
	require.NoError(t, err)

	require.NoError(t, mgr.OnIncomingMediaStream(id, 1, "early"))
	created, _, _ := platform.IncomingMedia()
	assert.Zero(t, created, "no active leg yet")

	require.NoError(t, mgr.ReceiveAnswer(id, receivedAnswer(t, 1)))
	require.NoError(t, mgr.OnIncomingMediaStream(id, 1, "stream"))
	created, connected, _ := platform.IncomingMedia()
	assert.Equal(t, 1, created)
	assert.Zero(t, connected)

	require.NoError(t, mgr.OnConnectionMediaConnected(id, 1))
	_, connected, _ = platform.IncomingMedia()
	assert.Equal(t, 1, connected)
}

func TestRemoteVideoStatus(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	id, err := mgr.PlaceCall(bob, signaling.MediaTypeVideo, 1, 2)
	require.NoError(t, err)
	require.NoError(t, mgr.ReceiveAnswer(id, receivedAnswer(t, 1)))

	require.NoError(t, mgr.OnRemoteVideoStatus(id, 1, true))
	require.NoError(t, mgr.OnRemoteVideoStatus(id, 1, true))
	require.NoError(t, mgr.OnRemoteVideoStatus(id, 1, false))

	events := platform.Events()
	assert.Equal(t, 1, countEvents(events, call.EventRemoteVideoEnable))
	assert.Equal(t, 1, countEvents(events, call.EventRemoteVideoDisable))

	err = mgr.OnRemoteVideoStatus(id, 2, true)
	assert.ErrorIs(t, err, call.ErrUnexpectedMessage)
}
