package call_test

import (
	"testing"
	"time"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/signaling"
	"github.com/opd-ai/callcore/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomingOfferRings(t *testing.T) {
	mgr, platform, _ := newTestManager(t)

	c := ringIncoming(t, mgr, 500)

	assert.Equal(t, call.CallStateRinging, c.State())
	assert.Equal(t, call.DirectionIncoming, c.Direction())
	started := platform.Started()
	require.Len(t, started, 1)
	assert.Equal(t, call.DirectionIncoming, started[0].Direction)
	assert.Equal(t, signaling.CallID(500), started[0].CallID)
	assert.Equal(t, []call.ApplicationEvent{call.EventLocalRinging}, platform.Events())

	conn, err := c.Connection(2)
	require.NoError(t, err)
	assert.Equal(t, call.ConnectionStateOfferReceived, conn.State())
	assert.Zero(t, platform.SignalingCount(), "ringing sends nothing")
}

func TestRetransmittedOfferIsIgnored(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.ReceiveOffer(bob, 500, receivedOffer(t, signaling.MediaTypeAudio, 2, time.Second)))

	assert.Len(t, platform.Started(), 1)
	assert.Empty(t, platform.Busys())
}

// TestStaleOfferIsRejected checks that an expired offer changes nothing
// and never rings.
func TestStaleOfferIsRejected(t *testing.T) {
	mgr, platform, _ := newTestManager(t)

	err := mgr.ReceiveOffer(bob, 500, receivedOffer(t, signaling.MediaTypeAudio, 2, call.DefaultOfferMaxAge+time.Second))

	assert.ErrorIs(t, err, call.ErrStale)
	assert.True(t, call.IsProtocolError(err))
	assert.Nil(t, mgr.ActiveCall())
	assert.Empty(t, platform.Started())
	assert.Empty(t, platform.Events())
	assert.Empty(t, platform.Handles())

	require.NoError(t, mgr.ReceiveOffer(bob, 500, receivedOffer(t, signaling.MediaTypeAudio, 2, call.DefaultOfferMaxAge)))
	assert.NotNil(t, mgr.ActiveCall(), "an offer exactly at the threshold is fresh")
}

func TestLegacyOfferOnNonPrimaryDeviceIsIgnored(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	ro := receivedOffer(t, signaling.MediaTypeAudio, 2, 0)
	ro.SenderFeatureLevel = signaling.FeatureLevelLegacy
	ro.ReceiverDeviceIsPrimary = false

	err := mgr.ReceiveOffer(bob, 500, ro)

	assert.True(t, call.IsProtocolError(err))
	assert.Nil(t, mgr.ActiveCall())
	assert.Equal(t, []call.ApplicationEvent{call.EventIgnoreCallsFromNonMultiringCallers}, platform.Events())
}

func TestOfferWhileActiveWithOtherRemoteSendsBusy(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	active := ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.ReceiveOffer(alice, 501, receivedOffer(t, signaling.MediaTypeVideo, 1, 0)))

	busys := platform.Busys()
	require.Len(t, busys, 1)
	assert.Equal(t, signaling.CallID(501), busys[0].CallID)
	assert.Equal(t, alice, busys[0].Remote)
	assert.Equal(t, active, mgr.ActiveCall())
	assert.Equal(t, call.CallStateRinging, active.State())
	assert.Contains(t, platform.Events(), call.EventReceivedOfferWhileActive)

	assert.ErrorIs(t, mgr.ReceiveOffer(alice, 501, receivedOffer(t, signaling.MediaTypeVideo, 1, 0)), call.ErrStaleCallID)
	assert.Len(t, platform.Busys(), 1)
}

func TestAcceptCall(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.AcceptCall(500))

	assert.Equal(t, call.CallStateNegotiating, c.State())
	answers := platform.Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, signaling.DeviceID(2), answers[0].Msg.ReceiverDeviceID)
	_, err := answers[0].Msg.Answer.ToV4()
	assert.NoError(t, err)

	hangups := platform.Hangups()
	require.Len(t, hangups, 1)
	assert.Equal(t, signaling.HangupAcceptedOnAnotherDevice, hangups[0].Msg.Hangup.Type)
	assert.Equal(t, signaling.PrimaryDeviceID, hangups[0].Msg.Hangup.DeviceID)
	assert.Contains(t, platform.Events(), call.EventLocalAccepted)
	assert.True(t, platform.HandleFor(500, 2).AcceptedOffer())

	assert.ErrorIs(t, mgr.AcceptCall(500), call.ErrNoActiveCall, "second accept")

	require.NoError(t, mgr.OnConnectionMediaConnected(500, 2))
	assert.Equal(t, call.CallStateConnected, c.State())
}

func TestAcceptWithoutCall(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	assert.ErrorIs(t, mgr.AcceptCall(500), call.ErrNoActiveCall)

	_, err := mgr.PlaceCall(bob, signaling.MediaTypeAudio)
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.AcceptCall(mgr.ActiveCall().ID()), call.ErrNoActiveCall, "outgoing calls cannot be accepted")
}

func TestAcceptFailureEndsCall(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	platform.FailAccept(2, sim.ErrInjected)
	c := ringIncoming(t, mgr, 500)

	assert.Error(t, mgr.AcceptCall(500))
	assert.Equal(t, call.EndReasonError, c.EndReason())
	assert.Empty(t, platform.Answers())
}

func TestAnswerSendFailureEndsCall(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	platform.FailSend(sim.KindAnswer, sim.ErrInjected)
	c := ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.AcceptCall(500))
	assert.Equal(t, call.EndReasonError, c.EndReason())
	assert.Contains(t, platform.Events(), call.EventEndedSignalingFailure)
}

func TestDeclineCall(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.DeclineCall(500))

	assert.Equal(t, call.EndReasonDeclined, c.EndReason())
	hangups := platform.Hangups()
	require.Len(t, hangups, 1)
	assert.Equal(t, signaling.HangupDeclinedOnAnotherDevice, hangups[0].Msg.Hangup.Type)
	assert.Equal(t, signaling.PrimaryDeviceID, hangups[0].Msg.Hangup.DeviceID)
	assert.True(t, platform.HandleFor(500, 2).Closed())
	assert.ErrorIs(t, mgr.DeclineCall(500), call.ErrNoActiveCall)
}

// TestAcceptedElsewhereHangupIsSuppressed checks that a hangup reporting
// another device's outcome ends the local view without any signaling.
func TestAcceptedElsewhereHangupIsSuppressed(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.ReceiveHangup(500, receivedHangup(signaling.HangupAcceptedOnAnotherDevice, 3, 2)))

	assert.Equal(t, call.EndReasonAcceptedElsewhere, c.EndReason())
	assert.Zero(t, platform.SignalingCount())
	assert.Contains(t, platform.Events(), call.EventEndedRemoteHangupAccepted)
}

func TestOwnAcceptedHangupEchoIsIgnored(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.ReceiveHangup(500, receivedHangup(signaling.HangupAcceptedOnAnotherDevice, signaling.PrimaryDeviceID, 2)))

	assert.Equal(t, call.CallStateRinging, c.State())
	assert.Zero(t, platform.SignalingCount())
}

// TestBusyElsewhereBeforeAccept receives an offer and then a busy-type
// hangup for the same call before accepting.
func TestBusyElsewhereBeforeAccept(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.ReceiveHangup(500, receivedHangup(signaling.HangupBusyOnAnotherDevice, 3, 2)))

	assert.Equal(t, call.CallStateEnded, c.State())
	assert.Equal(t, call.EndReasonBusy, c.EndReason())
	assert.True(t, c.ConnectedAt().IsZero(), "never connected")
	assert.NotContains(t, platform.Events(), call.EventConnected)
	assert.Zero(t, platform.SignalingCount())
}

func TestDeclinedElsewhereHangup(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	c := ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.ReceiveHangup(500, receivedHangup(signaling.HangupDeclinedOnAnotherDevice, 3, 2)))
	assert.Equal(t, call.EndReasonDeclined, c.EndReason())
}

// TestRedeliveredIceIsNotDuplicated delivers the same candidates twice
// before the call is accepted.
func TestRedeliveredIceIsNotDuplicated(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := ringIncoming(t, mgr, 500)
	conn, err := c.Connection(2)
	require.NoError(t, err)

	ri := receivedIce(t, 2, 1, 2)
	require.NoError(t, mgr.ReceiveIce(500, ri))
	require.NoError(t, mgr.ReceiveIce(500, ri))
	require.NoError(t, mgr.ReceiveIce(500, receivedIce(t, 2, 2, 3)))

	pending := conn.PendingIce()
	require.Len(t, pending, 3)
	assert.Equal(t, candidates(t, 1, 2, 3), pending, "order is preserved")

	require.NoError(t, mgr.AcceptCall(500))
	assert.Empty(t, conn.PendingIce())
	assert.Equal(t, candidates(t, 1, 2, 3), platform.HandleFor(500, 2).RemoteIce())
	assert.Len(t, conn.RemoteIce(), 3)
}

func TestIncomingLocalIceHeldUntilAnswer(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.OnLocalIceCandidates(500, 2, candidates(t, 1)))
	assert.Empty(t, platform.Ices())

	require.NoError(t, mgr.AcceptCall(500))
	ices := platform.Ices()
	require.Len(t, ices, 1)
	require.NotNil(t, ices[0].Msg.ReceiverDeviceID)
	assert.Equal(t, signaling.DeviceID(2), *ices[0].Msg.ReceiverDeviceID)
}

func TestCallMessages(t *testing.T) {
	mgr, platform, _ := newTestManager(t)

	require.NoError(t, mgr.SendCallMessage([]byte("bob"), []byte("ring-intent")))
	assert.Equal(t, [][]byte{[]byte("ring-intent")}, platform.CallMessages())
	assert.Error(t, mgr.SendCallMessage([]byte("bob"), nil))

	msg, err := signaling.NewCallMessage([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mgr.ReceivedCallMessage(signaling.ReceivedCallMessage{SenderDeviceID: 2, Message: msg}))
	assert.ErrorIs(t, mgr.ReceivedCallMessage(signaling.ReceivedCallMessage{Message: msg, Age: time.Hour}), call.ErrStale)
	assert.Equal(t, [][]byte{[]byte("hello")}, platform.ReceivedCallMessages())
}

func TestCloseEndsActiveCall(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.Close())

	assert.Equal(t, call.CallStateEnded, c.State())
	assert.Contains(t, platform.Events(), call.EventEndedAppDroppedCall)
	_, err := mgr.PlaceCall(bob, signaling.MediaTypeAudio)
	assert.ErrorIs(t, err, call.ErrManagerClosed)
	assert.ErrorIs(t, mgr.ReceiveOffer(bob, 501, receivedOffer(t, signaling.MediaTypeAudio, 2, 0)), call.ErrManagerClosed)
	require.NoError(t, mgr.Close())
}

// TestOfferWaitsForEndingCallRelease delivers an offer while the previous
// call has ended but still holds the active slot.
func TestOfferWaitsForEndingCallRelease(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	callID, err := mgr.PlaceCall(bob, signaling.MediaTypeAudio, 1)
	require.NoError(t, err)

	closing := make(chan struct{})
	proceed := make(chan struct{})
	platform.HandleFor(callID, 1).OnClose(func() {
		close(closing)
		<-proceed
	})

	hungUp := make(chan error, 1)
	go func() { hungUp <- mgr.ReceiveHangup(callID, receivedHangup(signaling.HangupNormal, 0, 1)) }()
	select {
	case <-closing:
	case <-time.After(5 * time.Second):
		t.Fatal("hangup never closed the connection")
	}

	ro := receivedOffer(t, signaling.MediaTypeAudio, 3, time.Second)
	offered := make(chan error, 1)
	go func() { offered <- mgr.ReceiveOffer(alice, 900, ro) }()
	select {
	case err := <-offered:
		t.Fatalf("offer handled before the slot was released: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(proceed)
	require.NoError(t, <-hungUp)
	require.NoError(t, <-offered)

	c := mgr.ActiveCall()
	require.NotNil(t, c)
	assert.Equal(t, signaling.CallID(900), c.ID())
	assert.Equal(t, call.DirectionIncoming, c.Direction())
	assert.LessOrEqual(t, platform.Comparisons(), 1, "waiting does not poll the active call")
}
