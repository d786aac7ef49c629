package call_test

import (
	"testing"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/signaling"
	"github.com/opd-ai/callcore/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// party is one side of a call between two managers.
type party struct {
	mgr      *call.Manager
	platform *sim.Platform
}

func newParty(t *testing.T) party {
	t.Helper()
	mgr, platform, _ := newTestManager(t)
	return party{mgr: mgr, platform: platform}
}

// ringBob places a call from alice to bob's primary device and delivers
// the offer to bob.
func ringBob(t *testing.T, a, b party) signaling.CallID {
	t.Helper()
	callID, err := a.mgr.PlaceCall(bob, signaling.MediaTypeAudio, signaling.PrimaryDeviceID)
	require.NoError(t, err)
	offers := a.platform.Offers()
	require.Len(t, offers, 1)

	require.NoError(t, b.mgr.ReceiveOffer(alice, callID, signaling.ReceivedOffer{
		Offer:                   offers[0].Msg.Offer,
		SenderDeviceID:          signaling.PrimaryDeviceID,
		SenderFeatureLevel:      signaling.FeatureLevelMultiRing,
		ReceiverDeviceID:        signaling.PrimaryDeviceID,
		ReceiverDeviceIsPrimary: true,
	}))
	return callID
}

func deliverAnswer(t *testing.T, from, to party, callID signaling.CallID) {
	t.Helper()
	answers := from.platform.Answers()
	require.Len(t, answers, 1)
	require.NoError(t, to.mgr.ReceiveAnswer(callID, signaling.ReceivedAnswer{
		Answer:             answers[0].Msg.Answer,
		SenderDeviceID:     signaling.PrimaryDeviceID,
		SenderFeatureLevel: signaling.FeatureLevelMultiRing,
	}))
}

func deliverHangups(t *testing.T, from, to party, callID signaling.CallID) {
	t.Helper()
	for _, h := range from.platform.Hangups() {
		require.NoError(t, to.mgr.ReceiveHangup(callID, signaling.ReceivedHangup{
			Hangup:         h.Msg.Hangup,
			SenderDeviceID: signaling.PrimaryDeviceID,
		}))
	}
}

// TestAcceptedCallSurvivesCalleeHangupBroadcast accepts a call and hands
// the callee's answer and accepted hangup back to the caller.
func TestAcceptedCallSurvivesCalleeHangupBroadcast(t *testing.T) {
	a, b := newParty(t), newParty(t)
	callID := ringBob(t, a, b)
	require.NoError(t, b.mgr.AcceptCall(callID))

	hangups := b.platform.Hangups()
	require.Len(t, hangups, 1)
	require.Equal(t, signaling.HangupAcceptedOnAnotherDevice, hangups[0].Msg.Hangup.Type)

	deliverAnswer(t, b, a, callID)
	deliverHangups(t, b, a, callID)

	c := a.mgr.ActiveCall()
	require.NotNil(t, c, "caller call must survive the accept")
	assert.Equal(t, callID, c.ID())
	assert.Equal(t, call.CallStateNegotiating, c.State())
	_, ended := a.mgr.EndedReason(callID)
	assert.False(t, ended)

	require.NoError(t, a.mgr.OnConnectionMediaConnected(callID, signaling.PrimaryDeviceID))
	require.NoError(t, b.mgr.OnConnectionMediaConnected(callID, signaling.PrimaryDeviceID))
	assert.Equal(t, call.CallStateConnected, c.State())
	assert.Equal(t, call.CallStateConnected, b.mgr.ActiveCall().State())
}

// TestAcceptedHangupBeforeAnswer delivers the accepted hangup ahead of the
// answer, as an unordered transport may.
func TestAcceptedHangupBeforeAnswer(t *testing.T) {
	a, b := newParty(t), newParty(t)
	callID := ringBob(t, a, b)
	require.NoError(t, b.mgr.AcceptCall(callID))

	deliverHangups(t, b, a, callID)
	c := a.mgr.ActiveCall()
	require.NotNil(t, c)
	assert.Equal(t, call.CallStateRinging, c.State())

	deliverAnswer(t, b, a, callID)
	assert.Equal(t, call.CallStateNegotiating, c.State())
}

func TestDeclinedByCalleeEndsOutgoingCall(t *testing.T) {
	a, b := newParty(t), newParty(t)
	callID := ringBob(t, a, b)
	require.NoError(t, b.mgr.DeclineCall(callID))

	deliverHangups(t, b, a, callID)

	assert.Nil(t, a.mgr.ActiveCall())
	reason, ok := a.mgr.EndedReason(callID)
	require.True(t, ok)
	assert.Equal(t, call.EndReasonDeclined, reason)
}

func TestLateElsewhereHangupIgnoredOnAnsweredCall(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := connectOutgoing(t, mgr)

	require.NoError(t, mgr.ReceiveHangup(c.ID(), receivedHangup(signaling.HangupDeclinedOnAnotherDevice, 2, 2)))
	require.NoError(t, mgr.ReceiveHangup(c.ID(), receivedHangup(signaling.HangupBusyOnAnotherDevice, 3, 3)))

	assert.Equal(t, call.CallStateConnected, c.State())
	assert.NotContains(t, platform.Events(), call.EventEndedRemoteHangupDeclined)
}

func TestElsewhereHangupIgnoredAfterLocalAccept(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	c := ringIncoming(t, mgr, 500)
	require.NoError(t, mgr.AcceptCall(500))

	require.NoError(t, mgr.ReceiveHangup(500, receivedHangup(signaling.HangupAcceptedOnAnotherDevice, 3, 2)))

	assert.Equal(t, call.CallStateNegotiating, c.State())
}
