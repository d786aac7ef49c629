package call_test

import (
	"math"
	"testing"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// placeToBob places an outgoing audio call to bob and returns its id. Ids at
// the edges of the range are skipped so neighbours can be built.
func placeToBob(t *testing.T, mgr *call.Manager) signaling.CallID {
	t.Helper()
	id, err := mgr.PlaceCall(bob, signaling.MediaTypeAudio)
	require.NoError(t, err)
	if id == 0 || id == math.MaxUint64 {
		t.Skip("call id at range boundary")
	}
	return id
}

// TestGlareWon checks that the local call survives when its id is lower.
func TestGlareWon(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	local := placeToBob(t, mgr)

	err := mgr.ReceiveOffer(bob, local+1, receivedOffer(t, signaling.MediaTypeAudio, 1, 0))

	assert.ErrorIs(t, err, call.ErrGlare)
	assert.True(t, call.IsProtocolError(err))
	active := mgr.ActiveCall()
	require.NotNil(t, active)
	assert.Equal(t, local, active.ID())
	assert.Equal(t, call.CallStateRinging, active.State())
	assert.Contains(t, platform.Events(), call.EventReceivedOfferWithGlare)
	assert.Empty(t, platform.Busys(), "glare is not busy")

	reason, ok := mgr.EndedReason(local + 1)
	require.True(t, ok)
	assert.Equal(t, call.EndReasonGlareLost, reason)
}

// TestGlareLost checks that the local call yields to a lower remote id and
// the remote offer rings.
func TestGlareLost(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	local := placeToBob(t, mgr)

	require.NoError(t, mgr.ReceiveOffer(bob, local-1, receivedOffer(t, signaling.MediaTypeAudio, 1, 0)))

	reason, ok := mgr.EndedReason(local)
	require.True(t, ok)
	assert.Equal(t, call.EndReasonGlareLost, reason)
	assert.Contains(t, platform.Events(), call.EventEndedRemoteGlare)

	active := mgr.ActiveCall()
	require.NotNil(t, active)
	assert.Equal(t, local-1, active.ID())
	assert.Equal(t, call.DirectionIncoming, active.Direction())
	assert.Equal(t, call.CallStateRinging, active.State())

	hangups := platform.Hangups()
	require.Len(t, hangups, 1)
	assert.Equal(t, local, hangups[0].CallID)
	assert.Equal(t, signaling.HangupNormal, hangups[0].Msg.Hangup.Type)
}

// TestGlareBetweenTwoManagers runs both sides of a simultaneous call and
// checks that they settle on the same call.
func TestGlareBetweenTwoManagers(t *testing.T) {
	aliceMgr, _, _ := newTestManager(t)
	bobMgr, _, _ := newTestManager(t)

	aliceCall, err := aliceMgr.PlaceCall(bob, signaling.MediaTypeVideo)
	require.NoError(t, err)
	bobCall, err := bobMgr.PlaceCall(alice, signaling.MediaTypeVideo)
	require.NoError(t, err)
	if aliceCall == bobCall {
		t.Skip("identical random call ids")
	}

	aliceErr := aliceMgr.ReceiveOffer(bob, bobCall, receivedOffer(t, signaling.MediaTypeVideo, 1, 0))
	bobErr := bobMgr.ReceiveOffer(alice, aliceCall, receivedOffer(t, signaling.MediaTypeVideo, 1, 0))

	winner := min(aliceCall, bobCall)
	require.NotNil(t, aliceMgr.ActiveCall())
	require.NotNil(t, bobMgr.ActiveCall())
	assert.Equal(t, winner, aliceMgr.ActiveCall().ID())
	assert.Equal(t, winner, bobMgr.ActiveCall().ID())

	if winner == aliceCall {
		assert.ErrorIs(t, aliceErr, call.ErrGlare)
		assert.NoError(t, bobErr)
		assert.Equal(t, call.DirectionOutgoing, aliceMgr.ActiveCall().Direction())
		assert.Equal(t, call.DirectionIncoming, bobMgr.ActiveCall().Direction())
	} else {
		assert.NoError(t, aliceErr)
		assert.ErrorIs(t, bobErr, call.ErrGlare)
		assert.Equal(t, call.DirectionIncoming, aliceMgr.ActiveCall().Direction())
		assert.Equal(t, call.DirectionOutgoing, bobMgr.ActiveCall().Direction())
	}
}

func TestOfferFromSameRemoteAfterConnectIsBusy(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := connectOutgoing(t, mgr)

	require.NoError(t, mgr.ReceiveOffer(bob, c.ID()+1, receivedOffer(t, signaling.MediaTypeAudio, 1, 0)))

	assert.Len(t, platform.Busys(), 1)
	assert.Equal(t, call.CallStateConnected, c.State())
	assert.NotContains(t, platform.Events(), call.EventReceivedOfferWithGlare)
}

func TestOfferFromSameRemoteWhileRingingIncomingIsBusy(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	c := ringIncoming(t, mgr, 500)

	require.NoError(t, mgr.ReceiveOffer(bob, 400, receivedOffer(t, signaling.MediaTypeAudio, 2, 0)))

	assert.Len(t, platform.Busys(), 1)
	assert.Equal(t, c, mgr.ActiveCall())
}
