package call_test

import (
	"testing"
	"time"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/signaling"
	"github.com/opd-ai/callcore/sim"
	"github.com/stretchr/testify/require"
)

type peer string

const (
	alice peer = "alice"
	bob   peer = "bob"
)

func newTestManager(t *testing.T) (*call.Manager, *sim.Platform, *sim.Clock) {
	t.Helper()
	platform := sim.NewPlatform()
	mgr, err := call.NewManager(platform, call.DefaultConfig(), nil)
	require.NoError(t, err)
	clock := sim.NewClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	mgr.SetTimeProvider(clock)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr, platform, clock
}

func receivedOffer(t *testing.T, mediaType signaling.MediaType, sender signaling.DeviceID, age time.Duration) signaling.ReceivedOffer {
	t.Helper()
	offer, err := sim.NewOffer(mediaType)
	require.NoError(t, err)
	return signaling.ReceivedOffer{
		Offer:                   offer,
		Age:                     age,
		SenderDeviceID:          sender,
		SenderFeatureLevel:      signaling.FeatureLevelMultiRing,
		ReceiverDeviceID:        signaling.PrimaryDeviceID,
		ReceiverDeviceIsPrimary: true,
	}
}

func receivedAnswer(t *testing.T, sender signaling.DeviceID) signaling.ReceivedAnswer {
	t.Helper()
	answer, err := sim.NewAnswer()
	require.NoError(t, err)
	return signaling.ReceivedAnswer{
		Answer:             answer,
		SenderDeviceID:     sender,
		SenderFeatureLevel: signaling.FeatureLevelMultiRing,
	}
}

func candidates(t *testing.T, ns ...int) []signaling.IceCandidate {
	t.Helper()
	out := make([]signaling.IceCandidate, 0, len(ns))
	for _, n := range ns {
		c, err := sim.NewCandidate(n)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func receivedIce(t *testing.T, sender signaling.DeviceID, ns ...int) signaling.ReceivedIce {
	t.Helper()
	ice, err := signaling.NewIce(candidates(t, ns...))
	require.NoError(t, err)
	return signaling.ReceivedIce{Ice: ice, SenderDeviceID: sender}
}

func receivedHangup(hangupType signaling.HangupType, deviceID, sender signaling.DeviceID) signaling.ReceivedHangup {
	return signaling.ReceivedHangup{
		Hangup:         signaling.NewHangup(hangupType, deviceID),
		SenderDeviceID: sender,
	}
}

// ringIncoming delivers a fresh offer from bob's device 2 and returns the call.
func ringIncoming(t *testing.T, mgr *call.Manager, callID signaling.CallID) *call.Call {
	t.Helper()
	require.NoError(t, mgr.ReceiveOffer(bob, callID, receivedOffer(t, signaling.MediaTypeAudio, 2, time.Second)))
	c := mgr.ActiveCall()
	require.NotNil(t, c)
	require.Equal(t, callID, c.ID())
	return c
}

func connectedCount(c *call.Call) int {
	n := 0
	for _, conn := range c.Connections() {
		if conn.State() == call.ConnectionStateConnected {
			n++
		}
	}
	return n
}
