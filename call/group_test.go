package call_test

import (
	"testing"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/metrics"
	"github.com/opd-ai/callcore/sim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const relayURL = "https://relay.example.org"

var testGroup = groupcall.GroupID{0xab, 0xcd}

// joinGroup creates a client and drives it up to the pending relay request.
func joinGroup(t *testing.T, mgr *call.Manager, platform *sim.Platform) (groupcall.ClientID, uint32) {
	t.Helper()
	id, err := mgr.CreateGroupCallClient(testGroup, relayURL)
	require.NoError(t, err)
	require.NoError(t, mgr.JoinGroupCall(id))
	require.NoError(t, mgr.SetMembershipProof(id, []byte("proof")))
	reqs := platform.HTTPRequests()
	require.NotEmpty(t, reqs)
	return id, reqs[len(reqs)-1].RequestID
}

func TestGroupJoinThroughManager(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	id, reqID := joinGroup(t, mgr, platform)

	assert.Equal(t, []groupcall.ClientID{id}, platform.ProofRequests())
	assert.Equal(t, []groupcall.ClientID{id}, platform.MemberRequests())
	req := platform.HTTPRequests()[0].Request
	assert.Equal(t, groupcall.HTTPMethodPut, req.Method)
	assert.Equal(t, relayURL+"/v1/conference/participants", req.URL)

	require.NoError(t, mgr.ReceivedHTTPResponse(reqID, 200, []byte(`{"demuxId":7}`)))
	client, err := mgr.GroupClient(id)
	require.NoError(t, err)
	state, demux := client.JoinState()
	assert.Equal(t, groupcall.JoinStateJoined, state)
	assert.Equal(t, groupcall.DemuxID(7), demux)
	assert.Equal(t, groupcall.ConnectionStateConnected, client.ConnectionState())

	err = mgr.ReceivedHTTPResponse(reqID, 200, []byte(`{"demuxId":7}`))
	assert.ErrorIs(t, err, call.ErrUnknownHTTPRequest)
	assert.True(t, call.IsProtocolError(err))
}

func TestGroupUnknownClient(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	assert.ErrorIs(t, mgr.JoinGroupCall(42), call.ErrNoSuchClient)
	assert.ErrorIs(t, mgr.DeleteGroupCallClient(42), call.ErrNoSuchClient)
	assert.ErrorIs(t, mgr.HTTPRequestFailed(42), call.ErrUnknownHTTPRequest)

	_, err := mgr.CreateGroupCallClient(testGroup, "ftp://relay")
	assert.ErrorIs(t, err, groupcall.ErrInvalidRelayURL)
}

func TestGroupRequestFailure(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	id, reqID := joinGroup(t, mgr, platform)

	require.NoError(t, mgr.HTTPRequestFailed(reqID))
	assert.Equal(t, []groupcall.EndReason{groupcall.EndReasonRelayError}, platform.GroupEnded(id))
}

func TestGroupSendFailure(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	platform.FailHTTP(sim.ErrInjected)
	id, err := mgr.CreateGroupCallClient(testGroup, relayURL)
	require.NoError(t, err)
	require.NoError(t, mgr.JoinGroupCall(id))

	require.NoError(t, mgr.SetMembershipProof(id, []byte("proof")))
	assert.Equal(t, []groupcall.EndReason{groupcall.EndReasonRelayError}, platform.GroupEnded(id))
}

// TestGroupDeleteDropsPendingRequest checks that a response arriving after
// the client was deleted is dropped.
func TestGroupDeleteDropsPendingRequest(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	id, reqID := joinGroup(t, mgr, platform)

	require.NoError(t, mgr.DeleteGroupCallClient(id))
	assert.Equal(t, []groupcall.EndReason{groupcall.EndReasonClientDeleted}, platform.GroupEnded(id))
	assert.ErrorIs(t, mgr.ReceivedHTTPResponse(reqID, 200, []byte(`{"demuxId":7}`)), call.ErrUnknownHTTPRequest)
	_, err := mgr.GroupClient(id)
	assert.ErrorIs(t, err, call.ErrNoSuchClient)
}

func TestGroupLateProofAfterLeave(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	id, err := mgr.CreateGroupCallClient(testGroup, relayURL)
	require.NoError(t, err)
	require.NoError(t, mgr.JoinGroupCall(id))
	require.NoError(t, mgr.LeaveGroupCall(id))

	require.NoError(t, mgr.SetMembershipProof(id, []byte("proof")))
	assert.Empty(t, platform.HTTPRequests())
	assert.Equal(t, []groupcall.EndReason{groupcall.EndReasonUserLeft}, platform.GroupEnded(id))
}

func TestGroupRosterAndMediaThroughManager(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	id, reqID := joinGroup(t, mgr, platform)
	require.NoError(t, mgr.ReceivedHTTPResponse(reqID, 200, []byte(`{"demuxId":7}`)))

	require.NoError(t, mgr.SetGroupRemoteDevices(id, []groupcall.RemoteDeviceState{
		{DemuxID: 7, UserID: groupcall.UserID("me")},
		{DemuxID: 8, UserID: groupcall.UserID("bob")},
	}))
	require.Len(t, platform.Roster(id), 1, "local demux id is never in the roster")

	muted := true
	require.NoError(t, mgr.UpdateGroupRemoteDevice(id, groupcall.RemoteDeviceState{DemuxID: 9, UserID: groupcall.UserID("carol"), AudioMuted: &muted}))
	assert.Len(t, platform.Roster(id), 2)

	require.NoError(t, mgr.GroupIncomingVideoTrack(id, 9, "carol-video"))
	assert.Equal(t, []groupcall.DemuxID{9}, platform.VideoTracks())

	require.NoError(t, mgr.RemoveGroupRemoteDevice(id, 9))
	assert.Len(t, platform.Roster(id), 1)

	err := mgr.GroupIncomingVideoTrack(id, 9, "carol-video")
	assert.ErrorIs(t, err, call.ErrUnknownParticipant)
	assert.True(t, call.IsProtocolError(err))
	assert.Len(t, platform.VideoTracks(), 1)

	members := []groupcall.UserID{groupcall.UserID("bob"), groupcall.UserID("me")}
	require.NoError(t, mgr.SetGroupJoinedMembers(id, members))
	assert.Equal(t, members, platform.JoinedMembers(id))
}

func TestGroupRosterUnknownClient(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	assert.ErrorIs(t, mgr.SetGroupJoinedMembers(42, nil), call.ErrNoSuchClient)
	assert.ErrorIs(t, mgr.SetGroupRemoteDevices(42, nil), call.ErrNoSuchClient)
	assert.ErrorIs(t, mgr.UpdateGroupRemoteDevice(42, groupcall.RemoteDeviceState{DemuxID: 1}), call.ErrNoSuchClient)
	assert.ErrorIs(t, mgr.RemoveGroupRemoteDevice(42, 1), call.ErrNoSuchClient)
	assert.ErrorIs(t, mgr.GroupIncomingVideoTrack(42, 1, nil), call.ErrNoSuchClient)
}

func TestGroupClientsEndOnClose(t *testing.T) {
	mgr, platform, _ := newTestManager(t)
	id, _ := joinGroup(t, mgr, platform)

	require.NoError(t, mgr.Close())
	assert.Equal(t, []groupcall.EndReason{groupcall.EndReasonClientDeleted}, platform.GroupEnded(id))
	_, err := mgr.CreateGroupCallClient(testGroup, relayURL)
	assert.ErrorIs(t, err, call.ErrManagerClosed)
}

// TestManagerRecordsMetrics drives a short call and a group session through
// a manager wired to a registry.
func TestManagerRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := metrics.New(reg)
	require.NoError(t, err)
	platform := sim.NewPlatform()
	mgr, err := call.NewManager(platform, call.DefaultConfig(), recorder)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	c := connectOutgoing(t, mgr)
	require.NoError(t, mgr.HangupCall(c.ID()))

	id, err := mgr.CreateGroupCallClient(testGroup, relayURL)
	require.NoError(t, err)
	require.NoError(t, mgr.JoinGroupCall(id))
	require.NoError(t, mgr.LeaveGroupCall(id))

	for _, name := range []string{
		"callcore_calls_placed_total",
		"callcore_calls_ended_total",
		"callcore_signaling_sent_total",
		"callcore_group_clients_ended_total",
	} {
		count, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err)
		assert.Positive(t, count, name)
	}
	setups, err := testutil.GatherAndCount(reg, "callcore_call_setup_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, setups)
}
