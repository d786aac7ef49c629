package call

import (
	"fmt"

	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/limits"
	"github.com/sirupsen/logrus"
)

// groupObserver forwards group call notifications to the platform and
// records session ends.
type groupObserver struct {
	groupcall.Observer
	m *Manager
}

func (o groupObserver) HandleEnded(clientID groupcall.ClientID, reason groupcall.EndReason) {
	o.m.recorder.GroupEnded(reason.String())
	o.Observer.HandleEnded(clientID, reason)
}

// CreateGroupCallClient registers a disconnected group call client.
func (m *Manager) CreateGroupCallClient(groupID groupcall.GroupID, relayURL string) (groupcall.ClientID, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrManagerClosed
	}
	id := m.nextClientID
	m.nextClientID++
	m.mu.Unlock()

	client, err := groupcall.NewClient(id, groupID, relayURL, groupObserver{Observer: m.platform, m: m}, m, m, m.config.Group)
	if err != nil {
		return 0, fmt.Errorf("create group call client: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrManagerClosed
	}
	m.groupClients[id] = client
	m.mu.Unlock()
	m.recorder.GroupClientCreated()
	return id, nil
}

// DeleteGroupCallClient ends and removes a client.
func (m *Manager) DeleteGroupCallClient(clientID groupcall.ClientID) error {
	m.mu.Lock()
	client, ok := m.groupClients[clientID]
	if ok {
		delete(m.groupClients, clientID)
		for reqID, owner := range m.httpRequests {
			if owner == clientID {
				delete(m.httpRequests, reqID)
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchClient, clientID)
	}
	client.End(groupcall.EndReasonClientDeleted)
	m.recorder.GroupClientDeleted()
	return nil
}

// GroupClient returns a registered client.
func (m *Manager) GroupClient(clientID groupcall.ClientID) (*groupcall.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.groupClients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchClient, clientID)
	}
	return client, nil
}

// JoinGroupCall starts joining the group call of a client.
func (m *Manager) JoinGroupCall(clientID groupcall.ClientID) error {
	client, err := m.GroupClient(clientID)
	if err != nil {
		return err
	}
	return client.Join()
}

// LeaveGroupCall leaves the group call of a client.
func (m *Manager) LeaveGroupCall(clientID groupcall.ClientID) error {
	client, err := m.GroupClient(clientID)
	if err != nil {
		return err
	}
	client.Leave()
	return nil
}

// SetMembershipProof delivers a requested membership proof.
func (m *Manager) SetMembershipProof(clientID groupcall.ClientID, proof []byte) error {
	client, err := m.GroupClient(clientID)
	if err != nil {
		return err
	}
	client.SetMembershipProof(proof)
	return nil
}

// SetGroupMembers delivers a requested group member list.
func (m *Manager) SetGroupMembers(clientID groupcall.ClientID, members []groupcall.UserID) error {
	client, err := m.GroupClient(clientID)
	if err != nil {
		return err
	}
	client.SetGroupMembers(members)
	return nil
}

// SetGroupJoinedMembers delivers the relay-confirmed member set.
func (m *Manager) SetGroupJoinedMembers(clientID groupcall.ClientID, members []groupcall.UserID) error {
	client, err := m.GroupClient(clientID)
	if err != nil {
		return err
	}
	client.SetJoinedMembers(members)
	return nil
}

// SetGroupRemoteDevices replaces the roster of a client.
func (m *Manager) SetGroupRemoteDevices(clientID groupcall.ClientID, devices []groupcall.RemoteDeviceState) error {
	client, err := m.GroupClient(clientID)
	if err != nil {
		return err
	}
	client.SetRemoteDevices(devices)
	return nil
}

// UpdateGroupRemoteDevice replaces or adds one roster entry.
func (m *Manager) UpdateGroupRemoteDevice(clientID groupcall.ClientID, state groupcall.RemoteDeviceState) error {
	client, err := m.GroupClient(clientID)
	if err != nil {
		return err
	}
	client.UpdateRemoteDevice(state)
	return nil
}

// RemoveGroupRemoteDevice drops one roster entry.
func (m *Manager) RemoveGroupRemoteDevice(clientID groupcall.ClientID, demuxID groupcall.DemuxID) error {
	client, err := m.GroupClient(clientID)
	if err != nil {
		return err
	}
	client.RemoveRemoteDevice(demuxID)
	return nil
}

// GroupIncomingVideoTrack routes a remote video track to the host. A track
// for a participant outside the roster is dropped with ErrUnknownParticipant.
func (m *Manager) GroupIncomingVideoTrack(clientID groupcall.ClientID, demuxID groupcall.DemuxID, track groupcall.VideoTrack) error {
	client, err := m.GroupClient(clientID)
	if err != nil {
		return err
	}
	if !client.OnIncomingVideoTrack(demuxID, track) {
		return fmt.Errorf("%w: demux %d", ErrUnknownParticipant, demuxID)
	}
	return nil
}

// AllocateHTTPRequest reserves a request id owned by a client.
func (m *Manager) AllocateHTTPRequest(clientID groupcall.ClientID) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		m.nextRequestID++
		if _, taken := m.httpRequests[m.nextRequestID]; !taken {
			break
		}
	}
	m.httpRequests[m.nextRequestID] = clientID
	return m.nextRequestID
}

// SendHTTPRequest proxies a request through the platform.
func (m *Manager) SendHTTPRequest(requestID uint32, req groupcall.HTTPRequest) error {
	if err := limits.ValidateHTTPBody(req.Body); err != nil {
		m.forgetRequest(requestID)
		return err
	}
	logrus.WithFields(logrus.Fields{
		"function":   "SendHTTPRequest",
		"request_id": requestID,
		"method":     req.Method.String(),
		"url":        req.URL,
	}).Debug("Proxying HTTP request")
	if err := m.platform.SendHTTPRequest(requestID, req); err != nil {
		m.forgetRequest(requestID)
		m.reportFailure("send_http_request", 0, err)
		return err
	}
	return nil
}

func (m *Manager) forgetRequest(requestID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.httpRequests, requestID)
}

func (m *Manager) takeRequest(requestID uint32) (*groupcall.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clientID, ok := m.httpRequests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHTTPRequest, requestID)
	}
	delete(m.httpRequests, requestID)
	client, ok := m.groupClients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHTTPRequest, requestID)
	}
	return client, nil
}

// ReceivedHTTPResponse completes a proxied request.
func (m *Manager) ReceivedHTTPResponse(requestID uint32, status int, body []byte) error {
	client, err := m.takeRequest(requestID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "ReceivedHTTPResponse",
			"request_id": requestID,
		}).Info("Dropping response for unknown request")
		return err
	}
	client.HandleHTTPResponse(requestID, status, body)
	return nil
}

// HTTPRequestFailed completes a proxied request that got no response.
func (m *Manager) HTTPRequestFailed(requestID uint32) error {
	client, err := m.takeRequest(requestID)
	if err != nil {
		return err
	}
	client.HandleHTTPFailure(requestID)
	return nil
}
