package call

import (
	"fmt"

	"github.com/opd-ai/callcore/signaling"
	"github.com/sirupsen/logrus"
)

// Native engine callbacks. These arrive on engine-owned goroutines and are
// serialized per call by the call lock.

func (m *Manager) lookupConnection(callID signaling.CallID, deviceID signaling.DeviceID) (*Call, *Connection, error) {
	c, err := m.lookupCall(callID)
	if err != nil {
		return nil, nil, err
	}
	conn, err := c.Connection(deviceID)
	if err != nil {
		return nil, nil, err
	}
	return c, conn, nil
}

// OnLocalIceCandidates routes candidates gathered by the native engine for
// one leg to the remote.
func (m *Manager) OnLocalIceCandidates(callID signaling.CallID, deviceID signaling.DeviceID, candidates []signaling.IceCandidate) error {
	c, conn, err := m.lookupConnection(callID, deviceID)
	if err != nil {
		return err
	}
	var fx outbox
	c.mu.Lock()
	if c.state != CallStateEnded {
		c.routeLocalIceLocked(conn, candidates, &fx)
	}
	c.mu.Unlock()
	fx.flush()
	return nil
}

// OnConnectionMediaConnected reports that the native engine found a usable
// media path for one leg.
func (m *Manager) OnConnectionMediaConnected(callID signaling.CallID, deviceID signaling.DeviceID) error {
	c, conn, err := m.lookupConnection(callID, deviceID)
	if err != nil {
		return err
	}
	var fx outbox
	c.mu.Lock()
	if c.state != CallStateEnded {
		c.connectLocked(conn, &fx)
	}
	c.mu.Unlock()
	fx.flush()
	return nil
}

// OnConnectionMediaDisconnected reports a lost media path on a connected
// leg. The call stays up and reports Reconnecting.
func (m *Manager) OnConnectionMediaDisconnected(callID signaling.CallID, deviceID signaling.DeviceID) error {
	c, conn, err := m.lookupConnection(callID, deviceID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	notify := c.active == conn && conn.state == ConnectionStateConnected && !c.reconnecting
	if notify {
		c.reconnecting = true
	}
	c.mu.Unlock()
	if notify {
		logrus.WithFields(logrus.Fields{
			"function":  "OnConnectionMediaDisconnected",
			"call_id":   callID,
			"device_id": deviceID,
		}).Warn("Media path lost, reconnecting")
		m.emitEvent(c, EventReconnecting)
	}
	return nil
}

// OnConnectionFailed reports that a leg cannot be established. A failed
// active leg ends the call; a failed sibling ends only that leg unless no
// leg remains.
func (m *Manager) OnConnectionFailed(callID signaling.CallID, deviceID signaling.DeviceID) error {
	c, conn, err := m.lookupConnection(callID, deviceID)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"function":  "OnConnectionFailed",
		"call_id":   callID,
		"device_id": deviceID,
	}).Warn("Connection failed")

	var fx outbox
	c.mu.Lock()
	switch {
	case c.state == CallStateEnded:
	case c.active == conn:
		c.endLocked(EndReasonError, EventEndedConnectionFailure, normalHangup(), &fx)
	case c.active == nil:
		conn.endLocked(&fx)
		if c.liveConnectionsLocked() == 0 {
			c.endLocked(EndReasonError, EventEndedConnectionFailure, normalHangup(), &fx)
		}
	}
	c.mu.Unlock()
	fx.flush()
	return nil
}

// OnIncomingMediaStream binds the remote stream of the active leg to the
// host. The stream is connected once the call is connected.
func (m *Manager) OnIncomingMediaStream(callID signaling.CallID, deviceID signaling.DeviceID, stream MediaStream) error {
	c, conn, err := m.lookupConnection(callID, deviceID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	usable := c.state != CallStateEnded && c.active == conn && c.incomingMedia == nil
	c.mu.Unlock()
	if !usable {
		return nil
	}

	media, err := m.platform.CreateIncomingMedia(c, stream)
	if err != nil {
		m.reportFailure("create_incoming_media", callID, err)
		return nil
	}

	var fx outbox
	c.mu.Lock()
	if c.state != CallStateEnded && c.incomingMedia == nil {
		c.incomingMedia = media
		c.connectIncomingLocked(&fx)
	}
	c.mu.Unlock()
	fx.flush()
	return nil
}

// OnRemoteVideoStatus reports the remote's video send state on the active
// leg. Only changes are surfaced.
func (m *Manager) OnRemoteVideoStatus(callID signaling.CallID, deviceID signaling.DeviceID, enabled bool) error {
	c, conn, err := m.lookupConnection(callID, deviceID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.active != conn {
		c.mu.Unlock()
		return fmt.Errorf("%w: device %d is not active", ErrUnexpectedMessage, deviceID)
	}
	changed := !conn.videoKnown || conn.videoEnabled != enabled
	conn.videoKnown = true
	conn.videoEnabled = enabled
	c.mu.Unlock()

	if changed {
		event := EventRemoteVideoDisable
		if enabled {
			event = EventRemoteVideoEnable
		}
		m.emitEvent(c, event)
	}
	return nil
}
