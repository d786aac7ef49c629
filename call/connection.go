package call

import (
	"time"

	"github.com/opd-ai/callcore/signaling"
)

// Connection is one local to remote-device leg of a Call. Its state is
// guarded by the owning Call's lock; a Connection never outlives its Call.
type Connection struct {
	call           *Call
	remoteDeviceID signaling.DeviceID
	connType       ConnectionType
	handle         ConnectionHandle
	createdAt      time.Time

	state              ConnectionState
	remoteFeatureLevel signaling.FeatureLevel
	remoteOffer        signaling.Offer
	remoteDescApplied  bool
	seenIce            map[string]struct{}
	pendingIce         []signaling.IceCandidate
	appliedIce         []signaling.IceCandidate
	localIce           []signaling.IceCandidate
	mediaReady         bool
	videoKnown         bool
	videoEnabled       bool
}

func newConnection(c *Call, deviceID signaling.DeviceID, connType ConnectionType, handle ConnectionHandle, now time.Time) *Connection {
	return &Connection{
		call:           c,
		remoteDeviceID: deviceID,
		connType:       connType,
		handle:         handle,
		createdAt:      now,
		state:          ConnectionStateIdle,
		seenIce:        make(map[string]struct{}),
	}
}

// Call returns the owning call.
func (conn *Connection) Call() *Call { return conn.call }

// RemoteDeviceID returns the remote device of this leg.
func (conn *Connection) RemoteDeviceID() signaling.DeviceID { return conn.remoteDeviceID }

// Type returns the connection type.
func (conn *Connection) Type() ConnectionType { return conn.connType }

// Handle returns the native handle bound to this leg.
func (conn *Connection) Handle() ConnectionHandle { return conn.handle }

// State returns the negotiation state.
func (conn *Connection) State() ConnectionState {
	conn.call.mu.Lock()
	defer conn.call.mu.Unlock()
	return conn.state
}

// RemoteFeatureLevel returns the feature level learned from the remote device.
func (conn *Connection) RemoteFeatureLevel() signaling.FeatureLevel {
	conn.call.mu.Lock()
	defer conn.call.mu.Unlock()
	return conn.remoteFeatureLevel
}

// PendingIce returns remote candidates buffered until the remote
// description is applied.
func (conn *Connection) PendingIce() []signaling.IceCandidate {
	conn.call.mu.Lock()
	defer conn.call.mu.Unlock()
	return append([]signaling.IceCandidate(nil), conn.pendingIce...)
}

// RemoteIce returns every distinct remote candidate in arrival order.
func (conn *Connection) RemoteIce() []signaling.IceCandidate {
	conn.call.mu.Lock()
	defer conn.call.mu.Unlock()
	out := append([]signaling.IceCandidate(nil), conn.appliedIce...)
	return append(out, conn.pendingIce...)
}

// addRemoteIceLocked drops duplicates and either buffers the new candidates
// or returns them for immediate application.
func (conn *Connection) addRemoteIceLocked(candidates []signaling.IceCandidate) []signaling.IceCandidate {
	var fresh []signaling.IceCandidate
	for _, cand := range candidates {
		key := cand.Key()
		if _, dup := conn.seenIce[key]; dup {
			continue
		}
		conn.seenIce[key] = struct{}{}
		fresh = append(fresh, cand)
	}
	if len(fresh) == 0 {
		return nil
	}
	if !conn.remoteDescApplied {
		conn.pendingIce = append(conn.pendingIce, fresh...)
		return nil
	}
	conn.appliedIce = append(conn.appliedIce, fresh...)
	return fresh
}

// applyRemoteDescriptionLocked marks the remote description applied and
// returns the buffered candidates for application.
func (conn *Connection) applyRemoteDescriptionLocked() []signaling.IceCandidate {
	conn.remoteDescApplied = true
	pending := conn.pendingIce
	conn.pendingIce = nil
	conn.appliedIce = append(conn.appliedIce, pending...)
	return pending
}

// endLocked moves the leg to Ended and schedules the handle close.
func (conn *Connection) endLocked(fx *outbox) bool {
	if conn.state == ConnectionStateEnded {
		return false
	}
	conn.state = ConnectionStateEnded
	conn.pendingIce = nil
	conn.localIce = nil
	handle := conn.handle
	m := conn.call.manager
	callID := conn.call.id
	fx.add(func() {
		if err := handle.Close(); err != nil {
			m.reportFailure("close_connection", callID, err)
		}
	})
	return true
}
