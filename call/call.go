package call

import (
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/callcore/signaling"
	"github.com/sirupsen/logrus"
)

// Call is one logical 1:1 call. It owns an ordered set of Connections, one
// per remote device, and decides which of them becomes active. All state is
// guarded by mu; the lock is never held across a Platform or handle call.
type Call struct {
	id        signaling.CallID
	direction Direction
	mediaType signaling.MediaType
	remote    RemotePeer
	manager   *Manager
	createdAt time.Time

	// released is closed once the call no longer holds the active slot.
	released    chan struct{}
	releaseOnce sync.Once

	mu                sync.Mutex
	state             CallState
	endReason         EndReason
	connections       map[signaling.DeviceID]*Connection
	order             []signaling.DeviceID
	active            *Connection
	offerSent         bool
	answerSent        bool
	sentIce           map[string]struct{}
	reconnecting      bool
	incomingMedia     IncomingMedia
	incomingConnected bool
	connectedAt       time.Time
	endedAt           time.Time
}

func newCall(m *Manager, id signaling.CallID, direction Direction, mediaType signaling.MediaType, remote RemotePeer, now time.Time) *Call {
	return &Call{
		id:          id,
		direction:   direction,
		mediaType:   mediaType,
		remote:      remote,
		manager:     m,
		createdAt:   now,
		released:    make(chan struct{}),
		state:       CallStateIdle,
		connections: make(map[signaling.DeviceID]*Connection),
		sentIce:     make(map[string]struct{}),
	}
}

// ID returns the call id.
func (c *Call) ID() signaling.CallID { return c.id }

// Direction returns the call direction.
func (c *Call) Direction() Direction { return c.direction }

// MediaType returns the media type fixed by the offer.
func (c *Call) MediaType() signaling.MediaType { return c.mediaType }

// Remote returns the host's remote peer.
func (c *Call) Remote() RemotePeer { return c.remote }

// CreatedAt returns the creation time of the call.
func (c *Call) CreatedAt() time.Time { return c.createdAt }

// State returns the lifecycle state.
func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EndReason returns the terminal reason, or EndReasonNone while live.
func (c *Call) EndReason() EndReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endReason
}

// ConnectedAt returns when the call reached Connected, or the zero time.
func (c *Call) ConnectedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedAt
}

// EndedAt returns when the call ended, or the zero time.
func (c *Call) EndedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endedAt
}

// Connections returns the legs in creation order.
func (c *Call) Connections() []*Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Connection, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.connections[id])
	}
	return out
}

// Connection returns the leg for a remote device.
func (c *Call) Connection(deviceID signaling.DeviceID) (*Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.connections[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: device %d", ErrNoSuchDevice, deviceID)
	}
	return conn, nil
}

// ActiveConnection returns the active leg, or nil before one is chosen.
func (c *Call) ActiveConnection() *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Call) addConnectionLocked(conn *Connection) {
	c.connections[conn.remoteDeviceID] = conn
	c.order = append(c.order, conn.remoteDeviceID)
}

func (c *Call) liveConnectionsLocked() int {
	n := 0
	for _, conn := range c.connections {
		if conn.state != ConnectionStateEnded {
			n++
		}
	}
	return n
}

// endSiblingsLocked ends every leg other than keep.
func (c *Call) endSiblingsLocked(keep *Connection, fx *outbox) int {
	n := 0
	for _, id := range c.order {
		conn := c.connections[id]
		if conn != keep && conn.endLocked(fx) {
			n++
		}
	}
	return n
}

// endLocked moves the call to Ended and schedules the teardown: legs are
// closed, incoming media is unbound, the optional hangup is broadcast and
// the host is told the call concluded.
func (c *Call) endLocked(reason EndReason, event ApplicationEvent, hangup *signaling.Hangup, fx *outbox) bool {
	if c.state == CallStateEnded {
		return false
	}
	m := c.manager
	c.state = CallStateEnded
	c.endReason = reason
	c.endedAt = m.now()

	fx.add(func() { m.release(c, reason) })
	for _, id := range c.order {
		c.connections[id].endLocked(fx)
	}
	if c.incomingConnected {
		c.incomingConnected = false
		fx.add(func() {
			if err := m.platform.DisconnectIncomingMedia(c); err != nil {
				m.reportFailure("disconnect_incoming_media", c.id, err)
			}
		})
	}
	if hangup != nil {
		h := *hangup
		fx.add(func() { m.sendHangup(c, h) })
	}
	fx.add(func() { m.emitEvent(c, event) })
	fx.add(func() {
		if err := m.platform.OnCallConcluded(c.remote, c.id); err != nil {
			m.reportFailure("on_call_concluded", c.id, err)
		}
	})

	logrus.WithFields(logrus.Fields{
		"function":  "endLocked",
		"call_id":   c.id,
		"direction": c.direction.String(),
		"reason":    reason.String(),
		"event":     event.String(),
	}).Info("Call ended")
	return true
}

// routeLocalIceLocked decides where local candidates of conn go. Candidates
// are held until the offer or answer is out, broadcast while no responder
// is known, and targeted afterwards.
func (c *Call) routeLocalIceLocked(conn *Connection, candidates []signaling.IceCandidate, fx *outbox) {
	if conn.state == ConnectionStateEnded || len(candidates) == 0 {
		return
	}
	m := c.manager

	if c.direction == DirectionOutgoing && !c.offerSent || c.direction == DirectionIncoming && !c.answerSent {
		conn.localIce = append(conn.localIce, candidates...)
		return
	}

	if c.direction == DirectionOutgoing && c.active == nil {
		var fresh []signaling.IceCandidate
		for _, cand := range candidates {
			if _, sent := c.sentIce[cand.Key()]; sent {
				continue
			}
			c.sentIce[cand.Key()] = struct{}{}
			fresh = append(fresh, cand)
		}
		if len(fresh) > 0 {
			fx.add(func() { m.sendIce(c, fresh, nil) })
		}
		return
	}

	if c.active != nil && c.active != conn {
		return
	}
	deviceID := conn.remoteDeviceID
	batch := append([]signaling.IceCandidate(nil), candidates...)
	fx.add(func() { m.sendIce(c, batch, &deviceID) })
}

// flushLocalIceLocked routes the candidates held on every leg.
func (c *Call) flushLocalIceLocked(fx *outbox) {
	for _, id := range c.order {
		conn := c.connections[id]
		held := conn.localIce
		conn.localIce = nil
		c.routeLocalIceLocked(conn, held, fx)
	}
}

// connectLocked handles a native media-connected report for conn. The leg
// only reaches Connected once signaling is complete; an early report is
// remembered.
func (c *Call) connectLocked(conn *Connection, fx *outbox) {
	m := c.manager
	if conn.state == ConnectionStateEnded {
		return
	}
	if c.active != conn {
		if c.active != nil {
			conn.endLocked(fx)
			return
		}
		conn.mediaReady = true
		return
	}

	switch conn.state {
	case ConnectionStateConnected:
		if c.reconnecting {
			c.reconnecting = false
			fx.add(func() { m.emitEvent(c, EventReconnected) })
		}
		return
	case ConnectionStateIceExchanging:
		if !conn.remoteDescApplied {
			conn.mediaReady = true
			return
		}
	default:
		conn.mediaReady = true
		return
	}

	conn.state = ConnectionStateConnected
	c.state = CallStateConnected
	c.connectedAt = m.now()
	c.endSiblingsLocked(conn, fx)
	fx.add(func() { m.emitEvent(c, EventConnected) })
	setup := c.connectedAt.Sub(c.createdAt).Seconds()
	fx.add(func() { m.recorder.CallConnected(setup) })
	c.connectIncomingLocked(fx)

	logrus.WithFields(logrus.Fields{
		"function":  "connectLocked",
		"call_id":   c.id,
		"device_id": conn.remoteDeviceID,
	}).Info("Call connected")
}

func (c *Call) connectIncomingLocked(fx *outbox) {
	if c.incomingMedia == nil || c.incomingConnected || c.state != CallStateConnected {
		return
	}
	c.incomingConnected = true
	m := c.manager
	media := c.incomingMedia
	fx.add(func() {
		if err := m.platform.ConnectIncomingMedia(c.remote, c, media); err != nil {
			m.reportFailure("connect_incoming_media", c.id, err)
		}
	})
}
