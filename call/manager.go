package call

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/metrics"
	"github.com/opd-ai/callcore/signaling"
	"github.com/sirupsen/logrus"
)

// Manager is the process-wide call orchestrator. It owns the single active
// 1:1 call slot and the group call clients, routes inbound signaling, user
// commands and native callbacks to them, and resolves glare.
//
// Lock order: Manager.mu may be held while acquiring a Call lock, never the
// reverse. Neither lock is held across a Platform call.
type Manager struct {
	platform Platform
	config   Config
	recorder *metrics.Recorder

	tpMu         sync.RWMutex
	timeProvider TimeProvider

	mu            sync.Mutex
	active        *Call
	ended         *lru.Cache[signaling.CallID, EndReason]
	groupClients  map[groupcall.ClientID]*groupcall.Client
	httpRequests  map[uint32]groupcall.ClientID
	nextClientID  groupcall.ClientID
	nextRequestID uint32
	closed        bool
}

// NewManager creates a manager bound to a platform. The recorder may be nil.
func NewManager(platform Platform, config Config, recorder *metrics.Recorder) (*Manager, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewManager",
	}).Info("Creating call manager")

	if platform == nil {
		return nil, errors.New("platform cannot be nil")
	}
	if err := config.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewManager",
			"error":    err.Error(),
		}).Error("Configuration validation failed")
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ended, err := lru.New[signaling.CallID, EndReason](config.EndedCallMemory)
	if err != nil {
		return nil, fmt.Errorf("ended call memory: %w", err)
	}

	m := &Manager{
		platform:     platform,
		config:       config,
		recorder:     recorder,
		timeProvider: DefaultTimeProvider{},
		ended:        ended,
		groupClients: make(map[groupcall.ClientID]*groupcall.Client),
		httpRequests: make(map[uint32]groupcall.ClientID),
		nextClientID: 1,
	}

	logrus.WithFields(logrus.Fields{
		"function":            "NewManager",
		"local_device_id":     config.LocalDeviceID,
		"offer_max_age":       config.OfferMaxAge,
		"negotiation_timeout": config.NegotiationTimeout,
	}).Info("Call manager created successfully")
	return m, nil
}

// SetTimeProvider replaces the clock used for timeouts. Intended for tests.
func (m *Manager) SetTimeProvider(tp TimeProvider) {
	m.tpMu.Lock()
	defer m.tpMu.Unlock()
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	m.timeProvider = tp
}

func (m *Manager) now() time.Time {
	m.tpMu.RLock()
	defer m.tpMu.RUnlock()
	return m.timeProvider.Now()
}

func (m *Manager) since(t time.Time) time.Duration {
	m.tpMu.RLock()
	defer m.tpMu.RUnlock()
	return m.timeProvider.Since(t)
}

// Now implements groupcall.Clock.
func (m *Manager) Now() time.Time { return m.now() }

// Config returns the manager policy.
func (m *Manager) Config() Config { return m.config }

// ActiveCall returns the call occupying the active slot, or nil.
func (m *Manager) ActiveCall() *Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// EndedReason reports the end reason of a recently ended call.
func (m *Manager) EndedReason(callID signaling.CallID) (EndReason, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended.Peek(callID)
}

func (m *Manager) newCallIDLocked() (signaling.CallID, error) {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("generate call id: %w", err)
		}
		id := signaling.CallID(binary.BigEndian.Uint64(buf[:]))
		if id == 0 || m.ended.Contains(id) || m.active != nil && m.active.id == id {
			continue
		}
		return id, nil
	}
}

// lookupCall resolves a call id to the live active call.
func (m *Manager) lookupCall(callID signaling.CallID) (*Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.id == callID {
		return m.active, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrStaleCallID, callID)
}

// release frees the active slot held by c and remembers its id as ended.
func (m *Manager) release(c *Call, reason EndReason) {
	m.mu.Lock()
	if m.active == c {
		m.active = nil
	}
	m.ended.Add(c.id, reason)
	m.mu.Unlock()
	c.releaseOnce.Do(func() { close(c.released) })
	m.recorder.CallEnded(reason.String())
}

func (m *Manager) rememberEnded(callID signaling.CallID, reason EndReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended.Add(callID, reason)
}

// endCall ends c if it is still live.
func (m *Manager) endCall(c *Call, reason EndReason, event ApplicationEvent, hangup *signaling.Hangup) bool {
	var fx outbox
	c.mu.Lock()
	ended := c.endLocked(reason, event, hangup, &fx)
	c.mu.Unlock()
	fx.flush()
	return ended
}

func normalHangup() *signaling.Hangup {
	h := signaling.NewHangup(signaling.HangupNormal, 0)
	return &h
}

func (m *Manager) createConnection(c *Call, deviceID signaling.DeviceID, connType ConnectionType) (*Connection, error) {
	handle, err := m.platform.CreateConnection(c, deviceID, connType, signaling.VersionV4)
	if err == nil && handle == nil {
		err = errors.New("platform returned no handle")
	}
	if err != nil {
		m.reportFailure("create_connection", c.id, err)
		return nil, fmt.Errorf("%w: device %d: %v", ErrConnectionCreation, deviceID, err)
	}
	return newConnection(c, deviceID, connType, handle, m.now()), nil
}

// PlaceCall starts an outgoing call. A leg is created for each listed
// device; with no devices listed the primary device is dialed and other
// devices are added when they answer.
func (m *Manager) PlaceCall(remote RemotePeer, mediaType signaling.MediaType, deviceIDs ...signaling.DeviceID) (signaling.CallID, error) {
	if !mediaType.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidMediaType, mediaType)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrManagerClosed
	}
	if m.active != nil {
		activeID := m.active.id
		m.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":       "PlaceCall",
			"active_call_id": activeID,
		}).Warn("Rejecting call, another call is active")
		return 0, ErrAlreadyInCall
	}
	id, err := m.newCallIDLocked()
	if err != nil {
		m.mu.Unlock()
		return 0, err
	}
	c := newCall(m, id, DirectionOutgoing, mediaType, remote, m.now())
	m.active = c
	m.mu.Unlock()

	m.recorder.CallPlaced(mediaType.String())
	logrus.WithFields(logrus.Fields{
		"function":   "PlaceCall",
		"call_id":    id,
		"media_type": mediaType.String(),
		"devices":    len(deviceIDs),
	}).Info("Placing call")

	if err := m.platform.OnStartCall(remote, id, DirectionOutgoing, mediaType); err != nil {
		m.reportFailure("on_start_call", id, err)
	}
	m.startOutgoing(c, uniqueDevices(deviceIDs))
	return id, nil
}

func uniqueDevices(ids []signaling.DeviceID) []signaling.DeviceID {
	if len(ids) == 0 {
		return []signaling.DeviceID{signaling.PrimaryDeviceID}
	}
	seen := make(map[signaling.DeviceID]bool, len(ids))
	out := make([]signaling.DeviceID, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (m *Manager) startOutgoing(c *Call, deviceIDs []signaling.DeviceID) {
	var legs []*Connection
	for _, deviceID := range deviceIDs {
		conn, err := m.createConnection(c, deviceID, ConnectionTypeNormal)
		if err != nil {
			continue
		}
		legs = append(legs, conn)
	}

	var fx outbox
	c.mu.Lock()
	if c.state == CallStateEnded {
		for _, conn := range legs {
			conn.endLocked(&fx)
		}
		c.mu.Unlock()
		fx.flush()
		return
	}
	if len(legs) == 0 {
		c.endLocked(EndReasonError, EventEndedInternalFailure, nil, &fx)
		c.mu.Unlock()
		fx.flush()
		return
	}
	for _, conn := range legs {
		c.addConnectionLocked(conn)
	}
	c.mu.Unlock()

	var offer signaling.Offer
	var offered []*Connection
	for _, conn := range legs {
		o, err := conn.handle.CreateOffer(c.mediaType)
		if err != nil {
			m.reportFailure("create_offer", c.id, err)
			c.mu.Lock()
			conn.endLocked(&fx)
			c.mu.Unlock()
			continue
		}
		if len(offered) == 0 {
			offer = o
		}
		offered = append(offered, conn)
	}

	c.mu.Lock()
	if c.state == CallStateEnded {
		c.mu.Unlock()
		fx.flush()
		return
	}
	if len(offered) == 0 {
		c.endLocked(EndReasonError, EventEndedInternalFailure, nil, &fx)
		c.mu.Unlock()
		fx.flush()
		return
	}
	for _, conn := range offered {
		if conn.state == ConnectionStateIdle {
			conn.state = ConnectionStateOfferSent
		}
	}
	c.state = CallStateRinging
	c.offerSent = true
	var iceFx outbox
	c.flushLocalIceLocked(&iceFx)
	c.mu.Unlock()
	fx.flush()

	if !m.sendOffer(c, offer) {
		return
	}
	iceFx.flush()
}

// forkConnection adds a leg for a device that answered without having been
// dialed explicitly.
func (m *Manager) forkConnection(c *Call, deviceID signaling.DeviceID) (*Connection, error) {
	conn, err := m.createConnection(c, deviceID, ConnectionTypeNormal)
	if err != nil {
		return nil, err
	}
	if _, err := conn.handle.CreateOffer(c.mediaType); err != nil {
		m.reportFailure("create_offer", c.id, err)
		_ = conn.handle.Close()
		return nil, fmt.Errorf("%w: device %d: %v", ErrConnectionCreation, deviceID, err)
	}

	c.mu.Lock()
	existing, raced := c.connections[deviceID]
	if c.state == CallStateEnded || raced {
		c.mu.Unlock()
		_ = conn.handle.Close()
		if raced {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrStaleCallID, c.id)
	}
	conn.state = ConnectionStateOfferSent
	c.addConnectionLocked(conn)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "forkConnection",
		"call_id":   c.id,
		"device_id": deviceID,
	}).Info("Added connection for answering device")
	return conn, nil
}

// AcceptCall answers the ringing incoming call.
func (m *Manager) AcceptCall(callID signaling.CallID) error {
	c, err := m.lookupCall(callID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNoActiveCall, callID)
	}

	c.mu.Lock()
	if c.direction != DirectionIncoming || c.state != CallStateRinging || len(c.order) == 0 {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: call %s is %s", ErrNoActiveCall, callID, state)
	}
	conn := c.connections[c.order[0]]
	if conn.state != ConnectionStateOfferReceived {
		c.mu.Unlock()
		return fmt.Errorf("%w: connection is %s", ErrNoActiveCall, conn.state)
	}
	c.state = CallStateNegotiating
	c.active = conn
	offer := conn.remoteOffer
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "AcceptCall",
		"call_id":   callID,
		"device_id": conn.remoteDeviceID,
	}).Info("Accepting call")

	answer, err := conn.handle.AcceptOffer(offer)
	if err != nil {
		m.reportFailure("accept_offer", callID, err)
		m.endCall(c, EndReasonError, EventEndedInternalFailure, normalHangup())
		return fmt.Errorf("accept offer: %w", err)
	}

	var fx outbox
	c.mu.Lock()
	if c.state == CallStateEnded {
		c.mu.Unlock()
		return nil
	}
	conn.state = ConnectionStateIceExchanging
	pending := conn.applyRemoteDescriptionLocked()
	c.answerSent = true
	hangup := signaling.NewHangup(signaling.HangupAcceptedOnAnotherDevice, m.config.LocalDeviceID)
	fx.add(func() { m.sendHangup(c, hangup) })
	fx.add(func() { m.emitEvent(c, EventLocalAccepted) })
	c.flushLocalIceLocked(&fx)
	if conn.mediaReady {
		c.connectLocked(conn, &fx)
	}
	c.mu.Unlock()

	if !m.sendAnswer(c, conn.remoteDeviceID, answer) {
		return nil
	}
	m.applyRemoteIce(c, conn, pending)
	fx.flush()
	return nil
}

// DeclineCall rejects the ringing incoming call.
func (m *Manager) DeclineCall(callID signaling.CallID) error {
	c, err := m.lookupCall(callID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNoActiveCall, callID)
	}
	c.mu.Lock()
	if c.direction != DirectionIncoming || c.state != CallStateRinging {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: call %s is %s", ErrNoActiveCall, callID, state)
	}
	hangup := signaling.NewHangup(signaling.HangupDeclinedOnAnotherDevice, m.config.LocalDeviceID)
	var fx outbox
	c.endLocked(EndReasonDeclined, EventEndedLocalHangup, &hangup, &fx)
	c.mu.Unlock()
	fx.flush()
	return nil
}

// HangupCall ends the call locally. Hanging up a call that already ended is
// a no-op.
func (m *Manager) HangupCall(callID signaling.CallID) error {
	c, err := m.lookupCall(callID)
	if err != nil {
		if _, ended := m.EndedReason(callID); ended {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrNoActiveCall, callID)
	}
	logrus.WithFields(logrus.Fields{
		"function": "HangupCall",
		"call_id":  callID,
	}).Info("Hanging up call")
	m.endCall(c, EndReasonNormal, EventEndedLocalHangup, normalHangup())
	return nil
}

// MessageSent reports that the transport delivered a message for callID.
func (m *Manager) MessageSent(callID signaling.CallID) {
	logrus.WithFields(logrus.Fields{
		"function": "MessageSent",
		"call_id":  callID,
	}).Debug("Signaling message delivered")
}

// MessageSendFailure reports that the transport failed to deliver a message
// for callID. A call that has not connected yet ends with Error.
func (m *Manager) MessageSendFailure(callID signaling.CallID) error {
	c, err := m.lookupCall(callID)
	if err != nil {
		return err
	}
	if c.State() == CallStateConnected {
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"function": "MessageSendFailure",
		"call_id":  callID,
	}).Warn("Signaling delivery failed before connect")
	m.endCall(c, EndReasonError, EventEndedSignalingFailure, nil)
	return nil
}

// SendCallMessage relays an opaque application message to a user.
func (m *Manager) SendCallMessage(recipientUUID []byte, message []byte) error {
	msg, err := signaling.NewCallMessage(message)
	if err != nil {
		return fmt.Errorf("call message: %w", err)
	}
	if err := m.platform.SendCallMessage(recipientUUID, msg); err != nil {
		m.reportFailure("send_call_message", 0, err)
		return fmt.Errorf("send call message: %w", err)
	}
	m.recorder.SignalingSent("call_message")
	return nil
}

// ReceivedCallMessage hands an inbound application message to the host.
func (m *Manager) ReceivedCallMessage(rcm signaling.ReceivedCallMessage) error {
	if rcm.Age > m.config.OfferMaxAge {
		logrus.WithFields(logrus.Fields{
			"function": "ReceivedCallMessage",
			"age":      rcm.Age,
		}).Info("Dropping expired call message")
		return fmt.Errorf("%w: call message age %s", ErrStale, rcm.Age)
	}
	if err := m.platform.OnReceivedCallMessage(rcm.SenderUUID, rcm.SenderDeviceID, rcm.Message); err != nil {
		m.reportFailure("on_received_call_message", 0, err)
	}
	return nil
}

// Iterate evaluates timeouts once.
func (m *Manager) Iterate() {
	m.mu.Lock()
	c := m.active
	clients := make([]*groupcall.Client, 0, len(m.groupClients))
	for _, client := range m.groupClients {
		clients = append(clients, client)
	}
	m.mu.Unlock()

	now := m.now()
	if c != nil {
		c.mu.Lock()
		pending := c.state != CallStateConnected && c.state != CallStateEnded
		createdAt := c.createdAt
		c.mu.Unlock()
		if age := m.since(createdAt); pending && age > m.config.NegotiationTimeout {
			logrus.WithFields(logrus.Fields{
				"function": "Iterate",
				"call_id":  c.id,
				"age":      age,
				"timeout":  m.config.NegotiationTimeout,
			}).Warn("Call did not connect in time")
			m.endCall(c, EndReasonTimeout, EventEndedTimeout, normalHangup())
		}
	}
	for _, client := range clients {
		client.Tick(now)
	}
}

// IterationInterval returns the period at which Iterate should be called.
func (m *Manager) IterationInterval() time.Duration { return m.config.IterationInterval }

// Run calls Iterate at the configured interval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.IterationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Iterate()
		}
	}
}

// Close ends the active call and every group call client. Further commands
// fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	c := m.active
	clients := m.groupClients
	m.groupClients = make(map[groupcall.ClientID]*groupcall.Client)
	m.httpRequests = make(map[uint32]groupcall.ClientID)
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":      "Close",
		"group_clients": len(clients),
	}).Info("Closing call manager")

	if c != nil {
		m.endCall(c, EndReasonNormal, EventEndedAppDroppedCall, normalHangup())
	}
	for _, client := range clients {
		client.End(groupcall.EndReasonClientDeleted)
		m.recorder.GroupClientDeleted()
	}
	return nil
}

func (m *Manager) reportFailure(operation string, callID signaling.CallID, err error) {
	m.recorder.PlatformFailure(operation)
	logrus.WithFields(logrus.Fields{
		"function": operation,
		"call_id":  callID,
		"error":    err.Error(),
	}).Error("Platform call failed")
}
