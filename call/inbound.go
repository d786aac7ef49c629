package call

import (
	"fmt"

	"github.com/opd-ai/callcore/signaling"
	"github.com/sirupsen/logrus"
)

// Inbound handlers return nil when the message was consumed by the state
// machine and a protocol error (see IsProtocolError) when policy dropped it.

// ReceiveOffer handles an inbound offer from remote. Expired offers are
// rejected without any state change. With no call active a ringing incoming
// call is created. An offer from a different remote while a call is active
// is answered with Busy. An offer from the same remote while an outgoing
// call is still being set up is glare: the lower call id wins.
func (m *Manager) ReceiveOffer(remote RemotePeer, callID signaling.CallID, ro signaling.ReceivedOffer) error {
	logger := logrus.WithFields(logrus.Fields{
		"function":  "ReceiveOffer",
		"call_id":   callID,
		"device_id": ro.SenderDeviceID,
		"age":       ro.Age,
	})

	if ro.Age > m.config.OfferMaxAge {
		m.recorder.OfferReceived("expired")
		logger.Info("Rejecting expired offer")
		return fmt.Errorf("%w: offer age %s exceeds %s", ErrStale, ro.Age, m.config.OfferMaxAge)
	}
	if !ro.Offer.MediaType().Valid() {
		m.recorder.OfferReceived("invalid")
		return fmt.Errorf("%w: %s", ErrInvalidMediaType, ro.Offer.MediaType())
	}
	if ro.SenderFeatureLevel == signaling.FeatureLevelLegacy && !ro.ReceiverDeviceIsPrimary {
		m.recorder.OfferReceived("legacy_non_primary")
		logger.Info("Ignoring legacy offer delivered to non-primary device")
		m.emitRemoteEvent(remote, callID, EventIgnoreCallsFromNonMultiringCallers)
		return fmt.Errorf("%w: legacy caller on non-primary device", ErrUnexpectedMessage)
	}

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return ErrManagerClosed
		}
		if m.ended.Contains(callID) {
			m.mu.Unlock()
			m.recorder.OfferReceived("stale_call_id")
			return fmt.Errorf("%w: %s", ErrStaleCallID, callID)
		}
		active := m.active
		if active == nil {
			c := newCall(m, callID, DirectionIncoming, ro.Offer.MediaType(), remote, m.now())
			m.active = c
			m.mu.Unlock()
			m.recorder.CallStarted()
			m.recorder.OfferReceived("ringing")
			m.startIncoming(c, ro)
			return nil
		}
		m.mu.Unlock()

		if active.id == callID {
			logger.Debug("Ignoring retransmitted offer")
			return nil
		}

		same, err := m.platform.CompareRemotes(active.remote, remote)
		if err != nil {
			m.reportFailure("compare_remotes", callID, err)
			same = false
		}
		active.mu.Lock()
		glare := same && active.direction == DirectionOutgoing &&
			active.state != CallStateConnected && active.state != CallStateEnded
		activeEnded := active.state == CallStateEnded
		active.mu.Unlock()

		if activeEnded {
			// The ending call frees the slot once its effects run.
			<-active.released
			continue
		}

		if !glare {
			m.recorder.OfferReceived("busy")
			logger.WithField("active_call_id", active.id).Info("Busy with another call, sending busy")
			m.rememberEnded(callID, EndReasonBusy)
			m.sendBusy(remote, callID)
			m.emitRemoteEvent(remote, callID, EventReceivedOfferWhileActive)
			return nil
		}

		if active.id < callID {
			m.recorder.Glare("won")
			logger.WithField("active_call_id", active.id).Info("Glare won, ignoring remote offer")
			m.rememberEnded(callID, EndReasonGlareLost)
			m.emitEvent(active, EventReceivedOfferWithGlare)
			return fmt.Errorf("%w: local call %s is lower", ErrGlare, active.id)
		}

		m.recorder.Glare("lost")
		logger.WithField("active_call_id", active.id).Info("Glare lost, ending local call")
		m.endCall(active, EndReasonGlareLost, EventEndedRemoteGlare, normalHangup())
	}
}

func (m *Manager) startIncoming(c *Call, ro signaling.ReceivedOffer) {
	if err := m.platform.OnStartCall(c.remote, c.id, DirectionIncoming, c.mediaType); err != nil {
		m.reportFailure("on_start_call", c.id, err)
	}

	conn, err := m.createConnection(c, ro.SenderDeviceID, ConnectionTypeNormal)

	var fx outbox
	c.mu.Lock()
	if err != nil {
		c.endLocked(EndReasonError, EventEndedInternalFailure, nil, &fx)
		c.mu.Unlock()
		fx.flush()
		return
	}
	if c.state == CallStateEnded {
		conn.state = ConnectionStateOfferReceived
		conn.endLocked(&fx)
		c.mu.Unlock()
		fx.flush()
		return
	}
	conn.state = ConnectionStateOfferReceived
	conn.remoteOffer = ro.Offer
	conn.remoteFeatureLevel = ro.SenderFeatureLevel
	c.addConnectionLocked(conn)
	c.state = CallStateRinging
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "startIncoming",
		"call_id":    c.id,
		"device_id":  ro.SenderDeviceID,
		"media_type": c.mediaType.String(),
	}).Info("Incoming call ringing")
	m.emitEvent(c, EventLocalRinging)
}

// ReceiveAnswer handles the answer of a remote device to an outgoing call.
// The first device to answer becomes active, its siblings are ended and the
// remote's other devices are told the call was accepted elsewhere.
func (m *Manager) ReceiveAnswer(callID signaling.CallID, ra signaling.ReceivedAnswer) error {
	c, err := m.lookupCall(callID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == CallStateEnded {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStaleCallID, callID)
	}
	if c.direction != DirectionOutgoing || !c.offerSent {
		c.mu.Unlock()
		return fmt.Errorf("%w: answer for %s call", ErrUnexpectedMessage, c.direction)
	}
	if c.active != nil {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":  "ReceiveAnswer",
			"call_id":   callID,
			"device_id": ra.SenderDeviceID,
		}).Debug("Ignoring answer, call already accepted")
		return nil
	}
	conn := c.connections[ra.SenderDeviceID]
	c.mu.Unlock()

	if conn == nil {
		if conn, err = m.forkConnection(c, ra.SenderDeviceID); err != nil {
			return err
		}
	}

	var fx outbox
	c.mu.Lock()
	if c.state == CallStateEnded {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStaleCallID, callID)
	}
	if c.active != nil {
		c.mu.Unlock()
		return nil
	}
	if conn.state != ConnectionStateOfferSent {
		c.mu.Unlock()
		return fmt.Errorf("%w: connection is %s", ErrUnexpectedMessage, conn.state)
	}
	conn.remoteFeatureLevel = ra.SenderFeatureLevel
	conn.state = ConnectionStateIceExchanging
	c.active = conn
	c.state = CallStateNegotiating
	ended := c.endSiblingsLocked(conn, &fx)
	hangup := signaling.NewHangup(signaling.HangupAcceptedOnAnotherDevice, ra.SenderDeviceID)
	fx.add(func() { m.sendHangup(c, hangup) })
	fx.add(func() { m.emitEvent(c, EventRemoteAccepted) })
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":       "ReceiveAnswer",
		"call_id":        callID,
		"device_id":      ra.SenderDeviceID,
		"siblings_ended": ended,
		"feature_level":  ra.SenderFeatureLevel.String(),
	}).Info("Answer accepted")

	if err := conn.handle.AcceptAnswer(ra.Answer); err != nil {
		m.reportFailure("accept_answer", callID, err)
		fx.flush()
		m.endCall(c, EndReasonError, EventEndedInternalFailure, normalHangup())
		return fmt.Errorf("accept answer: %w", err)
	}

	c.mu.Lock()
	pending := conn.applyRemoteDescriptionLocked()
	if conn.mediaReady {
		c.connectLocked(conn, &fx)
	}
	c.mu.Unlock()

	m.applyRemoteIce(c, conn, pending)
	fx.flush()
	return nil
}

// ReceiveIce handles remote candidates for one device leg. Duplicates are
// dropped and order is preserved. Candidates are buffered until the remote
// description of the leg is applied.
func (m *Manager) ReceiveIce(callID signaling.CallID, ri signaling.ReceivedIce) error {
	c, err := m.lookupCall(callID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == CallStateEnded {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStaleCallID, callID)
	}
	conn, ok := c.connections[ri.SenderDeviceID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: device %d", ErrNoSuchDevice, ri.SenderDeviceID)
	}
	if conn.state == ConnectionStateEnded || c.active != nil && c.active != conn {
		c.mu.Unlock()
		return nil
	}
	apply := conn.addRemoteIceLocked(ri.Ice.Candidates)
	c.mu.Unlock()

	m.applyRemoteIce(c, conn, apply)
	return nil
}

// ReceiveHangup handles a remote hangup. It never emits signaling.
// Accepted, declined and busy outcomes of other devices only end a call
// that nobody has answered yet; a caller also waits for the answer rather
// than acting on an accepted hangup.
func (m *Manager) ReceiveHangup(callID signaling.CallID, rh signaling.ReceivedHangup) error {
	c, err := m.lookupCall(callID)
	if err != nil {
		return err
	}
	logger := logrus.WithFields(logrus.Fields{
		"function":  "ReceiveHangup",
		"call_id":   callID,
		"device_id": rh.SenderDeviceID,
		"type":      rh.Hangup.Type.String(),
	})

	var fx outbox
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		fx.flush()
	}()
	if c.state == CallStateEnded {
		return fmt.Errorf("%w: %s", ErrStaleCallID, callID)
	}

	switch rh.Hangup.Type {
	case signaling.HangupAcceptedOnAnotherDevice, signaling.HangupDeclinedOnAnotherDevice, signaling.HangupBusyOnAnotherDevice:
		switch {
		case c.direction == DirectionOutgoing && c.active != nil:
			logger.Debug("Ignoring callee device outcome, call already answered")
			return nil
		case c.direction == DirectionOutgoing && rh.Hangup.Type == signaling.HangupAcceptedOnAnotherDevice:
			// The answer of the accepting device settles the call.
			logger.Debug("Ignoring accepted hangup, waiting for the answer")
			return nil
		case c.direction == DirectionIncoming && c.active != nil:
			logger.Debug("Ignoring other device outcome, call accepted here")
			return nil
		case c.direction == DirectionIncoming && rh.Hangup.DeviceID == m.config.LocalDeviceID:
			logger.Debug("Ignoring hangup originating from this device")
			return nil
		}
		reason, event := elsewhereOutcome(rh.Hangup.Type)
		logger.Info("Call handled on another device")
		c.endLocked(reason, event, nil, &fx)
		return nil

	case signaling.HangupNeedPermission:
		c.endLocked(EndReasonNeedPermission, EventEndedRemoteHangupNeedPermission, nil, &fx)
		return nil
	}

	conn, ok := c.connections[rh.SenderDeviceID]
	if c.direction == DirectionOutgoing && c.active == nil {
		if !ok {
			return fmt.Errorf("%w: device %d", ErrNoSuchDevice, rh.SenderDeviceID)
		}
		conn.endLocked(&fx)
		if c.liveConnectionsLocked() == 0 {
			c.endLocked(EndReasonNormal, EventEndedRemoteHangup, nil, &fx)
		}
		return nil
	}
	if c.active != nil && c.active != conn {
		logger.Debug("Ignoring hangup from inactive device")
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: device %d", ErrNoSuchDevice, rh.SenderDeviceID)
	}
	logger.Info("Remote hung up")
	c.endLocked(EndReasonNormal, EventEndedRemoteHangup, nil, &fx)
	return nil
}

func elsewhereOutcome(t signaling.HangupType) (EndReason, ApplicationEvent) {
	switch t {
	case signaling.HangupAcceptedOnAnotherDevice:
		return EndReasonAcceptedElsewhere, EventEndedRemoteHangupAccepted
	case signaling.HangupDeclinedOnAnotherDevice:
		return EndReasonDeclined, EventEndedRemoteHangupDeclined
	default:
		return EndReasonBusy, EventEndedRemoteHangupBusy
	}
}

// ReceiveBusy ends an outgoing call whose callee is in another call. The
// call is not retried.
func (m *Manager) ReceiveBusy(callID signaling.CallID, rb signaling.ReceivedBusy) error {
	c, err := m.lookupCall(callID)
	if err != nil {
		return err
	}

	var fx outbox
	c.mu.Lock()
	switch {
	case c.state == CallStateEnded:
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStaleCallID, callID)
	case c.direction != DirectionOutgoing:
		c.mu.Unlock()
		return fmt.Errorf("%w: busy for incoming call", ErrUnexpectedMessage)
	case c.active != nil && c.active.remoteDeviceID != rb.SenderDeviceID:
		c.mu.Unlock()
		return nil
	}
	c.endLocked(EndReasonBusy, EventEndedRemoteBusy, nil, &fx)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "ReceiveBusy",
		"call_id":   callID,
		"device_id": rb.SenderDeviceID,
	}).Info("Remote is busy")
	fx.flush()
	return nil
}
