package call

import (
	"github.com/opd-ai/callcore/limits"
	"github.com/opd-ai/callcore/signaling"
	"github.com/sirupsen/logrus"
)

const maxIceBatch = limits.MaxIceCandidatesPerMessage

// sendOffer broadcasts the offer. A failed send ends the call and false is
// returned.
func (m *Manager) sendOffer(c *Call, offer signaling.Offer) bool {
	if err := m.platform.OnSendOffer(c.remote, c.id, signaling.SendOffer{Offer: offer}); err != nil {
		m.reportFailure("on_send_offer", c.id, err)
		m.endCall(c, EndReasonError, EventEndedSignalingFailure, nil)
		return false
	}
	m.recorder.SignalingSent("offer")
	logrus.WithFields(logrus.Fields{
		"function":   "sendOffer",
		"call_id":    c.id,
		"media_type": offer.MediaType().String(),
	}).Debug("Offer broadcast")
	return true
}

// sendAnswer targets the answer at the offering device. A failed send ends
// the call and false is returned.
func (m *Manager) sendAnswer(c *Call, deviceID signaling.DeviceID, answer signaling.Answer) bool {
	msg := signaling.SendAnswer{Answer: answer, ReceiverDeviceID: deviceID}
	if err := m.platform.OnSendAnswer(c.remote, c.id, msg); err != nil {
		m.reportFailure("on_send_answer", c.id, err)
		m.endCall(c, EndReasonError, EventEndedSignalingFailure, nil)
		return false
	}
	m.recorder.SignalingSent("answer")
	return true
}

// sendIce emits candidates, broadcast when deviceID is nil. Batches larger
// than the per-message limit are split.
func (m *Manager) sendIce(c *Call, candidates []signaling.IceCandidate, deviceID *signaling.DeviceID) {
	for len(candidates) > 0 {
		n := len(candidates)
		if n > maxIceBatch {
			n = maxIceBatch
		}
		ice, err := signaling.NewIce(candidates[:n])
		candidates = candidates[n:]
		if err != nil {
			m.reportFailure("on_send_ice", c.id, err)
			continue
		}
		msg := signaling.SendIce{Ice: ice, ReceiverDeviceID: deviceID}
		if err := m.platform.OnSendIce(c.remote, c.id, msg); err != nil {
			m.reportFailure("on_send_ice", c.id, err)
			continue
		}
		m.recorder.SignalingSent("ice")
	}
}

func (m *Manager) sendHangup(c *Call, hangup signaling.Hangup) {
	if err := m.platform.OnSendHangup(c.remote, c.id, signaling.SendHangup{Hangup: hangup}); err != nil {
		m.reportFailure("on_send_hangup", c.id, err)
		return
	}
	m.recorder.SignalingSent("hangup")
	logrus.WithFields(logrus.Fields{
		"function":  "sendHangup",
		"call_id":   c.id,
		"type":      hangup.Type.String(),
		"device_id": hangup.DeviceID,
	}).Debug("Hangup broadcast")
}

func (m *Manager) sendBusy(remote RemotePeer, callID signaling.CallID) {
	if err := m.platform.OnSendBusy(remote, callID, signaling.SendBusy{}); err != nil {
		m.reportFailure("on_send_busy", callID, err)
		return
	}
	m.recorder.SignalingSent("busy")
}

func (m *Manager) emitEvent(c *Call, event ApplicationEvent) {
	m.emitRemoteEvent(c.remote, c.id, event)
}

func (m *Manager) emitRemoteEvent(remote RemotePeer, callID signaling.CallID, event ApplicationEvent) {
	if err := m.platform.OnEvent(remote, event); err != nil {
		m.reportFailure("on_event", callID, err)
	}
}

// applyRemoteIce hands candidates to the native handle of conn.
func (m *Manager) applyRemoteIce(c *Call, conn *Connection, candidates []signaling.IceCandidate) {
	if len(candidates) == 0 {
		return
	}
	if err := conn.handle.AddRemoteIce(candidates); err != nil {
		m.reportFailure("add_remote_ice", c.id, err)
	}
}
