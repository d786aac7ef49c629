package media

import (
	"errors"
	"testing"

	"github.com/opd-ai/callcore/signaling"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

// refusingEvents rejects every state report.
type refusingEvents struct {
	*recordingEvents
}

var errRefused = errors.New("refused")

func (refusingEvents) OnConnectionMediaConnected(signaling.CallID, signaling.DeviceID) error {
	return errRefused
}

func (refusingEvents) OnRemoteVideoStatus(signaling.CallID, signaling.DeviceID, bool) error {
	return errRefused
}

func debugMessages(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.DebugLevel {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestRejectedReportsAreLogged(t *testing.T) {
	hook := test.NewGlobal()
	prev := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() {
		logrus.SetLevel(prev)
		hook.Reset()
	})

	engine := newTestEngine(t)
	events := refusingEvents{newRecordingEvents()}
	engine.Attach(events)
	s := &session{engine: engine, callID: 5, legs: map[signaling.DeviceID]bool{1: true}}

	s.onICEState(webrtc.ICEConnectionStateConnected)
	s.reportVideo(events, true)

	msgs := debugMessages(hook)
	assert.Contains(t, msgs, "ICE state not applied")
	assert.Contains(t, msgs, "Remote video status not applied")
}
