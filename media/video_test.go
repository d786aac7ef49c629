package media

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTrack feeds packets to watchVideo. Closing it ends the track.
type fakeTrack struct {
	packets chan struct{}
}

func newFakeTrack() *fakeTrack {
	return &fakeTrack{packets: make(chan struct{})}
}

func (f *fakeTrack) read() error {
	if _, ok := <-f.packets; !ok {
		return errors.New("track ended")
	}
	return nil
}

type statusLog struct {
	mu      sync.Mutex
	reports []bool
}

func (l *statusLog) report(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = append(l.reports, enabled)
}

func (l *statusLog) snapshot() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.reports...)
}

func startWatch(track *fakeTrack, idle time.Duration, log *statusLog) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchVideo(track.read, idle, log.report)
	}()
	return done
}

func TestVideoEnabledUntilTrackEnds(t *testing.T) {
	track := newFakeTrack()
	log := &statusLog{}
	done := startWatch(track, time.Minute, log)

	track.packets <- struct{}{}
	track.packets <- struct{}{}
	close(track.packets)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after the track ended")
	}
	assert.Equal(t, []bool{true, false}, log.snapshot())
}

func TestVideoSilenceDisablesAndPacketsReenable(t *testing.T) {
	track := newFakeTrack()
	log := &statusLog{}
	done := startWatch(track, 20*time.Millisecond, log)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]bool{true, false}, log.snapshot())
	}, 5*time.Second, 5*time.Millisecond, "silence disables video")

	track.packets <- struct{}{}
	require.Eventually(t, func() bool {
		got := log.snapshot()
		return len(got) >= 3 && got[2]
	}, 5*time.Second, 5*time.Millisecond, "packets re-enable video")

	close(track.packets)
	<-done
	got := log.snapshot()
	assert.False(t, got[len(got)-1], "ended track is disabled")
	for i := 1; i < len(got); i++ {
		assert.NotEqual(t, got[i-1], got[i], "only changes are reported")
	}
}
