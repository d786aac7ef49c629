package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.CallPlaced("audio")
	r.CallStarted()
	r.CallEnded("normal")
	r.OfferReceived("stale")
	r.OfferReceived("stale")
	r.Glare("won")
	r.SignalingSent("offer")
	r.PlatformFailure("on_event")
	r.GroupClientCreated()
	r.GroupEnded("kicked")
	r.CallConnected(1.5)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.callsPlaced.WithLabelValues("audio")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.activeCalls))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.offersReceived.WithLabelValues("stale")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.glare.WithLabelValues("won")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.callsEnded.WithLabelValues("normal")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.groupClients))
	assert.Equal(t, 1, testutil.CollectAndCount(r.callSetupSeconds))

	count, err := testutil.GatherAndCount(reg, "callcore_signaling_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.CallPlaced("video")
		r.CallEnded("error")
		r.GroupClientDeleted()
		r.CallConnected(0.1)
	})
}

func TestUnregisteredRecorder(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	r.SignalingSent("ice")
	assert.Equal(t, float64(1), testutil.ToFloat64(r.signalingSent.WithLabelValues("ice")))
}
