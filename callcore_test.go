package callcore

import (
	"testing"

	"github.com/opd-ai/callcore/config"
	"github.com/opd-ai/callcore/signaling"
	"github.com/opd-ai/callcore/sim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerAppliesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Call.LocalDeviceID = 3
	reg := prometheus.NewRegistry()

	mgr, err := NewManager(cfg, sim.NewPlatform(), reg)
	require.NoError(t, err)
	defer mgr.Close()

	assert.Equal(t, signaling.DeviceID(3), mgr.Config().LocalDeviceID)
	assert.Equal(t, cfg.Call.OfferMaxAge.Std(), mgr.Config().OfferMaxAge)
	assert.Equal(t, cfg.Group.ProofRefreshLimit, mgr.Config().Group.ProofRefreshLimit)

	_, err = mgr.PlaceCall("bob", signaling.MediaTypeAudio, 1)
	require.NoError(t, err)
	count, err := testutil.GatherAndCount(reg, "callcore_calls_placed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewManagerDefaults(t *testing.T) {
	mgr, err := NewManager(nil, sim.NewPlatform(), nil)
	require.NoError(t, err)
	defer mgr.Close()
	assert.Equal(t, signaling.PrimaryDeviceID, mgr.Config().LocalDeviceID)
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Format = "xml"
	_, err := NewManager(cfg, sim.NewPlatform(), nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = NewManager(config.DefaultConfig(), nil, nil)
	assert.Error(t, err)
}

func TestNewManagerDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	mgr, err := NewManager(nil, sim.NewPlatform(), reg)
	require.NoError(t, err)
	defer mgr.Close()

	_, err = NewManager(nil, sim.NewPlatform(), reg)
	assert.Error(t, err)
}
