package callcore

import (
	"fmt"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/config"
	"github.com/opd-ai/callcore/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Version is the release of the engine.
const Version = "0.3.0"

// NewManager creates a call manager from a loaded configuration. Collectors
// are registered with reg; a nil reg disables metrics.
func NewManager(cfg *config.Config, platform call.Platform, reg prometheus.Registerer) (*call.Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var recorder *metrics.Recorder
	if reg != nil {
		r, err := metrics.New(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		recorder = r
	}

	mgr, err := call.NewManager(platform, cfg.ToCallConfig(), recorder)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"function": "NewManager",
		"version":  Version,
		"metrics":  recorder != nil,
	}).Info("callcore ready")
	return mgr, nil
}
