package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CALLCORE_"

// Load reads the TOML file at path, applies environment overrides and
// validates the result. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			logrus.WithFields(logrus.Fields{
				"function": "Load",
				"path":     path,
				"keys":     undecoded,
			}).Warn("Ignoring unknown configuration keys")
		}
	} else {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
		}).Info("No configuration file given, using defaults")
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"GROUP_RELAY_URL": &cfg.Group.RelayURL,
		"BRIDGE_URL":      &cfg.Bridge.URL,
		"METRICS_LISTEN":  &cfg.Metrics.Listen,
		"LOG_LEVEL":       &cfg.Logging.Level,
		"LOG_FORMAT":      &cfg.Logging.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"OFFER_MAX_AGE":         &cfg.Call.OfferMaxAge,
		"NEGOTIATION_TIMEOUT":   &cfg.Call.NegotiationTimeout,
		"ITERATION_INTERVAL":    &cfg.Call.IterationInterval,
		"GROUP_CONNECT_TIMEOUT": &cfg.Group.ConnectTimeout,
		"BRIDGE_HTTP_TIMEOUT":   &cfg.Bridge.HTTPTimeout,
		"MEDIA_VIDEO_IDLE":      &cfg.Media.VideoIdleTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w: %q", EnvPrefix, key, ErrInvalidDuration, v)
			}
			*dst = Duration(d)
		}
	}

	ints := map[string]*int{
		"ENDED_CALL_MEMORY":         &cfg.Call.EndedCallMemory,
		"GROUP_PROOF_REFRESH_LIMIT": &cfg.Group.ProofRefreshLimit,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	if v, ok := lookup(EnvPrefix + "LOCAL_DEVICE_ID"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%sLOCAL_DEVICE_ID: %w", EnvPrefix, err)
		}
		cfg.Call.LocalDeviceID = uint32(n)
	}
	if v, ok := lookup(EnvPrefix + "MEDIA_MAX_BITRATE_BPS"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMEDIA_MAX_BITRATE_BPS: %w", EnvPrefix, err)
		}
		cfg.Media.MaxBitrateBps = n
	}
	if v, ok := lookup(EnvPrefix + "MEDIA_ICE_SERVERS"); ok {
		cfg.Media.ICEServers = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "METRICS_ENABLED"); ok {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
