// Package config loads the callnode configuration from a TOML file with
// CALLCORE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/signaling"
	"github.com/sirupsen/logrus"
)

// Duration is a time.Duration written as a Go duration string ("120s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, text)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete node configuration.
type Config struct {
	Call    CallConfig    `toml:"call"`
	Group   GroupConfig   `toml:"group"`
	Bridge  BridgeConfig  `toml:"bridge"`
	Media   MediaConfig   `toml:"media"`
	Metrics MetricsConfig `toml:"metrics"`
	Logging LoggingConfig `toml:"logging"`
}

// CallConfig is the 1:1 call policy.
type CallConfig struct {
	LocalDeviceID      uint32   `toml:"local_device_id"`
	OfferMaxAge        Duration `toml:"offer_max_age"`
	NegotiationTimeout Duration `toml:"negotiation_timeout"`
	EndedCallMemory    int      `toml:"ended_call_memory"`
	IterationInterval  Duration `toml:"iteration_interval"`
}

// GroupConfig is the group call policy.
type GroupConfig struct {
	RelayURL          string   `toml:"relay_url"`
	ConnectTimeout    Duration `toml:"connect_timeout"`
	ProofRefreshLimit int      `toml:"proof_refresh_limit"`
}

// BridgeConfig configures the websocket host link.
type BridgeConfig struct {
	URL         string   `toml:"url"`
	HTTPTimeout Duration `toml:"http_timeout"`
}

// MediaConfig configures the WebRTC engine.
type MediaConfig struct {
	ICEServers       []string `toml:"ice_servers"`
	MaxBitrateBps    uint64   `toml:"max_bitrate_bps"`
	VideoIdleTimeout Duration `toml:"video_idle_timeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Call: CallConfig{
			LocalDeviceID:      uint32(signaling.PrimaryDeviceID),
			OfferMaxAge:        Duration(call.DefaultOfferMaxAge),
			NegotiationTimeout: Duration(call.DefaultNegotiationTimeout),
			EndedCallMemory:    call.DefaultEndedCallMemory,
			IterationInterval:  Duration(call.DefaultIterationInterval),
		},
		Group: GroupConfig{
			ConnectTimeout:    Duration(groupcall.DefaultConnectTimeout),
			ProofRefreshLimit: groupcall.DefaultProofRefreshLimit,
		},
		Bridge: BridgeConfig{
			URL:         "ws://127.0.0.1:8787/callcore",
			HTTPTimeout: Duration(15 * time.Second),
		},
		Media: MediaConfig{
			ICEServers:       []string{"stun:stun.l.google.com:19302"},
			MaxBitrateBps:    2_000_000,
			VideoIdleTimeout: Duration(2 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  ":9464",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate reports the first unusable value.
func (c *Config) Validate() error {
	if err := c.ToCallConfig().Validate(); err != nil {
		return fmt.Errorf("%w: call: %v", ErrInvalidConfig, err)
	}
	if c.Group.RelayURL != "" {
		if u, err := url.Parse(c.Group.RelayURL); err != nil || u.Host == "" {
			return fmt.Errorf("%w: group.relay_url %q", ErrInvalidConfig, c.Group.RelayURL)
		}
	}
	u, err := url.Parse(c.Bridge.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("%w: bridge.url %q must be a ws or wss url", ErrInvalidConfig, c.Bridge.URL)
	}
	if c.Bridge.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: bridge.http_timeout must be positive", ErrInvalidConfig)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics are enabled", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalidConfig, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// ToCallConfig converts the call and group sections into manager policy.
func (c *Config) ToCallConfig() call.Config {
	return call.Config{
		LocalDeviceID:      signaling.DeviceID(c.Call.LocalDeviceID),
		OfferMaxAge:        c.Call.OfferMaxAge.Std(),
		NegotiationTimeout: c.Call.NegotiationTimeout.Std(),
		EndedCallMemory:    c.Call.EndedCallMemory,
		IterationInterval:  c.Call.IterationInterval.Std(),
		Group: groupcall.Config{
			ProofRefreshLimit: c.Group.ProofRefreshLimit,
			ConnectTimeout:    c.Group.ConnectTimeout.Std(),
		},
	}
}

// ConfigureLogging applies the logging section to the standard logrus logger.
func (c *Config) ConfigureLogging() error {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if c.Logging.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// Sentinel errors for configuration loading.
var (
	// ErrInvalidConfig indicates a configuration that failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidDuration indicates a value that is not a Go duration string.
	ErrInvalidDuration = errors.New("invalid duration")
)
