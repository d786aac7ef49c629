package call

import (
	"errors"
	"time"

	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/signaling"
)

// Default policy values.
const (
	DefaultOfferMaxAge        = 120 * time.Second
	DefaultNegotiationTimeout = 60 * time.Second
	DefaultEndedCallMemory    = 256
	DefaultIterationInterval  = 250 * time.Millisecond
)

// Config holds manager policy.
type Config struct {
	// LocalDeviceID is the id of this device among the local user's devices.
	LocalDeviceID signaling.DeviceID

	// OfferMaxAge is the freshness threshold for inbound offers and call messages.
	OfferMaxAge time.Duration

	// NegotiationTimeout bounds the time a call may take to reach Connected.
	NegotiationTimeout time.Duration

	// EndedCallMemory is the number of ended call ids remembered as stale.
	EndedCallMemory int

	// IterationInterval is the period at which Run calls Iterate.
	IterationInterval time.Duration

	// Group is the policy of group call clients.
	Group groupcall.Config
}

// DefaultConfig returns the default manager policy.
func DefaultConfig() Config {
	return Config{
		LocalDeviceID:      signaling.PrimaryDeviceID,
		OfferMaxAge:        DefaultOfferMaxAge,
		NegotiationTimeout: DefaultNegotiationTimeout,
		EndedCallMemory:    DefaultEndedCallMemory,
		IterationInterval:  DefaultIterationInterval,
		Group:              groupcall.DefaultConfig(),
	}
}

// Validate reports the first unusable policy value.
func (c Config) Validate() error {
	switch {
	case c.LocalDeviceID == 0:
		return errors.New("local device id must be positive")
	case c.OfferMaxAge <= 0:
		return errors.New("offer max age must be positive")
	case c.NegotiationTimeout <= 0:
		return errors.New("negotiation timeout must be positive")
	case c.EndedCallMemory <= 0:
		return errors.New("ended call memory must be positive")
	case c.IterationInterval <= 0:
		return errors.New("iteration interval must be positive")
	case c.Group.ProofRefreshLimit < 0:
		return errors.New("proof refresh limit must not be negative")
	case c.Group.ConnectTimeout <= 0:
		return errors.New("group connect timeout must be positive")
	}
	return nil
}
