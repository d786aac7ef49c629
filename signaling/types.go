package signaling

import (
	"fmt"
	"strconv"
)

// CallID is the opaque 64-bit identifier of one logical call. It is chosen by
// the call initiator and carried on every signaling message for that call.
type CallID uint64

// String returns the decimal form of the call id.
func (id CallID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// DeviceID identifies one of a user's devices. Device 1 is the primary device.
type DeviceID uint32

// PrimaryDeviceID is the conventional id of a user's primary device.
const PrimaryDeviceID DeviceID = 1

// MediaType is fixed when the offer is created and never changes for the call.
type MediaType uint8

const (
	// MediaTypeAudio is an audio-only call.
	MediaTypeAudio MediaType = iota
	// MediaTypeVideo is an audio and video call.
	MediaTypeVideo
)

// String returns the string representation of the media type.
func (m MediaType) String() string {
	switch m {
	case MediaTypeAudio:
		return "audio"
	case MediaTypeVideo:
		return "video"
	default:
		return fmt.Sprintf("MediaType(%d)", uint8(m))
	}
}

// Valid reports whether m is a known media type.
func (m MediaType) Valid() bool {
	return m == MediaTypeAudio || m == MediaTypeVideo
}

// FeatureLevel is the signaling capability of a remote device, learned from
// the metadata of messages received from it.
type FeatureLevel uint8

const (
	// FeatureLevelLegacy devices only understand targeted signaling.
	FeatureLevelLegacy FeatureLevel = iota
	// FeatureLevelMultiRing devices accept broadcast signaling.
	FeatureLevelMultiRing
)

// String returns the string representation of the feature level.
func (f FeatureLevel) String() string {
	switch f {
	case FeatureLevelLegacy:
		return "legacy"
	case FeatureLevelMultiRing:
		return "multi_ring"
	default:
		return fmt.Sprintf("FeatureLevel(%d)", uint8(f))
	}
}

// Version is the signaling protocol version used to create a connection.
type Version uint8

const (
	// VersionV4 uses ConnectionParametersV4 opaque blobs.
	VersionV4 Version = 4
)

// HangupType determines whether a hangup ends the whole call or only the
// local view of a device that lost the race to answer.
type HangupType uint8

const (
	// HangupNormal ends the call.
	HangupNormal HangupType = iota
	// HangupAcceptedOnAnotherDevice reports that another device accepted.
	HangupAcceptedOnAnotherDevice
	// HangupDeclinedOnAnotherDevice reports that another device declined.
	HangupDeclinedOnAnotherDevice
	// HangupBusyOnAnotherDevice reports that another device was busy.
	HangupBusyOnAnotherDevice
	// HangupNeedPermission reports that the callee must grant permission first.
	HangupNeedPermission
)

// String returns the string representation of the hangup type.
func (h HangupType) String() string {
	switch h {
	case HangupNormal:
		return "normal"
	case HangupAcceptedOnAnotherDevice:
		return "accepted_on_another_device"
	case HangupDeclinedOnAnotherDevice:
		return "declined_on_another_device"
	case HangupBusyOnAnotherDevice:
		return "busy_on_another_device"
	case HangupNeedPermission:
		return "need_permission"
	default:
		return fmt.Sprintf("HangupType(%d)", uint8(h))
	}
}

// Hangup is the hangup payload. DeviceID names the device that accepted,
// declined or was busy for the *OnAnotherDevice types and is zero otherwise.
type Hangup struct {
	Type     HangupType
	DeviceID DeviceID
}

// NewHangup builds a hangup of the given type. The device id is dropped for
// types that do not carry one.
func NewHangup(hangupType HangupType, deviceID DeviceID) Hangup {
	if !hangupType.carriesDevice() {
		deviceID = 0
	}
	return Hangup{Type: hangupType, DeviceID: deviceID}
}

func (h HangupType) carriesDevice() bool {
	switch h {
	case HangupAcceptedOnAnotherDevice, HangupDeclinedOnAnotherDevice, HangupBusyOnAnotherDevice:
		return true
	default:
		return false
	}
}

// IsElsewhere reports whether the hangup describes an outcome on another device.
func (h Hangup) IsElsewhere() bool {
	return h.Type.carriesDevice()
}
