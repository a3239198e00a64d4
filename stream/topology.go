package stream

import (
	"fmt"

	"github.com/ardnew/softuac/desc"
)

// ControlTopology is the query interface onto the audio function's
// control device, which owns the unit graph (terminals, clock sources,
// feature units) parsed from the control interface's descriptors.
//
// All queries are synchronous and non-blocking; they operate on state the
// control device parsed at its own configuration time. Unit references
// returned here are weak: the streaming driver never owns or mutates
// control-unit state.
type ControlTopology interface {
	// TerminalType returns the terminal type code of the terminal the
	// given link id refers to, or 0 when unknown.
	TerminalType(link uint8) uint16

	// ClockSourceID resolves the clock source feeding the linked
	// terminal. Meaningful only for Audio Class 2.00 functions.
	ClockSourceID(link uint8) desc.UnitID

	// FeatureUnitID resolves the feature unit attached to the linked
	// terminal.
	FeatureUnitID(link uint8) desc.UnitID

	// ControlSupported reports whether the unit implements the given
	// control on the given channel (0 = master, 1 = left, 2 = right).
	ControlSupported(unit desc.UnitID, channel uint8, control desc.ControlKind) bool

	// InterfaceClass returns the control interface's class code.
	InterfaceClass() uint8

	// InterfaceSubClass returns the control interface's subclass code.
	InterfaceSubClass() uint8

	// DeviceNumber returns the control device's number, used to derive
	// the streaming device name.
	DeviceNumber() uint32

	// NextStreamingSubDeviceNumber allocates the next streaming
	// sub-device number under this control device.
	NextStreamingSubDeviceNumber() uint32
}

// Audio/Control interface class codes the associated control device must
// carry.
const (
	audioInterfaceClass       = 1
	audioControlInterfaceSubC = 1
)

// SampleRateRange describes one supported sample-rate range in Hz.
// Min == Max denotes a single discrete rate; Min < Max a continuous
// sub-range with step Resolution (0 when the device does not report one).
type SampleRateRange struct {
	Min        uint32
	Max        uint32
	Resolution uint32
}

// Contains reports whether rate lies within the range, bounds inclusive.
func (r SampleRateRange) Contains(rate uint32) bool {
	return r.Min <= rate && rate <= r.Max
}

// String formats the range the way it is logged: "44100" for a discrete
// rate, "8000-48000/1" for a continuous sub-range.
func (r SampleRateRange) String() string {
	if r.Min == r.Max {
		return fmt.Sprintf("%d", r.Min)
	}
	return fmt.Sprintf("%d-%d/%d", r.Min, r.Max, r.Resolution)
}

// DeviceInfo is the capability summary produced by a successful
// Configure. It is immutable afterwards and safe to share between any
// number of readers.
type DeviceInfo struct {
	// TerminalType is the output terminal's type code (for example
	// 0x0301, generic speaker).
	TerminalType uint16

	// SampleRateRanges lists the supported rates, at most
	// MaxSampleRateRanges entries.
	SampleRateRanges []SampleRateRange

	// VolumeSupported is set when both stereo channels expose a volume
	// control; MinVolumeDB and MaxVolumeDB then hold the range in whole
	// dB (truncated from the wire's 1/256 dB units).
	VolumeSupported bool
	MinVolumeDB     int
	MaxVolumeDB     int

	// MuteSupported is set when the feature unit exposes a master-channel
	// mute control.
	MuteSupported bool
}

// SupportsRate reports whether rate falls inside any supported range.
func (i *DeviceInfo) SupportsRate(rate uint32) bool {
	for _, r := range i.SampleRateRanges {
		if r.Contains(rate) {
			return true
		}
	}
	return false
}
