package desc

import "fmt"

// Revision selects which USB Audio Class wire formats apply to a device.
// It is fixed for the lifetime of a configured device instance.
type Revision uint8

// Supported protocol revisions.
const (
	RevisionV100 Revision = 1 // Audio Class 1.00
	RevisionV200 Revision = 2 // Audio Class 2.00
)

// String returns the revision as printed in descriptors (BCD).
func (r Revision) String() string {
	switch r {
	case RevisionV100:
		return "1.00"
	case RevisionV200:
		return "2.00"
	default:
		return fmt.Sprintf("unknown (%d)", uint8(r))
	}
}

// RevisionOf maps a streaming interface's bInterfaceProtocol to the
// protocol revision. Audio 1.00 interfaces carry protocol 0, Audio 2.00
// interfaces carry IP_VERSION_02_00.
func RevisionOf(interfaceProtocol uint8) Revision {
	if interfaceProtocol == ProtocolVersion200 {
		return RevisionV200
	}
	return RevisionV100
}

// UnitID identifies a unit or terminal inside the audio function's
// control topology. It is a weak reference: the streaming driver only
// queries the control device by id and never owns unit state.
type UnitID uint8

// UnitUndefined is the sentinel for "no such unit". Unit id 0 is reserved
// by the class specification and never assigned to a real unit.
const UnitUndefined UnitID = 0

// Defined reports whether the id refers to a real unit.
func (u UnitID) Defined() bool {
	return u != UnitUndefined
}

// ControlKind names a feature-unit control for capability queries.
type ControlKind uint8

// Feature-unit controls the driver cares about.
const (
	ControlMute   ControlKind = iota // Mute control
	ControlVolume                    // Volume control
)

// Descriptor types.
const (
	DescriptorTypeEndpoint    = 0x05 // Standard endpoint descriptor
	DescriptorTypeCSInterface = 0x24 // Class-specific interface descriptor
	DescriptorTypeCSEndpoint  = 0x25 // Class-specific endpoint descriptor
)

// Class-specific AS interface descriptor subtypes (shared by both
// revisions).
const (
	SubtypeGeneral    = 0x01 // AS_GENERAL
	SubtypeFormatType = 0x02 // FORMAT_TYPE
)

// Audio data format type codes.
const (
	FormatTypeI = 0x01 // Type I (PCM)
)

// ProtocolVersion200 is the bInterfaceProtocol value (IP_VERSION_02_00)
// marking an Audio Class 2.00 interface.
const ProtocolVersion200 = 0x20

// Class-specific request codes.
const (
	RequestSetCur = 0x01 // v1.00 SET_CUR; identical code is v2.00 CUR
	RequestGetMin = 0x82 // v1.00 GET_MIN
	RequestGetMax = 0x83 // v1.00 GET_MAX
	RequestRange  = 0x02 // v2.00 RANGE (with direction bit in bmRequestType)
)

// Control selectors.
const (
	// SelectorSamplingFrequency addresses the sampling frequency control,
	// on the OUT endpoint under v1.00 and on the clock source under v2.00.
	SelectorSamplingFrequency = 0x01

	// SelectorMute addresses the feature unit mute control.
	SelectorMute = 0x01

	// SelectorVolume addresses the feature unit volume control.
	SelectorVolume = 0x02
)

// Endpoint transfer types, from bmAttributes bits 1:0.
const (
	TransferTypeControl     = 0x0 // Control endpoint
	TransferTypeIsochronous = 0x1 // Isochronous endpoint
	TransferTypeBulk        = 0x2 // Bulk endpoint
	TransferTypeInterrupt   = 0x3 // Interrupt endpoint
)

// Endpoint synchronization types, from bmAttributes bits 3:2.
const (
	SyncNone         = 0x0 // No synchronization
	SyncAsynchronous = 0x1 // Asynchronous (feedback endpoint)
	SyncAdaptive     = 0x2 // Adaptive
	SyncSynchronous  = 0x3 // Synchronous (slaved to bus clock)
)

// Endpoint usage types, from bmAttributes bits 5:4.
const (
	UsageData     = 0x0 // Data endpoint
	UsageFeedback = 0x1 // Explicit feedback endpoint
)

// MasterChannel is the channel number addressing the master channel of a
// feature unit; channels 1 and 2 are left and right.
const MasterChannel = 0
