package hal

import "fmt"

// Speed represents the USB connection speed.
type Speed uint8

// USB speed constants (USB 2.0/3.0 specifications).
const (
	SpeedUnknown Speed = iota // Not connected or unknown
	SpeedLow                  // Low Speed (1.5 Mbit/s)
	SpeedFull                 // Full Speed (12 Mbit/s)
	SpeedHigh                 // High Speed (480 Mbit/s)
	SpeedSuper                // Super Speed (5 Gbit/s)
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed"
	case SpeedFull:
		return "Full Speed"
	case SpeedHigh:
		return "High Speed"
	case SpeedSuper:
		return "Super Speed"
	default:
		return "Unknown"
	}
}

// FrameRate returns the isochronous service rate of the bus in intervals
// per second: 1000 frames/s at Full Speed, 8000 microframes/s at High
// Speed and above. Returns 0 for speeds that cannot carry isochronous
// audio streams.
func (s Speed) FrameRate() uint32 {
	switch s {
	case SpeedFull:
		return 1000
	case SpeedHigh, SpeedSuper:
		return 8000
	default:
		return 0
	}
}

// SetupPacket represents a USB SETUP packet.
type SetupPacket struct {
	RequestType uint8  // Request characteristics
	Request     uint8  // Specific request
	Value       uint16 // Request-specific value
	Index       uint16 // Request-specific index
	Length      uint16 // Number of bytes to transfer
}

// SetupPacketSize is the size of a USB SETUP packet in bytes.
const SetupPacketSize = 8

// Request type bit fields for SetupPacket.RequestType.
const (
	RequestTypeOut      = 0x00 // Host-to-device data direction
	RequestTypeIn       = 0x80 // Device-to-host data direction
	RequestTypeStandard = 0x00 // Standard request
	RequestTypeClass    = 0x20 // Class-specific request
	RequestTypeVendor   = 0x40 // Vendor-specific request
	RequestToDevice     = 0x00 // Recipient: device
	RequestToInterface  = 0x01 // Recipient: interface
	RequestToEndpoint   = 0x02 // Recipient: endpoint
)

// ParseSetupPacket parses raw bytes into a SetupPacket.
// Returns false if data is too short.
func ParseSetupPacket(data []byte, out *SetupPacket) bool {
	if len(data) < SetupPacketSize {
		return false
	}
	out.RequestType = data[0]
	out.Request = data[1]
	out.Value = uint16(data[2]) | uint16(data[3])<<8
	out.Index = uint16(data[4]) | uint16(data[5])<<8
	out.Length = uint16(data[6]) | uint16(data[7])<<8
	return true
}

// MarshalTo writes the setup packet to buf.
// Returns the number of bytes written (8), or 0 if buf is too small.
func (s *SetupPacket) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0] = s.RequestType
	buf[1] = s.Request
	buf[2] = byte(s.Value)
	buf[3] = byte(s.Value >> 8)
	buf[4] = byte(s.Index)
	buf[5] = byte(s.Index >> 8)
	buf[6] = byte(s.Length)
	buf[7] = byte(s.Length >> 8)
	return SetupPacketSize
}

// String returns a compact representation for logging.
func (s *SetupPacket) String() string {
	return fmt.Sprintf("type=%02x req=%02x val=%04x idx=%04x len=%d",
		s.RequestType, s.Request, s.Value, s.Index, s.Length)
}

// IsoRequest is one asynchronous isochronous transfer request.
//
// Data is sliced into len(Packets) bus packets; Packets holds the size in
// bytes of each packet, in order, and their sum must not exceed len(Data).
// For IN endpoints the packet sizes give the per-packet buffer capacity.
//
// When the transfer finishes, the controller sets Status and Actual and
// then invokes Complete, if non-nil. Complete may run on a different
// goroutine than the submitter; it must not block.
type IsoRequest struct {
	// Endpoint address, including the direction bit.
	Endpoint uint8

	// Data is the transfer buffer, owned by the caller until completion.
	Data []byte

	// Packets is the per-packet size table.
	Packets []uint16

	// Complete is invoked once after Status and Actual are set.
	Complete func(*IsoRequest)

	// Status is nil on success, or the transfer error.
	Status error

	// Actual is the total number of bytes transferred.
	Actual int
}

// IsIn returns true if the request targets an IN endpoint.
func (r *IsoRequest) IsIn() bool {
	return r.Endpoint&0x80 != 0
}

// HostController is the transfer interface the streaming driver runs on.
//
// ControlMessage is synchronous: it returns the number of bytes moved in
// the data phase, or an error for a failed or short transfer.
// SubmitIsoRequest enqueues the request and returns immediately; a non-nil
// error means the request was never queued and its completion callback
// will not run.
type HostController interface {
	// Speed returns the negotiated link speed of the device.
	Speed() Speed

	// ControlMessage executes a control transfer over endpoint 0.
	ControlMessage(setup *SetupPacket, data []byte) (int, error)

	// SubmitIsoRequest enqueues an isochronous transfer.
	SubmitIsoRequest(req *IsoRequest) error
}
