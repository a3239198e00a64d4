package pkg

import "errors"

// USB transfer errors.
var (
	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")

	// ErrNAK indicates a NAK response (device busy).
	ErrNAK = errors.New("NAK received")

	// ErrTimeout indicates a transfer timeout.
	ErrTimeout = errors.New("transfer timeout")

	// ErrCancelled indicates a cancelled transfer.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrOverrun indicates a data overrun condition.
	ErrOverrun = errors.New("data overrun")

	// ErrUnderrun indicates a data underrun condition.
	ErrUnderrun = errors.New("data underrun")

	// ErrProtocol indicates a protocol error.
	ErrProtocol = errors.New("protocol error")

	// ErrNoDevice indicates the device is not present.
	ErrNoDevice = errors.New("device not present")

	// ErrNotConfigured indicates the device is not configured.
	ErrNotConfigured = errors.New("device not configured")

	// ErrInvalidEndpoint indicates an invalid endpoint address.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrBusy indicates the resource is busy.
	ErrBusy = errors.New("resource busy")

	// ErrNotRunning indicates the controller is not running.
	ErrNotRunning = errors.New("not running")
)

// Audio-class negotiation and streaming errors.
//
// All of these indicate a non-compliant or unsupported device. They are
// discovered during interface configuration or sample-rate setup and are
// not retriable at this layer.
var (
	// ErrDescriptorMissing indicates a required class-specific or endpoint
	// descriptor was not found in the interface's descriptor set.
	ErrDescriptorMissing = errors.New("descriptor missing")

	// ErrDescriptorMalformed indicates a descriptor was present but its
	// length, subtype, format, channel count, or bit depth is unusable.
	ErrDescriptorMalformed = errors.New("descriptor malformed")

	// ErrUnsupportedTiming indicates an isochronous polling interval other
	// than one frame.
	ErrUnsupportedTiming = errors.New("unsupported endpoint timing")

	// ErrTopologyResolution indicates a missing control device, clock
	// source, or feature unit where one is required.
	ErrTopologyResolution = errors.New("control topology resolution failed")

	// ErrControlRequestFailed indicates a class-specific control request
	// returned an error or a short transfer.
	ErrControlRequestFailed = errors.New("control request failed")

	// ErrUnsupportedSampleRate indicates the requested rate falls outside
	// every sample-rate range reported by the device.
	ErrUnsupportedSampleRate = errors.New("unsupported sample rate")

	// ErrUnsupportedSyncMode indicates an endpoint synchronization type the
	// engine does not implement (no synchronization, or adaptive).
	ErrUnsupportedSyncMode = errors.New("unsupported synchronization mode")
)

// TransferStatus represents the completion status of a USB transfer.
type TransferStatus int

// Transfer status values.
const (
	TransferStatusSuccess   TransferStatus = iota // Transfer completed successfully
	TransferStatusError                           // Transfer failed with error
	TransferStatusStall                           // Endpoint stalled
	TransferStatusNAK                             // NAK received
	TransferStatusTimeout                         // Transfer timed out
	TransferStatusCancelled                       // Transfer was cancelled
	TransferStatusOverrun                         // Data overrun
	TransferStatusUnderrun                        // Data underrun
)

// String returns a string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case TransferStatusSuccess:
		return "success"
	case TransferStatusError:
		return "error"
	case TransferStatusStall:
		return "stall"
	case TransferStatusNAK:
		return "nak"
	case TransferStatusTimeout:
		return "timeout"
	case TransferStatusCancelled:
		return "cancelled"
	case TransferStatusOverrun:
		return "overrun"
	case TransferStatusUnderrun:
		return "underrun"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transfer status.
func (s TransferStatus) Error() error {
	switch s {
	case TransferStatusSuccess:
		return nil
	case TransferStatusStall:
		return ErrStall
	case TransferStatusNAK:
		return ErrNAK
	case TransferStatusTimeout:
		return ErrTimeout
	case TransferStatusCancelled:
		return ErrCancelled
	case TransferStatusOverrun:
		return ErrOverrun
	case TransferStatusUnderrun:
		return ErrUnderrun
	default:
		return ErrProtocol
	}
}
