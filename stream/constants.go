package stream

import "fmt"

// Wire format fixed by this engine: stereo, 16-bit signed PCM.
const (
	// Channels is the number of audio channels.
	Channels = 2

	// SubframeSize is the size of one sample of one channel in bytes.
	SubframeSize = 2

	// FrameBytes is the size of one audio frame (all channels) in bytes.
	FrameBytes = Channels * SubframeSize

	// ChunkFrequency is the number of chunks submitted per second.
	ChunkFrequency = 1000
)

// Capability limits.
const (
	// MaxSampleRateRanges is the number of sample-rate ranges retained
	// from a device. Devices reporting more are truncated.
	MaxSampleRateRanges = 8

	// MaxPacketsPerChunk is the size of the per-packet size table:
	// 8000 microframes/s at High Speed divided by ChunkFrequency.
	MaxPacketsPerChunk = 8
)

// SyncMode is the synchronization type negotiated for the OUT endpoint.
type SyncMode uint8

// Synchronization modes. Adaptive endpoints are recognized but rejected
// at configuration time.
const (
	SyncUnknown      SyncMode = iota // Not yet negotiated
	SyncSynchronous                  // Device slaved to the bus clock
	SyncAsynchronous                 // Device reports its rate via feedback
	SyncAdaptive                     // Unsupported
)

// String returns a human-readable mode name.
func (m SyncMode) String() string {
	switch m {
	case SyncSynchronous:
		return "synchronous"
	case SyncAsynchronous:
		return "asynchronous"
	case SyncAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("unknown (%d)", uint8(m))
	}
}
