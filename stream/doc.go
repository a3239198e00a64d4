// Package stream implements a USB Audio Class isochronous streaming
// driver for playback endpoints.
//
// A [Device] is created from one alternate setting of an audio streaming
// interface (its raw descriptor records plus a [hal.HostController] and a
// [ControlTopology] handle for the audio function's control interface).
// Negotiation happens in two phases, mirroring the enumeration layer's
// contract:
//
//   - Initialize reports whether the alternate setting is a candidate at
//     all (it must expose at least one endpoint).
//   - Configure validates the descriptor set, resolves the control
//     topology, discovers sample-rate and volume/mute capabilities, and
//     registers the device name. Any failure is terminal for the
//     interface; the driver never renegotiates.
//
// Both Audio Class revisions 1.00 and 2.00 are supported. The only wire
// format accepted is stereo, 16-bit signed PCM.
//
// # Streaming
//
// After Configure, the caller picks a rate with Setup and then drives the
// engine by repeatedly calling SendChunk with ChunkSizeBytes() bytes of
// audio. The engine keeps the software playback clock in lock-step with
// the bus clock using one of two drift-compensation schemes:
//
//   - Synchronous endpoints are slaved to the bus clock: a Bresenham-style
//     accumulator distributes sampleRate samples over frameRate packets so
//     the long-run average converges exactly, with at most one frame of
//     error per packet.
//   - Asynchronous endpoints report their own consumption rate through an
//     isochronous feedback endpoint, as a Q10.14 (Full Speed) or Q16.16
//     (High Speed and above) samples-per-frame value accumulated into the
//     next chunk size.
//
// Transfer completions run concurrently with SendChunk and Setup; the
// accumulator, chunk size, and packet size table are guarded by one lock
// and are never read torn.
package stream
