// Package hal defines the host-controller abstraction consumed by the
// softuac streaming driver.
//
// The driver never talks to USB hardware directly. It issues synchronous
// class requests over the default control endpoint and enqueues
// asynchronous isochronous requests through the [HostController]
// interface. Platform integrations (a real host-controller driver, or the
// simulated device in [github.com/ardnew/softuac/hal/sim]) implement this
// interface.
//
// # Transfers
//
//   - ControlMessage executes a complete SETUP/data/status sequence and
//     returns the number of bytes moved in the data phase.
//   - SubmitIsoRequest enqueues an [IsoRequest] and returns immediately.
//     The request's completion callback runs later, possibly on another
//     goroutine, when the transfer finishes.
//
// # Zero-Allocation Design
//
// SetupPacket parsing and marshalling use caller-provided buffers and
// output parameters so the driver can run without per-transfer heap
// allocations on constrained targets.
package hal
