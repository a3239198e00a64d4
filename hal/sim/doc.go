// Package sim provides a simulated USB Audio Class playback device.
//
// A sim.Device stands in for a real host controller and its attached
// audio function: it synthesizes the streaming interface's descriptor
// records from a declarative Profile, answers the class-specific control
// requests the negotiation and session layers issue, and completes
// isochronous transfers on a dispatcher goroutine.
//
// # Usage
//
// Build a Device from a Profile, then hand it to the streaming layer as
// both the host controller and the control topology:
//
//	dev := sim.New(sim.Profile{
//		Rates: sim.DiscreteRates(44100, 48000),
//	})
//	dev.Start()
//	defer dev.Stop()
//
//	str := stream.New(stream.Config{
//		Controller:        dev,
//		Topology:          dev,
//		Descriptors:       dev.Descriptors(),
//		InterfaceProtocol: dev.Protocol(),
//		NumEndpoints:      dev.NumEndpoints(),
//	})
//
// Before Start (or after Stop), transfers complete synchronously inside
// SubmitIsoRequest, which keeps single-threaded tests deterministic.
package sim
