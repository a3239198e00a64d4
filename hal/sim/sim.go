package sim

import (
	"context"
	"encoding/binary"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/softuac/desc"
	"github.com/ardnew/softuac/hal"
	"github.com/ardnew/softuac/pkg"
)

// RateRange is one supported sample-rate range in Hz. Min == Max denotes
// a single discrete rate.
type RateRange struct {
	Min        uint32
	Max        uint32
	Resolution uint32
}

// DiscreteRates builds the rate list for a device supporting exactly the
// given rates.
func DiscreteRates(rates ...uint32) []RateRange {
	ranges := make([]RateRange, len(rates))
	for i, r := range rates {
		ranges[i] = RateRange{Min: r, Max: r}
	}
	return ranges
}

// Profile declares the simulated device's identity and capabilities.
// The zero value is completed by New: Full Speed, Audio Class 1.00,
// synchronous sync type, 44100 Hz only, speaker terminal, no feature
// unit.
type Profile struct {
	// Protocol is the streaming interface's bInterfaceProtocol; zero for
	// Audio Class 1.00, desc.ProtocolVersion200 for 2.00.
	Protocol uint8

	// Speed is the simulated bus speed.
	Speed hal.Speed

	// Asynchronous selects asynchronous sync with a feedback endpoint
	// instead of the default synchronous sync type.
	Asynchronous bool

	// Rates lists the supported sample rates.
	Rates []RateRange

	// TerminalType is the output terminal's type code.
	TerminalType uint16

	// FeatureUnit enables a feature unit with the given id, exposing a
	// master mute and stereo volume in [VolumeMinDB, VolumeMaxDB].
	FeatureUnit uint8
	VolumeMinDB int
	VolumeMaxDB int

	// ClockSource is the clock source unit id for 2.00 profiles; zero
	// simulates a device whose clock topology cannot be resolved.
	ClockSource uint8

	// ConsumptionRate is the frame rate the simulated DAC reports on the
	// feedback endpoint; zero tracks the negotiated sample rate.
	ConsumptionRate uint32

	// DeviceNumber is the control device's number, defaulting to 1.
	DeviceNumber uint32
}

// Device is a simulated audio function together with the host controller
// driving it. It implements hal.HostController and the streaming layer's
// control topology queries.
type Device struct {
	profile     Profile
	descriptors []byte

	mu        sync.Mutex
	rate      uint32
	muted     bool
	volume    [2]int16 // wire units, left and right
	bytesOut  uint64
	subDevice uint32
	running   bool

	queue  chan *hal.IsoRequest
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a simulated device from profile, filling in defaults and
// synthesizing its descriptor records.
func New(profile Profile) *Device {
	if profile.Speed == hal.SpeedUnknown {
		profile.Speed = hal.SpeedFull
	}
	if len(profile.Rates) == 0 {
		profile.Rates = DiscreteRates(44100)
	}
	if profile.TerminalType == 0 {
		profile.TerminalType = 0x0301 // generic speaker
	}
	if profile.DeviceNumber == 0 {
		profile.DeviceNumber = 1
	}

	d := &Device{profile: profile}
	d.descriptors = d.buildDescriptors()
	return d
}

// Start launches the transfer dispatcher. Completions run on the
// dispatcher goroutine from here on.
func (d *Device) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}

	d.queue = make(chan *hal.IsoRequest, 64)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.group, _ = errgroup.WithContext(d.ctx)
	d.group.Go(d.dispatch)
	d.running = true

	pkg.LogDebug(pkg.ComponentSim, "dispatcher started")
}

// Stop drains the dispatcher and waits for it to exit. Transfers
// submitted afterwards complete synchronously again.
func (d *Device) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel, group := d.cancel, d.group
	d.mu.Unlock()

	cancel()
	_ = group.Wait()

	pkg.LogDebug(pkg.ComponentSim, "dispatcher stopped")
}

func (d *Device) dispatch() error {
	for {
		select {
		case <-d.ctx.Done():
			return d.ctx.Err()
		case req := <-d.queue:
			d.complete(req)
		}
	}
}

// =============================================================================
// hal.HostController
// =============================================================================

// Speed returns the simulated bus speed.
func (d *Device) Speed() hal.Speed {
	return d.profile.Speed
}

// ControlMessage services the class-specific requests of the simulated
// audio function. Unrecognized requests stall.
//
// The mute selector and the sampling frequency selector share the value
// 0x01, so SET_CUR requests are routed by recipient and by the unit id
// carried in the high byte of wIndex.
func (d *Device) ControlMessage(setup *hal.SetupPacket, data []byte) (int, error) {
	// The setup stage crosses the simulated bus as wire bytes, the same
	// round trip a byte-transport backend performs.
	var wire [hal.SetupPacketSize]byte
	if setup.MarshalTo(wire[:]) != hal.SetupPacketSize {
		return 0, pkg.ErrInvalidParameter
	}
	var pkt hal.SetupPacket
	if !hal.ParseSetupPacket(wire[:], &pkt) {
		return 0, pkg.ErrInvalidParameter
	}

	selector := uint8(pkt.Value >> 8)
	channel := uint8(pkt.Value)
	recipient := pkt.RequestType & 0x1F
	unit := uint8(pkt.Index >> 8)

	switch {
	case pkt.Request == desc.RequestSetCur && recipient == hal.RequestToEndpoint:
		// 1.00 sampling frequency, addressed to the data endpoint.
		return d.setRate(data)

	case pkt.Request == desc.RequestSetCur && unit == d.profile.ClockSource && unit != 0:
		// 2.00 sampling frequency, addressed to the clock source.
		return d.setRate(data)

	case pkt.Request == desc.RequestSetCur && selector == desc.SelectorMute &&
		unit == d.profile.FeatureUnit:
		if len(data) < 1 || !d.hasControl() {
			return 0, pkg.ErrStall
		}
		d.mu.Lock()
		d.muted = data[0] != 0
		d.mu.Unlock()
		return 1, nil

	case pkt.Request == desc.RequestSetCur && selector == desc.SelectorVolume &&
		unit == d.profile.FeatureUnit:
		if len(data) < 2 || channel < 1 || channel > 2 || !d.hasControl() {
			return 0, pkg.ErrStall
		}
		d.mu.Lock()
		d.volume[channel-1] = int16(binary.LittleEndian.Uint16(data))
		d.mu.Unlock()
		return 2, nil

	case pkt.Request == desc.RequestGetMin && selector == desc.SelectorVolume:
		return d.volumeBound(data, d.profile.VolumeMinDB)

	case pkt.Request == desc.RequestGetMax && selector == desc.SelectorVolume:
		return d.volumeBound(data, d.profile.VolumeMaxDB)

	case pkt.Request == desc.RequestRange && unit == d.profile.ClockSource && unit != 0:
		return d.rateRanges(data)

	case pkt.Request == desc.RequestRange && selector == desc.SelectorVolume:
		return d.volumeRange(data)
	}

	pkg.LogDebug(pkg.ComponentSim, "unhandled control request",
		"setup", pkt.String())
	return 0, pkg.ErrStall
}

// SubmitIsoRequest enqueues req on the dispatcher, or completes it
// inline when the dispatcher is not running.
func (d *Device) SubmitIsoRequest(req *hal.IsoRequest) error {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()

	if !running {
		d.complete(req)
		return nil
	}

	select {
	case d.queue <- req:
		return nil
	case <-d.ctx.Done():
		return pkg.ErrNotRunning
	}
}

// complete finishes one isochronous transfer: OUT data is consumed and
// counted, feedback IN data is filled with the DAC's consumption rate.
// Completion state is tracked as a pkg.TransferStatus and mapped to the
// request's error through TransferStatus.Error.
func (d *Device) complete(req *hal.IsoRequest) {
	status := pkg.TransferStatusSuccess
	if req.IsIn() {
		status = d.fillFeedback(req)
	} else {
		d.mu.Lock()
		d.bytesOut += uint64(len(req.Data))
		d.mu.Unlock()
		req.Actual = len(req.Data)
	}

	req.Status = status.Error()
	if status != pkg.TransferStatusSuccess {
		pkg.LogDebug(pkg.ComponentSim, "transfer failed",
			"endpoint", req.Endpoint, "status", status.String())
	}

	if req.Complete != nil {
		req.Complete(req)
	}
}

// fillFeedback encodes the consumption rate as frames per service
// interval: 3-byte Q10.14 at Full Speed, 4-byte Q16.16 above. A buffer
// too small for the encoding overruns.
func (d *Device) fillFeedback(req *hal.IsoRequest) pkg.TransferStatus {
	rate := d.profile.ConsumptionRate
	if rate == 0 {
		d.mu.Lock()
		rate = d.rate
		d.mu.Unlock()
	}
	frameRate := uint64(d.profile.Speed.FrameRate())

	var value uint64
	var size int
	if d.profile.Speed == hal.SpeedFull {
		value = uint64(rate) << 14 / frameRate
		size = 3
	} else {
		value = uint64(rate) << 16 / frameRate
		size = 4
	}

	if len(req.Data) < size {
		req.Actual = len(req.Data)
		return pkg.TransferStatusOverrun
	}
	for i := 0; i < size; i++ {
		req.Data[i] = byte(value >> (8 * i))
	}
	req.Actual = size
	return pkg.TransferStatusSuccess
}

func (d *Device) setRate(data []byte) (int, error) {
	if len(data) != 3 && len(data) != 4 {
		return 0, pkg.ErrStall
	}
	var rate uint32
	for i, b := range data {
		rate |= uint32(b) << (8 * i)
	}
	if !d.rateSupported(rate) {
		pkg.LogDebug(pkg.ComponentSim, "rejecting sample rate", "rate", rate)
		return 0, pkg.ErrStall
	}
	d.mu.Lock()
	d.rate = rate
	d.mu.Unlock()
	return len(data), nil
}

func (d *Device) rateSupported(rate uint32) bool {
	for _, r := range d.profile.Rates {
		if r.Min <= rate && rate <= r.Max {
			return true
		}
	}
	return false
}

func (d *Device) volumeBound(data []byte, dB int) (int, error) {
	if len(data) < 2 || !d.hasControl() {
		return 0, pkg.ErrStall
	}
	binary.LittleEndian.PutUint16(data, uint16(int16(dB*256)))
	return 2, nil
}

// rateRanges serves the two-phase 2.00 RANGE query on the clock source's
// sampling frequency control.
func (d *Device) rateRanges(data []byte) (int, error) {
	if d.profile.ClockSource == 0 || len(data) < 2 {
		return 0, pkg.ErrStall
	}
	binary.LittleEndian.PutUint16(data, uint16(len(d.profile.Rates)))
	if len(data) == 2 {
		return 2, nil
	}

	n := 2
	for _, r := range d.profile.Rates {
		if n+12 > len(data) {
			break
		}
		binary.LittleEndian.PutUint32(data[n:], r.Min)
		binary.LittleEndian.PutUint32(data[n+4:], r.Max)
		binary.LittleEndian.PutUint32(data[n+8:], r.Resolution)
		n += 12
	}
	return n, nil
}

// volumeRange serves the 2.00 RANGE query on the feature unit's volume
// control with a single sub-range.
func (d *Device) volumeRange(data []byte) (int, error) {
	if len(data) < 8 || !d.hasControl() {
		return 0, pkg.ErrStall
	}
	binary.LittleEndian.PutUint16(data[0:2], 1)
	binary.LittleEndian.PutUint16(data[2:4], uint16(int16(d.profile.VolumeMinDB*256)))
	binary.LittleEndian.PutUint16(data[4:6], uint16(int16(d.profile.VolumeMaxDB*256)))
	binary.LittleEndian.PutUint16(data[6:8], 256) // 1 dB steps
	return 8, nil
}

func (d *Device) hasControl() bool {
	return d.profile.FeatureUnit != 0
}

// =============================================================================
// Control Topology
// =============================================================================

// TerminalType returns the output terminal's type code.
func (d *Device) TerminalType(link uint8) uint16 { return d.profile.TerminalType }

// ClockSourceID resolves the simulated clock source.
func (d *Device) ClockSourceID(link uint8) desc.UnitID {
	return desc.UnitID(d.profile.ClockSource)
}

// FeatureUnitID resolves the simulated feature unit.
func (d *Device) FeatureUnitID(link uint8) desc.UnitID {
	return desc.UnitID(d.profile.FeatureUnit)
}

// ControlSupported reports mute on the master channel and volume on both
// stereo channels when the profile has a feature unit.
func (d *Device) ControlSupported(unit desc.UnitID, channel uint8, control desc.ControlKind) bool {
	if d.profile.FeatureUnit == 0 || unit != desc.UnitID(d.profile.FeatureUnit) {
		return false
	}
	switch control {
	case desc.ControlMute:
		return channel == desc.MasterChannel
	case desc.ControlVolume:
		return channel == 1 || channel == 2
	default:
		return false
	}
}

// InterfaceClass returns the audio class code.
func (d *Device) InterfaceClass() uint8 { return 1 }

// InterfaceSubClass returns the audio control subclass code.
func (d *Device) InterfaceSubClass() uint8 { return 1 }

// DeviceNumber returns the simulated control device's number.
func (d *Device) DeviceNumber() uint32 { return d.profile.DeviceNumber }

// NextStreamingSubDeviceNumber allocates the next streaming sub-device
// number.
func (d *Device) NextStreamingSubDeviceNumber() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.subDevice
	d.subDevice++
	return n
}

// =============================================================================
// Streaming Interface Accessors
// =============================================================================

// Descriptors returns the synthesized class-specific interface and
// endpoint descriptor records of the streaming alternate setting.
func (d *Device) Descriptors() []byte {
	return append([]byte(nil), d.descriptors...)
}

// Protocol returns the streaming interface's bInterfaceProtocol.
func (d *Device) Protocol() uint8 { return d.profile.Protocol }

// NumEndpoints returns the alternate setting's endpoint count.
func (d *Device) NumEndpoints() int {
	if d.profile.Asynchronous {
		return 2
	}
	return 1
}

// =============================================================================
// Test Observability
// =============================================================================

// CurrentRate returns the last sample rate accepted by SET_CUR.
func (d *Device) CurrentRate() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate
}

// Muted returns the feature unit's mute state.
func (d *Device) Muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted
}

// VolumeDB returns one channel's volume in whole dB (0 = left,
// 1 = right).
func (d *Device) VolumeDB(channel int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.volume[channel] >> 8)
}

// BytesReceived returns the total payload received on the data endpoint.
func (d *Device) BytesReceived() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bytesOut
}

// =============================================================================
// Descriptor Synthesis
// =============================================================================

const (
	epOutAddress  = 0x01
	epSyncAddress = 0x81
)

func (d *Device) buildDescriptors() []byte {
	var buf []byte

	if d.profile.Protocol == desc.ProtocolVersion200 {
		buf = append(buf,
			16, desc.DescriptorTypeCSInterface, desc.SubtypeGeneral,
			1,          // bTerminalLink
			0,          // bmControls
			1,          // bFormatType
			1, 0, 0, 0, // bmFormats: PCM
			2,          // bNrChannels
			3, 0, 0, 0, // bmChannelConfig: front left/right
			0, // iChannelNames
		)
		buf = append(buf,
			6, desc.DescriptorTypeCSInterface, desc.SubtypeFormatType,
			desc.FormatTypeI,
			2,  // bSubslotSize
			16, // bBitResolution
		)
	} else {
		buf = append(buf,
			7, desc.DescriptorTypeCSInterface, desc.SubtypeGeneral,
			1,    // bTerminalLink
			1,    // bDelay
			1, 0, // wFormatTag: PCM
		)
		fmtRec := []byte{
			uint8(8 + 3*len(d.profile.Rates)),
			desc.DescriptorTypeCSInterface, desc.SubtypeFormatType,
			desc.FormatTypeI,
			2,  // bNrChannels
			2,  // bSubframeSize
			16, // bBitResolution
			uint8(len(d.profile.Rates)),
		}
		for _, r := range d.profile.Rates {
			fmtRec = append(fmtRec, byte(r.Min), byte(r.Min>>8), byte(r.Min>>16))
		}
		// A continuous profile (single range, Min != Max) uses the
		// zero-count lower/upper bound form instead.
		if len(d.profile.Rates) == 1 && d.profile.Rates[0].Min != d.profile.Rates[0].Max {
			r := d.profile.Rates[0]
			fmtRec = []byte{
				14, desc.DescriptorTypeCSInterface, desc.SubtypeFormatType,
				desc.FormatTypeI, 2, 2, 16, 0,
				byte(r.Min), byte(r.Min >> 8), byte(r.Min >> 16),
				byte(r.Max), byte(r.Max >> 8), byte(r.Max >> 16),
			}
		}
		buf = append(buf, fmtRec...)
	}

	outAttrs := uint8(0x0D) // isochronous, synchronous, data
	if d.profile.Asynchronous {
		outAttrs = 0x05 // isochronous, asynchronous, data
	}
	buf = append(buf,
		9, desc.DescriptorTypeEndpoint, epOutAddress, outAttrs,
		0xFF, 0x03, // wMaxPacketSize
		1,    // bInterval
		0, 0, // bRefresh, bSynchAddress
	)

	if d.profile.Asynchronous {
		buf = append(buf,
			9, desc.DescriptorTypeEndpoint, epSyncAddress,
			0x11,       // isochronous, feedback
			0x04, 0x00, // wMaxPacketSize
			1,    // bInterval
			4, 0, // bRefresh, bSynchAddress
		)
	}

	return buf
}
