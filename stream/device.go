package stream

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/ardnew/softuac/desc"
	"github.com/ardnew/softuac/hal"
	"github.com/ardnew/softuac/pkg"
	"github.com/ardnew/softuac/registry"
)

// Config carries everything a streaming device needs from the
// enumeration layer: the transfer path, the associated control device,
// and the raw descriptor records of the selected alternate setting.
type Config struct {
	// Controller is the transfer path to the device.
	Controller hal.HostController

	// Topology is the associated audio control device, or nil when the
	// configuration has no control function at index 0.
	Topology ControlTopology

	// Registry receives the device under its generated name after a
	// successful Configure. Nil disables registration.
	Registry *registry.Registry

	// Descriptors holds the alternate setting's class-specific interface
	// and endpoint descriptor records, in configuration order.
	Descriptors []byte

	// InterfaceProtocol is the streaming interface's bInterfaceProtocol,
	// selecting the protocol revision.
	InterfaceProtocol uint8

	// NumEndpoints is the endpoint count of the alternate setting.
	NumEndpoints int

	// ControlInterface is the control interface's number, carried in the
	// low byte of wIndex for unit-addressed class requests.
	ControlInterface uint8
}

// Device is one USB Audio Class streaming function driving an
// isochronous playback endpoint.
type Device struct {
	ctrl      hal.HostController
	topo      ControlTopology
	reg       *registry.Registry
	ctrlIface uint8

	descriptors  []byte
	numEndpoints int

	revision      desc.Revision
	syncMode      SyncMode
	epOut         desc.Endpoint
	epSync        desc.Endpoint
	hasSyncEP     bool
	clockSourceID desc.UnitID
	featureUnitID desc.UnitID

	info       DeviceInfo
	name       string
	configured bool

	// The accumulator, chunk size, and packet size table are shared with
	// transfer completion context and guarded by mu.
	mu              sync.Mutex
	sampleRate      uint32
	syncAccu        uint32
	chunkSizeBytes  uint32
	packetsPerChunk int
	packetSizeBytes [MaxPacketsPerChunk]uint16
	syncEPActive    bool
	syncBuf         [4]byte
}

// New creates a streaming device from an alternate setting.
// The device is unusable until Configure succeeds.
func New(cfg Config) *Device {
	return &Device{
		ctrl:         cfg.Controller,
		topo:         cfg.Topology,
		reg:          cfg.Registry,
		ctrlIface:    cfg.ControlInterface,
		descriptors:  cfg.Descriptors,
		numEndpoints: cfg.NumEndpoints,
		revision:     desc.RevisionOf(cfg.InterfaceProtocol),
	}
}

// Initialize reports whether this alternate setting is a candidate
// streaming interface. A zero-endpoint alternate setting is not an
// error, merely not this interface.
func (d *Device) Initialize() bool {
	return d.numEndpoints >= 1
}

// Configure validates the descriptor set, resolves the control topology,
// and discovers the device's capabilities. Every failure is terminal for
// this interface: the enumeration layer is expected to leave it unusable
// rather than retry.
func (d *Device) Configure() error {
	r := desc.NewReader(d.descriptors)

	var general desc.General
	found := false
	for {
		rec := r.Next(desc.DescriptorTypeCSInterface)
		if rec == nil {
			break
		}
		if len(rec) >= 3 && rec[2] == desc.SubtypeGeneral {
			if err := desc.ParseGeneral(d.revision, rec, &general); err != nil {
				pkg.LogWarn(pkg.ComponentNegotiate, "AS_GENERAL descriptor malformed")
				return err
			}
			found = true
			break
		}
	}
	if !found {
		pkg.LogWarn(pkg.ComponentNegotiate, "AS_GENERAL descriptor expected")
		return pkg.ErrDescriptorMissing
	}

	rec := r.Next(desc.DescriptorTypeCSInterface)
	if rec == nil {
		pkg.LogWarn(pkg.ComponentNegotiate, "FORMAT_TYPE descriptor expected")
		return pkg.ErrDescriptorMissing
	}
	var format desc.FormatType
	if err := desc.ParseFormatType(d.revision, rec, &format); err != nil {
		pkg.LogWarn(pkg.ComponentNegotiate, "FORMAT_TYPE descriptor expected")
		return err
	}

	epRec := r.Next(desc.DescriptorTypeEndpoint)
	if epRec == nil {
		pkg.LogWarn(pkg.ComponentNegotiate, "isochronous data output EP expected")
		return pkg.ErrDescriptorMissing
	}
	var epOut desc.Endpoint
	if err := desc.ParseEndpoint(epRec, &epOut); err != nil {
		return err
	}
	if epOut.TransferType() != desc.TransferTypeIsochronous ||
		epOut.Usage() != desc.UsageData || epOut.IsIn() {
		pkg.LogWarn(pkg.ComponentNegotiate, "isochronous data output EP expected",
			"attributes", epOut.Attributes, "address", epOut.Address)
		return pkg.ErrDescriptorMalformed
	}
	if epOut.Interval != 1 {
		pkg.LogWarn(pkg.ComponentNegotiate, "unsupported EP timing",
			"interval", epOut.Interval)
		return pkg.ErrUnsupportedTiming
	}

	if err := d.validateFormat(&general, &format); err != nil {
		return err
	}

	switch epOut.SyncType() {
	case desc.SyncAsynchronous:
		// Asynchronous sync requires a companion feedback endpoint.
		inRec := r.Next(desc.DescriptorTypeEndpoint)
		if inRec == nil {
			pkg.LogWarn(pkg.ComponentNegotiate, "isochronous feedback input EP expected")
			return pkg.ErrDescriptorMissing
		}
		var epIn desc.Endpoint
		if err := desc.ParseEndpoint(inRec, &epIn); err != nil {
			return err
		}
		if epIn.TransferType() != desc.TransferTypeIsochronous ||
			epIn.Usage() != desc.UsageFeedback || !epIn.IsIn() {
			pkg.LogWarn(pkg.ComponentNegotiate, "isochronous feedback input EP expected",
				"attributes", epIn.Attributes, "address", epIn.Address)
			return pkg.ErrDescriptorMalformed
		}
		d.epSync = epIn
		d.hasSyncEP = true
		d.syncMode = SyncAsynchronous

	case desc.SyncSynchronous:
		d.syncMode = SyncSynchronous

	default:
		// No synchronization, or adaptive: neither drift scheme applies.
		pkg.LogWarn(pkg.ComponentNegotiate, "unsupported synchronization type",
			"sync", epOut.SyncType())
		return pkg.ErrUnsupportedSyncMode
	}

	d.epOut = epOut

	// The audio control interface is the first in the configuration, so
	// the associated control device has function index 0.
	if d.topo == nil ||
		d.topo.InterfaceClass() != audioInterfaceClass ||
		d.topo.InterfaceSubClass() != audioControlInterfaceSubC {
		pkg.LogWarn(pkg.ComponentNegotiate, "associated control device not found")
		return pkg.ErrTopologyResolution
	}

	var err error
	if d.revision == desc.RevisionV100 {
		err = d.discoverV100(&general, &format)
	} else {
		err = d.discoverV200(&general)
	}
	if err != nil {
		return err
	}

	d.info.MuteSupported = d.featureUnitID.Defined() &&
		d.topo.ControlSupported(d.featureUnitID, desc.MasterChannel, desc.ControlMute)

	d.name = fmt.Sprintf("uaudio%d-%d",
		d.topo.DeviceNumber(), d.topo.NextStreamingSubDeviceNumber())
	if d.reg != nil {
		if err := d.reg.AddDevice(d.name, d, false); err != nil {
			pkg.LogWarn(pkg.ComponentNegotiate, "device registration failed",
				"name", d.name, "err", err)
		}
	}

	d.configured = true

	pkg.LogInfo(pkg.ComponentNegotiate, "streaming interface configured",
		"name", d.name,
		"revision", d.revision.String(),
		"terminalType", fmt.Sprintf("0x%X", d.info.TerminalType),
		"sampleRates", rangesString(d.info.SampleRateRanges),
		"syncMode", d.syncMode.String())

	return nil
}

// validateFormat enforces the one wire format this engine supports:
// stereo, 16-bit signed PCM (Type I).
func (d *Device) validateFormat(general *desc.General, format *desc.FormatType) error {
	if d.revision == desc.RevisionV100 {
		if format.FormatType != desc.FormatTypeI ||
			format.NrChannels != Channels ||
			format.SubframeSize != SubframeSize ||
			format.BitResolution != SubframeSize*8 {
			pkg.LogWarn(pkg.ComponentNegotiate, "invalid output format",
				"channels", format.NrChannels,
				"subframe", format.SubframeSize,
				"bits", format.BitResolution)
			return pkg.ErrDescriptorMalformed
		}
		return nil
	}

	if format.FormatType != desc.FormatTypeI ||
		format.SubslotSize != SubframeSize ||
		format.BitResolution != SubframeSize*8 ||
		general.NrChannels != Channels {
		pkg.LogWarn(pkg.ComponentNegotiate, "invalid output format",
			"channels", general.NrChannels,
			"subslot", format.SubslotSize,
			"bits", format.BitResolution)
		return pkg.ErrDescriptorMalformed
	}
	return nil
}

// discoverV100 reads sample rates inline from the format descriptor and
// fetches the volume range with GET_MIN/GET_MAX requests.
func (d *Device) discoverV100(general *desc.General, format *desc.FormatType) error {
	d.info.TerminalType = d.topo.TerminalType(general.TerminalLink)

	if format.SamFreqType == 0 {
		// Continuous range: lower and upper bound entries. Revision 1.00
		// does not report a resolution.
		d.info.SampleRateRanges = []SampleRateRange{{
			Min: format.SampleFreq(0),
			Max: format.SampleFreq(1),
		}}
	} else {
		n := format.NumSampleFreqs()
		if n > MaxSampleRateRanges {
			n = MaxSampleRateRanges
		}
		ranges := make([]SampleRateRange, n)
		for i := 0; i < n; i++ {
			f := format.SampleFreq(i)
			ranges[i] = SampleRateRange{Min: f, Max: f}
		}
		d.info.SampleRateRanges = ranges
	}

	d.featureUnitID = d.topo.FeatureUnitID(general.TerminalLink)
	if d.featureUnitID.Defined() &&
		d.topo.ControlSupported(d.featureUnitID, 1, desc.ControlVolume) &&
		d.topo.ControlSupported(d.featureUnitID, 2, desc.ControlVolume) {

		// Volume range from the left channel only; the right channel is
		// expected to match.
		minDB, err := d.getVolumeBoundV100(desc.RequestGetMin)
		if err != nil {
			pkg.LogWarn(pkg.ComponentNegotiate, "cannot get volume minimum")
			return err
		}
		maxDB, err := d.getVolumeBoundV100(desc.RequestGetMax)
		if err != nil {
			pkg.LogWarn(pkg.ComponentNegotiate, "cannot get volume maximum")
			return err
		}

		d.info.MinVolumeDB = minDB
		d.info.MaxVolumeDB = maxDB
		d.info.VolumeSupported = true
	}

	return nil
}

// getVolumeBoundV100 issues one GET_MIN/GET_MAX request on the feature
// unit's left-channel volume control and truncates the 1/256 dB result
// to whole dB.
func (d *Device) getVolumeBoundV100(request uint8) (int, error) {
	var buf [2]byte
	setup := hal.SetupPacket{
		RequestType: hal.RequestTypeIn | hal.RequestTypeClass | hal.RequestToInterface,
		Request:     request,
		Value:       desc.SelectorVolume<<8 | 0x01, // left channel
		Index:       uint16(d.featureUnitID)<<8 | uint16(d.ctrlIface),
		Length:      2,
	}
	n, err := d.ctrl.ControlMessage(&setup, buf[:])
	if err != nil || n < 2 {
		return 0, pkg.ErrControlRequestFailed
	}
	return int(int16(binary.LittleEndian.Uint16(buf[:])) >> 8), nil
}

// discoverV200 resolves the clock source and queries it for the
// supported sampling frequency ranges, then fetches the volume range
// with a single RANGE request.
func (d *Device) discoverV200(general *desc.General) error {
	d.info.TerminalType = d.topo.TerminalType(general.TerminalLink)

	// A 2.00 function must expose a clock source for its input terminal.
	d.clockSourceID = d.topo.ClockSourceID(general.TerminalLink)
	if !d.clockSourceID.Defined() {
		pkg.LogWarn(pkg.ComponentNegotiate, "associated clock source not found",
			"terminalLink", general.TerminalLink)
		return pkg.ErrTopologyResolution
	}

	// Two-phase RANGE query: the number of sub-ranges first, then the
	// whole parameter block sized from that count.
	var cnt [2]byte
	setup := hal.SetupPacket{
		RequestType: hal.RequestTypeIn | hal.RequestTypeClass | hal.RequestToInterface,
		Request:     desc.RequestRange,
		Value:       desc.SelectorSamplingFrequency << 8,
		Index:       uint16(d.clockSourceID)<<8 | uint16(d.ctrlIface),
		Length:      2,
	}
	n, err := d.ctrl.ControlMessage(&setup, cnt[:])
	if err != nil || n < 2 {
		pkg.LogWarn(pkg.ComponentNegotiate, "cannot get number of sampling frequency subranges")
		return pkg.ErrControlRequestFailed
	}

	count := int(binary.LittleEndian.Uint16(cnt[:]))
	bufSize := 2 + 12*count
	if bufSize > 0xFFFF {
		// Cannot be requested in one control transfer (wLength is 16-bit).
		pkg.LogWarn(pkg.ComponentNegotiate, "implausible sampling frequency subrange count",
			"count", count)
		return pkg.ErrControlRequestFailed
	}
	buf := make([]byte, bufSize)
	setup.Length = uint16(bufSize)
	n, err = d.ctrl.ControlMessage(&setup, buf)
	if err != nil {
		pkg.LogWarn(pkg.ComponentNegotiate, "cannot get sampling frequency ranges")
		return pkg.ErrControlRequestFailed
	}

	retain := count
	if retain > MaxSampleRateRanges {
		retain = MaxSampleRateRanges
	}
	if n < 2+12*retain {
		pkg.LogWarn(pkg.ComponentNegotiate, "short sampling frequency range block",
			"got", n, "want", 2+12*retain)
		return pkg.ErrControlRequestFailed
	}

	ranges := make([]SampleRateRange, retain)
	for i := 0; i < retain; i++ {
		off := 2 + 12*i
		ranges[i] = SampleRateRange{
			Min:        binary.LittleEndian.Uint32(buf[off:]),
			Max:        binary.LittleEndian.Uint32(buf[off+4:]),
			Resolution: binary.LittleEndian.Uint32(buf[off+8:]),
		}
	}
	d.info.SampleRateRanges = ranges

	d.featureUnitID = d.topo.FeatureUnitID(general.TerminalLink)
	if d.featureUnitID.Defined() &&
		d.topo.ControlSupported(d.featureUnitID, 1, desc.ControlVolume) &&
		d.topo.ControlSupported(d.featureUnitID, 2, desc.ControlVolume) {

		// Volume range from the left channel only; a single RANGE request
		// returns a count-prefixed block of s16 (min, max, res) triples.
		var vbuf [8]byte
		setup := hal.SetupPacket{
			RequestType: hal.RequestTypeIn | hal.RequestTypeClass | hal.RequestToInterface,
			Request:     desc.RequestRange,
			Value:       desc.SelectorVolume<<8 | 0x01, // left channel
			Index:       uint16(d.featureUnitID)<<8 | uint16(d.ctrlIface),
			Length:      uint16(len(vbuf)),
		}
		n, err := d.ctrl.ControlMessage(&setup, vbuf[:])
		if err != nil || n < 2 {
			pkg.LogWarn(pkg.ComponentNegotiate, "cannot get volume range")
			return pkg.ErrControlRequestFailed
		}

		if binary.LittleEndian.Uint16(vbuf[0:2]) == 1 && n >= 6 {
			d.info.MinVolumeDB = int(int16(binary.LittleEndian.Uint16(vbuf[2:4])) >> 8)
			d.info.MaxVolumeDB = int(int16(binary.LittleEndian.Uint16(vbuf[4:6])) >> 8)
			d.info.VolumeSupported = true
		}
	}

	return nil
}

// Info returns the capability summary produced by Configure.
func (d *Device) Info() DeviceInfo {
	info := d.info
	info.SampleRateRanges = append([]SampleRateRange(nil), d.info.SampleRateRanges...)
	return info
}

// Name returns the registered device name, empty before Configure.
func (d *Device) Name() string {
	return d.name
}

// Revision returns the negotiated protocol revision.
func (d *Device) Revision() desc.Revision {
	return d.revision
}

// SyncMode returns the negotiated synchronization mode.
func (d *Device) SyncMode() SyncMode {
	return d.syncMode
}

// Close unregisters the device and tears down the session. The caller
// must first quiesce the controller's transfer queues for both endpoints;
// no completion callback may be in flight when Close is called.
func (d *Device) Close() error {
	if d.reg != nil && d.name != "" {
		d.reg.RemoveDevice(d.name, true)
	}

	d.mu.Lock()
	d.sampleRate = 0
	d.chunkSizeBytes = 0
	d.packetsPerChunk = 0
	d.syncAccu = 0
	d.syncEPActive = false
	d.mu.Unlock()

	d.configured = false
	return nil
}

// rangesString formats the supported rate list for the configuration log
// line.
func rangesString(ranges []SampleRateRange) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
