package stream

import (
	"encoding/binary"

	"github.com/ardnew/softuac/desc"
	"github.com/ardnew/softuac/hal"
	"github.com/ardnew/softuac/pkg"
)

// CompletionFunc is invoked when a chunk's OUT transfer completes. It
// runs in completion context and must not block.
type CompletionFunc func(param any)

// Feedback payload fixed-point formats.
const (
	// Full Speed feedback is a 3-byte Q10.14 samples-per-frame value.
	fracBitsQ1014 = 14

	// High Speed and above feedback is a 4-byte Q16.16
	// samples-per-microframe value.
	fracBitsQ1616 = 16
)

// Setup selects the streaming sample rate. The rate must fall inside one
// of the device's reported ranges. On failure the previous session state
// is left unchanged.
func (d *Device) Setup(sampleRate uint32) error {
	if !d.configured {
		return pkg.ErrNotConfigured
	}

	if !d.info.SupportsRate(sampleRate) {
		pkg.LogWarn(pkg.ComponentStream, "sample rate is not supported",
			"rate", sampleRate)
		return pkg.ErrUnsupportedSampleRate
	}

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], sampleRate)

	var setup hal.SetupPacket
	var data []byte
	if d.revision == desc.RevisionV100 {
		// 3-byte value addressed to the OUT endpoint.
		setup = hal.SetupPacket{
			RequestType: hal.RequestTypeOut | hal.RequestTypeClass | hal.RequestToEndpoint,
			Request:     desc.RequestSetCur,
			Value:       desc.SelectorSamplingFrequency << 8,
			Index:       uint16(d.epOut.Address),
			Length:      3,
		}
		data = buf[:3]
	} else {
		// 4-byte value addressed to the clock source.
		setup = hal.SetupPacket{
			RequestType: hal.RequestTypeOut | hal.RequestTypeClass | hal.RequestToInterface,
			Request:     desc.RequestSetCur,
			Value:       desc.SelectorSamplingFrequency << 8,
			Index:       uint16(d.clockSourceID)<<8 | uint16(d.ctrlIface),
			Length:      4,
		}
		data = buf[:4]
	}

	if _, err := d.ctrl.ControlMessage(&setup, data); err != nil {
		pkg.LogDebug(pkg.ComponentStream, "cannot set sample rate",
			"rate", sampleRate, "err", err)
		return pkg.ErrControlRequestFailed
	}

	d.mu.Lock()
	d.sampleRate = sampleRate
	d.mu.Unlock()

	if d.syncMode == SyncSynchronous {
		d.updateChunkSize()
	} else {
		// Nominal chunk size until the first feedback sample arrives.
		d.mu.Lock()
		d.chunkSizeBytes = sampleRate * FrameBytes / ChunkFrequency
		d.mu.Unlock()
	}

	return nil
}

// SampleRate returns the configured sample rate, 0 before Setup.
func (d *Device) SampleRate() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

// ChunkSizeBytes returns the size of the next chunk the caller should
// submit. Valid only after a successful Setup; it changes between
// submissions as the drift compensation runs.
func (d *Device) ChunkSizeBytes() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chunkSizeBytes
}

// SendChunk submits one chunk of audio as an isochronous OUT transfer.
// The buffer is owned by the controller until done runs. A non-nil error
// means nothing was submitted and the caller decides whether to drop the
// chunk or stop streaming.
func (d *Device) SendChunk(data []byte, done CompletionFunc, param any) error {
	if !d.configured {
		return pkg.ErrNotConfigured
	}

	req := &hal.IsoRequest{
		Endpoint: d.epOut.Address,
		Data:     data,
	}

	d.mu.Lock()
	if d.sampleRate == 0 {
		d.mu.Unlock()
		return pkg.ErrNotConfigured
	}
	if d.syncMode == SyncSynchronous {
		// One packet per frame tick, sized by the precomputed table.
		packets := make([]uint16, d.packetsPerChunk)
		copy(packets, d.packetSizeBytes[:d.packetsPerChunk])
		req.Packets = packets
	} else {
		req.Packets = []uint16{uint16(len(data))}
	}
	d.mu.Unlock()

	if done != nil {
		req.Complete = func(*hal.IsoRequest) { done(param) }
	}

	if err := d.ctrl.SubmitIsoRequest(req); err != nil {
		return err
	}

	if d.hasSyncEP {
		d.submitFeedback()
	} else if d.syncMode == SyncSynchronous {
		// Recompute ahead of completion so the caller can size its next
		// buffer immediately.
		d.updateChunkSize()
	}

	return nil
}

// submitFeedback enqueues one feedback IN transfer unless one is already
// outstanding.
func (d *Device) submitFeedback() {
	d.mu.Lock()
	if d.syncEPActive {
		d.mu.Unlock()
		return
	}
	d.syncEPActive = true

	// 3 bytes at Full Speed (Q10.14), 4 bytes above (Q16.16).
	size := 4
	if d.ctrl.Speed() == hal.SpeedFull {
		size = 3
	}
	req := &hal.IsoRequest{
		Endpoint: d.epSync.Address,
		Data:     d.syncBuf[:size],
		Packets:  []uint16{uint16(size)},
		Complete: d.completeFeedback,
	}
	d.mu.Unlock()

	if err := d.ctrl.SubmitIsoRequest(req); err != nil {
		pkg.LogDebug(pkg.ComponentStream, "feedback submission failed", "err", err)
		d.mu.Lock()
		d.syncEPActive = false
		d.mu.Unlock()
	}
}

// completeFeedback runs in completion context when a feedback transfer
// finishes. A failed or odd-sized sample leaves the previous chunk size
// unchanged; the accumulator is never reset, to avoid discontinuities.
func (d *Device) completeFeedback(req *hal.IsoRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.syncEPActive = false

	if req.Status != nil {
		pkg.LogDebug(pkg.ComponentStream, "feedback transfer failed", "err", req.Status)
		return
	}

	switch req.Actual {
	case 3:
		value := uint32(d.syncBuf[0]) |
			uint32(d.syncBuf[1])<<8 |
			uint32(d.syncBuf[2])<<16
		d.syncAccu += value
		d.chunkSizeBytes = (d.syncAccu >> fracBitsQ1014) * FrameBytes
		d.syncAccu &= 1<<fracBitsQ1014 - 1

	case 4:
		value := binary.LittleEndian.Uint32(d.syncBuf[:4])
		d.syncAccu += value
		d.chunkSizeBytes = (d.syncAccu >> fracBitsQ1616) * FrameBytes
		d.syncAccu &= 1<<fracBitsQ1616 - 1

	default:
		pkg.LogDebug(pkg.ComponentStream, "unexpected feedback length",
			"len", req.Actual)
	}
}

// updateChunkSize advances the synchronous-mode accumulator by one chunk
// interval and fills the per-packet size table. The remainder carried in
// the accumulator keeps the long-run packet rate converging exactly to
// the sample rate even when the frame rate does not divide it.
func (d *Device) updateChunkSize() {
	frameRate := d.ctrl.Speed().FrameRate()
	if frameRate == 0 {
		pkg.LogWarn(pkg.ComponentStream, "bus speed carries no isochronous service rate",
			"speed", d.ctrl.Speed().String())
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.packetsPerChunk = int(frameRate / ChunkFrequency)

	var chunk uint32
	for i := 0; i < d.packetsPerChunk; i++ {
		d.syncAccu += d.sampleRate
		frames := d.syncAccu / frameRate
		d.syncAccu %= frameRate
		d.packetSizeBytes[i] = uint16(frames * FrameBytes)
		chunk += frames * FrameBytes
	}

	d.chunkSizeBytes = chunk
}
