package stream

import (
	"encoding/binary"

	"github.com/ardnew/softuac/desc"
	"github.com/ardnew/softuac/hal"
	"github.com/ardnew/softuac/pkg"
)

// Stereo channel selectors for SetVolume.
const (
	ChannelLeft  = 0
	ChannelRight = 1
)

// SetMute enables or disables the feature unit's master-channel mute.
// The request encoding is identical under both protocol revisions.
func (d *Device) SetMute(enable bool) error {
	if !d.configured {
		return pkg.ErrNotConfigured
	}
	if !d.info.MuteSupported {
		return pkg.ErrNotSupported
	}

	var buf [1]byte
	if enable {
		buf[0] = 1
	}

	setup := hal.SetupPacket{
		RequestType: hal.RequestTypeOut | hal.RequestTypeClass | hal.RequestToInterface,
		Request:     desc.RequestSetCur,
		Value:       desc.SelectorMute<<8 | desc.MasterChannel,
		Index:       uint16(d.featureUnitID)<<8 | uint16(d.ctrlIface),
		Length:      1,
	}
	if _, err := d.ctrl.ControlMessage(&setup, buf[:]); err != nil {
		pkg.LogDebug(pkg.ComponentControl, "cannot set mute", "err", err)
		return pkg.ErrControlRequestFailed
	}
	return nil
}

// SetVolume sets one stereo channel's volume in whole dB. The value is
// scaled to the wire's 1/256 dB units; it should lie within the range
// reported in DeviceInfo. The request encoding is identical under both
// protocol revisions.
func (d *Device) SetVolume(channel int, dB int) error {
	if channel != ChannelLeft && channel != ChannelRight {
		return pkg.ErrInvalidParameter
	}
	if !d.configured {
		return pkg.ErrNotConfigured
	}
	if !d.info.VolumeSupported {
		return pkg.ErrNotSupported
	}

	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(int16(dB)<<8))

	setup := hal.SetupPacket{
		RequestType: hal.RequestTypeOut | hal.RequestTypeClass | hal.RequestToInterface,
		Request:     desc.RequestSetCur,
		Value:       desc.SelectorVolume<<8 | uint16(channel+1),
		Index:       uint16(d.featureUnitID)<<8 | uint16(d.ctrlIface),
		Length:      2,
	}
	if _, err := d.ctrl.ControlMessage(&setup, buf[:]); err != nil {
		pkg.LogDebug(pkg.ComponentControl, "cannot set volume",
			"channel", channel, "dB", dB, "err", err)
		return pkg.ErrControlRequestFailed
	}
	return nil
}
