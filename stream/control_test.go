package stream

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softuac/desc"
	"github.com/ardnew/softuac/hal"
	"github.com/ardnew/softuac/pkg"
)

// configuredWithControls builds a V1.00 device whose feature unit 5
// exposes mute and stereo volume (-100..0 dB).
func configuredWithControls(t *testing.T, ctrl *mockController) *Device {
	t.Helper()

	handler := ctrl.control
	ctrl.control = func(setup *hal.SetupPacket, data []byte) (int, error) {
		switch setup.Request {
		case desc.RequestGetMin:
			min := int16(-100 * 256)
			binary.LittleEndian.PutUint16(data, uint16(min))
			return 2, nil
		case desc.RequestGetMax:
			binary.LittleEndian.PutUint16(data, 0)
			return 2, nil
		}
		if handler != nil {
			return handler(setup, data)
		}
		return len(data), nil
	}

	topo := newMockTopology()
	topo.featureUnit = 5
	topo.volume = true
	topo.mute = true

	dev := New(Config{
		Controller: ctrl,
		Topology:   topo,
		Descriptors: concat(
			csGeneralV1(1),
			csFormatV1Discrete(44100),
			epDesc(0x01, attrIsoSync, 1),
		),
		NumEndpoints:     1,
		ControlInterface: 0,
	})
	require.NoError(t, dev.Configure())
	ctrl.requests = nil
	return dev
}

// =============================================================================
// SetMute Tests
// =============================================================================

func TestSetMute(t *testing.T) {
	var payload []byte
	ctrl := &mockController{}
	dev := configuredWithControls(t, ctrl)
	ctrl.control = func(setup *hal.SetupPacket, data []byte) (int, error) {
		payload = append([]byte(nil), data...)
		return len(data), nil
	}

	require.NoError(t, dev.SetMute(true))
	require.Len(t, ctrl.requests, 1)
	setup := ctrl.requests[0]
	assert.Equal(t, uint8(hal.RequestTypeOut|hal.RequestTypeClass|hal.RequestToInterface),
		setup.RequestType)
	assert.Equal(t, uint8(desc.RequestSetCur), setup.Request)
	assert.Equal(t, uint16(desc.SelectorMute<<8), setup.Value) // master channel
	assert.Equal(t, uint16(5)<<8, setup.Index)
	assert.Equal(t, []byte{1}, payload)

	require.NoError(t, dev.SetMute(false))
	assert.Equal(t, []byte{0}, payload)
}

func TestSetMute_Unsupported(t *testing.T) {
	ctrl := &mockController{}
	dev := newV1Device(ctrl, newMockTopology(),
		csGeneralV1(1),
		csFormatV1Discrete(44100),
		epDesc(0x01, attrIsoSync, 1),
	)
	require.NoError(t, dev.Configure())

	assert.ErrorIs(t, dev.SetMute(true), pkg.ErrNotSupported)
}

func TestSetMute_RequiresConfigure(t *testing.T) {
	dev := New(Config{Controller: &mockController{}, NumEndpoints: 1})
	assert.ErrorIs(t, dev.SetMute(true), pkg.ErrNotConfigured)
}

func TestSetMute_RequestFailure(t *testing.T) {
	ctrl := &mockController{}
	dev := configuredWithControls(t, ctrl)
	ctrl.control = func(setup *hal.SetupPacket, data []byte) (int, error) {
		return 0, pkg.ErrStall
	}
	assert.ErrorIs(t, dev.SetMute(true), pkg.ErrControlRequestFailed)
}

// =============================================================================
// SetVolume Tests
// =============================================================================

func TestSetVolume(t *testing.T) {
	var payload []byte
	ctrl := &mockController{}
	dev := configuredWithControls(t, ctrl)
	ctrl.control = func(setup *hal.SetupPacket, data []byte) (int, error) {
		payload = append([]byte(nil), data...)
		return len(data), nil
	}

	// -20 dB in 1/256 dB units is -5120, 0xEC00 on the wire.
	require.NoError(t, dev.SetVolume(ChannelLeft, -20))
	require.Len(t, ctrl.requests, 1)
	setup := ctrl.requests[0]
	assert.Equal(t, uint8(desc.RequestSetCur), setup.Request)
	assert.Equal(t, uint16(desc.SelectorVolume<<8|0x01), setup.Value)
	assert.Equal(t, uint16(5)<<8, setup.Index)
	assert.Equal(t, []byte{0x00, 0xEC}, payload)

	require.NoError(t, dev.SetVolume(ChannelRight, 0))
	setup = ctrl.requests[1]
	assert.Equal(t, uint16(desc.SelectorVolume<<8|0x02), setup.Value)
	assert.Equal(t, []byte{0x00, 0x00}, payload)
}

func TestSetVolume_InvalidChannel(t *testing.T) {
	ctrl := &mockController{}
	dev := configuredWithControls(t, ctrl)

	assert.ErrorIs(t, dev.SetVolume(2, -10), pkg.ErrInvalidParameter)
	assert.ErrorIs(t, dev.SetVolume(-1, -10), pkg.ErrInvalidParameter)
	assert.Empty(t, ctrl.requests)
}

func TestSetVolume_Unsupported(t *testing.T) {
	ctrl := &mockController{}
	dev := newV1Device(ctrl, newMockTopology(),
		csGeneralV1(1),
		csFormatV1Discrete(44100),
		epDesc(0x01, attrIsoSync, 1),
	)
	require.NoError(t, dev.Configure())

	assert.ErrorIs(t, dev.SetVolume(ChannelLeft, -10), pkg.ErrNotSupported)
}

func TestSetVolume_RequestFailure(t *testing.T) {
	ctrl := &mockController{}
	dev := configuredWithControls(t, ctrl)
	ctrl.control = func(setup *hal.SetupPacket, data []byte) (int, error) {
		return 0, pkg.ErrStall
	}
	assert.ErrorIs(t, dev.SetVolume(ChannelLeft, -10), pkg.ErrControlRequestFailed)
}
