package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softuac/desc"
	"github.com/ardnew/softuac/hal"
	"github.com/ardnew/softuac/pkg"
)

// =============================================================================
// Descriptor Synthesis Tests
// =============================================================================

func TestDescriptors_V100Discrete(t *testing.T) {
	dev := New(Profile{Rates: DiscreteRates(44100, 48000)})
	r := desc.NewReader(dev.Descriptors())

	rec := r.Next(desc.DescriptorTypeCSInterface)
	require.NotNil(t, rec)
	var general desc.General
	require.NoError(t, desc.ParseGeneral(desc.RevisionV100, rec, &general))

	rec = r.Next(desc.DescriptorTypeCSInterface)
	require.NotNil(t, rec)
	var format desc.FormatType
	require.NoError(t, desc.ParseFormatType(desc.RevisionV100, rec, &format))
	assert.Equal(t, 2, format.NumSampleFreqs())
	assert.Equal(t, uint32(44100), format.SampleFreq(0))
	assert.Equal(t, uint32(48000), format.SampleFreq(1))

	rec = r.Next(desc.DescriptorTypeEndpoint)
	require.NotNil(t, rec)
	var ep desc.Endpoint
	require.NoError(t, desc.ParseEndpoint(rec, &ep))
	assert.False(t, ep.IsIn())
	assert.Equal(t, uint8(desc.SyncSynchronous), ep.SyncType())

	// Synchronous profiles carry no feedback endpoint.
	assert.Nil(t, r.Next(desc.DescriptorTypeEndpoint))
	assert.Equal(t, 1, dev.NumEndpoints())
}

func TestDescriptors_V100Continuous(t *testing.T) {
	dev := New(Profile{Rates: []RateRange{{Min: 8000, Max: 48000}}})
	r := desc.NewReader(dev.Descriptors())

	r.Next(desc.DescriptorTypeCSInterface) // AS_GENERAL
	rec := r.Next(desc.DescriptorTypeCSInterface)
	require.NotNil(t, rec)
	var format desc.FormatType
	require.NoError(t, desc.ParseFormatType(desc.RevisionV100, rec, &format))
	assert.Equal(t, uint8(0), format.SamFreqType)
	assert.Equal(t, uint32(8000), format.SampleFreq(0))
	assert.Equal(t, uint32(48000), format.SampleFreq(1))
}

func TestDescriptors_Asynchronous(t *testing.T) {
	dev := New(Profile{Asynchronous: true})
	r := desc.NewReader(dev.Descriptors())

	rec := r.Next(desc.DescriptorTypeEndpoint)
	require.NotNil(t, rec)
	var ep desc.Endpoint
	require.NoError(t, desc.ParseEndpoint(rec, &ep))
	assert.Equal(t, uint8(desc.SyncAsynchronous), ep.SyncType())

	rec = r.Next(desc.DescriptorTypeEndpoint)
	require.NotNil(t, rec)
	require.NoError(t, desc.ParseEndpoint(rec, &ep))
	assert.True(t, ep.IsIn())
	assert.Equal(t, uint8(desc.UsageFeedback), ep.Usage())
	assert.Equal(t, 2, dev.NumEndpoints())
}

func TestDescriptors_V200(t *testing.T) {
	dev := New(Profile{
		Protocol:    desc.ProtocolVersion200,
		ClockSource: 9,
	})
	assert.Equal(t, uint8(desc.ProtocolVersion200), dev.Protocol())

	r := desc.NewReader(dev.Descriptors())
	rec := r.Next(desc.DescriptorTypeCSInterface)
	require.NotNil(t, rec)
	var general desc.General
	require.NoError(t, desc.ParseGeneral(desc.RevisionV200, rec, &general))
	assert.Equal(t, uint8(2), general.NrChannels)

	rec = r.Next(desc.DescriptorTypeCSInterface)
	require.NotNil(t, rec)
	var format desc.FormatType
	require.NoError(t, desc.ParseFormatType(desc.RevisionV200, rec, &format))
	assert.Equal(t, uint8(2), format.SubslotSize)
	assert.Equal(t, uint8(16), format.BitResolution)
}

// =============================================================================
// Control Request Tests
// =============================================================================

func TestControl_SetRate(t *testing.T) {
	dev := New(Profile{Rates: DiscreteRates(44100, 48000)})

	setup := hal.SetupPacket{
		RequestType: hal.RequestTypeOut | hal.RequestTypeClass | hal.RequestToEndpoint,
		Request:     desc.RequestSetCur,
		Value:       desc.SelectorSamplingFrequency << 8,
		Index:       epOutAddress,
		Length:      3,
	}
	n, err := dev.ControlMessage(&setup, []byte{0x44, 0xAC, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint32(44100), dev.CurrentRate())

	// An unsupported rate stalls and leaves the current rate alone.
	_, err = dev.ControlMessage(&setup, []byte{0x22, 0x56, 0x00}) // 22050
	assert.ErrorIs(t, err, pkg.ErrStall)
	assert.Equal(t, uint32(44100), dev.CurrentRate())
}

func TestControl_MuteAndVolume(t *testing.T) {
	dev := New(Profile{FeatureUnit: 5, VolumeMinDB: -100, VolumeMaxDB: 0})

	mute := hal.SetupPacket{
		RequestType: hal.RequestTypeOut | hal.RequestTypeClass | hal.RequestToInterface,
		Request:     desc.RequestSetCur,
		Value:       desc.SelectorMute << 8,
		Index:       5 << 8,
		Length:      1,
	}
	_, err := dev.ControlMessage(&mute, []byte{1})
	require.NoError(t, err)
	assert.True(t, dev.Muted())

	vol := hal.SetupPacket{
		RequestType: hal.RequestTypeOut | hal.RequestTypeClass | hal.RequestToInterface,
		Request:     desc.RequestSetCur,
		Value:       desc.SelectorVolume<<8 | 0x01,
		Index:       5 << 8,
		Length:      2,
	}
	_, err = dev.ControlMessage(&vol, []byte{0x00, 0xEC}) // -20 dB
	require.NoError(t, err)
	assert.Equal(t, -20, dev.VolumeDB(0))
}

func TestControl_VolumeBounds(t *testing.T) {
	dev := New(Profile{FeatureUnit: 5, VolumeMinDB: -64, VolumeMaxDB: 6})

	setup := hal.SetupPacket{
		RequestType: hal.RequestTypeIn | hal.RequestTypeClass | hal.RequestToInterface,
		Request:     desc.RequestGetMin,
		Value:       desc.SelectorVolume<<8 | 0x01,
		Index:       5 << 8,
		Length:      2,
	}
	var buf [2]byte
	_, err := dev.ControlMessage(&setup, buf[:])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xC0}, buf[:]) // -64 * 256

	setup.Request = desc.RequestGetMax
	_, err = dev.ControlMessage(&setup, buf[:])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x06}, buf[:]) // 6 * 256
}

func TestControl_UnhandledStalls(t *testing.T) {
	dev := New(Profile{})
	setup := hal.SetupPacket{
		RequestType: hal.RequestTypeIn | hal.RequestTypeClass | hal.RequestToInterface,
		Request:     0x7F,
	}
	_, err := dev.ControlMessage(&setup, nil)
	assert.ErrorIs(t, err, pkg.ErrStall)
}

// =============================================================================
// Transfer Dispatch Tests
// =============================================================================

func TestSubmit_InlineWhenStopped(t *testing.T) {
	dev := New(Profile{})

	done := false
	req := &hal.IsoRequest{
		Endpoint: epOutAddress,
		Data:     make([]byte, 176),
		Complete: func(req *hal.IsoRequest) { done = true },
	}
	require.NoError(t, dev.SubmitIsoRequest(req))
	assert.True(t, done)
	assert.NoError(t, req.Status)
	assert.Equal(t, 176, req.Actual)
	assert.Equal(t, uint64(176), dev.BytesReceived())
}

func TestSubmit_Dispatched(t *testing.T) {
	dev := New(Profile{})
	dev.Start()
	defer dev.Stop()

	completed := make(chan *hal.IsoRequest, 1)
	req := &hal.IsoRequest{
		Endpoint: epOutAddress,
		Data:     make([]byte, 192),
		Complete: func(req *hal.IsoRequest) { completed <- req },
	}
	require.NoError(t, dev.SubmitIsoRequest(req))

	select {
	case got := <-completed:
		assert.Equal(t, 192, got.Actual)
	case <-time.After(time.Second):
		t.Fatal("transfer never completed")
	}
	assert.Equal(t, uint64(192), dev.BytesReceived())
}

func TestFeedback_FullSpeed(t *testing.T) {
	dev := New(Profile{ConsumptionRate: 44100})

	var buf [3]byte
	req := &hal.IsoRequest{
		Endpoint: epSyncAddress,
		Data:     buf[:],
	}
	require.NoError(t, dev.SubmitIsoRequest(req))
	require.NoError(t, req.Status)
	require.Equal(t, 3, req.Actual)

	// 44100 frames/s over 1000 frames/s in Q10.14.
	value := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16
	assert.Equal(t, uint32(44100*16384/1000), value)
}

func TestFeedback_HighSpeed(t *testing.T) {
	dev := New(Profile{Speed: hal.SpeedHigh, ConsumptionRate: 48000})

	var buf [4]byte
	req := &hal.IsoRequest{
		Endpoint: epSyncAddress,
		Data:     buf[:],
	}
	require.NoError(t, dev.SubmitIsoRequest(req))
	require.Equal(t, 4, req.Actual)

	value := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	assert.Equal(t, uint32(48000*65536/8000), value)
}

func TestFeedback_ShortBuffer(t *testing.T) {
	dev := New(Profile{ConsumptionRate: 44100})

	// A 2-byte buffer cannot hold the 3-byte Full Speed encoding; the
	// transfer completes as an overrun.
	var buf [2]byte
	completed := false
	req := &hal.IsoRequest{
		Endpoint: epSyncAddress,
		Data:     buf[:],
		Complete: func(req *hal.IsoRequest) { completed = true },
	}
	require.NoError(t, dev.SubmitIsoRequest(req))
	assert.True(t, completed)
	assert.ErrorIs(t, req.Status, pkg.ErrOverrun)
	assert.Equal(t, 2, req.Actual)
}

func TestFeedback_TracksNegotiatedRate(t *testing.T) {
	dev := New(Profile{Rates: DiscreteRates(48000)})

	setup := hal.SetupPacket{
		RequestType: hal.RequestTypeOut | hal.RequestTypeClass | hal.RequestToEndpoint,
		Request:     desc.RequestSetCur,
		Value:       desc.SelectorSamplingFrequency << 8,
		Index:       epOutAddress,
		Length:      3,
	}
	_, err := dev.ControlMessage(&setup, []byte{0x80, 0xBB, 0x00})
	require.NoError(t, err)

	var buf [3]byte
	req := &hal.IsoRequest{Endpoint: epSyncAddress, Data: buf[:]}
	require.NoError(t, dev.SubmitIsoRequest(req))

	value := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16
	assert.Equal(t, uint32(48000*16384/1000), value)
}
