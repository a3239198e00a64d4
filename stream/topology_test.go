package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleRateRange(t *testing.T) {
	discrete := SampleRateRange{Min: 44100, Max: 44100}
	assert.True(t, discrete.Contains(44100))
	assert.False(t, discrete.Contains(44099))
	assert.False(t, discrete.Contains(44101))
	assert.Equal(t, "44100", discrete.String())

	continuous := SampleRateRange{Min: 8000, Max: 48000, Resolution: 1}
	assert.True(t, continuous.Contains(8000))
	assert.True(t, continuous.Contains(48000))
	assert.True(t, continuous.Contains(22050))
	assert.False(t, continuous.Contains(7999))
	assert.False(t, continuous.Contains(48001))
	assert.Equal(t, "8000-48000/1", continuous.String())
}

func TestDeviceInfo_SupportsRate(t *testing.T) {
	info := DeviceInfo{SampleRateRanges: []SampleRateRange{
		{Min: 44100, Max: 44100},
		{Min: 88200, Max: 96000},
	}}
	assert.True(t, info.SupportsRate(44100))
	assert.True(t, info.SupportsRate(96000))
	assert.False(t, info.SupportsRate(48000))

	empty := DeviceInfo{}
	assert.False(t, empty.SupportsRate(44100))
}

func TestSyncModeString(t *testing.T) {
	assert.Equal(t, "synchronous", SyncSynchronous.String())
	assert.Equal(t, "asynchronous", SyncAsynchronous.String())
	assert.Equal(t, "adaptive", SyncAdaptive.String())
	assert.Equal(t, "unknown (0)", SyncUnknown.String())
}
