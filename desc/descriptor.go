package desc

import (
	"encoding/binary"

	"github.com/ardnew/softuac/pkg"
)

// Reader is a forward cursor over the raw descriptor records of one
// alternate setting. Each record starts with bLength and bDescriptorType;
// a record with an impossible length terminates the scan.
type Reader struct {
	data []byte
	off  int
}

// NewReader creates a cursor over raw descriptor records.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Reset rewinds the cursor to the first record.
func (r *Reader) Reset() {
	r.off = 0
}

// Next returns the next record with the given descriptor type, including
// its two-byte header, advancing the cursor past it. Returns nil when no
// further matching record exists.
func (r *Reader) Next(descType uint8) []byte {
	for r.off+2 <= len(r.data) {
		length := int(r.data[r.off])
		if length < 2 || r.off+length > len(r.data) {
			return nil
		}
		rec := r.data[r.off : r.off+length]
		r.off += length
		if rec[1] == descType {
			return rec
		}
	}
	return nil
}

// General is the parsed class-specific AS_GENERAL interface descriptor.
// Fields beyond TerminalLink are revision-dependent; only the fields for
// the tagged Revision are meaningful.
type General struct {
	Revision     Revision
	TerminalLink uint8 // Terminal this interface streams to/from

	// Revision 1.00 fields.
	Delay     uint8  // Interface delay in frames
	FormatTag uint16 // wFormatTag (PCM = 0x0001)

	// Revision 2.00 fields.
	Controls      uint8  // bmControls
	FormatType    uint8  // bFormatType
	Formats       uint32 // bmFormats
	NrChannels    uint8  // Channel count of the cluster
	ChannelConfig uint32 // bmChannelConfig
}

// asGeneralLen gives the minimum AS_GENERAL record length per revision.
const (
	generalLenV100 = 7
	generalLenV200 = 16
)

// ParseGeneral parses an AS_GENERAL record using the layout of the given
// revision. The record must include its two-byte header.
func ParseGeneral(rev Revision, rec []byte, out *General) error {
	if len(rec) < 3 || rec[1] != DescriptorTypeCSInterface || rec[2] != SubtypeGeneral {
		return pkg.ErrDescriptorMalformed
	}

	switch rev {
	case RevisionV100:
		if len(rec) < generalLenV100 {
			return pkg.ErrDescriptorMalformed
		}
		out.Revision = rev
		out.TerminalLink = rec[3]
		out.Delay = rec[4]
		out.FormatTag = binary.LittleEndian.Uint16(rec[5:7])
		return nil

	case RevisionV200:
		if len(rec) < generalLenV200 {
			return pkg.ErrDescriptorMalformed
		}
		out.Revision = rev
		out.TerminalLink = rec[3]
		out.Controls = rec[4]
		out.FormatType = rec[5]
		out.Formats = binary.LittleEndian.Uint32(rec[6:10])
		out.NrChannels = rec[10]
		out.ChannelConfig = binary.LittleEndian.Uint32(rec[11:15])
		return nil

	default:
		return pkg.ErrInvalidParameter
	}
}

// FormatType is the parsed FORMAT_TYPE descriptor. Only the fields for
// the tagged Revision are meaningful. Under revision 1.00 the inline
// sample-rate table is retained for [FormatType.SampleFreq].
type FormatType struct {
	Revision   Revision
	FormatType uint8 // bFormatType (Type I expected)

	// Revision 1.00 fields.
	NrChannels    uint8
	SubframeSize  uint8
	BitResolution uint8
	SamFreqType   uint8  // 0 = continuous range, else discrete count
	samFreq       []byte // raw 3-byte frequency entries

	// Revision 2.00 fields.
	SubslotSize uint8
}

const (
	formatTypeLenV100 = 8 // header through bSamFreqType
	formatTypeLenV200 = 6
	sampleFreqSize    = 3 // 3-byte frequency entries under v1.00
)

// ParseFormatType parses a FORMAT_TYPE record using the layout of the
// given revision.
func ParseFormatType(rev Revision, rec []byte, out *FormatType) error {
	if len(rec) < 3 || rec[1] != DescriptorTypeCSInterface || rec[2] != SubtypeFormatType {
		return pkg.ErrDescriptorMalformed
	}

	switch rev {
	case RevisionV100:
		if len(rec) < formatTypeLenV100 {
			return pkg.ErrDescriptorMalformed
		}
		out.Revision = rev
		out.FormatType = rec[3]
		out.NrChannels = rec[4]
		out.SubframeSize = rec[5]
		out.BitResolution = rec[6]
		out.SamFreqType = rec[7]

		// Continuous ranges carry lower and upper bound entries.
		entries := int(out.SamFreqType)
		if entries == 0 {
			entries = 2
		}
		if len(rec) < formatTypeLenV100+entries*sampleFreqSize {
			return pkg.ErrDescriptorMalformed
		}
		out.samFreq = rec[formatTypeLenV100 : formatTypeLenV100+entries*sampleFreqSize]
		return nil

	case RevisionV200:
		if len(rec) < formatTypeLenV200 {
			return pkg.ErrDescriptorMalformed
		}
		out.Revision = rev
		out.FormatType = rec[3]
		out.SubslotSize = rec[4]
		out.BitResolution = rec[5]
		return nil

	default:
		return pkg.ErrInvalidParameter
	}
}

// NumSampleFreqs returns the number of 3-byte frequency entries retained
// from a revision 1.00 record (2 for a continuous range).
func (f *FormatType) NumSampleFreqs() int {
	return len(f.samFreq) / sampleFreqSize
}

// SampleFreq decodes the i-th 3-byte frequency entry in Hz.
// Returns 0 when out of range.
func (f *FormatType) SampleFreq(i int) uint32 {
	off := i * sampleFreqSize
	if i < 0 || off+sampleFreqSize > len(f.samFreq) {
		return 0
	}
	return uint32(f.samFreq[off]) |
		uint32(f.samFreq[off+1])<<8 |
		uint32(f.samFreq[off+2])<<16
}

// Endpoint is the parsed standard endpoint descriptor, including the
// audio-class extension bytes when present.
type Endpoint struct {
	Address       uint8  // bEndpointAddress, including direction bit
	Attributes    uint8  // bmAttributes
	MaxPacketSize uint16 // wMaxPacketSize
	Interval      uint8  // bInterval
	Refresh       uint8  // bRefresh (audio extension)
	SynchAddress  uint8  // bSynchAddress (audio extension)
}

const (
	endpointLenStd   = 7
	endpointLenAudio = 9
)

// ParseEndpoint parses a standard (optionally audio-extended) endpoint
// descriptor record.
func ParseEndpoint(rec []byte, out *Endpoint) error {
	if len(rec) < endpointLenStd || rec[1] != DescriptorTypeEndpoint {
		return pkg.ErrDescriptorMalformed
	}
	out.Address = rec[2]
	out.Attributes = rec[3]
	out.MaxPacketSize = binary.LittleEndian.Uint16(rec[4:6])
	out.Interval = rec[6]
	out.Refresh = 0
	out.SynchAddress = 0
	if len(rec) >= endpointLenAudio {
		out.Refresh = rec[7]
		out.SynchAddress = rec[8]
	}
	return nil
}

// Number returns the endpoint number (0-15).
func (e *Endpoint) Number() uint8 {
	return e.Address & 0x0F
}

// IsIn returns true for an IN endpoint (device to host).
func (e *Endpoint) IsIn() bool {
	return e.Address&0x80 != 0
}

// TransferType returns bmAttributes bits 1:0 (see the TransferType*
// constants).
func (e *Endpoint) TransferType() uint8 {
	return e.Attributes & 0x03
}

// SyncType returns bmAttributes bits 3:2 (see the Sync* constants).
func (e *Endpoint) SyncType() uint8 {
	return (e.Attributes >> 2) & 0x03
}

// Usage returns bmAttributes bits 5:4 (see the Usage* constants).
func (e *Endpoint) Usage() uint8 {
	return (e.Attributes >> 4) & 0x03
}
