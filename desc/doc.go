// Package desc provides typed views over raw USB Audio Class descriptor
// records for protocol revisions 1.00 and 2.00.
//
// The two revisions share descriptor subtype tags but differ in field
// layout, so every parsed view carries its [Revision] tag and a record is
// never reinterpreted across revisions. All parsing validates record
// length and subtype before any field is read; descriptor bytes come from
// the device and are treated as untrusted input.
//
// # Walking an interface's descriptor set
//
// [Reader] is a forward cursor over the raw descriptor records of one
// alternate setting, mirroring how the records appear inside the
// configuration descriptor:
//
//	r := desc.NewReader(raw)
//	rec := r.Next(desc.DescriptorTypeCSInterface)
//
// # Parsed views
//
//   - [General]: the class-specific AS_GENERAL interface descriptor
//   - [FormatType]: the Type I format descriptor, including the inline
//     sample-rate table under revision 1.00
//   - [Endpoint]: the (audio-extended) standard endpoint descriptor
package desc
