package rimage

import "strings"

// DepthFormat names how a depth value is packed into the 4 channels of an image pixel.
type DepthFormat string

const (
	// DepthFormatUInt16 packs a little-endian 16-bit depth into the red (low byte) and green
	// (high byte) channels, in tenths of a world unit.
	DepthFormatUInt16 = DepthFormat("UInt16")
	// DepthFormatByte stores depth directly in the red channel.
	DepthFormatByte = DepthFormat("Byte")
)

// uint16DepthScale converts device units of the 16-bit encoding to world units.
const uint16DepthScale = 10.0

// ParseDepthFormat maps a user supplied encoding name to a DepthFormat. Matching is
// case-insensitive and anything that is not "uint16" decodes as a single byte.
func ParseDepthFormat(name string) DepthFormat {
	if strings.EqualFold(name, string(DepthFormatUInt16)) {
		return DepthFormatUInt16
	}
	return DepthFormatByte
}

// DecodeDepth extracts the depth scalar from a raw RGBA pixel quad. A result of exactly 0 marks
// a missing sample.
func DecodeDepth(quad [4]uint8, format DepthFormat) float64 {
	if format == DepthFormatUInt16 {
		return float64(uint16(quad[1])<<8|uint16(quad[0])) / uint16DepthScale
	}
	return float64(quad[0])
}

// EncodeUInt16Depth is the inverse of the UInt16 decoding for a raw device value. Alpha is
// always opaque so the pixel survives image encoders that premultiply.
func EncodeUInt16Depth(raw uint16) [4]uint8 {
	return [4]uint8{uint8(raw & 0xFF), uint8(raw >> 8), 0, 0xFF}
}
