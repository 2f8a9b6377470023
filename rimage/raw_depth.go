package rimage

import (
	"encoding/binary"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// rawDepthHeaderLen is the fixed size of the text header in front of raw Kinect depth dumps,
// e.g. "P5\n640 480\n65535\n".
const rawDepthHeaderLen = 17

// maxRawDepthPixels bounds the size a header may claim before anything is allocated.
const maxRawDepthPixels = 1 << 26

// ReadRawDepth reads a raw single-channel 16-bit depth dump and packs every sample into the
// 4-channel layout DepthFormatUInt16 decodes.
func ReadRawDepth(r io.Reader) (*PixelBuffer, error) {
	header := make([]byte, rawDepthHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.Wrap(err, "reading raw depth header")
	}
	fields := strings.Fields(string(header))
	if len(fields) < 3 {
		return nil, errors.Errorf("malformed raw depth header %q", header)
	}
	width, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, errors.Wrap(err, "raw depth width")
	}
	height, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, errors.Wrap(err, "raw depth height")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid raw depth size %dx%d", width, height)
	}
	if width*height > maxRawDepthPixels {
		return nil, errors.Errorf("raw depth size %dx%d is over the %d pixel limit", width, height, maxRawDepthPixels)
	}

	samples := make([]uint16, width*height)
	if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
		return nil, errors.Wrapf(err, "reading %d depth samples", len(samples))
	}

	pb := NewPixelBuffer(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pb.SetQuad(x, y, EncodeUInt16Depth(samples[y*width+x]))
		}
	}
	return pb, nil
}
