package rimage

import (
	"image"

	"golang.org/x/image/draw"
)

// PixelBuffer is a decoded image flattened to non-premultiplied 8-bit RGBA quads, row major.
// It is what a browser canvas hands back from getImageData and what both point cloud passes
// scan.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelBuffer returns a zeroed buffer of the given size.
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{Width: width, Height: height, Pix: make([]uint8, 4*width*height)}
}

// NewPixelBufferFromImage copies img into a PixelBuffer anchored at (0,0).
func NewPixelBufferFromImage(img image.Image) *PixelBuffer {
	bounds := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Stride == 4*bounds.Dx() && bounds.Min == (image.Point{}) {
		return &PixelBuffer{Width: bounds.Dx(), Height: bounds.Dy(), Pix: nrgba.Pix}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return &PixelBuffer{Width: bounds.Dx(), Height: bounds.Dy(), Pix: dst.Pix}
}

// In reports whether (x,y) lies inside the buffer.
func (pb *PixelBuffer) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < pb.Width && y < pb.Height
}

// Quad returns the 4 channels of the pixel at (x,y).
func (pb *PixelBuffer) Quad(x, y int) [4]uint8 {
	i := (y*pb.Width + x) * 4
	return [4]uint8{pb.Pix[i], pb.Pix[i+1], pb.Pix[i+2], pb.Pix[i+3]}
}

// SetQuad overwrites the pixel at (x,y).
func (pb *PixelBuffer) SetQuad(x, y int, quad [4]uint8) {
	i := (y*pb.Width + x) * 4
	copy(pb.Pix[i:i+4], quad[:])
}

// Depth decodes the depth stored at (x,y).
func (pb *PixelBuffer) Depth(x, y int, format DepthFormat) float64 {
	return DecodeDepth(pb.Quad(x, y), format)
}

// RGB returns the color at (x,y) normalized to [0,1].
func (pb *PixelBuffer) RGB(x, y int) RGB {
	q := pb.Quad(x, y)
	return NewRGB255(q[0], q[1], q[2])
}

// ToNRGBA wraps the buffer as an image without copying.
func (pb *PixelBuffer) ToNRGBA() *image.NRGBA {
	return &image.NRGBA{Pix: pb.Pix, Stride: 4 * pb.Width, Rect: image.Rect(0, 0, pb.Width, pb.Height)}
}

// SameSize reports whether two buffers have identical dimensions.
func (pb *PixelBuffer) SameSize(other *PixelBuffer) bool {
	return pb.Width == other.Width && pb.Height == other.Height
}
