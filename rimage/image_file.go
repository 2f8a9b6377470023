package rimage

import (
	"bufio"
	"image"
	// register decoders the loader accepts for depth and color inputs.
	_ "image/jpeg"
	"image/png"
	"io"
	"os"

	_ "github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	_ "github.com/xfmoulet/qoi"
	"go.viam.com/utils"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes any registered image format.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, "", errors.Wrap(err, "cannot decode image")
	}
	return img, format, nil
}

// ReadImageFromFile decodes the image stored at path.
func ReadImageFromFile(path string) (image.Image, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	img, _, err := DecodeImage(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return img, nil
}

// ReadPixelBufferFromFile decodes path straight into a PixelBuffer.
func ReadPixelBufferFromFile(path string) (*PixelBuffer, error) {
	img, err := ReadImageFromFile(path)
	if err != nil {
		return nil, err
	}
	return NewPixelBufferFromImage(img), nil
}

// WriteImageToFile writes img as a PNG.
func WriteImageToFile(path string, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return png.Encode(f, img)
}
