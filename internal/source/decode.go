package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Decode decodes raw bytes of any registered raster format.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, format, ErrEmptyImage
	}
	return img, format, nil
}

// BytesSource serves in-memory images, e.g. uploads.
type BytesSource struct {
	names []string
	data  [][]byte
}

func NewBytesSource() *BytesSource {
	return &BytesSource{}
}

// Add appends one item.
func (s *BytesSource) Add(name string, data []byte) *BytesSource {
	s.names = append(s.names, name)
	s.data = append(s.data, data)
	return s
}

func (s *BytesSource) PageCount() int {
	return len(s.data)
}

func (s *BytesSource) Name(index int) string {
	return s.names[index]
}

func (s *BytesSource) RenderPage(index int, dpi int) (image.Image, error) {
	if index < 0 || index >= len(s.data) {
		return nil, fmt.Errorf("item %d out of range", index)
	}
	img, _, err := Decode(s.data[index])
	return img, err
}

func (s *BytesSource) Close() error {
	return nil
}
