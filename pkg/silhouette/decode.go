package silhouette

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// codec is one supported input format. The tga package registers itself
// with an empty magic string, which makes image.Decode hand every input to
// it, so formats are sniffed here instead of through the image registry.
type codec struct {
	name   string
	magic  []string
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

var codecs = []codec{
	{"png", []string{"\x89PNG\r\n\x1a\n"}, png.Decode, png.DecodeConfig},
	{"jpeg", []string{"\xff\xd8"}, jpeg.Decode, jpeg.DecodeConfig},
	{"gif", []string{"GIF87a", "GIF89a"}, gif.Decode, gif.DecodeConfig},
	{"bmp", []string{"BM"}, bmp.Decode, bmp.DecodeConfig},
	{"tiff", []string{"II*\x00", "MM\x00*"}, tiff.Decode, tiff.DecodeConfig},
	{"webp", []string{"RIFF"}, nativewebp.Decode, nativewebp.DecodeConfig},
}

// TGA has no magic number; anything unrecognised is tried as TGA last.
var tgaCodec = codec{name: "tga", decode: tga.Decode, config: tga.DecodeConfig}

func sniff(data []byte) codec {
	for _, c := range codecs {
		for _, m := range c.magic {
			if bytes.HasPrefix(data, []byte(m)) {
				return c
			}
		}
	}
	return tgaCodec
}

// Decode decodes a PNG, JPEG, GIF, BMP, TIFF, WebP or TGA image. It returns
// the format name alongside the image.
func Decode(data []byte) (image.Image, string, error) {
	c := sniff(data)
	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("silhouette: decode %s: %w", c.name, err)
	}
	return img, c.name, nil
}

// DecodeConfig reads only the image header, so the caller can check the
// resolution before any pixels are decoded.
func DecodeConfig(data []byte) (image.Config, string, error) {
	c := sniff(data)
	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("silhouette: decode config %s: %w", c.name, err)
	}
	return cfg, c.name, nil
}

// ToNRGBA converts any image to 8-bit non-premultiplied RGBA with its
// origin at (0, 0).
func ToNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
