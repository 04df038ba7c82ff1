package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
)

const (
	defaultMaxWidth     = 1280
	defaultMaxSizeBytes = 1 * 1024 * 1024
	defaultQuality      = 80
	minWidth            = 320
)

// ErrUnreadableImage - файл не открывается или не декодируется. Единственный вид ошибки Encode.
var ErrUnreadableImage = errors.New("image: unreadable file")

// Encoded - готовая к отправке картинка. Data - base64 без data URI.
type Encoded struct {
	Data      string
	Width     int
	Height    int
	SizeBytes int
	MimeType  string
}

// Encoder перекодирует JPEG/PNG в JPEG, уменьшая до лимитов по ширине и размеру.
type Encoder struct {
	maxWidth    int
	maxSizeByte int
	quality     int
}

func NewEncoder() *Encoder {
	return &Encoder{
		maxWidth:    defaultMaxWidth,
		maxSizeByte: defaultMaxSizeBytes,
		quality:     defaultQuality,
	}
}

// Encode читает файл и возвращает JPEG в base64.
func (e *Encoder) Encode(path string) (Encoded, error) {
	file, err := os.Open(path)
	if err != nil {
		return Encoded{}, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return Encoded{}, fmt.Errorf("%w: decode %s: %v", ErrUnreadableImage, path, err)
	}

	origBounds := img.Bounds()
	origWidth := origBounds.Dx()
	origHeight := origBounds.Dy()
	if origWidth == 0 || origHeight == 0 {
		return Encoded{}, fmt.Errorf("%w: invalid image size %dx%d", ErrUnreadableImage, origWidth, origHeight)
	}

	resizedWidth := min(origWidth, e.maxWidth)
	resizedHeight := max(1, origHeight*resizedWidth/origWidth)

	var encoded []byte
	for {
		resized := resizeNearest(img, resizedWidth, resizedHeight)
		encoded, err = encodeJPEG(resized, e.quality)
		if err != nil {
			return Encoded{}, fmt.Errorf("%w: encode: %v", ErrUnreadableImage, err)
		}
		if len(encoded) <= e.maxSizeByte || resizedWidth <= minWidth {
			// Ниже minWidth не уменьшаем: график станет нечитаемым, отправляем как есть.
			break
		}
		resizedWidth = max(minWidth, int(float64(resizedWidth)*0.9))
		resizedHeight = max(1, origHeight*resizedWidth/origWidth)
	}

	return Encoded{
		Data:      base64.StdEncoding.EncodeToString(encoded),
		Width:     resizedWidth,
		Height:    resizedHeight,
		SizeBytes: len(encoded),
		MimeType:  "image/jpeg",
	}, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resizeNearest(src image.Image, width int, height int) *image.RGBA {
	srcBounds := src.Bounds()
	srcWidth := srcBounds.Dx()
	srcHeight := srcBounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		srcY := srcBounds.Min.Y + y*srcHeight/height
		for x := range width {
			srcX := srcBounds.Min.X + x*srcWidth/width
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}
