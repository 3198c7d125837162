// Package frame holds decoded captures and the pixel operations run on them.
package frame

import (
	"bytes"
	"encoding/base64"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

// DataURIPrefix is prepended to base64 JPEG payloads sent to clients.
const DataURIPrefix = "data:image/jpeg;base64,"

// Frame is a decoded RGB capture. Frames are not modified once built.
type Frame struct {
	Image *image.NRGBA
	JPEG  []byte
	Path  string
	Taken time.Time
}

// New copies img into an NRGBA frame. The JPEG encoding is left empty.
func New(img image.Image, taken time.Time) *Frame {
	return &Frame{
		Image: imaging.Clone(img),
		Taken: taken,
	}
}

func (f *Frame) Width() int  { return f.Image.Bounds().Dx() }
func (f *Frame) Height() int { return f.Image.Bounds().Dy() }

// DataURI returns the frame JPEG as a data URI, or "" if it was never encoded.
func (f *Frame) DataURI() string {
	if f == nil || len(f.JPEG) == 0 {
		return ""
	}
	return DataURI(f.JPEG)
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DataURI(jpg []byte) string {
	return DataURIPrefix + base64.StdEncoding.EncodeToString(jpg)
}
