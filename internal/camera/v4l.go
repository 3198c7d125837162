package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blackjack/webcam"
	"github.com/disintegration/imaging"
)

const (
	fmtYUYV  = 0x56595559
	fmtMJPEG = 0x47504a4d
)

type byArea []webcam.FrameSize

func (slice byArea) Len() int {
	return len(slice)
}

//For sorting purposes
func (slice byArea) Less(i, j int) bool {
	ls := slice[i].MaxWidth * slice[i].MaxHeight
	rs := slice[j].MaxWidth * slice[j].MaxHeight
	return ls < rs
}

//For sorting purposes
func (slice byArea) Swap(i, j int) {
	slice[i], slice[j] = slice[j], slice[i]
}

var supportedFormats = map[webcam.PixelFormat]bool{
	fmtYUYV:  true,
	fmtMJPEG: true,
}

// V4L grabs frames from a streaming video4linux device.
type V4L struct {
	mu   sync.Mutex
	cam  *webcam.Webcam
	f    webcam.PixelFormat
	w, h uint32
}

// OpenV4L opens dev and starts streaming. An empty fmtstr picks the first
// supported format, an empty szstr the largest frame size.
func OpenV4L(dev, fmtstr, szstr string, log *slog.Logger) (*V4L, error) {
	cam, err := webcam.Open(dev)
	if err != nil {
		return nil, err
	}

	format, err := selectFormat(cam.GetSupportedFormats(), fmtstr)
	if err != nil {
		cam.Close()
		return nil, err
	}

	frames := byArea(cam.GetSupportedFrameSizes(format))
	sort.Sort(frames)
	size, err := selectSize(frames, szstr)
	if err != nil {
		cam.Close()
		return nil, err
	}

	f, w, h, err := cam.SetImageFormat(format, uint32(size.MaxWidth), uint32(size.MaxHeight))
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("SetImageFormat error %v", err)
	}
	log.Info("camera format", "device", dev, "format", cam.GetSupportedFormats()[f], "width", w, "height", h)

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("failed to start stream, %v", err)
	}

	return &V4L{cam: cam, f: f, w: w, h: h}, nil
}

func selectFormat(formatDesc map[webcam.PixelFormat]string, fmtstr string) (webcam.PixelFormat, error) {
	var format webcam.PixelFormat
FMT:
	for f, s := range formatDesc {
		if fmtstr == "" {
			if supportedFormats[f] {
				format = f
				break FMT
			}

		} else if fmtstr == s {
			if !supportedFormats[f] {
				return 0, fmt.Errorf("format %q is not supported", formatDesc[f])
			}
			format = f
			break
		}
	}
	if format == 0 {
		return 0, errors.New("no supported format found")
	}
	return format, nil
}

// selectSize expects frames sorted by area.
func selectSize(frames byArea, szstr string) (*webcam.FrameSize, error) {
	var size *webcam.FrameSize
	switch {
	case szstr == "" && len(frames) > 0:
		size = &frames[len(frames)-1]
	case strings.Count(szstr, "x") == 1:
		parts := strings.Split(szstr, "x")
		x, xerr := strconv.Atoi(parts[0])
		y, yerr := strconv.Atoi(parts[1])
		if xerr != nil || yerr != nil {
			return nil, fmt.Errorf("couldn't parse width x height from %q", szstr)
		}
		size = &webcam.FrameSize{
			MaxWidth:  uint32(x),
			MaxHeight: uint32(y),
		}
	default:
		for i := range frames {
			if szstr == frames[i].GetString() {
				size = &frames[i]
			}
		}
	}

	if size == nil {
		return nil, fmt.Errorf("no matching frame size %q", szstr)
	}
	return size, nil
}

// Grab returns the most recent frame the device has queued.
func (v *V4L) Grab(ctx context.Context) (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var frame []byte
	for frame == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := v.cam.WaitForFrame(1)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			return nil, fmt.Errorf("unhandled error from WaitForFrame, %v", err)
		}

		bframe, err := v.cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("unhandled error reading frame, %v", err)
		}
		if len(bframe) != 0 {
			frame = make([]byte, len(bframe))
			copy(frame, bframe)
		}
	}

	// frames queued while nobody was reading are stale, keep the newest
	for v.cam.WaitForFrame(0) == nil {
		bframe, err := v.cam.ReadFrame()
		if err != nil || len(bframe) == 0 {
			break
		}
		frame = append(frame[:0], bframe...)
	}

	return frameToImage(frame, v.w, v.h, v.f)
}

func (v *V4L) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cam.Close()
}

var (
	dhtMarker = []byte{255, 196}
	sosMarker = []byte{255, 218}
)

// motion jpeg frames are missing attributes for use as a
// regular jpeg. We add them back here.
func addMotionDht(frame []byte) []byte {
	if bytes.Contains(frame, dhtMarker) {
		return frame
	}
	dht := []byte{1, 162, 0, 0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 1, 0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 16, 0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 125, 1, 2, 3, 0, 4, 17, 5, 18, 33, 49, 65, 6, 19, 81, 97, 7, 34, 113, 20, 50, 129, 145, 161, 8, 35, 66, 177, 193, 21, 82, 209, 240, 36, 51, 98, 114, 130, 9, 10, 22, 23, 24, 25, 26, 37, 38, 39, 40, 41, 42, 52, 53, 54, 55, 56, 57, 58, 67, 68, 69, 70, 71, 72, 73, 74, 83, 84, 85, 86, 87, 88, 89, 90, 99, 100, 101, 102, 103, 104, 105, 106, 115, 116, 117, 118, 119, 120, 121, 122, 131, 132, 133, 134, 135, 136, 137, 138, 146, 147, 148, 149, 150, 151, 152, 153, 154, 162, 163, 164, 165, 166, 167, 168, 169, 170, 178, 179, 180, 181, 182, 183, 184, 185, 186, 194, 195, 196, 197, 198, 199, 200, 201, 202, 210, 211, 212, 213, 214, 215, 216, 217, 218, 225, 226, 227, 228, 229, 230, 231, 232, 233, 234, 241, 242, 243, 244, 245, 246, 247, 248, 249, 250, 17, 0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 119, 0, 1, 2, 3, 17, 4, 5, 33, 49, 6, 18, 65, 81, 7, 97, 113, 19, 34, 50, 129, 8, 20, 66, 145, 161, 177, 193, 9, 35, 51, 82, 240, 21, 98, 114, 209, 10, 22, 36, 52, 225, 37, 241, 23, 24, 25, 26, 38, 39, 40, 41, 42, 53, 54, 55, 56, 57, 58, 67, 68, 69, 70, 71, 72, 73, 74, 83, 84, 85, 86, 87, 88, 89, 90, 99, 100, 101, 102, 103, 104, 105, 106, 115, 116, 117, 118, 119, 120, 121, 122, 130, 131, 132, 133, 134, 135, 136, 137, 138, 146, 147, 148, 149, 150, 151, 152, 153, 154, 162, 163, 164, 165, 166, 167, 168, 169, 170, 178, 179, 180, 181, 182, 183, 184, 185, 186, 194, 195, 196, 197, 198, 199, 200, 201, 202, 210, 211, 212, 213, 214, 215, 216, 217, 218, 226, 227, 228, 229, 230, 231, 232, 233, 234, 242, 243, 244, 245, 246, 247, 248, 249, 250}
	jpegParts := bytes.SplitN(frame, sosMarker, 2)
	if len(jpegParts) != 2 {
		return frame
	}
	out := make([]byte, 0, len(frame)+len(dhtMarker)+len(dht))
	out = append(out, jpegParts[0]...)
	out = append(out, dhtMarker...)
	out = append(out, dht...)
	out = append(out, sosMarker...)
	return append(out, jpegParts[1]...)
}

func frameToImage(frame []byte, w, h uint32, format webcam.PixelFormat) (image.Image, error) {
	switch format {
	case fmtYUYV:
		img := image.NewYCbCr(image.Rect(0, 0, int(w), int(h)), image.YCbCrSubsampleRatio422)
		if len(frame) < len(img.Cb)*4 {
			return nil, fmt.Errorf("short YUYV frame, %d bytes for %dx%d", len(frame), w, h)
		}
		for i := range img.Cb {
			ii := i * 4
			img.Y[i*2] = frame[ii]
			img.Y[i*2+1] = frame[ii+2]
			img.Cb[i] = frame[ii+1]
			img.Cr[i] = frame[ii+3]

		}
		return img, nil
	case fmtMJPEG:
		return imaging.Decode(bytes.NewReader(addMotionDht(frame)))
	default:
	}
	return nil, errors.New("unknown format")
}
