// Package camera defines the frame source boundary for the tracker.
// Frame acquisition itself is an external collaborator; the tracking
// core only consumes Frame values one at a time.
package camera

import (
	"bytes"
	"errors"
	"image"
	"time"

	_ "image/jpeg" // frame decoding
	_ "image/png"
)

// Frame represents a single captured video frame.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    string // "JPEG", "PNG", "GRAY"
	Timestamp time.Time
}

// Image decodes the frame into an image.Image for alignment and
// embedding. The raw bytes stay untouched.
func (f Frame) Image() (image.Image, error) {
	if len(f.Data) == 0 {
		return nil, ErrNoFrame
	}
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// DeviceInfo contains information about a camera device.
type DeviceInfo struct {
	Path   string
	Name   string
	Driver string
}

// Camera defines the interface for camera operations. The frame loop
// in cmd/facelock drives it; the tracking core never touches it.
type Camera interface {
	Open(device string) error
	Close() error
	Capture() (Frame, error)
	GetDeviceInfo() DeviceInfo
	SetResolution(width, height int) error
}

// ErrCameraNotFound is returned when the camera device is not found.
var ErrCameraNotFound = errors.New("camera device not found")

// ErrCameraNotOpen is returned when trying to capture from a closed camera.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("failed to capture frame")
