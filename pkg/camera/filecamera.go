package camera

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileCamera replays image files from a directory in lexical order,
// one file per Capture call. It serves as the capture backend for
// offline tracking runs and tests; live V4L2 capture is a separate
// backend.
type FileCamera struct {
	dir   string
	files []string
	index int
	open  bool
}

// NewFileCamera creates a closed replay camera.
func NewFileCamera() *FileCamera {
	return &FileCamera{}
}

// Open points the camera at a directory of JPEG or PNG frames.
func (c *FileCamera) Open(device string) error {
	info, err := os.Stat(device)
	if err != nil || !info.IsDir() {
		return ErrCameraNotFound
	}

	entries, err := os.ReadDir(device)
	if err != nil {
		return fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(device, entry.Name()))
		}
	}
	sort.Strings(files)

	c.dir = device
	c.files = files
	c.index = 0
	c.open = true
	return nil
}

// Close stops the replay.
func (c *FileCamera) Close() error {
	c.open = false
	c.files = nil
	c.index = 0
	return nil
}

// Capture returns the next frame in order. ErrNoFrame signals the end
// of the replay.
func (c *FileCamera) Capture() (Frame, error) {
	if !c.open {
		return Frame{}, ErrCameraNotOpen
	}
	if c.index >= len(c.files) {
		return Frame{}, ErrNoFrame
	}

	path := c.files[c.index]
	c.index++

	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read frame %s: %w", path, err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame %s: %w", path, err)
	}

	return Frame{
		Data:      data,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    strings.ToUpper(format),
		Timestamp: time.Now(),
	}, nil
}

// GetDeviceInfo describes the replay source.
func (c *FileCamera) GetDeviceInfo() DeviceInfo {
	return DeviceInfo{
		Path:   c.dir,
		Name:   "file replay",
		Driver: "file",
	}
}

// SetResolution is a no-op; replayed frames keep their stored size.
func (c *FileCamera) SetResolution(width, height int) error {
	return nil
}
