package adc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultIIODevice is the sysfs directory of the first IIO converter (for
// example an ADS1115 bound to the ads1015 kernel driver).
const DefaultIIODevice = "/sys/bus/iio/devices/iio:device0"

// IIOReader reads channels from a Linux IIO device through sysfs.
type IIOReader struct {
	dir string
}

// NewIIOReader checks that dir looks like an IIO device and returns a reader for it.
func NewIIOReader(dir string) (*IIOReader, error) {
	if _, err := os.Stat(filepath.Join(dir, "name")); err != nil {
		return nil, fmt.Errorf("open iio device %s: %w", dir, err)
	}
	return &IIOReader{dir: dir}, nil
}

// Read performs a one-shot conversion of channel.
func (r *IIOReader) Read(channel int) (int, error) {
	path := filepath.Join(r.dir, fmt.Sprintf("in_voltage%d_raw", channel))
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read channel %d: %w", channel, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse channel %d: %w", channel, err)
	}
	return v, nil
}

// Close is a no-op; sysfs files are opened per read.
func (r *IIOReader) Close() error {
	return nil
}
