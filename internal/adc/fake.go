package adc

import "fmt"

// FakeReader is a test double holding one settable value per channel.
type FakeReader struct {
	Values map[int]int

	// Errors, if set for a channel, is returned by Read for it.
	Errors map[int]error

	Closed bool
}

// NewFakeReader creates a FakeReader with the given channel values.
func NewFakeReader(values map[int]int) *FakeReader {
	if values == nil {
		values = make(map[int]int)
	}
	return &FakeReader{Values: values, Errors: make(map[int]error)}
}

// Set changes the value returned for channel.
func (f *FakeReader) Set(channel, value int) {
	f.Values[channel] = value
}

// Read returns the configured value.
func (f *FakeReader) Read(channel int) (int, error) {
	if err := f.Errors[channel]; err != nil {
		return 0, err
	}
	v, ok := f.Values[channel]
	if !ok {
		return 0, fmt.Errorf("channel %d: %w", channel, ErrNoSamples)
	}
	return v, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
