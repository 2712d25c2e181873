package gpio

import (
	"errors"
	"fmt"
)

// FakeButtons is a test double that returns scripted button states.
type FakeButtons struct {
	// Samples contains scripted pressed states to return.
	// Each call to Read() consumes the next sample.
	Samples [][ButtonCount]bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeButtons creates a FakeButtons with the given samples.
func NewFakeButtons(samples [][ButtonCount]bool) *FakeButtons {
	return &FakeButtons{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButtons) Read() ([ButtonCount]bool, error) {
	if f.ReadError != nil {
		return [ButtonCount]bool{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return [ButtonCount]bool{}, errors.New("no samples configured")
	}
	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Push appends samples to the script.
func (f *FakeButtons) Push(samples ...[ButtonCount]bool) {
	f.Samples = append(f.Samples, samples...)
}

// Close marks the reader as closed.
func (f *FakeButtons) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeButtons) Reset() {
	f.index = 0
	f.Closed = false
}

// OpLog records relay operations across several fake relays, in order.
type OpLog struct {
	Ops []string
}

func (l *OpLog) add(op string) {
	if l != nil {
		l.Ops = append(l.Ops, op)
	}
}

// FakeRelay records what it was told to do.
type FakeRelay struct {
	Name string
	On   bool

	// Stuck, if set, pins the observed state regardless of Set.
	Stuck *bool

	// SetError, if set, will be returned by Set.
	SetError error

	// GetError, if set, will be returned by Get.
	GetError error

	Log    *OpLog
	Closed bool
}

// NewFakeRelay creates a released relay that logs to log (may be nil).
func NewFakeRelay(name string, log *OpLog) *FakeRelay {
	return &FakeRelay{Name: name, Log: log}
}

// Set records the command.
func (f *FakeRelay) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	f.Log.add(fmt.Sprintf("%s=%v", f.Name, on))
	return nil
}

// Get returns the observed state.
func (f *FakeRelay) Get() (bool, error) {
	if f.GetError != nil {
		return false, f.GetError
	}
	if f.Stuck != nil {
		return *f.Stuck, nil
	}
	return f.On, nil
}

// Close releases the relay.
func (f *FakeRelay) Close() error {
	f.On = false
	f.Closed = true
	return nil
}
