package adc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	serial "github.com/tarm/goserial"
	"go.uber.org/atomic"
)

// MaxChannels is the number of channels a serial ADC bridge can report.
const MaxChannels = 8

// SerialReader consumes the line protocol of a serial ADC bridge. The bridge
// streams one line per conversion round, channel:value pairs separated by
// spaces, e.g. "0:512 1:300". A background goroutine keeps the latest value
// per channel so Read never waits on the port.
type SerialReader struct {
	port     io.ReadWriteCloser
	maxAge   time.Duration
	now      func() time.Time
	values   [MaxChannels]atomic.Int64
	updated  [MaxChannels]atomic.Int64 // unix nanos, 0 = never
	badLines atomic.Int64
	done     chan struct{}
	err      error // set before done is closed
	once     sync.Once
}

// OpenSerialReader opens the bridge on port at baud. Readings older than
// maxAge are reported as ErrStale.
func OpenSerialReader(port string, baud int, maxAge time.Duration) (*SerialReader, error) {
	rwc, err := serial.OpenPort(&serial.Config{Name: port, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	return NewSerialReader(rwc, maxAge), nil
}

// NewSerialReader starts consuming lines from rwc.
func NewSerialReader(rwc io.ReadWriteCloser, maxAge time.Duration) *SerialReader {
	r := &SerialReader{
		port:   rwc,
		maxAge: maxAge,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go r.consume()
	return r
}

func (r *SerialReader) consume() {
	defer close(r.done)
	sc := bufio.NewScanner(r.port)
	for sc.Scan() {
		if !r.parseLine(sc.Text()) {
			r.badLines.Inc()
		}
	}
	r.err = sc.Err()
	if r.err == nil {
		r.err = io.EOF
	}
}

// Err returns why the bridge stopped sending, or nil while it is still being
// read. A port that reached end of file reports io.EOF.
func (r *SerialReader) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Done is closed once the bridge stops sending.
func (r *SerialReader) Done() <-chan struct{} {
	return r.done
}

// fail wraps sentinel for channel, adding the reason the bridge stopped.
func (r *SerialReader) fail(channel int, sentinel error) error {
	if err := r.Err(); err != nil {
		return fmt.Errorf("channel %d: %w: bridge stopped: %w", channel, sentinel, err)
	}
	return fmt.Errorf("channel %d: %w", channel, sentinel)
}

// parseLine stores every valid pair and reports whether the whole line parsed.
func (r *SerialReader) parseLine(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	ok := true
	stamp := r.now().UnixNano()
	for _, f := range fields {
		ch, val, found := strings.Cut(f, ":")
		if !found {
			ok = false
			continue
		}
		c, err := strconv.Atoi(ch)
		if err != nil || c < 0 || c >= MaxChannels {
			ok = false
			continue
		}
		v, err := strconv.Atoi(val)
		if err != nil {
			ok = false
			continue
		}
		r.values[c].Store(int64(v))
		r.updated[c].Store(stamp)
	}
	return ok
}

// Read returns the latest value received for channel.
func (r *SerialReader) Read(channel int) (int, error) {
	if channel < 0 || channel >= MaxChannels {
		return 0, fmt.Errorf("adc: channel %d out of range", channel)
	}
	stamp := r.updated[channel].Load()
	if stamp == 0 {
		return 0, r.fail(channel, ErrNoSamples)
	}
	if r.maxAge > 0 && r.now().Sub(time.Unix(0, stamp)) > r.maxAge {
		return 0, r.fail(channel, ErrStale)
	}
	return int(r.values[channel].Load()), nil
}

// BadLines returns how many malformed lines the bridge has sent.
func (r *SerialReader) BadLines() int64 {
	return r.badLines.Load()
}

// Close closes the port and waits for the reader goroutine to exit.
func (r *SerialReader) Close() error {
	var err error
	r.once.Do(func() {
		err = r.port.Close()
		<-r.done
	})
	return err
}
