// Package display renders controller snapshots onto a small character-cell
// screen. It only ever reads snapshots.
package display

import (
	"fmt"
	"image"
	"time"

	"github.com/sweeney/garden-irrigator/internal/irrigation"
	"github.com/sweeney/garden-irrigator/internal/sensor"
)

// Layout of the 128x64 panel in 7x16 pixel cells.
const (
	Cols = 18
	Rows = 4
)

// Canvas accepts draw primitives in character-cell coordinates. Nothing is
// visible until Flush.
type Canvas interface {
	Size() (cols, rows int)
	Clear()
	Text(col, row int, s string)
	// Rect draws a rectangle covering the cells in r, filled or outlined.
	Rect(r image.Rectangle, fill bool)
	Flush() error
}

// Frame is the text content of one screen.
type Frame struct {
	Lines [Rows]string
	Fault bool
}

// Layout computes the frame for a snapshot.
func Layout(s irrigation.Snapshot) Frame {
	var f Frame
	f.Fault = s.Fault != 0

	header := s.State.Mode.String()
	if f.Fault {
		header = fmt.Sprintf("%-10s%s", header, faultLabel(s.Fault))
	}
	f.Lines[0] = header
	f.Lines[1] = readings(s)
	f.Lines[2] = menuLine(s)
	f.Lines[3] = countdown(s)
	return f
}

func faultLabel(f irrigation.Fault) string {
	switch {
	case f.Has(irrigation.FaultActuator):
		return "RELAY"
	case f.Has(irrigation.FaultSensor):
		return "SENSOR"
	default:
		return ""
	}
}

func readings(s irrigation.Snapshot) string {
	if !s.HasSample {
		return "M --   L --"
	}
	m := pct(s.Sample.Moisture, s.Sample.Fault&sensor.MoistureFault != 0)
	l := pct(s.Sample.Light, s.Sample.Fault&sensor.LightFault != 0)
	return fmt.Sprintf("M %-5s L %s", m, l)
}

func pct(v float64, faulted bool) string {
	if faulted {
		return "ERR"
	}
	return fmt.Sprintf("%.0f%%", v)
}

func menuLine(s irrigation.Snapshot) string {
	switch s.Cursor {
	case irrigation.MenuMoisture:
		return fmt.Sprintf(">Moist < %.0f%%", s.State.MoistureThreshold)
	case irrigation.MenuLight:
		return fmt.Sprintf(">Light < %.0f%%", s.State.LightThreshold)
	case irrigation.MenuActivation:
		return fmt.Sprintf(">Water %dmin", int(s.State.Activation/time.Minute))
	case irrigation.MenuReset:
		return ">Reset defaults"
	default:
		return ""
	}
}

func countdown(s irrigation.Snapshot) string {
	switch s.State.Mode {
	case irrigation.Watering:
		return "Stop in " + Clock(s.Remaining)
	case irrigation.Suspended:
		return "Resume " + Clock(s.Remaining)
	default:
		return "Ready"
	}
}

// Clock formats d as m:ss, or h:mm:ss from one hour, rounding up.
func Clock(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	h, m, sec := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

// Presenter draws frames on a Canvas, skipping unchanged ones.
type Presenter struct {
	canvas Canvas
	last   Frame
	drawn  bool
}

// NewPresenter creates a Presenter for c.
func NewPresenter(c Canvas) *Presenter {
	return &Presenter{canvas: c}
}

// Render draws the snapshot. An identical frame is not redrawn.
func (p *Presenter) Render(s irrigation.Snapshot) error {
	f := Layout(s)
	if p.drawn && f == p.last {
		return nil
	}
	cols, _ := p.canvas.Size()
	p.canvas.Clear()
	for row, line := range f.Lines {
		p.canvas.Text(0, row, line)
	}
	if f.Fault {
		p.canvas.Rect(image.Rect(cols-1, 0, cols, 1), true)
	}
	if err := p.canvas.Flush(); err != nil {
		return fmt.Errorf("display: flush: %w", err)
	}
	p.last = f
	p.drawn = true
	return nil
}
