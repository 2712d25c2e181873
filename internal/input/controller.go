package input

import (
	"time"

	"github.com/sweeney/garden-irrigator/internal/gpio"
	"github.com/sweeney/garden-irrigator/internal/tick"
)

// Config holds the press timing.
type Config struct {
	Period    time.Duration // control loop period
	Debounce  time.Duration // a level must hold this long to count
	LongPress time.Duration // held this long after debounce = long press
}

// Controller debounces the three buttons and holds at most one pending event.
type Controller struct {
	reader        gpio.ButtonReader
	debounceTicks tick.Tick
	longTicks     tick.Tick
	buttons       [gpio.ButtonCount]buttonState
	pending       *Event
	glitches      int
}

// NewController creates a Controller polling reader.
func NewController(reader gpio.ButtonReader, cfg Config) *Controller {
	return &Controller{
		reader:        reader,
		debounceTicks: tick.FromDuration(cfg.Debounce, cfg.Period),
		longTicks:     tick.FromDuration(cfg.LongPress, cfg.Period),
	}
}

// Poll reads the buttons, advances debouncing and returns the pending event,
// if any, consuming it. A read error leaves debounce state untouched.
func (c *Controller) Poll(now tick.Tick) (Event, bool, error) {
	levels, err := c.reader.Read()
	if err != nil {
		return Event{}, false, err
	}
	c.Process(levels, now)
	return c.take()
}

func (c *Controller) take() (Event, bool, error) {
	if c.pending == nil {
		return Event{}, false, nil
	}
	ev := *c.pending
	c.pending = nil
	return ev, true, nil
}

// Process feeds one sample of raw levels. Buttons resolve independently; when
// more than one fires in the same sample the highest-numbered wins, and any
// unconsumed earlier event is overwritten.
func (c *Controller) Process(levels [gpio.ButtonCount]bool, now tick.Tick) {
	for i := range c.buttons {
		if kind, ok := c.processButton(&c.buttons[i], levels[i], now); ok {
			c.pending = &Event{Button: Button(i + 1), Kind: kind, Tick: now}
		}
	}
}

// processButton handles debounce logic for a single button.
// Returns the press kind if an event fired.
func (c *Controller) processButton(b *buttonState, level bool, now tick.Tick) (Kind, bool) {
	// First time seeing this button
	if !b.baselined {
		if !b.pendingSet || b.pending != level {
			// Start observing, or restart after a change during baseline
			b.pending = level
			b.pendingSet = true
			b.pendingSince = now
			return 0, false
		}
		if now.Since(b.pendingSince) >= c.debounceTicks {
			b.stable = level
			b.baselined = true
			b.pendingSet = false
			// A button held at boot must be released before it can fire
			b.consumed = level
			b.pressedAt = now
		}
		return 0, false
	}

	if level == b.stable {
		if b.pendingSet {
			// Toggled back before the debounce window elapsed
			c.glitches++
			b.pendingSet = false
		}
		return c.checkLongPress(b, now)
	}

	// Level differs from stable
	if !b.pendingSet {
		b.pending = level
		b.pendingSet = true
		b.pendingSince = now
		return c.checkLongPress(b, now)
	}

	if now.Since(b.pendingSince) < c.debounceTicks {
		return c.checkLongPress(b, now)
	}

	b.stable = level
	b.pendingSet = false
	if level {
		b.pressedAt = now
		b.consumed = false
		return 0, false
	}
	// Released
	if b.consumed {
		return 0, false
	}
	b.consumed = true
	return ShortPress, true
}

// checkLongPress fires once when a held press crosses the long-press threshold.
func (c *Controller) checkLongPress(b *buttonState, now tick.Tick) (Kind, bool) {
	if !b.stable || b.consumed {
		return 0, false
	}
	if now.Since(b.pressedAt) >= c.longTicks {
		b.consumed = true
		return LongPress, true
	}
	return 0, false
}

// Glitches returns how many level changes were dropped for not outlasting the
// debounce window.
func (c *Controller) Glitches() int {
	return c.glitches
}

// Baselined reports whether every button has a stable baseline.
func (c *Controller) Baselined() bool {
	for _, b := range c.buttons {
		if !b.baselined {
			return false
		}
	}
	return true
}

// Pressed returns the debounced level of each button.
func (c *Controller) Pressed() [gpio.ButtonCount]bool {
	var out [gpio.ButtonCount]bool
	for i, b := range c.buttons {
		out[i] = b.stable
	}
	return out
}
