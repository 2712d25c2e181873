package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sweeney/garden-irrigator/internal/actuator"
	"github.com/sweeney/garden-irrigator/internal/adc"
	"github.com/sweeney/garden-irrigator/internal/config"
	"github.com/sweeney/garden-irrigator/internal/controller"
	"github.com/sweeney/garden-irrigator/internal/display"
	"github.com/sweeney/garden-irrigator/internal/gpio"
	"github.com/sweeney/garden-irrigator/internal/input"
	"github.com/sweeney/garden-irrigator/internal/irrigation"
	"github.com/sweeney/garden-irrigator/internal/mqtt"
	"github.com/sweeney/garden-irrigator/internal/sensor"
	"github.com/sweeney/garden-irrigator/internal/tick"
)

var (
	redTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	greenTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	panelStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("86")).
			Padding(0, 1)
)

const (
	historySize = 8
	pctStep     = 5.0
	faultRaw    = 1023
)

var errStuck = errors.New("simulated relay fault")

type tickMsg time.Time

// model owns a complete controller wired to fakes. The simulated world is
// moisture and light percentages converted back to raw counts.
type model struct {
	cfg   config.Config
	speed int

	levels  *gpio.FakeButtons
	adc     *adc.FakeReader
	valve   *gpio.FakeRelay
	pump    *gpio.FakeRelay
	console *display.Console
	loop    *controller.Loop

	now      tick.Tick
	held     [gpio.ButtonCount]tick.Tick
	short    tick.Tick
	long     tick.Tick
	moisture float64
	light    float64
	probeOff bool
	history  []string
}

func newModel(cfg config.Config, speed int) (*model, error) {
	m := &model{
		cfg:      cfg,
		speed:    max(1, speed),
		levels:   gpio.NewFakeButtons([][gpio.ButtonCount]bool{{}}),
		adc:      adc.NewFakeReader(nil),
		valve:    gpio.NewFakeRelay("valve", nil),
		pump:     gpio.NewFakeRelay("pump", nil),
		console:  display.NewConsole(nil),
		moisture: 60,
		light:    80,
	}
	debounce := tick.FromDuration(cfg.Debounce, cfg.Period)
	m.short = debounce + 2
	m.long = debounce + tick.FromDuration(cfg.LongPress, cfg.Period) + 2
	m.writeSensors()

	drv, err := actuator.New(m.valve, m.pump)
	if err != nil {
		return nil, err
	}
	sensors, err := sensor.NewReader(m.adc, cfg.Sensor())
	if err != nil {
		return nil, err
	}
	settle := tick.SleepFunc(func(d time.Duration) {
		m.record(fmt.Sprintf("settle %v", d))
	})
	machine, err := irrigation.New(cfg.Irrigation(), drv, settle)
	if err != nil {
		return nil, err
	}
	m.loop = controller.New(cfg.Controller(), input.NewController(m.levels, cfg.Input()), sensors, machine, display.NewPresenter(m.console), nil)
	return m, nil
}

// rawFor inverts the calibration so the sim can be driven in percent.
func rawFor(c sensor.Calibration, pct float64) int {
	return c.Zero + int(pct*float64(c.Full-c.Zero)/100)
}

func (m *model) writeSensors() {
	if m.probeOff {
		m.adc.Set(m.cfg.MoistureChannel, faultRaw)
	} else {
		m.adc.Set(m.cfg.MoistureChannel, rawFor(m.cfg.Moisture, m.moisture))
	}
	m.adc.Set(m.cfg.LightChannel, rawFor(m.cfg.Light, m.light))
}

func (m *model) record(line string) {
	m.history = append(m.history, fmt.Sprintf("%7d %s", m.now, line))
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

func (m *model) press(b input.Button, n tick.Tick) {
	m.held[b-1] = n
}

// step advances the controller one tick with the currently held buttons.
func (m *model) step() {
	var levels [gpio.ButtonCount]bool
	for i, n := range m.held {
		if n > 0 {
			levels[i] = true
			m.held[i]--
		}
	}
	m.levels.Samples = [][gpio.ButtonCount]bool{levels}

	res := m.loop.Step(m.now)
	if res.Event != nil {
		m.record(res.Event.String())
	}
	for _, t := range res.Transitions {
		m.record(fmt.Sprintf("%s (%s)", mqtt.EventName(t), t.Reason))
	}
	if res.Err != nil {
		m.record("error: " + res.Err.Error())
	}
	m.now++
}

func (m *model) clamp(v float64) float64 {
	return min(100, max(0, v))
}

func (m *model) schedule() tea.Cmd {
	return tea.Tick(m.cfg.Period, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *model) Init() tea.Cmd {
	return m.schedule()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		for i := 0; i < m.speed; i++ {
			m.step()
		}
		return m, m.schedule()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if ts, err := m.loop.Shutdown(); err == nil {
				for _, t := range ts {
					m.record(mqtt.EventName(t))
				}
			}
			return m, tea.Quit
		case "1":
			m.press(input.ButtonSelect, m.short)
		case "2":
			m.press(input.ButtonDown, m.short)
		case "3":
			m.press(input.ButtonUp, m.short)
		case "!":
			m.press(input.ButtonSelect, m.long)
		case "@":
			m.press(input.ButtonDown, m.long)
		case "#":
			m.press(input.ButtonUp, m.long)
		case "m":
			m.moisture = m.clamp(m.moisture - pctStep)
		case "M":
			m.moisture = m.clamp(m.moisture + pctStep)
		case "l":
			m.light = m.clamp(m.light - pctStep)
		case "L":
			m.light = m.clamp(m.light + pctStep)
		case "f":
			m.probeOff = !m.probeOff
		case "p":
			if m.pump.SetError == nil {
				m.pump.SetError = errStuck
			} else {
				m.pump.SetError = nil
			}
		}
		m.writeSensors()
	}
	return m, nil
}

func onOff(on bool) string {
	if on {
		return greenTextStyle.Render("ON ")
	}
	return dimTextStyle.Render("OFF")
}

func (m *model) View() string {
	snap := m.loop.Snapshot()

	var world strings.Builder
	fmt.Fprintf(&world, "tick     %d (x%d)\n", m.now, m.speed)
	fmt.Fprintf(&world, "moisture %3.0f%%", m.moisture)
	if m.probeOff {
		world.WriteString(redTextStyle.Render("  probe disconnected"))
	}
	fmt.Fprintf(&world, "\nlight    %3.0f%%\n", m.light)
	fmt.Fprintf(&world, "valve    %s  pump %s", onOff(m.valve.On), onOff(m.pump.On))
	if m.pump.SetError != nil {
		world.WriteString(redTextStyle.Render("  pump relay faulty"))
	}
	fmt.Fprintf(&world, "\nfault    %s  cycles %d  aborts %d", snap.Fault, snap.Counts.Cycles, snap.Counts.Aborts)

	help := dimTextStyle.Render("1/2/3 short SELECT/DOWN/UP   !/@/# long\n" +
		"m/M moisture  l/L light  f probe  p pump relay  q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, m.console.String(), panelStyle.Render(world.String())),
		panelStyle.Render(strings.Join(m.history, "\n")),
		help,
	)
}
