// Command irrigator-sim runs the irrigation controller against simulated
// buttons, sensors and relays in the terminal.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sweeney/garden-irrigator/internal/config"
)

func main() {
	cfg := config.Default()
	cfg.RegisterFlags(flag.CommandLine)
	speed := flag.Int("speed", 1, "Control ticks per frame")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	m, err := newModel(cfg, *speed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "sim: %v\n", err)
		os.Exit(1)
	}
}
