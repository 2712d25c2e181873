package display

import (
	"image"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var consoleStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("86"))

// Console is a Canvas drawn as a bordered block of text.
type Console struct {
	cols, rows int
	cells      [][]rune
	rendered   string
	out        io.Writer
}

// NewConsole creates a Console. When out is non-nil every flushed frame is
// written to it.
func NewConsole(out io.Writer) *Console {
	c := &Console{cols: Cols, rows: Rows, out: out}
	c.cells = make([][]rune, Rows)
	c.Clear()
	return c
}

func (c *Console) Size() (int, int) {
	return c.cols, c.rows
}

func (c *Console) Clear() {
	for r := range c.cells {
		c.cells[r] = []rune(strings.Repeat(" ", c.cols))
	}
}

func (c *Console) Text(col, row int, s string) {
	if row < 0 || row >= c.rows {
		return
	}
	for i, ch := range []rune(s) {
		x := col + i
		if x < 0 {
			continue
		}
		if x >= c.cols {
			break
		}
		c.cells[row][x] = ch
	}
}

func (c *Console) Rect(r image.Rectangle, fill bool) {
	r = r.Intersect(image.Rect(0, 0, c.cols, c.rows))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			edge := y == r.Min.Y || y == r.Max.Y-1 || x == r.Min.X || x == r.Max.X-1
			if fill || edge {
				c.cells[y][x] = '█'
			}
		}
	}
}

func (c *Console) Flush() error {
	lines := make([]string, c.rows)
	for i, row := range c.cells {
		lines[i] = string(row)
	}
	c.rendered = consoleStyle.Render(strings.Join(lines, "\n"))
	if c.out != nil {
		_, err := io.WriteString(c.out, c.rendered+"\n")
		return err
	}
	return nil
}

// String returns the last flushed frame.
func (c *Console) String() string {
	return c.rendered
}
