package display

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

// Cell geometry for basicfont.Face7x13 on the 128x64 panel.
const (
	cellW    = 7
	cellH    = 16
	baseline = 12
)

var (
	on  = &image.Uniform{C: image1bit.On}
	off = &image.Uniform{C: image1bit.Off}
)

// OLED is a Canvas on an SSD1306 128x64 panel over I2C.
type OLED struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
	img *image1bit.VerticalLSB
}

// OpenOLED initialises the host drivers and opens the panel on the named
// I2C bus ("" for the first available).
func OpenOLED(busName string) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("display: host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("display: open i2c bus %q: %w", busName, err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("display: init ssd1306: %w", err)
	}
	return &OLED{
		bus: bus,
		dev: dev,
		img: image1bit.NewVerticalLSB(dev.Bounds()),
	}, nil
}

func (o *OLED) Size() (int, int) {
	b := o.img.Bounds()
	return b.Dx() / cellW, b.Dy() / cellH
}

func (o *OLED) Clear() {
	draw.Draw(o.img, o.img.Bounds(), off, image.Point{}, draw.Src)
}

func (o *OLED) Text(col, row int, s string) {
	d := font.Drawer{
		Dst:  o.img,
		Src:  on,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(col*cellW, row*cellH+baseline),
	}
	d.DrawString(s)
}

func (o *OLED) Rect(r image.Rectangle, fill bool) {
	px := image.Rect(r.Min.X*cellW, r.Min.Y*cellH, r.Max.X*cellW, r.Max.Y*cellH).Intersect(o.img.Bounds())
	if fill {
		draw.Draw(o.img, px, on, image.Point{}, draw.Src)
		return
	}
	for x := px.Min.X; x < px.Max.X; x++ {
		o.img.SetBit(x, px.Min.Y, image1bit.On)
		o.img.SetBit(x, px.Max.Y-1, image1bit.On)
	}
	for y := px.Min.Y; y < px.Max.Y; y++ {
		o.img.SetBit(px.Min.X, y, image1bit.On)
		o.img.SetBit(px.Max.X-1, y, image1bit.On)
	}
}

func (o *OLED) Flush() error {
	return o.dev.Draw(o.dev.Bounds(), o.img, image.Point{})
}

// Close blanks the panel and releases the bus.
func (o *OLED) Close() error {
	err := o.dev.Halt()
	if cerr := o.bus.Close(); err == nil {
		err = cerr
	}
	return err
}
