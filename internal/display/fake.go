package display

import "image"

// FakeCanvas records draw calls.
type FakeCanvas struct {
	Texts   map[[2]int]string
	Rects   []image.Rectangle
	Flushes int

	// FlushError, if set, will be returned by Flush.
	FlushError error
}

// NewFakeCanvas creates an empty FakeCanvas.
func NewFakeCanvas() *FakeCanvas {
	return &FakeCanvas{Texts: make(map[[2]int]string)}
}

func (f *FakeCanvas) Size() (int, int) {
	return Cols, Rows
}

func (f *FakeCanvas) Clear() {
	f.Texts = make(map[[2]int]string)
	f.Rects = nil
}

func (f *FakeCanvas) Text(col, row int, s string) {
	f.Texts[[2]int{col, row}] = s
}

func (f *FakeCanvas) Rect(r image.Rectangle, fill bool) {
	f.Rects = append(f.Rects, r)
}

func (f *FakeCanvas) Flush() error {
	if f.FlushError != nil {
		return f.FlushError
	}
	f.Flushes++
	return nil
}

// Line returns the text drawn at the start of row.
func (f *FakeCanvas) Line(row int) string {
	return f.Texts[[2]int{0, row}]
}
