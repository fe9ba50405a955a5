// Package layout computes where script lines sit on the prompter surface.
// All measures are in pixels; the terminal maps them onto rows.
package layout

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/lexiqai/prompter/internal/scroll"
	"github.com/lexiqai/prompter/internal/tracker"
)

const (
	LineHeightFactor = 1.6
	BlankFactor      = 0.8
	LinePadding      = 8.0

	MinFontSize  = 12
	MaxFontSize  = 96
	FontSizeStep = 2
)

// Params are the inputs the renderer controls
type Params struct {
	FontSize       float64
	ViewportHeight float64
	Columns        int // wrap width in display cells, 0 disables wrapping
}

// Block is one script line after wrapping
type Block struct {
	Line     tracker.Line
	Rect     tracker.Rect // content coordinates
	Segments []string
}

// Layout is the rendered geometry of a script
type Layout struct {
	Blocks         []Block
	LineHeight     float64
	TopSpacer      float64
	ContentHeight  float64
	ViewportHeight float64
}

// ClampFontSize saturates size into [MinFontSize, MaxFontSize]
func ClampFontSize(size int) int {
	if size < MinFontSize {
		return MinFontSize
	}
	if size > MaxFontSize {
		return MaxFontSize
	}
	return size
}

// Build lays out lines with half a viewport of space above and below the text,
// so the first line starts at the center and the last can scroll up to it.
func Build(lines []tracker.Line, p Params) Layout {
	lineHeight := p.FontSize * LineHeightFactor
	spacer := p.ViewportHeight / 2

	l := Layout{
		Blocks:         make([]Block, len(lines)),
		LineHeight:     lineHeight,
		TopSpacer:      spacer,
		ViewportHeight: p.ViewportHeight,
	}

	y := spacer
	for i, line := range lines {
		segments := Wrap(line.Text, p.Columns)
		height := float64(len(segments))*lineHeight + LinePadding
		if line.Blank {
			height = p.FontSize*BlankFactor + LinePadding
		}
		l.Blocks[i] = Block{
			Line:     line,
			Rect:     tracker.Rect{Top: y, Height: height},
			Segments: segments,
		}
		y += height
	}
	l.ContentHeight = y + spacer
	return l
}

// Geometry returns the scroll extent for the engine
func (l Layout) Geometry() scroll.Geometry {
	return scroll.Geometry{
		ContentHeight:  l.ContentHeight,
		ViewportHeight: l.ViewportHeight,
	}
}

// Center is the viewport's vertical midpoint
func (l Layout) Center() float64 {
	return l.ViewportHeight / 2
}

// Relative returns line rects relative to the viewport top at the given offset
func (l Layout) Relative(offset float64) []tracker.Rect {
	rects := make([]tracker.Rect, len(l.Blocks))
	for i, b := range l.Blocks {
		rects[i] = tracker.Rect{Top: b.Rect.Top - offset, Height: b.Rect.Height}
	}
	return rects
}

// Wrap breaks text into segments no wider than columns display cells.
// Words longer than a segment are split.
func Wrap(text string, columns int) []string {
	if columns <= 0 || runewidth.StringWidth(text) <= columns {
		return []string{text}
	}

	var (
		out     []string
		current strings.Builder
		width   int
	)
	flush := func() {
		out = append(out, current.String())
		current.Reset()
		width = 0
	}

	for _, word := range strings.Fields(text) {
		w := runewidth.StringWidth(word)
		if width > 0 && width+1+w > columns {
			flush()
		}
		for w > columns {
			head := runewidth.Truncate(word, columns, "")
			if head == "" {
				break
			}
			if width > 0 {
				flush()
			}
			out = append(out, head)
			word = strings.TrimPrefix(word, head)
			w = runewidth.StringWidth(word)
		}
		if width > 0 {
			current.WriteByte(' ')
			width++
		}
		current.WriteString(word)
		width += w
	}
	if width > 0 || len(out) == 0 {
		flush()
	}
	return out
}
