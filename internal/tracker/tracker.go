package tracker

import (
	"math"
	"strings"
)

// Line is one line of the script as the prompter shows it
type Line struct {
	Index int
	Text  string
	Blank bool
}

// ParseLines splits a script into lines. The result is immutable for the session.
func ParseLines(script string) []Line {
	raw := strings.Split(script, "\n")
	lines := make([]Line, len(raw))
	for i, text := range raw {
		text = strings.TrimSuffix(text, "\r")
		lines[i] = Line{
			Index: i,
			Text:  text,
			Blank: strings.TrimSpace(text) == "",
		}
	}
	return lines
}

// Rect is the rendered vertical extent of a line, relative to the viewport top
type Rect struct {
	Top    float64
	Height float64
}

// Center returns the vertical midpoint of the rect
func (r Rect) Center() float64 {
	return r.Top + r.Height/2
}

// Nearest returns the index of the rect whose center is closest to center.
// Equal distances keep the earlier index. Returns 0 for an empty slice.
func Nearest(center float64, rects []Rect) int {
	closest := 0
	closestDistance := math.Inf(1)

	for i, r := range rects {
		distance := math.Abs(r.Center() - center)
		if distance < closestDistance {
			closestDistance = distance
			closest = i
		}
	}
	return closest
}

// Tracker remembers the last computed active line
type Tracker struct {
	active int
}

// Update recomputes the active line from the current geometry
func (t *Tracker) Update(center float64, rects []Rect) int {
	t.active = Nearest(center, rects)
	return t.active
}

// Active returns the last computed active line
func (t *Tracker) Active() int {
	return t.active
}

// Reset forgets the last result
func (t *Tracker) Reset() {
	t.active = 0
}
