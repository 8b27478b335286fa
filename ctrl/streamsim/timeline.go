package main

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Span is one bar on a timeline, from Start to End seconds.
type Span struct {
	Start float64
	End   float64
	Color color.Color
	Label string
}

type Tick struct {
	Time  float64
	Glyph draw.GlyphStyle
}

// TimelinePlot draws spans and ticks along a single horizontal band centered at Location.
type TimelinePlot struct {
	Spans     []Span
	Ticks     []Tick
	Location  float64
	Height    vg.Length
	BoxStyle  draw.LineStyle
	TextStyle draw.TextStyle
}

var _ plot.Plotter = &TimelinePlot{}
var _ plot.DataRanger = &TimelinePlot{}

func NewTimelinePlot(spans []Span, ticks []Tick, loc float64, height vg.Length) *TimelinePlot {
	return &TimelinePlot{
		Spans:    spans,
		Ticks:    ticks,
		Location: loc,
		Height:   height,
		BoxStyle: plotter.DefaultLineStyle,
		TextStyle: text.Style{
			Font:    font.From(plotter.DefaultFont, plotter.DefaultFontSize),
			XAlign:  draw.XCenter,
			YAlign:  draw.YCenter,
			Handler: plot.DefaultTextHandler,
		},
	}
}

func (t *TimelinePlot) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	y := trY(t.Location)
	if !c.ContainsY(y) {
		return
	}
	lo, hi := y-t.Height/2, y+t.Height/2

	for _, span := range t.Spans {
		xStart, xEnd := trX(span.Start), trX(span.End)
		pts := []vg.Point{
			{X: xStart, Y: lo},
			{X: xEnd, Y: lo},
			{X: xEnd, Y: hi},
			{X: xStart, Y: hi},
			{X: xStart, Y: lo},
		}
		c.FillPolygon(span.Color, c.ClipPolygonX(pts[:4]))
		c.StrokeLines(t.BoxStyle, c.ClipLinesX(pts)...)
		// labels that would not fit inside the bar are left off
		if span.Label != "" && t.TextStyle.Width(span.Label) < xEnd-xStart {
			c.FillText(t.TextStyle, vg.Point{X: (xStart + xEnd) / 2, Y: y}, span.Label)
		}
	}

	for _, tick := range t.Ticks {
		c.DrawGlyph(tick.Glyph, vg.Point{X: trX(tick.Time), Y: y})
	}
}

func (t *TimelinePlot) DataRange() (xmin, xmax, ymin, ymax float64) {
	if len(t.Spans) == 0 && len(t.Ticks) == 0 {
		return 0, 0, t.Location, t.Location
	}
	xmin, xmax = math.Inf(1), math.Inf(-1)
	for _, tick := range t.Ticks {
		xmin, xmax = math.Min(xmin, tick.Time), math.Max(xmax, tick.Time)
	}
	for _, span := range t.Spans {
		xmin, xmax = math.Min(xmin, span.Start), math.Max(xmax, span.End)
	}
	return xmin, xmax, t.Location, t.Location
}
