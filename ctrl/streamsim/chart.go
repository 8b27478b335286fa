package main

import (
	"fmt"
	"image/color"

	"github.com/celskeggs/streamthrough/sim/component"
	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/txlink"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const mediumChannel = "medium"

// Transmission is one signal as the medium saw it in a recording.
type Transmission struct {
	Start    model.VirtualTime
	End      model.VirtualTime
	Length   signal.Bits
	Aborted  bool
	Progress []model.VirtualTime
	// Positions holds the output position reported at each delivery, in order.
	Positions plotter.XYs
}

func (t *Transmission) Ended() bool {
	return t.End.TimeExists()
}

// CollectTransmissions groups the medium deliveries of a recording into transmissions.
func CollectTransmissions(records []component.Record) ([]*Transmission, error) {
	var txs []*Transmission
	var current *Transmission
	for i, r := range records {
		if r.Channel != mediumChannel {
			continue
		}
		switch r.Event {
		case txlink.EventStart:
			if current != nil {
				return nil, fmt.Errorf("record %d: transmission started at %v while one from %v was still open",
					i, r.Timestamp, current.Start)
			}
			current = &Transmission{
				Start:     r.Timestamp,
				End:       model.TimeNever,
				Length:    r.Length,
				Positions: plotter.XYs{{X: r.Timestamp.Seconds(), Y: 0}},
			}
			txs = append(txs, current)
		case txlink.EventProgress, txlink.EventEnd:
			if current == nil {
				return nil, fmt.Errorf("record %d: %s event at %v outside of any transmission", i, r.Event, r.Timestamp)
			}
			current.Length = r.Length
			current.Positions = append(current.Positions, plotter.XY{X: r.Timestamp.Seconds(), Y: float64(r.Position)})
			if r.Event == txlink.EventProgress {
				current.Progress = append(current.Progress, r.Timestamp)
			} else {
				current.End = r.Timestamp
				current.Aborted = r.BitError
				current = nil
			}
		default:
			return nil, fmt.Errorf("record %d: unexpected medium event %q", i, r.Event)
		}
	}
	return txs, nil
}

var (
	completeColor = color.RGBA{R: 0x40, G: 0xA0, B: 0x40, A: 0xFF}
	abortedColor  = color.RGBA{R: 0xD0, G: 0x30, B: 0x30, A: 0xFF}
	openColor     = color.RGBA{R: 0xA0, G: 0xA0, B: 0xA0, A: 0xFF}
)

// BuildChart plots the output position of each transmission over time, with a timeline band underneath.
// Transmissions still open at the end of the recording are drawn up to endTime.
func BuildChart(title string, txs []*Transmission, endTime model.VirtualTime) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (seconds)"
	p.Y.Label.Text = "Output position (bits)"

	var maxLength signal.Bits
	for _, tx := range txs {
		if tx.Length > maxLength {
			maxLength = tx.Length
		}
	}
	band := -float64(maxLength)/10 - 1

	var spans []Span
	var ticks []Tick
	for n, tx := range txs {
		span := Span{
			Start: tx.Start.Seconds(),
			Color: completeColor,
			Label: fmt.Sprintf("#%d", n+1),
		}
		if tx.Ended() {
			span.End = tx.End.Seconds()
			if tx.Aborted {
				span.Color = abortedColor
			}
		} else {
			span.End = endTime.Seconds()
			span.Color = openColor
		}
		spans = append(spans, span)
		for _, at := range tx.Progress {
			ticks = append(ticks, Tick{
				Time: at.Seconds(),
				Glyph: draw.GlyphStyle{
					Color:  color.Black,
					Radius: vg.Points(2),
					Shape:  draw.CrossGlyph{},
				},
			})
		}

		line, err := plotter.NewLine(tx.Positions)
		if err != nil {
			return nil, errors.Wrapf(err, "transmission %d", n+1)
		}
		line.Color = span.Color
		p.Add(line)
	}
	p.Add(NewTimelinePlot(spans, ticks, band, vg.Points(12)))
	p.Add(plotter.NewGrid())
	return p, nil
}
