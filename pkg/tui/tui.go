// Package tui contains a terminal front-end for watching the engine play.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/herohde/stax/pkg/game"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/contextx"
	"github.com/seekerror/stdlib/pkg/util/iox"
	"go.uber.org/atomic"
)

const (
	minDelay = 5 * time.Millisecond
	maxDelay = time.Second
)

// Run plays the game to completion on a tcell screen, one placement per
// tick. Keys: q/ESC quits, SPACE pauses, +/- changes speed.
func Run(ctx context.Context, g *game.Game, delay time.Duration) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to init screen: %v", err)
	}
	defer screen.Fini()

	d := &driver{
		screen: screen,
		g:      g,
		quit:   iox.NewAsyncCloser(),
	}
	d.delay.Store(delay)

	go d.input()
	d.loop(ctx)
	return nil
}

type driver struct {
	screen tcell.Screen
	g      *game.Game

	quit   iox.AsyncCloser
	paused atomic.Bool
	delay  atomic.Duration
}

// input polls key events until quit. Runs as a separate goroutine, so the
// game loop never blocks on input.
func (d *driver) input() {
	for {
		ev := d.screen.PollEvent()
		if ev == nil {
			return // screen finalized
		}

		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape, ev.Rune() == 'q':
				d.quit.Close()
				return
			case ev.Rune() == ' ':
				d.paused.Toggle()
			case ev.Rune() == '+':
				d.delay.Store(max(d.delay.Load()/2, minDelay))
			case ev.Rune() == '-':
				d.delay.Store(min(d.delay.Load()*2, maxDelay))
			}
		case *tcell.EventResize:
			d.screen.Sync()
		}
	}
}

func (d *driver) loop(ctx context.Context) {
	for !d.quit.IsClosed() && !contextx.IsCancelled(ctx) {
		if !d.paused.Load() {
			if _, ok := d.g.Step(ctx); !ok {
				break
			}
		}
		d.render()
		time.Sleep(d.delay.Load())
	}

	d.render()
	logw.Infof(ctx, "Game over: %v", d.g.Stats())

	// Leave the final playfield up until dismissed.
	for !d.quit.IsClosed() && !contextx.IsCancelled(ctx) {
		time.Sleep(50 * time.Millisecond)
	}
}

var (
	styleFrame = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleCell  = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleText  = tcell.StyleDefault
)

// render draws the playfield with a frame, the upcoming pieces and the game
// statistics. Row 0 is at the bottom.
func (d *driver) render() {
	field := d.g.Grid()
	w, h := field.Width(), field.Height()

	d.screen.Clear()

	for y := 0; y < h; y++ {
		row := h - y // grid row y on screen row h-y, top-down
		d.set(0, row, '|', styleFrame)
		d.set(2*w+1, row, '|', styleFrame)

		for x := 0; x < w; x++ {
			if field.IsSet(x, y) {
				d.set(2*x+1, row, '[', styleCell)
				d.set(2*x+2, row, ']', styleCell)
			}
		}
	}
	for x := 0; x <= 2*w+1; x++ {
		d.set(x, h+1, '-', styleFrame)
	}

	stats := d.g.Stats()
	col := 2*w + 4
	d.text(col, 1, d.g.Name())
	d.text(col, 3, fmt.Sprintf("score: %v", stats.Score))
	d.text(col, 4, fmt.Sprintf("lines: %v", stats.Lines))
	d.text(col, 5, fmt.Sprintf("level: %v", stats.Level))
	d.text(col, 6, fmt.Sprintf("lcpp:  %.3f", stats.LCPP))

	next := ""
	for k := 0; k < 3; k++ {
		if s, ok := d.g.Bag().Peek(k); ok {
			next += s.String()
		}
	}
	d.text(col, 8, fmt.Sprintf("next:  %v", next))

	if d.paused.Load() {
		d.text(col, 10, "PAUSED")
	}
	if d.g.Over() {
		d.text(col, 10, "GAME OVER")
	}

	d.screen.Show()
}

func (d *driver) set(x, y int, r rune, style tcell.Style) {
	d.screen.SetContent(x, y, r, nil, style)
}

func (d *driver) text(x, y int, s string) {
	for i, r := range s {
		d.screen.SetContent(x+i, y, r, nil, styleText)
	}
}

func min(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func max(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
