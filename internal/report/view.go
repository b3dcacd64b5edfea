package report

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/louisbranch/combatsim/internal/battle"
)

const labelWidth = 14

var (
	titleStyle = tcell.StyleDefault.Bold(true)
	barStyle   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	textStyle  = tcell.StyleDefault
)

type row struct {
	label string
	count int
}

// Chart holds the histograms the viewer can switch between.
type Chart struct {
	Title   string
	Volleys battle.Histogram
	TUs     battle.Histogram
}

type viewer struct {
	screen tcell.Screen
	chart  Chart
	showTU bool
}

// View draws the volley histogram on screen until the user quits with q, Esc
// or Ctrl-C. The t key switches between volleys and TUs. The caller owns the
// screen and must have initialized it.
func View(screen tcell.Screen, chart Chart) {
	v := &viewer{screen: screen, chart: chart}
	v.draw()
	for {
		switch ev := screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			screen.Sync()
			v.draw()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				return
			}
			if ev.Key() != tcell.KeyRune {
				continue
			}
			switch ev.Rune() {
			case 'q', 'Q':
				return
			case 't', 'T':
				v.showTU = !v.showTU
				v.draw()
			}
		}
	}
}

func (v *viewer) draw() {
	s := v.screen
	s.Clear()
	width, height := s.Size()

	h, unit := v.chart.Volleys, "volleys"
	if v.showTU {
		h, unit = v.chart.TUs, "TUs"
	}
	drawText(s, 0, 0, titleStyle, fmt.Sprintf("%s: %s to kill (%d trials)", v.chart.Title, unit, h.Total()))
	drawText(s, 0, height-1, textStyle, "t: toggle volleys/TUs  q: quit")

	rows := groupRows(h, height-3)
	maxCount := 0
	for _, r := range rows {
		maxCount = max(maxCount, r.count)
	}
	barSpace := width - labelWidth - 9
	for i, r := range rows {
		y := i + 2
		drawText(s, 0, y, textStyle, fmt.Sprintf("%*s", labelWidth-1, r.label))
		bar := 0
		if maxCount > 0 && barSpace > 0 {
			bar = r.count * barSpace / maxCount
		}
		for x := 0; x < bar; x++ {
			s.SetContent(labelWidth+x, y, '█', nil, barStyle)
		}
		percent := float64(r.count) * 100 / float64(max(h.Total(), 1))
		drawText(s, labelWidth+bar+1, y, textStyle, fmt.Sprintf("%.1f%%", percent))
	}
	s.Show()
}

// groupRows merges consecutive buckets so at most limit rows remain.
func groupRows(h battle.Histogram, limit int) []row {
	buckets := h.Buckets()
	if len(buckets) == 0 || limit <= 0 {
		return nil
	}
	size := (len(buckets) + limit - 1) / limit
	rows := make([]row, 0, (len(buckets)+size-1)/size)
	for start := 0; start < len(buckets); start += size {
		end := min(start+size, len(buckets))
		group := buckets[start:end]
		r := row{label: fmt.Sprint(group[0].Value)}
		if len(group) > 1 {
			r.label = fmt.Sprintf("%d-%d", group[0].Value, group[len(group)-1].Value)
		}
		for _, b := range group {
			r.count += b.Count
		}
		rows = append(rows, r)
	}
	return rows
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
