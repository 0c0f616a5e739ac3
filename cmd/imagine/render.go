package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/imagine-pi/imagine"
	"github.com/imagine-pi/imagine/transfer"
)

const fallbackWidth = 80

// renderer draws a single in-place progress line on a terminal. The engine
// throttles sample frequency; the renderer only formats.
type renderer struct {
	out     *os.File
	width   int
	lastLen int
}

func newRenderer(out *os.File) *renderer {
	width := fallbackWidth
	if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
		width = w
	}
	return &renderer{out: out, width: width}
}

// sample renders one progress sample. Unknown totals get bytes, elapsed
// time, and rate only; known totals add a bar, a percentage, and an ETA.
func (r *renderer) sample(stage imagine.Stage, s transfer.Sample) {
	prefix := fmt.Sprintf("%s %s in %s @ %s/s",
		stage,
		humanize.IBytes(uint64(s.BytesDone)),
		fmtClock(s.Elapsed),
		humanize.IBytes(uint64(s.Rate)),
	)

	line := prefix
	if pct, ok := s.Percent(); ok {
		suffix := fmt.Sprintf(" %3d%%", int(pct))
		if eta, ok := s.ETA(); ok {
			suffix += " eta " + fmtClock(eta)
		}
		if barLen := r.width - len(prefix) - len(suffix) - 3; barLen > 0 {
			fill := int(float64(barLen) * pct / 100)
			if fill > barLen {
				fill = barLen
			}
			line = prefix + " [" + strings.Repeat("█", fill) + strings.Repeat(" ", barLen-fill) + "]" + suffix
		} else {
			line = prefix + suffix
		}
	}

	runes := []rune(line)
	if len(runes) > r.width {
		runes = runes[:r.width]
		line = string(runes)
	}
	fmt.Fprintf(r.out, "%s\r", line)
	r.lastLen = len(runes)
}

// clear erases the in-place line once a stage completes.
func (r *renderer) clear(imagine.Stage) {
	if r.lastLen == 0 {
		return
	}
	fmt.Fprintf(r.out, "%s\r", strings.Repeat(" ", r.lastLen))
	r.lastLen = 0
}

func fmtClock(d time.Duration) string {
	secs := int64(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}
