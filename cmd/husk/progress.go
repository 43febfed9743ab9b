package main

import (
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/meigma/husk"
)

// packProgress renders an mpb bar for pack operations. The bar only
// appears on a terminal; piped output stays clean.
type packProgress struct {
	container *mpb.Progress
	bar       *mpb.Bar

	// mu guards path: the pack goroutine writes it while the mpb
	// render goroutine reads it for the decorator.
	mu   sync.Mutex
	path string
}

func (p *packProgress) setPath(path string) {
	p.mu.Lock()
	p.path = path
	p.mu.Unlock()
}

func (p *packProgress) currentPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

const descWidth = 28

// newPackProgress creates a progress bar, or a no-op one when stderr is
// not a terminal.
func newPackProgress() *packProgress {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return &packProgress{}
	}

	p := &packProgress{}
	p.container = mpb.New(
		mpb.WithOutput(os.Stderr),
		mpb.WithWidth(64),
		mpb.WithRefreshRate(100*time.Millisecond),
	)
	p.bar = p.container.New(0,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				path := p.currentPath()
				if len(path) > descWidth {
					return ".." + path[len(path)-descWidth+2:]
				}
				return path
			}, decor.WC{W: descWidth, C: decor.DindentRight}),
			decor.Name("  "),
			decor.CountersNoUnit("%d/%d", decor.WC{C: decor.DindentRight}),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	return p
}

// Func returns a husk.ProgressFunc feeding the bar.
func (p *packProgress) Func() husk.ProgressFunc {
	if p.bar == nil {
		return nil
	}
	return func(done, total int, path string) {
		p.setPath(path)
		p.bar.SetTotal(int64(total), false)
		p.bar.SetCurrent(int64(done))
	}
}

// Wait finishes rendering.
func (p *packProgress) Wait() {
	if p.container == nil {
		return
	}
	p.bar.SetTotal(-1, true)
	p.container.Wait()
}
