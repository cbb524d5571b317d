package main

import (
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/nemanja-m/protalign/pkg/pipeline"
)

// progressBars draws one bar per pipeline stage. A nil *progressBars is a
// no-op.
type progressBars struct {
	progress *mpb.Progress

	mu   sync.Mutex
	bars map[pipeline.Stage]*mpb.Bar
}

func newProgressBars(w io.Writer) *progressBars {
	return &progressBars{
		progress: mpb.New(mpb.WithWidth(40), mpb.WithOutput(w)),
		bars:     make(map[pipeline.Stage]*mpb.Bar),
	}
}

func (p *progressBars) Update(ev pipeline.Event) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	bar, ok := p.bars[ev.Stage]
	if !ok {
		name := string(ev.Stage) + " tasks: "
		bar = p.progress.AddBar(int64(ev.Total),
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name), C: decor.DindentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Elapsed(decor.ET_STYLE_GO),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
		p.bars[ev.Stage] = bar
	}
	bar.SetCurrent(int64(ev.Done))
}

// Wait flushes the bars. Unfinished bars are aborted when the run failed.
func (p *progressBars) Wait(failed bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	for _, bar := range p.bars {
		if failed || !bar.Completed() {
			bar.Abort(false)
		}
	}
	p.mu.Unlock()
	p.progress.Wait()
}
