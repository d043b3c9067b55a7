package ui

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// CellProgress renders a terminal progress bar tracking grid cells as they
// complete. Safe to drive from the extractor's OnProgress callback.
type CellProgress struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	done     int
}

// NewCellProgress creates a bar over total cells, writing to w (pass nil
// for stdout).
func NewCellProgress(total int, w io.Writer) *CellProgress {
	opts := []mpb.ContainerOption{mpb.WithWidth(64)}
	if w != nil {
		opts = append(opts, mpb.WithOutput(w))
	}
	p := mpb.New(opts...)

	barStyle := mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟")
	bar := p.New(int64(total), barStyle,
		mpb.PrependDecorators(
			decor.Name("cells", decor.WC{W: 6, C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 6}), "done"),
		),
	)

	return &CellProgress{progress: p, bar: bar}
}

// Update advances the bar to done completed cells
func (c *CellProgress) Update(done, total int) {
	if done > c.done {
		c.bar.IncrBy(done - c.done)
		c.done = done
	}
}

// Wait blocks until the bar has rendered its final state
func (c *CellProgress) Wait() {
	c.bar.Abort(false)
	c.progress.Wait()
}
