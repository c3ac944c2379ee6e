package cmdutil

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/ucdmtools/recon/reconcile"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var showProgress = true

func RegisterProgressFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(
		&showProgress,
		"progress",
		showProgress,
		"show a progress bar per table while comparing rows",
	)
}

// ProgressBars draws one bar per table being compared.
type ProgressBars struct {
	p *mpb.Progress
}

// NewProgressBars returns nil if progress bars are disabled.
func NewProgressBars() *ProgressBars {
	if !showProgress {
		return nil
	}
	return &ProgressBars{p: mpb.New(mpb.WithOutput(os.Stderr))}
}

func (b *ProgressBars) Tracker(table string, total int) reconcile.ProgressTracker {
	bar := b.p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(table+":"),
			decor.CountersNoUnit(" %d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO),
			decor.Name(" | "),
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done"),
		),
	)
	return &barTracker{bar: bar}
}

// Wait blocks until every bar has been drawn to completion.
func (b *ProgressBars) Wait() {
	b.p.Wait()
}

type barTracker struct {
	bar *mpb.Bar
}

func (t *barTracker) Increment() {
	t.bar.Increment()
}

func (t *barTracker) Finish() {
	// Completes the bar at its current count.
	t.bar.SetTotal(-1, true)
}
