package cli

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"

	"anvil.dev/cli/internal/core/ports"
)

const progressRefresh = 100 * time.Millisecond

// progressReporter draws one aggregate bar for all running downloads and
// prints a line per finished artifact above it.
type progressReporter struct {
	out io.Writer
	bar progress.Model
	now func() time.Time

	mu       sync.Mutex
	active   map[*progressTracker]struct{}
	lastDraw time.Time
}

var _ ports.ProgressReporter = (*progressReporter)(nil)

func newProgressReporter(out io.Writer) *progressReporter {
	return &progressReporter{
		out:    out,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		now:    time.Now,
		active: make(map[*progressTracker]struct{}),
	}
}

type progressTracker struct {
	r     *progressReporter
	name  string
	total int64
	done  int64
}

func (r *progressReporter) Track(name string, total int64) ports.ProgressTracker {
	t := &progressTracker{r: r, name: name, total: total}
	r.mu.Lock()
	r.active[t] = struct{}{}
	r.drawLocked(true)
	r.mu.Unlock()
	return t
}

func (t *progressTracker) Add(n int64) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.done += n
	t.r.drawLocked(false)
}

func (t *progressTracker) Done(err error) {
	r := t.r
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, t)

	r.clearLocked()
	if err != nil {
		fmt.Fprintf(r.out, "✗ %s: %v\n", t.name, err)
	} else {
		fmt.Fprintf(r.out, "✓ %s (%s)\n", t.name, humanize.Bytes(uint64(t.done)))
	}
	r.drawLocked(true)
}

func (r *progressReporter) clearLocked() {
	fmt.Fprint(r.out, "\r\x1b[2K")
}

func (r *progressReporter) drawLocked(force bool) {
	if len(r.active) == 0 {
		return
	}
	now := r.now()
	if !force && now.Sub(r.lastDraw) < progressRefresh {
		return
	}
	r.lastDraw = now

	var done, total int64
	known := true
	names := make([]string, 0, len(r.active))
	for t := range r.active {
		done += t.done
		if t.total < 0 {
			known = false
		} else {
			total += t.total
		}
		names = append(names, t.name)
	}
	sort.Strings(names)

	label := names[0]
	if len(names) > 1 {
		label = fmt.Sprintf("%d files", len(names))
	}

	r.clearLocked()
	if known && total > 0 {
		percent := float64(done) / float64(total)
		fmt.Fprintf(r.out, "%s %s %s / %s", label, r.bar.ViewAs(percent),
			humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)))
		return
	}
	fmt.Fprintf(r.out, "%s %s", label, humanize.Bytes(uint64(done)))
}
