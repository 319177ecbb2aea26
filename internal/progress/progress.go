// Package progress renders pipeline progress from the event bus: a step bar
// when stderr is a terminal, nothing otherwise.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/alpacaproxy/proxy-release/internal/events"
	"github.com/alpacaproxy/proxy-release/internal/pipeline"
)

// Reporter is the interface for reporting step progress.
type Reporter interface {
	Start(total int, description string)
	Update(current int, description string)
	Finish()
	Error(err error)
}

// CLIProgress implements progress reporting for CLI mode using a progress bar.
type CLIProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a new CLI progress reporter writing to w.
func NewCLIProgress(w io.Writer) *CLIProgress {
	return &CLIProgress{w: w}
}

// Start initializes the progress bar with the number of steps and a description.
func (p *CLIProgress) Start(total int, description string) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to step current and relabels it.
func (p *CLIProgress) Update(current int, description string) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(description)
	_ = p.bar.Set(current)
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error stops the bar where it is. The failure itself is reported elsewhere.
func (p *CLIProgress) Error(err error) {
	if p.bar != nil {
		_ = p.bar.Exit()
		fmt.Fprint(p.w, "\n")
	}
}

// NoOpProgress is a progress reporter that does nothing (non-TTY output, CI).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// Start does nothing.
func (p *NoOpProgress) Start(total int, description string) {}

// Update does nothing.
func (p *NoOpProgress) Update(current int, description string) {}

// Finish does nothing.
func (p *NoOpProgress) Finish() {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewReporter returns a CLIProgress on stderr when it is a terminal and
// progress is not disabled, and a NoOpProgress otherwise.
func NewReporter(disabled bool) Reporter {
	if disabled || !IsTerminal(os.Stderr) {
		return NewNoOpProgress()
	}
	return NewCLIProgress(os.Stderr)
}

// Follow drives r from the state changes published on bus until the run
// completes. The returned stop function drains anything still buffered,
// unsubscribes and waits for the follower to exit; call it once the run has
// returned.
func Follow(bus *events.EventBus, r Reporter) (stop func()) {
	ch := bus.SubscribeAll()
	quit := make(chan struct{})
	done := make(chan struct{})

	f := &follower{r: r}
	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-ch:
				if !ok || f.handle(e) {
					return
				}
			case <-quit:
				for {
					select {
					case e, ok := <-ch:
						if !ok || f.handle(e) {
							return
						}
					default:
						return
					}
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-done
			bus.UnsubscribeAll(ch)
		})
	}
}

type follower struct {
	r       Reporter
	started bool
}

// handle applies one event and reports whether the run is over.
func (f *follower) handle(e events.Event) bool {
	switch ev := e.(type) {
	case *events.StateChangeEvent:
		if ev.NewState == string(pipeline.StateFailed) {
			return false
		}
		if !f.started {
			f.r.Start(ev.Total, ev.NewState)
			f.started = true
		}
		f.r.Update(ev.Index, ev.NewState)
	case *events.StepFailedEvent:
		f.r.Error(ev.Error)
	case *events.CompleteEvent:
		if ev.FinalState == string(pipeline.StateDone) {
			f.r.Finish()
		}
		return true
	}
	return false
}
