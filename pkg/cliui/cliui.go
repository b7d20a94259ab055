// Package cliui provides reusable terminal UI helpers (spinners, step
// indicators, progress lines) for spool CLI commands.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/spoolhq/spool/pkg/fetch"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	HeaderStyle  = lipgloss.NewStyle().Bold(true)
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	// Run spinner animation in background
	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	// Clear the spinner line and print final result
	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// ProgressLine formats a fetch progress update as a single status line,
// e.g. "142/500 (28.4%) 12.3/s ETA 29s". Rate and ETA are omitted until
// the fetch reports them.
func ProgressLine(p fetch.Progress) string {
	line := fmt.Sprintf("%d", p.Fetched)
	if p.EstimatedTotal > 0 {
		line = fmt.Sprintf("%d/%d (%.1f%%)", p.Fetched, p.EstimatedTotal, p.Percent)
	}

	if p.Rate > 0 {
		line += fmt.Sprintf(" %.1f/s", p.Rate)
	}
	if p.ETA > 0 {
		line += fmt.Sprintf(" ETA %s", FormatDuration(p.ETA))
	}

	return line
}

// ProgressPrinter returns a fetch progress callback that rewrites a
// single terminal line with each update. Call the returned finish
// function once the fetch is done to terminate the line.
func ProgressPrinter(w io.Writer, label string) (fetch.ProgressFunc, func()) {
	var mu sync.Mutex
	var wrote bool

	onProgress := func(p fetch.Progress) {
		mu.Lock()
		defer mu.Unlock()
		wrote = true
		fmt.Fprintf(w, "\r  %s %s", StepStyle.Render(label), ProgressLine(p))
	}

	finish := func() {
		mu.Lock()
		defer mu.Unlock()
		if wrote {
			fmt.Fprintln(w)
		}
	}

	return onProgress, finish
}
