package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ProgressBar renders a single-line progress bar for long headless runs
type ProgressBar struct {
	mu      sync.Mutex
	w       io.Writer
	noColor bool
	total   int
	current int
	width   int
	message string
}

// NewProgressBar creates a progress bar writing to the default logger output
func NewProgressBar(total int, message string) *ProgressBar {
	w, noColor := defaultOutput()
	return NewProgressBarTo(w, noColor, total, message)
}

// NewProgressBarTo creates a progress bar writing to w
func NewProgressBarTo(w io.Writer, noColor bool, total int, message string) *ProgressBar {
	if total < 1 {
		total = 1
	}
	return &ProgressBar{
		w:       w,
		noColor: noColor,
		total:   total,
		width:   40,
		message: message,
	}
}

// Update sets the progress bar position
func (p *ProgressBar) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = min(max(current, 0), p.total)
	p.draw()
}

// Increment increments the progress bar by 1
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < p.total {
		p.current++
	}
	p.draw()
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.total
	p.draw()
	_, _ = fmt.Fprintln(p.w)
}

func (p *ProgressBar) draw() {
	percent := float64(p.current) / float64(p.total)
	filled := int(percent * float64(p.width))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	_, _ = fmt.Fprintf(p.w, "\r%s: [%s] %3.0f%%",
		p.message,
		paintIf(p.noColor, bar, color.FgGreen),
		percent*100)
}
