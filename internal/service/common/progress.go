//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"

	"github.com/oshokin/release-publisher/internal/hashing"
)

// Progress shows a spinner with a status line on a terminal.
// A disabled Progress does nothing, so callers never branch on it.
type Progress struct {
	spinner *spinner.Spinner
}

// NewProgress returns a spinner writing to out, or a no-op when disabled.
func NewProgress(out *os.File, enabled bool) *Progress {
	if !enabled || out == nil {
		return new(Progress)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriterFile(out))

	return &Progress{
		spinner: s,
	}
}

// Start shows message next to the spinner.
func (p *Progress) Start(message string) {
	if p.spinner == nil {
		return
	}

	p.set(message)
	p.spinner.Start()
}

// Update replaces the status line.
func (p *Progress) Update(message string) {
	if p.spinner == nil {
		return
	}

	p.set(message)
}

// Stop hides the spinner and prints final, if any, in its place.
func (p *Progress) Stop(final string) {
	if p.spinner == nil {
		return
	}

	p.spinner.Lock()
	if final != "" {
		p.spinner.FinalMSG = final + "\n"
	}
	p.spinner.Unlock()

	p.spinner.Stop()
}

// Bytes returns a hashing callback that reports "label 1.2 MB / 4.0 MB".
func (p *Progress) Bytes(label string) hashing.ProgressFunc {
	return func(processed, total int64) {
		p.Update(FormatTransfer(label, processed, total))
	}
}

// FormatTransfer renders a byte counter for the status line.
func FormatTransfer(label string, processed, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("%s %s", label, humanize.Bytes(uint64(max(processed, 0))))
	}

	return fmt.Sprintf("%s %s / %s", label,
		humanize.Bytes(uint64(max(processed, 0))),
		humanize.Bytes(uint64(total)))
}

func (p *Progress) set(message string) {
	p.spinner.Lock()
	defer p.spinner.Unlock()

	p.spinner.Suffix = " " + message
}
