package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a message on one line until stopped
type Spinner struct {
	writer   io.Writer
	message  string
	interval time.Duration
	noColor  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a spinner that redraws every interval
func NewSpinner(w io.Writer, message string, interval time.Duration, noColor bool) *Spinner {
	return &Spinner{writer: w, message: message, interval: interval, noColor: noColor}
}

// Start begins the animation
func (s *Spinner) Start() {
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.animate()
}

// Stop ends the animation and clears the line
func (s *Spinner) Stop() {
	if s.done == nil {
		return
	}
	close(s.done)
	s.wg.Wait()
	s.done = nil
	fmt.Fprint(s.writer, "\r\033[K")
}

func (s *Spinner) animate() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	cyan := color.New(color.FgCyan)
	if s.noColor {
		cyan.DisableColor()
	}
	for frame := 0; ; frame = (frame + 1) % len(spinnerFrames) {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			cyan.Fprintf(s.writer, "\r%s %s", spinnerFrames[frame], s.message)
		}
	}
}

// WithSpinner runs fn behind a spinner. The spinner line is cleared before
// fn's result is returned.
func WithSpinner(w io.Writer, message string, noColor bool, fn func() error) error {
	s := NewSpinner(w, message, 100*time.Millisecond, noColor)
	s.Start()
	err := fn()
	s.Stop()
	return err
}
