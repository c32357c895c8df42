package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Spinner animates a message while a long step runs. It only draws when
// colored output is enabled; otherwise Stop prints the final line alone.
type Spinner struct {
	frames  []string
	current int
	message string
	stop    chan struct{}
	done    sync.WaitGroup
	stopped bool
	mu      sync.Mutex
}

// NewSpinner creates a spinner showing message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message: message,
		stop:    make(chan struct{}),
	}
}

// Start begins the animation.
func (s *Spinner) Start() {
	if !supportsColor {
		return
	}
	s.done.Add(1)
	go func() {
		defer s.done.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.stopped {
					fmt.Fprintf(Output, "\r%s %s %s",
						ColorProgress(s.frames[s.current]),
						s.message,
						strings.Repeat(" ", 20),
					)
					s.current = (s.current + 1) % len(s.frames)
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Stop ends the animation and prints the outcome. It is safe to call once.
func (s *Spinner) Stop(success bool, message string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stop)
	s.done.Wait()

	if supportsColor {
		fmt.Fprint(Output, "\r\033[K")
	}
	if success {
		fmt.Fprintf(Output, "%s %s\n", ColorSuccess("✓"), message)
	} else {
		fmt.Fprintf(Output, "%s %s\n", ColorError("✗"), message)
	}
}

// UpdateMessage replaces the animated message.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// FormatDuration renders d the way run summaries show it.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
