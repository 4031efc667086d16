package spinner

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/chzyer/readline"
)

const defaultInterval = 80 * time.Millisecond

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner redraws a one-line status with an animated frame at a fixed
// interval until it is stopped. A disabled Spinner writes nothing.
type Spinner struct {
	mu       sync.Mutex
	w        io.Writer
	text     string
	frame    int
	interval time.Duration
	enabled  bool
	running  bool
	ticker   *time.Ticker
	done     chan struct{}
	exited   chan struct{}
}

// New returns a spinner writing to w. Pass enabled=false for --no-animation.
func New(w io.Writer, enabled bool) *Spinner {
	return &Spinner{w: w, enabled: enabled, interval: defaultInterval}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return readline.IsTerminal(int(f.Fd()))
}

// Start begins animating text. Calling Start on a running spinner only
// replaces the text.
func (s *Spinner) Start(text string) {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	if s.running {
		return
	}
	s.running = true
	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})
	s.exited = make(chan struct{})
	s.draw()
	go s.loop(s.ticker, s.done, s.exited)
}

func (s *Spinner) loop(ticker *time.Ticker, done, exited chan struct{}) {
	defer close(exited)
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(frames)
			s.draw()
			s.mu.Unlock()
		case <-done:
			return
		}
	}
}

// draw must be called with s.mu held.
func (s *Spinner) draw() {
	fmt.Fprintf(s.w, "\r\033[K%s %s", frames[s.frame], s.text)
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	if !s.enabled {
		return
	}
	s.halt()
	s.mu.Lock()
	fmt.Fprint(s.w, "\r\033[K")
	s.mu.Unlock()
}

// Succeed stops the animation and leaves a success line behind.
func (s *Spinner) Succeed(text string) {
	s.finish("✔", text)
}

// Fail stops the animation and leaves a failure line behind.
func (s *Spinner) Fail(text string) {
	s.finish("✖", text)
}

func (s *Spinner) finish(symbol, text string) {
	if !s.enabled {
		return
	}
	s.halt()
	s.mu.Lock()
	fmt.Fprintf(s.w, "\r\033[K%s %s\n", symbol, text)
	s.mu.Unlock()
}

func (s *Spinner) halt() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.ticker.Stop()
	close(s.done)
	exited := s.exited
	s.mu.Unlock()
	<-exited
}
