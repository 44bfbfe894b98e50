package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// StdOutHandler prints a compact trace of every event, prefixed with the run
// name.
type StdOutHandler struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdOutHandler creates a handler writing to w (os.Stdout when nil).
func NewStdOutHandler(w io.Writer) *StdOutHandler {
	if w == nil {
		w = os.Stdout
	}

	return &StdOutHandler{out: w}
}

// Handle implements Handler.
func (h *StdOutHandler) Handle(_ context.Context, ev Event) {
	name := ev.Config.RunName
	if name == "" {
		name = "run"
	}

	var line string

	switch ev.Type {
	case EventModelStart:
		line = fmt.Sprintf("[%s] model start: %s", name, ev.Name)
		if len(ev.Config.Tags) > 0 {
			line += fmt.Sprintf(" tags=%s", strings.Join(ev.Config.Tags, ","))
		}
	case EventModelEnd:
		line = fmt.Sprintf("[%s] model end: %s (%s)", name, ev.Name, ev.Duration.Round(time.Millisecond))
		if ev.Response != nil && ev.Response.Usage != nil {
			line += fmt.Sprintf(" tokens=%d", ev.Response.Usage.TotalTokens)
		}
	case EventToolStart:
		line = fmt.Sprintf("[%s] tool start: %s %s", name, ev.Name, ev.Args)
	case EventToolEnd:
		line = fmt.Sprintf("[%s] tool end: %s -> %v", name, ev.Name, ev.Result)
	case EventAgentStart:
		line = fmt.Sprintf("[%s] agent start: %s", name, ev.Name)
	case EventAgentEnd:
		line = fmt.Sprintf("[%s] agent end: %s (%s)", name, ev.Name, ev.Duration.Round(time.Millisecond))
	case EventError:
		line = fmt.Sprintf("[%s] error in %s: %v", name, ev.Name, ev.Err)
	default:
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintln(h.out, line)
}
