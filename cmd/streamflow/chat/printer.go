package chatcmder

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/papercomputeco/streamflow/pkg/cliui"
	"github.com/papercomputeco/streamflow/pkg/session"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

// streamPrinter writes the reply of the active turn as it grows. It only
// ever appends; a reply that is rewritten rather than extended is left for
// the caller to print once the turn ends.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	active  bool
	printed string
}

func newStreamPrinter(out io.Writer) *streamPrinter {
	return &streamPrinter{out: out}
}

func (p *streamPrinter) begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	p.printed = ""
}

// end stops printing and returns the text written during the turn.
func (p *streamPrinter) end() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	return p.printed
}

// observe is registered as a session listener.
func (p *streamPrinter) observe(snap session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || !snap.Streaming || len(snap.Transcript) == 0 {
		return
	}
	last := snap.Transcript[len(snap.Transcript)-1]
	if last.Role != transcript.RoleAssistant || !strings.HasPrefix(last.Content, p.printed) {
		return
	}

	suffix := last.Content[len(p.printed):]
	if suffix == "" {
		return
	}
	if p.printed == "" {
		fmt.Fprint(p.out, cliui.KeyStyle.Render("assistant ›")+" ")
	}
	fmt.Fprint(p.out, suffix)
	p.printed = last.Content
}
