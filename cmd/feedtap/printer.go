package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/rickgao/livefeed/internal/decode"
)

// printer writes one line per event.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func newPrinter(w io.Writer, verbose bool) *printer {
	return &printer{w: w, verbose: verbose}
}

func (p *printer) HandleEvent(ev decode.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := ev.ReceivedAt.Format("15:04:05.000")
	if p.verbose {
		fmt.Fprintf(p.w, "[%s] %s\n", ts, ev.Raw)
		return
	}

	symbol := ev.Symbol()
	price, hasPrice := ev.Price()
	switch {
	case symbol != "" && hasPrice:
		fmt.Fprintf(p.w, "[%s] %-12s %g\n", ts, symbol, price)
	case symbol != "":
		fmt.Fprintf(p.w, "[%s] %-12s (%d fields)\n", ts, symbol, len(ev.Fields))
	default:
		fmt.Fprintf(p.w, "[%s] event       (%d fields)\n", ts, len(ev.Fields))
	}
}
