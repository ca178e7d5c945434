package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
)

// progress prints loop events to w as they arrive.
type progress struct {
	ch   chan engine.Event
	w    io.Writer
	done sync.WaitGroup
}

func newProgress(w io.Writer) *progress {
	p := &progress{ch: make(chan engine.Event, 64), w: w}
	p.done.Add(1)
	go func() {
		defer p.done.Done()
		for e := range p.ch {
			if e.Kind == syncKind {
				close(e.Data.(chan struct{}))
				continue
			}
			if line := formatEvent(e); line != "" {
				fmt.Fprintln(p.w, line)
			}
		}
	}()
	return p
}

// Hook returns the engine hook feeding this printer. Events are dropped
// rather than stalling a run when the terminal is slow.
func (p *progress) Hook() engine.Hook {
	return engine.EventHook{Ch: p.ch, Drop: true}
}

// syncKind marks the flush requests of Sync.
const syncKind = "sync"

// Sync waits until every event sent so far has been printed.
func (p *progress) Sync() {
	flushed := make(chan struct{})
	p.ch <- engine.Event{Kind: syncKind, Data: flushed}
	<-flushed
}

// Close flushes pending events. The hook must not be used afterwards.
func (p *progress) Close() {
	close(p.ch)
	p.done.Wait()
}

func formatEvent(e engine.Event) string {
	switch e.Kind {
	case "decision":
		d, _ := e.Data.(map[string]any)
		if n, _ := d["files"].(int); n > 0 {
			return fmt.Sprintf("· decision (%v): %d file(s) to read", d["kind"], n)
		}
		return fmt.Sprintf("· decision (%v): nothing more to read", d["kind"])
	case "file":
		d, _ := e.Data.(map[string]any)
		if ok, _ := d["supported"].(bool); !ok {
			return fmt.Sprintf("  skipped %v (unsupported)", d["path"])
		}
		return fmt.Sprintf("  read %v", d["path"])
	case "merged":
		return fmt.Sprintf("· round %v merged", e.Data)
	case "retry_attempt":
		d, _ := e.Data.(map[string]any)
		return fmt.Sprintf("· retry %v/%v in %v: %v", d["attempt"], d["maxAttempts"], d["delay"], d["error"])
	case "done":
		d, _ := e.Data.(map[string]any)
		return fmt.Sprintf("· %v after %v round(s), %v file(s)", d["route"], d["rounds"], d["files"])
	case "error":
		return fmt.Sprintf("· failed: %v", e.Data)
	}
	return ""
}
