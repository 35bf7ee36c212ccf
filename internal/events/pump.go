package events

import (
	"context"

	"droneops-mission/internal/logging"
)

// Writer consumes events. Implementations need not be safe for concurrent
// use; Pump calls them from a single goroutine.
type Writer interface {
	WriteStep(StepEvent) error
	WriteAbort(AbortEvent) error
	WriteFault(FaultEvent) error
	WriteDispatch(DispatchEvent) error
}

// Pump forwards events from c to w until ctx is cancelled. Events still
// buffered at cancellation are flushed before returning. Write errors are
// logged and do not stop the pump.
func Pump(ctx context.Context, c *Channels, w Writer) {
	log := logging.FromContext(ctx)
	write := func(kind string, err error) {
		if err != nil {
			log.Error("event write failed", "kind", kind, "err", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			drain(c, w, write)
			return
		case e := <-c.Steps:
			write("step", w.WriteStep(e))
		case e := <-c.Aborts:
			write("abort", w.WriteAbort(e))
		case e := <-c.Faults:
			write("fault", w.WriteFault(e))
		case e := <-c.Dispatches:
			write("dispatch", w.WriteDispatch(e))
		}
	}
}

func drain(c *Channels, w Writer, write func(string, error)) {
	for {
		select {
		case e := <-c.Steps:
			write("step", w.WriteStep(e))
		case e := <-c.Aborts:
			write("abort", w.WriteAbort(e))
		case e := <-c.Faults:
			write("fault", w.WriteFault(e))
		case e := <-c.Dispatches:
			write("dispatch", w.WriteDispatch(e))
		default:
			return
		}
	}
}
