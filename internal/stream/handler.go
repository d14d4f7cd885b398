package stream

import (
	"context"
	"net/http"
	"time"
)

// Serve drains a Subscription to w as a text/event-stream response until the
// request context is cancelled or a write fails/times out. Callers are
// expected to have already set the SSE response headers; Serve only writes
// frames and flushes.
func Serve(ctx context.Context, w http.ResponseWriter, sub *Subscription, writeDeadline time.Duration) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errNoFlush
	}
	if writeDeadline <= 0 {
		writeDeadline = DefaultWriteDeadline
	}
	rc := http.NewResponseController(w)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-sub.Events():
			if !ok {
				return nil
			}
			frame, err := MarshalFrame(evt)
			if err != nil {
				continue
			}
			_ = rc.SetWriteDeadline(time.Now().Add(writeDeadline))
			if _, err := w.Write(frame); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

var errNoFlush = &flushError{}

type flushError struct{}

func (*flushError) Error() string { return "response writer does not support flushing" }
