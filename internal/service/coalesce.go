package service

import (
	"strings"
	"time"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// DefaultCoalesceInterval is the emission cadence for smoothed streaming.
// Raw provider deltas are often one or two characters; batching them onto a
// fixed interval cuts downstream write pressure without visible latency.
const DefaultCoalesceInterval = 30 * time.Millisecond

// CoalesceChunks batches consecutive text deltas onto a fixed emission
// cadence. Ordering is preserved and the final done chunk is forwarded
// immediately, with any buffered text flushed first. An interval <= 0
// disables batching and passes chunks through unchanged.
func CoalesceChunks(in <-chan domain.StreamChunk, interval time.Duration) <-chan domain.StreamChunk {
	out := make(chan domain.StreamChunk)

	if interval <= 0 {
		go func() {
			defer close(out)
			for chunk := range in {
				out <- chunk
			}
		}()
		return out
	}

	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var buf strings.Builder
		flush := func() {
			if buf.Len() > 0 {
				out <- domain.StreamChunk{Text: buf.String()}
				buf.Reset()
			}
		}

		for {
			select {
			case chunk, ok := <-in:
				if !ok {
					flush()
					return
				}
				if chunk.Done {
					flush()
					out <- chunk
					return
				}
				buf.WriteString(chunk.Text)
			case <-ticker.C:
				flush()
			}
		}
	}()

	return out
}
