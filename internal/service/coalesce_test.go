package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

func drain(t *testing.T, out <-chan domain.StreamChunk) []domain.StreamChunk {
	t.Helper()
	var chunks []domain.StreamChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-out:
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-timeout:
			t.Fatal("timed out draining coalesced chunks")
		}
	}
}

func TestCoalesceChunks_Passthrough(t *testing.T) {
	in := make(chan domain.StreamChunk, 3)
	in <- domain.StreamChunk{Text: "a"}
	in <- domain.StreamChunk{Text: "b"}
	in <- domain.StreamChunk{Done: true, FinishReason: "stop"}
	close(in)

	chunks := drain(t, CoalesceChunks(in, 0))

	require.Len(t, chunks, 3)
	assert.Equal(t, "a", chunks[0].Text)
	assert.Equal(t, "b", chunks[1].Text)
	assert.True(t, chunks[2].Done)
}

func TestCoalesceChunks_BatchesDeltas(t *testing.T) {
	in := make(chan domain.StreamChunk, 4)
	in <- domain.StreamChunk{Text: "he"}
	in <- domain.StreamChunk{Text: "ll"}
	in <- domain.StreamChunk{Text: "o"}
	in <- domain.StreamChunk{Done: true, FinishReason: "stop"}
	close(in)

	// An hour-long interval means only the done chunk can force a flush, so
	// all deltas arrive as one batch.
	chunks := drain(t, CoalesceChunks(in, time.Hour))

	require.Len(t, chunks, 2)
	assert.Equal(t, "hello", chunks[0].Text)
	assert.Equal(t, domain.StreamChunk{Done: true, FinishReason: "stop"}, chunks[1])
}

func TestCoalesceChunks_TickerFlushesWithoutDone(t *testing.T) {
	in := make(chan domain.StreamChunk)
	out := CoalesceChunks(in, 5*time.Millisecond)

	in <- domain.StreamChunk{Text: "early"}

	select {
	case chunk := <-out:
		assert.Equal(t, "early", chunk.Text)
	case <-time.After(time.Second):
		t.Fatal("ticker never flushed the buffered text")
	}

	close(in)
	drain(t, out)
}

func TestCoalesceChunks_DoneNeverDelayed(t *testing.T) {
	in := make(chan domain.StreamChunk, 1)
	in <- domain.StreamChunk{Done: true, FinishReason: "stop"}
	close(in)

	start := time.Now()
	chunks := drain(t, CoalesceChunks(in, time.Hour))

	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Done)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCoalesceChunks_OrderPreserved(t *testing.T) {
	in := make(chan domain.StreamChunk, 11)
	want := []string{"一", "二", "三", "四", "五", "六", "七", "八", "九", "十"}
	for _, s := range want {
		in <- domain.StreamChunk{Text: s}
	}
	in <- domain.StreamChunk{Done: true, FinishReason: "stop"}
	close(in)

	chunks := drain(t, CoalesceChunks(in, time.Millisecond))

	var sb strings.Builder
	for _, chunk := range chunks {
		sb.WriteString(chunk.Text)
	}
	assert.Equal(t, strings.Join(want, ""), sb.String())
	assert.True(t, chunks[len(chunks)-1].Done)
}
