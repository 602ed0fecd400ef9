package editor

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// OutputSink receives OutputBuffer changes as they happen.
type OutputSink interface {
	AppendOutput(text string)
	ClearOutput()
}

// OutputBuffer is the append-only text a run produces. It is only ever
// emptied as a whole, by Reset.
type OutputBuffer struct {
	mu        sync.Mutex
	fragments []string
	sink      OutputSink
}

// NewOutputBuffer returns an empty buffer mirroring changes to sink, which
// may be nil.
func NewOutputBuffer(sink OutputSink) *OutputBuffer {
	return &OutputBuffer{sink: sink}
}

func (b *OutputBuffer) Append(text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fragments = append(b.fragments, text)
	if b.sink != nil {
		b.sink.AppendOutput(text)
	}
}

func (b *OutputBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fragments = nil
	if b.sink != nil {
		b.sink.ClearOutput()
	}
}

// String returns the buffer as one text.
func (b *OutputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.fragments, "")
}

// completionAnnotation formats the line appended after every finished run.
func completionAnnotation(elapsed time.Duration) string {
	return fmt.Sprintf("\n<completed in %d ms>", elapsed.Milliseconds())
}
