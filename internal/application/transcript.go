package application

import (
	"strings"
	"sync"
	"unicode/utf8"
)

const MinTranscriptChars = 2000

// Transcript is the size-capped session text the planner reads. Chunks are
// evicted oldest first; Len never exceeds Cap.
type Transcript struct {
	mu     sync.Mutex
	chunks []string
	size   int
	cap    int
}

func NewTranscript(maxChars int) *Transcript {
	if maxChars < MinTranscriptChars {
		maxChars = MinTranscriptChars
	}

	return &Transcript{cap: maxChars}
}

func (t *Transcript) Append(text string) {
	if text == "" {
		return
	}
	text = lastBytes(text, t.cap)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.chunks = append(t.chunks, text)
	t.size += len(text)
	for t.size > t.cap && len(t.chunks) > 0 {
		t.size -= len(t.chunks[0])
		t.chunks[0] = ""
		t.chunks = t.chunks[1:]
	}
}

// AppendLine appends text terminated by a newline.
func (t *Transcript) AppendLine(text string) {
	t.Append(strings.TrimRight(text, "\r\n") + "\n")
}

func (t *Transcript) Snapshot() string {
	t.mu.Lock()
	chunks := make([]string, len(t.chunks))
	copy(chunks, t.chunks)
	t.mu.Unlock()

	return strings.Join(chunks, "")
}

// Tail returns at most maxChars of the newest text, cut at a line start when
// one is available.
func (t *Transcript) Tail(maxChars int) string {
	snapshot := t.Snapshot()
	if maxChars <= 0 || len(snapshot) <= maxChars {
		return snapshot
	}

	tail := lastBytes(snapshot, maxChars)
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return tail
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.size
}

func (t *Transcript) Cap() int {
	return t.cap
}

func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.chunks = nil
	t.size = 0
}

// lastBytes returns the longest suffix of text no longer than limit bytes
// that starts on a rune boundary.
func lastBytes(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	start := len(text) - limit
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	return text[start:]
}
