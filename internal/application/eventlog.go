package application

import (
	"fmt"
	"strings"
	"sync"
)

const maxTrackedMessages = 256

// EventLog is a bounded ring of short messages. Repeats of the same message
// are counted and only re-announced at escalating counts so noisy server
// lines do not flood the oracle prompt.
type EventLog struct {
	mu      sync.Mutex
	entries []string
	limit   int
	counts  map[string]int
}

func NewEventLog(limit int) *EventLog {
	if limit <= 0 {
		limit = 1
	}

	return &EventLog{limit: limit, counts: map[string]int{}}
}

// Add records message and reports whether it was announced.
func (l *EventLog) Add(message string) bool {
	message = strings.TrimSpace(message)
	if message == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.counts) >= maxTrackedMessages {
		l.counts = map[string]int{}
	}
	l.counts[message]++
	count := l.counts[message]
	if !shouldAnnounce(count) {
		return false
	}

	entry := message
	if count > 1 {
		entry = fmt.Sprintf("%s (x%d)", message, count)
	}
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.limit {
		l.entries = l.entries[len(l.entries)-l.limit:]
	}

	return true
}

func shouldAnnounce(count int) bool {
	switch count {
	case 1, 3, 5:
		return true
	default:
		return count%10 == 0
	}
}

func (l *EventLog) Recent() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *EventLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
	l.counts = map[string]int{}
}

// CommandHistory keeps the most recent commands sent, oldest first.
type CommandHistory struct {
	mu       sync.Mutex
	commands []string
	limit    int
}

func NewCommandHistory(limit int) *CommandHistory {
	if limit <= 0 {
		limit = 80
	}

	return &CommandHistory{limit: limit}
}

func (h *CommandHistory) Add(command string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.commands = append(h.commands, command)
	if len(h.commands) > h.limit {
		h.commands = h.commands[len(h.commands)-h.limit:]
	}
}

func (h *CommandHistory) Last(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > len(h.commands) {
		n = len(h.commands)
	}
	out := make([]string, n)
	copy(out, h.commands[len(h.commands)-n:])
	return out
}

func (h *CommandHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.commands = nil
}
