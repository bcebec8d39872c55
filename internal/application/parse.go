package application

import (
	"encoding/json"
	"regexp"
	"strings"
)

const MaxCommandsPerRound = 3

// Decision is one parsed oracle reply. An empty string in Commands means
// "press enter".
type Decision struct {
	Commands []string
	Comment  string
	// Structured reports whether the reply carried a commands envelope.
	Structured bool
}

type decisionEnvelope struct {
	Commands []json.RawMessage `json:"commands"`
	Comment  string            `json:"comment"`
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ParseDecision reads a reply as a commands envelope, wherever it sits in
// the text, and otherwise falls back to one command per plain line.
func ParseDecision(reply string) Decision {
	reply = strings.TrimSpace(thinkBlock.ReplaceAllString(reply, ""))
	if reply == "" {
		return Decision{}
	}

	if decision, ok := parseEnvelope(extractJSON(reply)); ok {
		return decision
	}
	for _, candidate := range jsonObjects(reply) {
		if decision, ok := parseEnvelope(candidate); ok {
			return decision
		}
	}

	return Decision{Commands: parseCommandLines(reply)}
}

func parseEnvelope(text string) (Decision, bool) {
	if !strings.HasPrefix(text, "{") {
		return Decision{}, false
	}

	var envelope decisionEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err != nil || envelope.Commands == nil {
		return Decision{}, false
	}

	decision := Decision{Comment: strings.TrimSpace(envelope.Comment), Structured: true}
	for _, raw := range envelope.Commands {
		var command string
		if err := json.Unmarshal(raw, &command); err != nil {
			continue
		}
		decision.Commands = append(decision.Commands, normalizeCommand(command))
		if len(decision.Commands) == MaxCommandsPerRound {
			break
		}
	}
	return decision, true
}

func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimLeft(trimmed, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
		trimmed = strings.TrimSpace(trimmed)
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}
	if obj, ok := extractJSONObject(trimmed); ok {
		return obj
	}
	return trimmed
}

// jsonObjects returns every balanced top-level object in text, in order.
func jsonObjects(text string) []string {
	var objects []string
	for {
		obj, end, ok := nextJSONObject(text)
		if !ok {
			return objects
		}
		objects = append(objects, obj)
		text = text[end:]
	}
}

func extractJSONObject(text string) (string, bool) {
	obj, _, ok := nextJSONObject(text)
	return obj, ok
}

func nextJSONObject(text string) (string, int, bool) {
	start := -1
	depth := 0
	inString := false
	escape := false
	for i, r := range text {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escape:
				escape = false
			case r == '\\':
				escape = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(text[start : i+1]), i + 1, true
			}
		}
	}
	return "", 0, false
}

func parseCommandLines(content string) []string {
	var commands []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, EnterToken) {
			commands = append(commands, "")
		} else {
			if looksStructured(line) {
				continue
			}
			line = stripBullet(line)
			if line == "" {
				continue
			}
			commands = append(commands, normalizeCommand(line))
		}
		if len(commands) == MaxCommandsPerRound {
			break
		}
	}
	return commands
}

func looksStructured(line string) bool {
	for _, prefix := range []string{"{", "}", "[", "]", "\"", "```", "#", "<", "//"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

var bulletPrefix = regexp.MustCompile(`^(?:[-*•]\s+|\d+[.)]\s+)`)

func stripBullet(line string) string {
	return strings.Trim(strings.TrimSpace(bulletPrefix.ReplaceAllString(line, "")), "`")
}
