package application

import (
	"fmt"
	"strings"
)

const promptRecentCommands = 12

const promptInstructions = `You are piloting a telnet session for The Two Towers MUD.
Respond ONLY with JSON matching this schema: {"commands": ["command", ...], "comment": "optional note"}.
Each command is a string exactly as it should be typed. Use at most three commands per reply.
Send "<ENTER>" to press the return key for pagination prompts like --More--.
If you need to wait for more output, respond with an empty command list ("commands": []).
Avoid repeating the same command unless it is intentional.`

// PromptInput is everything a planning round knows when it asks the oracle.
type PromptInput struct {
	Reason        string
	Knowledge     string
	Commands      []string
	Events        []string
	Issues        []string
	Opportunities []string
	Status        string
	Transcript    string
	LastError     string
}

func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString(promptInstructions)
	b.WriteString("\n")

	if knowledge := strings.TrimSpace(in.Knowledge); knowledge != "" {
		b.WriteString("\nReference:\n")
		b.WriteString(knowledge)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nReason for request: %s\n", orDefault(in.Reason, "periodic check"))
	if in.LastError != "" {
		fmt.Fprintf(&b, "Last controller error: %s\n", in.LastError)
	}

	commands := in.Commands
	if len(commands) > promptRecentCommands {
		commands = commands[len(commands)-promptRecentCommands:]
	}
	if len(commands) == 0 {
		b.WriteString("Recent commands: none yet\n")
	} else {
		fmt.Fprintf(&b, "Recent commands: %s\n", strings.Join(commands, ", "))
	}

	writeList(&b, "Recent events", in.Events)
	writeList(&b, "Recent issues", in.Issues)
	writeList(&b, "Recent opportunities", in.Opportunities)

	if status := strings.TrimSpace(in.Status); status != "" {
		b.WriteString("\nStatus:\n")
		b.WriteString(status)
		b.WriteString("\n")
	}

	transcript := strings.TrimRight(in.Transcript, "\n")
	if transcript == "" {
		transcript = "(no previous transcript)"
	}
	b.WriteString("\nRecent transcript (most recent last):\n```\n")
	b.WriteString(transcript)
	b.WriteString("\n```\n")

	return b.String()
}

func writeList(b *strings.Builder, title string, entries []string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, entry := range entries {
		fmt.Fprintf(b, "- %s\n", entry)
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
